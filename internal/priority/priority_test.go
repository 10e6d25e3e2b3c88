package priority

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/terminal-bench/tempermill/internal/domain"
)

func TestDefaultDimensionWeights(t *testing.T) {
	w := DefaultDimensionWeights()
	assert.Equal(t, 1.0, w.Assessment)
	assert.Equal(t, 0.9, w.Delivery)
	assert.Equal(t, 0.5, w.Contract)
	assert.Equal(t, 0.6, w.Customer)
	assert.Equal(t, 0.4, w.Batch)
	assert.Equal(t, 0.5, w.ProductType)
}

func TestCalculateNoDueDate(t *testing.T) {
	ctx := DefaultContext()
	today := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	c := domain.Coil{ContractAttr: domain.ContractOther}
	res := Calculate(c, ctx, today)

	assert.Equal(t, BucketNoRequirement, deliveryBucket(c.DueDate, today))
	assert.Equal(t, 0.0, res.Detail.Delivery.Score)
}

func TestCalculateOverdue60Days(t *testing.T) {
	today := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	due := today.AddDate(0, 0, -61)

	assert.Equal(t, BucketDoubleOverdue, deliveryBucket(&due, today))
}

func TestCalculateOverdue30Days(t *testing.T) {
	today := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	due := today.AddDate(0, 0, -31)

	assert.Equal(t, BucketSuperOverdue, deliveryBucket(&due, today))
}

func TestD7Threshold(t *testing.T) {
	today := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	due := today.AddDate(0, 0, 7)
	assert.Equal(t, BucketD7, deliveryBucket(&due, today))

	dueNext := today.AddDate(0, 0, 8)
	assert.Equal(t, BucketCurrentPeriod, deliveryBucket(&dueNext, today)) // 2026-03-23: past D+7 but still in the current month
}

func TestD0SameDay(t *testing.T) {
	today := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	due := today
	assert.Equal(t, BucketD0, deliveryBucket(&due, today))
}

func TestContractScoreExport(t *testing.T) {
	ctx := DefaultContext()
	today := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	c := domain.Coil{ExportFlag: true, ContractAttr: domain.ContractSpot}
	res := Calculate(c, ctx, today)
	assert.Equal(t, 100.0, res.Detail.Contract.Score)
}

func TestContractScoreFutures(t *testing.T) {
	ctx := DefaultContext()
	today := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	c := domain.Coil{ContractAttr: domain.ContractFutures}
	res := Calculate(c, ctx, today)
	assert.Equal(t, 90.0, res.Detail.Contract.Score)
}

func TestPriorityWeightedSum(t *testing.T) {
	ctx := DefaultContext()
	today := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)

	due := today // D+0 => 1000
	c := domain.Coil{
		ContractNature:       "order",
		DueDate:              &due,
		ContractAttr:         domain.ContractFutures,
		PriorityManualAdjust: 5,
	}

	res := Calculate(c, ctx, today)
	// assessment=100*1.0 + delivery=1000*0.9 + contract=90*0.5 + customer=50*0.6 + batch=0 + product=0 + manual 5
	expected := 100*1.0 + 1000*0.9 + 90*0.5 + 50*0.6 + 5
	assert.Equal(t, expected, res.Final)
}
