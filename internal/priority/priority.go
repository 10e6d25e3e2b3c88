// Package priority scores every coil on six weighted commercial
// dimensions to produce priority_final.
package priority

import (
	"encoding/json"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/terminal-bench/tempermill/internal/domain"
)

// maxConcurrentScorers bounds BatchCalculate's fan-out so a large coil
// pool doesn't spin up one goroutine per coil.
const maxConcurrentScorers = 16

// Delivery bucket names.
const (
	BucketDoubleOverdue = "double_overdue"
	BucketSuperOverdue  = "super_overdue"
	BucketOverdue       = "overdue"
	BucketD0            = "D+0"
	BucketD7            = "D+7"
	BucketCurrentPeriod = "current_period"
	BucketNextPeriod    = "next_period"
	BucketNoRequirement = "no_requirement"
)

const (
	overdueDoubleThresholdDays = 60
	overdueSuperThresholdDays  = 30
	deliveryD7ThresholdDays    = 7
)

// DimensionWeights weighs the six scoring dimensions. A weight of 0
// (or Enabled=false) removes that dimension from the weighted sum.
type DimensionWeights struct {
	Assessment  float64
	Delivery    float64
	Contract    float64
	Customer    float64
	Batch       float64
	ProductType float64

	AssessmentEnabled  bool
	DeliveryEnabled    bool
	ContractEnabled    bool
	CustomerEnabled    bool
	BatchEnabled       bool
	ProductTypeEnabled bool
}

// DefaultDimensionWeights mirrors priority.rs's DimensionWeights::default.
func DefaultDimensionWeights() DimensionWeights {
	return DimensionWeights{
		Assessment: 1.0, Delivery: 0.9, Contract: 0.5,
		Customer: 0.6, Batch: 0.4, ProductType: 0.5,
		AssessmentEnabled: true, DeliveryEnabled: true, ContractEnabled: true,
		CustomerEnabled: true, BatchEnabled: true, ProductTypeEnabled: true,
	}
}

// Context supplies the per-strategy lookup tables for delivery,
// contract, customer, batch and product-type scoring.
type Context struct {
	Weights DimensionWeights

	DeliveryScores map[string]float64
	ContractScores map[string]float64
	CustomerScores map[string]float64
	BatchScores    map[string]float64
	ProductScores  map[string]float64
}

// DefaultDeliveryScores mirrors priority.rs's default delivery bucket
// table.
func DefaultDeliveryScores() map[string]float64 {
	return map[string]float64{
		BucketD0:            1000,
		BucketD7:            900,
		BucketSuperOverdue:  800,
		BucketDoubleOverdue: 700,
		BucketOverdue:       600,
		BucketCurrentPeriod: 500,
		BucketNextPeriod:    300,
		BucketNoRequirement: 0,
	}
}

// DefaultContractScores mirrors priority.rs's default contract table,
// keyed by contract_attr (export_flag is handled separately as 100).
func DefaultContractScores() map[string]float64 {
	return map[string]float64{
		domain.ContractFutures:    90,
		domain.ContractSpot:       80,
		domain.ContractTransition: 70,
		domain.ContractOther:      0,
	}
}

// DefaultContext builds a Context with all default tables and weights.
func DefaultContext() Context {
	return Context{
		Weights:        DefaultDimensionWeights(),
		DeliveryScores: DefaultDeliveryScores(),
		ContractScores: DefaultContractScores(),
		CustomerScores: map[string]float64{},
		BatchScores:    map[string]float64{},
		ProductScores:  map[string]float64{},
	}
}

// Detail records every dimension's score and the reasons behind them,
// persisted as priority_detail / priority_reason.
type Detail struct {
	Assessment  DimensionScore `json:"assessment"`
	Delivery    DimensionScore `json:"delivery"`
	Contract    DimensionScore `json:"contract"`
	Customer    DimensionScore `json:"customer"`
	Batch       DimensionScore `json:"batch"`
	ProductType DimensionScore `json:"product_type"`
	Final       float64        `json:"final"`
}

// DimensionScore is one dimension's contribution.
type DimensionScore struct {
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// Result is the full outcome of scoring one coil.
type Result struct {
	Final  float64
	Detail Detail
	Reason string
}

// deliveryBucket classifies the integer day delta between due_date and
// today into one of the eight buckets, exactly as specified: negative
// deltas split at -30/-60, same-day is D+0, 0<delta<=7 is D+7,
// otherwise by calendar month.
func deliveryBucket(dueDate *time.Time, today time.Time) string {
	if dueDate == nil {
		return BucketNoRequirement
	}
	delta := int(dueDate.Sub(today).Hours() / 24)

	switch {
	case delta < 0:
		switch {
		case delta < -overdueDoubleThresholdDays:
			return BucketDoubleOverdue
		case delta < -overdueSuperThresholdDays:
			return BucketSuperOverdue
		default:
			return BucketOverdue
		}
	case delta == 0:
		return BucketD0
	case delta <= deliveryD7ThresholdDays:
		return BucketD7
	default:
		dueY, dueM, _ := dueDate.Date()
		todayY, todayM, _ := today.Date()
		if dueY == todayY && dueM == todayM {
			return BucketCurrentPeriod
		}
		nextM := todayM + 1
		nextY := todayY
		if nextM > 12 {
			nextM = 1
			nextY++
		}
		if dueY == nextY && dueM == nextM {
			return BucketNextPeriod
		}
		return BucketNoRequirement
	}
}

func calcAssessment(c domain.Coil) DimensionScore {
	if (c.ContractNature == "order" || c.ContractNature == "frame-order") && c.DueDate != nil {
		return DimensionScore{Score: 100, Reason: "order/frame-order with due date"}
	}
	return DimensionScore{Score: 0, Reason: "no assessment basis"}
}

func calcDelivery(c domain.Coil, ctx Context, today time.Time) DimensionScore {
	bucket := deliveryBucket(c.DueDate, today)
	score, ok := ctx.DeliveryScores[bucket]
	if !ok {
		score = 0
	}
	return DimensionScore{Score: score, Reason: "bucket=" + bucket}
}

func calcContract(c domain.Coil, ctx Context) DimensionScore {
	if c.ExportFlag {
		return DimensionScore{Score: 100, Reason: "export"}
	}
	score, ok := ctx.ContractScores[c.ContractAttr]
	if !ok {
		score = 0
	}
	return DimensionScore{Score: score, Reason: "contract_attr=" + c.ContractAttr}
}

func calcCustomer(c domain.Coil, ctx Context) DimensionScore {
	if score, ok := ctx.CustomerScores[c.CustomerCode]; ok {
		return DimensionScore{Score: score, Reason: "customer_code=" + c.CustomerCode}
	}
	return DimensionScore{Score: 50, Reason: "default customer score"}
}

func calcBatch(c domain.Coil, ctx Context) DimensionScore {
	if score, ok := ctx.BatchScores[c.BatchCode]; ok {
		return DimensionScore{Score: score, Reason: "batch_code=" + c.BatchCode}
	}
	return DimensionScore{Score: 0, Reason: "default batch score"}
}

func calcProductType(c domain.Coil, ctx Context) DimensionScore {
	if score, ok := ctx.ProductScores[c.ProductType]; ok {
		return DimensionScore{Score: score, Reason: "product_type=" + c.ProductType}
	}
	return DimensionScore{Score: 0, Reason: "default product_type score"}
}

func weighted(enabled bool, weight, score float64) float64 {
	if !enabled {
		return 0
	}
	return weight * score
}

// Calculate computes priority_final for one coil as of today.
func Calculate(c domain.Coil, ctx Context, today time.Time) Result {
	w := ctx.Weights

	assessment := calcAssessment(c)
	delivery := calcDelivery(c, ctx, today)
	contract := calcContract(c, ctx)
	customer := calcCustomer(c, ctx)
	batch := calcBatch(c, ctx)
	productType := calcProductType(c, ctx)

	sum := weighted(w.AssessmentEnabled, w.Assessment, assessment.Score) +
		weighted(w.DeliveryEnabled, w.Delivery, delivery.Score) +
		weighted(w.ContractEnabled, w.Contract, contract.Score) +
		weighted(w.CustomerEnabled, w.Customer, customer.Score) +
		weighted(w.BatchEnabled, w.Batch, batch.Score) +
		weighted(w.ProductTypeEnabled, w.ProductType, productType.Score)

	final := math.Round(sum + c.PriorityManualAdjust)

	detail := Detail{
		Assessment: assessment, Delivery: delivery, Contract: contract,
		Customer: customer, Batch: batch, ProductType: productType,
		Final: final,
	}

	return Result{
		Final:  final,
		Detail: detail,
		Reason: joinReasons(detail),
	}
}

func joinReasons(d Detail) string {
	reasons := []string{d.Assessment.Reason, d.Delivery.Reason, d.Contract.Reason, d.Customer.Reason, d.Batch.Reason, d.ProductType.Reason}
	out := ""
	for i, r := range reasons {
		if i > 0 {
			out += "; "
		}
		out += r
	}
	return out
}

// DetailJSON marshals a Detail for persistence in Coil.PriorityDetail.
func DetailJSON(d Detail) (string, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// BatchCalculate scores every coil in coils, returning updated copies
// with PriorityAuto/PriorityFinal/PriorityDetail/PriorityReason set.
// Scoring is pure per-coil, so it fans out across a bounded errgroup
// instead of a sequential loop; each goroutine only ever writes its own
// index of out, so no further synchronization is needed. The Repository
// write-back (UpdatePriorityFields) is left to the caller so this stays
// a pure function of its inputs.
func BatchCalculate(coils []domain.Coil, ctx Context, today, updatedAt time.Time) []domain.Coil {
	out := make([]domain.Coil, len(coils))

	var g errgroup.Group
	g.SetLimit(maxConcurrentScorers)

	for i, c := range coils {
		i, c := i, c
		g.Go(func() error {
			res := Calculate(c, ctx, today)
			detailJSON, err := DetailJSON(res.Detail)
			if err != nil {
				detailJSON = "{}"
			}
			c.PriorityAuto = res.Final
			c.PriorityFinal = res.Final
			c.PriorityDetail = detailJSON
			c.PriorityReason = res.Reason
			c.UpdatedAt = updatedAt
			out[i] = c
			return nil
		})
	}
	_ = g.Wait()

	return out
}
