package unit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/terminal-bench/tempermill/pkg/decimal"
)

func TestWeightArithmetic(t *testing.T) {
	t.Run("should add weights without float drift", func(t *testing.T) {
		a := decimal.WeightFromFloat(0.1)
		b := decimal.WeightFromFloat(0.2)
		assert.Equal(t, "0.30", a.Add(b).String())
	})

	t.Run("should compare weights", func(t *testing.T) {
		a := decimal.WeightFromFloat(800)
		b := decimal.WeightFromFloat(800)
		assert.True(t, a.GreaterOrEqual(b))
	})
}

func TestLengthComparison(t *testing.T) {
	t.Run("should compute absolute width difference", func(t *testing.T) {
		a := decimal.LengthFromFloat(1000)
		b := decimal.LengthFromFloat(1200)
		diff := a.Sub(b)
		assert.Equal(t, 200.0, diff.Float64())
	})

	t.Run("should treat jump strictly greater than threshold", func(t *testing.T) {
		diff := decimal.LengthFromFloat(100)
		threshold := decimal.LengthFromFloat(100)
		assert.False(t, diff.GreaterThan(threshold))
	})
}

func TestSumWeights(t *testing.T) {
	t.Run("should sum a slice of per-coil weights exactly", func(t *testing.T) {
		total := decimal.SumWeights([]float64{300, 300, 300, 300})
		assert.Equal(t, 1200.0, total)
	})

	t.Run("should return zero for an empty slice", func(t *testing.T) {
		assert.Equal(t, 0.0, decimal.SumWeights(nil))
	})
}
