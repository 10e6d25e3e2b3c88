// Package decimal wraps shopspring/decimal for tonnage and length
// arithmetic where float64 accumulation would drift across a long
// schedule run (hundreds of coils summed per shift).
package decimal

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Weight represents a coil or cumulative tonnage value.
type Weight struct {
	value decimal.Decimal
}

// Length represents a width/thickness style measurement in mm.
type Length struct {
	value decimal.Decimal
}

// WeightFromFloat builds a Weight from a float64 tonnage value.
func WeightFromFloat(f float64) Weight {
	return Weight{value: decimal.NewFromFloat(f)}
}

// LengthFromFloat builds a Length from a float64 mm value.
func LengthFromFloat(f float64) Length {
	return Length{value: decimal.NewFromFloat(f)}
}

// Add returns the sum of two weights.
func (w Weight) Add(other Weight) Weight {
	return Weight{value: w.value.Add(other.value)}
}

// Sub returns the difference of two weights.
func (w Weight) Sub(other Weight) Weight {
	return Weight{value: w.value.Sub(other.value)}
}

// Cmp compares two weights (-1, 0, 1).
func (w Weight) Cmp(other Weight) int {
	return w.value.Cmp(other.value)
}

// GreaterOrEqual reports whether w >= other.
func (w Weight) GreaterOrEqual(other Weight) bool {
	return w.value.Cmp(other.value) >= 0
}

// IsZero reports whether the weight is exactly zero.
func (w Weight) IsZero() bool {
	return w.value.IsZero()
}

// Float64 converts back to float64 for formulas that are inherently
// approximate anyway (e.g. ratios fed into a 0-100 score).
func (w Weight) Float64() float64 {
	f, _ := w.value.Float64()
	return f
}

// String renders the weight with two decimal places.
func (w Weight) String() string {
	return w.value.StringFixed(2)
}

// Sub returns the absolute difference of two lengths.
func (l Length) Sub(other Length) Length {
	return Length{value: l.value.Sub(other.value).Abs()}
}

// GreaterThan reports whether l > other.
func (l Length) GreaterThan(other Length) bool {
	return l.value.Cmp(other.value) > 0
}

// GreaterOrEqual reports whether l >= other.
func (l Length) GreaterOrEqual(other Length) bool {
	return l.value.Cmp(other.value) >= 0
}

// Float64 converts back to float64.
func (l Length) Float64() float64 {
	f, _ := l.value.Float64()
	return f
}

// String renders the length with one decimal place.
func (l Length) String() string {
	return fmt.Sprintf("%smm", l.value.StringFixed(1))
}

// SumWeights totals a slice of per-coil float64 weights using exact
// decimal arithmetic, returning the result as a plain float64 for
// callers that only need the final ratio (capacity utilization, ideal
// roll-change count, etc.).
func SumWeights(weights []float64) float64 {
	total := decimal.NewFromInt(0)
	for _, w := range weights {
		total = total.Add(decimal.NewFromFloat(w))
	}
	f, _ := total.Float64()
	return f
}
