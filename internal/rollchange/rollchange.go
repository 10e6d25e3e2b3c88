// Package rollchange decides when a temper-mill roll change must
// precede a candidate coil, both live during sequencing and offline
// for the evaluator's post-hoc accounting.
package rollchange

import (
	"github.com/terminal-bench/tempermill/internal/sorter"
	"github.com/terminal-bench/tempermill/pkg/config"
	"github.com/terminal-bench/tempermill/pkg/decimal"
)

const searchRange = 3

// Point describes one roll change in a finished sequence.
type Point struct {
	AfterIndex       int
	CumulativeWeight float64
	AtWidthJump      bool
	DurationMin      float64
}

// ShouldChange reports whether a roll change is required before
// placing the next coil, given the tonnage accumulated since the last
// change. finish_last_coil semantics mean a change always happens once
// the threshold is reached — width-jump detection only decides whether
// the change coincides with a natural break, it never suppresses it.
func ShouldChange(cumulativeSinceLastChange float64, cfg config.RollChangeConfig) bool {
	cumulative := decimal.WeightFromFloat(cumulativeSinceLastChange)
	threshold := decimal.WeightFromFloat(cfg.TonnageThreshold)
	return cumulative.GreaterOrEqual(threshold)
}

// Calculate computes the roll-change points for a finished sequence,
// used by the evaluator and by RiskRecalc to re-derive roll_change_count
// after an operator edit. It re-walks the whole sequence accumulating
// weight and, once the threshold is crossed, searches ±3 positions
// around the trigger index for the widest qualifying width jump to
// report as the canonical change point.
func Calculate(sequence []sorter.SortedCoil, cfg config.RollChangeConfig) []Point {
	if len(sequence) == 0 {
		return nil
	}

	var points []Point
	cumulative := decimal.WeightFromFloat(0)
	threshold := decimal.WeightFromFloat(cfg.TonnageThreshold)

	for i := 0; i < len(sequence); i++ {
		cumulative = cumulative.Add(decimal.WeightFromFloat(sequence[i].Coil.Weight))

		if cumulative.GreaterOrEqual(threshold) && i < len(sequence)-1 {
			actualIdx := findBestChangePoint(sequence, i, cfg)

			atWidthJump := false
			if actualIdx+1 < len(sequence) {
				diff := abs(sequence[actualIdx].Coil.Width - sequence[actualIdx+1].Coil.Width)
				atWidthJump = diff >= cfg.WidthJumpThreshold
			}

			points = append(points, Point{
				AfterIndex:       actualIdx,
				CumulativeWeight: cumulative.Float64(),
				AtWidthJump:      atWidthJump,
				DurationMin:      cfg.ChangeDurationMin,
			})

			cumulative = decimal.WeightFromFloat(0)
		}
	}

	return points
}

func findBestChangePoint(sequence []sorter.SortedCoil, triggerIdx int, cfg config.RollChangeConfig) int {
	start := triggerIdx - searchRange
	if start < 0 {
		start = 0
	}
	end := triggerIdx + searchRange
	if end > len(sequence)-1 {
		end = len(sequence) - 1
	}

	best := triggerIdx
	bestJump := 0.0

	for i := start; i < end; i++ {
		if i+1 >= len(sequence) {
			break
		}
		diff := abs(sequence[i].Coil.Width - sequence[i+1].Coil.Width)
		if diff >= cfg.WidthJumpThreshold && diff > bestJump {
			bestJump = diff
			best = i
		}
	}

	return best
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// Indices extracts the after-index of each change point.
func Indices(points []Point) []int {
	out := make([]int, len(points))
	for i, p := range points {
		out[i] = p.AfterIndex
	}
	return out
}
