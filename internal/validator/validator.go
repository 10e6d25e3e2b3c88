// Package validator implements HardValidator (inviolable rule
// detection) and SoftEvaluator (aesthetic penalty/bonus scoring).
package validator

import (
	"fmt"
	"time"

	"github.com/terminal-bench/tempermill/internal/domain"
	"github.com/terminal-bench/tempermill/internal/sorter"
	"github.com/terminal-bench/tempermill/pkg/config"
)

// Violation is one hard-constraint finding.
type Violation struct {
	ConstraintType string `json:"constraint_type"`
	Severity       string `json:"severity"`
	Message        string `json:"message"`
	Index          int    `json:"material_index"`
	CoilID         string `json:"material_id"`
}

// SoftScoreDetail is one soft-rule's contribution to the score
// adjustment.
type SoftScoreDetail struct {
	ConstraintType string `json:"constraint_type"`
	Adjust         int    `json:"adjust"`
	Count          int    `json:"count"`
	Description    string `json:"description"`
}

func enabled(cfg config.HardConstraintsConfig, constraintType string) (config.HardConstraint, bool) {
	for _, c := range cfg.Constraints {
		if c.Type == constraintType {
			return c, c.Enabled
		}
	}
	// Absent entries default to enabled with built-in defaults.
	return config.HardConstraint{Type: constraintType, Enabled: true}, true
}

func softEnabled(cfg config.SoftConstraintsConfig, constraintType string) (config.SoftConstraint, bool) {
	for _, c := range cfg.Constraints {
		if c.Type == constraintType {
			return c, c.Enabled
		}
	}
	return config.SoftConstraint{Type: constraintType, Enabled: true}, true
}

// CheckTempStatus flags a coil whose temp_status is not ready and which
// carries no earliest_ready_date (rolling-temper coils drawn from the
// future pool are exempt).
func CheckTempStatus(seq []sorter.SortedCoil) []Violation {
	var out []Violation
	for i, sc := range seq {
		if sc.Coil.TempStatus != domain.TempStatusReady && sc.EarliestReadyDate == "" {
			out = append(out, Violation{
				ConstraintType: "temp_status_filter",
				Severity:       domain.SeverityHigh,
				Message:        fmt.Sprintf("coil %s is not temper-ready", sc.Coil.CoilID),
				Index:          i,
				CoilID:         sc.Coil.CoilID,
			})
		}
	}
	return out
}

// CheckWidthJump flags adjacent coils whose width differs by strictly
// more than maxJump mm.
func CheckWidthJump(seq []sorter.SortedCoil, maxJump float64) []Violation {
	var out []Violation
	for i := 1; i < len(seq); i++ {
		diff := seq[i].Coil.Width - seq[i-1].Coil.Width
		if diff < 0 {
			diff = -diff
		}
		if diff > maxJump {
			out = append(out, Violation{
				ConstraintType: "width_jump",
				Severity:       domain.SeverityMedium,
				Message:        fmt.Sprintf("width jump of %.1fmm before coil %s", diff, seq[i].Coil.CoilID),
				Index:          i,
				CoilID:         seq[i].Coil.CoilID,
			})
		}
	}
	return out
}

// CheckOverduePriority flags a high violation on the last overdue coil
// if it appears after any non-overdue coil in the sequence.
func CheckOverduePriority(seq []sorter.SortedCoil, today time.Time) []Violation {
	lastOverdue := -1
	firstNonOverdue := -1

	for i, sc := range seq {
		overdue := sc.Coil.DueDate != nil && sc.Coil.DueDate.Before(today)
		if overdue {
			lastOverdue = i
		} else if firstNonOverdue == -1 {
			firstNonOverdue = i
		}
	}

	if lastOverdue == -1 || firstNonOverdue == -1 || lastOverdue <= firstNonOverdue {
		return nil
	}

	sc := seq[lastOverdue]
	return []Violation{{
		ConstraintType: "overdue_priority",
		Severity:       domain.SeverityHigh,
		Message:        fmt.Sprintf("overdue coil %s scheduled after non-overdue coils", sc.Coil.CoilID),
		Index:          lastOverdue,
		CoilID:         sc.Coil.CoilID,
	}}
}

// ValidateSequence runs the pre-sequencing hard rules (everything
// except shift_capacity, which needs shift assignments to exist).
func ValidateSequence(seq []sorter.SortedCoil, cfg config.HardConstraintsConfig, today time.Time) []Violation {
	var out []Violation

	if _, ok := enabled(cfg, "temp_status_filter"); ok {
		out = append(out, CheckTempStatus(seq)...)
	}

	if c, ok := enabled(cfg, "width_jump"); ok {
		maxJump := 100.0
		if c.MaxValue != nil {
			maxJump = *c.MaxValue
		}
		out = append(out, CheckWidthJump(seq, maxJump)...)
	}

	if _, ok := enabled(cfg, "overdue_priority"); ok {
		out = append(out, CheckOverduePriority(seq, today)...)
	}

	return out
}

// CheckShiftCapacity groups items by (shift_date, shift_type) and, for
// any group whose total weight exceeds capacity, flags a minimal
// reverse-order suffix of the group (removing the last items first)
// whose removal would bring the group back under capacity. Each item's
// CumulativeWeight is read as that item's own weight.
func CheckShiftCapacity(items []domain.ScheduleItem, capacity float64) []Violation {
	type key struct{ date, shift string }
	groups := map[key][]int{} // key -> indices into items, in original order
	var order []key

	for i, it := range items {
		k := key{it.ShiftDate, it.ShiftType}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], i)
	}

	var out []Violation
	for _, k := range order {
		idxs := groups[k]
		total := 0.0
		for _, i := range idxs {
			total += items[i].CumulativeWeight
		}
		if total <= capacity {
			continue
		}
		// Walk from the end, removing items until the remaining sum fits.
		remaining := total
		for j := len(idxs) - 1; j >= 0 && remaining > capacity; j-- {
			i := idxs[j]
			remaining -= items[i].CumulativeWeight
			out = append(out, Violation{
				ConstraintType: "shift_capacity",
				Severity:       domain.SeverityMedium,
				Message:        fmt.Sprintf("shift %s/%s exceeds capacity %.1ft", k.date, k.shift, capacity),
				Index:          i,
				CoilID:         items[i].CoilID,
			})
		}
	}

	return out
}

// --- Soft rules ---

// CountSteelGradeSwitches counts adjacent steel grade changes.
func CountSteelGradeSwitches(seq []sorter.SortedCoil) int {
	count := 0
	for i := 1; i < len(seq); i++ {
		if seq[i].Coil.SteelGrade != seq[i-1].Coil.SteelGrade {
			count++
		}
	}
	return count
}

// CountThicknessJumps counts adjacent thickness jumps over threshold.
func CountThicknessJumps(seq []sorter.SortedCoil, threshold float64) int {
	count := 0
	for i := 1; i < len(seq); i++ {
		diff := seq[i].Coil.Thickness - seq[i-1].Coil.Thickness
		if diff < 0 {
			diff = -diff
		}
		if diff > threshold {
			count++
		}
	}
	return count
}

// CountSurfaceBonus counts coils with a target surface level within
// withinCoils positions after each roll-change index.
func CountSurfaceBonus(seq []sorter.SortedCoil, rollChangeIndices []int, targetLevels []string, withinCoils int) int {
	targets := map[string]bool{}
	for _, t := range targetLevels {
		targets[t] = true
	}

	count := 0
	for _, idx := range rollChangeIndices {
		for j := idx + 1; j <= idx+withinCoils && j < len(seq); j++ {
			if targets[seq[j].Coil.SurfaceLevel] {
				count++
			}
		}
	}
	return count
}

// CountContractGroups counts maximal runs of length >= 2 of identical,
// non-empty contract_no.
func CountContractGroups(seq []sorter.SortedCoil) int {
	groups := 0
	runLen := 0
	var prev string

	flush := func() {
		if runLen >= 2 {
			groups++
		}
	}

	for _, sc := range seq {
		no := sc.Coil.ContractNo
		if no != "" && no == prev {
			runLen++
		} else {
			flush()
			runLen = 1
			prev = no
		}
	}
	flush()

	return groups
}

// EvaluateSoft runs every enabled soft rule over the final sequence
// and roll-change indices, returning the total integer adjustment and
// per-rule detail.
func EvaluateSoft(seq []sorter.SortedCoil, rollChangeIndices []int, cfg config.SoftConstraintsConfig) (int, []SoftScoreDetail) {
	total := 0
	var details []SoftScoreDetail

	if c, ok := softEnabled(cfg, "steel_grade_switch"); ok {
		penalty := 10.0
		if c.Penalty != nil {
			penalty = *c.Penalty
		}
		n := CountSteelGradeSwitches(seq)
		adjust := -int(penalty) * n
		total += adjust
		details = append(details, SoftScoreDetail{"steel_grade_switch", adjust, n, "steel grade switches"})
	}

	if c, ok := softEnabled(cfg, "thickness_jump"); ok {
		penalty := 5.0
		threshold := 1.0
		if c.Penalty != nil {
			penalty = *c.Penalty
		}
		if c.Threshold != nil {
			threshold = *c.Threshold
		}
		n := CountThicknessJumps(seq, threshold)
		adjust := -int(penalty) * n
		total += adjust
		details = append(details, SoftScoreDetail{"thickness_jump", adjust, n, "thickness jumps"})
	}

	if c, ok := softEnabled(cfg, "surface_after_roll_change"); ok {
		bonus := 20.0
		within := 5
		targets := []string{"FA", "FB"}
		if c.Bonus != nil {
			bonus = *c.Bonus
		}
		if c.WithinCoils != nil {
			within = *c.WithinCoils
		}
		if len(c.TargetLevels) > 0 {
			targets = c.TargetLevels
		}
		n := CountSurfaceBonus(seq, rollChangeIndices, targets, within)
		adjust := int(bonus) * n
		total += adjust
		details = append(details, SoftScoreDetail{"surface_after_roll_change", adjust, n, "good surface shortly after roll change"})
	}

	if c, ok := softEnabled(cfg, "contract_grouping"); ok {
		bonus := 10.0
		if c.Bonus != nil {
			bonus = *c.Bonus
		}
		n := CountContractGroups(seq)
		adjust := int(bonus) * n
		total += adjust
		details = append(details, SoftScoreDetail{"contract_grouping", adjust, n, "contract grouping runs"})
	}

	return total, details
}
