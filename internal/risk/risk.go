// Package risk turns a scheduled plan's raw RiskFlags into the risk
// dashboard the operator acts on: an ignore/unignore ledger, shift and
// temper-distribution summaries, and a one-violation-at-a-time repair
// dispatcher that relocates or drops the offending coil.
package risk

import (
	"fmt"
	"sort"
	"time"

	"github.com/terminal-bench/tempermill/internal/domain"
	"github.com/terminal-bench/tempermill/internal/sequencer"
)

// ViolationItem is one risk-flag row enriched for display: its due
// bucket, whether the operator has acknowledged it, and its current
// sequence position.
type ViolationItem struct {
	ConstraintType string
	Severity       string
	Message        string
	CoilID         string
	Sequence       int
	DueDate        string
	DueBucket      string
	Ignored        bool
}

// WidthJumpItem and ThicknessJumpItem are the two adjacency-diff
// breakdowns shown alongside the raw violation list.
type WidthJumpItem struct {
	Sequence             int
	CoilID               string
	PrevCoilID           string
	WidthDiff            float64
	Width                float64
	PrevWidth            float64
	IsRollChangeBoundary bool
}

type ThicknessJumpItem struct {
	Sequence             int
	CoilID               string
	PrevCoilID           string
	ThicknessDiff        float64
	Thickness            float64
	PrevThickness        float64
	IsRollChangeBoundary bool
}

// ShiftSummary aggregates one (date, shift) bucket's load.
type ShiftSummary struct {
	ShiftDate   string
	ShiftType   string
	Count       int
	Weight      float64
	RollChanges int
}

// TempDistribution buckets the plan's coils by temper status.
type TempDistribution struct {
	Ready   int
	Waiting int
	Unknown int
}

// DueRiskDistribution buckets the plan's coils by delivery urgency.
type DueRiskDistribution struct {
	Overdue int
	In3     int
	In7     int
	Later   int
}

// Analysis is the full risk dashboard for one plan.
type Analysis struct {
	Violations          []ViolationItem
	WidthJumps          []WidthJumpItem
	ThicknessJumps      []ThicknessJumpItem
	ShiftSummary        []ShiftSummary
	TempDistribution    TempDistribution
	DueRiskDistribution DueRiskDistribution
	OverdueCount        int
	SteelGradeSwitches  int
	RiskHigh            int
	RiskMedium          int
	RiskLow             int
}

func dueBucket(due *time.Time, today time.Time) string {
	if due == nil {
		return "none"
	}
	diffDays := int(due.Sub(today).Hours() / 24)
	switch {
	case diffDays < 0:
		return "overdue"
	case diffDays <= 3:
		return "in3"
	case diffDays <= 7:
		return "in7"
	default:
		return "later"
	}
}

func isIgnored(ignored []domain.IgnoredRisk, constraintType, coilID string) bool {
	for _, ir := range ignored {
		if ir.ConstraintType == constraintType && ir.CoilID == coilID {
			return true
		}
	}
	return false
}

// Analyze builds the full dashboard from a plan's scheduled items
// (with their RiskFlags already populated by the Sequencer or a prior
// Recalculate) and its coil lookup.
func Analyze(items []domain.ScheduleItem, coils map[string]domain.Coil, ignored []domain.IgnoredRisk, widthJumpThreshold, thicknessJumpThreshold float64, today time.Time) Analysis {
	var violations []ViolationItem
	for _, it := range items {
		for _, f := range it.RiskFlags {
			coilID := f.CoilID
			if coilID == "" {
				coilID = it.CoilID
			}
			c, ok := coils[coilID]
			var dueStr, bucket string
			if ok {
				bucket = dueBucket(c.DueDate, today)
				if c.DueDate != nil {
					dueStr = c.DueDate.Format("2006-01-02")
				}
			} else {
				bucket = "none"
			}
			violations = append(violations, ViolationItem{
				ConstraintType: f.ConstraintType,
				Severity:       f.Severity,
				Message:        f.Message,
				CoilID:         coilID,
				Sequence:       it.Sequence,
				DueDate:        dueStr,
				DueBucket:      bucket,
				Ignored:        isIgnored(ignored, f.ConstraintType, coilID),
			})
		}
	}

	var widthJumps []WidthJumpItem
	var thicknessJumps []ThicknessJumpItem
	for i := 1; i < len(items); i++ {
		prev, pok := coils[items[i-1].CoilID]
		curr, cok := coils[items[i].CoilID]
		if !pok || !cok {
			continue
		}
		wdiff := curr.Width - prev.Width
		if wdiff < 0 {
			wdiff = -wdiff
		}
		if wdiff > widthJumpThreshold {
			widthJumps = append(widthJumps, WidthJumpItem{
				Sequence: items[i].Sequence, CoilID: curr.CoilID, PrevCoilID: prev.CoilID,
				WidthDiff: wdiff, Width: curr.Width, PrevWidth: prev.Width,
				IsRollChangeBoundary: items[i].IsRollChange,
			})
		}
		tdiff := curr.Thickness - prev.Thickness
		if tdiff < 0 {
			tdiff = -tdiff
		}
		if tdiff > thicknessJumpThreshold {
			thicknessJumps = append(thicknessJumps, ThicknessJumpItem{
				Sequence: items[i].Sequence, CoilID: curr.CoilID, PrevCoilID: prev.CoilID,
				ThicknessDiff: tdiff, Thickness: curr.Thickness, PrevThickness: prev.Thickness,
				IsRollChangeBoundary: items[i].IsRollChange,
			})
		}
	}

	type shiftKey struct{ date, stype string }
	shiftAgg := map[shiftKey]*ShiftSummary{}
	var shiftOrder []shiftKey
	ready, waiting, unknown := 0, 0, 0
	dueOverdue, dueIn3, dueIn7, dueLater := 0, 0, 0, 0
	steelSwitches := 0

	for i, it := range items {
		k := shiftKey{it.ShiftDate, it.ShiftType}
		agg, seen := shiftAgg[k]
		if !seen {
			agg = &ShiftSummary{ShiftDate: it.ShiftDate, ShiftType: it.ShiftType}
			shiftAgg[k] = agg
			shiftOrder = append(shiftOrder, k)
		}
		agg.Count++
		if it.IsRollChange {
			agg.RollChanges++
		}

		c, ok := coils[it.CoilID]
		if ok {
			agg.Weight += c.Weight
			switch c.TempStatus {
			case domain.TempStatusReady:
				ready++
			case domain.TempStatusWaiting:
				waiting++
			default:
				unknown++
			}
			if c.DueDate != nil {
				switch dueBucket(c.DueDate, today) {
				case "overdue":
					dueOverdue++
				case "in3":
					dueIn3++
				case "in7":
					dueIn7++
				default:
					dueLater++
				}
			}
		} else {
			unknown++
		}

		if i > 0 {
			prevCoil, pok := coils[items[i-1].CoilID]
			if pok && ok && prevCoil.SteelGrade != c.SteelGrade {
				steelSwitches++
			}
		}
	}

	sort.Slice(shiftOrder, func(i, j int) bool {
		a, b := shiftOrder[i], shiftOrder[j]
		if a.date != b.date {
			return a.date < b.date
		}
		return a.stype < b.stype
	})
	var summaries []ShiftSummary
	for _, k := range shiftOrder {
		summaries = append(summaries, *shiftAgg[k])
	}

	riskHigh, riskMedium, riskLow := 0, 0, 0
	for _, v := range violations {
		if v.Ignored {
			continue
		}
		switch v.Severity {
		case domain.SeverityHigh:
			riskHigh++
		case domain.SeverityMedium:
			riskMedium++
		case domain.SeverityLow:
			riskLow++
		}
	}

	return Analysis{
		Violations:          violations,
		WidthJumps:          widthJumps,
		ThicknessJumps:      thicknessJumps,
		ShiftSummary:        summaries,
		TempDistribution:    TempDistribution{Ready: ready, Waiting: waiting, Unknown: unknown},
		DueRiskDistribution: DueRiskDistribution{Overdue: dueOverdue, In3: dueIn3, In7: dueIn7, Later: dueLater},
		OverdueCount:        dueOverdue,
		SteelGradeSwitches:  steelSwitches,
		RiskHigh:            riskHigh,
		RiskMedium:          riskMedium,
		RiskLow:             riskLow,
	}
}

// IgnoreRisk appends a (constraint_type, coil_id) pair to the ledger
// if it isn't already present.
func IgnoreRisk(ignored []domain.IgnoredRisk, constraintType, coilID string) []domain.IgnoredRisk {
	entry := domain.IgnoredRisk{ConstraintType: constraintType, CoilID: coilID}
	for _, ir := range ignored {
		if ir == entry {
			return ignored
		}
	}
	return append(ignored, entry)
}

// UnignoreRisk removes a (constraint_type, coil_id) pair from the ledger.
func UnignoreRisk(ignored []domain.IgnoredRisk, constraintType, coilID string) []domain.IgnoredRisk {
	out := ignored[:0:0]
	for _, ir := range ignored {
		if ir.ConstraintType == constraintType && ir.CoilID == coilID {
			continue
		}
		out = append(out, ir)
	}
	return out
}

// RepairResult reports what Repair did (or why it declined).
type RepairResult struct {
	Changed        bool
	ReasonCode     string
	ConstraintType string
	CoilID         string
	Sequence       int
	ActionNote     string
}

func findByCoil(items []domain.ScheduleItem, coilID string) int {
	for i, it := range items {
		if it.CoilID == coilID {
			return i
		}
	}
	return -1
}

// Repair applies the one-violation-at-a-time suggestion for a single
// risk finding, mutating a copy of items in place and renumbering
// Sequence 1..N. The dispatch mirrors each constraint type's
// hand-tuned relocation rule; an unrecognized type falls through to a
// generic move-up-one-position nudge.
func Repair(items []domain.ScheduleItem, coils map[string]domain.Coil, v ViolationItem, widthJumpThreshold float64) ([]domain.ScheduleItem, RepairResult) {
	if len(items) == 0 {
		return items, RepairResult{ReasonCode: "empty_schedule", ConstraintType: v.ConstraintType, CoilID: v.CoilID, Sequence: v.Sequence, ActionNote: "schedule is empty, nothing to apply"}
	}

	out := make([]domain.ScheduleItem, len(items))
	copy(out, items)

	var changed bool
	var reasonCode, note string

	switch v.ConstraintType {
	case "overdue_priority":
		out, changed, reasonCode, note = repairOverduePriority(out, coils, v, widthJumpThreshold)
	case "width_jump":
		out, changed, reasonCode, note = repairWidthJump(out, coils, v)
	case "temp_status_filter":
		out, changed, reasonCode, note = repairTempStatus(out, v)
	case "shift_capacity":
		out, changed, reasonCode, note = repairShiftCapacity(out, v)
	default:
		out, changed, reasonCode, note = repairGeneric(out, v)
	}

	if changed {
		for i := range out {
			out[i].Sequence = i + 1
		}
	}

	return out, RepairResult{
		Changed:        changed,
		ReasonCode:     reasonCode,
		ConstraintType: v.ConstraintType,
		CoilID:         v.CoilID,
		Sequence:       v.Sequence,
		ActionNote:     note,
	}
}

func repairOverduePriority(items []domain.ScheduleItem, coils map[string]domain.Coil, v ViolationItem, widthJumpThreshold float64) ([]domain.ScheduleItem, bool, string, string) {
	pos := findByCoil(items, v.CoilID)
	if pos == -1 {
		return items, false, "not_found", fmt.Sprintf("coil %s is not in the current schedule", v.CoilID)
	}
	if items[pos].IsLocked {
		return items, false, "locked", fmt.Sprintf("coil %s is locked", v.CoilID)
	}
	if pos == 0 {
		return items, false, "already_top", fmt.Sprintf("coil %s is already first", v.CoilID)
	}

	targetWidth := coils[items[pos].CoilID].Width

	bestPos := 0
	foundCompatible := false
	for j := 0; j < pos; j++ {
		if items[j].IsLocked {
			continue
		}
		prevOK := true
		if j > 0 {
			prevOK = widthDiff(coils[items[j-1].CoilID].Width, targetWidth) < widthJumpThreshold
		}
		nextOK := widthDiff(coils[items[j].CoilID].Width, targetWidth) < widthJumpThreshold
		if prevOK && nextOK {
			bestPos = j
			foundCompatible = true
			break
		}
	}

	item := items[pos]
	items = append(items[:pos], items[pos+1:]...)
	items = append(items[:bestPos], append([]domain.ScheduleItem{item}, items[bestPos:]...)...)

	if foundCompatible {
		return items, true, "safe_forward", fmt.Sprintf("overdue priority: coil %s safely moved to #%d (width compatible)", v.CoilID, bestPos+1)
	}
	return items, true, "safe_forward", fmt.Sprintf("overdue priority: coil %s moved to front (no fully compatible slot, used earliest)", v.CoilID)
}

func widthDiff(a, b float64) float64 {
	d := a - b
	if d < 0 {
		return -d
	}
	return d
}

func repairWidthJump(items []domain.ScheduleItem, coils map[string]domain.Coil, v ViolationItem) ([]domain.ScheduleItem, bool, string, string) {
	pos := -1
	for i, it := range items {
		if it.Sequence == v.Sequence {
			pos = i
			break
		}
	}
	if pos == -1 {
		pos = findByCoil(items, v.CoilID)
	}
	if pos == -1 {
		return items, false, "not_found", fmt.Sprintf("coil %s is not in the current schedule", v.CoilID)
	}
	if items[pos].IsLocked {
		return items, false, "locked", fmt.Sprintf("coil %s is locked", v.CoilID)
	}

	targetWidth := coils[items[pos].CoilID].Width
	removed := items[pos]
	rest := append(append([]domain.ScheduleItem{}, items[:pos]...), items[pos+1:]...)

	bestPos := pos
	bestMaxDiff := -1.0
	for j := 0; j <= len(rest); j++ {
		diffPrev := 0.0
		if j > 0 {
			diffPrev = widthDiff(coils[rest[j-1].CoilID].Width, targetWidth)
		}
		diffNext := 0.0
		if j < len(rest) {
			diffNext = widthDiff(coils[rest[j].CoilID].Width, targetWidth)
		}
		maxDiff := diffPrev
		if diffNext > maxDiff {
			maxDiff = diffNext
		}
		if bestMaxDiff < 0 || maxDiff < bestMaxDiff {
			bestMaxDiff = maxDiff
			bestPos = j
		}
	}

	out := append(append([]domain.ScheduleItem{}, rest[:bestPos]...), append([]domain.ScheduleItem{removed}, rest[bestPos:]...)...)

	if bestPos == pos {
		return out, false, "already_optimal", fmt.Sprintf("width jump: coil %s is already at its best position", v.CoilID)
	}
	return out, true, "smart_reposition", fmt.Sprintf("width jump: coil %s relocated from #%d to #%d (max width diff %.0fmm)", v.CoilID, pos+1, bestPos+1, bestMaxDiff)
}

func repairTempStatus(items []domain.ScheduleItem, v ViolationItem) ([]domain.ScheduleItem, bool, string, string) {
	pos := findByCoil(items, v.CoilID)
	if pos == -1 {
		return items, false, "not_found", fmt.Sprintf("coil %s is not in the current schedule", v.CoilID)
	}
	if items[pos].IsLocked {
		return items, false, "locked", fmt.Sprintf("coil %s is locked, cannot remove", v.CoilID)
	}
	out := append(items[:pos:pos], items[pos+1:]...)
	return out, true, "removed", fmt.Sprintf("temper violation: removed coil %s from the schedule", v.CoilID)
}

func repairShiftCapacity(items []domain.ScheduleItem, v ViolationItem) ([]domain.ScheduleItem, bool, string, string) {
	pos := findByCoil(items, v.CoilID)
	if pos == -1 {
		return items, false, "not_found", fmt.Sprintf("coil %s is not in the current schedule", v.CoilID)
	}
	if items[pos].IsLocked {
		return items, false, "locked", fmt.Sprintf("coil %s is locked", v.CoilID)
	}

	currentDate := items[pos].ShiftDate
	currentType := items[pos].ShiftType
	var nextDate, nextType string
	if currentType == domain.ShiftDay {
		nextDate, nextType = currentDate, domain.ShiftNight
	} else {
		nextDate, nextType = sequencer.NextDate(currentDate), domain.ShiftDay
	}

	insertAfter := -1
	for i := len(items) - 1; i >= 0; i-- {
		it := items[i]
		if it.ShiftDate < nextDate ||
			(it.ShiftDate == nextDate && it.ShiftType == domain.ShiftDay && nextType == domain.ShiftNight) ||
			(it.ShiftDate == currentDate && it.ShiftType == currentType) {
			insertAfter = i
			break
		}
	}

	item := items[pos]
	item.ShiftDate = nextDate
	item.ShiftType = nextType
	rest := append(append([]domain.ScheduleItem{}, items[:pos]...), items[pos+1:]...)

	insertPos := len(rest)
	if insertAfter != -1 {
		if insertAfter >= pos {
			insertPos = insertAfter
		} else {
			insertPos = insertAfter + 1
		}
		if insertPos > len(rest) {
			insertPos = len(rest)
		}
	}

	out := append(append([]domain.ScheduleItem{}, rest[:insertPos]...), append([]domain.ScheduleItem{item}, rest[insertPos:]...)...)

	dayName := func(t string) string {
		if t == domain.ShiftDay {
			return "day"
		}
		return "night"
	}
	return out, true, "moved_to_next_shift", fmt.Sprintf("shift capacity: coil %s moved from %s %s shift to %s %s shift", v.CoilID, currentDate, dayName(currentType), nextDate, dayName(nextType))
}

func repairGeneric(items []domain.ScheduleItem, v ViolationItem) ([]domain.ScheduleItem, bool, string, string) {
	pos := findByCoil(items, v.CoilID)
	if pos == -1 {
		return items, false, "not_found", fmt.Sprintf("coil %s is not in the current schedule (constraint: %s)", v.CoilID, v.ConstraintType)
	}
	if pos == 0 {
		return items, false, "already_top", fmt.Sprintf("coil %s is already first (constraint: %s)", v.CoilID, v.ConstraintType)
	}
	if items[pos].IsLocked {
		return items, false, "locked", fmt.Sprintf("coil %s is locked (constraint: %s)", v.CoilID, v.ConstraintType)
	}
	items[pos-1], items[pos] = items[pos], items[pos-1]
	return items, true, "move_up", fmt.Sprintf("general suggestion: moved coil %s up one position (constraint: %s)", v.CoilID, v.ConstraintType)
}
