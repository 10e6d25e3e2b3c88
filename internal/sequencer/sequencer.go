// Package sequencer fills a plan's shift calendar from a sorted coil
// pool, choosing each placement with a hybrid beam-search-with-greedy-
// fallback pick policy and tracking two parallel clocks per shift: a
// nominal check_time that gates feasibility against the shift window,
// and an actual_time used only to stamp planned_start/planned_end
// proportionally to each coil's weight.
package sequencer

import (
	"fmt"
	"strings"
	"time"

	"github.com/terminal-bench/tempermill/internal/domain"
	"github.com/terminal-bench/tempermill/internal/rollchange"
	"github.com/terminal-bench/tempermill/internal/sorter"
	"github.com/terminal-bench/tempermill/internal/validator"
	"github.com/terminal-bench/tempermill/pkg/config"
)

type schedulerMode int

const (
	modeHybrid schedulerMode = iota
	modeBeamOnly
	modeGreedyOnly
)

func parseMode(s string) schedulerMode {
	switch strings.ToLower(s) {
	case "beam":
		return modeBeamOnly
	case "greedy":
		return modeGreedyOnly
	default:
		return modeHybrid
	}
}

// PickMode records which policy actually produced a placement.
type PickMode int

const (
	PickBeam PickMode = iota
	PickGreedyFallback
	PickGreedyOnly
)

// Options bundles the tuning knobs Schedule needs beyond the sorted
// pool itself.
type Options struct {
	PlanStart string // YYYY-MM-DD
	PlanEnd   string
	Scheduler config.HybridSchedulerConfig
	Roll      config.RollChangeConfig
	Shift     config.ShiftConfig
	Capacity  config.CapacityConfig
}

// Result is everything the evaluator and the caller need after a run.
type Result struct {
	Items              []domain.ScheduleItem
	RollChanges        []rollchange.Point
	SchedulerModeUsed  string
	FallbackTriggered  bool
	BeamPickCount      int
	FallbackPickCount  int
	UnscheduledCount   int
	ScheduledPositions []int // indices into the original `sorted` slice, in schedule order
}

type candidateEval struct {
	needRollChange      bool
	nextCheckTime        float64
	nextShiftCumulative  float64
	nextRollCumulative   float64
}

type beamState struct {
	selectedPositions []int
	checkTime         float64
	shiftCumulative   float64
	rollCumulative    float64
	prevSortedIdx     int // -1 means none
	score             float64
}

func parseTimeMinutes(s string) float64 {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 8 * 60
	}
	return float64(t.Hour()*60 + t.Minute())
}

func formatMinutes(minutes float64) string {
	total := int(minutes + 0.5)
	h := (total / 60) % 24
	m := total % 60
	return fmt.Sprintf("%02d:%02d", h, m)
}

// NextDate increments a YYYY-MM-DD string by one calendar day.
func NextDate(date string) string {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return d.AddDate(0, 0, 1).Format("2006-01-02")
}

func evaluateCandidate(
	sm sorter.SortedCoil,
	rollCumulative, shiftCumulative, checkTime, shiftEnd, shiftCapacity, rhythmMinutes float64,
	rollCfg config.RollChangeConfig,
) (candidateEval, bool) {
	needRollChange := rollchange.ShouldChange(rollCumulative, rollCfg)
	extra := 0.0
	if needRollChange {
		extra = rollCfg.ChangeDurationMin
	}
	if checkTime+rhythmMinutes+extra > shiftEnd || shiftCumulative+sm.Coil.Weight > shiftCapacity {
		return candidateEval{}, false
	}
	nextRoll := rollCumulative + sm.Coil.Weight
	if needRollChange {
		nextRoll = sm.Coil.Weight
	}
	return candidateEval{
		needRollChange:      needRollChange,
		nextCheckTime:       checkTime + rhythmMinutes + extra,
		nextShiftCumulative: shiftCumulative + sm.Coil.Weight,
		nextRollCumulative:  nextRoll,
	}, true
}

func candidateIncrementScore(rank, totalCandidates int, sm sorter.SortedCoil, eval candidateEval, shiftCapacity, shiftCumulative float64) float64 {
	total := float64(totalCandidates)
	if total < 1 {
		total = 1
	}
	priorityRatio := 1.0 - float64(rank)/total
	remainBefore := shiftCapacity - shiftCumulative
	if remainBefore < 1.0 {
		remainBefore = 1.0
	}
	fillRatio := sm.Coil.Weight / remainBefore
	if fillRatio < 0 {
		fillRatio = 0
	}
	if fillRatio > 1 {
		fillRatio = 1
	}
	tailBonus := 0.0
	if shiftCapacity-eval.nextShiftCumulative <= 80.0 {
		tailBonus = 0.08
	}
	rollPenalty := 0.0
	if eval.needRollChange {
		rollPenalty = 0.10
	}
	return priorityRatio*0.62 + fillRatio*0.38 + tailBonus - rollPenalty
}

func greedyPickNextPosition(
	sorted []sorter.SortedCoil,
	availablePool []int,
	unscheduledPositions []int,
	prevSortedIdx int,
	rollCumulative, shiftCumulative, checkTime, shiftEnd, shiftCapacity, rhythmMinutes float64,
	rollCfg config.RollChangeConfig,
) int {
	best := -1
	bestScore := 0.0

	for rank, poolIdx := range unscheduledPositions {
		sortedIdx := availablePool[poolIdx]
		sm := sorted[sortedIdx]
		eval, ok := evaluateCandidate(sm, rollCumulative, shiftCumulative, checkTime, shiftEnd, shiftCapacity, rhythmMinutes, rollCfg)
		if !ok {
			continue
		}
		score := candidateIncrementScore(rank, len(unscheduledPositions), sm, eval, shiftCapacity, shiftCumulative)
		if best == -1 || score > bestScore {
			best = poolIdx
			bestScore = score
		}
	}
	return best
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func beamPickNextPosition(
	cfg config.HybridSchedulerConfig,
	beamNodesUsed *int,
	sorted []sorter.SortedCoil,
	availablePool []int,
	unscheduledPositions []int,
	prevSortedIdx int,
	rollCumulative, shiftCumulative, checkTime, shiftEnd, shiftCapacity, rhythmMinutes float64,
	rollCfg config.RollChangeConfig,
) int {
	if len(unscheduledPositions) == 0 || cfg.BeamWidth < 2 || cfg.BeamLookahead < 2 {
		return -1
	}

	candidatePositions := unscheduledPositions
	if len(candidatePositions) > cfg.BeamTopK {
		candidatePositions = candidatePositions[:cfg.BeamTopK]
	}
	if len(candidatePositions) == 0 {
		return -1
	}

	beam := []beamState{{
		selectedPositions: nil,
		checkTime:         checkTime,
		shiftCumulative:   shiftCumulative,
		rollCumulative:    rollCumulative,
		prevSortedIdx:     prevSortedIdx,
		score:             0.0,
	}}

	for step := 0; step < cfg.BeamLookahead; step++ {
		var nextBeam []beamState

		for _, state := range beam {
			for rank, poolIdx := range candidatePositions {
				if containsInt(state.selectedPositions, poolIdx) {
					continue
				}
				sortedIdx := availablePool[poolIdx]
				sm := sorted[sortedIdx]
				eval, ok := evaluateCandidate(sm, state.rollCumulative, state.shiftCumulative, state.checkTime, shiftEnd, shiftCapacity, rhythmMinutes, rollCfg)
				if !ok {
					continue
				}

				*beamNodesUsed++
				if *beamNodesUsed >= cfg.MaxNodes {
					bestState := bestBeamState(beam)
					if bestState != nil {
						return bestState.selectedPositions[0]
					}
					return -1
				}

				selected := make([]int, len(state.selectedPositions), len(state.selectedPositions)+1)
				copy(selected, state.selectedPositions)
				selected = append(selected, poolIdx)

				scoreDelta := candidateIncrementScore(rank, len(candidatePositions), sm, eval, shiftCapacity, state.shiftCumulative)
				nextBeam = append(nextBeam, beamState{
					selectedPositions: selected,
					checkTime:         eval.nextCheckTime,
					shiftCumulative:   eval.nextShiftCumulative,
					rollCumulative:    eval.nextRollCumulative,
					prevSortedIdx:     sortedIdx,
					score:             state.score + scoreDelta,
				})
			}
		}

		if len(nextBeam) == 0 {
			break
		}

		sortBeamByScoreDesc(nextBeam)
		if len(nextBeam) > cfg.BeamWidth {
			nextBeam = nextBeam[:cfg.BeamWidth]
		}
		beam = nextBeam
	}

	best := bestBeamState(beam)
	if best == nil {
		return -1
	}
	return best.selectedPositions[0]
}

func bestBeamState(beam []beamState) *beamState {
	var best *beamState
	for i := range beam {
		if len(beam[i].selectedPositions) == 0 {
			continue
		}
		if best == nil || beam[i].score > best.score {
			best = &beam[i]
		}
	}
	return best
}

func sortBeamByScoreDesc(beam []beamState) {
	for i := 1; i < len(beam); i++ {
		for j := i; j > 0 && beam[j].score > beam[j-1].score; j-- {
			beam[j], beam[j-1] = beam[j-1], beam[j]
		}
	}
}

func pickNextPoolPosition(
	cfg config.HybridSchedulerConfig,
	mode schedulerMode,
	elapsedMs int64,
	beamNodesUsed *int,
	sorted []sorter.SortedCoil,
	availablePool []int,
	unscheduledPositions []int,
	prevSortedIdx int,
	rollCumulative, shiftCumulative, checkTime, shiftEnd, shiftCapacity, rhythmMinutes float64,
	rollCfg config.RollChangeConfig,
) (int, PickMode, bool) {
	beamAllowed := mode != modeGreedyOnly && elapsedMs <= int64(cfg.TimeBudgetMs) && *beamNodesUsed < cfg.MaxNodes

	if beamAllowed {
		if idx := beamPickNextPosition(cfg, beamNodesUsed, sorted, availablePool, unscheduledPositions, prevSortedIdx, rollCumulative, shiftCumulative, checkTime, shiftEnd, shiftCapacity, rhythmMinutes, rollCfg); idx != -1 {
			return idx, PickBeam, true
		}
	}

	if mode == modeBeamOnly && !cfg.FallbackEnabled {
		return 0, 0, false
	}

	idx := greedyPickNextPosition(sorted, availablePool, unscheduledPositions, prevSortedIdx, rollCumulative, shiftCumulative, checkTime, shiftEnd, shiftCapacity, rhythmMinutes, rollCfg)
	if idx == -1 {
		return 0, 0, false
	}
	pm := PickGreedyFallback
	if mode == modeGreedyOnly {
		pm = PickGreedyOnly
	}
	return idx, pm, true
}

// Schedule fills the plan's shift calendar day by day, releasing
// future-pool (rolling-temper) coils as they become due, applying the
// hybrid pick policy, and stamping a roll change whenever the rolling
// tonnage threshold is crossed.
func Schedule(sorted []sorter.SortedCoil, violations []validator.Violation, opts Options) Result {
	mode := parseMode(opts.Scheduler.Mode)

	dayStartMin := parseTimeMinutes(opts.Shift.DayStart)
	dayEndMin := parseTimeMinutes(opts.Shift.DayEnd)
	nightStartMin := parseTimeMinutes(opts.Shift.NightStart)
	nightEndMin := dayStartMin + 24*60

	rhythmMinutes := opts.Capacity.AvgRhythmMin
	shiftCapacity := opts.Capacity.ShiftCapacity

	var availablePool []int
	var futurePool []int
	for i, sm := range sorted {
		if sm.EarliestReadyDate == "" {
			availablePool = append(availablePool, i)
		} else {
			futurePool = append(futurePool, i)
		}
	}

	violationsByCoil := map[int32][]validator.Violation{}
	for _, v := range violations {
		for _, sm := range sorted {
			if sm.Coil.CoilID == v.CoilID {
				violationsByCoil[sm.Coil.ID] = append(violationsByCoil[sm.Coil.ID], v)
				break
			}
		}
	}

	currentDate := opts.PlanStart
	sequenceNo := 1
	shiftNo := 1
	var allRollChanges []rollchange.Point
	var scheduledIndices []int

	start := time.Now()
	beamNodesUsed := 0
	beamPickCount := 0
	fallbackPickCount := 0

	var items []domain.ScheduleItem

	type shiftWindow struct {
		shiftType string
		start     float64
		end       float64
	}
	windows := []shiftWindow{
		{domain.ShiftDay, dayStartMin, dayEndMin},
		{domain.ShiftNight, nightStartMin, nightEndMin},
	}

	for currentDate <= opts.PlanEnd {
		var stillFuture []int
		for _, idx := range futurePool {
			if sorted[idx].EarliestReadyDate <= currentDate {
				availablePool = append(availablePool, idx)
			} else {
				stillFuture = append(stillFuture, idx)
			}
		}
		futurePool = stillFuture

		sortPoolBySortKeys(sorted, availablePool)

		rollCumulative := 0.0
		prevSortedIdx := -1
		dayScheduled := make([]bool, len(availablePool))

		for _, w := range windows {
			shiftCumulative := 0.0
			shiftDuration := w.end - w.start
			timePerTon := rhythmMinutes / 100.0
			if shiftCapacity > 0 {
				timePerTon = shiftDuration / shiftCapacity
			}
			checkTime := w.start
			actualTime := w.start

			for {
				var unscheduledPositions []int
				for idx, done := range dayScheduled {
					if !done {
						unscheduledPositions = append(unscheduledPositions, idx)
					}
				}
				if len(unscheduledPositions) == 0 {
					break
				}

				elapsedMs := time.Since(start).Milliseconds()
				poolIdx, pickMode, ok := pickNextPoolPosition(opts.Scheduler, mode, elapsedMs, &beamNodesUsed, sorted, availablePool, unscheduledPositions, prevSortedIdx, rollCumulative, shiftCumulative, checkTime, w.end, shiftCapacity, rhythmMinutes, opts.Roll)
				if !ok {
					break
				}

				switch pickMode {
				case PickBeam:
					beamPickCount++
				case PickGreedyFallback:
					fallbackPickCount++
				}

				sortedIdx := availablePool[poolIdx]
				sm := sorted[sortedIdx]

				needRollChange := rollchange.ShouldChange(rollCumulative, opts.Roll)
				extraTime := 0.0
				if needRollChange {
					extraTime = opts.Roll.ChangeDurationMin
				}

				if checkTime+rhythmMinutes+extraTime > w.end || shiftCumulative+sm.Coil.Weight > shiftCapacity {
					break
				}

				if needRollChange {
					checkTime += opts.Roll.ChangeDurationMin
					actualTime += opts.Roll.ChangeDurationMin
					afterIdx := 0
					if len(scheduledIndices) > 0 {
						afterIdx = len(scheduledIndices) - 1
					}
					atWidthJump := false
					if prevSortedIdx >= 0 {
						diff := sorted[prevSortedIdx].Coil.Width - sm.Coil.Width
						if diff < 0 {
							diff = -diff
						}
						atWidthJump = diff >= opts.Roll.WidthJumpThreshold
					}
					allRollChanges = append(allRollChanges, rollchange.Point{
						AfterIndex:       afterIdx,
						CumulativeWeight: rollCumulative,
						AtWidthJump:      atWidthJump,
						DurationMin:      opts.Roll.ChangeDurationMin,
					})
					rollCumulative = 0
				}

				itemDuration := sm.Coil.Weight * timePerTon
				if itemDuration < 1.0 {
					itemDuration = 1.0
				}
				plannedStart := formatMinutes(actualTime)
				actualTime += itemDuration
				plannedEnd := formatMinutes(actualTime)
				checkTime += rhythmMinutes
				shiftCumulative += sm.Coil.Weight
				rollCumulative += sm.Coil.Weight
				prevSortedIdx = sortedIdx

				var riskFlags []domain.RiskFlag
				for _, v := range violationsByCoil[sm.Coil.ID] {
					riskFlags = append(riskFlags, domain.RiskFlag{
						ConstraintType: v.ConstraintType,
						Severity:       v.Severity,
						Message:        v.Message,
						CoilID:         v.CoilID,
					})
				}
				if sm.EarliestReadyDate != "" {
					riskFlags = append(riskFlags, domain.RiskFlag{
						ConstraintType: "rolling_temp",
						Severity:       domain.SeverityInfo,
						Message:        fmt.Sprintf("rolling temper: ready on %s", sm.EarliestReadyDate),
						CoilID:         sm.Coil.CoilID,
						ReadyDate:      sm.EarliestReadyDate,
					})
				}

				items = append(items, domain.ScheduleItem{
					MaterialID:        sm.Coil.ID,
					CoilID:            sm.Coil.CoilID,
					Sequence:          sequenceNo,
					ShiftDate:         currentDate,
					ShiftNo:           shiftNo,
					ShiftType:         w.shiftType,
					PlannedStart:      plannedStart,
					PlannedEnd:        plannedEnd,
					CumulativeWeight:  shiftCumulative,
					IsRollChange:      needRollChange,
					RiskFlags:         riskFlags,
					EarliestReadyDate: sm.EarliestReadyDate,
				})

				scheduledIndices = append(scheduledIndices, sortedIdx)
				sequenceNo++
				dayScheduled[poolIdx] = true
			}

			shiftNo++
		}

		availablePool = removeScheduled(availablePool, dayScheduled)
		currentDate = NextDate(currentDate)
	}

	totalCount := len(scheduledIndices)
	modeUsed := "none"
	switch {
	case totalCount == 0:
	case beamPickCount > 0 && fallbackPickCount > 0:
		modeUsed = "hybrid"
	case beamPickCount > 0:
		modeUsed = "beam"
	default:
		modeUsed = "greedy"
	}

	return Result{
		Items:              items,
		RollChanges:        allRollChanges,
		SchedulerModeUsed:  modeUsed,
		FallbackTriggered:  fallbackPickCount > 0,
		BeamPickCount:      beamPickCount,
		FallbackPickCount:  fallbackPickCount,
		UnscheduledCount:   len(availablePool) + len(futurePool),
		ScheduledPositions: scheduledIndices,
	}
}

func removeScheduled(pool []int, scheduled []bool) []int {
	out := make([]int, 0, len(pool))
	for i, idx := range pool {
		if !scheduled[i] {
			out = append(out, idx)
		}
	}
	return out
}

// sortPoolBySortKeys re-sorts the pool of indices in place by the
// referenced coils' precomputed sort keys, mirroring sorter.compareSortKeys.
func sortPoolBySortKeys(sorted []sorter.SortedCoil, pool []int) {
	for i := 1; i < len(pool); i++ {
		for j := i; j > 0 && sorter.Less(sorted[pool[j]], sorted[pool[j-1]]); j-- {
			pool[j], pool[j-1] = pool[j-1], pool[j]
		}
	}
}
