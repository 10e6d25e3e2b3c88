package sequencer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/terminal-bench/tempermill/internal/domain"
	"github.com/terminal-bench/tempermill/internal/sorter"
	"github.com/terminal-bench/tempermill/internal/validator"
	"github.com/terminal-bench/tempermill/pkg/config"
)

func coilWrap(id string, width, weight float64) sorter.SortedCoil {
	return sorter.SortedCoil{Coil: domain.Coil{CoilID: id, Width: width, Weight: weight, TempStatus: domain.TempStatusReady}}
}

func TestPickNextPoolPositionSkipsInfeasibleHeadCandidate(t *testing.T) {
	sorted := []sorter.SortedCoil{
		coilWrap("C001", 1200, 150), // exceeds shift capacity, infeasible
		coilWrap("C002", 1150, 80),
	}
	availablePool := []int{0, 1}
	unscheduled := []int{0, 1}
	rollCfg := config.DefaultRollChangeConfig()
	cfg := config.DefaultHybridSchedulerConfig()
	beamNodesUsed := 0

	idx, mode, ok := pickNextPoolPosition(cfg, modeGreedyOnly, 0, &beamNodesUsed, sorted, availablePool, unscheduled, -1, 0, 0, 480, 720, 100, 3.5, rollCfg)

	assert.True(t, ok)
	assert.Equal(t, 1, idx)
	assert.Equal(t, PickGreedyOnly, mode)
}

func TestPickNextPoolPositionBeamOnlyWithoutFallbackReturnsNoneWhenBeamDisabled(t *testing.T) {
	sorted := []sorter.SortedCoil{coilWrap("C001", 1200, 80)}
	availablePool := []int{0}
	unscheduled := []int{0}
	rollCfg := config.DefaultRollChangeConfig()
	cfg := config.DefaultHybridSchedulerConfig()
	cfg.BeamWidth = 1 // beam immediately unavailable
	cfg.FallbackEnabled = false
	beamNodesUsed := 0

	_, _, ok := pickNextPoolPosition(cfg, modeBeamOnly, 0, &beamNodesUsed, sorted, availablePool, unscheduled, -1, 0, 0, 480, 720, 100, 3.5, rollCfg)

	assert.False(t, ok)
}

func TestPickNextPoolPositionHybridFallsBackToGreedyWhenBudgetExceeded(t *testing.T) {
	sorted := []sorter.SortedCoil{coilWrap("C001", 1200, 80)}
	availablePool := []int{0}
	unscheduled := []int{0}
	rollCfg := config.DefaultRollChangeConfig()
	cfg := config.DefaultHybridSchedulerConfig()
	cfg.TimeBudgetMs = 1
	cfg.FallbackEnabled = true
	beamNodesUsed := 0

	idx, mode, ok := pickNextPoolPosition(cfg, modeHybrid, 10, &beamNodesUsed, sorted, availablePool, unscheduled, -1, 0, 0, 480, 720, 100, 3.5, rollCfg)

	assert.True(t, ok)
	assert.Equal(t, 0, idx)
	assert.Equal(t, PickGreedyFallback, mode)
}

func TestScheduleSingleDayPlacesAllCoils(t *testing.T) {
	sorted := []sorter.SortedCoil{
		coilWrap("C001", 1000, 300),
		coilWrap("C002", 1000, 300),
		coilWrap("C003", 1000, 300),
	}

	opts := Options{
		PlanStart: "2026-08-01",
		PlanEnd:   "2026-08-01",
		Scheduler: config.DefaultHybridSchedulerConfig(),
		Roll:      config.DefaultRollChangeConfig(),
		Shift:     config.DefaultShiftConfig(),
		Capacity:  config.DefaultCapacityConfig(),
	}

	result := Schedule(sorted, nil, opts)

	assert.Len(t, result.Items, 3)
	assert.Equal(t, 0, result.UnscheduledCount)
	for i, item := range result.Items {
		assert.Equal(t, i+1, item.Sequence)
		assert.Equal(t, "2026-08-01", item.ShiftDate)
	}
}

func TestScheduleReleasesFuturePoolWhenDue(t *testing.T) {
	future := coilWrap("C002", 1000, 300)
	future.EarliestReadyDate = "2026-08-02"
	sorted := []sorter.SortedCoil{
		coilWrap("C001", 1000, 300),
		future,
	}

	opts := Options{
		PlanStart: "2026-08-01",
		PlanEnd:   "2026-08-02",
		Scheduler: config.DefaultHybridSchedulerConfig(),
		Roll:      config.DefaultRollChangeConfig(),
		Shift:     config.DefaultShiftConfig(),
		Capacity:  config.DefaultCapacityConfig(),
	}

	result := Schedule(sorted, nil, opts)

	assert.Len(t, result.Items, 2)
	var sawC002 bool
	for _, item := range result.Items {
		if item.CoilID == "C002" {
			sawC002 = true
			assert.Equal(t, "2026-08-02", item.ShiftDate)
		}
	}
	assert.True(t, sawC002)
}

func TestScheduleAppliesRollChangeAtTonnageThreshold(t *testing.T) {
	// 900t has accumulated before C004, past the 800t default threshold.
	sorted := []sorter.SortedCoil{
		coilWrap("C001", 1000, 300),
		coilWrap("C002", 1000, 300),
		coilWrap("C003", 1000, 300),
		coilWrap("C004", 1000, 300),
	}

	opts := Options{
		PlanStart: "2026-08-01",
		PlanEnd:   "2026-08-01",
		Scheduler: config.DefaultHybridSchedulerConfig(),
		Roll:      config.DefaultRollChangeConfig(),
		Shift:     config.DefaultShiftConfig(),
		Capacity:  config.DefaultCapacityConfig(),
	}

	result := Schedule(sorted, nil, opts)
	assert.NotEmpty(t, result.RollChanges)
}

func TestScheduleAttachesViolationRiskFlags(t *testing.T) {
	sorted := []sorter.SortedCoil{coilWrap("C001", 1000, 300)}
	violations := []validator.Violation{{ConstraintType: "width_jump", Severity: domain.SeverityMedium, CoilID: "C001"}}

	opts := Options{
		PlanStart: "2026-08-01",
		PlanEnd:   "2026-08-01",
		Scheduler: config.DefaultHybridSchedulerConfig(),
		Roll:      config.DefaultRollChangeConfig(),
		Shift:     config.DefaultShiftConfig(),
		Capacity:  config.DefaultCapacityConfig(),
	}

	result := Schedule(sorted, violations, opts)
	assert.Len(t, result.Items, 1)
	assert.Len(t, result.Items[0].RiskFlags, 1)
	assert.Equal(t, "width_jump", result.Items[0].RiskFlags[0].ConstraintType)
}

func TestNextDateAdvancesOneDay(t *testing.T) {
	assert.Equal(t, "2026-08-02", NextDate("2026-08-01"))
}
