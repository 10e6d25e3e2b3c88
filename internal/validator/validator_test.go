package validator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/terminal-bench/tempermill/internal/domain"
	"github.com/terminal-bench/tempermill/internal/sorter"
	"github.com/terminal-bench/tempermill/pkg/config"
)

func sc(id string, width, thickness float64, ready bool) sorter.SortedCoil {
	status := domain.TempStatusReady
	if !ready {
		status = domain.TempStatusWaiting
	}
	return sorter.SortedCoil{Coil: domain.Coil{CoilID: id, Width: width, Thickness: thickness, TempStatus: status}}
}

func TestCheckTempStatusFlagsNotReady(t *testing.T) {
	seq := []sorter.SortedCoil{sc("A", 1000, 2, true), sc("B", 1000, 2, false)}
	v := CheckTempStatus(seq)
	assert.Len(t, v, 1)
	assert.Equal(t, "B", v[0].CoilID)
}

func TestCheckTempStatusExemptWithReadyDate(t *testing.T) {
	s := sc("B", 1000, 2, false)
	s.EarliestReadyDate = "2026-08-05"
	v := CheckTempStatus([]sorter.SortedCoil{s})
	assert.Empty(t, v)
}

func TestCheckWidthJumpStrictlyGreaterThan(t *testing.T) {
	t.Run("exactly at threshold is not a violation", func(t *testing.T) {
		seq := []sorter.SortedCoil{sc("A", 1000, 2, true), sc("B", 1100, 2, true)}
		v := CheckWidthJump(seq, 100)
		assert.Empty(t, v)
	})

	t.Run("over threshold is a violation", func(t *testing.T) {
		seq := []sorter.SortedCoil{sc("A", 1000, 2, true), sc("B", 1101, 2, true)}
		v := CheckWidthJump(seq, 100)
		assert.Len(t, v, 1)
		assert.Equal(t, "B", v[0].CoilID)
	})
}

func TestCheckOverduePriorityFlagsLastOutOfOrder(t *testing.T) {
	today := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	overdue := today.AddDate(0, 0, -5)
	notDue := today.AddDate(0, 0, 20)

	seq := []sorter.SortedCoil{
		{Coil: domain.Coil{CoilID: "A", DueDate: &notDue}},
		{Coil: domain.Coil{CoilID: "B", DueDate: &overdue}},
	}

	v := CheckOverduePriority(seq, today)
	assert.Len(t, v, 1)
	assert.Equal(t, "B", v[0].CoilID)
}

func TestCheckOverduePriorityNoViolationWhenOrdered(t *testing.T) {
	today := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	overdue := today.AddDate(0, 0, -5)
	notDue := today.AddDate(0, 0, 20)

	seq := []sorter.SortedCoil{
		{Coil: domain.Coil{CoilID: "B", DueDate: &overdue}},
		{Coil: domain.Coil{CoilID: "A", DueDate: &notDue}},
	}

	v := CheckOverduePriority(seq, today)
	assert.Empty(t, v)
}

func TestValidateSequenceAggregatesAllRules(t *testing.T) {
	today := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	seq := []sorter.SortedCoil{
		sc("A", 1000, 2, true),
		sc("B", 1300, 2, false),
	}
	v := ValidateSequence(seq, config.HardConstraintsConfig{}, today)
	kinds := map[string]bool{}
	for _, vi := range v {
		kinds[vi.ConstraintType] = true
	}
	assert.True(t, kinds["width_jump"])
	assert.True(t, kinds["temp_status_filter"])
}

func TestCheckShiftCapacityFlagsMinimalSuffix(t *testing.T) {
	items := []domain.ScheduleItem{
		{CoilID: "A", ShiftDate: "2026-08-01", ShiftType: domain.ShiftDay, CumulativeWeight: 400},
		{CoilID: "B", ShiftDate: "2026-08-01", ShiftType: domain.ShiftDay, CumulativeWeight: 400},
		{CoilID: "C", ShiftDate: "2026-08-01", ShiftType: domain.ShiftDay, CumulativeWeight: 400},
		{CoilID: "D", ShiftDate: "2026-08-01", ShiftType: domain.ShiftDay, CumulativeWeight: 400},
	}
	v := CheckShiftCapacity(items, 1200)
	assert.Len(t, v, 1)
	assert.Equal(t, "D", v[0].CoilID)
}

func TestCheckShiftCapacityNoViolationUnderCapacity(t *testing.T) {
	items := []domain.ScheduleItem{
		{CoilID: "A", ShiftDate: "2026-08-01", ShiftType: domain.ShiftDay, CumulativeWeight: 400},
		{CoilID: "B", ShiftDate: "2026-08-01", ShiftType: domain.ShiftDay, CumulativeWeight: 400},
	}
	v := CheckShiftCapacity(items, 1200)
	assert.Empty(t, v)
}

func TestCheckShiftCapacitySeparatesGroups(t *testing.T) {
	items := []domain.ScheduleItem{
		{CoilID: "A", ShiftDate: "2026-08-01", ShiftType: domain.ShiftDay, CumulativeWeight: 900},
		{CoilID: "B", ShiftDate: "2026-08-01", ShiftType: domain.ShiftNight, CumulativeWeight: 900},
	}
	v := CheckShiftCapacity(items, 1200)
	assert.Empty(t, v)
}

func TestCountSteelGradeSwitches(t *testing.T) {
	seq := []sorter.SortedCoil{
		{Coil: domain.Coil{SteelGrade: "Q195"}},
		{Coil: domain.Coil{SteelGrade: "Q195"}},
		{Coil: domain.Coil{SteelGrade: "SPCC"}},
	}
	assert.Equal(t, 1, CountSteelGradeSwitches(seq))
}

func TestCountThicknessJumps(t *testing.T) {
	seq := []sorter.SortedCoil{
		{Coil: domain.Coil{Thickness: 1.0}},
		{Coil: domain.Coil{Thickness: 2.5}},
	}
	assert.Equal(t, 1, CountThicknessJumps(seq, 1.0))
}

func TestCountSurfaceBonusWithinWindow(t *testing.T) {
	seq := []sorter.SortedCoil{
		{Coil: domain.Coil{CoilID: "A"}},
		{Coil: domain.Coil{CoilID: "B", SurfaceLevel: "FA"}},
		{Coil: domain.Coil{CoilID: "C", SurfaceLevel: "FC"}},
	}
	n := CountSurfaceBonus(seq, []int{0}, []string{"FA", "FB"}, 1)
	assert.Equal(t, 1, n)
}

func TestCountContractGroupsRequiresRunOfTwo(t *testing.T) {
	seq := []sorter.SortedCoil{
		{Coil: domain.Coil{ContractNo: "CT1"}},
		{Coil: domain.Coil{ContractNo: "CT1"}},
		{Coil: domain.Coil{ContractNo: "CT2"}},
		{Coil: domain.Coil{ContractNo: "CT3"}},
		{Coil: domain.Coil{ContractNo: "CT3"}},
	}
	assert.Equal(t, 2, CountContractGroups(seq))
}

func TestEvaluateSoftTotalsAllRules(t *testing.T) {
	seq := []sorter.SortedCoil{
		{Coil: domain.Coil{CoilID: "A", SteelGrade: "Q195", Thickness: 1.0, ContractNo: "CT1"}},
		{Coil: domain.Coil{CoilID: "B", SteelGrade: "SPCC", Thickness: 3.0, ContractNo: "CT1", SurfaceLevel: "FA"}},
	}
	total, details := EvaluateSoft(seq, []int{0}, config.SoftConstraintsConfig{})
	assert.NotEmpty(t, details)
	assert.NotZero(t, total)
}
