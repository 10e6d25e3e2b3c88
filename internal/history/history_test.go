package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/terminal-bench/tempermill/internal/domain"
)

var t0 = time.Date(2026, 7, 31, 8, 0, 0, 0, time.UTC)

func items(ids ...string) []domain.ScheduleItem {
	var out []domain.ScheduleItem
	for i, id := range ids {
		out = append(out, domain.ScheduleItem{CoilID: id, Sequence: i + 1})
	}
	return out
}

func TestClampMaxStepsDefaultsTo50(t *testing.T) {
	assert.Equal(t, 50, ClampMaxSteps(0))
	assert.Equal(t, 1, ClampMaxSteps(-5))
	assert.Equal(t, 500, ClampMaxSteps(10000))
	assert.Equal(t, 10, ClampMaxSteps(10))
}

func TestPushUndoDropsRedoTrailOnNewAction(t *testing.T) {
	records := []domain.UndoRecord{
		{ID: 1, PlanID: 7, IsUndone: true, CreatedAt: t0},
		{ID: 2, PlanID: 7, IsUndone: false, CreatedAt: t0.Add(time.Minute)},
	}
	out := PushUndo(records, 7, 3, "reorder", items("C001"), items("C002"), 50, t0.Add(2*time.Minute))

	assert.Len(t, out, 2) // record 1 (redo trail) dropped, record 2 kept, record 3 appended
	for _, r := range out {
		assert.NotEqual(t, int32(1), r.ID)
	}
}

func TestPushUndoTrimsOldestBeyondMaxSteps(t *testing.T) {
	var records []domain.UndoRecord
	for i := 0; i < 3; i++ {
		records = append(records, domain.UndoRecord{ID: int32(i + 1), PlanID: 7, CreatedAt: t0.Add(time.Duration(i) * time.Minute)})
	}
	out := PushUndo(records, 7, 4, "reorder", nil, nil, 3, t0.Add(4*time.Minute))

	assert.Len(t, out, 3)
	ids := []int32{}
	for _, r := range out {
		ids = append(ids, r.ID)
	}
	assert.NotContains(t, ids, int32(1))
	assert.Contains(t, ids, int32(4))
}

func TestPushUndoLeavesOtherPlansUntouched(t *testing.T) {
	records := []domain.UndoRecord{{ID: 1, PlanID: 99, IsUndone: true, CreatedAt: t0}}
	out := PushUndo(records, 7, 2, "reorder", nil, nil, 50, t0.Add(time.Minute))

	assert.Len(t, out, 2)
}

func TestUndoMarksLatestNonUndoneRecord(t *testing.T) {
	records := []domain.UndoRecord{
		{ID: 1, PlanID: 7, ActionType: "a", CreatedAt: t0, BeforeState: items("C001")},
		{ID: 2, PlanID: 7, ActionType: "b", CreatedAt: t0.Add(time.Minute), BeforeState: items("C002")},
	}
	out, rec, err := Undo(records, 7)

	assert.NoError(t, err)
	assert.Equal(t, int32(2), rec.ID)
	assert.Equal(t, "C002", rec.BeforeState[0].CoilID)
	for _, r := range out {
		if r.ID == 2 {
			assert.True(t, r.IsUndone)
		}
	}
}

func TestUndoReturnsErrorWhenStackEmpty(t *testing.T) {
	_, _, err := Undo(nil, 7)
	assert.ErrorIs(t, err, ErrNothingToUndo)
}

func TestRedoRestoresLastUndoneActionFirst(t *testing.T) {
	records := []domain.UndoRecord{
		{ID: 1, PlanID: 7, ActionType: "a", CreatedAt: t0, AfterState: items("A")},
		{ID: 2, PlanID: 7, ActionType: "b", CreatedAt: t0.Add(time.Minute), AfterState: items("B")},
		{ID: 3, PlanID: 7, ActionType: "c", CreatedAt: t0.Add(2 * time.Minute), AfterState: items("C")},
	}

	// Undo twice: first undoes 3 (latest), then undoes 2.
	records, _, err := Undo(records, 7)
	assert.NoError(t, err)
	records, _, err = Undo(records, 7)
	assert.NoError(t, err)

	// Redo should restore 2 first (the most recently undone), not 1.
	_, rec, err := Redo(records, 7)
	assert.NoError(t, err)
	assert.Equal(t, int32(2), rec.ID)
}

func TestRedoReturnsErrorWhenNoneUndone(t *testing.T) {
	records := []domain.UndoRecord{{ID: 1, PlanID: 7, IsUndone: false, CreatedAt: t0}}
	_, _, err := Redo(records, 7)
	assert.ErrorIs(t, err, ErrNothingToRedo)
}

func TestCountsSeparatesUndoAndRedo(t *testing.T) {
	records := []domain.UndoRecord{
		{ID: 1, PlanID: 7, IsUndone: false},
		{ID: 2, PlanID: 7, IsUndone: true},
		{ID: 3, PlanID: 7, IsUndone: true},
		{ID: 4, PlanID: 99, IsUndone: false},
	}
	undoCount, redoCount := Counts(records, 7)
	assert.Equal(t, 1, undoCount)
	assert.Equal(t, 2, redoCount)
}

func TestClearRemovesOnlyMatchingPlan(t *testing.T) {
	records := []domain.UndoRecord{{ID: 1, PlanID: 7}, {ID: 2, PlanID: 99}}
	planID := int32(7)
	out, removed := Clear(records, &planID)

	assert.Equal(t, 1, removed)
	assert.Len(t, out, 1)
	assert.Equal(t, int32(99), out[0].PlanID)
}

func TestClearWithNilPlanIDRemovesEverything(t *testing.T) {
	records := []domain.UndoRecord{{ID: 1, PlanID: 7}, {ID: 2, PlanID: 99}}
	out, removed := Clear(records, nil)

	assert.Equal(t, 2, removed)
	assert.Empty(t, out)
}
