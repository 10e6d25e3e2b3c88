// Package history implements the undo/redo stack behind a plan's
// schedule edits: every mutating operation pushes a before/after
// snapshot, and undo/redo walk that stack in either direction.
package history

import (
	"errors"
	"time"

	"github.com/terminal-bench/tempermill/internal/domain"
)

// ErrNothingToUndo is returned when a plan has no un-undone record.
var ErrNothingToUndo = errors.New("nothing to undo")

// ErrNothingToRedo is returned when a plan has no undone record.
var ErrNothingToRedo = errors.New("nothing to redo")

// ClampMaxSteps applies the undo stack's configured depth, defaulting
// an unset (zero) value to 50 and clamping the rest to [1, 500].
func ClampMaxSteps(configured int) int {
	v := configured
	if v == 0 {
		v = 50
	}
	if v < 1 {
		v = 1
	}
	if v > 500 {
		v = 500
	}
	return v
}

// PushUndo records a new action for planID. Any already-undone records
// for the plan are dropped first, since a fresh action invalidates the
// redo trail; the stack is then trimmed to maxSteps, discarding the
// oldest entries.
func PushUndo(records []domain.UndoRecord, planID, nextID int32, actionType string, before, after []domain.ScheduleItem, maxSteps int, now time.Time) []domain.UndoRecord {
	out := make([]domain.UndoRecord, 0, len(records)+1)
	for _, r := range records {
		if r.PlanID == planID && r.IsUndone {
			continue
		}
		out = append(out, r)
	}

	out = append(out, domain.UndoRecord{
		ID:          nextID,
		PlanID:      planID,
		ActionType:  actionType,
		BeforeState: before,
		AfterState:  after,
		IsUndone:    false,
		CreatedAt:   now,
	})

	maxSteps = ClampMaxSteps(maxSteps)

	planCount := 0
	for _, r := range out {
		if r.PlanID == planID {
			planCount++
		}
	}
	if planCount <= maxSteps {
		return out
	}

	// Drop the oldest entries for this plan until it fits, preserving
	// relative order and leaving other plans' entries untouched.
	excess := planCount - maxSteps
	trimmed := make([]domain.UndoRecord, 0, len(out)-excess)
	dropped := 0
	for _, r := range out {
		if r.PlanID == planID && dropped < excess {
			dropped++
			continue
		}
		trimmed = append(trimmed, r)
	}
	return trimmed
}

// Undo marks the most recently created, not-yet-undone record for
// planID as undone and returns it so the caller can restore its
// BeforeState.
func Undo(records []domain.UndoRecord, planID int32) ([]domain.UndoRecord, *domain.UndoRecord, error) {
	latest := -1
	for i, r := range records {
		if r.PlanID != planID || r.IsUndone {
			continue
		}
		if latest == -1 || r.CreatedAt.After(records[latest].CreatedAt) {
			latest = i
		}
	}
	if latest == -1 {
		return records, nil, ErrNothingToUndo
	}

	out := make([]domain.UndoRecord, len(records))
	copy(out, records)
	out[latest].IsUndone = true
	result := out[latest]
	return out, &result, nil
}

// Redo marks the earliest-created undone record for planID as
// not-undone and returns it so the caller can restore its AfterState.
// Because undos always target the most recently created non-undone
// record, the set of currently-undone records forms a chain where the
// earliest by creation time is always the one undone last — so
// ordering by ascending CreatedAt reproduces correct last-undone-first
// redo order without tracking an explicit undo pointer.
func Redo(records []domain.UndoRecord, planID int32) ([]domain.UndoRecord, *domain.UndoRecord, error) {
	earliest := -1
	for i, r := range records {
		if r.PlanID != planID || !r.IsUndone {
			continue
		}
		if earliest == -1 || r.CreatedAt.Before(records[earliest].CreatedAt) {
			earliest = i
		}
	}
	if earliest == -1 {
		return records, nil, ErrNothingToRedo
	}

	out := make([]domain.UndoRecord, len(records))
	copy(out, records)
	out[earliest].IsUndone = false
	result := out[earliest]
	return out, &result, nil
}

// Counts reports how many steps remain undoable and redoable for a plan.
func Counts(records []domain.UndoRecord, planID int32) (undoCount, redoCount int) {
	for _, r := range records {
		if r.PlanID != planID {
			continue
		}
		if r.IsUndone {
			redoCount++
		} else {
			undoCount++
		}
	}
	return undoCount, redoCount
}

// Clear drops every record for planID, or every record in the stack
// when planID is nil, returning the surviving records and how many
// were removed.
func Clear(records []domain.UndoRecord, planID *int32) ([]domain.UndoRecord, int) {
	if planID == nil {
		return nil, len(records)
	}

	out := make([]domain.UndoRecord, 0, len(records))
	removed := 0
	for _, r := range records {
		if r.PlanID == *planID {
			removed++
			continue
		}
		out = append(out, r)
	}
	return out, removed
}
