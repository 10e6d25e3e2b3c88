// Package repository defines the storage abstraction the engine core
// consumes. Persistence itself is out of scope for the core (per the
// specification's Non-goals); this package only specifies the contract
// the core calls through, plus one reference Postgres implementation
// under repository/postgres, which no test in the module exercises.
package repository

import (
	"context"
	"time"

	"github.com/terminal-bench/tempermill/internal/domain"
)

// Coils groups the coil-entity operations the core needs.
type Coils interface {
	List(ctx context.Context) ([]domain.Coil, error)
	ListByIDSet(ctx context.Context, ids []int32) ([]domain.Coil, error)
	UpdatePriorityFields(ctx context.Context, id int32, auto, final float64, detail, reason string, updatedAt time.Time) error
	BulkUpdateTemperStatus(ctx context.Context, updates []TemperUpdate) error
}

// TemperUpdate is one row of a TemperRefresh bulk write.
type TemperUpdate struct {
	ID         int32
	TempStatus string
	WaitDays   int
	IsTempered bool
}

// Strategies groups strategy-entity operations.
type Strategies interface {
	FindByID(ctx context.Context, id int32) (domain.Strategy, error)
	FindDefault(ctx context.Context) (domain.Strategy, error)
}

// Plans groups plan-entity operations.
type Plans interface {
	FindByID(ctx context.Context, id int32) (domain.Plan, error)
	AncestorsAndDescendants(ctx context.Context, id int32) ([]domain.Plan, error)
	ListChildren(ctx context.Context, id int32) ([]domain.Plan, error)
	UpsertAggregates(ctx context.Context, plan domain.Plan) error
	SetIgnoredRisks(ctx context.Context, id int32, ignored []domain.IgnoredRisk) error
}

// Items groups schedule-item operations.
type Items interface {
	ListByPlan(ctx context.Context, planID int32) ([]domain.ScheduleItem, error)
	DeleteAllByPlan(ctx context.Context, planID int32) error
	Insert(ctx context.Context, items []domain.ScheduleItem) error
	UpdateSequenceBatch(ctx context.Context, planID int32, sequences map[int32]int) error
	UpdateShift(ctx context.Context, itemID int32, shiftDate, shiftType string) error
}

// Config exposes grouped configuration maps, keyed by group name:
// "scheduler", "shift", "capacity", "temp", "undo".
type Config interface {
	Map(ctx context.Context, group string) (map[string]string, error)
}

// OperationLog appends the one entry every state-changing public
// operation is required to write.
type OperationLog interface {
	Append(ctx context.Context, logType, action, targetType string, targetID int32, detail string) error
}

// Undo groups the undo/redo stack operations. It is deliberately thin:
// selecting which record an Undo/Redo should act on is internal/history's
// job, not the storage layer's, so Undo exposes the full per-plan record
// set plus single-record mutations rather than baking the stack's
// LIFO-correctness rules into SQL.
type Undo interface {
	Push(ctx context.Context, rec domain.UndoRecord) error
	ListByPlan(ctx context.Context, planID int32) ([]domain.UndoRecord, error)
	MarkUndone(ctx context.Context, id int32, undone bool) error
	ClearRedoTail(ctx context.Context, planID int32) error
	CapToMax(ctx context.Context, planID int32, n int) error
	Count(ctx context.Context, planID int32) (undone, redoable int, err error)
	Clear(ctx context.Context, planID *int32) error
}

// Repository is the full storage contract the engine core depends on.
type Repository interface {
	Coils() Coils
	Strategies() Strategies
	Plans() Plans
	Items() Items
	Config() Config
	OperationLog() OperationLog
	Undo() Undo
}
