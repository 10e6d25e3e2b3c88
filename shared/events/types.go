package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types published on the operation log.
const (
	PlanScheduled      = "plan.scheduled"
	PlanRescheduled    = "plan.rescheduled"
	PlanRiskRecalced   = "plan.risk_recalculated"
	PlanRiskIgnored    = "plan.risk_ignored"
	PlanRiskUnignored  = "plan.risk_unignored"
	PlanRiskRepaired   = "plan.risk_repaired"
	PlanUndoApplied    = "plan.undo_applied"
	PlanRedoApplied    = "plan.redo_applied"
	MaterialTempered   = "material.tempered"
	TemperStatusBatch  = "material.temper_refreshed"
)

// BaseEvent contains common event fields for everything published to
// the operation log.
type BaseEvent struct {
	ID            uuid.UUID       `json:"id"`
	Type          string          `json:"type"`
	AggregateID   int32           `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	Timestamp     time.Time       `json:"timestamp"`
	Data          json.RawMessage `json:"data"`
	Metadata      Metadata        `json:"metadata"`
}

// Metadata carries correlation context for an event.
type Metadata struct {
	CorrelationID string `json:"correlation_id"`
	Source        string `json:"source"`
	Actor         string `json:"actor,omitempty"`
}

// PlanScheduledData is the payload for PlanScheduled/PlanRescheduled.
type PlanScheduledData struct {
	PlanID         int32   `json:"plan_id"`
	StrategyID     int32   `json:"strategy_id"`
	TotalCount     int     `json:"total_count"`
	TotalWeight    float64 `json:"total_weight"`
	RollChanges    int     `json:"roll_change_count"`
	ScoreOverall   float64 `json:"score_overall"`
	SchedulerMode  string  `json:"scheduler_mode"`
	PickFallbacks  int     `json:"pick_fallbacks"`
}

// RiskData is the payload for plan.risk_recalculated and related
// ignore/unignore/repair events.
type RiskData struct {
	PlanID        int32  `json:"plan_id"`
	ConstraintType string `json:"constraint_type,omitempty"`
	MaterialID    string `json:"material_id,omitempty"`
	RiskHigh      int    `json:"risk_high"`
	RiskMedium    int    `json:"risk_medium"`
	RiskLow       int    `json:"risk_low"`
}

// UndoRedoData is the payload for plan.undo_applied / plan.redo_applied.
type UndoRedoData struct {
	PlanID     int32  `json:"plan_id"`
	ActionType string `json:"action_type"`
	Remaining  int    `json:"remaining"`
}

// NewEvent builds a BaseEvent with the given payload marshaled into Data.
func NewEvent(eventType string, aggregateID int32, aggregateType string, data interface{}, meta Metadata) (*BaseEvent, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &BaseEvent{
		ID:            uuid.New(),
		Type:          eventType,
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		Timestamp:     time.Now(),
		Data:          payload,
		Metadata:      meta,
	}, nil
}

// ParseData unmarshals Data into v.
func (e *BaseEvent) ParseData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}
