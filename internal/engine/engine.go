// Package engine composes the pure scheduling packages (temper,
// priority, sorter, validator, rollchange, sequencer, evaluator, risk,
// history) into the handful of stateful operations a plan's lifecycle
// needs, reading and writing through the Repository abstraction.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/terminal-bench/tempermill/internal/domain"
	"github.com/terminal-bench/tempermill/internal/evaluator"
	"github.com/terminal-bench/tempermill/internal/history"
	"github.com/terminal-bench/tempermill/internal/priority"
	"github.com/terminal-bench/tempermill/internal/risk"
	"github.com/terminal-bench/tempermill/internal/rollchange"
	"github.com/terminal-bench/tempermill/internal/sequencer"
	"github.com/terminal-bench/tempermill/internal/sorter"
	"github.com/terminal-bench/tempermill/internal/temper"
	"github.com/terminal-bench/tempermill/internal/validator"
	"github.com/terminal-bench/tempermill/pkg/cache"
	"github.com/terminal-bench/tempermill/pkg/config"
	"github.com/terminal-bench/tempermill/pkg/errs"
	"github.com/terminal-bench/tempermill/pkg/repository"
)

// Engine is the stateful facade the HTTP layer calls into.
type Engine struct {
	repo  repository.Repository
	now   func() time.Time
	cache *cache.Cache
	sched singleflight.Group
}

// New builds an Engine over repo, using time.Now for every clock read
// unless overridden (tests inject a fixed clock).
func New(repo repository.Repository) *Engine {
	return &Engine{repo: repo, now: time.Now}
}

// WithCache attaches a risk-dashboard cache to the engine. Without one,
// RiskAnalysis always recomputes.
func (e *Engine) WithCache(c *cache.Cache) *Engine {
	e.cache = c
	return e
}

func (e *Engine) clock() time.Time { return e.now() }

func riskCacheKey(planID int32) string {
	return fmt.Sprintf("risk:%d", planID)
}

func strategyConfigs(st domain.Strategy) (hard config.HardConstraintsConfig, soft config.SoftConstraintsConfig, weights config.EvalWeightsConfig, temperCfg config.TemperConfig, err error) {
	hard, err = config.ParseHardConstraints(st.HardConstraintsJSON)
	if err != nil {
		return
	}
	soft, err = config.ParseSoftConstraints(st.SoftConstraintsJSON)
	if err != nil {
		return
	}
	weights, err = config.ParseEvalWeights(st.EvalWeightsJSON)
	if err != nil {
		return
	}
	temperCfg, err = config.ParseTemperConfig(st.TemperRulesJSON)
	return
}

// ScheduleResult is what BuildSchedule reports back to callers.
type ScheduleResult struct {
	Plan  domain.Plan
	Items []domain.ScheduleItem
	Eval  evaluator.Result
}

// BuildSchedule runs the full temper -> priority -> sort -> validate ->
// sequence -> roll-change -> evaluate pipeline for planID and persists
// the result. Concurrent calls for the same planID (e.g. a double click
// on the UI's schedule button) collapse into a single run via
// singleflight, keyed per plan so other plans keep scheduling in
// parallel.
func (e *Engine) BuildSchedule(ctx context.Context, planID int32) (ScheduleResult, error) {
	v, err, _ := e.sched.Do(fmt.Sprintf("plan:%d", planID), func() (interface{}, error) {
		return e.buildSchedule(ctx, planID)
	})
	if err != nil {
		return ScheduleResult{}, err
	}
	return v.(ScheduleResult), nil
}

func (e *Engine) buildSchedule(ctx context.Context, planID int32) (ScheduleResult, error) {
	plan, err := e.repo.Plans().FindByID(ctx, planID)
	if err != nil {
		return ScheduleResult{}, err
	}
	strategy, err := e.repo.Strategies().FindByID(ctx, plan.StrategyID)
	if err != nil {
		return ScheduleResult{}, err
	}
	hardCfg, softCfg, weights, temperCfg, err := strategyConfigs(strategy)
	if err != nil {
		return ScheduleResult{}, errs.Wrap(errs.DataConversion, "parse strategy configuration", err)
	}

	coils, err := e.repo.Coils().List(ctx)
	if err != nil {
		return ScheduleResult{}, err
	}

	now := e.clock()
	coils, _ = temper.RefreshAll(coils, now, temperCfg)
	coils = priority.BatchCalculate(coils, priority.DefaultContext(), now, now)

	sortPriorities := strategy.SortPriorities
	if len(sortPriorities) == 0 {
		sortPriorities = sorter.DefaultPriorities()
	}
	sorted := sorter.Sort(coils, sortPriorities)

	preViolations := validator.ValidateSequence(sorted, hardCfg, now)

	schedulerCfg, err := e.loadSchedulerConfig(ctx)
	if err != nil {
		return ScheduleResult{}, err
	}
	rollCfg := config.ExtractRollChangeConfig(hardCfg)
	shiftCfg := config.DefaultShiftConfig()
	capCfg := config.DefaultCapacityConfig()

	seqResult := sequencer.Schedule(sorted, preViolations, sequencer.Options{
		PlanStart: plan.StartDate.Format("2006-01-02"),
		PlanEnd:   plan.EndDate.Format("2006-01-02"),
		Scheduler: schedulerCfg,
		Roll:      rollCfg,
		Shift:     shiftCfg,
		Capacity:  capCfg,
	})

	finalSequence := make([]sorter.SortedCoil, len(seqResult.ScheduledPositions))
	for i, idx := range seqResult.ScheduledPositions {
		finalSequence[i] = sorted[idx]
	}

	// CheckShiftCapacity sums CumulativeWeight per shift, so hand it each
	// item's own coil weight instead of the running shift total.
	capItems := append([]domain.ScheduleItem{}, seqResult.Items...)
	for i := range capItems {
		capItems[i].CumulativeWeight = finalSequence[i].Coil.Weight
	}
	shiftViolations := validator.CheckShiftCapacity(capItems, capCfg.ShiftCapacity)
	allViolations := append(append([]validator.Violation{}, preViolations...), shiftViolations...)

	softAdjust, softDetails := validator.EvaluateSoft(finalSequence, rollchange.Indices(seqResult.RollChanges), softCfg)

	planDays := int(plan.EndDate.Sub(plan.StartDate).Hours()/24) + 1
	evalResult := evaluator.Evaluate(finalSequence, seqResult.RollChanges, allViolations, softDetails, softAdjust, weights, capCfg.ShiftCapacity, planDays, now)

	if err := e.repo.Items().DeleteAllByPlan(ctx, planID); err != nil {
		return ScheduleResult{}, err
	}
	for i := range seqResult.Items {
		seqResult.Items[i].PlanID = planID
	}
	if err := e.repo.Items().Insert(ctx, seqResult.Items); err != nil {
		return ScheduleResult{}, err
	}

	plan.TotalCount = evalResult.Metrics.TotalCount
	plan.TotalWeight = evalResult.Metrics.TotalWeight
	plan.RollChangeCount = evalResult.Metrics.RollChangeCount
	plan.ScoreOverall = float64(evalResult.ScoreOverall)
	plan.ScoreSequence = float64(evalResult.ScoreSequence)
	plan.ScoreDelivery = float64(evalResult.ScoreDelivery)
	plan.ScoreEfficiency = float64(evalResult.ScoreEfficiency)
	plan.RiskCountHigh = evalResult.RiskHigh
	plan.RiskCountMedium = evalResult.RiskMedium
	plan.RiskCountLow = evalResult.RiskLow
	plan.RiskSummaryJSON = evalResult.RiskSummaryJSON
	plan.Status = domain.PlanStatusDraft
	plan.UpdatedAt = now

	if err := e.repo.Plans().UpsertAggregates(ctx, plan); err != nil {
		return ScheduleResult{}, err
	}

	if err := e.repo.OperationLog().Append(ctx, "schedule", "build", "plan", planID,
		fmt.Sprintf("scheduled %d coils, mode=%s, fallback=%v", len(seqResult.Items), seqResult.SchedulerModeUsed, seqResult.FallbackTriggered)); err != nil {
		return ScheduleResult{}, err
	}
	e.invalidateRiskCache(ctx, planID)

	return ScheduleResult{Plan: plan, Items: seqResult.Items, Eval: evalResult}, nil
}

func (e *Engine) loadSchedulerConfig(ctx context.Context) (config.HybridSchedulerConfig, error) {
	m, err := e.repo.Config().Map(ctx, "scheduler")
	if err != nil {
		return config.HybridSchedulerConfig{}, err
	}
	return config.HybridSchedulerConfigFromMap(m), nil
}

// RiskAnalysis builds the full risk dashboard for a plan, serving from
// cache when available since the UI polls this endpoint frequently.
func (e *Engine) RiskAnalysis(ctx context.Context, planID int32) (risk.Analysis, error) {
	if e.cache != nil {
		if raw, ok := e.cache.Get(ctx, riskCacheKey(planID)); ok {
			var cached risk.Analysis
			if json.Unmarshal(raw, &cached) == nil {
				return cached, nil
			}
		}
	}

	analysis, err := e.computeRiskAnalysis(ctx, planID)
	if err != nil {
		return risk.Analysis{}, err
	}

	if e.cache != nil {
		if raw, err := json.Marshal(analysis); err == nil {
			_ = e.cache.Set(ctx, riskCacheKey(planID), raw)
		}
	}
	return analysis, nil
}

func (e *Engine) invalidateRiskCache(ctx context.Context, planID int32) {
	if e.cache != nil {
		_ = e.cache.Invalidate(ctx, riskCacheKey(planID))
	}
}

func (e *Engine) computeRiskAnalysis(ctx context.Context, planID int32) (risk.Analysis, error) {
	plan, err := e.repo.Plans().FindByID(ctx, planID)
	if err != nil {
		return risk.Analysis{}, err
	}
	items, err := e.repo.Items().ListByPlan(ctx, planID)
	if err != nil {
		return risk.Analysis{}, err
	}
	coils, err := e.coilLookup(ctx, items)
	if err != nil {
		return risk.Analysis{}, err
	}

	strategy, err := e.repo.Strategies().FindByID(ctx, plan.StrategyID)
	if err != nil {
		return risk.Analysis{}, err
	}
	hardCfg, _, _, _, err := strategyConfigs(strategy)
	if err != nil {
		return risk.Analysis{}, err
	}
	widthThreshold := 100.0
	for _, c := range hardCfg.Constraints {
		if c.Type == "width_jump" && c.MaxValue != nil {
			widthThreshold = *c.MaxValue
		}
	}

	return risk.Analyze(items, coils, plan.IgnoredRisks, widthThreshold, 1.0, e.clock()), nil
}

func (e *Engine) coilLookup(ctx context.Context, items []domain.ScheduleItem) (map[string]domain.Coil, error) {
	ids := make([]int32, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.MaterialID)
	}
	coils, err := e.repo.Coils().ListByIDSet(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.Coil, len(coils))
	for _, c := range coils {
		out[c.CoilID] = c
	}
	return out, nil
}

// IgnoreRisk acknowledges a violation so it stops counting toward the
// plan's risk totals.
func (e *Engine) IgnoreRisk(ctx context.Context, planID int32, constraintType, coilID string) error {
	plan, err := e.repo.Plans().FindByID(ctx, planID)
	if err != nil {
		return err
	}
	updated := risk.IgnoreRisk(plan.IgnoredRisks, constraintType, coilID)
	if err := e.repo.Plans().SetIgnoredRisks(ctx, planID, updated); err != nil {
		return err
	}
	e.invalidateRiskCache(ctx, planID)
	return e.repo.OperationLog().Append(ctx, "schedule", "ignore_risk", "plan", planID,
		fmt.Sprintf("ignored %s on %s", constraintType, coilID))
}

// UnignoreRisk reverses IgnoreRisk.
func (e *Engine) UnignoreRisk(ctx context.Context, planID int32, constraintType, coilID string) error {
	plan, err := e.repo.Plans().FindByID(ctx, planID)
	if err != nil {
		return err
	}
	updated := risk.UnignoreRisk(plan.IgnoredRisks, constraintType, coilID)
	if err := e.repo.Plans().SetIgnoredRisks(ctx, planID, updated); err != nil {
		return err
	}
	e.invalidateRiskCache(ctx, planID)
	return e.repo.OperationLog().Append(ctx, "schedule", "unignore_risk", "plan", planID,
		fmt.Sprintf("unignored %s on %s", constraintType, coilID))
}

// ApplyRiskSuggestion repairs one violation, recording an undo step and
// re-persisting the plan's schedule items.
func (e *Engine) ApplyRiskSuggestion(ctx context.Context, planID int32, v risk.ViolationItem) (risk.RepairResult, error) {
	items, err := e.repo.Items().ListByPlan(ctx, planID)
	if err != nil {
		return risk.RepairResult{}, err
	}
	coils, err := e.coilLookup(ctx, items)
	if err != nil {
		return risk.RepairResult{}, err
	}

	before := append([]domain.ScheduleItem{}, items...)
	after, result := risk.Repair(items, coils, v, 100.0)
	if !result.Changed {
		return result, nil
	}

	// Repair renumbers Sequence on every change. A temper repair also
	// drops the coil and a shift-capacity repair changes its shift, so
	// those two rewrite the plan's items the way Undo/Redo do; every
	// other repair only reorders rows and is resequenced in place.
	if result.ReasonCode == "removed" || result.ReasonCode == "moved_to_next_shift" {
		if err := e.repo.Items().DeleteAllByPlan(ctx, planID); err != nil {
			return result, err
		}
		if err := e.repo.Items().Insert(ctx, after); err != nil {
			return result, err
		}
	} else {
		sequences := make(map[int32]int, len(after))
		for _, it := range after {
			sequences[it.ID] = it.Sequence
		}
		if err := e.repo.Items().UpdateSequenceBatch(ctx, planID, sequences); err != nil {
			return result, err
		}
	}

	if err := e.recordUndoStep(ctx, planID, "apply_risk_suggestion", before, after); err != nil {
		return result, err
	}

	if err := e.repo.OperationLog().Append(ctx, "schedule", "apply_risk_suggestion", "plan", planID, result.ActionNote); err != nil {
		return result, err
	}
	e.invalidateRiskCache(ctx, planID)
	return result, nil
}

func (e *Engine) recordUndoStep(ctx context.Context, planID int32, actionType string, before, after []domain.ScheduleItem) error {
	if err := e.repo.Undo().ClearRedoTail(ctx, planID); err != nil {
		return err
	}
	if err := e.repo.Undo().Push(ctx, domain.UndoRecord{
		PlanID: planID, ActionType: actionType, BeforeState: before, AfterState: after,
		IsUndone: false, CreatedAt: e.clock(),
	}); err != nil {
		return err
	}

	m, err := e.repo.Config().Map(ctx, "undo")
	if err != nil {
		return err
	}
	maxSteps := history.ClampMaxSteps(atoiOr(m["max_steps"], 50))
	return e.repo.Undo().CapToMax(ctx, planID, maxSteps)
}

func atoiOr(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return fallback
		}
		n = n*10 + int(r-'0')
	}
	return n
}

// Undo reverts the most recent schedule edit for planID. Which record
// that is, and what marking it undone does to the rest of the stack, is
// internal/history's call — the Postgres undoRepo only stores records
// and flips is_undone on the one history selects.
func (e *Engine) Undo(ctx context.Context, planID int32) (string, int, error) {
	records, err := e.repo.Undo().ListByPlan(ctx, planID)
	if err != nil {
		return "", 0, err
	}
	updated, rec, err := history.Undo(records, planID)
	if err == history.ErrNothingToUndo {
		return "", 0, errs.New(errs.NothingToUndo, "nothing to undo")
	}
	if err != nil {
		return "", 0, err
	}

	if err := e.repo.Items().DeleteAllByPlan(ctx, planID); err != nil {
		return "", 0, err
	}
	if err := e.repo.Items().Insert(ctx, rec.BeforeState); err != nil {
		return "", 0, err
	}
	if err := e.repo.Undo().MarkUndone(ctx, rec.ID, true); err != nil {
		return "", 0, err
	}
	if err := e.repo.OperationLog().Append(ctx, "schedule", "undo", "plan", planID, "undid "+rec.ActionType); err != nil {
		return "", 0, err
	}
	e.invalidateRiskCache(ctx, planID)

	remaining, _ := history.Counts(updated, planID)
	return rec.ActionType, remaining, nil
}

// Redo re-applies the most recently undone schedule edit for planID.
func (e *Engine) Redo(ctx context.Context, planID int32) (string, int, error) {
	records, err := e.repo.Undo().ListByPlan(ctx, planID)
	if err != nil {
		return "", 0, err
	}
	updated, rec, err := history.Redo(records, planID)
	if err == history.ErrNothingToRedo {
		return "", 0, errs.New(errs.NothingToRedo, "nothing to redo")
	}
	if err != nil {
		return "", 0, err
	}

	if err := e.repo.Items().DeleteAllByPlan(ctx, planID); err != nil {
		return "", 0, err
	}
	if err := e.repo.Items().Insert(ctx, rec.AfterState); err != nil {
		return "", 0, err
	}
	if err := e.repo.Undo().MarkUndone(ctx, rec.ID, false); err != nil {
		return "", 0, err
	}
	if err := e.repo.OperationLog().Append(ctx, "schedule", "redo", "plan", planID, "redid "+rec.ActionType); err != nil {
		return "", 0, err
	}
	e.invalidateRiskCache(ctx, planID)

	_, redoable := history.Counts(updated, planID)
	return rec.ActionType, redoable, nil
}

// UndoRedoCounts reports how many steps remain in each direction.
func (e *Engine) UndoRedoCounts(ctx context.Context, planID int32) (undo, redo int, err error) {
	return e.repo.Undo().Count(ctx, planID)
}

// WaitingForecast groups not-yet-ready coils by predicted ready date.
func (e *Engine) WaitingForecast(ctx context.Context) ([]temper.WaitingForecastBucket, error) {
	strategy, err := e.repo.Strategies().FindDefault(ctx)
	if err != nil {
		return nil, err
	}
	_, _, _, temperCfg, err := strategyConfigs(strategy)
	if err != nil {
		return nil, err
	}
	coils, err := e.repo.Coils().List(ctx)
	if err != nil {
		return nil, err
	}
	return temper.WaitingForecast(coils, e.clock(), temperCfg), nil
}
