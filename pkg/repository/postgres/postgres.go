// Package postgres implements the repository.Repository contract
// against a real Postgres database, following the plain
// database/sql + lib/pq driver style used across the retrieval pack's
// ledger and order stores: $N placeholders, ExecContext/QueryContext,
// context.Context threaded through every blocking call.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/terminal-bench/tempermill/internal/domain"
	"github.com/terminal-bench/tempermill/pkg/errs"
	"github.com/terminal-bench/tempermill/pkg/repository"
)

// Repository is the lib/pq-backed repository.Repository implementation.
type Repository struct {
	db *sql.DB
}

// Open dials Postgres via database/sql using the "postgres" driver
// registered by lib/pq's side-effect import, and verifies the
// connection with a Ping.
func Open(ctx context.Context, dsn string) (*Repository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errs.Wrap(errs.Storage, "open postgres connection", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errs.Wrap(errs.Storage, "ping postgres", err)
	}
	return &Repository{db: db}, nil
}

// Close releases the underlying connection pool.
func (r *Repository) Close() error { return r.db.Close() }

func (r *Repository) Coils() repository.Coils             { return coilsRepo{r.db} }
func (r *Repository) Strategies() repository.Strategies   { return strategiesRepo{r.db} }
func (r *Repository) Plans() repository.Plans             { return plansRepo{r.db} }
func (r *Repository) Items() repository.Items             { return itemsRepo{r.db} }
func (r *Repository) Config() repository.Config           { return configRepo{r.db} }
func (r *Repository) OperationLog() repository.OperationLog { return opLogRepo{r.db} }
func (r *Repository) Undo() repository.Undo               { return undoRepo{r.db} }

var _ repository.Repository = (*Repository)(nil)

// --- coils ---

type coilsRepo struct{ db *sql.DB }

func (c coilsRepo) List(ctx context.Context) ([]domain.Coil, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, coil_id, steel_grade, thickness, width, weight, hardness_level,
		       surface_level, product_type, contract_no, customer_code, customer_name,
		       contract_attr, contract_nature, export_flag, batch_code, due_date,
		       coiling_time, temp_status, wait_days, is_tempered, tempered_at,
		       status, priority_auto, priority_manual_adjust, priority_final,
		       priority_detail, priority_reason, updated_at
		FROM coils ORDER BY id`)
	if err != nil {
		return nil, errs.Wrap(errs.Storage, "list coils", err)
	}
	defer rows.Close()
	return scanCoils(rows)
}

func (c coilsRepo) ListByIDSet(ctx context.Context, ids []int32) ([]domain.Coil, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := c.db.QueryContext(ctx, `
		SELECT id, coil_id, steel_grade, thickness, width, weight, hardness_level,
		       surface_level, product_type, contract_no, customer_code, customer_name,
		       contract_attr, contract_nature, export_flag, batch_code, due_date,
		       coiling_time, temp_status, wait_days, is_tempered, tempered_at,
		       status, priority_auto, priority_manual_adjust, priority_final,
		       priority_detail, priority_reason, updated_at
		FROM coils WHERE id = ANY($1) ORDER BY id`, pq.Array(ids))
	if err != nil {
		return nil, errs.Wrap(errs.Storage, "list coils by id set", err)
	}
	defer rows.Close()
	return scanCoils(rows)
}

func scanCoils(rows *sql.Rows) ([]domain.Coil, error) {
	var out []domain.Coil
	for rows.Next() {
		var c domain.Coil
		if err := rows.Scan(
			&c.ID, &c.CoilID, &c.SteelGrade, &c.Thickness, &c.Width, &c.Weight, &c.HardnessLevel,
			&c.SurfaceLevel, &c.ProductType, &c.ContractNo, &c.CustomerCode, &c.CustomerName,
			&c.ContractAttr, &c.ContractNature, &c.ExportFlag, &c.BatchCode, &c.DueDate,
			&c.CoilingTime, &c.TempStatus, &c.WaitDays, &c.IsTempered, &c.TemperedAt,
			&c.Status, &c.PriorityAuto, &c.PriorityManualAdjust, &c.PriorityFinal,
			&c.PriorityDetail, &c.PriorityReason, &c.UpdatedAt,
		); err != nil {
			return nil, errs.Wrap(errs.Storage, "scan coil row", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (c coilsRepo) UpdatePriorityFields(ctx context.Context, id int32, auto, final float64, detail, reason string, updatedAt time.Time) error {
	_, err := c.db.ExecContext(ctx, `
		UPDATE coils SET priority_auto = $1, priority_final = $2, priority_detail = $3,
		       priority_reason = $4, updated_at = $5
		WHERE id = $6`, auto, final, detail, reason, updatedAt, id)
	if err != nil {
		return errs.Wrap(errs.Storage, fmt.Sprintf("update priority fields for coil %d", id), err)
	}
	return nil
}

func (c coilsRepo) BulkUpdateTemperStatus(ctx context.Context, updates []repository.TemperUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(errs.Storage, "begin temper update tx", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		UPDATE coils SET temp_status = $1, wait_days = $2, is_tempered = $3 WHERE id = $4`)
	if err != nil {
		return errs.Wrap(errs.Storage, "prepare temper update", err)
	}
	defer stmt.Close()

	for _, u := range updates {
		if _, err := stmt.ExecContext(ctx, u.TempStatus, u.WaitDays, u.IsTempered, u.ID); err != nil {
			return errs.Wrap(errs.Storage, fmt.Sprintf("update temper status for coil %d", u.ID), err)
		}
	}
	return tx.Commit()
}

// --- strategies ---

type strategiesRepo struct{ db *sql.DB }

func (s strategiesRepo) FindByID(ctx context.Context, id int32) (domain.Strategy, error) {
	return s.scanOne(ctx, `
		SELECT id, name, version, is_default, is_system,
		       hard_constraints_json, soft_constraints_json, eval_weights_json, temper_rules_json
		FROM strategies WHERE id = $1`, id)
}

func (s strategiesRepo) FindDefault(ctx context.Context) (domain.Strategy, error) {
	return s.scanOne(ctx, `
		SELECT id, name, version, is_default, is_system,
		       hard_constraints_json, soft_constraints_json, eval_weights_json, temper_rules_json
		FROM strategies WHERE is_default = true LIMIT 1`)
}

func (s strategiesRepo) scanOne(ctx context.Context, query string, args ...interface{}) (domain.Strategy, error) {
	var st domain.Strategy
	row := s.db.QueryRowContext(ctx, query, args...)
	err := row.Scan(&st.ID, &st.Name, &st.Version, &st.IsDefault, &st.IsSystem,
		&st.HardConstraintsJSON, &st.SoftConstraintsJSON, &st.EvalWeightsJSON, &st.TemperRulesJSON)
	if err == sql.ErrNoRows {
		return domain.Strategy{}, errs.New(errs.PlanNotFound, "strategy not found")
	}
	if err != nil {
		return domain.Strategy{}, errs.Wrap(errs.Storage, "scan strategy row", err)
	}
	return st, nil
}

// --- plans ---

type plansRepo struct{ db *sql.DB }

func (p plansRepo) FindByID(ctx context.Context, id int32) (domain.Plan, error) {
	var pl domain.Plan
	var ignoredJSON []byte
	row := p.db.QueryRowContext(ctx, `
		SELECT id, plan_no, strategy_id, parent_id, version, start_date, end_date, status,
		       total_count, total_weight, roll_change_count,
		       score_overall, score_sequence, score_delivery, score_efficiency,
		       risk_count_high, risk_count_medium, risk_count_low, risk_summary_json,
		       ignored_risks_json, updated_at
		FROM plans WHERE id = $1`, id)
	err := row.Scan(&pl.ID, &pl.PlanNo, &pl.StrategyID, &pl.ParentID, &pl.Version, &pl.StartDate, &pl.EndDate, &pl.Status,
		&pl.TotalCount, &pl.TotalWeight, &pl.RollChangeCount,
		&pl.ScoreOverall, &pl.ScoreSequence, &pl.ScoreDelivery, &pl.ScoreEfficiency,
		&pl.RiskCountHigh, &pl.RiskCountMedium, &pl.RiskCountLow, &pl.RiskSummaryJSON,
		&ignoredJSON, &pl.UpdatedAt)
	if err == sql.ErrNoRows {
		return domain.Plan{}, errs.New(errs.PlanNotFound, fmt.Sprintf("plan %d not found", id))
	}
	if err != nil {
		return domain.Plan{}, errs.Wrap(errs.Storage, "scan plan row", err)
	}
	if len(ignoredJSON) > 0 {
		if err := json.Unmarshal(ignoredJSON, &pl.IgnoredRisks); err != nil {
			return domain.Plan{}, errs.Wrap(errs.DataConversion, "unmarshal ignored_risks_json", err)
		}
	}
	return pl, nil
}

func (p plansRepo) AncestorsAndDescendants(ctx context.Context, id int32) ([]domain.Plan, error) {
	rows, err := p.db.QueryContext(ctx, `
		WITH RECURSIVE family AS (
			SELECT * FROM plans WHERE id = $1
			UNION
			SELECT pl.* FROM plans pl JOIN family f ON pl.id = f.parent_id OR pl.parent_id = f.id
		)
		SELECT id, plan_no, strategy_id, parent_id, version, start_date, end_date, status,
		       total_count, total_weight, roll_change_count,
		       score_overall, score_sequence, score_delivery, score_efficiency,
		       risk_count_high, risk_count_medium, risk_count_low, risk_summary_json,
		       ignored_risks_json, updated_at
		FROM family`, id)
	if err != nil {
		return nil, errs.Wrap(errs.Storage, "query plan family", err)
	}
	defer rows.Close()
	return scanPlans(rows)
}

func (p plansRepo) ListChildren(ctx context.Context, id int32) ([]domain.Plan, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, plan_no, strategy_id, parent_id, version, start_date, end_date, status,
		       total_count, total_weight, roll_change_count,
		       score_overall, score_sequence, score_delivery, score_efficiency,
		       risk_count_high, risk_count_medium, risk_count_low, risk_summary_json,
		       ignored_risks_json, updated_at
		FROM plans WHERE parent_id = $1`, id)
	if err != nil {
		return nil, errs.Wrap(errs.Storage, "list plan children", err)
	}
	defer rows.Close()
	return scanPlans(rows)
}

func scanPlans(rows *sql.Rows) ([]domain.Plan, error) {
	var out []domain.Plan
	for rows.Next() {
		var pl domain.Plan
		var ignoredJSON []byte
		if err := rows.Scan(&pl.ID, &pl.PlanNo, &pl.StrategyID, &pl.ParentID, &pl.Version, &pl.StartDate, &pl.EndDate, &pl.Status,
			&pl.TotalCount, &pl.TotalWeight, &pl.RollChangeCount,
			&pl.ScoreOverall, &pl.ScoreSequence, &pl.ScoreDelivery, &pl.ScoreEfficiency,
			&pl.RiskCountHigh, &pl.RiskCountMedium, &pl.RiskCountLow, &pl.RiskSummaryJSON,
			&ignoredJSON, &pl.UpdatedAt); err != nil {
			return nil, errs.Wrap(errs.Storage, "scan plan row", err)
		}
		if len(ignoredJSON) > 0 {
			if err := json.Unmarshal(ignoredJSON, &pl.IgnoredRisks); err != nil {
				return nil, errs.Wrap(errs.DataConversion, "unmarshal ignored_risks_json", err)
			}
		}
		out = append(out, pl)
	}
	return out, rows.Err()
}

func (p plansRepo) UpsertAggregates(ctx context.Context, plan domain.Plan) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE plans SET
			total_count = $1, total_weight = $2, roll_change_count = $3,
			score_overall = $4, score_sequence = $5, score_delivery = $6, score_efficiency = $7,
			risk_count_high = $8, risk_count_medium = $9, risk_count_low = $10,
			risk_summary_json = $11, status = $12, updated_at = $13
		WHERE id = $14`,
		plan.TotalCount, plan.TotalWeight, plan.RollChangeCount,
		plan.ScoreOverall, plan.ScoreSequence, plan.ScoreDelivery, plan.ScoreEfficiency,
		plan.RiskCountHigh, plan.RiskCountMedium, plan.RiskCountLow,
		plan.RiskSummaryJSON, plan.Status, plan.UpdatedAt, plan.ID)
	if err != nil {
		return errs.Wrap(errs.Storage, fmt.Sprintf("upsert aggregates for plan %d", plan.ID), err)
	}
	return nil
}

func (p plansRepo) SetIgnoredRisks(ctx context.Context, id int32, ignored []domain.IgnoredRisk) error {
	blob, err := json.Marshal(ignored)
	if err != nil {
		return errs.Wrap(errs.DataConversion, "marshal ignored risks", err)
	}
	_, err = p.db.ExecContext(ctx, `UPDATE plans SET ignored_risks_json = $1 WHERE id = $2`, blob, id)
	if err != nil {
		return errs.Wrap(errs.Storage, fmt.Sprintf("set ignored risks for plan %d", id), err)
	}
	return nil
}

// --- schedule items ---

type itemsRepo struct{ db *sql.DB }

func (it itemsRepo) ListByPlan(ctx context.Context, planID int32) ([]domain.ScheduleItem, error) {
	rows, err := it.db.QueryContext(ctx, `
		SELECT id, plan_id, material_id, coil_id, sequence, shift_date, shift_no, shift_type,
		       planned_start, planned_end, cumulative_weight, is_roll_change,
		       is_locked, lock_reason, risk_flags_json, earliest_ready_date
		FROM schedule_items WHERE plan_id = $1 ORDER BY sequence`, planID)
	if err != nil {
		return nil, errs.Wrap(errs.Storage, "list schedule items", err)
	}
	defer rows.Close()

	var out []domain.ScheduleItem
	for rows.Next() {
		var si domain.ScheduleItem
		var flagsJSON []byte
		if err := rows.Scan(&si.ID, &si.PlanID, &si.MaterialID, &si.CoilID, &si.Sequence, &si.ShiftDate, &si.ShiftNo, &si.ShiftType,
			&si.PlannedStart, &si.PlannedEnd, &si.CumulativeWeight, &si.IsRollChange,
			&si.IsLocked, &si.LockReason, &flagsJSON, &si.EarliestReadyDate); err != nil {
			return nil, errs.Wrap(errs.Storage, "scan schedule item row", err)
		}
		if len(flagsJSON) > 0 {
			if err := json.Unmarshal(flagsJSON, &si.RiskFlags); err != nil {
				return nil, errs.Wrap(errs.DataConversion, "unmarshal risk_flags_json", err)
			}
		}
		out = append(out, si)
	}
	return out, rows.Err()
}

func (it itemsRepo) DeleteAllByPlan(ctx context.Context, planID int32) error {
	_, err := it.db.ExecContext(ctx, `DELETE FROM schedule_items WHERE plan_id = $1`, planID)
	if err != nil {
		return errs.Wrap(errs.Storage, fmt.Sprintf("delete schedule items for plan %d", planID), err)
	}
	return nil
}

func (it itemsRepo) Insert(ctx context.Context, items []domain.ScheduleItem) error {
	if len(items) == 0 {
		return nil
	}
	tx, err := it.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(errs.Storage, "begin insert tx", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO schedule_items
			(plan_id, material_id, coil_id, sequence, shift_date, shift_no, shift_type,
			 planned_start, planned_end, cumulative_weight, is_roll_change,
			 is_locked, lock_reason, risk_flags_json, earliest_ready_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`)
	if err != nil {
		return errs.Wrap(errs.Storage, "prepare insert schedule item", err)
	}
	defer stmt.Close()

	for _, si := range items {
		flagsJSON, err := json.Marshal(si.RiskFlags)
		if err != nil {
			return errs.Wrap(errs.DataConversion, "marshal risk flags", err)
		}
		if _, err := stmt.ExecContext(ctx, si.PlanID, si.MaterialID, si.CoilID, si.Sequence, si.ShiftDate, si.ShiftNo, si.ShiftType,
			si.PlannedStart, si.PlannedEnd, si.CumulativeWeight, si.IsRollChange,
			si.IsLocked, si.LockReason, flagsJSON, si.EarliestReadyDate); err != nil {
			return errs.Wrap(errs.Storage, fmt.Sprintf("insert schedule item for coil %s", si.CoilID), err)
		}
	}
	return tx.Commit()
}

// UpdateSequenceBatch renumbers a set of existing rows in place without
// deleting and reinserting them, preserving their IDs (and anything a
// caller joins against those IDs, e.g. the undo log). schedule_items
// carries a unique (plan_id, sequence) constraint, so writing the final
// values directly can collide mid-batch whenever two items swap
// positions. This walks the update in two phases: phase one parks every
// row on a negative placeholder derived from its own ID (always
// distinct, never a legal sequence value), phase two writes the real
// sequence, which can never collide with a placeholder from phase one.
func (it itemsRepo) UpdateSequenceBatch(ctx context.Context, planID int32, sequences map[int32]int) error {
	if len(sequences) == 0 {
		return nil
	}
	tx, err := it.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(errs.Storage, "begin sequence update tx", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE schedule_items SET sequence = $1 WHERE id = $2 AND plan_id = $3`)
	if err != nil {
		return errs.Wrap(errs.Storage, "prepare sequence update", err)
	}
	defer stmt.Close()

	for itemID := range sequences {
		if _, err := stmt.ExecContext(ctx, -itemID, itemID, planID); err != nil {
			return errs.Wrap(errs.Storage, fmt.Sprintf("park sequence for item %d", itemID), err)
		}
	}
	for itemID, seq := range sequences {
		if _, err := stmt.ExecContext(ctx, seq, itemID, planID); err != nil {
			return errs.Wrap(errs.Storage, fmt.Sprintf("update sequence for item %d", itemID), err)
		}
	}
	return tx.Commit()
}

func (it itemsRepo) UpdateShift(ctx context.Context, itemID int32, shiftDate, shiftType string) error {
	_, err := it.db.ExecContext(ctx, `UPDATE schedule_items SET shift_date = $1, shift_type = $2 WHERE id = $3`, shiftDate, shiftType, itemID)
	if err != nil {
		return errs.Wrap(errs.Storage, fmt.Sprintf("update shift for item %d", itemID), err)
	}
	return nil
}

// --- config ---

type configRepo struct{ db *sql.DB }

func (c configRepo) Map(ctx context.Context, group string) (map[string]string, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT config_key, config_value FROM system_config WHERE config_group = $1`, group)
	if err != nil {
		return nil, errs.Wrap(errs.Storage, fmt.Sprintf("load config group %s", group), err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, errs.Wrap(errs.Storage, "scan config row", err)
		}
		out[k] = v
	}
	return out, rows.Err()
}

// --- operation log ---

type opLogRepo struct{ db *sql.DB }

func (o opLogRepo) Append(ctx context.Context, logType, action, targetType string, targetID int32, detail string) error {
	_, err := o.db.ExecContext(ctx, `
		INSERT INTO operation_logs (log_type, action, target_type, target_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, now())`, logType, action, targetType, targetID, detail)
	if err != nil {
		return errs.Wrap(errs.Storage, "append operation log", err)
	}
	return nil
}

// --- undo stack ---

type undoRepo struct{ db *sql.DB }

func (u undoRepo) Push(ctx context.Context, rec domain.UndoRecord) error {
	before, err := json.Marshal(rec.BeforeState)
	if err != nil {
		return errs.Wrap(errs.DataConversion, "marshal before_state", err)
	}
	after, err := json.Marshal(rec.AfterState)
	if err != nil {
		return errs.Wrap(errs.DataConversion, "marshal after_state", err)
	}
	_, err = u.db.ExecContext(ctx, `
		INSERT INTO undo_stack (plan_id, action_type, before_state, after_state, is_undone, created_at)
		VALUES ($1, $2, $3, $4, $5, now())`, rec.PlanID, rec.ActionType, before, after, rec.IsUndone)
	if err != nil {
		return errs.Wrap(errs.Storage, "push undo record", err)
	}
	return nil
}

// ListByPlan returns every undo/redo record for planID, in no
// particular order; internal/history decides which one an Undo or Redo
// call should act on.
func (u undoRepo) ListByPlan(ctx context.Context, planID int32) ([]domain.UndoRecord, error) {
	rows, err := u.db.QueryContext(ctx, `
		SELECT id, plan_id, action_type, before_state, after_state, is_undone, created_at
		FROM undo_stack WHERE plan_id = $1`, planID)
	if err != nil {
		return nil, errs.Wrap(errs.Storage, fmt.Sprintf("list undo stack for plan %d", planID), err)
	}
	defer rows.Close()

	var out []domain.UndoRecord
	for rows.Next() {
		rec, err := scanUndoRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type undoRowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUndoRecord(row undoRowScanner) (domain.UndoRecord, error) {
	var rec domain.UndoRecord
	var before, after []byte
	err := row.Scan(&rec.ID, &rec.PlanID, &rec.ActionType, &before, &after, &rec.IsUndone, &rec.CreatedAt)
	if err != nil {
		return domain.UndoRecord{}, errs.Wrap(errs.Storage, "scan undo record", err)
	}
	if len(before) > 0 {
		if err := json.Unmarshal(before, &rec.BeforeState); err != nil {
			return domain.UndoRecord{}, errs.Wrap(errs.DataConversion, "unmarshal before_state", err)
		}
	}
	if len(after) > 0 {
		if err := json.Unmarshal(after, &rec.AfterState); err != nil {
			return domain.UndoRecord{}, errs.Wrap(errs.DataConversion, "unmarshal after_state", err)
		}
	}
	return rec, nil
}

func (u undoRepo) MarkUndone(ctx context.Context, id int32, undone bool) error {
	_, err := u.db.ExecContext(ctx, `UPDATE undo_stack SET is_undone = $1 WHERE id = $2`, undone, id)
	if err != nil {
		return errs.Wrap(errs.Storage, fmt.Sprintf("mark undo record %d", id), err)
	}
	return nil
}

func (u undoRepo) ClearRedoTail(ctx context.Context, planID int32) error {
	_, err := u.db.ExecContext(ctx, `DELETE FROM undo_stack WHERE plan_id = $1 AND is_undone = true`, planID)
	if err != nil {
		return errs.Wrap(errs.Storage, fmt.Sprintf("clear redo tail for plan %d", planID), err)
	}
	return nil
}

func (u undoRepo) CapToMax(ctx context.Context, planID int32, n int) error {
	_, err := u.db.ExecContext(ctx, `
		DELETE FROM undo_stack WHERE id IN (
			SELECT id FROM undo_stack WHERE plan_id = $1
			ORDER BY created_at DESC OFFSET $2
		)`, planID, n)
	if err != nil {
		return errs.Wrap(errs.Storage, fmt.Sprintf("cap undo stack for plan %d", planID), err)
	}
	return nil
}

func (u undoRepo) Count(ctx context.Context, planID int32) (undone, redoable int, err error) {
	row := u.db.QueryRowContext(ctx, `
		SELECT
			count(*) FILTER (WHERE is_undone = false),
			count(*) FILTER (WHERE is_undone = true)
		FROM undo_stack WHERE plan_id = $1`, planID)
	if scanErr := row.Scan(&undone, &redoable); scanErr != nil {
		return 0, 0, errs.Wrap(errs.Storage, fmt.Sprintf("count undo stack for plan %d", planID), scanErr)
	}
	return undone, redoable, nil
}

func (u undoRepo) Clear(ctx context.Context, planID *int32) error {
	var err error
	if planID == nil {
		_, err = u.db.ExecContext(ctx, `DELETE FROM undo_stack`)
	} else {
		_, err = u.db.ExecContext(ctx, `DELETE FROM undo_stack WHERE plan_id = $1`, *planID)
	}
	if err != nil {
		return errs.Wrap(errs.Storage, "clear undo stack", err)
	}
	return nil
}

