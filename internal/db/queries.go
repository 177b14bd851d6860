package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"automator/internal/models"
	"automator/internal/params"

	"github.com/jackc/pgx/v5"
)

const ruleColumns = "r.id, r.name, r.description, r.is_enabled, COALESCE(r.exit_action_kind, ''), " +
	"COALESCE(r.exit_action_params, '{}'::jsonb), r.execution_count, r.last_executed_at, r.created_at, r.updated_at"

func scanRule(row pgx.Row) (models.Rule, error) {
	var r models.Rule
	var exitKind string
	var exitParams []byte
	err := row.Scan(&r.ID, &r.Name, &r.Description, &r.IsEnabled,
		&exitKind, &exitParams,
		&r.ExecutionCount, &r.LastExecutedAt, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return r, err
	}
	r.ExitActionKind = models.ActionKind(exitKind)
	if r.ExitActionParams, err = decodeParams(exitParams); err != nil {
		return r, fmt.Errorf("rule %s exit params: %w", r.ID, err)
	}
	return r, nil
}

func decodeParams(raw []byte) (map[string]string, error) {
	out := map[string]string{}
	if len(raw) == 0 {
		return out, nil
	}
	// values may be stored as numbers or booleans; keep their text form
	var loose map[string]any
	if err := json.Unmarshal(raw, &loose); err != nil {
		return nil, err
	}
	for k, v := range loose {
		switch t := v.(type) {
		case nil:
		case string:
			out[k] = t
		default:
			b, _ := json.Marshal(t)
			out[k] = string(b)
		}
	}
	return out, nil
}

func (d *DB) queryRules(ctx context.Context, sql string, args ...any) ([]models.Rule, error) {
	rows, err := d.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, models.NewTransientError("query rules", err)
	}
	defer rows.Close()

	var rules []models.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// GetRule fetches a rule by id
func (d *DB) GetRule(ctx context.Context, id string) (models.Rule, error) {
	r, err := scanRule(d.q.QueryRow(ctx, "SELECT "+ruleColumns+" FROM rules r WHERE r.id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Rule{}, models.NewNotFoundError("get rule", id)
	}
	if err != nil {
		return models.Rule{}, models.NewTransientError("get rule", err)
	}
	return r, nil
}

// ListRules fetches every rule
func (d *DB) ListRules(ctx context.Context) ([]models.Rule, error) {
	return d.queryRules(ctx, "SELECT "+ruleColumns+" FROM rules r ORDER BY r.created_at")
}

// GetEnabledRules fetches the rules eligible for matching
func (d *DB) GetEnabledRules(ctx context.Context) ([]models.Rule, error) {
	return d.queryRules(ctx, "SELECT "+ruleColumns+" FROM rules r WHERE r.is_enabled ORDER BY r.created_at")
}

// GetRulesByTriggerKind fetches enabled rules that own an active trigger of kind
func (d *DB) GetRulesByTriggerKind(ctx context.Context, kind models.TriggerKind) ([]models.Rule, error) {
	return d.queryRules(ctx, "SELECT "+ruleColumns+` FROM rules r
		WHERE r.is_enabled AND EXISTS (
			SELECT 1 FROM triggers t WHERE t.rule_id = r.id AND t.kind = $1 AND t.is_active
		) ORDER BY r.created_at`, string(kind))
}

// GetTriggersForRule fetches a rule's triggers with parsed parameters
func (d *DB) GetTriggersForRule(ctx context.Context, ruleID string) ([]models.Trigger, error) {
	rows, err := d.q.Query(ctx,
		"SELECT id, rule_id, kind, parameters, is_active, logical_operator FROM triggers WHERE rule_id = $1 ORDER BY id", ruleID)
	if err != nil {
		return nil, models.NewTransientError("query triggers", err)
	}
	defer rows.Close()

	var out []models.Trigger
	for rows.Next() {
		var t models.Trigger
		var kind string
		var raw []byte
		if err := rows.Scan(&t.ID, &t.RuleID, &kind, &raw, &t.IsActive, &t.LogicalOperator); err != nil {
			return nil, err
		}
		t.Kind = models.TriggerKind(kind)
		if t.Parameters, err = decodeParams(raw); err != nil {
			t.ParamsErr = models.NewMalformedError("decode trigger parameters", err)
		} else {
			params.BindTrigger(&t)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// GetConditionsForRule fetches a rule's conditions with parsed parameters
func (d *DB) GetConditionsForRule(ctx context.Context, ruleID string) ([]models.Condition, error) {
	rows, err := d.q.Query(ctx,
		"SELECT id, rule_id, kind, parameters, is_active FROM conditions WHERE rule_id = $1 ORDER BY id", ruleID)
	if err != nil {
		return nil, models.NewTransientError("query conditions", err)
	}
	defer rows.Close()

	var out []models.Condition
	for rows.Next() {
		var c models.Condition
		var kind string
		var raw []byte
		if err := rows.Scan(&c.ID, &c.RuleID, &kind, &raw, &c.IsActive); err != nil {
			return nil, err
		}
		c.Kind = models.ConditionKind(kind)
		if c.Parameters, err = decodeParams(raw); err != nil {
			c.ParamsErr = models.NewMalformedError("decode condition parameters", err)
		} else {
			params.BindCondition(&c)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// GetActionsForRule fetches a rule's actions in sequence order
func (d *DB) GetActionsForRule(ctx context.Context, ruleID string) ([]models.Action, error) {
	rows, err := d.q.Query(ctx,
		"SELECT id, rule_id, kind, parameters, sequence, is_enabled FROM actions WHERE rule_id = $1 ORDER BY sequence, id", ruleID)
	if err != nil {
		return nil, models.NewTransientError("query actions", err)
	}
	defer rows.Close()

	var out []models.Action
	for rows.Next() {
		var a models.Action
		var kind string
		var raw []byte
		if err := rows.Scan(&a.ID, &a.RuleID, &kind, &raw, &a.Sequence, &a.IsEnabled); err != nil {
			return nil, err
		}
		a.Kind = models.ActionKind(kind)
		if a.Parameters, err = decodeParams(raw); err != nil {
			a.ParamsErr = models.NewMalformedError("decode action parameters", err)
		} else {
			params.BindAction(&a)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// IncrementExecutionCount bumps the counter and stamps the execution time in one statement
func (d *DB) IncrementExecutionCount(ctx context.Context, ruleID string) error {
	tag, err := d.q.Exec(ctx,
		"UPDATE rules SET execution_count = execution_count + 1, last_executed_at = now() WHERE id = $1", ruleID)
	if err != nil {
		return models.NewTransientError("increment execution count", err)
	}
	if tag.RowsAffected() == 0 {
		return models.NewNotFoundError("increment execution count", ruleID)
	}
	return nil
}

// SetRuleEnabled flips a rule's enabled flag
func (d *DB) SetRuleEnabled(ctx context.Context, ruleID string, enabled bool) error {
	tag, err := d.q.Exec(ctx, "UPDATE rules SET is_enabled = $1, updated_at = now() WHERE id = $2", enabled, ruleID)
	if err != nil {
		return models.NewTransientError("set rule enabled", err)
	}
	if tag.RowsAffected() == 0 {
		return models.NewNotFoundError("set rule enabled", ruleID)
	}
	return nil
}

// DeleteRule removes a rule; its triggers, conditions and actions cascade
func (d *DB) DeleteRule(ctx context.Context, ruleID string) error {
	tag, err := d.q.Exec(ctx, "DELETE FROM rules WHERE id = $1", ruleID)
	if err != nil {
		return models.NewTransientError("delete rule", err)
	}
	if tag.RowsAffected() == 0 {
		return models.NewNotFoundError("delete rule", ruleID)
	}
	return nil
}
