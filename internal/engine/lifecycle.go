package engine

import (
	"context"

	"automator/internal/models"

	"go.uber.org/zap"
)

// RuleChanged re-registers the rule's alarms and geofences after an edit or enable
func (e *Engine) RuleChanged(ctx context.Context, ruleID string) error {
	s := e.deps.Scheduler
	if s == nil {
		return nil
	}
	rule, err := e.deps.Store.GetRule(ctx, ruleID)
	if models.IsNotFound(err) {
		return s.CancelRule(ctx, ruleID, nil)
	}
	if err != nil {
		return err
	}
	triggers, err := e.deps.Store.GetTriggersForRule(ctx, ruleID)
	if err != nil {
		return err
	}
	return s.RegisterRule(ctx, rule, triggers)
}

// RuleDisabled cancels the rule's registrations before returning
func (e *Engine) RuleDisabled(ctx context.Context, ruleID string) error {
	return e.cancelRule(ctx, ruleID)
}

// RuleDeleted cancels the rule's registrations. Call it before the rows are removed
// so the trigger keys can still be read.
func (e *Engine) RuleDeleted(ctx context.Context, ruleID string) error {
	return e.cancelRule(ctx, ruleID)
}

func (e *Engine) cancelRule(ctx context.Context, ruleID string) error {
	s := e.deps.Scheduler
	if s == nil {
		return nil
	}
	triggers, err := e.deps.Store.GetTriggersForRule(ctx, ruleID)
	if err != nil {
		e.logger.Warn("Cancelling with tracked registrations only", zap.String("rule_id", ruleID), zap.Error(err))
		triggers = nil
	}
	return s.CancelRule(ctx, ruleID, triggers)
}

// CheckReport is the outcome of one trigger or condition in a dry run
type CheckReport struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Active bool   `json:"active"`
	Holds  bool   `json:"holds"`
	Error  string `json:"error,omitempty"`
}

// DryRunReport describes what would happen if the rule were evaluated now
type DryRunReport struct {
	RuleID         string        `json:"rule_id"`
	Name           string        `json:"name"`
	Enabled        bool          `json:"enabled"`
	Triggers       []CheckReport `json:"triggers"`
	Conditions     []CheckReport `json:"conditions"`
	TriggerHolds   bool          `json:"trigger_holds"`
	ConditionsHold bool          `json:"conditions_hold"`
	WouldExecute   bool          `json:"would_execute"`
}

// DryRun evaluates a rule's triggers and conditions against current state without running actions
func (e *Engine) DryRun(ctx context.Context, ruleID string) (DryRunReport, error) {
	rule, err := e.deps.Store.GetRule(ctx, ruleID)
	if err != nil {
		return DryRunReport{}, err
	}
	triggers, err := e.deps.Store.GetTriggersForRule(ctx, ruleID)
	if err != nil {
		return DryRunReport{}, err
	}
	conds, err := e.deps.Store.GetConditionsForRule(ctx, ruleID)
	if err != nil {
		return DryRunReport{}, err
	}

	rep := DryRunReport{RuleID: rule.ID, Name: rule.Name, Enabled: rule.IsEnabled, ConditionsHold: true}
	env := e.deps.Evaluator.NewEnv(ctx, nil)
	for _, t := range triggers {
		cr := CheckReport{ID: t.ID, Kind: string(t.Kind), Active: t.IsActive}
		ok, err := e.deps.Evaluator.CheckTrigger(ctx, env, t)
		cr.Holds = ok && err == nil
		if err != nil {
			cr.Error = err.Error()
		}
		rep.TriggerHolds = rep.TriggerHolds || (cr.Active && cr.Holds)
		rep.Triggers = append(rep.Triggers, cr)
	}
	for _, c := range conds {
		cr := CheckReport{ID: c.ID, Kind: string(c.Kind), Active: c.IsActive}
		ok, err := e.deps.Evaluator.CheckCondition(ctx, env, c)
		cr.Holds = ok && err == nil
		if err != nil {
			cr.Error = err.Error()
		}
		if cr.Active && !cr.Holds {
			rep.ConditionsHold = false
		}
		rep.Conditions = append(rep.Conditions, cr)
	}
	rep.WouldExecute = rep.Enabled && rep.TriggerHolds && rep.ConditionsHold
	return rep, nil
}
