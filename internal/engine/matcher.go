package engine

import (
	"context"

	"automator/internal/automation"
	"automator/internal/models"
	"automator/internal/params"
	"automator/internal/scheduler"

	"go.uber.org/zap"
)

// RuleStore is the read side of the rule database plus the execution counter
type RuleStore interface {
	GetRule(ctx context.Context, id string) (models.Rule, error)
	GetEnabledRules(ctx context.Context) ([]models.Rule, error)
	GetRulesByTriggerKind(ctx context.Context, kind models.TriggerKind) ([]models.Rule, error)
	GetTriggersForRule(ctx context.Context, ruleID string) ([]models.Trigger, error)
	GetConditionsForRule(ctx context.Context, ruleID string) ([]models.Condition, error)
	GetActionsForRule(ctx context.Context, ruleID string) ([]models.Action, error)
	IncrementExecutionCount(ctx context.Context, ruleID string) error
}

// Match is a rule whose trigger accepted an event
type Match struct {
	Rule    models.Rule
	Trigger models.Trigger
}

// Matcher turns an incoming event into the rules it can fire
type Matcher struct {
	store     RuleStore
	evaluator *automation.Evaluator
	logger    *zap.Logger
}

func NewMatcher(store RuleStore, evaluator *automation.Evaluator, logger *zap.Logger) *Matcher {
	return &Matcher{store: store, evaluator: evaluator, logger: logger.Named("matcher")}
}

// Match returns at most one match per enabled rule. Any one active trigger of the
// event's kind that accepts the event fires the rule.
func (m *Matcher) Match(ctx context.Context, ev models.Event) ([]Match, error) {
	rules, err := m.store.GetRulesByTriggerKind(ctx, ev.Kind)
	if err != nil {
		return nil, err
	}

	var matches []Match
	for _, rule := range rules {
		if !rule.IsEnabled {
			continue
		}
		triggers, err := m.store.GetTriggersForRule(ctx, rule.ID)
		if err != nil {
			m.logger.Warn("Failed to load triggers", zap.String("rule_id", rule.ID), zap.Error(err))
			continue
		}
		for _, t := range triggers {
			if !t.IsActive || t.Kind != ev.Kind || !prefilter(rule.ID, t, ev) {
				continue
			}
			if m.evaluator.EvaluateTrigger(ctx, t, &ev) {
				matches = append(matches, Match{Rule: rule, Trigger: t})
				break
			}
		}
	}

	m.logger.Debug("Event matched",
		zap.String("kind", string(ev.Kind)),
		zap.Int("candidates", len(rules)),
		zap.Int("matches", len(matches)))
	return matches, nil
}

// prefilter rejects triggers whose identity does not fit the event before any state is read
func prefilter(ruleID string, t models.Trigger, ev models.Event) bool {
	switch t.Kind {
	case models.TriggerAppOpened:
		p, ok := t.Params.(params.AppOpened)
		return ok && p.PackageName == ev.Meta(models.MetaPackageName)
	case models.TriggerLocation:
		if id := ev.Meta(models.MetaGeofenceID); id != "" {
			return id == scheduler.Key(ruleID, t.ID)
		}
	}
	return true
}
