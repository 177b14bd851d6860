package engine

import (
	"context"
	"sync"
	"time"

	"automator/internal/automation"
	"automator/internal/models"
	"automator/internal/scheduler"

	"go.uber.org/zap"
)

// Resyncer re-creates lost scheduler registrations
type Resyncer interface {
	Resync(ctx context.Context) error
}

// SafetyNet periodically re-evaluates every enabled rule to catch firings whose
// push event or OS callback was lost. State-derived triggers fire only on a
// false to true transition between two passes; the first pass is a baseline.
// A rule the orchestrator already ran since the previous pass is not fired again.
type SafetyNet struct {
	store     RuleStore
	evaluator *automation.Evaluator
	orch      *Orchestrator
	resync    Resyncer
	logger    *zap.Logger

	mu     sync.Mutex
	last     map[string]bool
	primed   bool
	lastPass time.Time
}

func NewSafetyNet(store RuleStore, evaluator *automation.Evaluator, orch *Orchestrator, resync Resyncer, logger *zap.Logger) *SafetyNet {
	return &SafetyNet{
		store:     store,
		evaluator: evaluator,
		orch:      orch,
		resync:    resync,
		logger:    logger.Named("safety_net"),
		last:      make(map[string]bool),
	}
}

// skipped kinds have their own firing path or cannot be observed by polling
var skipped = map[models.TriggerKind]bool{
	models.TriggerTime:      true,
	models.TriggerTimeRange: true,
	models.TriggerAppOpened: true,
}

// Run performs one pass
func (s *SafetyNet) Run(ctx context.Context) []models.ExecutionResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.resync != nil {
		if err := s.resync.Resync(ctx); err != nil {
			s.logger.Warn("Scheduler resync incomplete", zap.Error(err))
		}
	}

	rules, err := s.store.GetEnabledRules(ctx)
	if err != nil {
		s.logger.Warn("Failed to load enabled rules", zap.Error(err))
		return nil
	}

	var env *automation.Env
	seen := make(map[string]bool)
	var due []Match
	for _, rule := range rules {
		triggers, err := s.store.GetTriggersForRule(ctx, rule.ID)
		if err != nil {
			s.logger.Warn("Failed to load triggers", zap.String("rule_id", rule.ID), zap.Error(err))
			continue
		}
		fire := false
		var by models.Trigger
		for _, t := range triggers {
			if !t.IsActive || skipped[t.Kind] {
				continue
			}
			if env == nil {
				env = s.evaluator.NewEnv(ctx, nil)
			}
			holds, err := s.evaluator.CheckTrigger(ctx, env, t)
			if err != nil {
				s.logger.Debug("Trigger check failed", zap.String("rule_id", rule.ID), zap.String("trigger_id", t.ID), zap.Error(err))
				holds = false
			}
			key := scheduler.Key(rule.ID, t.ID)
			if holds && !s.last[key] && s.primed && !fire {
				fire = true
				by = t
			}
			seen[key] = holds
		}
		if fire && s.orch.RanSince(rule.ID, s.lastPass) {
			s.logger.Debug("Rising edge already handled", zap.String("rule_id", rule.ID), zap.String("trigger_id", by.ID))
			fire = false
		}
		if fire {
			due = append(due, Match{Rule: rule, Trigger: by})
		}
	}
	s.last = seen

	if !s.primed {
		s.primed = true
		s.lastPass = time.Now()
		s.logger.Info("Safety net baseline recorded", zap.Int("triggers", len(seen)))
		return nil
	}

	var results []models.ExecutionResult
	for _, m := range due {
		res, err := s.orch.Execute(ctx, Request{RuleID: m.Rule.ID, TriggeredBy: "safety_net:" + m.Trigger.ID})
		if err != nil {
			s.logger.Warn("Safety net execution failed", zap.String("rule_id", m.Rule.ID), zap.Error(err))
			continue
		}
		results = append(results, res)
	}
	// taken after this pass's own executions so they do not suppress the next edge
	s.lastPass = time.Now()
	return results
}
