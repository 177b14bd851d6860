package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"automator/internal/automation"
	"automator/internal/models"
	"automator/internal/params"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Request asks the orchestrator to run one rule
type Request struct {
	RuleID      string
	TriggeredBy string
	// SkipConditions is set when the caller already confirmed the rule should run
	SkipConditions bool
	// Exit runs the rule's exit action instead of its action list
	Exit bool
}

// Orchestrator is the single entry point that executes rules and the only
// writer of rule execution statistics.
type Orchestrator struct {
	store     RuleStore
	evaluator *automation.Evaluator
	pipeline  *automation.Pipeline
	logger    *zap.Logger

	mu      sync.Mutex
	lastRun map[string]time.Time
}

func NewOrchestrator(store RuleStore, evaluator *automation.Evaluator, pipeline *automation.Pipeline, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		store:     store,
		evaluator: evaluator,
		pipeline:  pipeline,
		logger:    logger.Named("orchestrator"),
		lastRun:   make(map[string]time.Time),
	}
}

// RanSince reports whether an execution of ruleID got past the rule lookup at or after t
func (o *Orchestrator) RanSince(ruleID string, t time.Time) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	last, ok := o.lastRun[ruleID]
	return ok && !last.Before(t)
}

func (o *Orchestrator) markRun(ruleID string, at time.Time) {
	o.mu.Lock()
	o.lastRun[ruleID] = at
	o.mu.Unlock()
}

// Execute loads the rule, checks its conditions, runs its actions and records the execution.
// The returned error is set only for store failures and for absent or disabled rules;
// every other outcome is described by the result.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (models.ExecutionResult, error) {
	start := time.Now()
	res := models.ExecutionResult{
		ExecutionID: uuid.NewString(),
		RuleID:      req.RuleID,
		TriggeredBy: req.TriggeredBy,
		Status:      models.StatusFailed,
	}
	done := func(err error) (models.ExecutionResult, error) {
		res.ExecutionTimeMs = time.Since(start).Milliseconds()
		if err != nil {
			res.Reason = err.Error()
		}
		o.log(res, err)
		return res, err
	}

	rule, err := o.store.GetRule(ctx, req.RuleID)
	if err != nil {
		return done(err)
	}
	if !rule.IsEnabled {
		return done(models.NewNotFoundError("execute rule", rule.ID))
	}
	o.markRun(rule.ID, start)

	var actions []models.Action
	if req.Exit {
		exit, ok := params.ExitAction(rule)
		if !ok {
			res.Reason = "rule has no exit action"
			return done(nil)
		}
		actions = []models.Action{exit}
	} else {
		if !req.SkipConditions {
			conds, err := o.store.GetConditionsForRule(ctx, rule.ID)
			if err != nil {
				return done(err)
			}
			if ok, reason := o.evaluator.EvaluateConditions(ctx, conds); !ok {
				res.Status = models.StatusConditionsNotMet
				res.Reason = reason
				return done(nil)
			}
		}
		if actions, err = o.store.GetActionsForRule(ctx, rule.ID); err != nil {
			return done(err)
		}
	}

	run := o.pipeline.Run(ctx, actions)
	res.ActionsExecuted = run.Executed
	if run.Executed == 0 && run.Failed > 0 {
		res.Reason = fmt.Sprintf("all %d actions failed: %v", run.Failed, run.Errors[0])
		return done(nil)
	}

	if err := o.store.IncrementExecutionCount(ctx, rule.ID); err != nil {
		return done(err)
	}
	res.Executed = true
	res.Status = models.StatusExecuted
	if run.Failed > 0 {
		res.Reason = fmt.Sprintf("%d of %d actions failed", run.Failed, run.Executed+run.Failed)
	}
	return done(nil)
}

func (o *Orchestrator) log(res models.ExecutionResult, err error) {
	fields := []zap.Field{
		zap.String("execution_id", res.ExecutionID),
		zap.String("rule_id", res.RuleID),
		zap.String("triggered_by", res.TriggeredBy),
		zap.String("status", string(res.Status)),
		zap.Int("actions_executed", res.ActionsExecuted),
		zap.Int64("execution_time_ms", res.ExecutionTimeMs),
	}
	switch {
	case err != nil:
		o.logger.Error("Rule execution aborted", append(fields, zap.Error(err))...)
	case res.Executed:
		o.logger.Info("Rule executed", fields...)
	default:
		o.logger.Info("Rule not executed", append(fields, zap.String("reason", res.Reason))...)
	}
}
