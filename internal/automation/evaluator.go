package automation

import (
	"context"
	"fmt"
	"time"

	"automator/internal/models"

	"go.uber.org/zap"
)

// Evaluator re-checks matched triggers and AND-evaluates conditions against live state.
// Every failure inside a check is swallowed to false and logged.
type Evaluator struct {
	states  StateProvider
	locator *LocationResolver
	now     func() time.Time
	loc     *time.Location
	logger  *zap.Logger
}

// NewEvaluator creates an evaluator. locator may be nil, which makes location checks fail closed.
func NewEvaluator(states StateProvider, locator *LocationResolver, logger *zap.Logger) *Evaluator {
	return &Evaluator{
		states:  states,
		locator: locator,
		now:     time.Now,
		logger:  logger.Named("evaluator"),
	}
}

// SetClock replaces the wall clock used for time checks
func (e *Evaluator) SetClock(now func() time.Time) {
	e.now = now
}

// SetLocation sets the zone that time-of-day and time-range checks read the clock in
func (e *Evaluator) SetLocation(loc *time.Location) {
	e.loc = loc
}

// NewEnv loads the state snapshot and overlays the event metadata onto it
func (e *Evaluator) NewEnv(ctx context.Context, ev *models.Event) *Env {
	now := e.now()
	if e.loc != nil {
		now = now.In(e.loc)
	}
	env := &Env{Event: ev, Now: now}
	if e.locator != nil {
		env.Locate = e.locator.Resolve
	}
	if e.states == nil {
		env.StateErr = errUnknownState
		return env
	}
	snap, err := e.states.Snapshot(ctx)
	if err != nil {
		e.logger.Warn("Failed to load device state", zap.Error(err))
		env.StateErr = err
		if ev == nil {
			return env
		}
	}
	if ev != nil {
		snap = snap.Apply(ev.Metadata)
	}
	env.State = snap
	return env
}

// check runs one kind's check with the permission and state gates applied
func (e *Evaluator) check(ctx context.Context, env *Env, kind string, p any, parseErr error) (bool, error) {
	if parseErr != nil {
		return false, parseErr
	}
	c, ok := checks[kind]
	if !ok {
		return false, models.NewMalformedError("evaluate", fmt.Errorf("no check for kind %q", kind))
	}
	if c.Permission != nil {
		if perm := c.Permission(p); perm != "" && !env.State.Granted(perm) {
			return false, models.NewPermissionError(kind, perm, settingsSurface(perm))
		}
	}
	// without a snapshot only the event's own signal is trusted
	if c.NeedsState && env.StateErr != nil && (env.Event == nil || string(env.Event.Kind) != kind) {
		return false, models.NewTransientError("load device state", env.StateErr)
	}
	return c.Eval(ctx, env, p)
}

// CheckTrigger evaluates a trigger and returns the reason when it does not hold
func (e *Evaluator) CheckTrigger(ctx context.Context, env *Env, t models.Trigger) (bool, error) {
	return e.check(ctx, env, string(t.Kind), t.Params, t.ParamsErr)
}

// CheckCondition evaluates a condition and returns the reason when it does not hold
func (e *Evaluator) CheckCondition(ctx context.Context, env *Env, c models.Condition) (bool, error) {
	return e.check(ctx, env, string(c.Kind), c.Params, c.ParamsErr)
}

// EvaluateTrigger re-validates a matched trigger's parameters against current state
func (e *Evaluator) EvaluateTrigger(ctx context.Context, t models.Trigger, ev *models.Event) bool {
	ok, err := e.CheckTrigger(ctx, e.NewEnv(ctx, ev), t)
	if err != nil {
		e.logger.Warn("Trigger evaluated to false",
			zap.String("rule_id", t.RuleID),
			zap.String("trigger_id", t.ID),
			zap.String("kind", string(t.Kind)),
			zap.Error(err))
		return false
	}
	return ok
}

// EvaluateConditions AND-evaluates every active condition and short-circuits on the first false.
// Zero active conditions hold vacuously. The reason names the condition that failed.
func (e *Evaluator) EvaluateConditions(ctx context.Context, conds []models.Condition) (bool, string) {
	var env *Env
	for _, c := range conds {
		if !c.IsActive {
			continue
		}
		if env == nil {
			env = e.NewEnv(ctx, nil)
		}
		ok, err := e.CheckCondition(ctx, env, c)
		if err != nil {
			e.logger.Warn("Condition evaluated to false",
				zap.String("rule_id", c.RuleID),
				zap.String("condition_id", c.ID),
				zap.String("kind", string(c.Kind)),
				zap.Error(err))
			return false, fmt.Sprintf("condition %s (%s) failed: %v", c.ID, c.Kind, err)
		}
		if !ok {
			return false, fmt.Sprintf("condition %s (%s) not met", c.ID, c.Kind)
		}
	}
	return true, ""
}
