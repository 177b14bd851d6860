package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"automator/internal/automation"
	"automator/internal/models"
	"automator/internal/params"

	"go.uber.org/zap"
)

const (
	edgeOpen  = "open"
	edgeClose = "close"
)

// Monitor fires TIME_RANGE rules on the minute their window opens or closes.
// It is the only path that fires TIME_RANGE triggers.
type Monitor struct {
	store  RuleStore
	orch   *Orchestrator
	now    func() time.Time
	loc    *time.Location
	logger *zap.Logger

	mu       sync.Mutex
	fired    map[string]struct{}
	lastHour int
}

func NewMonitor(store RuleStore, orch *Orchestrator, loc *time.Location, logger *zap.Logger) *Monitor {
	if loc == nil {
		loc = time.Local
	}
	return &Monitor{
		store:    store,
		orch:     orch,
		now:      time.Now,
		loc:      loc,
		logger:   logger.Named("monitor"),
		fired:    make(map[string]struct{}),
		lastHour: -1,
	}
}

// SetClock replaces the wall clock
func (m *Monitor) SetClock(now func() time.Time) {
	m.now = now
}

type edge struct {
	rule models.Rule
	name string
}

// Tick checks every enabled TIME_RANGE rule against the current minute and executes
// each open or close edge at most once per minute of the current hour.
// The open edge goes through the rule's conditions like any other execution;
// the close edge runs the exit action with conditions skipped.
func (m *Monitor) Tick(ctx context.Context) []models.ExecutionResult {
	now := m.now().In(m.loc)
	rules, err := m.store.GetRulesByTriggerKind(ctx, models.TriggerTimeRange)
	if err != nil {
		m.logger.Warn("Failed to load time range rules", zap.Error(err))
		return nil
	}

	var results []models.ExecutionResult
	for _, e := range m.claim(ctx, now, rules) {
		req := Request{RuleID: e.rule.ID, TriggeredBy: "time_range_" + e.name}
		if e.name == edgeClose {
			req.Exit = true
			req.SkipConditions = true
		}
		res, err := m.orch.Execute(ctx, req)
		if err != nil {
			m.logger.Warn("Time range execution failed", zap.String("rule_id", e.rule.ID), zap.String("edge", e.name), zap.Error(err))
			continue
		}
		results = append(results, res)
	}
	return results
}

// claim records the edges due at now and returns the ones not yet fired
func (m *Monitor) claim(ctx context.Context, now time.Time, rules []models.Rule) []edge {
	m.mu.Lock()
	defer m.mu.Unlock()

	if now.Hour() != m.lastHour {
		clear(m.fired)
		m.lastHour = now.Hour()
	}
	current := automation.MinuteOfDay(now)

	var due []edge
	for _, rule := range rules {
		if !rule.IsEnabled {
			continue
		}
		triggers, err := m.store.GetTriggersForRule(ctx, rule.ID)
		if err != nil {
			m.logger.Warn("Failed to load triggers", zap.String("rule_id", rule.ID), zap.Error(err))
			continue
		}
		for _, name := range edgesAt(current, rule, triggers) {
			key := fmt.Sprintf("%s:%s:%02d:%02d", rule.ID, name, now.Hour(), now.Minute())
			if _, ok := m.fired[key]; ok {
				continue
			}
			m.fired[key] = struct{}{}
			due = append(due, edge{rule: rule, name: name})
		}
	}
	return due
}

// edgesAt lists the edges of the rule's active TIME_RANGE triggers that fall on current
func edgesAt(current int, rule models.Rule, triggers []models.Trigger) []string {
	var open, closing bool
	for _, t := range triggers {
		if !t.IsActive || t.Kind != models.TriggerTimeRange {
			continue
		}
		p, ok := t.Params.(params.TimeRange)
		if !ok {
			continue
		}
		open = open || current == p.Start
		closing = closing || (current == p.End && rule.HasExitAction())
	}
	var edges []string
	if open {
		edges = append(edges, edgeOpen)
	}
	if closing {
		edges = append(edges, edgeClose)
	}
	return edges
}
