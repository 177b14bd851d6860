package engine

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"automator/internal/automation"
	"automator/internal/models"
	"automator/internal/params"

	"go.uber.org/zap"
)

var errBoom = errors.New("boom")

// memStore is an in-memory RuleStore
type memStore struct {
	mu         sync.Mutex
	rules      map[string]models.Rule
	triggers   map[string][]models.Trigger
	conditions map[string][]models.Condition
	actions    map[string][]models.Action
	counts     map[string]int
	err        error
}

func newMemStore() *memStore {
	return &memStore{
		rules:      map[string]models.Rule{},
		triggers:   map[string][]models.Trigger{},
		conditions: map[string][]models.Condition{},
		actions:    map[string][]models.Action{},
		counts:     map[string]int{},
	}
}

func (m *memStore) add(rule models.Rule, triggers []models.Trigger, conds []models.Condition, actions []models.Action) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules[rule.ID] = rule
	for i := range triggers {
		triggers[i].RuleID = rule.ID
		params.BindTrigger(&triggers[i])
	}
	for i := range conds {
		conds[i].RuleID = rule.ID
		params.BindCondition(&conds[i])
	}
	for i := range actions {
		actions[i].RuleID = rule.ID
		params.BindAction(&actions[i])
	}
	m.triggers[rule.ID] = triggers
	m.conditions[rule.ID] = conds
	m.actions[rule.ID] = actions
}

func (m *memStore) count(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[id]
}

func (m *memStore) GetRule(_ context.Context, id string) (models.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return models.Rule{}, m.err
	}
	r, ok := m.rules[id]
	if !ok {
		return models.Rule{}, models.NewNotFoundError("get rule", id)
	}
	return r, nil
}

func (m *memStore) sorted(keep func(models.Rule) bool) []models.Rule {
	var out []models.Rule
	for _, r := range m.rules {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memStore) GetEnabledRules(context.Context) ([]models.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.sorted(func(r models.Rule) bool { return r.IsEnabled }), nil
}

func (m *memStore) GetRulesByTriggerKind(_ context.Context, kind models.TriggerKind) ([]models.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	return m.sorted(func(r models.Rule) bool {
		for _, t := range m.triggers[r.ID] {
			if t.Kind == kind && t.IsActive {
				return true
			}
		}
		return false
	}), nil
}

func (m *memStore) GetTriggersForRule(_ context.Context, id string) ([]models.Trigger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.triggers[id], nil
}

func (m *memStore) GetConditionsForRule(_ context.Context, id string) ([]models.Condition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conditions[id], nil
}

func (m *memStore) GetActionsForRule(_ context.Context, id string) ([]models.Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.actions[id], nil
}

func (m *memStore) IncrementExecutionCount(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rules[id]; !ok {
		return models.NewNotFoundError("increment execution count", id)
	}
	m.counts[id]++
	return nil
}

type fakeStates struct {
	mu    sync.Mutex
	state models.DeviceState
	err   error
}

func (f *fakeStates) Snapshot(context.Context) (models.DeviceState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, f.err
}

func (f *fakeStates) Save(_ context.Context, s models.DeviceState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = s
	f.err = nil
	return nil
}

func (f *fakeStates) set(fn func(*models.DeviceState)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(&f.state)
}

type fakeCommander struct {
	mu   sync.Mutex
	sent []models.Command
	fail map[string]error
}

func (f *fakeCommander) Send(_ context.Context, cmd models.Command) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.fail[cmd.Name]; ok {
		return err
	}
	f.sent = append(f.sent, cmd)
	return nil
}

func (f *fakeCommander) commands() []models.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Command(nil), f.sent...)
}

type countingResync struct {
	mu    sync.Mutex
	calls int
}

func (c *countingResync) Resync(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return nil
}

func granted() models.DeviceState {
	return models.DeviceState{
		Permissions: map[string]bool{
			models.PermissionNotificationPolicy: true,
			models.PermissionPostNotifications:  true,
			models.PermissionWriteSettings:      true,
		},
	}
}

type harness struct {
	store  *memStore
	states *fakeStates
	cmd    *fakeCommander
	eval   *automation.Evaluator
	pipe   *automation.Pipeline
	orch   *Orchestrator
}

func newHarness(now time.Time) *harness {
	h := &harness{
		store:  newMemStore(),
		states: &fakeStates{state: granted()},
		cmd:    &fakeCommander{fail: map[string]error{}},
	}
	logger := zap.NewNop()
	h.eval = automation.NewEvaluator(h.states, nil, logger)
	h.eval.SetClock(func() time.Time { return now })
	h.pipe = automation.NewPipeline(h.states, h.cmd, nil, nil, nil, logger)
	h.orch = NewOrchestrator(h.store, h.eval, h.pipe, logger)
	return h
}

func (h *harness) engine() *Engine {
	return NewEngine(Deps{
		Store:     h.store,
		States:    h.states,
		Evaluator: h.eval,
		Pipeline:  h.pipe,
	}, Options{DeviceID: "dev1", MaxConcurrent: 2}, zap.NewNop())
}

func rule(id string, enabled bool) models.Rule {
	return models.Rule{ID: id, Name: id, IsEnabled: enabled}
}

func trigger(id string, kind models.TriggerKind, p map[string]string) models.Trigger {
	return models.Trigger{ID: id, Kind: kind, Parameters: p, IsActive: true}
}

func condition(id string, kind models.ConditionKind, p map[string]string) models.Condition {
	return models.Condition{ID: id, Kind: kind, Parameters: p, IsActive: true}
}

func action(id string, seq int, kind models.ActionKind, p map[string]string) models.Action {
	return models.Action{ID: id, Kind: kind, Parameters: p, Sequence: seq, IsEnabled: true}
}

func intPtr(v int) *int { return &v }
