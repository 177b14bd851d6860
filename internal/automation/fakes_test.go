package automation

import (
	"context"
	"errors"
	"sync"

	"automator/internal/models"
	"automator/internal/params"
)

type fakeStates struct {
	state models.DeviceState
	err   error
	saved []models.DeviceState
}

func (f *fakeStates) Snapshot(context.Context) (models.DeviceState, error) {
	return f.state, f.err
}

func (f *fakeStates) Save(_ context.Context, s models.DeviceState) error {
	f.saved = append(f.saved, s)
	f.state = s
	f.err = nil
	return nil
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

func (f *fakeCommander) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, c := range f.sent {
		out = append(out, c.Name)
	}
	return out
}

type fakePackages map[string]bool

func (f fakePackages) IsInstalled(_ context.Context, pkg string) (bool, error) {
	return f[pkg], nil
}

type fakeBlockList struct {
	set map[string]bool
}

func (f *fakeBlockList) Add(_ context.Context, pkg string) error {
	if f.set == nil {
		f.set = map[string]bool{}
	}
	f.set[pkg] = true
	return nil
}

func (f *fakeBlockList) Remove(_ context.Context, pkg string) error {
	delete(f.set, pkg)
	return nil
}

func (f *fakeBlockList) Contains(pkg string) bool { return f.set[pkg] }

type fakeServices map[string]bool

func (f fakeServices) Connected(service string) bool { return f[service] }

type fakeFix struct {
	loc   models.Location
	err   error
	block bool
}

func (f *fakeFix) FreshFix(ctx context.Context) (models.Location, error) {
	if f.block {
		<-ctx.Done()
		return models.Location{}, ctx.Err()
	}
	return f.loc, f.err
}

var errBoom = errors.New("boom")

func intPtr(v int) *int { return &v }

func action(id string, seq int, kind models.ActionKind, raw map[string]string) models.Action {
	a := models.Action{ID: id, RuleID: "r1", Kind: kind, Parameters: raw, Sequence: seq, IsEnabled: true}
	params.BindAction(&a)
	return a
}

func condition(id string, kind models.ConditionKind, raw map[string]string) models.Condition {
	c := models.Condition{ID: id, RuleID: "r1", Kind: kind, Parameters: raw, IsActive: true}
	params.BindCondition(&c)
	return c
}

func trigger(id string, kind models.TriggerKind, raw map[string]string) models.Trigger {
	t := models.Trigger{ID: id, RuleID: "r1", Kind: kind, Parameters: raw, IsActive: true}
	params.BindTrigger(&t)
	return t
}
