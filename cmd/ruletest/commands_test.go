package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"automator/internal/engine"
	"automator/internal/models"
	"automator/internal/params"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	rules    []models.Rule
	triggers []models.Trigger
	report   engine.DryRunReport
	err      error
	released bool
}

func (f *fakeBackend) ListRules(context.Context) ([]models.Rule, error) { return f.rules, f.err }

func (f *fakeBackend) GetRule(_ context.Context, id string) (models.Rule, error) {
	for _, r := range f.rules {
		if r.ID == id {
			return r, nil
		}
	}
	return models.Rule{}, models.NewNotFoundError("rule", id)
}

func (f *fakeBackend) GetTriggersForRule(context.Context, string) ([]models.Trigger, error) {
	return f.triggers, nil
}

func (f *fakeBackend) DryRun(context.Context, string) (engine.DryRunReport, error) {
	return f.report, f.err
}

func (f *fakeBackend) Location() *time.Location { return time.UTC }

func run(t *testing.T, b *fakeBackend, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand(func(context.Context) (Backend, func(), error) {
		return b, func() { b.released = true }, nil
	})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmd := NewRootCommand(nil)
	for _, name := range []string{"list", "check", "next", "hash-secret"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	_, err := run(t, &fakeBackend{}, "list", "--format", "yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestList(t *testing.T) {
	b := &fakeBackend{rules: []models.Rule{
		{ID: "r1", Name: "Low battery", IsEnabled: true, ExecutionCount: 3},
		{ID: "r2", Name: "Study Mode"},
	}}
	out, err := run(t, b, "list")
	require.NoError(t, err)
	assert.True(t, b.released)
	assert.Contains(t, out, "Low battery")
	assert.Contains(t, out, "Study Mode")

	out, err = run(t, b, "list", "--format", "json")
	require.NoError(t, err)
	var rules []models.Rule
	require.NoError(t, json.Unmarshal([]byte(out), &rules))
	assert.Len(t, rules, 2)
}

func TestCheck(t *testing.T) {
	b := &fakeBackend{report: engine.DryRunReport{
		RuleID:  "r1",
		Name:    "Low battery",
		Enabled: true,
		Triggers: []engine.CheckReport{
			{ID: "t1", Kind: "BATTERY_LEVEL", Active: true, Holds: true},
		},
		Conditions: []engine.CheckReport{
			{ID: "c1", Kind: "WIFI_CONNECTED", Active: true, Error: "no state"},
		},
		TriggerHolds: true,
	}}
	out, err := run(t, b, "check", "r1")
	require.NoError(t, err)
	assert.Contains(t, out, "Rule r1 (Low battery) enabled=true")
	assert.Contains(t, out, "error=no state")
	assert.Contains(t, out, "Would execute: false")

	_, err = run(t, b, "check")
	assert.Error(t, err)
}

func TestCheck_BackendError(t *testing.T) {
	_, err := run(t, &fakeBackend{err: models.NewNotFoundError("rule", "nope")}, "check", "nope")
	require.Error(t, err)
	assert.True(t, models.IsNotFound(err))
}

func TestNext(t *testing.T) {
	b := &fakeBackend{
		rules: []models.Rule{{ID: "r1", Name: "Morning"}},
		triggers: []models.Trigger{
			{ID: "t1", Kind: models.TriggerTime, IsActive: true, Params: params.TimeOfDay{Hour: 7, Minute: 30}},
			{ID: "t2", Kind: models.TriggerTime, IsActive: false, Params: params.TimeOfDay{Hour: 8}},
			{ID: "t3", Kind: models.TriggerBatteryLevel, IsActive: true},
		},
	}
	out, err := run(t, b, "next", "r1", "--at", "2026-03-02T09:00:00Z")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "2026-03-03 07:30")
	assert.Contains(t, lines[0], "rule_r1_trigger_t1")

	_, err = run(t, b, "next", "r1", "--at", "tomorrow")
	assert.Error(t, err)
}

func TestNext_NoTimeTriggers(t *testing.T) {
	b := &fakeBackend{rules: []models.Rule{{ID: "r1"}}}
	out, err := run(t, b, "next", "r1")
	require.NoError(t, err)
	assert.Contains(t, out, "No active TIME triggers")
}

func TestHashSecret(t *testing.T) {
	out, err := run(t, &fakeBackend{}, "hash-secret", "s3cret")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(out), "$2"))
}
