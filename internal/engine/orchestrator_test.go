package engine

import (
	"context"
	"testing"
	"time"

	"automator/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecute_FailingActionIsIsolated(t *testing.T) {
	h := newHarness(time.Now())
	h.cmd.fail["set_brightness"] = errBoom
	h.store.add(rule("r1", true), nil, nil, []models.Action{
		action("a1", 1, models.ActionVibrate, nil),
		action("a2", 2, models.ActionSetBrightness, map[string]string{"level": "40"}),
		action("a3", 3, models.ActionSendNotification, map[string]string{"message": "done"}),
	})

	res, err := h.orch.Execute(context.Background(), Request{RuleID: "r1", TriggeredBy: "manual"})
	require.NoError(t, err)
	assert.True(t, res.Executed)
	assert.Equal(t, models.StatusExecuted, res.Status)
	assert.Equal(t, 2, res.ActionsExecuted)
	assert.NotEmpty(t, res.ExecutionID)
	assert.Equal(t, 1, h.store.count("r1"))
}

func TestExecute_AllActionsFailing(t *testing.T) {
	h := newHarness(time.Now())
	h.cmd.fail["vibrate"] = errBoom
	h.store.add(rule("r1", true), nil, nil, []models.Action{action("a1", 1, models.ActionVibrate, nil)})

	res, err := h.orch.Execute(context.Background(), Request{RuleID: "r1"})
	require.NoError(t, err)
	assert.False(t, res.Executed)
	assert.Equal(t, models.StatusFailed, res.Status)
	assert.Contains(t, res.Reason, "boom")
	assert.Zero(t, h.store.count("r1"))
}

func TestExecute_ConditionsNotMet(t *testing.T) {
	h := newHarness(time.Now())
	h.states.set(func(s *models.DeviceState) { s.BatteryLevel = intPtr(50) })
	h.store.add(rule("r1", true), nil,
		[]models.Condition{condition("c1", models.ConditionBatteryLevel, map[string]string{"level": "20", "operator": "less_than"})},
		[]models.Action{action("a1", 1, models.ActionVibrate, nil)})

	res, err := h.orch.Execute(context.Background(), Request{RuleID: "r1"})
	require.NoError(t, err)
	assert.False(t, res.Executed)
	assert.Equal(t, models.StatusConditionsNotMet, res.Status)
	assert.Contains(t, res.Reason, "c1")
	assert.Empty(t, h.cmd.commands())

	res, err = h.orch.Execute(context.Background(), Request{RuleID: "r1", SkipConditions: true})
	require.NoError(t, err)
	assert.True(t, res.Executed)
}

func TestExecute_NoEnabledActionsStillCounts(t *testing.T) {
	h := newHarness(time.Now())
	h.store.add(rule("r1", true), nil, nil, nil)

	res, err := h.orch.Execute(context.Background(), Request{RuleID: "r1"})
	require.NoError(t, err)
	assert.True(t, res.Executed)
	assert.Equal(t, 0, res.ActionsExecuted)
	assert.Equal(t, 1, h.store.count("r1"))
}

func TestExecute_AbsentOrDisabledRule(t *testing.T) {
	h := newHarness(time.Now())
	h.store.add(rule("off", false), nil, nil, []models.Action{action("a1", 1, models.ActionVibrate, nil)})

	_, err := h.orch.Execute(context.Background(), Request{RuleID: "missing"})
	assert.True(t, models.IsNotFound(err))

	res, err := h.orch.Execute(context.Background(), Request{RuleID: "off"})
	assert.True(t, models.IsNotFound(err))
	assert.False(t, res.Executed)
	assert.Empty(t, h.cmd.commands())
}

func TestExecute_StoreFailurePropagates(t *testing.T) {
	h := newHarness(time.Now())
	h.store.err = models.NewTransientError("get rule", errBoom)

	res, err := h.orch.Execute(context.Background(), Request{RuleID: "r1"})
	require.Error(t, err)
	assert.True(t, models.IsTransient(err))
	assert.Equal(t, models.StatusFailed, res.Status)
}

func TestExecute_ExitAction(t *testing.T) {
	h := newHarness(time.Now())
	r := rule("r1", true)
	h.store.add(r, nil, nil, []models.Action{action("a1", 1, models.ActionVibrate, nil)})

	res, err := h.orch.Execute(context.Background(), Request{RuleID: "r1", Exit: true})
	require.NoError(t, err)
	assert.False(t, res.Executed)
	assert.Empty(t, h.cmd.commands())

	r.ExitActionKind = models.ActionDisableDND
	h.store.add(r, nil, nil, []models.Action{action("a1", 1, models.ActionVibrate, nil)})
	res, err = h.orch.Execute(context.Background(), Request{RuleID: "r1", Exit: true, SkipConditions: true})
	require.NoError(t, err)
	assert.True(t, res.Executed)
	require.Len(t, h.cmd.commands(), 1)
	assert.Equal(t, "set_dnd", h.cmd.commands()[0].Name)
	assert.Equal(t, "off", h.cmd.commands()[0].Args["mode"])
}
