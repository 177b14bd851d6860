package params

import (
	"testing"
	"time"

	"automator/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("09:05")
	require.NoError(t, err)
	assert.Equal(t, 9, h)
	assert.Equal(t, 5, m)

	_, _, err = ParseClock("")
	assert.ErrorIs(t, err, ErrMissing)

	for _, bad := range []string{"24:00", "12:60", "noon", "1230"} {
		_, _, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseDays(t *testing.T) {
	days, err := ParseDays("MON, fri,Sunday")
	require.NoError(t, err)
	assert.Equal(t, map[time.Weekday]bool{time.Monday: true, time.Friday: true, time.Sunday: true}, days)

	days, err = ParseDays("")
	require.NoError(t, err)
	assert.Empty(t, days)

	_, err = ParseDays("MON,XYZ")
	assert.Error(t, err)
}

func TestParseTrigger_TimeRequiresTime(t *testing.T) {
	_, err := ParseTrigger(models.TriggerTime, map[string]string{"days": "MON"})
	require.Error(t, err)
	assert.True(t, models.IsMalformed(err))

	v, err := ParseTrigger(models.TriggerTime, map[string]string{"time": "07:30", "days": "MON,FRI"})
	require.NoError(t, err)
	tod := v.(TimeOfDay)
	assert.Equal(t, 450, tod.Minutes())
	assert.True(t, tod.OnDay(time.Friday))
	assert.False(t, tod.OnDay(time.Wednesday))
}

func TestParseTrigger_Defaults(t *testing.T) {
	v, err := ParseTrigger(models.TriggerBatteryLevel, map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, Battery{Level: 20, Operator: OpLessThan}, v)

	v, err = ParseTrigger(models.TriggerLocation, map[string]string{"latitude": "52.23", "longitude": "21.01"})
	require.NoError(t, err)
	assert.Equal(t, Location{Latitude: 52.23, Longitude: 21.01, Radius: 100, Transition: TransitionEnter}, v)

	v, err = ParseTrigger(models.TriggerDNDState, nil)
	require.NoError(t, err)
	assert.Equal(t, Toggle{On: true}, v)

	v, err = ParseTrigger(models.TriggerChargingStatus, map[string]string{"state": "not_charging"})
	require.NoError(t, err)
	assert.Equal(t, Charging{Charging: false}, v)
}

func TestParseTrigger_Invalid(t *testing.T) {
	cases := []struct {
		kind models.TriggerKind
		raw  map[string]string
	}{
		{models.TriggerBatteryLevel, map[string]string{"level": "abc"}},
		{models.TriggerBatteryLevel, map[string]string{"level": "120"}},
		{models.TriggerBatteryLevel, map[string]string{"operator": "around"}},
		{models.TriggerLocation, map[string]string{"latitude": "1"}},
		{models.TriggerAppOpened, map[string]string{}},
		{models.TriggerTimeRange, map[string]string{"start_time": "09:00"}},
		{models.TriggerKind("SUNRISE"), nil},
	}
	for _, tc := range cases {
		_, err := ParseTrigger(tc.kind, tc.raw)
		assert.True(t, models.IsMalformed(err), "%s %v", tc.kind, tc.raw)
	}
}

func TestParseCondition_NetworkType(t *testing.T) {
	v, err := ParseCondition(models.ConditionNetworkType, map[string]string{"type": "Cellular"})
	require.NoError(t, err)
	assert.Equal(t, NetworkType{Transport: "cellular"}, v)
}

func TestParseAction(t *testing.T) {
	v, err := ParseAction(models.ActionVibrate, map[string]string{"duration_ms": "60000"})
	require.NoError(t, err)
	assert.Equal(t, Vibrate{Duration: 10 * time.Second}, v)

	v, err = ParseAction(models.ActionSetVolume, map[string]string{"level": "50"})
	require.NoError(t, err)
	assert.Equal(t, Volume{Stream: "media", Percent: 50}, v)

	_, err = ParseAction(models.ActionSetVolume, map[string]string{})
	assert.True(t, models.IsMalformed(err))

	_, err = ParseAction(models.ActionSetRingerMode, map[string]string{"mode": "loud"})
	assert.True(t, models.IsMalformed(err))

	v, err = ParseAction(models.ActionSendNotification, map[string]string{"message": "hi"})
	require.NoError(t, err)
	assert.Equal(t, Notification{Title: "Automation", Message: "hi"}, v)
}

func TestEveryKindHasAParser(t *testing.T) {
	for _, k := range models.TriggerKinds {
		assert.Contains(t, triggerParsers, k)
	}
	for _, k := range models.ConditionKinds {
		assert.Contains(t, conditionParsers, k)
	}
	for _, k := range models.ActionKinds {
		assert.Contains(t, actionParsers, k)
	}
	assert.Len(t, models.TriggerKinds, 11)
	assert.Len(t, models.ConditionKinds, 11)
	assert.Len(t, models.ActionKinds, 20)
}

func TestExitAction(t *testing.T) {
	_, ok := ExitAction(models.Rule{ID: "r1"})
	assert.False(t, ok)

	a, ok := ExitAction(models.Rule{ID: "r1", ExitActionKind: models.ActionDisableDND})
	require.True(t, ok)
	assert.Equal(t, models.ActionDisableDND, a.Kind)
	assert.True(t, a.IsEnabled)
	assert.NoError(t, a.ParamsErr)
}
