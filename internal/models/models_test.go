package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorPredicatesSeeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("execute rule: %w", NewNotFoundError("get rule", "r1"))
	assert.True(t, IsNotFound(err))
	assert.False(t, IsPermissionDenied(err))
	assert.Contains(t, err.Error(), "id=r1")

	perm := NewPermissionError("SET_RINGER_MODE", PermissionNotificationPolicy, "notification_policy_access_settings")
	assert.True(t, IsPermissionDenied(perm))
	assert.Equal(t, "notification_policy_access_settings", Hint(fmt.Errorf("wrapped: %w", perm)))

	cause := errors.New("publish timeout")
	act := NewActionError("FLASHLIGHT", "a1", cause)
	assert.True(t, IsActionFailure(act))
	assert.ErrorIs(t, act, cause)

	assert.True(t, IsTransient(NewTransientError("fresh fix", cause)))
	assert.True(t, IsMalformed(NewMalformedError("parse", cause)))
	assert.Empty(t, Hint(cause))
}

func TestDeviceStateApply(t *testing.T) {
	level := 80
	base := DeviceState{BatteryLevel: &level, WifiSSID: "home", DNDFilter: DNDFilterAll}

	out := base.Apply(map[string]string{
		MetaBatteryLevel:        "19%",
		MetaWifiSSID:            `"office"`,
		MetaHeadphonesConnected: "true",
		MetaDNDFilter:           "2",
		MetaCharging:            "maybe",
		MetaLatitude:            "52.1",
		MetaLongitude:           "21.0",
	})

	require.NotNil(t, out.BatteryLevel)
	assert.Equal(t, 19, *out.BatteryLevel)
	assert.Equal(t, "office", out.WifiSSID)
	assert.True(t, out.HeadphonesConnected)
	assert.Equal(t, DNDFilterPriority, out.DNDFilter)
	assert.False(t, out.Charging)
	require.NotNil(t, out.Location)
	assert.InDelta(t, 52.1, out.Location.Latitude, 1e-9)

	// the receiver is untouched
	assert.Equal(t, 80, *base.BatteryLevel)
	assert.Equal(t, "home", base.WifiSSID)
}

func TestDeviceStateGranted(t *testing.T) {
	var s DeviceState
	assert.False(t, s.Granted(PermissionLocation))
	s.Permissions = map[string]bool{PermissionLocation: true}
	assert.True(t, s.Granted(PermissionLocation))
}

func TestKindValidity(t *testing.T) {
	assert.True(t, TriggerBatteryLevel.Valid())
	assert.False(t, TriggerKind("SCREEN_ON").Valid())
	assert.True(t, ConditionScreenOn.Valid())
	assert.False(t, ConditionKind("APP_OPENED").Valid())
	assert.True(t, ActionDisableDND.Valid())
}
