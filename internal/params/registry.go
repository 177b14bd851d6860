package params

import (
	"fmt"

	"automator/internal/models"
)

// Parser turns a raw parameter blob into a typed schema value
type Parser func(raw map[string]string) (any, error)

var triggerParsers = map[models.TriggerKind]Parser{
	models.TriggerTime:                parseTimeOfDay,
	models.TriggerTimeRange:           parseTimeRange,
	models.TriggerLocation:            parseLocation,
	models.TriggerBatteryLevel:        parseBattery,
	models.TriggerChargingStatus:      parseCharging,
	models.TriggerWifiConnected:       parseWifi,
	models.TriggerBluetoothConnected:  parseBluetooth,
	models.TriggerHeadphonesConnected: parseHeadphones,
	models.TriggerAppOpened:           parseAppOpened,
	models.TriggerAirplaneMode:        parseToggle,
	models.TriggerDNDState:            parseToggle,
}

var conditionParsers = map[models.ConditionKind]Parser{
	models.ConditionTimeRange:           parseTimeRange,
	models.ConditionLocation:            parseLocation,
	models.ConditionBatteryLevel:        parseBattery,
	models.ConditionChargingStatus:      parseCharging,
	models.ConditionWifiConnected:       parseWifi,
	models.ConditionBluetoothConnected:  parseBluetooth,
	models.ConditionHeadphonesConnected: parseHeadphones,
	models.ConditionScreenOn:            parseToggle,
	models.ConditionNetworkType:         parseNetworkType,
	models.ConditionAirplaneMode:        parseToggle,
	models.ConditionDNDState:            parseToggle,
}

var actionParsers = map[models.ActionKind]Parser{
	models.ActionFlashlight:           parseFlashlight,
	models.ActionVibrate:              parseVibrate,
	models.ActionSetVolume:            parseVolume,
	models.ActionSetRingerMode:        parseRingerMode,
	models.ActionEnableSilentMode:     parseNone,
	models.ActionDisableSilentMode:    parseNone,
	models.ActionEnableVibrateMode:    parseNone,
	models.ActionSetBrightness:        parseBrightness,
	models.ActionToggleAutoBrightness: parseSwitch,
	models.ActionToggleAutoRotate:     parseSwitch,
	models.ActionLockScreen:           parseNone,
	models.ActionTakeScreenshot:       parseNone,
	models.ActionShowPowerDialog:      parseNone,
	models.ActionLaunchApp:            parsePackage,
	models.ActionBlockApp:             parsePackage,
	models.ActionUnblockApp:           parsePackage,
	models.ActionSendNotification:     parseNotification,
	models.ActionClearNotifications:   parseNone,
	models.ActionEnableDND:            parseDNDMode,
	models.ActionDisableDND:           parseNone,
}

// ParseTrigger parses the parameters of a trigger kind
func ParseTrigger(kind models.TriggerKind, raw map[string]string) (any, error) {
	p, ok := triggerParsers[kind]
	if !ok {
		return nil, models.NewMalformedError("parse trigger", fmt.Errorf("unknown trigger kind %q", kind))
	}
	v, err := p(raw)
	if err != nil {
		return nil, models.NewMalformedError(fmt.Sprintf("parse %s", kind), err)
	}
	return v, nil
}

// ParseCondition parses the parameters of a condition kind
func ParseCondition(kind models.ConditionKind, raw map[string]string) (any, error) {
	p, ok := conditionParsers[kind]
	if !ok {
		return nil, models.NewMalformedError("parse condition", fmt.Errorf("unknown condition kind %q", kind))
	}
	v, err := p(raw)
	if err != nil {
		return nil, models.NewMalformedError(fmt.Sprintf("parse %s", kind), err)
	}
	return v, nil
}

// ParseAction parses the parameters of an action kind
func ParseAction(kind models.ActionKind, raw map[string]string) (any, error) {
	p, ok := actionParsers[kind]
	if !ok {
		return nil, models.NewMalformedError("parse action", fmt.Errorf("unknown action kind %q", kind))
	}
	v, err := p(raw)
	if err != nil {
		return nil, models.NewMalformedError(fmt.Sprintf("parse %s", kind), err)
	}
	return v, nil
}

// BindTrigger fills the typed parameters of t
func BindTrigger(t *models.Trigger) {
	t.Params, t.ParamsErr = ParseTrigger(t.Kind, t.Parameters)
}

// BindCondition fills the typed parameters of c
func BindCondition(c *models.Condition) {
	c.Params, c.ParamsErr = ParseCondition(c.Kind, c.Parameters)
}

// BindAction fills the typed parameters of a
func BindAction(a *models.Action) {
	a.Params, a.ParamsErr = ParseAction(a.Kind, a.Parameters)
}

// ExitAction builds the synthetic action a rule runs on the window-close edge
func ExitAction(r models.Rule) (models.Action, bool) {
	if !r.HasExitAction() {
		return models.Action{}, false
	}
	a := models.Action{
		ID:         "exit:" + r.ID,
		RuleID:     r.ID,
		Kind:       r.ExitActionKind,
		Parameters: r.ExitActionParams,
		IsEnabled:  true,
	}
	BindAction(&a)
	return a, true
}
