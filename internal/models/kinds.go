package models

// TriggerKind enumerates the closed set of trigger kinds
type TriggerKind string

const (
	TriggerTime                TriggerKind = "TIME"
	TriggerTimeRange           TriggerKind = "TIME_RANGE"
	TriggerLocation            TriggerKind = "LOCATION"
	TriggerBatteryLevel        TriggerKind = "BATTERY_LEVEL"
	TriggerChargingStatus      TriggerKind = "CHARGING_STATUS"
	TriggerWifiConnected       TriggerKind = "WIFI_CONNECTED"
	TriggerBluetoothConnected  TriggerKind = "BLUETOOTH_CONNECTED"
	TriggerHeadphonesConnected TriggerKind = "HEADPHONES_CONNECTED"
	TriggerAppOpened           TriggerKind = "APP_OPENED"
	TriggerAirplaneMode        TriggerKind = "AIRPLANE_MODE"
	TriggerDNDState            TriggerKind = "DND_STATE"
)

// TriggerKinds lists every trigger kind
var TriggerKinds = []TriggerKind{
	TriggerTime, TriggerTimeRange, TriggerLocation, TriggerBatteryLevel, TriggerChargingStatus,
	TriggerWifiConnected, TriggerBluetoothConnected, TriggerHeadphonesConnected,
	TriggerAppOpened, TriggerAirplaneMode, TriggerDNDState,
}

// Valid reports whether k is a known trigger kind
func (k TriggerKind) Valid() bool {
	for _, known := range TriggerKinds {
		if k == known {
			return true
		}
	}
	return false
}

// ConditionKind enumerates the closed set of condition kinds
type ConditionKind string

const (
	ConditionTimeRange           ConditionKind = "TIME_RANGE"
	ConditionLocation            ConditionKind = "LOCATION"
	ConditionBatteryLevel        ConditionKind = "BATTERY_LEVEL"
	ConditionChargingStatus      ConditionKind = "CHARGING_STATUS"
	ConditionWifiConnected       ConditionKind = "WIFI_CONNECTED"
	ConditionBluetoothConnected  ConditionKind = "BLUETOOTH_CONNECTED"
	ConditionHeadphonesConnected ConditionKind = "HEADPHONES_CONNECTED"
	ConditionScreenOn            ConditionKind = "SCREEN_ON"
	ConditionNetworkType         ConditionKind = "NETWORK_TYPE"
	ConditionAirplaneMode        ConditionKind = "AIRPLANE_MODE"
	ConditionDNDState            ConditionKind = "DND_STATE"
)

// ConditionKinds lists every condition kind
var ConditionKinds = []ConditionKind{
	ConditionTimeRange, ConditionLocation, ConditionBatteryLevel, ConditionChargingStatus,
	ConditionWifiConnected, ConditionBluetoothConnected, ConditionHeadphonesConnected,
	ConditionScreenOn, ConditionNetworkType, ConditionAirplaneMode, ConditionDNDState,
}

// Valid reports whether k is a known condition kind
func (k ConditionKind) Valid() bool {
	for _, known := range ConditionKinds {
		if k == known {
			return true
		}
	}
	return false
}

// ActionKind enumerates the closed set of action kinds
type ActionKind string

const (
	ActionFlashlight           ActionKind = "FLASHLIGHT"
	ActionVibrate              ActionKind = "VIBRATE"
	ActionSetVolume            ActionKind = "SET_VOLUME"
	ActionSetRingerMode        ActionKind = "SET_RINGER_MODE"
	ActionEnableSilentMode     ActionKind = "ENABLE_SILENT_MODE"
	ActionDisableSilentMode    ActionKind = "DISABLE_SILENT_MODE"
	ActionEnableVibrateMode    ActionKind = "ENABLE_VIBRATE_MODE"
	ActionSetBrightness        ActionKind = "SET_BRIGHTNESS"
	ActionToggleAutoBrightness ActionKind = "TOGGLE_AUTO_BRIGHTNESS"
	ActionToggleAutoRotate     ActionKind = "TOGGLE_AUTO_ROTATE"
	ActionLockScreen           ActionKind = "LOCK_SCREEN"
	ActionTakeScreenshot       ActionKind = "TAKE_SCREENSHOT"
	ActionShowPowerDialog      ActionKind = "SHOW_POWER_DIALOG"
	ActionLaunchApp            ActionKind = "LAUNCH_APP"
	ActionBlockApp             ActionKind = "BLOCK_APP"
	ActionUnblockApp           ActionKind = "UNBLOCK_APP"
	ActionSendNotification     ActionKind = "SEND_NOTIFICATION"
	ActionClearNotifications   ActionKind = "CLEAR_NOTIFICATIONS"
	ActionEnableDND            ActionKind = "ENABLE_DND"
	ActionDisableDND           ActionKind = "DISABLE_DND"
)

// ActionKinds lists every action kind
var ActionKinds = []ActionKind{
	ActionFlashlight, ActionVibrate, ActionSetVolume, ActionSetRingerMode,
	ActionEnableSilentMode, ActionDisableSilentMode, ActionEnableVibrateMode,
	ActionSetBrightness, ActionToggleAutoBrightness, ActionToggleAutoRotate,
	ActionLockScreen, ActionTakeScreenshot, ActionShowPowerDialog,
	ActionLaunchApp, ActionBlockApp, ActionUnblockApp,
	ActionSendNotification, ActionClearNotifications, ActionEnableDND, ActionDisableDND,
}

// Valid reports whether k is a known action kind
func (k ActionKind) Valid() bool {
	for _, known := range ActionKinds {
		if k == known {
			return true
		}
	}
	return false
}
