package automation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"automator/internal/models"
	"automator/internal/params"
	"automator/internal/utils"
)

// Env is the evaluation input shared by the checks of one rule evaluation
type Env struct {
	State    models.DeviceState
	StateErr error
	Event    *models.Event
	Now      time.Time
	Locate   func(ctx context.Context, hint *models.Location) (models.Location, error)
}

// Check evaluates one trigger or condition kind.
// Permission returns the permission the parameters require, or "".
type Check struct {
	NeedsState bool
	Permission func(p any) string
	Eval       func(ctx context.Context, env *Env, p any) (bool, error)
}

var errUnknownState = errors.New("state not reported by host")

// checks is keyed by kind name; trigger and condition kinds of the same name share an entry
var checks = map[string]Check{
	"TIME":                 {Eval: checkTimeOfDay},
	"TIME_RANGE":           {Eval: checkTimeRange},
	"LOCATION":             {Permission: always(models.PermissionLocation), Eval: checkLocation},
	"BATTERY_LEVEL":        {NeedsState: true, Eval: checkBattery},
	"CHARGING_STATUS":      {NeedsState: true, Eval: checkCharging},
	"WIFI_CONNECTED":       {NeedsState: true, Permission: wifiPermission, Eval: checkWifi},
	"BLUETOOTH_CONNECTED":  {NeedsState: true, Permission: always(models.PermissionBluetoothConnect), Eval: checkBluetooth},
	"HEADPHONES_CONNECTED": {NeedsState: true, Eval: checkHeadphones},
	"APP_OPENED":           {Eval: checkAppOpened},
	"AIRPLANE_MODE":        {NeedsState: true, Eval: checkAirplane},
	"DND_STATE":            {NeedsState: true, Eval: checkDND},
	"SCREEN_ON":            {NeedsState: true, Eval: checkScreen},
	"NETWORK_TYPE":         {NeedsState: true, Eval: checkNetwork},
}

func always(permission string) func(any) string {
	return func(any) string { return permission }
}

func wifiPermission(p any) string {
	if w, ok := p.(params.Wifi); ok && w.SSID != "" {
		return models.PermissionLocation
	}
	return ""
}

func badParams(p any) error {
	return models.NewMalformedError("evaluate", fmt.Errorf("unexpected parameters %T", p))
}

func checkTimeOfDay(_ context.Context, env *Env, p any) (bool, error) {
	tod, ok := p.(params.TimeOfDay)
	if !ok {
		return false, badParams(p)
	}
	return tod.OnDay(env.Now.Weekday()) && MinuteOfDay(env.Now) == tod.Minutes(), nil
}

func checkTimeRange(_ context.Context, env *Env, p any) (bool, error) {
	tr, ok := p.(params.TimeRange)
	if !ok {
		return false, badParams(p)
	}
	return InRange(MinuteOfDay(env.Now), tr.Start, tr.End), nil
}

func checkLocation(ctx context.Context, env *Env, p any) (bool, error) {
	loc, ok := p.(params.Location)
	if !ok {
		return false, badParams(p)
	}
	if env.Locate == nil {
		return false, models.NewTransientError("resolve location", ErrNoLocation)
	}
	var hint *models.Location
	if env.StateErr == nil {
		hint = env.State.Location
	}
	here, err := env.Locate(ctx, hint)
	if err != nil {
		return false, err
	}
	inside := Haversine(here.Latitude, here.Longitude, loc.Latitude, loc.Longitude) <= loc.Radius
	if loc.Transition == params.TransitionExit {
		return !inside, nil
	}
	return inside, nil
}

func checkBattery(_ context.Context, env *Env, p any) (bool, error) {
	b, ok := p.(params.Battery)
	if !ok {
		return false, badParams(p)
	}
	if env.State.BatteryLevel == nil {
		return false, fmt.Errorf("battery level: %w", errUnknownState)
	}
	return utils.Compare(*env.State.BatteryLevel, b.Operator, b.Level), nil
}

func checkCharging(_ context.Context, env *Env, p any) (bool, error) {
	c, ok := p.(params.Charging)
	if !ok {
		return false, badParams(p)
	}
	return env.State.Charging == c.Charging, nil
}

func checkWifi(_ context.Context, env *Env, p any) (bool, error) {
	w, ok := p.(params.Wifi)
	if !ok {
		return false, badParams(p)
	}
	if !env.State.WifiConnected {
		return false, nil
	}
	return w.SSID == "" || w.SSID == env.State.WifiSSID, nil
}

func checkBluetooth(_ context.Context, env *Env, p any) (bool, error) {
	b, ok := p.(params.Bluetooth)
	if !ok {
		return false, badParams(p)
	}
	if !env.State.BluetoothConnected {
		return false, nil
	}
	if b.DeviceName == "" {
		return true, nil
	}
	for _, name := range env.State.BluetoothDevices {
		if name == b.DeviceName {
			return true, nil
		}
	}
	return false, nil
}

func checkHeadphones(_ context.Context, env *Env, p any) (bool, error) {
	h, ok := p.(params.Headphones)
	if !ok {
		return false, badParams(p)
	}
	return env.State.HeadphonesConnected == h.Connected, nil
}

// APP_OPENED was already matched by package name before evaluation
func checkAppOpened(context.Context, *Env, any) (bool, error) {
	return true, nil
}

func checkAirplane(_ context.Context, env *Env, p any) (bool, error) {
	t, ok := p.(params.Toggle)
	if !ok {
		return false, badParams(p)
	}
	return env.State.AirplaneMode == t.On, nil
}

// DNDOn normalizes the interruption filter into on/off
func DNDOn(filter int) (bool, error) {
	switch filter {
	case models.DNDFilterAll:
		return false, nil
	case models.DNDFilterPriority, models.DNDFilterNone, models.DNDFilterAlarms:
		return true, nil
	}
	return false, fmt.Errorf("dnd filter %d: %w", filter, errUnknownState)
}

func checkDND(_ context.Context, env *Env, p any) (bool, error) {
	t, ok := p.(params.Toggle)
	if !ok {
		return false, badParams(p)
	}
	on, err := DNDOn(env.State.DNDFilter)
	if err != nil {
		return false, err
	}
	return on == t.On, nil
}

func checkScreen(_ context.Context, env *Env, p any) (bool, error) {
	t, ok := p.(params.Toggle)
	if !ok {
		return false, badParams(p)
	}
	return env.State.ScreenOn == t.On, nil
}

func checkNetwork(_ context.Context, env *Env, p any) (bool, error) {
	n, ok := p.(params.NetworkType)
	if !ok {
		return false, badParams(p)
	}
	transport := env.State.NetworkTransport
	if transport == "" {
		transport = "none"
	}
	return transport == n.Transport, nil
}
