package automation

import (
	"context"
	"fmt"
	"math"

	"automator/internal/models"
	"automator/internal/params"
	"automator/internal/utils"
)

// Settings surfaces the host can open to let the user grant a permission
const (
	SurfaceNotificationPolicy   = "notification_policy_access_settings"
	SurfaceWriteSettings        = "manage_write_settings"
	SurfaceAccessibility        = "accessibility_settings"
	SurfaceNotificationListener = "notification_listener_settings"
	SurfaceAppNotifications     = "app_notification_settings"
	SurfaceLocation             = "location_source_settings"
	SurfaceBluetooth            = "bluetooth_settings"
)

const (
	defaultVolumeMax = 15
	brightnessMax    = 255
)

var launchFlags = []string{"new_task", "reset_task_if_needed"}

func settingsSurface(permission string) string {
	switch permission {
	case models.PermissionNotificationPolicy:
		return SurfaceNotificationPolicy
	case models.PermissionWriteSettings:
		return SurfaceWriteSettings
	case models.PermissionPostNotifications:
		return SurfaceAppNotifications
	case models.PermissionLocation:
		return SurfaceLocation
	case models.PermissionBluetoothConnect:
		return SurfaceBluetooth
	case models.ServiceAccessibility:
		return SurfaceAccessibility
	case models.ServiceNotificationListener:
		return SurfaceNotificationListener
	}
	return ""
}

// ToNative converts a 0-100 percentage into a device range 0..max
func ToNative(percent, max int) int {
	return int(math.Round(float64(utils.Clamp(percent, 0, 100)) * float64(max) / 100))
}

func defaultHandlers() map[models.ActionKind]ActionHandler {
	return map[models.ActionKind]ActionHandler{
		models.ActionFlashlight:           flashlight,
		models.ActionVibrate:              vibrate,
		models.ActionSetVolume:            setVolume,
		models.ActionSetRingerMode:        setRingerMode,
		models.ActionEnableSilentMode:     ringerPreset("silent"),
		models.ActionDisableSilentMode:    ringerPreset("normal"),
		models.ActionEnableVibrateMode:    ringerPreset("vibrate"),
		models.ActionSetBrightness:        setBrightness,
		models.ActionToggleAutoBrightness: settingSwitch("set_auto_brightness"),
		models.ActionToggleAutoRotate:     settingSwitch("set_auto_rotate"),
		models.ActionLockScreen:           globalAction("lock_screen"),
		models.ActionTakeScreenshot:       globalAction("take_screenshot"),
		models.ActionShowPowerDialog:      globalAction("power_dialog"),
		models.ActionLaunchApp:            launchApp,
		models.ActionBlockApp:             blockApp,
		models.ActionUnblockApp:           unblockApp,
		models.ActionSendNotification:     sendNotification,
		models.ActionClearNotifications:   clearNotifications,
		models.ActionEnableDND:            enableDND,
		models.ActionDisableDND:           disableDND,
	}
}

func send(ctx context.Context, env *ActionEnv, a models.Action, cmd models.Command) error {
	if env.Commander == nil {
		return models.NewActionError(string(a.Kind), a.ID, fmt.Errorf("no commander configured"))
	}
	if err := env.Commander.Send(ctx, cmd); err != nil {
		return models.NewActionError(string(a.Kind), a.ID, err)
	}
	return nil
}

// deny redirects the user to the settings surface that grants permission and reports the gap
func deny(ctx context.Context, env *ActionEnv, a models.Action, permission string) error {
	surface := settingsSurface(permission)
	if env.Commander != nil && surface != "" {
		// best effort; the permission error is what the caller sees
		_ = env.Commander.Send(ctx, models.Command{Name: "open_settings", Args: map[string]any{"surface": surface}})
	}
	return models.NewPermissionError(string(a.Kind), permission, surface)
}

func requireGranted(ctx context.Context, env *ActionEnv, a models.Action, permission string) error {
	if env.State.Granted(permission) {
		return nil
	}
	return deny(ctx, env, a, permission)
}

func requireService(ctx context.Context, env *ActionEnv, a models.Action, service string) error {
	if env.Services != nil && env.Services.Connected(service) {
		return nil
	}
	return deny(ctx, env, a, service)
}

func typed[T any](a models.Action) (T, error) {
	v, ok := a.Params.(T)
	if !ok {
		var zero T
		return zero, models.NewMalformedError(string(a.Kind), fmt.Errorf("unexpected parameters %T", a.Params))
	}
	return v, nil
}

func flashlight(ctx context.Context, env *ActionEnv, a models.Action) error {
	p, err := typed[params.Flashlight](a)
	if err != nil {
		return err
	}
	if !env.State.Granted(models.CapabilityCameraFlash) {
		return models.NewActionError(string(a.Kind), a.ID, fmt.Errorf("flash unit unavailable"))
	}
	return send(ctx, env, a, models.Command{Name: "flashlight", Args: map[string]any{"state": p.Mode}})
}

func vibrate(ctx context.Context, env *ActionEnv, a models.Action) error {
	p, err := typed[params.Vibrate](a)
	if err != nil {
		return err
	}
	return send(ctx, env, a, models.Command{Name: "vibrate", Args: map[string]any{"duration_ms": p.Duration.Milliseconds()}})
}

func setVolume(ctx context.Context, env *ActionEnv, a models.Action) error {
	p, err := typed[params.Volume](a)
	if err != nil {
		return err
	}
	max := defaultVolumeMax
	if m, ok := env.State.VolumeMax[p.Stream]; ok && m > 0 {
		max = m
	}
	return send(ctx, env, a, models.Command{Name: "set_volume", Args: map[string]any{
		"stream": p.Stream,
		"level":  ToNative(p.Percent, max),
	}})
}

func setRingerMode(ctx context.Context, env *ActionEnv, a models.Action) error {
	p, err := typed[params.RingerMode](a)
	if err != nil {
		return err
	}
	if err := requireGranted(ctx, env, a, models.PermissionNotificationPolicy); err != nil {
		return err
	}
	return send(ctx, env, a, models.Command{Name: "set_ringer_mode", Args: map[string]any{"mode": p.Mode}})
}

func ringerPreset(mode string) ActionHandler {
	return func(ctx context.Context, env *ActionEnv, a models.Action) error {
		if err := requireGranted(ctx, env, a, models.PermissionNotificationPolicy); err != nil {
			return err
		}
		return send(ctx, env, a, models.Command{Name: "set_ringer_mode", Args: map[string]any{"mode": mode}})
	}
}

func setBrightness(ctx context.Context, env *ActionEnv, a models.Action) error {
	p, err := typed[params.Brightness](a)
	if err != nil {
		return err
	}
	if err := requireGranted(ctx, env, a, models.PermissionWriteSettings); err != nil {
		return err
	}
	return send(ctx, env, a, models.Command{Name: "set_brightness", Args: map[string]any{
		"level": ToNative(p.Percent, brightnessMax),
		"auto":  false,
	}})
}

func settingSwitch(command string) ActionHandler {
	return func(ctx context.Context, env *ActionEnv, a models.Action) error {
		p, err := typed[params.Switch](a)
		if err != nil {
			return err
		}
		if err := requireGranted(ctx, env, a, models.PermissionWriteSettings); err != nil {
			return err
		}
		return send(ctx, env, a, models.Command{Name: command, Args: map[string]any{"enabled": p.Enabled}})
	}
}

func globalAction(action string) ActionHandler {
	return func(ctx context.Context, env *ActionEnv, a models.Action) error {
		if err := requireService(ctx, env, a, models.ServiceAccessibility); err != nil {
			return err
		}
		return send(ctx, env, a, models.Command{Name: "global_action", Args: map[string]any{"action": action}})
	}
}

func launchApp(ctx context.Context, env *ActionEnv, a models.Action) error {
	p, err := typed[params.Package](a)
	if err != nil {
		return err
	}
	if env.Packages == nil {
		return models.NewActionError(string(a.Kind), a.ID, fmt.Errorf("package catalog unavailable"))
	}
	installed, err := env.Packages.IsInstalled(ctx, p.PackageName)
	if err != nil {
		return models.NewTransientError("check installed package", err)
	}
	if !installed {
		return models.NewActionError(string(a.Kind), a.ID, fmt.Errorf("package %s is not installed", p.PackageName))
	}
	return send(ctx, env, a, models.Command{Name: "launch_app", Args: map[string]any{
		"package": p.PackageName,
		"flags":   launchFlags,
	}})
}

func blockApp(ctx context.Context, env *ActionEnv, a models.Action) error {
	p, err := typed[params.Package](a)
	if err != nil {
		return err
	}
	if env.BlockList == nil {
		return models.NewActionError(string(a.Kind), a.ID, fmt.Errorf("block list unavailable"))
	}
	if err := env.BlockList.Add(ctx, p.PackageName); err != nil {
		return models.NewActionError(string(a.Kind), a.ID, err)
	}
	return nil
}

func unblockApp(ctx context.Context, env *ActionEnv, a models.Action) error {
	p, err := typed[params.Package](a)
	if err != nil {
		return err
	}
	if env.BlockList == nil {
		return models.NewActionError(string(a.Kind), a.ID, fmt.Errorf("block list unavailable"))
	}
	if err := env.BlockList.Remove(ctx, p.PackageName); err != nil {
		return models.NewActionError(string(a.Kind), a.ID, err)
	}
	return nil
}

func sendNotification(ctx context.Context, env *ActionEnv, a models.Action) error {
	p, err := typed[params.Notification](a)
	if err != nil {
		return err
	}
	if err := requireGranted(ctx, env, a, models.PermissionPostNotifications); err != nil {
		return err
	}
	return send(ctx, env, a, models.Command{Name: "notify", Args: map[string]any{"title": p.Title, "message": p.Message}})
}

func clearNotifications(ctx context.Context, env *ActionEnv, a models.Action) error {
	if err := requireService(ctx, env, a, models.ServiceNotificationListener); err != nil {
		return err
	}
	return send(ctx, env, a, models.Command{Name: "clear_notifications"})
}

func enableDND(ctx context.Context, env *ActionEnv, a models.Action) error {
	p, err := typed[params.DNDMode](a)
	if err != nil {
		return err
	}
	if err := requireGranted(ctx, env, a, models.PermissionNotificationPolicy); err != nil {
		return err
	}
	return send(ctx, env, a, models.Command{Name: "set_dnd", Args: map[string]any{"mode": p.Mode}})
}

func disableDND(ctx context.Context, env *ActionEnv, a models.Action) error {
	if err := requireGranted(ctx, env, a, models.PermissionNotificationPolicy); err != nil {
		return err
	}
	return send(ctx, env, a, models.Command{Name: "set_dnd", Args: map[string]any{"mode": "off"}})
}
