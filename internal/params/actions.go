package params

import (
	"fmt"
	"time"
)

// Flashlight is the schema of FLASHLIGHT
type Flashlight struct {
	Mode string // on, off, toggle
}

// Vibrate is the schema of VIBRATE
type Vibrate struct {
	Duration time.Duration
}

// Volume is the schema of SET_VOLUME
type Volume struct {
	Stream  string
	Percent int
}

// RingerMode is the schema of SET_RINGER_MODE
type RingerMode struct {
	Mode string // normal, vibrate, silent
}

// Brightness is the schema of SET_BRIGHTNESS
type Brightness struct {
	Percent int
}

// Switch is the schema of the auto-brightness and auto-rotate toggles
type Switch struct {
	Enabled bool
}

// Package is the schema of LAUNCH_APP, BLOCK_APP and UNBLOCK_APP
type Package struct {
	PackageName string
}

// Notification is the schema of SEND_NOTIFICATION
type Notification struct {
	Title   string
	Message string
}

// DNDMode is the schema of ENABLE_DND
type DNDMode struct {
	Mode string // priority, alarms, none
}

// None is the schema of kinds without parameters
type None struct{}

const maxVibrate = 10 * time.Second

func parseFlashlight(raw map[string]string) (any, error) {
	mode, err := oneOf(raw, "state", "toggle", "on", "off", "toggle")
	if err != nil {
		return nil, err
	}
	return Flashlight{Mode: mode}, nil
}

func parseVibrate(raw map[string]string) (any, error) {
	ms, err := intParam(raw, "duration_ms", 500)
	if err != nil {
		return nil, err
	}
	d := time.Duration(ms) * time.Millisecond
	if d < time.Millisecond {
		d = time.Millisecond
	}
	if d > maxVibrate {
		d = maxVibrate
	}
	return Vibrate{Duration: d}, nil
}

func parseVolume(raw map[string]string) (any, error) {
	stream, err := oneOf(raw, "stream", "media", "media", "ring", "alarm", "notification")
	if err != nil {
		return nil, err
	}
	if _, err := required(raw, "level"); err != nil {
		return nil, err
	}
	pct, err := percentParam(raw, "level", 0)
	if err != nil {
		return nil, err
	}
	return Volume{Stream: stream, Percent: pct}, nil
}

func parseRingerMode(raw map[string]string) (any, error) {
	if _, err := required(raw, "mode"); err != nil {
		return nil, err
	}
	mode, err := oneOf(raw, "mode", "", "normal", "vibrate", "silent")
	if err != nil {
		return nil, err
	}
	return RingerMode{Mode: mode}, nil
}

func parseBrightness(raw map[string]string) (any, error) {
	if _, err := required(raw, "level"); err != nil {
		return nil, err
	}
	pct, err := percentParam(raw, "level", 0)
	if err != nil {
		return nil, err
	}
	return Brightness{Percent: pct}, nil
}

func parseSwitch(raw map[string]string) (any, error) {
	on, err := boolParam(raw, "enabled", "on", "off", true)
	if err != nil {
		return nil, err
	}
	return Switch{Enabled: on}, nil
}

func parsePackage(raw map[string]string) (any, error) {
	pkg, err := required(raw, "package_name")
	if err != nil {
		return nil, err
	}
	return Package{PackageName: pkg}, nil
}

func parseNotification(raw map[string]string) (any, error) {
	msg := optional(raw, "message", "")
	if msg == "" {
		return nil, fmt.Errorf("%w: message", ErrMissing)
	}
	return Notification{Title: optional(raw, "title", "Automation"), Message: msg}, nil
}

func parseDNDMode(raw map[string]string) (any, error) {
	mode, err := oneOf(raw, "mode", "priority", "priority", "alarms", "none")
	if err != nil {
		return nil, err
	}
	return DNDMode{Mode: mode}, nil
}

func parseNone(map[string]string) (any, error) {
	return None{}, nil
}
