// Package params parses the flat string-keyed parameter blobs of triggers,
// conditions and actions into one typed schema per kind.
package params

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrMissing is wrapped when a structurally required key is absent
var ErrMissing = errors.New("missing required parameter")

// TimeOfDay is the schema of TIME triggers
type TimeOfDay struct {
	Hour   int
	Minute int
	Days   map[time.Weekday]bool
}

// Minutes returns the minute of day
func (t TimeOfDay) Minutes() int { return t.Hour*60 + t.Minute }

// OnDay reports whether the trigger fires on d; an empty day set means every day
func (t TimeOfDay) OnDay(d time.Weekday) bool {
	if len(t.Days) == 0 {
		return true
	}
	return t.Days[d]
}

// TimeRange is the schema of TIME_RANGE triggers and conditions, in minutes of day
type TimeRange struct {
	Start int
	End   int
}

// Location is the schema of LOCATION triggers and conditions
type Location struct {
	Latitude   float64
	Longitude  float64
	Radius     float64
	Transition string
}

// Geofence transitions
const (
	TransitionEnter = "enter"
	TransitionExit  = "exit"
	TransitionDwell = "dwell"
)

// Battery operators
const (
	OpLessThan    = "less_than"
	OpGreaterThan = "greater_than"
	OpEquals      = "equals"
)

// Battery is the schema of BATTERY_LEVEL triggers and conditions
type Battery struct {
	Level    int
	Operator string
}

// Charging is the schema of CHARGING_STATUS
type Charging struct {
	Charging bool
}

// Wifi is the schema of WIFI_CONNECTED; blank SSID matches any network
type Wifi struct {
	SSID string
}

// Bluetooth is the schema of BLUETOOTH_CONNECTED; blank name matches any device
type Bluetooth struct {
	DeviceName string
}

// Headphones is the schema of HEADPHONES_CONNECTED
type Headphones struct {
	Connected bool
}

// AppOpened is the schema of APP_OPENED
type AppOpened struct {
	PackageName string
}

// Toggle is the schema of on/off state kinds (airplane mode, DND, screen)
type Toggle struct {
	On bool
}

// NetworkType is the schema of NETWORK_TYPE
type NetworkType struct {
	Transport string
}

// ParseClock parses "HH:mm" into hour and minute
func ParseClock(s string) (int, int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, 0, ErrMissing
	}
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("time out of range %q", s)
	}
	return h, m, nil
}

var dayCodes = map[string]time.Weekday{
	"SUN": time.Sunday,
	"MON": time.Monday,
	"TUE": time.Tuesday,
	"WED": time.Wednesday,
	"THU": time.Thursday,
	"FRI": time.Friday,
	"SAT": time.Saturday,
}

// DayCode returns the three-letter code of d
func DayCode(d time.Weekday) string {
	return strings.ToUpper(d.String()[:3])
}

// ParseDays parses "MON,TUE,..." into a day set. Empty input yields an empty set.
func ParseDays(s string) (map[time.Weekday]bool, error) {
	days := make(map[time.Weekday]bool)
	for _, tok := range strings.Split(s, ",") {
		tok = strings.ToUpper(strings.TrimSpace(tok))
		if tok == "" {
			continue
		}
		if len(tok) > 3 {
			tok = tok[:3]
		}
		d, ok := dayCodes[tok]
		if !ok {
			return nil, fmt.Errorf("unknown day code %q", tok)
		}
		days[d] = true
	}
	return days, nil
}

func required(raw map[string]string, key string) (string, error) {
	v := strings.TrimSpace(raw[key])
	if v == "" {
		return "", fmt.Errorf("%w: %s", ErrMissing, key)
	}
	return v, nil
}

func optional(raw map[string]string, key, def string) string {
	v := strings.TrimSpace(raw[key])
	if v == "" {
		return def
	}
	return v
}

func floatParam(raw map[string]string, key string) (float64, error) {
	v, err := required(raw, key)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return f, nil
}

func intParam(raw map[string]string, key string, def int) (int, error) {
	v := strings.TrimSuffix(optional(raw, key, ""), "%")
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return n, nil
}

func percentParam(raw map[string]string, key string, def int) (int, error) {
	n, err := intParam(raw, key, def)
	if err != nil {
		return 0, err
	}
	if n < 0 || n > 100 {
		return 0, fmt.Errorf("%s %d outside 0-100", key, n)
	}
	return n, nil
}

// boolParam accepts true/false or the kind-specific words for true and false
func boolParam(raw map[string]string, key, yes, no string, def bool) (bool, error) {
	v := strings.ToLower(optional(raw, key, ""))
	switch v {
	case "":
		return def, nil
	case yes, "true", "1":
		return true, nil
	case no, "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid %s %q", key, v)
}

func oneOf(raw map[string]string, key, def string, allowed ...string) (string, error) {
	v := strings.ToLower(optional(raw, key, def))
	for _, a := range allowed {
		if v == a {
			return v, nil
		}
	}
	return "", fmt.Errorf("invalid %s %q", key, v)
}

func parseTimeOfDay(raw map[string]string) (any, error) {
	h, m, err := ParseClock(raw["time"])
	if err != nil {
		return nil, fmt.Errorf("time: %w", err)
	}
	days, err := ParseDays(raw["days"])
	if err != nil {
		return nil, err
	}
	return TimeOfDay{Hour: h, Minute: m, Days: days}, nil
}

func parseTimeRange(raw map[string]string) (any, error) {
	sh, sm, err := ParseClock(raw["start_time"])
	if err != nil {
		return nil, fmt.Errorf("start_time: %w", err)
	}
	eh, em, err := ParseClock(raw["end_time"])
	if err != nil {
		return nil, fmt.Errorf("end_time: %w", err)
	}
	return TimeRange{Start: sh*60 + sm, End: eh*60 + em}, nil
}

func parseLocation(raw map[string]string) (any, error) {
	lat, err := floatParam(raw, "latitude")
	if err != nil {
		return nil, err
	}
	lon, err := floatParam(raw, "longitude")
	if err != nil {
		return nil, err
	}
	radius := 100.0
	if v := optional(raw, "radius", ""); v != "" {
		if radius, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, fmt.Errorf("invalid radius %q", v)
		}
	}
	transition, err := oneOf(raw, "transition", TransitionEnter, TransitionEnter, TransitionExit, TransitionDwell)
	if err != nil {
		return nil, err
	}
	return Location{Latitude: lat, Longitude: lon, Radius: radius, Transition: transition}, nil
}

func parseBattery(raw map[string]string) (any, error) {
	level, err := percentParam(raw, "level", 20)
	if err != nil {
		return nil, err
	}
	op, err := oneOf(raw, "operator", OpLessThan, OpLessThan, OpGreaterThan, OpEquals)
	if err != nil {
		return nil, err
	}
	return Battery{Level: level, Operator: op}, nil
}

func parseCharging(raw map[string]string) (any, error) {
	on, err := boolParam(raw, "state", "charging", "not_charging", true)
	if err != nil {
		return nil, err
	}
	return Charging{Charging: on}, nil
}

func parseWifi(raw map[string]string) (any, error) {
	return Wifi{SSID: strings.Trim(optional(raw, "ssid", ""), `"`)}, nil
}

func parseBluetooth(raw map[string]string) (any, error) {
	return Bluetooth{DeviceName: optional(raw, "device_name", "")}, nil
}

func parseHeadphones(raw map[string]string) (any, error) {
	on, err := boolParam(raw, "state", "connected", "disconnected", true)
	if err != nil {
		return nil, err
	}
	return Headphones{Connected: on}, nil
}

func parseAppOpened(raw map[string]string) (any, error) {
	pkg, err := required(raw, "package_name")
	if err != nil {
		return nil, err
	}
	return AppOpened{PackageName: pkg}, nil
}

func parseToggle(raw map[string]string) (any, error) {
	on, err := boolParam(raw, "state", "on", "off", true)
	if err != nil {
		return nil, err
	}
	return Toggle{On: on}, nil
}

func parseNetworkType(raw map[string]string) (any, error) {
	t, err := oneOf(raw, "type", "wifi", "wifi", "cellular", "ethernet", "vpn", "none")
	if err != nil {
		return nil, err
	}
	return NetworkType{Transport: t}, nil
}
