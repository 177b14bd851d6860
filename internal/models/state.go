package models

import (
	"strconv"
	"strings"
	"time"
)

// Interruption filter levels reported by the host for Do-Not-Disturb
const (
	DNDFilterUnknown  = 0
	DNDFilterAll      = 1
	DNDFilterPriority = 2
	DNDFilterNone     = 3
	DNDFilterAlarms   = 4
)

// Event metadata keys shared by event sources and the state overlay
const (
	MetaBatteryLevel        = "battery_level"
	MetaCharging            = "is_charging"
	MetaWifiConnected       = "wifi_connected"
	MetaWifiSSID            = "wifi_ssid"
	MetaBluetoothConnected  = "bluetooth_connected"
	MetaBluetoothDevice     = "bluetooth_device"
	MetaHeadphonesConnected = "headphones_connected"
	MetaAirplaneMode        = "airplane_mode"
	MetaDNDFilter           = "dnd_filter"
	MetaScreenOn            = "screen_on"
	MetaNetworkTransport    = "network_transport"
	MetaPackageName         = "package_name"
	MetaLatitude            = "latitude"
	MetaLongitude           = "longitude"
	MetaAccuracy            = "accuracy"
	MetaGeofenceID          = "geofence_id"
	MetaTransition          = "transition"
)

// Permission names reported by the host
const (
	PermissionLocation           = "location"
	PermissionBluetoothConnect   = "bluetooth_connect"
	PermissionNotificationPolicy = "notification_policy"
	PermissionWriteSettings      = "write_settings"
	PermissionPostNotifications  = "post_notifications"
	CapabilityCameraFlash        = "camera_flash"
)

// Host listener services whose connection state gates some actions
const (
	ServiceAccessibility        = "accessibility"
	ServiceNotificationListener = "notification_listener"
)

// DeviceState is the last known snapshot of the host device
type DeviceState struct {
	DeviceID            string          `json:"device_id"`
	BatteryLevel        *int            `json:"battery_level,omitempty"`
	Charging            bool            `json:"charging"`
	WifiConnected       bool            `json:"wifi_connected"`
	WifiSSID            string          `json:"wifi_ssid"`
	BluetoothConnected  bool            `json:"bluetooth_connected"`
	BluetoothDevices    []string        `json:"bluetooth_devices"`
	HeadphonesConnected bool            `json:"headphones_connected"`
	AirplaneMode        bool            `json:"airplane_mode"`
	DNDFilter           int             `json:"dnd_filter"`
	ScreenOn            bool            `json:"screen_on"`
	NetworkTransport    string          `json:"network_transport"`
	Location            *Location       `json:"location,omitempty"`
	Permissions         map[string]bool `json:"permissions"`
	VolumeMax           map[string]int  `json:"volume_max"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// Granted reports whether the host has granted the named permission or capability
func (s DeviceState) Granted(name string) bool {
	return s.Permissions != nil && s.Permissions[name]
}

// Apply overlays the known metadata keys of an event onto a copy of the state.
// Unparseable values are ignored and keep the snapshot value.
func (s DeviceState) Apply(meta map[string]string) DeviceState {
	if len(meta) == 0 {
		return s
	}
	out := s
	if v, ok := meta[MetaBatteryLevel]; ok {
		if n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(v), "%")); err == nil {
			out.BatteryLevel = &n
		}
	}
	overlayBool(meta, MetaCharging, &out.Charging)
	overlayBool(meta, MetaWifiConnected, &out.WifiConnected)
	if v, ok := meta[MetaWifiSSID]; ok {
		out.WifiSSID = strings.Trim(v, `"`)
	}
	overlayBool(meta, MetaBluetoothConnected, &out.BluetoothConnected)
	if v, ok := meta[MetaBluetoothDevice]; ok && v != "" {
		out.BluetoothDevices = appendUnique(out.BluetoothDevices, v)
	}
	overlayBool(meta, MetaHeadphonesConnected, &out.HeadphonesConnected)
	overlayBool(meta, MetaAirplaneMode, &out.AirplaneMode)
	if v, ok := meta[MetaDNDFilter]; ok {
		if n, err := strconv.Atoi(v); err == nil {
			out.DNDFilter = n
		}
	}
	overlayBool(meta, MetaScreenOn, &out.ScreenOn)
	if v, ok := meta[MetaNetworkTransport]; ok {
		out.NetworkTransport = v
	}
	if lat, lon, ok := parseLatLon(meta); ok {
		loc := Location{Latitude: lat, Longitude: lon, Time: time.Now()}
		if acc, err := strconv.ParseFloat(meta[MetaAccuracy], 64); err == nil {
			loc.Accuracy = acc
		}
		out.Location = &loc
	}
	return out
}

func overlayBool(meta map[string]string, key string, dst *bool) {
	v, ok := meta[key]
	if !ok {
		return
	}
	if b, err := strconv.ParseBool(v); err == nil {
		*dst = b
	}
}

func parseLatLon(meta map[string]string) (float64, float64, bool) {
	latRaw, okLat := meta[MetaLatitude]
	lonRaw, okLon := meta[MetaLongitude]
	if !okLat || !okLon {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(latRaw, 64)
	if err != nil {
		return 0, 0, false
	}
	lon, err := strconv.ParseFloat(lonRaw, 64)
	if err != nil {
		return 0, 0, false
	}
	return lat, lon, true
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	out := make([]string, 0, len(list)+1)
	out = append(out, list...)
	return append(out, v)
}
