package automation

import (
	"context"
	"strconv"
	"time"

	"automator/internal/models"
)

// StateStore keeps the device snapshot between reports
type StateStore interface {
	StateProvider
	Save(ctx context.Context, s models.DeviceState) error
}

// ProcessDeviceUpdate stores a fresh state report and returns the events its changes imply.
// The first report for a device only establishes the baseline.
func ProcessDeviceUpdate(ctx context.Context, store StateStore, next models.DeviceState) ([]models.Event, error) {
	last, err := store.Snapshot(ctx)
	if err != nil && !models.IsNotFound(err) {
		return nil, err
	}
	baseline := err != nil

	if next.UpdatedAt.IsZero() {
		next.UpdatedAt = time.Now()
	}
	if err := store.Save(ctx, next); err != nil {
		return nil, err
	}
	if baseline {
		return nil, nil
	}
	return DiffState(last, next, next.UpdatedAt), nil
}

// DiffState returns one event per trigger kind whose signal changed between two snapshots
func DiffState(last, next models.DeviceState, at time.Time) []models.Event {
	var events []models.Event
	emit := func(kind models.TriggerKind, meta map[string]string) {
		events = append(events, models.Event{Kind: kind, Metadata: meta, Timestamp: at})
	}

	if next.BatteryLevel != nil && (last.BatteryLevel == nil || *last.BatteryLevel != *next.BatteryLevel) {
		emit(models.TriggerBatteryLevel, map[string]string{models.MetaBatteryLevel: strconv.Itoa(*next.BatteryLevel)})
	}
	if last.Charging != next.Charging {
		emit(models.TriggerChargingStatus, map[string]string{models.MetaCharging: strconv.FormatBool(next.Charging)})
	}
	if last.WifiConnected != next.WifiConnected || last.WifiSSID != next.WifiSSID {
		emit(models.TriggerWifiConnected, map[string]string{
			models.MetaWifiConnected: strconv.FormatBool(next.WifiConnected),
			models.MetaWifiSSID:      next.WifiSSID,
		})
	}
	if last.BluetoothConnected != next.BluetoothConnected || !sameSet(last.BluetoothDevices, next.BluetoothDevices) {
		meta := map[string]string{models.MetaBluetoothConnected: strconv.FormatBool(next.BluetoothConnected)}
		if added := newItems(last.BluetoothDevices, next.BluetoothDevices); len(added) > 0 {
			meta[models.MetaBluetoothDevice] = added[0]
		}
		emit(models.TriggerBluetoothConnected, meta)
	}
	if last.HeadphonesConnected != next.HeadphonesConnected {
		emit(models.TriggerHeadphonesConnected, map[string]string{models.MetaHeadphonesConnected: strconv.FormatBool(next.HeadphonesConnected)})
	}
	if last.AirplaneMode != next.AirplaneMode {
		emit(models.TriggerAirplaneMode, map[string]string{models.MetaAirplaneMode: strconv.FormatBool(next.AirplaneMode)})
	}
	if last.DNDFilter != next.DNDFilter && next.DNDFilter != models.DNDFilterUnknown {
		lastOn, lastErr := DNDOn(last.DNDFilter)
		nextOn, _ := DNDOn(next.DNDFilter)
		if lastErr != nil || lastOn != nextOn {
			emit(models.TriggerDNDState, map[string]string{models.MetaDNDFilter: strconv.Itoa(next.DNDFilter)})
		}
	}
	return events
}

func sameSet(a, b []string) bool {
	return len(newItems(a, b)) == 0 && len(newItems(b, a)) == 0
}

// newItems returns the entries of next that are absent from prev
func newItems(prev, next []string) []string {
	seen := make(map[string]struct{}, len(prev))
	for _, v := range prev {
		seen[v] = struct{}{}
	}
	var out []string
	for _, v := range next {
		if _, ok := seen[v]; !ok {
			out = append(out, v)
		}
	}
	return out
}
