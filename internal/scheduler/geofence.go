package scheduler

import (
	"fmt"

	"automator/internal/models"
	"automator/internal/params"
)

// Geofence registration limits of the host
const (
	MinRadius   = 100.0
	MaxRadius   = 10000.0
	MaxIDLength = 100
	MaxBatch    = 100
)

// Key is the registration key shared by a trigger's alarm and geofence
func Key(ruleID, triggerID string) string {
	return fmt.Sprintf("rule_%s_trigger_%s", ruleID, triggerID)
}

// BuildGeofence validates a LOCATION trigger and turns it into a host geofence
func BuildGeofence(t models.Trigger) (models.Geofence, error) {
	if t.ParamsErr != nil {
		return models.Geofence{}, t.ParamsErr
	}
	loc, ok := t.Params.(params.Location)
	if !ok {
		return models.Geofence{}, models.NewMalformedError("build geofence", fmt.Errorf("trigger %s is not a location trigger", t.ID))
	}
	g := models.Geofence{
		ID:          Key(t.RuleID, t.ID),
		Latitude:    loc.Latitude,
		Longitude:   loc.Longitude,
		Radius:      loc.Radius,
		Transitions: []string{loc.Transition},
	}
	if err := ValidateGeofence(g); err != nil {
		return models.Geofence{}, err
	}
	return g, nil
}

// ValidateGeofence checks a geofence against the host limits
func ValidateGeofence(g models.Geofence) error {
	var err error
	switch {
	case g.ID == "":
		err = fmt.Errorf("empty geofence id")
	case len(g.ID) > MaxIDLength:
		err = fmt.Errorf("geofence id longer than %d characters", MaxIDLength)
	case g.Latitude < -90 || g.Latitude > 90:
		err = fmt.Errorf("latitude %f outside [-90, 90]", g.Latitude)
	case g.Longitude < -180 || g.Longitude > 180:
		err = fmt.Errorf("longitude %f outside [-180, 180]", g.Longitude)
	case g.Radius < MinRadius || g.Radius > MaxRadius:
		err = fmt.Errorf("radius %.0fm outside [%.0f, %.0f]", g.Radius, MinRadius, MaxRadius)
	}
	if err != nil {
		return models.NewMalformedError("validate geofence", err)
	}
	return nil
}

// batches splits fences into chunks no larger than MaxBatch
func batches(fences []models.Geofence) [][]models.Geofence {
	var out [][]models.Geofence
	for len(fences) > MaxBatch {
		out = append(out, fences[:MaxBatch])
		fences = fences[MaxBatch:]
	}
	if len(fences) > 0 {
		out = append(out, fences)
	}
	return out
}
