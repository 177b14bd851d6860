package automation

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"automator/internal/models"

	"go.uber.org/zap"
)

const earthRadiusMeters = 6371000.0

// Haversine returns the great-circle distance in meters between two WGS84 points
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusMeters * 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// ErrNoLocation is returned when neither a recent last-known fix nor a fresh fix is available
var ErrNoLocation = errors.New("no location available")

// LocationResolver resolves the current position with a last-known fast path
// and a bounded fresh-fix fallback. Both paths fail closed.
type LocationResolver struct {
	states           StateProvider
	fresh            LocationProvider
	lastKnownTimeout time.Duration
	freshTimeout     time.Duration
	maxAge           time.Duration
	now              func() time.Time
	logger           *zap.Logger
}

// NewLocationResolver creates a resolver. fresh may be nil when the host offers no fix requests.
func NewLocationResolver(states StateProvider, fresh LocationProvider, lastKnownTimeout, freshTimeout, maxAge time.Duration, logger *zap.Logger) *LocationResolver {
	return &LocationResolver{
		states:           states,
		fresh:            fresh,
		lastKnownTimeout: lastKnownTimeout,
		freshTimeout:     freshTimeout,
		maxAge:           maxAge,
		now:              time.Now,
		logger:           logger.Named("location"),
	}
}

func (r *LocationResolver) recent(loc *models.Location) bool {
	return loc != nil && (r.maxAge <= 0 || r.now().Sub(loc.Time) <= r.maxAge)
}

// Resolve returns the current location. hint is a fix the caller already holds (e.g. from event metadata).
func (r *LocationResolver) Resolve(ctx context.Context, hint *models.Location) (models.Location, error) {
	if r.recent(hint) {
		return *hint, nil
	}

	if r.states != nil {
		lkCtx, cancel := context.WithTimeout(ctx, r.lastKnownTimeout)
		snap, err := r.states.Snapshot(lkCtx)
		cancel()
		if err == nil && r.recent(snap.Location) {
			return *snap.Location, nil
		}
		if err != nil {
			r.logger.Debug("Last known location unavailable", zap.Error(err))
		}
	}

	if r.fresh == nil {
		return models.Location{}, models.NewTransientError("resolve location", ErrNoLocation)
	}
	fixCtx, cancel := context.WithTimeout(ctx, r.freshTimeout)
	defer cancel()
	loc, err := r.fresh.FreshFix(fixCtx)
	if err != nil {
		return models.Location{}, models.NewTransientError("fresh location fix", fmt.Errorf("%w: %v", ErrNoLocation, err))
	}
	return loc, nil
}
