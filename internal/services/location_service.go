package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"automator/internal/models"
	"automator/internal/mqtt"

	"go.uber.org/zap"
)

// LocationService asks the host for a fresh location fix
type LocationService struct {
	req *requester
}

func NewLocationService(client Publisher, deviceID string, logger *zap.Logger) *LocationService {
	topic := mqtt.LocationTopic(deviceID)
	return &LocationService{req: newRequester(client, topic, mqtt.ResultTopic(topic), logger.Named("location"))}
}

// Start subscribes to fix results
func (s *LocationService) Start(ctx context.Context) error { return s.req.start(ctx) }

func (s *LocationService) Stop() { s.req.stop() }

// FreshFix implements automation.LocationProvider
func (s *LocationService) FreshFix(ctx context.Context) (models.Location, error) {
	raw, err := s.req.do(ctx, "fresh location fix", map[string]any{"priority": "high_accuracy"})
	if err != nil {
		return models.Location{}, err
	}
	var fix struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
		Accuracy  float64  `json:"accuracy"`
		Time      int64    `json:"time"`
	}
	if err := json.Unmarshal(raw, &fix); err != nil {
		return models.Location{}, models.NewTransientError("decode location fix", err)
	}
	if fix.Latitude == nil || fix.Longitude == nil {
		return models.Location{}, models.NewTransientError("fresh location fix", fmt.Errorf("host returned no coordinates"))
	}
	at := time.Now()
	if fix.Time > 0 {
		at = time.UnixMilli(fix.Time)
	}
	return models.Location{Latitude: *fix.Latitude, Longitude: *fix.Longitude, Accuracy: fix.Accuracy, Time: at}, nil
}
