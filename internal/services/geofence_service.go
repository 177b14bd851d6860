package services

import (
	"context"

	"automator/internal/models"
	"automator/internal/mqtt"

	"go.uber.org/zap"
)

// GeofenceService registers and removes host geofences. Each call waits for the
// host's acknowledgement within the caller's deadline.
type GeofenceService struct {
	req *requester
}

func NewGeofenceService(client Publisher, deviceID string, logger *zap.Logger) *GeofenceService {
	topic := mqtt.GeofenceTopic(deviceID)
	return &GeofenceService{req: newRequester(client, topic, mqtt.ResultTopic(topic), logger.Named("geofences"))}
}

func (s *GeofenceService) Start(ctx context.Context) error { return s.req.start(ctx) }

func (s *GeofenceService) Stop() { s.req.stop() }

// AddGeofences registers a batch of geofences
func (s *GeofenceService) AddGeofences(ctx context.Context, fences []models.Geofence) error {
	_, err := s.req.do(ctx, "add geofences", map[string]any{"op": "add", "geofences": fences})
	return err
}

// RemoveGeofences removes geofences by id
func (s *GeofenceService) RemoveGeofences(ctx context.Context, ids []string) error {
	_, err := s.req.do(ctx, "remove geofences", map[string]any{"op": "remove", "ids": ids})
	return err
}
