package services

import (
	"context"
	"encoding/json"

	"automator/internal/models"
	"automator/internal/mqtt"

	"go.uber.org/zap"
)

// CommandService publishes commands to the host device
type CommandService struct {
	client Publisher
	topic  string
	logger *zap.Logger
}

func NewCommandService(client Publisher, deviceID string, logger *zap.Logger) *CommandService {
	return &CommandService{client: client, topic: mqtt.CommandsTopic(deviceID), logger: logger.Named("commands")}
}

// Send implements automation.Commander
func (s *CommandService) Send(ctx context.Context, cmd models.Command) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	s.logger.Debug("Publishing command", zap.String("topic", s.topic), zap.String("name", cmd.Name))
	return wait(ctx, s.client.Publish(s.topic, 1, false, payload))
}
