package state

import (
	"context"
	"strconv"
	"sync"

	rkeys "automator/internal/redis"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Services tracks which host listener services are connected
type Services struct {
	mu       sync.RWMutex
	flags    map[string]bool
	client   *redis.Client
	deviceID string
	logger   *zap.Logger
}

func NewServices(client *redis.Client, deviceID string, logger *zap.Logger) *Services {
	return &Services{
		flags:    make(map[string]bool),
		client:   client,
		deviceID: deviceID,
		logger:   logger.Named("services"),
	}
}

// Connected implements automation.ServiceStatus
func (s *Services) Connected(service string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags[service]
}

// Set records a status change reported by the host
func (s *Services) Set(ctx context.Context, service string, connected bool) {
	s.mu.Lock()
	s.flags[service] = connected
	s.mu.Unlock()
	if s.client == nil {
		return
	}
	if err := s.client.HSet(ctx, rkeys.ServicesKey(s.deviceID), service, strconv.FormatBool(connected)).Err(); err != nil {
		s.logger.Warn("Failed to persist service status", zap.String("service", service), zap.Error(err))
	}
}

// Load restores the flags persisted by a previous run
func (s *Services) Load(ctx context.Context) error {
	raw, err := s.client.HGetAll(ctx, rkeys.ServicesKey(s.deviceID)).Result()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range raw {
		if b, err := strconv.ParseBool(v); err == nil {
			s.flags[k] = b
		}
	}
	return nil
}
