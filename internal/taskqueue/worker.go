package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"

	"automator/internal/models"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// AlarmHandler receives fired alarms
type AlarmHandler func(ctx context.Context, alarm models.Alarm) error

// Worker runs the asynq server that delivers fired alarms
type Worker struct {
	srv    *asynq.Server
	mux    *asynq.ServeMux
	logger *zap.Logger
}

// NewWorker creates a worker on the given Redis connection
func NewWorker(redis asynq.RedisConnOpt, concurrency int, handle AlarmHandler, logger *zap.Logger) *Worker {
	logger = logger.Named("taskqueue")
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeAlarmFire, alarmTaskHandler(handle, logger))
	srv := asynq.NewServer(redis, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{AlarmQueue: 1},
		Logger:      logger.Sugar(),
	})
	return &Worker{srv: srv, mux: mux, logger: logger}
}

func alarmTaskHandler(handle AlarmHandler, logger *zap.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var alarm models.Alarm
		if err := json.Unmarshal(t.Payload(), &alarm); err != nil {
			return fmt.Errorf("decode alarm: %v: %w", err, asynq.SkipRetry)
		}
		logger.Info("Alarm fired", zap.String("key", alarm.Key), zap.Time("fire_at", alarm.FireAt))
		return handle(ctx, alarm)
	}
}

// Start starts processing in the background
func (w *Worker) Start() error {
	w.logger.Info("Starting alarm worker")
	return w.srv.Start(w.mux)
}

// Shutdown stops the worker and waits for in-flight tasks
func (w *Worker) Shutdown() {
	w.srv.Shutdown()
	w.logger.Info("Alarm worker stopped")
}
