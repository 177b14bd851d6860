package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"automator/internal/models"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// TypeAlarmFire is the task type of a fired TIME trigger alarm
const TypeAlarmFire = "alarm:fire"

// AlarmQueue is the asynq queue alarms are scheduled on
const AlarmQueue = "alarms"

// dueWindow covers the asynq forwarder interval: a task this close to its process
// time may still be listed as scheduled while it is about to run.
const dueWindow = 10 * time.Second

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type inspector interface {
	ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	DeleteTask(queue, id string) error
}

// AlarmClock schedules one-shot alarms as asynq tasks processed at the fire time.
// Task ids are derived from the alarm key and fire time, so scheduling the same
// occurrence twice is a no-op.
type AlarmClock struct {
	client    enqueuer
	inspector inspector
	now       func() time.Time
	logger    *zap.Logger
}

// NewAlarmClock creates an alarm clock on the given asynq client and inspector
func NewAlarmClock(client *asynq.Client, insp *asynq.Inspector, logger *zap.Logger) *AlarmClock {
	return &AlarmClock{client: client, inspector: insp, now: time.Now, logger: logger.Named("alarms")}
}

func taskID(a models.Alarm) string {
	return fmt.Sprintf("%s:%d", a.Key, a.FireAt.Unix())
}

// NewAlarmTask creates the task delivering alarm
func NewAlarmTask(a models.Alarm) (*asynq.Task, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeAlarmFire, payload), nil
}

// scheduledFor returns the pending tasks of key
func (c *AlarmClock) scheduledFor(key string) ([]*asynq.TaskInfo, error) {
	tasks, err := c.inspector.ListScheduledTasks(AlarmQueue, asynq.PageSize(1000))
	if errors.Is(err, asynq.ErrQueueNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []*asynq.TaskInfo
	for _, t := range tasks {
		if strings.HasPrefix(t.ID, key+":") {
			out = append(out, t)
		}
	}
	return out, nil
}

// Schedule implements scheduler.AlarmClock. Other pending occurrences of the key are
// removed unless they are due within dueWindow; those are left to fire.
func (c *AlarmClock) Schedule(ctx context.Context, a models.Alarm) error {
	id := taskID(a)
	pending, err := c.scheduledFor(a.Key)
	if err != nil {
		return err
	}
	horizon := c.now().Add(dueWindow)
	for _, t := range pending {
		if t.ID == id {
			return nil
		}
		if !t.NextProcessAt.After(horizon) {
			c.logger.Debug("Keeping alarm about to fire", zap.String("task_id", t.ID), zap.Time("process_at", t.NextProcessAt))
			continue
		}
		if err := c.inspector.DeleteTask(AlarmQueue, t.ID); err != nil && !errors.Is(err, asynq.ErrTaskNotFound) {
			return err
		}
	}

	task, err := NewAlarmTask(a)
	if err != nil {
		return err
	}
	info, err := c.client.EnqueueContext(ctx, task,
		asynq.Queue(AlarmQueue),
		asynq.TaskID(id),
		asynq.ProcessAt(a.FireAt),
		asynq.MaxRetry(0),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return err
	}
	c.logger.Debug("Alarm enqueued", zap.String("task_id", info.ID), zap.Time("process_at", a.FireAt))
	return nil
}

// Cancel implements scheduler.AlarmClock
func (c *AlarmClock) Cancel(_ context.Context, key string) error {
	pending, err := c.scheduledFor(key)
	if err != nil {
		return err
	}
	for _, t := range pending {
		if err := c.inspector.DeleteTask(AlarmQueue, t.ID); err != nil && !errors.Is(err, asynq.ErrTaskNotFound) {
			return err
		}
	}
	return nil
}
