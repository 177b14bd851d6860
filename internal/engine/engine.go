package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"automator/internal/automation"
	"automator/internal/models"
	"automator/internal/mqtt"
	rkeys "automator/internal/redis"
	"automator/internal/scheduler"
	"automator/internal/utils"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Subscriber is the part of the MQTT client the engine listens with
type Subscriber interface {
	Subscribe(topic string, qos byte, callback MQTT.MessageHandler) MQTT.Token
	Unsubscribe(topics ...string) MQTT.Token
}

// Options tunes the engine loops
type Options struct {
	DeviceID          string
	MaxConcurrent     int
	MonitorInterval   time.Duration
	SafetyNetInterval time.Duration
}

// Deps are the collaborators the engine is wired to. Redis, MQTT and Scheduler are optional;
// without Redis, submitted events are handled inline.
type Deps struct {
	Store     RuleStore
	States    automation.StateStore
	Evaluator *automation.Evaluator
	Pipeline  *automation.Pipeline
	Scheduler *scheduler.Scheduler
	Redis     *redis.Client
	MQTT      Subscriber
	Location  *time.Location
}

// Engine is the core control engine
type Engine struct {
	deps    Deps
	opts    Options
	matcher *Matcher
	orch    *Orchestrator
	monitor *Monitor
	safety  *SafetyNet
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine creates a new engine instance
func NewEngine(deps Deps, opts Options, logger *zap.Logger) *Engine {
	logger = logger.Named("engine")
	if deps.Evaluator != nil && deps.Location != nil {
		deps.Evaluator.SetLocation(deps.Location)
	}
	e := &Engine{
		deps:    deps,
		opts:    opts,
		matcher: NewMatcher(deps.Store, deps.Evaluator, logger),
		orch:    NewOrchestrator(deps.Store, deps.Evaluator, deps.Pipeline, logger),
		logger:  logger,
		ctx:     context.Background(),
	}
	e.monitor = NewMonitor(deps.Store, e.orch, deps.Location, logger)

	var resync Resyncer
	if deps.Scheduler != nil {
		resync = deps.Scheduler
		deps.Scheduler.OnFire(e.fire)
	}
	e.safety = NewSafetyNet(deps.Store, deps.Evaluator, e.orch, resync, logger)
	return e
}

// Start subscribes to the host topics, starts the event inbox and the periodic jobs
func (e *Engine) Start(ctx context.Context) error {
	e.ctx, e.cancel = context.WithCancel(ctx)

	if s := e.deps.Scheduler; s != nil {
		if err := s.Resync(e.ctx); err != nil {
			e.logger.Warn("Initial scheduler sync incomplete", zap.Error(err))
		}
		if err := s.AddPeriodic("time-range-monitor", e.opts.MonitorInterval, func() { e.monitor.Tick(e.ctx) }); err != nil {
			return fmt.Errorf("schedule time range monitor: %w", err)
		}
		if err := s.AddPeriodic("safety-net", e.opts.SafetyNetInterval, func() { e.safety.Run(e.ctx) }); err != nil {
			return fmt.Errorf("schedule safety net: %w", err)
		}
		s.Start()
	}

	if e.deps.MQTT != nil {
		for topic, handler := range map[string]MQTT.MessageHandler{
			mqtt.StateTopic(e.opts.DeviceID):  e.onState,
			mqtt.EventsTopic(e.opts.DeviceID): e.onEvent,
		} {
			e.logger.Info("Subscribing to MQTT topic", zap.String("topic", topic))
			token := e.deps.MQTT.Subscribe(topic, 1, handler)
			if !token.WaitTimeout(10 * time.Second) {
				return fmt.Errorf("subscribe %s: timed out", topic)
			}
			if err := token.Error(); err != nil {
				return fmt.Errorf("subscribe %s: %w", topic, err)
			}
		}
	}

	if e.deps.Redis != nil {
		e.wg.Add(1)
		go e.consume(e.ctx)
	}

	e.logger.Info("Engine started", zap.String("device_id", e.opts.DeviceID))
	return nil
}

// Stop stops the engine
func (e *Engine) Stop() {
	if e.deps.MQTT != nil {
		e.deps.MQTT.Unsubscribe(mqtt.StateTopic(e.opts.DeviceID), mqtt.EventsTopic(e.opts.DeviceID))
	}
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	if e.deps.Scheduler != nil {
		e.deps.Scheduler.Stop()
	}
	e.logger.Info("Engine stopped")
}

// Execute runs one rule through the orchestrator
func (e *Engine) Execute(ctx context.Context, req Request) (models.ExecutionResult, error) {
	return e.orch.Execute(ctx, req)
}

// HandleEvent matches an event and executes every matched rule, at most
// MaxConcurrent at a time. Execution errors are logged per rule.
func (e *Engine) HandleEvent(ctx context.Context, ev models.Event) ([]models.ExecutionResult, error) {
	matches, err := e.matcher.Match(ctx, ev)
	if err != nil {
		return nil, err
	}

	var g errgroup.Group
	if e.opts.MaxConcurrent > 0 {
		g.SetLimit(e.opts.MaxConcurrent)
	}
	results := make([]models.ExecutionResult, len(matches))
	for i, m := range matches {
		g.Go(func() error {
			res, err := e.orch.Execute(ctx, Request{
				RuleID:      m.Rule.ID,
				TriggeredBy: fmt.Sprintf("%s:%s", ev.Kind, m.Trigger.ID),
			})
			if err != nil {
				e.logger.Warn("Execution failed", zap.String("rule_id", m.Rule.ID), zap.Error(err))
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

// Submit queues an event on the inbox stream
func (e *Engine) Submit(ctx context.Context, ev models.Event) error {
	if !ev.Kind.Valid() || ev.Kind == models.TriggerTimeRange {
		return models.NewMalformedError("submit event", fmt.Errorf("unsupported event kind %q", ev.Kind))
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	if e.deps.Redis == nil {
		_, err := e.HandleEvent(ctx, ev)
		return err
	}

	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return e.deps.Redis.XAdd(ctx, &redis.XAddArgs{
		Stream: rkeys.EventStream(e.opts.DeviceID),
		MaxLen: utils.StreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"kind":  string(ev.Kind),
			"event": string(raw),
		},
	}).Err()
}

// consume drains the inbox stream in order, resuming after the stored cursor
func (e *Engine) consume(ctx context.Context) {
	defer e.wg.Done()
	stream := rkeys.EventStream(e.opts.DeviceID)
	cursor := rkeys.LastReadKey(e.opts.DeviceID)

	lastID, err := e.deps.Redis.Get(ctx, cursor).Result()
	if err != nil {
		lastID = "0-0"
	}
	e.logger.Info("Consuming event stream", zap.String("stream", stream), zap.String("last_id", lastID))

	for ctx.Err() == nil {
		streams, err := e.deps.Redis.XRead(ctx, &redis.XReadArgs{
			Streams: []string{stream, lastID},
			Count:   64,
			Block:   utils.StreamBlock,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			e.logger.Warn("Error reading event stream", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(utils.StreamBlock):
			}
			continue
		}

		for _, s := range streams {
			for _, msg := range s.Messages {
				e.handleMessage(ctx, msg)
				lastID = msg.ID
				if err := e.deps.Redis.Set(ctx, cursor, lastID, 0).Err(); err != nil {
					e.logger.Warn("Failed to store stream cursor", zap.Error(err))
				}
			}
		}
	}
}

func (e *Engine) handleMessage(ctx context.Context, msg redis.XMessage) {
	raw, _ := msg.Values["event"].(string)
	var ev models.Event
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		e.logger.Warn("Dropping malformed stream entry", zap.String("id", msg.ID), zap.Error(err))
		return
	}
	if _, err := e.HandleEvent(ctx, ev); err != nil {
		e.logger.Error("Event handling failed", zap.String("id", msg.ID), zap.String("kind", string(ev.Kind)), zap.Error(err))
	}
}

// onState diffs a reported snapshot against the cached one and submits the derived events
func (e *Engine) onState(_ MQTT.Client, msg MQTT.Message) {
	var st models.DeviceState
	if err := json.Unmarshal(msg.Payload(), &st); err != nil {
		e.logger.Warn("Error unmarshaling state", zap.String("topic", msg.Topic()), zap.Error(err))
		return
	}
	st.DeviceID = utils.ParseDeviceID(msg.Topic())
	if e.deps.States == nil {
		return
	}

	events, err := automation.ProcessDeviceUpdate(e.ctx, e.deps.States, st)
	if err != nil {
		e.logger.Error("Failed to process device update", zap.Error(err))
		return
	}
	for _, ev := range events {
		if err := e.Submit(e.ctx, ev); err != nil {
			e.logger.Warn("Failed to submit event", zap.String("kind", string(ev.Kind)), zap.Error(err))
		}
	}
}

// onEvent accepts push events and geofence transitions from the host
func (e *Engine) onEvent(_ MQTT.Client, msg MQTT.Message) {
	var ev models.Event
	if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
		e.logger.Warn("Error unmarshaling event", zap.String("topic", msg.Topic()), zap.Error(err))
		return
	}
	if err := e.Submit(e.ctx, ev); err != nil {
		e.logger.Warn("Failed to submit event", zap.String("kind", string(ev.Kind)), zap.Error(err))
	}
}

// fire is called by the scheduler when an alarm for a TIME trigger goes off
func (e *Engine) fire(ctx context.Context, ruleID, triggerID string) {
	if _, err := e.orch.Execute(ctx, Request{RuleID: ruleID, TriggeredBy: "alarm:" + triggerID}); err != nil {
		e.logger.Warn("Alarm execution failed", zap.String("rule_id", ruleID), zap.Error(err))
	}
}
