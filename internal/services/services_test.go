package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"automator/internal/models"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type doneToken struct{ err error }

func (t doneToken) Wait() bool { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t doneToken) Error() error { return t.err }

type message struct {
	topic   string
	payload []byte
}

func (m message) Duplicate() bool { return false }
func (m message) Qos() byte { return 1 }
func (m message) Retained() bool { return false }
func (m message) Topic() string { return m.topic }
func (m message) MessageID() uint16 { return 0 }
func (m message) Payload() []byte { return m.payload }
func (m message) Ack() {}

// fakeBroker records publishes and lets a test answer requests
type fakeBroker struct {
	mu        sync.Mutex
	published map[string][][]byte
	handlers  map[string]MQTT.MessageHandler
	answer    func(topic string, req map[string]any) (string, map[string]any)
	pubErr    error
}

func newFakeBroker() *fakeBroker {
	return &fakeBroker{published: map[string][][]byte{}, handlers: map[string]MQTT.MessageHandler{}}
}

func (b *fakeBroker) Publish(topic string, _ byte, _ bool, payload interface{}) MQTT.Token {
	raw := payload.([]byte)
	b.mu.Lock()
	b.published[topic] = append(b.published[topic], raw)
	answer := b.answer
	b.mu.Unlock()
	if b.pubErr != nil {
		return doneToken{err: b.pubErr}
	}
	if answer != nil {
		var req map[string]any
		_ = json.Unmarshal(raw, &req)
		if replyTopic, rep := answer(topic, req); replyTopic != "" {
			body, _ := json.Marshal(rep)
			b.mu.Lock()
			h := b.handlers[replyTopic]
			b.mu.Unlock()
			if h != nil {
				go h(nil, message{topic: replyTopic, payload: body})
			}
		}
	}
	return doneToken{}
}

func (b *fakeBroker) Subscribe(topic string, _ byte, cb MQTT.MessageHandler) MQTT.Token {
	b.mu.Lock()
	b.handlers[topic] = cb
	b.mu.Unlock()
	return doneToken{}
}

func (b *fakeBroker) Unsubscribe(topics ...string) MQTT.Token {
	b.mu.Lock()
	for _, t := range topics {
		delete(b.handlers, t)
	}
	b.mu.Unlock()
	return doneToken{}
}

func TestCommandService_Send(t *testing.T) {
	broker := newFakeBroker()
	svc := NewCommandService(broker, "phone", zap.NewNop())

	err := svc.Send(context.Background(), models.Command{Name: "vibrate", Args: map[string]any{"duration_ms": 500}})
	require.NoError(t, err)
	require.Len(t, broker.published["devices/phone/commands"], 1)

	var got models.Command
	require.NoError(t, json.Unmarshal(broker.published["devices/phone/commands"][0], &got))
	assert.Equal(t, "vibrate", got.Name)
	assert.EqualValues(t, 500, got.Args["duration_ms"])

	broker.pubErr = errors.New("not connected")
	assert.Error(t, svc.Send(context.Background(), models.Command{Name: "vibrate"}))
}

func TestLocationService_FreshFix(t *testing.T) {
	broker := newFakeBroker()
	broker.answer = func(topic string, req map[string]any) (string, map[string]any) {
		return topic + "/result", map[string]any{"request_id": req["request_id"], "latitude": 52.52, "longitude": 13.40, "accuracy": 8.5}
	}
	svc := NewLocationService(broker, "phone", zap.NewNop())
	require.NoError(t, svc.Start(context.Background()))
	defer svc.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	loc, err := svc.FreshFix(ctx)
	require.NoError(t, err)
	assert.Equal(t, 52.52, loc.Latitude)
	assert.Equal(t, 8.5, loc.Accuracy)
	assert.False(t, loc.Time.IsZero())
}

func TestLocationService_TimeoutFailsClosed(t *testing.T) {
	broker := newFakeBroker()
	svc := NewLocationService(broker, "phone", zap.NewNop())
	require.NoError(t, svc.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := svc.FreshFix(ctx)
	require.Error(t, err)
	assert.True(t, models.IsTransient(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGeofenceService(t *testing.T) {
	broker := newFakeBroker()
	broker.answer = func(topic string, req map[string]any) (string, map[string]any) {
		if req["op"] == "remove" {
			return topic + "/result", map[string]any{"request_id": req["request_id"], "error": "unknown id"}
		}
		return topic + "/result", map[string]any{"request_id": req["request_id"]}
	}
	svc := NewGeofenceService(broker, "phone", zap.NewNop())
	require.NoError(t, svc.Start(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := svc.AddGeofences(ctx, []models.Geofence{{ID: "rule_r1_trigger_t1", Latitude: 1, Longitude: 2, Radius: 150, Transitions: []string{"enter"}}})
	require.NoError(t, err)

	err = svc.RemoveGeofences(ctx, []string{"rule_r1_trigger_t1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown id")
}
