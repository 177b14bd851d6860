package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"automator/internal/models"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Publisher is the part of the MQTT client the services use
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) MQTT.Token
	Subscribe(topic string, qos byte, callback MQTT.MessageHandler) MQTT.Token
	Unsubscribe(topics ...string) MQTT.Token
}

type reply struct {
	RequestID string `json:"request_id"`
	Error     string `json:"error,omitempty"`
}

// requester correlates requests published on a topic with the host's answers on its result topic
type requester struct {
	client      Publisher
	topic       string
	resultTopic string
	logger      *zap.Logger

	mu      sync.Mutex
	pending map[string]chan []byte
}

func newRequester(client Publisher, topic, resultTopic string, logger *zap.Logger) *requester {
	return &requester{
		client:      client,
		topic:       topic,
		resultTopic: resultTopic,
		logger:      logger,
		pending:     make(map[string]chan []byte),
	}
}

func (r *requester) start(ctx context.Context) error {
	return wait(ctx, r.client.Subscribe(r.resultTopic, 1, r.onResult))
}

func (r *requester) stop() {
	r.client.Unsubscribe(r.resultTopic)
}

func (r *requester) onResult(_ MQTT.Client, msg MQTT.Message) {
	var rep reply
	if err := json.Unmarshal(msg.Payload(), &rep); err != nil {
		r.logger.Warn("Discarding malformed result", zap.String("topic", msg.Topic()), zap.Error(err))
		return
	}
	r.mu.Lock()
	ch, ok := r.pending[rep.RequestID]
	delete(r.pending, rep.RequestID)
	r.mu.Unlock()
	if !ok {
		r.logger.Debug("Result for unknown request", zap.String("request_id", rep.RequestID))
		return
	}
	ch <- msg.Payload()
}

// do publishes body with a fresh request id and waits for the matching result.
// The caller's context bounds the wait.
func (r *requester) do(ctx context.Context, op string, body map[string]any) ([]byte, error) {
	id := uuid.NewString()
	ch := make(chan []byte, 1)
	r.mu.Lock()
	r.pending[id] = ch
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.pending, id)
		r.mu.Unlock()
	}()

	if body == nil {
		body = map[string]any{}
	}
	body["request_id"] = id
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	if err := wait(ctx, r.client.Publish(r.topic, 1, false, payload)); err != nil {
		return nil, models.NewTransientError(op, err)
	}

	select {
	case raw := <-ch:
		var rep reply
		if err := json.Unmarshal(raw, &rep); err == nil && rep.Error != "" {
			return nil, models.NewTransientError(op, fmt.Errorf("host: %s", rep.Error))
		}
		return raw, nil
	case <-ctx.Done():
		return nil, models.NewTransientError(op, fmt.Errorf("waiting for result: %w", ctx.Err()))
	}
}

// wait blocks until an MQTT token completes or ctx ends
func wait(ctx context.Context, token MQTT.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
