// Package hostlink keeps a WebSocket session open to the host listener service
// and feeds its observation streams into the engine.
package hostlink

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type Config struct {
	URL        string // ws://host:port/observer
	DeviceID   string
	RetryDelay time.Duration
}

// Client dials the host and reconnects until its context is cancelled
type Client struct {
	cfg     Config
	handler *Handler
	dialer  *websocket.Dialer
	logger  *zap.Logger
}

func NewClient(cfg Config, handler *Handler, logger *zap.Logger) *Client {
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	return &Client{
		cfg:     cfg,
		handler: handler,
		dialer:  websocket.DefaultDialer,
		logger:  logger.Named("hostlink"),
	}
}

// Run blocks until ctx is done
func (c *Client) Run(ctx context.Context) {
	for {
		err := c.run(ctx)
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("Host link disconnected, reconnecting", zap.Error(err), zap.Duration("retry_delay", c.cfg.RetryDelay))
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.cfg.RetryDelay):
		}
	}
}

func (c *Client) run(ctx context.Context) error {
	ws, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return err
	}
	defer ws.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			ws.Close()
		case <-done:
		}
	}()

	if err := ws.WriteJSON(map[string]interface{}{
		"type": "register",
		"id":   c.cfg.DeviceID,
	}); err != nil {
		return err
	}
	c.logger.Info("Host link connected", zap.String("url", c.cfg.URL))

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.logger.Warn("Discarding malformed message", zap.Error(err))
			continue
		}
		if err := c.handler.Handle(ctx, msg); err != nil {
			c.logger.Warn("Failed to handle host message", zap.String("type", msg.Type), zap.Error(err))
		}
	}
}
