package hostlink

import (
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ErrDeviceOffline is returned by Push when no session is registered for the device
var ErrDeviceOffline = errors.New("device offline")

type session struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (s *session) send(msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ws.WriteJSON(msg)
}

// Relay plays the host side of the link: engines register over /observer and
// observations posted to /push are forwarded to the named device's session.
type Relay struct {
	mu       sync.Mutex
	sessions map[string]*session
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewRelay(logger *zap.Logger) *Relay {
	return &Relay{
		sessions: map[string]*session{},
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		logger:   logger.Named("relay"),
	}
}

// RegisterRoutes mounts the relay endpoints
func (r *Relay) RegisterRoutes(router gin.IRoutes) {
	router.GET("/observer", r.handleSession)
	router.POST("/push", r.handlePush)
	router.GET("/devices", r.handleDevices)
}

// Connected reports whether deviceID has a live session
func (r *Relay) Connected(deviceID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sessions[deviceID]
	return ok
}

// Push forwards one observation to the device's session
func (r *Relay) Push(deviceID string, msg Message) error {
	r.mu.Lock()
	s, ok := r.sessions[deviceID]
	r.mu.Unlock()
	if !ok {
		return ErrDeviceOffline
	}
	return s.send(msg)
}

func (r *Relay) handleSession(c *gin.Context) {
	ws, err := r.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		r.logger.Warn("Upgrade failed", zap.Error(err))
		return
	}
	defer ws.Close()

	var reg struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	}
	if err := ws.ReadJSON(&reg); err != nil || reg.Type != "register" || reg.ID == "" {
		r.logger.Warn("Session closed before registering", zap.Error(err))
		return
	}

	s := &session{ws: ws}
	r.mu.Lock()
	if old, ok := r.sessions[reg.ID]; ok {
		old.ws.Close()
	}
	r.sessions[reg.ID] = s
	r.mu.Unlock()
	r.logger.Info("Device registered", zap.String("device_id", reg.ID))

	defer func() {
		r.mu.Lock()
		if r.sessions[reg.ID] == s {
			delete(r.sessions, reg.ID)
		}
		r.mu.Unlock()
		r.logger.Info("Device disconnected", zap.String("device_id", reg.ID))
	}()

	// the engine never writes after registering; reads only detect the close
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (r *Relay) handlePush(c *gin.Context) {
	deviceID := c.GetHeader("X-Device-ID")
	if deviceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing X-Device-ID"})
		return
	}

	var msg Message
	if err := c.ShouldBindJSON(&msg); err != nil || msg.Type == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Body must be a message with a type"})
		return
	}

	switch err := r.Push(deviceID, msg); {
	case errors.Is(err, ErrDeviceOffline):
		c.JSON(http.StatusNotFound, gin.H{"error": "Device offline"})
	case err != nil:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.Status(http.StatusAccepted)
	}
}

func (r *Relay) handleDevices(c *gin.Context) {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"devices": ids})
}
