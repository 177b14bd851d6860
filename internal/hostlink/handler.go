package hostlink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"automator/internal/automation"
	"automator/internal/models"

	"go.uber.org/zap"
)

// Message types sent by the host listener service
const (
	TypeForeground   = "foreground"
	TypeNotification = "notification"
	TypeService      = "service"
	TypePackages     = "packages"
)

// Message is one observation from the host
type Message struct {
	Type      string   `json:"type"`
	Package   string   `json:"package,omitempty"`
	Action    string   `json:"action,omitempty"`
	Key       string   `json:"key,omitempty"`
	Service   string   `json:"service,omitempty"`
	Connected bool     `json:"connected,omitempty"`
	Packages  []string `json:"packages,omitempty"`
}

// EventSink accepts events for rule matching
type EventSink interface {
	Submit(ctx context.Context, ev models.Event) error
}

// PackageStore replaces the installed package set
type PackageStore interface {
	SetPackages(ctx context.Context, pkgs []string) error
}

// ServiceFlags records listener service connection state
type ServiceFlags interface {
	Set(ctx context.Context, service string, connected bool)
}

// Blocked answers whether a package is on the deny-list
type Blocked interface {
	Contains(pkg string) bool
}

// Handler applies host observations: it enforces the block-list on foreground
// changes and turns the rest into APP_OPENED events.
type Handler struct {
	events    EventSink
	commander automation.Commander
	blocked   Blocked
	packages  PackageStore
	services  ServiceFlags
	logger    *zap.Logger

	mu            sync.Mutex
	foreground    string
	notifications map[string]string
}

func NewHandler(events EventSink, commander automation.Commander, blocked Blocked, packages PackageStore, services ServiceFlags, logger *zap.Logger) *Handler {
	return &Handler{
		events:        events,
		commander:     commander,
		blocked:       blocked,
		packages:      packages,
		services:      services,
		logger:        logger.Named("hostlink"),
		notifications: make(map[string]string),
	}
}

// Foreground returns the package last seen in the foreground
func (h *Handler) Foreground() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.foreground
}

// ActiveNotifications returns how many posted notifications have not been removed
func (h *Handler) ActiveNotifications() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.notifications)
}

// Handle applies one message
func (h *Handler) Handle(ctx context.Context, msg Message) error {
	switch msg.Type {
	case TypeForeground:
		return h.onForeground(ctx, msg.Package)
	case TypeNotification:
		h.onNotification(msg)
		return nil
	case TypeService:
		if h.services != nil {
			h.services.Set(ctx, msg.Service, msg.Connected)
		}
		return nil
	case TypePackages:
		if h.packages == nil {
			return nil
		}
		return h.packages.SetPackages(ctx, msg.Packages)
	default:
		return fmt.Errorf("unknown message type %q", msg.Type)
	}
}

func (h *Handler) onForeground(ctx context.Context, pkg string) error {
	if pkg == "" {
		return nil
	}
	h.mu.Lock()
	changed := pkg != h.foreground
	h.foreground = pkg
	h.mu.Unlock()

	if h.blocked != nil && h.blocked.Contains(pkg) {
		h.logger.Info("Blocked app in foreground", zap.String("package", pkg))
		if h.commander == nil {
			return nil
		}
		return h.commander.Send(ctx, models.Command{Name: "go_home", Args: map[string]any{"package": pkg}})
	}
	if !changed {
		return nil
	}
	return h.events.Submit(ctx, models.Event{
		Kind:      models.TriggerAppOpened,
		Metadata:  map[string]string{models.MetaPackageName: pkg},
		Timestamp: time.Now(),
	})
}

func (h *Handler) onNotification(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch msg.Action {
	case "posted":
		h.notifications[msg.Key] = msg.Package
	case "removed":
		delete(h.notifications, msg.Key)
	}
	h.logger.Debug("Notification observed",
		zap.String("action", msg.Action),
		zap.String("package", msg.Package),
		zap.Int("active", len(h.notifications)))
}
