package hostlink

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"automator/internal/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type sink struct {
	mu     sync.Mutex
	events []models.Event
}

func (s *sink) Submit(_ context.Context, ev models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *sink) packages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, ev := range s.events {
		out = append(out, ev.Meta(models.MetaPackageName))
	}
	return out
}

type commander struct {
	mu   sync.Mutex
	sent []models.Command
}

func (c *commander) Send(_ context.Context, cmd models.Command) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, cmd)
	return nil
}

func (c *commander) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

type blocked map[string]bool

func (b blocked) Contains(pkg string) bool { return b[pkg] }

type flags struct {
	mu  sync.Mutex
	set map[string]bool
}

func (f *flags) Set(_ context.Context, service string, connected bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.set[service] = connected
}

type pkgStore struct{ pkgs []string }

func (p *pkgStore) SetPackages(_ context.Context, pkgs []string) error {
	p.pkgs = pkgs
	return nil
}

func TestHandler_Foreground(t *testing.T) {
	events := &sink{}
	cmd := &commander{}
	h := NewHandler(events, cmd, blocked{"com.game": true}, nil, nil, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, h.Handle(ctx, Message{Type: TypeForeground, Package: "com.example.notes"}))
	require.NoError(t, h.Handle(ctx, Message{Type: TypeForeground, Package: "com.example.notes"}))
	require.NoError(t, h.Handle(ctx, Message{Type: TypeForeground, Package: "com.game"}))
	require.NoError(t, h.Handle(ctx, Message{Type: TypeForeground, Package: "com.game"}))

	assert.Equal(t, []string{"com.example.notes"}, events.packages())
	require.Equal(t, 2, cmd.count())
	assert.Equal(t, "go_home", cmd.sent[0].Name)
	assert.Equal(t, "com.game", h.Foreground())
}

func TestHandler_ServicesPackagesNotifications(t *testing.T) {
	f := &flags{set: map[string]bool{}}
	p := &pkgStore{}
	h := NewHandler(&sink{}, nil, nil, p, f, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, h.Handle(ctx, Message{Type: TypeService, Service: models.ServiceAccessibility, Connected: true}))
	require.NoError(t, h.Handle(ctx, Message{Type: TypePackages, Packages: []string{"a", "b"}}))
	require.NoError(t, h.Handle(ctx, Message{Type: TypeNotification, Action: "posted", Key: "k1", Package: "a"}))
	require.NoError(t, h.Handle(ctx, Message{Type: TypeNotification, Action: "posted", Key: "k2", Package: "b"}))
	require.NoError(t, h.Handle(ctx, Message{Type: TypeNotification, Action: "removed", Key: "k1"}))

	assert.True(t, f.set[models.ServiceAccessibility])
	assert.Equal(t, []string{"a", "b"}, p.pkgs)
	assert.Equal(t, 1, h.ActiveNotifications())
	assert.Error(t, h.Handle(ctx, Message{Type: "bogus"}))
}

func TestClient_ReceivesObservations(t *testing.T) {
	upgrader := websocket.Upgrader{}
	registered := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		var reg map[string]string
		if err := ws.ReadJSON(&reg); err != nil {
			return
		}
		registered <- reg["id"]
		ws.WriteJSON(Message{Type: TypeForeground, Package: "com.example.maps"})
		ws.WriteMessage(websocket.TextMessage, []byte("not json"))
		ws.WriteJSON(Message{Type: TypeForeground, Package: "com.game"})
		// hold the session open until the client goes away
		ws.ReadMessage()
	}))
	defer srv.Close()

	events := &sink{}
	cmd := &commander{}
	h := NewHandler(events, cmd, blocked{"com.game": true}, nil, nil, zap.NewNop())
	c := NewClient(Config{URL: "ws" + strings.TrimPrefix(srv.URL, "http"), DeviceID: "dev1", RetryDelay: 50 * time.Millisecond}, h, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	select {
	case id := <-registered:
		assert.Equal(t, "dev1", id)
	case <-time.After(5 * time.Second):
		t.Fatal("client did not register")
	}
	assert.Eventually(t, func() bool { return cmd.count() == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"com.example.maps"}, events.packages())

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("client did not stop")
	}
}

func TestClient_RetriesUntilCancelled(t *testing.T) {
	c := NewClient(Config{URL: "ws://127.0.0.1:1/none", RetryDelay: 10 * time.Millisecond}, NewHandler(&sink{}, nil, nil, nil, nil, zap.NewNop()), zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	c.Run(ctx)
	assert.Error(t, ctx.Err())
}
