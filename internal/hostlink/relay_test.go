package hostlink

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newRelayServer(t *testing.T) (*Relay, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	relay := NewRelay(zap.NewNop())
	router := gin.New()
	relay.RegisterRoutes(router)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return relay, srv
}

func push(t *testing.T, url, deviceID, body string) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url+"/push", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if deviceID != "" {
		req.Header.Set("X-Device-ID", deviceID)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestRelay_PushValidation(t *testing.T) {
	_, srv := newRelayServer(t)

	assert.Equal(t, http.StatusBadRequest, push(t, srv.URL, "", `{"type":"foreground"}`))
	assert.Equal(t, http.StatusBadRequest, push(t, srv.URL, "dev1", `{"package":"x"}`))
	assert.Equal(t, http.StatusNotFound, push(t, srv.URL, "dev1", `{"type":"foreground","package":"x"}`))
}

func TestRelay_ForwardsToClient(t *testing.T) {
	relay, srv := newRelayServer(t)

	events := &sink{}
	h := NewHandler(events, &commander{}, blocked{}, nil, nil, zap.NewNop())
	c := NewClient(Config{
		URL:        "ws" + strings.TrimPrefix(srv.URL, "http") + "/observer",
		DeviceID:   "dev1",
		RetryDelay: 20 * time.Millisecond,
	}, h, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return relay.Connected("dev1") }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, http.StatusAccepted, push(t, srv.URL, "dev1", `{"type":"foreground","package":"com.example.maps"}`))
	assert.Eventually(t, func() bool { return len(events.packages()) == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"com.example.maps"}, events.packages())

	cancel()
	<-done
	assert.Eventually(t, func() bool { return !relay.Connected("dev1") }, 5*time.Second, 10*time.Millisecond)
	assert.ErrorIs(t, relay.Push("dev1", Message{Type: TypeForeground}), ErrDeviceOffline)
}
