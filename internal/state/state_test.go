package state

import (
	"context"
	"testing"

	"automator/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestStore_SnapshotRoundTrip(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewStore(client, "phone")
	ctx := context.Background()

	_, err := store.Snapshot(ctx)
	assert.True(t, models.IsNotFound(err))

	level := 42
	require.NoError(t, store.Save(ctx, models.DeviceState{BatteryLevel: &level, WifiSSID: "home", DNDFilter: models.DNDFilterAlarms}))

	st, err := store.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "phone", st.DeviceID)
	require.NotNil(t, st.BatteryLevel)
	assert.Equal(t, 42, *st.BatteryLevel)
	assert.Equal(t, "home", st.WifiSSID)
	assert.Equal(t, models.DNDFilterAlarms, st.DNDFilter)
}

func TestStore_Packages(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewStore(client, "phone")
	ctx := context.Background()

	require.NoError(t, store.SetPackages(ctx, []string{"com.a", "com.b"}))
	ok, err := store.IsInstalled(ctx, "com.a")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, store.SetPackages(ctx, []string{"com.b"}))
	ok, err = store.IsInstalled(ctx, "com.a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_TransientOnOutage(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewStore(client, "phone")
	mr.Close()

	_, err := store.Snapshot(context.Background())
	assert.True(t, models.IsTransient(err))
}

func TestBlockList(t *testing.T) {
	mr, client := newTestRedis(t)
	ctx := context.Background()
	bl := NewBlockList(client)

	require.NoError(t, bl.Add(ctx, "com.game"))
	require.NoError(t, bl.Add(ctx, "com.feed"))
	assert.True(t, bl.Contains("com.game"))
	assert.Equal(t, []string{"com.feed", "com.game"}, bl.List())

	members, err := mr.Members("blocklist:apps")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"com.game", "com.feed"}, members)

	require.NoError(t, bl.Remove(ctx, "com.game"))
	assert.False(t, bl.Contains("com.game"))

	restored := NewBlockList(client)
	require.NoError(t, restored.Load(ctx))
	assert.Equal(t, []string{"com.feed"}, restored.List())
}

func TestServices(t *testing.T) {
	_, client := newTestRedis(t)
	ctx := context.Background()
	s := NewServices(client, "phone", zap.NewNop())

	assert.False(t, s.Connected(models.ServiceAccessibility))
	s.Set(ctx, models.ServiceAccessibility, true)
	assert.True(t, s.Connected(models.ServiceAccessibility))

	restored := NewServices(client, "phone", zap.NewNop())
	require.NoError(t, restored.Load(ctx))
	assert.True(t, restored.Connected(models.ServiceAccessibility))
	assert.False(t, restored.Connected(models.ServiceNotificationListener))
}
