package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.App.Port)
	assert.Equal(t, "phone", cfg.App.DeviceID)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 10*time.Second, cfg.Engine.MonitorInterval)
	assert.Equal(t, 15*time.Minute, cfg.Engine.SafetyNetInterval)
	assert.Equal(t, 5*time.Second, cfg.Engine.LastKnownTimeout)
	assert.Equal(t, 10*time.Second, cfg.Engine.FreshFixTimeout)
	assert.Equal(t, 8, cfg.Engine.MaxConcurrent)
	assert.False(t, cfg.HostLink.Enabled)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("APP_DEVICE_ID", "pixel")
	t.Setenv("ENGINE_MONITOR_INTERVAL", "30s")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "pixel", cfg.App.DeviceID)
	assert.Equal(t, 30*time.Second, cfg.Engine.MonitorInterval)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfig_RejectsSlowMonitor(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ENGINE_MONITOR_INTERVAL", "2m")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "monitor_interval")
}

func TestValidate(t *testing.T) {
	cfg := Config{
		App:    AppConfig{DeviceID: "phone", Timezone: "Europe/Warsaw"},
		Engine: EngineConfig{MonitorInterval: 10 * time.Second, SafetyNetInterval: 15 * time.Minute, MaxConcurrent: 1},
	}
	require.NoError(t, cfg.Validate())

	cfg.Engine.SafetyNetInterval = 30 * time.Second
	assert.Error(t, cfg.Validate())

	cfg.Engine.SafetyNetInterval = time.Hour
	cfg.App.Timezone = "Mars/Olympus"
	assert.Error(t, cfg.Validate())

	cfg.App.Timezone = ""
	cfg.App.DeviceID = ""
	assert.Error(t, cfg.Validate())
}

func TestLocation(t *testing.T) {
	cfg := &Config{}
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	cfg.App.Timezone = "UTC"
	loc, err = cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())

	cfg.App.Timezone = "Mars/Olympus_Mons"
	_, err = cfg.Location()
	assert.Error(t, err)
}
