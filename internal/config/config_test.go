package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TRUCKBOARD_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8010, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.DevMode)
	assert.Equal(t, 30*time.Second, cfg.FeedTimeout)
	assert.True(t, cfg.AllowPartial)
	assert.Equal(t, "@hourly", cfg.RefreshSchedule)
	assert.Empty(t, cfg.FeedShardURLs)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("TRUCKBOARD_DATA_DIR", t.TempDir())
	t.Setenv("TRUCKBOARD_PORT", "9100")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("FEED_SHARD_URLS", "http://a/shard1, http://b/shard2 ,")
	t.Setenv("FEED_TIMEOUT", "5s")
	t.Setenv("FEED_ALLOW_PARTIAL", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []string{"http://a/shard1", "http://b/shard2"}, cfg.FeedShardURLs)
	assert.Equal(t, 5*time.Second, cfg.FeedTimeout)
	assert.False(t, cfg.AllowPartial)
}

func TestValidate_RejectsBadPort(t *testing.T) {
	cfg := &Config{Port: -1}
	assert.Error(t, cfg.Validate())

	cfg.Port = 70000
	assert.Error(t, cfg.Validate())

	cfg.Port = 8010
	assert.NoError(t, cfg.Validate())
}
