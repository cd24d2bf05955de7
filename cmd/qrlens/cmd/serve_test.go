package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/qrlens/internal/config"
)

func TestApplyServeFlags(t *testing.T) {
	cmd := newServeCommand(&app{})
	require.NoError(t, cmd.ParseFlags([]string{
		"--port", "9090",
		"--host", "0.0.0.0",
		"--rate-limit-enabled",
		"--requests-per-minute", "5",
		"--max-data-per-day", "1024",
	}))

	cfg := config.DefaultConfig()
	cfg.Server.RateLimit.RequestsPerHour = 77
	require.NoError(t, applyServeFlags(cmd, &cfg))

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.True(t, cfg.Server.RateLimit.Enabled)
	assert.Equal(t, 5, cfg.Server.RateLimit.RequestsPerMinute)
	assert.Equal(t, int64(1024), cfg.Server.RateLimit.MaxDataPerDay)
	// Unset flags keep the configured value.
	assert.Equal(t, 77, cfg.Server.RateLimit.RequestsPerHour)

	sc := serverConfig(&cfg)
	assert.Equal(t, 9090, sc.Port)
	assert.Equal(t, int64(50), sc.MaxUploadMB)
	assert.True(t, sc.RateLimit.Enabled)
	assert.Equal(t, 5, sc.RateLimit.RequestsPerMinute)
}

func TestApplyServeFlags_InvalidPort(t *testing.T) {
	cmd := newServeCommand(&app{})
	require.NoError(t, cmd.ParseFlags([]string{"--port", "70000"}))
	cfg := config.DefaultConfig()
	err := applyServeFlags(cmd, &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid port number")
}
