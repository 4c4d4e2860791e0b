package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 200, cfg.Scheduler.MaxCandidates)
	assert.Equal(t, 5*time.Second, cfg.Scheduler.SearchTimeout)
	assert.Positive(t, cfg.Scheduler.Workers)
	assert.Len(t, cfg.Scheduler.SlotTimes, 4)
	assert.Equal(t, 5, cfg.RateLimit.Generate.Capacity)
	assert.Equal(t, 10*time.Second, cfg.RateLimit.Generate.Refill)
	assert.Equal(t, 60, cfg.RateLimit.General.Capacity)
	assert.False(t, cfg.Events.Enabled)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SCHEDULER_MAX_CANDIDATES", "50")
	t.Setenv("SCHEDULER_SEARCH_TIMEOUT", "750ms")
	t.Setenv("SCHEDULER_WORKERS", "3")
	t.Setenv("GENERATE_RATE_LIMIT_REFILL", "not-a-duration")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Scheduler.MaxCandidates)
	assert.Equal(t, 750*time.Millisecond, cfg.Scheduler.SearchTimeout)
	assert.Equal(t, 3, cfg.Scheduler.Workers)
	assert.Equal(t, 10*time.Second, cfg.RateLimit.Generate.Refill)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}
