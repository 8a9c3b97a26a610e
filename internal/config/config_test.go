package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casino-round-settlement/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("PLAYER_OUTCOME_TIMEOUT", "")
	t.Setenv("PLAYER_RECOVERY_ATTEMPTS", "")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 1500*time.Millisecond, cfg.Player.OutcomeTimeout)
	assert.Equal(t, 1, cfg.Player.RecoveryAttempts)
	assert.Equal(t, "casino", cfg.Player.StorageNamespace)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("PLAYER_ID", "42")
	t.Setenv("PLAYER_OUTCOME_TIMEOUT", "2s")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, int64(42), cfg.Player.ID)
	assert.Equal(t, 2*time.Second, cfg.Player.OutcomeTimeout)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("JWT_TTL", "forever")

	_, err := config.Load()
	assert.Error(t, err)
}
