package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/guildpulse")
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("ROLE_ENTRY", "r1")
	t.Setenv("ROLE_MID", "r2")
	t.Setenv("ROLE_UPPER", "r3")
	t.Setenv("ROLE_TOP", "r4")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1500, cfg.MaxXP)
	assert.Equal(t, int64(60), cfg.BucketSeconds)
	assert.Equal(t, 2, cfg.PerBucketCap)
	assert.Equal(t, 72*time.Hour, cfg.DecayGrace)
	assert.Equal(t, 3, cfg.DecayFloor)
	assert.Equal(t, 5, cfg.TopN)
	assert.Equal(t, 5, cfg.NextM)
	assert.Equal(t, time.Minute, cfg.PollMinDuration)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MAX_XP", "2000")
	t.Setenv("CHAT_COOLDOWN", "90s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 2000, cfg.MaxXP)
	assert.Equal(t, 90*time.Second, cfg.ChatCooldown)
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	assert.ErrorContains(t, err, "DATABASE_URL")
}

func TestLoad_MissingTierRoles(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ROLE_UPPER", "")

	_, err := Load()
	assert.ErrorContains(t, err, "ROLE_UPPER")
}

func TestLoad_AdminRolesParsed(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ADMIN_ROLES", "mods, staff ,owner")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"mods", "staff", "owner"}, cfg.AdminRoles)
}

func TestLoad_InvalidInteger(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("MAX_XP", "a lot")

	_, err := Load()
	assert.ErrorContains(t, err, "failed to load environment variables")
}

func TestLoad_RejectsBadDecayRate(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DECAY_RATE", "1.5")

	_, err := Load()
	assert.ErrorContains(t, err, "DECAY_RATE")
}

func TestLoad_RejectsInvertedPollDurations(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("POLL_MIN_DURATION", "48h")
	t.Setenv("POLL_MAX_DURATION", "1h")

	_, err := Load()
	assert.ErrorContains(t, err, "POLL_MIN_DURATION")
}
