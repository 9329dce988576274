package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	t.Setenv("SESSION_SECRET", "test-secret")

	cfg, err := New(WithDisableFlagsParsing(true))
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.RunAddr)
	assert.Equal(t, "session_id", cfg.SessionCookieName)
	assert.Equal(t, "user_sessions", cfg.SessionTableName)
	assert.Equal(t, 24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "migrations", cfg.MigrationsDir)
	assert.Equal(t, 10*time.Second, cfg.DBConnectionTimeout)
	assert.False(t, cfg.SignupAutoLogin)
	assert.Empty(t, cfg.DatabaseDSN)
	assert.Empty(t, cfg.SQLiteDBPath)
}

func TestNewRequiresSessionSecret(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")

	_, err := New(WithDisableFlagsParsing(true))
	assert.Error(t, err)
}

func TestNewEnvOverrides(t *testing.T) {
	t.Setenv("SESSION_SECRET", "test-secret")
	t.Setenv("RUN_ADDR", ":8081")
	t.Setenv("SESSION_TABLE_NAME", "auth_sessions")
	t.Setenv("SESSION_TTL", "1h")
	t.Setenv("SIGNUP_AUTO_LOGIN", "true")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := New(WithDisableFlagsParsing(true))
	require.NoError(t, err)

	assert.Equal(t, ":8081", cfg.RunAddr)
	assert.Equal(t, "auth_sessions", cfg.SessionTableName)
	assert.Equal(t, time.Hour, cfg.SessionTTL)
	assert.True(t, cfg.SignupAutoLogin)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestNewRejectsInvalidSessionTableName(t *testing.T) {
	t.Setenv("SESSION_SECRET", "test-secret")
	t.Setenv("SESSION_TABLE_NAME", "user sessions; DROP TABLE users")

	_, err := New(WithDisableFlagsParsing(true))
	assert.Error(t, err)
}

func TestNewRejectsInvalidLogLevel(t *testing.T) {
	t.Setenv("SESSION_SECRET", "test-secret")
	t.Setenv("LOG_LEVEL", "loud")

	_, err := New(WithDisableFlagsParsing(true))
	assert.Error(t, err)
}
