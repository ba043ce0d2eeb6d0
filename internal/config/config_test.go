package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, 24*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, time.Minute, cfg.SessionSweepInterval)
	assert.Equal(t, 5*time.Minute, cfg.StatusReconcileInterval)
	assert.True(t, cfg.FinalizerLockEnabled)
	assert.False(t, cfg.AutoMigrate)
	assert.Nil(t, cfg.AllowedOrigins)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("MAX_DB_CONNS", "4")
	t.Setenv("JWT_EXPIRY_HOURS", "2")
	t.Setenv("SESSION_SWEEP_INTERVAL", "15s")
	t.Setenv("QUESTION_CACHE_TTL", "90m")
	t.Setenv("FINALIZER_LOCK_ENABLED", "false")
	t.Setenv("AUTO_MIGRATE", "1")
	t.Setenv("ALLOWED_ORIGINS", " https://exam.stemsi.id, ,https://admin.stemsi.id ")

	cfg := Load()

	assert.Equal(t, "9090", cfg.ServerPort)
	assert.EqualValues(t, 4, cfg.MaxDBConns)
	assert.Equal(t, 2*time.Hour, cfg.JWTExpiry)
	assert.Equal(t, 15*time.Second, cfg.SessionSweepInterval)
	assert.Equal(t, 90*time.Minute, cfg.QuestionCacheTTL)
	assert.False(t, cfg.FinalizerLockEnabled)
	assert.True(t, cfg.AutoMigrate)
	assert.Equal(t, []string{"https://exam.stemsi.id", "https://admin.stemsi.id"}, cfg.AllowedOrigins)
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("MAX_DB_CONNS", "many")
	t.Setenv("SESSION_SWEEP_INTERVAL", "-1m")
	t.Setenv("STATUS_RECONCILE_INTERVAL", "soon")
	t.Setenv("METRICS_ENABLED", "perhaps")

	cfg := Load()

	assert.EqualValues(t, 16, cfg.MaxDBConns)
	assert.Equal(t, time.Minute, cfg.SessionSweepInterval)
	assert.Equal(t, 5*time.Minute, cfg.StatusReconcileInterval)
	assert.True(t, cfg.MetricsEnabled)
}
