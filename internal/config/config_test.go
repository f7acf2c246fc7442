package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("MYSQL_DSN", "user:pass@tcp(127.0.0.1:3306)/civic?parseTime=true")
	t.Setenv("JWT_SECRET", "secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, DefaultPoints(), cfg.Points)
	assert.Equal(t, int64(-15), cfg.Points.IssueFake)
	assert.Equal(t, time.Duration(0), cfg.ReconcileInterval)
	assert.Equal(t, 500, cfg.ReconcileBatchSize)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.False(t, cfg.SMTP.Enabled())
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("POINTS_FOLLOW_ISSUE", "2")
	t.Setenv("POINTS_ISSUE_FAKE", "-30")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("RECONCILE_INTERVAL", "15m")
	t.Setenv("SMTP_HOST", "smtp.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, int64(2), cfg.Points.FollowIssue)
	assert.Equal(t, int64(-30), cfg.Points.IssueFake)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 15*time.Minute, cfg.ReconcileInterval)
	assert.True(t, cfg.SMTP.Enabled())
}

func TestLoadInvalidNumberFallsBackToDefault(t *testing.T) {
	setRequired(t)
	t.Setenv("POINTS_POST_ISSUE", "ten")
	t.Setenv("OUTBOX_INTERVAL", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, int64(10), cfg.Points.PostIssue)
	assert.Equal(t, time.Second, cfg.OutboxInterval)
}

func TestLoadMissingRequired(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("MYSQL_DSN", "")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MYSQL_DSN")
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoadRejectsNonPositiveBatch(t *testing.T) {
	setRequired(t)
	t.Setenv("RECONCILE_BATCH_SIZE", "0")

	_, err := Load()
	require.Error(t, err)
}
