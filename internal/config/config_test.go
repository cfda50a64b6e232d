package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "secret")
	t.Setenv("STORAGE_DRIVER", "memory")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 7*24*time.Hour, cfg.AccessTTL)
	assert.Equal(t, int64(9900), cfg.Subscription.MonthlyPrice)
	assert.Equal(t, 14, cfg.Subscription.TrialDays)
	assert.Equal(t, 7, cfg.Subscription.GraceDays)
	assert.True(t, cfg.PinGateEnforced)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.Solapi.Enabled())
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "secret")
	t.Setenv("MYSQL_DSN", "root:root@tcp(localhost:3306)/comings?parseTime=true")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("PIN_GATE_ENFORCED", "false")
	t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "30")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.False(t, cfg.PinGateEnforced)
	assert.Equal(t, 30*time.Minute, cfg.AccessTTL)
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "")
	t.Setenv("STORAGE_DRIVER", "mysql")
	t.Setenv("MYSQL_DSN", "")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET_KEY")
	assert.Contains(t, err.Error(), "MYSQL_DSN")

	t.Setenv("JWT_SECRET_KEY", "secret")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("WORKER_COUNT", "many")
	_, err = Load()
	assert.ErrorContains(t, err, "WORKER_COUNT")
}
