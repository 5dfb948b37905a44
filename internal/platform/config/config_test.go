package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv(t *testing.T) {
	t.Run("development defaults", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "development")
		t.Setenv("JWT_SIGNING_KEY", "")
		t.Setenv("ADMIN_PASSWORD", "")
		t.Setenv("KAFKA_BROKERS", "")

		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, ":8080", cfg.Addr)
		assert.NotEmpty(t, cfg.Auth.JWTSigningKey)
		assert.Equal(t, "admin", cfg.Auth.AdminPassword)
		assert.Empty(t, cfg.Kafka.Brokers)
		assert.Equal(t, 30*time.Second, cfg.Thresholds.RefreshInterval)
		assert.Equal(t, 5, cfg.Auth.LoginMaxFailures)
		assert.Equal(t, 15*time.Minute, cfg.Auth.LoginLockDuration)
	})

	t.Run("production requires signing key", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "production")
		t.Setenv("JWT_SIGNING_KEY", "")

		_, err := FromEnv()
		require.Error(t, err)
	})

	t.Run("parses lists and durations", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "development")
		t.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092,")
		t.Setenv("JWT_TTL", "15m")
		t.Setenv("DB_MAX_OPEN_CONNS", "not-a-number")

		cfg, err := FromEnv()
		require.NoError(t, err)
		assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka.Brokers)
		assert.Equal(t, 15*time.Minute, cfg.Auth.TokenTTL)
		assert.Equal(t, 20, cfg.Database.MaxOpenConns)
	})
}
