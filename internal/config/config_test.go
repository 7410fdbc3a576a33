package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, "admin", cfg.Seed.AdminUsername)
	assert.False(t, cfg.DBAutoMigrate)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("ACCESS_TOKEN_TTL", "5m")
	t.Setenv("DB_AUTO_MIGRATE", "true")
	t.Setenv("SEED_FILE", "/tmp/catalog.json")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.ServerPort)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, 5*time.Minute, cfg.AccessTokenTTL)
	assert.True(t, cfg.DBAutoMigrate)
	assert.Equal(t, "/tmp/catalog.json", cfg.Seed.File)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "bad int", key: "REDIS_DB", value: "one"},
		{name: "bad duration", key: "ACCESS_TOKEN_TTL", value: "soon"},
		{name: "non-positive ttl", key: "REFRESH_TOKEN_TTL", value: "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			cfg, err := Load()
			assert.Error(t, err)
			assert.Nil(t, cfg)
		})
	}
}
