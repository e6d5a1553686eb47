package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig()

	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, "http://localhost:8000", cfg.Backend.BaseURL)
	assert.Equal(t, "default_user", cfg.Backend.UserID)
	assert.Equal(t, ProfileBackendFile, cfg.Profile.Backend)
	assert.Equal(t, "automark_user", cfg.Profile.Key)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, "automark.activity", cfg.Kafka.Topic)
	assert.Equal(t, 2*time.Second, cfg.Instagram.CloseDelay)
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("AUTOMARK_API_URL", "http://backend:9000")
	t.Setenv("AUTOMARK_API_TIMEOUT", "30")
	t.Setenv("PROFILE_BACKEND", ProfileBackendRedis)
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("STORAGE_MAX_SIZE", "1024")
	t.Setenv("INSTAGRAM_CLOSE_DELAY_MS", "500")

	cfg := LoadConfig()

	assert.Equal(t, "http://backend:9000", cfg.Backend.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Backend.Timeout)
	assert.Equal(t, ProfileBackendRedis, cfg.Profile.Backend)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, int64(1024), cfg.Storage.MaxSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Instagram.CloseDelay)
}

func TestLoadConfig_InvalidNumbersFallBack(t *testing.T) {
	t.Setenv("SERVER_MAX_REQUESTS", "lots")
	t.Setenv("KAFKA_ENABLED", "maybe")

	cfg := LoadConfig()

	assert.Equal(t, 100, cfg.Server.MaxRequests)
	assert.False(t, cfg.Kafka.Enabled)
}
