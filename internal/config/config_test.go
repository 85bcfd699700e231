package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://api.example.com/")

	cfg, err := parse(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.Timeout)
	assert.Equal(t, "https://api.example.com", cfg.API.BaseURL)
	assert.Equal(t, "https://api.example.com/image-proxy", cfg.API.ProxyURL)
	assert.Equal(t, 12*time.Second, cfg.API.Timeout)
	assert.Equal(t, 500*time.Millisecond, cfg.Export.Pause)
	assert.Equal(t, 10*time.Second, cfg.Export.WaitCeiling)
	assert.Equal(t, 100*time.Millisecond, cfg.Export.PollInterval)
	assert.Equal(t, SinkDir, cfg.Export.Sink)
	assert.Equal(t, time.Hour, cfg.Redis.TTL)
}

func TestParseEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("EXPORT_PAUSE", "1s")
	t.Setenv("API_PROXY_URL", "http://proxy.local/p")
	t.Setenv("REDIS_DB", "3")

	cfg, err := parse(viper.New())
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, time.Second, cfg.Export.Pause)
	assert.Equal(t, "http://proxy.local/p", cfg.API.ProxyURL)
	assert.Equal(t, 3, cfg.Redis.DB)
}

func TestParseRejectsBadSink(t *testing.T) {
	t.Setenv("EXPORT_SINK", "ftp")
	_, err := parse(viper.New())
	assert.Error(t, err)

	t.Setenv("EXPORT_SINK", "s3")
	_, err = parse(viper.New())
	assert.Error(t, err)
}

func TestStringMasksSecrets(t *testing.T) {
	cfg := &Config{
		Redis: RedisConfig{Password: "hunter2"},
		S3:    S3Config{AccessKey: "AKIA", SecretKey: "shh"},
	}
	s := cfg.String()
	assert.False(t, strings.Contains(s, "hunter2"))
	assert.False(t, strings.Contains(s, "AKIA"))
	assert.False(t, strings.Contains(s, "shh"))
	assert.Contains(t, s, "********")
}
