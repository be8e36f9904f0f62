package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8084", cfg.Server.Port)
	assert.Equal(t, time.Second, cfg.Engine.ProcessorInterval)
	assert.Equal(t, 30*time.Second, cfg.Engine.HealthInterval)
	assert.Equal(t, 10, cfg.Engine.BatchSize)
	assert.Equal(t, 0.5, cfg.Engine.CircuitThreshold)
	assert.Equal(t, 3, cfg.Engine.DefaultRetryAttempts)
	assert.Equal(t, "en-US", cfg.Engine.DefaultLocale)
	assert.False(t, cfg.MongoDB.Enabled)
	assert.Equal(t, 10, cfg.SMTP.PoolSize)
	assert.Equal(t, "notification_telemetry", cfg.RabbitMQ.TelemetryExchange)
	assert.Equal(t, 5*time.Second, cfg.RabbitMQ.OutboxInterval)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("ENGINE_BATCH_SIZE", "25")
	t.Setenv("ENGINE_HEALTH_INTERVAL", "10s")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 25, cfg.Engine.BatchSize)
	assert.Equal(t, 10*time.Second, cfg.Engine.HealthInterval)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.yaml")
	content := []byte("engine:\n  processor_interval: 250ms\n  default_locale: vi-VN\nlogging:\n  level: debug\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))
	t.Setenv("NOTIFICATION_CONFIG_FILE", path)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.Engine.ProcessorInterval)
	assert.Equal(t, "vi-VN", cfg.Engine.DefaultLocale)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}, wantErr: false},
		{name: "zero batch", mutate: func(c *Config) { c.Engine.BatchSize = 0 }, wantErr: true},
		{name: "threshold above one", mutate: func(c *Config) { c.Engine.CircuitThreshold = 1.5 }, wantErr: true},
		{name: "zero interval", mutate: func(c *Config) { c.Engine.ProcessorInterval = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Engine: EngineConfig{
				ProcessorInterval: time.Second,
				HealthInterval:    time.Second,
				BatchSize:         10,
				CircuitThreshold:  0.5,
			}}
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
