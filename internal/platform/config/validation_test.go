package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig returns a fully valid configuration for testing.
func validConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "test-service",
			Version:     "1.0.0",
			Environment: "local",
		},
		Server: ServerConfig{
			Port:               8080,
			Host:               "0.0.0.0",
			ReadTimeout:        30 * time.Second,
			WriteTimeout:       30 * time.Second,
			IdleTimeout:        120 * time.Second,
			ShutdownTimeout:    10 * time.Second,
			MaxRequestSize:     1048576,
			HealthCheckTimeout: 2 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Context: ContextConfig{
			CollisionLogging: true,
			Deadline:         30 * time.Second,
		},
		Worker: WorkerConfig{
			Concurrency:        4,
			ArchiveMaxRequests: 1024,
		},
	}
}

func TestConfig_Validate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestConfig_Validate_ValidEnvironments(t *testing.T) {
	for _, env := range []string{"local", "dev", "qa", "prod", "test"} {
		t.Run(env, func(t *testing.T) {
			cfg := validConfig()
			cfg.App.Environment = env

			assert.NoError(t, cfg.Validate())
		})
	}
}

func TestConfig_Validate_Fields(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*Config)
		contains []string
	}{
		{
			name:     "missing app name",
			mutate:   func(c *Config) { c.App.Name = "" },
			contains: []string{"app.name is required"},
		},
		{
			name:     "invalid environment",
			mutate:   func(c *Config) { c.App.Environment = "staging" },
			contains: []string{"app.environment", "must be one of"},
		},
		{
			name:     "port zero",
			mutate:   func(c *Config) { c.Server.Port = 0 },
			contains: []string{"server.port"},
		},
		{
			name:     "port too high",
			mutate:   func(c *Config) { c.Server.Port = 65536 },
			contains: []string{"server.port must be at most 65535"},
		},
		{
			name:     "read timeout below minimum",
			mutate:   func(c *Config) { c.Server.ReadTimeout = 500 * time.Millisecond },
			contains: []string{"server.read_timeout"},
		},
		{
			name:     "health check timeout below minimum",
			mutate:   func(c *Config) { c.Server.HealthCheckTimeout = time.Millisecond },
			contains: []string{"server.health_check_timeout"},
		},
		{
			name:     "invalid log level",
			mutate:   func(c *Config) { c.Log.Level = "DEBUG" },
			contains: []string{"log.level", "must be one of"},
		},
		{
			name:     "invalid log format",
			mutate:   func(c *Config) { c.Log.Format = "xml" },
			contains: []string{"log.format"},
		},
		{
			name: "file logging enabled without path",
			mutate: func(c *Config) {
				c.Log.File.Enabled = true
				c.Log.File.Path = ""
			},
			contains: []string{"log.file.path", "is required when"},
		},
		{
			name: "file max size too large",
			mutate: func(c *Config) {
				c.Log.File.Enabled = true
				c.Log.File.Path = "/var/log/app.log"
				c.Log.File.MaxSizeMB = 1025
			},
			contains: []string{"log.file.max_size"},
		},
		{
			name: "telemetry enabled without endpoint",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.ServiceName = "svc"
			},
			contains: []string{"telemetry.endpoint"},
		},
		{
			name: "telemetry invalid endpoint",
			mutate: func(c *Config) {
				c.Telemetry.Enabled = true
				c.Telemetry.ServiceName = "svc"
				c.Telemetry.Endpoint = "not a url"
			},
			contains: []string{"telemetry.endpoint must be a valid URL"},
		},
		{
			name:     "sampling rate out of range",
			mutate:   func(c *Config) { c.Telemetry.SamplingRate = 1.5 },
			contains: []string{"telemetry.sampling_rate"},
		},
		{
			name:     "context deadline too short",
			mutate:   func(c *Config) { c.Context.Deadline = 10 * time.Millisecond },
			contains: []string{"context.deadline"},
		},
		{
			name:     "worker concurrency zero",
			mutate:   func(c *Config) { c.Worker.Concurrency = 0 },
			contains: []string{"worker.concurrency is required"},
		},
		{
			name:     "worker concurrency too high",
			mutate:   func(c *Config) { c.Worker.Concurrency = 1000 },
			contains: []string{"worker.concurrency must be at most 256"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			require.Error(t, err)

			for _, want := range tt.contains {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestConfig_Validate_TelemetryEnabledValid(t *testing.T) {
	cfg := validConfig()
	cfg.Telemetry = TelemetryConfig{
		Enabled:      true,
		Endpoint:     "http://localhost:4317",
		ServiceName:  "svc",
		SamplingRate: 0.5,
	}

	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate_MultipleErrors(t *testing.T) {
	cfg := &Config{
		App: AppConfig{Environment: "invalid"},
	}

	err := cfg.Validate()
	require.Error(t, err)

	assert.Contains(t, err.Error(), "app.name")
	assert.Contains(t, err.Error(), "app.version")
	assert.Contains(t, err.Error(), "app.environment")
}

func TestFormatFieldPath(t *testing.T) {
	tests := []struct {
		namespace string
		expected  string
	}{
		{"Config.server.port", "server.port"},
		{"Config.log.file.max_size", "log.file.max_size"},
		{"Config.Server.Port", "server.port"},
		{"port", "port"},
	}

	for _, tt := range tests {
		t.Run(tt.namespace, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatFieldPath(tt.namespace))
		})
	}
}
