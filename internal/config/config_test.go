package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves into a fresh directory so no stray config.yaml or .env is picked up
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

// TestLoad tests layering of defaults, file and environment
func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		file        string
		dotenv      string
		wantErr     bool
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, Default(), cfg)
			},
		},
		{
			name: "file overrides defaults",
			file: `
server:
  port: 9090
charts:
  width: 800
paths:
  data_dir: /srv/data
`,
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, 800, cfg.Charts.Width)
				assert.Equal(t, 720, cfg.Charts.Height)
				assert.Equal(t, "/srv/data", cfg.Paths.DataDir)
				assert.Equal(t, "assignments.json", cfg.Paths.AssignmentsFile)
			},
		},
		{
			name: "environment overrides file",
			file: "server:\n  port: 9090\n",
			env: map[string]string{
				"MARKSCOPE_SERVER_PORT":               "7070",
				"MARKSCOPE_LOGGING_LEVEL":             "debug",
				"MARKSCOPE_SECURITY_ALLOWED_ORIGINS":  "http://a.test,http://b.test",
				"MARKSCOPE_CACHE_ENABLED":             "true",
				"MARKSCOPE_CACHE_TTL":                 "5m",
				"MARKSCOPE_SECURITY_RATE_LIMIT_RPS":   "5",
				"MARKSCOPE_TELEMETRY_ENABLE_TRACING":  "true",
				"MARKSCOPE_TELEMETRY_TRACE_EXPORTER":  "none",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 7070, cfg.Server.Port)
				assert.Equal(t, "debug", cfg.Logging.Level)
				assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Security.AllowedOrigins)
				assert.True(t, cfg.Cache.Enabled)
				assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
				assert.Equal(t, 5.0, cfg.Security.RateLimit.RPS)
				assert.True(t, cfg.Telemetry.EnableTracing)
				assert.Equal(t, "none", cfg.Telemetry.TraceExporter)
			},
		},
		{
			name:   "dotenv fills unset variables",
			dotenv: "MARKSCOPE_CHARTS_HEIGHT=480\n",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 480, cfg.Charts.Height)
			},
		},
		{
			name:    "invalid environment value",
			env:     map[string]string{"MARKSCOPE_SERVER_PORT": "not-a-port"},
			wantErr: true,
		},
		{
			name:    "invalid file",
			file:    "server: [",
			wantErr: true,
		},
		{
			name:    "invalid configuration",
			file:    "charts:\n  width: -1\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := chdir(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if tt.dotenv != "" {
				writeFile(t, filepath.Join(dir, ".env"), tt.dotenv)
				t.Cleanup(func() { os.Unsetenv("MARKSCOPE_CHARTS_HEIGHT") })
			}
			if tt.file != "" {
				writeFile(t, filepath.Join(dir, "config.yaml"), tt.file)
			}

			cfg, err := Load()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}
}

// TestLoadFrom_ConfigsDir tests the secondary config location
func TestLoadFrom_ConfigsDir(t *testing.T) {
	dir := chdir(t)
	writeFile(t, filepath.Join(dir, "configs", "config.yaml"), "charts:\n  curve_samples: 50\n")

	assert.Equal(t, "configs/config.yaml", getConfigFilePath())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Charts.CurveSamples)

	_, err = LoadFrom(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

// TestValidate tests configuration validation rules
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(*Config) {}, ""},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"port too large", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"zero read timeout", func(c *Config) { c.Server.ReadTimeout = 0 }, "read timeout"},
		{"negative shutdown timeout", func(c *Config) { c.Server.ShutdownTimeout = -time.Second }, "shutdown timeout"},
		{"cors without origins", func(c *Config) { c.Security.AllowedOrigins = nil }, "allowed origin"},
		{"cors disabled without origins", func(c *Config) {
			c.Security.EnableCORS = false
			c.Security.AllowedOrigins = nil
		}, ""},
		{"rate limit without burst", func(c *Config) { c.Security.RateLimit.Burst = 0 }, "rate limit"},
		{"unknown log level", func(c *Config) { c.Logging.Level = "verbose" }, "log level"},
		{"warning log level", func(c *Config) { c.Logging.Level = "WARNING" }, ""},
		{"unknown log format", func(c *Config) { c.Logging.Format = "xml" }, "log format"},
		{"unknown log output", func(c *Config) { c.Logging.Output = "syslog" }, "log output"},
		{"zero chart height", func(c *Config) { c.Charts.Height = 0 }, "chart size"},
		{"too few curve samples", func(c *Config) { c.Charts.CurveSamples = 1 }, "curve samples"},
		{"cache without host", func(c *Config) {
			c.Cache.Enabled = true
			c.Cache.Host = ""
		}, "cache host"},
		{"cache without ttl", func(c *Config) {
			c.Cache.Enabled = true
			c.Cache.TTL = 0
		}, "cache ttl"},
		{"sample ratio above one", func(c *Config) { c.Telemetry.SampleRatio = 1.5 }, "sample ratio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCacheConfig_Addr(t *testing.T) {
	assert.Equal(t, "localhost:6379", Default().Cache.Addr())
	assert.Equal(t, "[::1]:6380", CacheConfig{Host: "::1", Port: 6380}.Addr())
}

func TestConfig_ResolvePaths(t *testing.T) {
	cfg := Default()
	cfg.Paths.BaseDir = "/srv/markscope"

	paths, err := cfg.ResolvePaths()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/srv/markscope", "data", "assignments.json"), paths.AssignmentsFile)

	cfg.Paths.BaseDir = ""
	paths, err = cfg.ResolvePaths()
	require.NoError(t, err)
	exeDir, err := ExecutableDir()
	require.NoError(t, err)
	assert.Equal(t, exeDir, paths.BaseDir)
}
