package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))
	assert.Equal(t, 2, cfg.Engine.MaxConcurrent)
	assert.Equal(t, int64(4*1024*1024), cfg.Engine.ChunkSize)
	assert.Equal(t, int64(1024*1024), cfg.Engine.HashSampleSize)
	assert.Equal(t, "RSA-PSS-SHA256", cfg.Signing.Algorithm)
	assert.True(t, cfg.Security.RequireForce)
	assert.False(t, cfg.API.Enabled)
}

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadEmptyPathReturnsDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
engine:
  max_concurrent: 4
  max_speed_mbps: 25
logging:
  level: DEBUG
signing:
  keys_dir: /var/lib/zerotrace/keys
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Engine.MaxConcurrent)
	assert.Equal(t, 25.0, cfg.Engine.MaxSpeedMBps)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
	assert.Equal(t, "/var/lib/zerotrace/keys", cfg.Signing.KeysDir)
	// Незатронутые поля остаются по умолчанию
	assert.Equal(t, int64(4*1024*1024), cfg.Engine.ChunkSize)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine: [not a map"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse")
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero concurrent", func(c *Config) { c.Engine.MaxConcurrent = 0 }},
		{"too many concurrent", func(c *Config) { c.Engine.MaxConcurrent = 11 }},
		{"negative chunk", func(c *Config) { c.Engine.ChunkSize = -1 }},
		{"huge chunk", func(c *Config) { c.Engine.ChunkSize = 512 * 1024 * 1024 }},
		{"negative speed", func(c *Config) { c.Engine.MaxSpeedMBps = -1 }},
		{"zero hash sample", func(c *Config) { c.Engine.HashSampleSize = 0 }},
		{"bad duration", func(c *Config) { c.Engine.MaxDuration = "fast" }},
		{"bad log level", func(c *Config) { c.Logging.Level = "TRACE" }},
		{"empty keys dir", func(c *Config) { c.Signing.KeysDir = "" }},
		{"unknown algorithm", func(c *Config) { c.Signing.Algorithm = "ED25519" }},
		{"reporting without path", func(c *Config) { c.Reporting.LocalPath = "" }},
		{"api without listen", func(c *Config) { c.API.Enabled = true; c.API.Listen = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

func TestSaveAndLoadRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Engine.MaxConcurrent = 3
	cfg.Logging.Level = "WARN"
	require.NoError(t, Save(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestSaveRejectsInvalid(t *testing.T) {
	cfg := Default()
	cfg.Engine.MaxConcurrent = 0
	err := Save(cfg, filepath.Join(t.TempDir(), "config.yaml"))
	require.Error(t, err)
}

func TestGetMaxDuration(t *testing.T) {
	cfg := Default()
	assert.Equal(t, time.Duration(0), cfg.GetMaxDuration())

	cfg.Engine.MaxDuration = "45m"
	assert.Equal(t, 45*time.Minute, cfg.GetMaxDuration())
}

func TestApplyProfile(t *testing.T) {
	cfg := Default()
	require.NoError(t, ApplyProfile(cfg, "safe"))
	assert.Equal(t, 1, cfg.Engine.MaxConcurrent)
	assert.Equal(t, 10.0, cfg.Engine.MaxSpeedMBps)

	require.NoError(t, ApplyProfile(cfg, "aggressive"))
	assert.Equal(t, 4, cfg.Engine.MaxConcurrent)
	assert.Equal(t, 0.0, cfg.Engine.MaxSpeedMBps)

	err := ApplyProfile(cfg, "turbo")
	require.Error(t, err)
}
