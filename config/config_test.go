package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "current", cfg.Chat.Variant)
	assert.Equal(t, 10, cfg.Files.PageSize)
	assert.Len(t, cfg.Files.Categories, 4)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty base url", func(c *Config) { c.Server.BaseURL = "" }},
		{"unknown variant", func(c *Config) { c.Chat.Variant = "beta" }},
		{"page size zero", func(c *Config) { c.Files.PageSize = 0 }},
		{"page size too large", func(c *Config) { c.Files.PageSize = 500 }},
		{"no categories", func(c *Config) { c.Files.Categories = nil }},
		{"blank category", func(c *Config) { c.Files.Categories = []string{""} }},
		{"bad log mode", func(c *Config) { c.Logging.Mode = "verbose" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Chdir(t.TempDir())

	dir := filepath.Join(home, ".docchat")
	require.NoError(t, os.MkdirAll(dir, 0755))
	yml := "server:\n  base_url: http://files.internal:9000\n  timeout: 30s\nchat:\n  variant: legacy\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yml), 0644))

	t.Setenv("DOCCHAT_PAGE_SIZE", "25")
	t.Setenv("DOCCHAT_SYSTEM_MESSAGE", "answer briefly")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://files.internal:9000", cfg.Server.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Server.Timeout)
	assert.Equal(t, "legacy", cfg.Chat.Variant)
	assert.Equal(t, 25, cfg.Files.PageSize)
	assert.Equal(t, "answer briefly", cfg.Chat.SystemMessage)
	// untouched keys keep their defaults
	assert.Equal(t, "dev", cfg.Logging.Mode)
}

func TestLoad_InvalidEnv(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())
	t.Setenv("DOCCHAT_TIMEOUT", "soon")

	_, err := Load()
	assert.Error(t, err)
}

func TestSave_RoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	cfg := Default()
	cfg.Server.BaseURL = "http://example.test"
	require.NoError(t, cfg.Save())

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://example.test", loaded.Server.BaseURL)
}
