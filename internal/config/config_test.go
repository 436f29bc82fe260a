package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.CDP.Host)
	assert.Equal(t, 9222, cfg.CDP.Port)
	assert.Equal(t, 39390, cfg.Worker.Port)
	assert.Empty(t, cfg.Worker.AuthToken)
	assert.Empty(t, cfg.Emulate.Platform)

	// The default file must now exist and load back identically.
	_, err = os.Stat(path)
	require.NoError(t, err)

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(
		"[cdp]\nport = 9333\n\n[emulate]\nplatform = \"MacIntel\"\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9333, cfg.CDP.Port)
	assert.Equal(t, "MacIntel", cfg.Emulate.Platform)
	// Unspecified values fall back to defaults.
	assert.Equal(t, "localhost", cfg.CDP.Host)
	assert.Equal(t, 39390, cfg.Worker.Port)
}

func TestLoadBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("not [valid toml"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg := defaultConfig()
	cfg.Worker.AuthToken = "secret-token"
	require.NoError(t, Save(cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret-token", loaded.Worker.AuthToken)
}
