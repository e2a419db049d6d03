package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/doeshing/compai/internal/application/config"
	"github.com/doeshing/compai/internal/domain"
)

func TestLoadWritesDefaultsOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	loader := NewFileLoader(path)

	cfg, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Equal(t, "gpt-4o-mini", cfg.Models.Chat)
	assert.Equal(t, domain.BridgeModeLocal, cfg.Bridge.Mode)
	assert.True(t, filepath.IsAbs(cfg.Bridge.ProjectPath))
	assert.NoError(t, appconfig.Validate(cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(domain.SecureFilePermissions), info.Mode().Perm())
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("models:\n  chat: local-llama\nbridge:\n  mode: websocket\n"), 0o600))

	cfg, err := NewFileLoader(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "local-llama", cfg.Models.Chat)
	assert.Equal(t, "gpt-4o", cfg.Models.Vision)
	assert.True(t, cfg.IsWebsocketBridge())
	assert.Equal(t, domain.DefaultBridgeListenAddr, cfg.Bridge.ListenAddr)
}

func TestLoadAppliesEnvironmentOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("COMPAI_MODELS_CHAT", "env-model")
	t.Setenv("COMPAI_ENDPOINT_API_KEY", "sk-env")

	cfg, err := NewFileLoader(path).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "env-model", cfg.Models.Chat)
	assert.Equal(t, "sk-env", cfg.ResolveAPIKey())
}

func TestPathHonoursEnvironment(t *testing.T) {
	custom := filepath.Join(t.TempDir(), "custom.yaml")
	t.Setenv("COMPAI_CONFIG", custom)
	assert.Equal(t, custom, NewFileLoader("").Path())
}

func TestWatchReloadsModelMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	loader := NewFileLoader(path)
	_, err := loader.Load(context.Background())
	require.NoError(t, err)

	changes := make(chan domain.Config, 4)
	require.NoError(t, loader.Watch(func(cfg domain.Config) { changes <- cfg }, nil))

	require.NoError(t, os.WriteFile(path, []byte("models:\n  chat: hot-swapped\n"), 0o600))

	select {
	case cfg := <-changes:
		assert.Equal(t, "hot-swapped", cfg.Models.Chat)
	case <-time.After(5 * time.Second):
		t.Fatal("config change was not observed")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	base, err := Defaults()
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*domain.Config)
	}{
		{name: "scheme", mutate: func(c *domain.Config) { c.Endpoint.BaseURL = "ftp://example.com" }},
		{name: "log level", mutate: func(c *domain.Config) { c.Logging.Level = "loud" }},
		{name: "log format", mutate: func(c *domain.Config) { c.Logging.Format = "xml" }},
		{name: "listen addr", mutate: func(c *domain.Config) {
			c.Bridge.Mode = domain.BridgeModeWebsocket
			c.Bridge.ListenAddr = "8765"
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			assert.Error(t, appconfig.Validate(cfg))
		})
	}
}
