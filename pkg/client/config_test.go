package client

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultTOMLConfig(), cfg)

	// The file exists now and loads back unchanged
	_, err = os.Stat(path)
	require.NoError(t, err)

	reloaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, reloaded)
}

func TestLoadConfigPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
websocket_url = "ws://example.com/ws/chat"

[reconnect]
max_attempts = 10
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "ws://example.com/ws/chat", cfg.Server.WebSocketURL)
	assert.Equal(t, 10, cfg.Reconnect.MaxAttempts)
	// Untouched keys keep their defaults
	assert.Equal(t, "http://localhost:8000/api/v1", cfg.Server.APIBaseURL)
	assert.Equal(t, 1000, cfg.Reconnect.BaseDelayMs)
	assert.Equal(t, DefaultPageSize, cfg.History.PageSize)
}

func TestLoadConfigMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("not [valid toml"), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestConnConfigConversion(t *testing.T) {
	cfg := DefaultTOMLConfig()
	cc := cfg.ConnConfig()

	assert.Equal(t, 5*time.Second, cc.ConnectTimeout)
	assert.Equal(t, 1*time.Second, cc.ReconnectDelay)
	assert.Equal(t, 30*time.Second, cc.MaxReconnectDelay)
	assert.Equal(t, 5, cc.MaxReconnectAttempts)
	assert.Equal(t, 3*time.Second, cc.ProbeTimeout)
}

func TestConnConfigIgnoresZeroValues(t *testing.T) {
	var cfg TOMLConfig
	cc := cfg.ConnConfig()
	assert.Equal(t, DefaultConnConfig(), cc)
}
