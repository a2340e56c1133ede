package client

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// TOMLConfig is the client config file layout
type TOMLConfig struct {
	Server        ServerSection        `toml:"server"`
	Reconnect     ReconnectSection     `toml:"reconnect"`
	History       HistorySection       `toml:"history"`
	Notifications NotificationsSection `toml:"notifications"`
}

type ServerSection struct {
	WebSocketURL string `toml:"websocket_url"`
	APIBaseURL   string `toml:"api_base_url"`
	StatePath    string `toml:"state_path"`
}

type ReconnectSection struct {
	ConnectTimeoutMs int `toml:"connect_timeout_ms"`
	BaseDelayMs      int `toml:"base_delay_ms"`
	MaxDelayMs       int `toml:"max_delay_ms"`
	MaxAttempts      int `toml:"max_attempts"`
	ProbeTimeoutMs   int `toml:"probe_timeout_ms"`
}

type HistorySection struct {
	PageSize int `toml:"page_size"`
}

type NotificationsSection struct {
	Desktop bool `toml:"desktop"`
}

// DefaultTOMLConfig returns the default client configuration
func DefaultTOMLConfig() TOMLConfig {
	return TOMLConfig{
		Server: ServerSection{
			WebSocketURL: "ws://localhost:8000/api/v1/ws/chat",
			APIBaseURL:   "http://localhost:8000/api/v1",
			StatePath:    "~/.sermo/state.db",
		},
		Reconnect: ReconnectSection{
			ConnectTimeoutMs: 5000,
			BaseDelayMs:      1000,
			MaxDelayMs:       30000,
			MaxAttempts:      5,
			ProbeTimeoutMs:   3000,
		},
		History: HistorySection{
			PageSize: DefaultPageSize,
		},
		Notifications: NotificationsSection{
			Desktop: true,
		},
	}
}

// LoadConfig reads the config file at path, creating it with defaults
// on first run. Missing keys fall back to defaults.
func LoadConfig(path string) (TOMLConfig, error) {
	cfg := DefaultTOMLConfig()

	path = expandPath(path)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeDefaultConfig(path, cfg); err != nil {
			// A config file is a convenience; run on defaults if the
			// directory is not writable
			return cfg, nil
		}
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ConnConfig converts the reconnect section to lifecycle tuning
func (c TOMLConfig) ConnConfig() ConnConfig {
	cfg := DefaultConnConfig()
	if c.Reconnect.ConnectTimeoutMs > 0 {
		cfg.ConnectTimeout = time.Duration(c.Reconnect.ConnectTimeoutMs) * time.Millisecond
	}
	if c.Reconnect.BaseDelayMs > 0 {
		cfg.ReconnectDelay = time.Duration(c.Reconnect.BaseDelayMs) * time.Millisecond
	}
	if c.Reconnect.MaxDelayMs > 0 {
		cfg.MaxReconnectDelay = time.Duration(c.Reconnect.MaxDelayMs) * time.Millisecond
	}
	if c.Reconnect.MaxAttempts > 0 {
		cfg.MaxReconnectAttempts = c.Reconnect.MaxAttempts
	}
	if c.Reconnect.ProbeTimeoutMs > 0 {
		cfg.ProbeTimeout = time.Duration(c.Reconnect.ProbeTimeoutMs) * time.Millisecond
	}
	return cfg
}

func writeDefaultConfig(path string, cfg TOMLConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

func expandPath(path string) string {
	if len(path) >= 2 && path[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
