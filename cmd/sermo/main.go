// Command sermo is a terminal chat client. It keeps one websocket
// subscription to a channel alive across network failures, backfills
// history as you scroll, and queues anything you send while offline.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/TheRareFew/sermo-sub001/pkg/client"
	"github.com/TheRareFew/sermo-sub001/pkg/client/ui"
)

var version = "dev"

func main() {
	var (
		configPath  = flag.String("config", "~/.sermo/config.toml", "path to the config file")
		channelID   = flag.String("channel", "", "channel to join (defaults to the last one)")
		displayName = flag.String("name", "", "display name (defaults to the last one)")
		wsURL       = flag.String("ws-url", "", "override the websocket URL")
		apiURL      = flag.String("api-url", "", "override the REST API base URL")
		debugLog    = flag.String("debug-log", "", "write a debug log to this file")
		showVersion = flag.Bool("version", false, "print the version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("sermo %s\n", version)
		return
	}

	if err := run(*configPath, *channelID, *displayName, *wsURL, *apiURL, *debugLog); err != nil {
		fmt.Fprintf(os.Stderr, "sermo: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, channelID, displayName, wsURL, apiURL, debugLog string) error {
	var logger *log.Logger
	if debugLog != "" {
		f, err := os.OpenFile(debugLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open debug log: %w", err)
		}
		defer f.Close()
		logger = log.New(f, "", log.LstdFlags|log.Lmicroseconds)
	}

	cfg, err := client.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if wsURL != "" {
		cfg.Server.WebSocketURL = wsURL
	}
	if apiURL != "" {
		cfg.Server.APIBaseURL = apiURL
	}

	store, err := client.OpenState(cfg.Server.StatePath)
	if err != nil {
		// State is a convenience; fall back to a throwaway database
		tmpPath := filepath.Join(os.TempDir(), "sermo-state.db")
		store, err = client.OpenState(tmpPath)
		if err != nil {
			return fmt.Errorf("open state: %w", err)
		}
	}
	defer store.Close()

	if channelID == "" {
		channelID = store.GetLastChannel()
	}
	if channelID == "" {
		channelID = "general"
	}
	if displayName == "" {
		displayName = store.GetLastDisplayName()
	}
	if displayName == "" {
		displayName = "anonymous"
	}

	metrics := client.NewMetrics(prometheus.NewRegistry())

	fetcher := client.NewHTTPHistoryFetcher(cfg.Server.APIBaseURL, cfg.History.PageSize)
	fetcher.SetLogger(logger)
	prober := client.NewHTTPHealthProber(cfg.Server.APIBaseURL, cfg.ConnConfig().ProbeTimeout)

	rec := client.NewReconciler(fetcher, cfg.History.PageSize)
	rec.SetMetrics(metrics)

	connCfg := cfg.ConnConfig()
	session := client.NewSession(func(chID string) client.ConnectionInterface {
		conn := client.NewConn(func() client.Transport {
			return client.NewWebSocketTransport(cfg.Server.WebSocketURL, logger)
		}, prober, connCfg)
		conn.SetLogger(logger)
		conn.SetMetrics(metrics)
		return conn
	}, rec)
	session.SetLogger(logger)
	session.SetMetrics(metrics)
	defer session.Close()

	if err := session.Bind(channelID, displayName); err != nil {
		store.SaveConnectionResult(cfg.Server.WebSocketURL, "failed")
		return fmt.Errorf("connect to %s: %w", cfg.Server.WebSocketURL, err)
	}
	store.SaveConnectionResult(cfg.Server.WebSocketURL, "connected")

	if store.GetFirstRun() {
		store.SetFirstRunComplete()
	}

	model := ui.New(session, store, cfg, logger)
	program := tea.NewProgram(model, tea.WithAltScreen())

	if _, err := program.Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}
