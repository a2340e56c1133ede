package client

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store manages client-side persistent state
type Store struct {
	db  *sql.DB
	dir string // Directory where state is stored
}

const stateSchema = `
CREATE TABLE IF NOT EXISTS Config (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS ConnectionHistory (
	server_url      TEXT PRIMARY KEY,
	last_result     TEXT NOT NULL,
	last_attempt_at INTEGER NOT NULL
);
`

// OpenState opens or creates the client state database
func OpenState(path string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	// Configure for better reliability
	db.SetMaxOpenConns(1) // Client only needs one connection
	db.SetMaxIdleConns(1)

	// Enable WAL mode
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set busy timeout
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if _, err := db.Exec(stateSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{db: db, dir: dir}, nil
}

// Close closes the state database
func (s *Store) Close() error {
	return s.db.Close()
}

// GetConfig retrieves a configuration value
func (s *Store) GetConfig(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM Config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetConfig stores a configuration value
func (s *Store) SetConfig(key, value string) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO Config (key, value) VALUES (?, ?)
	`, key, value)
	return err
}

// GetLastDisplayName returns the last used display name
func (s *Store) GetLastDisplayName() string {
	name, _ := s.GetConfig("last_display_name")
	return name
}

// SetLastDisplayName stores the last used display name
func (s *Store) SetLastDisplayName(name string) error {
	return s.SetConfig("last_display_name", name)
}

// GetLastChannel returns the last joined channel ID
func (s *Store) GetLastChannel() string {
	channel, _ := s.GetConfig("last_channel")
	return channel
}

// SetLastChannel stores the last joined channel ID
func (s *Store) SetLastChannel(channelID string) error {
	return s.SetConfig("last_channel", channelID)
}

// GetFirstRun checks if this is the first time running the client
func (s *Store) GetFirstRun() bool {
	val, _ := s.GetConfig("first_run_complete")
	return val != "true"
}

// SetFirstRunComplete marks first run as complete
func (s *Store) SetFirstRunComplete() error {
	return s.SetConfig("first_run_complete", "true")
}

// GetLastConnectionResult retrieves the outcome of the most recent
// connection attempt against a server
func (s *Store) GetLastConnectionResult(serverURL string) (string, error) {
	var result string
	err := s.db.QueryRow(`
		SELECT last_result
		FROM ConnectionHistory
		WHERE server_url = ?
	`, serverURL).Scan(&result)

	if err == sql.ErrNoRows {
		return "", nil // No history for this server
	}
	return result, err
}

// SaveConnectionResult records the outcome of a connection attempt
func (s *Store) SaveConnectionResult(serverURL, result string) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO ConnectionHistory (server_url, last_result, last_attempt_at)
		VALUES (?, ?, ?)
	`, serverURL, result, time.Now().Unix())
	return err
}

// GetStateDir returns the directory where state is stored
func (s *Store) GetStateDir() string {
	return s.dir
}
