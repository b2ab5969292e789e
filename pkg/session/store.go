// Package session persists client state that must survive a restart: the
// API base URL and the local chat history.
package session

import (
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/immodoc/immodoc/pkg/api"
)

//go:embed schema.sql
var schemaSQL string

// Fixed storage keys. There is no migration logic: a newer message schema
// simply coexists with unreadable old entries, which are dropped on load.
const (
	KeyBaseURL     = "api_base_url"
	KeyChatHistory = "chat_history"
)

// ErrStoreClosed indicates the underlying database connection is unavailable.
var ErrStoreClosed = errors.New("session: store closed")

// ChatMessage is one locally persisted chat turn. The id is client
// generated; DBID links to the server-side record when known.
type ChatMessage struct {
	ID      string       `json:"id"`
	DBID    int64        `json:"db_id,omitempty"`
	Role    string       `json:"role"`
	Text    string       `json:"text"`
	Sources []api.Source `json:"sources,omitempty"`
	// SourceDetails maps "<document_id>:<chunk_id>" to a lazily fetched
	// snippet. Populated incrementally, never pre-fetched.
	SourceDetails map[string]string `json:"source_details,omitempty"`
}

// Store manages the SQLite-backed session state.
type Store struct {
	db *sql.DB
}

// Open creates or opens the session database at dbPath.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("failed to create session directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	// One writer at a time is plenty for a single client process
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// BaseURL returns the persisted API base URL, falling back to the given
// default. Trailing slashes are trimmed either way.
func (s *Store) BaseURL(fallback string) string {
	value, err := s.getSetting(KeyBaseURL)
	if err != nil || strings.TrimSpace(value) == "" {
		return strings.TrimRight(strings.TrimSpace(fallback), "/")
	}
	return strings.TrimRight(strings.TrimSpace(value), "/")
}

// SetBaseURL persists a new base URL.
func (s *Store) SetBaseURL(baseURL string) error {
	return s.setSetting(KeyBaseURL, strings.TrimRight(strings.TrimSpace(baseURL), "/"))
}

// ChatHistory loads the persisted chat history. Malformed or non-array
// content resets to empty rather than failing: losing stale history is
// preferable to refusing to start.
func (s *Store) ChatHistory() []ChatMessage {
	value, err := s.getSetting(KeyChatHistory)
	if err != nil || strings.TrimSpace(value) == "" {
		return nil
	}
	var history []ChatMessage
	if err := json.Unmarshal([]byte(value), &history); err != nil {
		return nil
	}
	return history
}

// SaveChatHistory persists the full chat history.
func (s *Store) SaveChatHistory(history []ChatMessage) error {
	if history == nil {
		history = []ChatMessage{}
	}
	data, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("failed to encode chat history: %w", err)
	}
	return s.setSetting(KeyChatHistory, string(data))
}

// ClearChatHistory removes the persisted chat history.
func (s *Store) ClearChatHistory() error {
	return s.setSetting(KeyChatHistory, "")
}

func (s *Store) getSetting(key string) (string, error) {
	if s == nil || s.db == nil {
		return "", ErrStoreClosed
	}
	var value string
	err := s.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

// setSetting upserts a setting value. Empty value deletes the row.
func (s *Store) setSetting(key, value string) error {
	if s == nil || s.db == nil {
		return ErrStoreClosed
	}
	if value == "" {
		_, err := s.db.Exec(`DELETE FROM settings WHERE key = ?`, key)
		return err
	}
	_, err := s.db.Exec(`
		INSERT INTO settings (key, value, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	return err
}
