// Package store provides SQLite persistence for rag-news-cli: the local ask
// history and a small key-value table for CLI state.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robertmeta/rag-news-cli/model"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// KeyValue is a JSON key-value store owned by the CLI layer.
type KeyValue interface {
	Put(key string, value any) error
	Get(key string, dst any) (bool, error)
	Delete(key string) error
}

// Store manages the SQLite database.
type Store struct {
	db *sql.DB
}

var _ KeyValue = (*Store)(nil)

// QueryOptions specifies how to list history.
type QueryOptions struct {
	Limit     int
	Offset    int
	Search    string
	SinceTime *int64 // Unix timestamp
}

// New creates a new Store with the given database path.
// Use ":memory:" for an in-memory database (useful for testing).
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// an in-memory database exists per connection
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}

	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// createSchema creates the database tables and indexes.
func (s *Store) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		citations TEXT NOT NULL DEFAULT '[]',
		asked_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_asked_at ON history(asked_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveHistory inserts a history item and sets its ID.
// A zero AskedAt is set to the current time.
func (s *Store) SaveHistory(h *model.HistoryItem) error {
	if err := h.Validate(); err != nil {
		return err
	}
	if h.AskedAt.IsZero() {
		h.AskedAt = time.Now()
	}

	citations := h.Citations
	if citations == nil {
		citations = []model.Citation{}
	}
	data, err := json.Marshal(citations)
	if err != nil {
		return fmt.Errorf("failed to encode citations: %w", err)
	}

	result, err := s.db.Exec(
		"INSERT INTO history (question, answer, citations, asked_at) VALUES (?, ?, ?, ?)",
		h.Question, h.Answer, string(data), h.AskedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert history: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert ID: %w", err)
	}
	h.ID = id
	return nil
}

// GetHistory retrieves a history item by ID.
func (s *Store) GetHistory(id int64) (*model.HistoryItem, error) {
	row := s.db.QueryRow(
		"SELECT id, question, answer, citations, asked_at FROM history WHERE id = ?",
		id,
	)

	item, err := scanHistory(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("history item %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get history: %w", err)
	}
	return item, nil
}

// ListHistory retrieves history items, newest first.
func (s *Store) ListHistory(opts QueryOptions) ([]*model.HistoryItem, error) {
	query := "SELECT id, question, answer, citations, asked_at FROM history WHERE 1=1"
	args := []any{}

	if opts.Search != "" {
		pattern := "%" + strings.ToLower(opts.Search) + "%"
		query += " AND (LOWER(question) LIKE ? OR LOWER(answer) LIKE ?)"
		args = append(args, pattern, pattern)
	}

	if opts.SinceTime != nil {
		query += " AND asked_at >= ?"
		args = append(args, *opts.SinceTime)
	}

	query += " ORDER BY asked_at DESC, id DESC"

	// SQLite needs a LIMIT for OFFSET; -1 means no limit
	if opts.Limit > 0 || opts.Offset > 0 {
		limit := opts.Limit
		if limit <= 0 {
			limit = -1
		}
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, opts.Offset)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var items []*model.HistoryItem
	for rows.Next() {
		item, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// CountHistory returns the number of saved history items.
func (s *Store) CountHistory() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM history").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count history: %w", err)
	}
	return n, nil
}

// DeleteHistory deletes a history item by ID.
func (s *Store) DeleteHistory(id int64) error {
	result, err := s.db.Exec("DELETE FROM history WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete history: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("history item %d: %w", id, ErrNotFound)
	}
	return nil
}

// ClearHistory deletes every history item and returns how many were removed.
func (s *Store) ClearHistory() (int64, error) {
	result, err := s.db.Exec("DELETE FROM history")
	if err != nil {
		return 0, fmt.Errorf("failed to clear history: %w", err)
	}
	return result.RowsAffected()
}

// PruneHistory keeps the newest keep items and deletes the rest.
func (s *Store) PruneHistory(keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	result, err := s.db.Exec(
		`DELETE FROM history WHERE id NOT IN (
			SELECT id FROM history ORDER BY asked_at DESC, id DESC LIMIT ?
		)`,
		keep,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return result.RowsAffected()
}

// Put stores value under key as JSON, replacing any previous value.
func (s *Store) Put(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode value for %s: %w", key, err)
	}

	_, err = s.db.Exec(
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(data), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

// Get decodes the value stored under key into dst. It reports false when
// the key is absent.
func (s *Store) Get(key string, dst any) (bool, error) {
	var data string
	err := s.db.QueryRow("SELECT value FROM kv WHERE key = ?", key).Scan(&data)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get %s: %w", key, err)
	}

	if err := json.Unmarshal([]byte(data), dst); err != nil {
		return true, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(key string) error {
	_, err := s.db.Exec("DELETE FROM kv WHERE key = ?", key)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanHistory(row scanner) (*model.HistoryItem, error) {
	item := &model.HistoryItem{}
	var citations string
	var askedUnix int64

	if err := row.Scan(&item.ID, &item.Question, &item.Answer, &citations, &askedUnix); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(citations), &item.Citations); err != nil {
		return nil, fmt.Errorf("failed to decode citations of history item %d: %w", item.ID, err)
	}
	item.AskedAt = unixToTime(askedUnix)

	return item, nil
}

// Helper to convert Unix timestamp to time.Time
func unixToTime(unix int64) time.Time {
	return time.Unix(unix, 0)
}
