// Package history keeps an optional SQLite journal of completed fetches.
// Only metadata is stored; bodies are reduced to their size.
package history

import (
	"context"
	"database/sql"
	"fmt"
	neturl "net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	// SQLite driver
	_ "github.com/mattn/go-sqlite3"

	fetch "github.com/abdul-hamid-achik/hostfetch/packages/http"
)

const schema = `
CREATE TABLE IF NOT EXISTS fetches (
	id          TEXT PRIMARY KEY,
	created_at  INTEGER NOT NULL,
	method      TEXT NOT NULL,
	url         TEXT NOT NULL,
	status      INTEGER NOT NULL DEFAULT 0,
	is_base64   INTEGER NOT NULL DEFAULT 0,
	body_bytes  INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	error_kind  TEXT NOT NULL DEFAULT '',
	error       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS fetches_created_at ON fetches (created_at);
`

// Entry is one journaled fetch
type Entry struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	Method     string    `json:"method"`
	URL        string    `json:"url"`
	Status     int       `json:"status,omitempty"`
	IsBase64   bool      `json:"is_base64,omitempty"`
	BodyBytes  int       `json:"body_bytes,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// NewEntry describes the outcome of executing d. env is nil when err is set.
func NewEntry(d *fetch.Descriptor, env *fetch.Envelope, err error, duration time.Duration) Entry {
	e := Entry{
		CreatedAt:  time.Now().UTC(),
		DurationMs: duration.Milliseconds(),
	}
	if d != nil {
		e.Method = d.Method
		e.URL = redactURL(d.URL)
	}
	if err != nil {
		if kind, ok := fetch.KindOf(err); ok {
			e.ErrorKind = kind.String()
		}
		e.Error = err.Error()
		return e
	}
	if env != nil {
		e.Status = env.Status
		e.IsBase64 = env.IsBase64
		if raw, decodeErr := env.Bytes(); decodeErr == nil {
			e.BodyBytes = len(raw)
		}
	}
	return e
}

// redactURL hides the password part of userinfo
func redactURL(raw string) string {
	u, err := neturl.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Redacted()
}

// Store is a SQLite backed journal
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the journal at path
func Open(path string) (*Store, error) {
	dsn := strings.TrimPrefix(path, "sqlite://")
	if dsn != ":memory:" && !strings.HasPrefix(dsn, "file:") {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	// sqlite3 serializes writers; one connection avoids "database is locked"
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize history: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record stores e and returns its ID, generating one when empty
func (s *Store) Record(ctx context.Context, e Entry) (string, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fetches (id, created_at, method, url, status, is_base64, body_bytes, duration_ms, error_kind, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.CreatedAt.UnixMilli(), e.Method, e.URL, e.Status, e.IsBase64, e.BodyBytes, e.DurationMs, e.ErrorKind, e.Error,
	)
	if err != nil {
		return "", fmt.Errorf("record fetch: %w", err)
	}
	return e.ID, nil
}

// List returns up to limit entries, newest first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT id, created_at, method, url, status, is_base64, body_bytes, duration_ms, error_kind, error
		FROM fetches ORDER BY created_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		var createdAt int64
		if err := rows.Scan(&e.ID, &createdAt, &e.Method, &e.URL, &e.Status, &e.IsBase64, &e.BodyBytes, &e.DurationMs, &e.ErrorKind, &e.Error); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		e.CreatedAt = time.UnixMilli(createdAt).UTC()
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return entries, nil
}

// Prune deletes entries older than cutoff and returns how many were removed
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM fetches WHERE created_at < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return res.RowsAffected()
}
