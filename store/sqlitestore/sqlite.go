// Package sqlitestore keeps cached caption service responses in a SQLite
// file so they survive restarts of command line tools.
package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ambiyansyah-risyal/captionkit"
)

// Store is a captionkit.Store backed by a single SQLite table.
type Store struct {
	db   *sql.DB
	once sync.Once
	now  func() time.Time
}

var _ captionkit.Store = (*Store)(nil)

// Open opens or creates the database at path. An empty path or ":memory:"
// uses an in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// An in-memory database lives as long as its one connection.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		`PRAGMA journal_mode=WAL`,
		`PRAGMA busy_timeout=5000`,
		`CREATE TABLE IF NOT EXISTS responses (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			stored_at INTEGER NOT NULL
		)`,
	} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &Store{db: db, now: time.Now}, nil
}

// Get implements captionkit.Store.
func (s *Store) Get(ctx context.Context, key string, maxAge time.Duration) (json.RawMessage, bool, error) {
	var (
		data     []byte
		storedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT value, stored_at FROM responses WHERE key = ?`, key,
	).Scan(&data, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if s.now().Sub(time.Unix(0, storedAt)) > maxAge {
		// Only delete the row we judged stale; a concurrent Set may have replaced it.
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM responses WHERE key = ? AND stored_at = ?`, key, storedAt,
		); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
	return json.RawMessage(data), true, nil
}

// Set implements captionkit.Store.
func (s *Store) Set(ctx context.Context, key string, value json.RawMessage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO responses (key, value, stored_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, stored_at = excluded.stored_at`,
		key, []byte(value), s.now().UnixNano(),
	)
	return err
}

// Clear implements captionkit.Store.
func (s *Store) Clear(ctx context.Context, pattern string) error {
	if pattern == "" {
		_, err := s.db.ExecContext(ctx, `DELETE FROM responses`)
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM responses WHERE instr(key, ?) > 0`, pattern)
	return err
}

// Len returns the number of stored rows, fresh or not.
func (s *Store) Len() int {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM responses`).Scan(&n); err != nil {
		return 0
	}
	return n
}

// Close closes the database.
func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		err = s.db.Close()
	})
	return err
}
