// Package store implements the shared counter store over SQLite.
//
// SQLite in WAL mode is the coordination medium between loop instances:
// the windowed restart-event multiset, the expiring cooldown flags, and
// the broadcast wake-signal logs all live in one database that every
// instance reads and writes. Mutations are idempotent "set if present"
// upserts, so a losing race between two instances cannot corrupt state.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore manages all SQLite operations with WAL mode for concurrent
// access across loop instances.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database and initializes the schema.
// The parent directory is created if it does not exist.
func Open(path string) (*SQLiteStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(60000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// retryOnContention wraps retryOp from retry.go with the default config.
func retryOnContention(fn func() error) error {
	return retryOp(defaultRetryConfig, fn)
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS events (
		id  INTEGER PRIMARY KEY AUTOINCREMENT,
		key TEXT NOT NULL,
		ts  INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_events_key_ts ON events(key, ts);

	CREATE TABLE IF NOT EXISTS flags (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		expires_at INTEGER
	);

	CREATE TABLE IF NOT EXISTS logs (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		log        TEXT NOT NULL,
		payload    BLOB NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_logs_log_id ON logs(log, id);

	CREATE TABLE IF NOT EXISTS cursors (
		instance TEXT NOT NULL,
		log      TEXT NOT NULL,
		last_id  INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (instance, log)
	);

	CREATE TABLE IF NOT EXISTS counters (
		key   TEXT PRIMARY KEY,
		value INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS audit (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		event      TEXT NOT NULL,
		fields     TEXT,
		created_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ---------------------------------------------------------------------------
// Windowed events
// ---------------------------------------------------------------------------

// IncrInWindow appends a timestamped entry under key, prunes entries older
// than window, and returns the count remaining. This is the fleet-wide
// restart-burst multiset: every instance appends to the same key.
func (s *SQLiteStore) IncrInWindow(key string, now time.Time, window time.Duration) (int, error) {
	cutoff := now.Add(-window).UnixMilli()
	var count int
	err := retryOnContention(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

		if _, err := tx.Exec(`DELETE FROM events WHERE key = ? AND ts < ?`, key, cutoff); err != nil {
			return err
		}
		if _, err := tx.Exec(`INSERT INTO events (key, ts) VALUES (?, ?)`, key, now.UnixMilli()); err != nil {
			return err
		}
		if err := tx.QueryRow(`SELECT COUNT(*) FROM events WHERE key = ?`, key).Scan(&count); err != nil {
			return err
		}
		return tx.Commit()
	})
	return count, err
}

// CountInWindow returns the number of entries under key newer than window,
// without recording a new one.
func (s *SQLiteStore) CountInWindow(key string, now time.Time, window time.Duration) (int, error) {
	cutoff := now.Add(-window).UnixMilli()
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM events WHERE key = ? AND ts >= ?`, key, cutoff,
	).Scan(&count)
	return count, err
}

// PurgeWindow removes every entry under key. Used by the immediate-tier
// bypass to reset the burst counters.
func (s *SQLiteStore) PurgeWindow(key string) error {
	return retryOnContention(func() error {
		_, err := s.db.Exec(`DELETE FROM events WHERE key = ?`, key)
		return err
	})
}

// ---------------------------------------------------------------------------
// Expiring flags
// ---------------------------------------------------------------------------

// SetFlag upserts a flag. A ttl <= 0 means the flag persists until deleted.
func (s *SQLiteStore) SetFlag(key, value string, ttl time.Duration) error {
	var expires any
	if ttl > 0 {
		expires = time.Now().Add(ttl).UnixMilli()
	}
	return retryOnContention(func() error {
		_, err := s.db.Exec(
			`INSERT INTO flags (key, value, expires_at) VALUES (?, ?, ?)
			 ON CONFLICT(key) DO UPDATE SET
			   value = excluded.value,
			   expires_at = excluded.expires_at`,
			key, value, expires,
		)
		return err
	})
}

// GetFlag returns the flag value and whether an unexpired flag is present.
func (s *SQLiteStore) GetFlag(key string) (string, bool, error) {
	s.sweepExpiredFlags()
	var value string
	err := s.db.QueryRow(`SELECT value FROM flags WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// DeleteFlag removes a flag. Deleting an absent flag is not an error.
func (s *SQLiteStore) DeleteFlag(key string) error {
	return retryOnContention(func() error {
		_, err := s.db.Exec(`DELETE FROM flags WHERE key = ?`, key)
		return err
	})
}

// CountFlags returns the number of active flags whose key starts with
// prefix. The emergency damper uses this to gauge how many throttles are
// already installed fleet-wide.
func (s *SQLiteStore) CountFlags(prefix string) (int, error) {
	s.sweepExpiredFlags()
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM flags WHERE key >= ? AND key < ?`,
		prefix, prefix+"￿",
	).Scan(&count)
	return count, err
}

// ListFlags returns active flags with the given key prefix, ordered by key.
func (s *SQLiteStore) ListFlags(prefix string) (map[string]string, error) {
	s.sweepExpiredFlags()
	rows, err := s.db.Query(
		`SELECT key, value FROM flags WHERE key >= ? AND key < ? ORDER BY key`,
		prefix, prefix+"￿",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	flags := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		flags[k] = v
	}
	return flags, rows.Err()
}

func (s *SQLiteStore) sweepExpiredFlags() {
	_, _ = s.db.Exec(
		`DELETE FROM flags WHERE expires_at IS NOT NULL AND expires_at < ?`,
		time.Now().UnixMilli(),
	)
}

// ---------------------------------------------------------------------------
// Counters
// ---------------------------------------------------------------------------

// IncrCounter atomically increments a named counter and returns the new
// value. Counters never decrease; there is no decrement operation.
func (s *SQLiteStore) IncrCounter(key string) (int64, error) {
	var value int64
	err := retryOnContention(func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck

		if _, err := tx.Exec(
			`INSERT INTO counters (key, value) VALUES (?, 1)
			 ON CONFLICT(key) DO UPDATE SET value = value + 1`, key,
		); err != nil {
			return err
		}
		if err := tx.QueryRow(`SELECT value FROM counters WHERE key = ?`, key).Scan(&value); err != nil {
			return err
		}
		return tx.Commit()
	})
	return value, err
}

// GetCounter returns the current value of a named counter (0 if unset).
func (s *SQLiteStore) GetCounter(key string) (int64, error) {
	var value int64
	err := s.db.QueryRow(`SELECT value FROM counters WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return value, err
}

// ResetCounter zeroes a named counter. Administrative use only; the loop
// itself never calls this.
func (s *SQLiteStore) ResetCounter(key string) error {
	return retryOnContention(func() error {
		_, err := s.db.Exec(`DELETE FROM counters WHERE key = ?`, key)
		return err
	})
}
