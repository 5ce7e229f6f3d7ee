package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/thruflo/pacer/internal/logging"
)

// Record is a single entry in a broadcast log. Records are append-only and
// immutable; each reader tracks its own position via a cursor, so every
// instance sees every record exactly once.
type Record struct {
	ID        int64
	Log       string
	Payload   []byte
	CreatedAt time.Time
}

// AppendLog appends a record to the named log and returns its row ID.
func (s *SQLiteStore) AppendLog(log string, payload []byte) (int64, error) {
	var lastID int64
	err := retryOnContention(func() error {
		res, err := s.db.Exec(
			`INSERT INTO logs (log, payload, created_at) VALUES (?, ?, ?)`,
			log, payload, time.Now().UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return err
		}
		lastID, err = res.LastInsertId()
		return err
	})
	return lastID, err
}

// ReadLog returns up to limit records with ID > cursor, oldest first, and
// the cursor positioned after the last record returned. An empty read
// returns the cursor unchanged.
func (s *SQLiteStore) ReadLog(log string, cursor int64, limit int) ([]Record, int64, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(
		`SELECT id, log, payload, created_at FROM logs
		 WHERE log = ? AND id > ? ORDER BY id ASC LIMIT ?`,
		log, cursor, limit,
	)
	if err != nil {
		return nil, cursor, err
	}
	defer rows.Close()

	var records []Record
	newCursor := cursor
	for rows.Next() {
		var r Record
		var createdStr string
		if err := rows.Scan(&r.ID, &r.Log, &r.Payload, &createdStr); err != nil {
			return nil, cursor, err
		}
		var parseErr error
		r.CreatedAt, parseErr = time.Parse(time.RFC3339Nano, createdStr)
		if parseErr != nil {
			return nil, cursor, fmt.Errorf("parse created_at for record %d: %w", r.ID, parseErr)
		}
		records = append(records, r)
		newCursor = r.ID
	}
	return records, newCursor, rows.Err()
}

// CountLogBacklog returns how many records in the named log sit past the
// given cursor.
func (s *SQLiteStore) CountLogBacklog(log string, cursor int64) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM logs WHERE log = ? AND id > ?`, log, cursor,
	).Scan(&count)
	return count, err
}

// GetCursor returns the stored read position for (instance, log), 0 if unset.
func (s *SQLiteStore) GetCursor(instance, log string) int64 {
	var id int64
	if err := s.db.QueryRow(
		`SELECT last_id FROM cursors WHERE instance = ? AND log = ?`, instance, log,
	).Scan(&id); err != nil {
		return 0
	}
	return id
}

// SetCursor advances the read position for (instance, log). Cursors only
// move forward; a smaller value than the stored one is ignored.
func (s *SQLiteStore) SetCursor(instance, log string, id int64) error {
	return retryOnContention(func() error {
		_, err := s.db.Exec(
			`INSERT INTO cursors (instance, log, last_id) VALUES (?, ?, ?)
			 ON CONFLICT(instance, log) DO UPDATE SET
			   last_id = MAX(last_id, excluded.last_id)`,
			instance, log, id,
		)
		return err
	})
}

// ---------------------------------------------------------------------------
// Audit
// ---------------------------------------------------------------------------

// EmitAudit records a structured audit event. Fire and forget: failures are
// logged and swallowed, never surfaced, so an unreachable store can't abort
// the loop over bookkeeping.
func (s *SQLiteStore) EmitAudit(event string, fields map[string]any) {
	var payload []byte
	if len(fields) > 0 {
		var err error
		payload, err = json.Marshal(fields)
		if err != nil {
			logging.Warn("audit marshal failed", "event", event, "error", err)
			payload = nil
		}
	}
	err := retryOnContention(func() error {
		_, err := s.db.Exec(
			`INSERT INTO audit (event, fields, created_at) VALUES (?, ?, ?)`,
			event, string(payload), time.Now().UTC().Format(time.RFC3339Nano),
		)
		return err
	})
	if err != nil {
		logging.Warn("audit write failed", "event", event, "error", err)
	}
}

// AuditEntry is a recorded audit event.
type AuditEntry struct {
	ID        int64
	Event     string
	Fields    string
	CreatedAt time.Time
}

// ListAudit returns the most recent audit entries, newest first.
func (s *SQLiteStore) ListAudit(limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, event, COALESCE(fields,''), created_at FROM audit
		 ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var createdStr string
		if err := rows.Scan(&e.ID, &e.Event, &e.Fields, &createdStr); err != nil {
			return nil, err
		}
		var parseErr error
		e.CreatedAt, parseErr = time.Parse(time.RFC3339Nano, createdStr)
		if parseErr != nil {
			return nil, fmt.Errorf("parse created_at for audit %d: %w", e.ID, parseErr)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
