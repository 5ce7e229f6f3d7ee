// iface.go defines the Store interface for dependency injection and testing.
//
// The concrete *SQLiteStore satisfies this interface. The guard, wake, mode,
// and loop packages accept Store instead of *SQLiteStore so tests can inject
// failing or instrumented stores.
package store

import "time"

// Store is the minimal shared-counter-store surface the admission core
// needs: windowed event counts, expiring flags, broadcast logs with
// per-instance cursors, monotone counters, and fire-and-forget audit.
type Store interface {
	// Close closes the underlying connection.
	Close() error

	// --- Windowed events ---

	// IncrInWindow appends now under key, prunes entries older than
	// window, and returns the remaining count.
	IncrInWindow(key string, now time.Time, window time.Duration) (int, error)

	// CountInWindow counts entries under key newer than window without
	// recording a new one.
	CountInWindow(key string, now time.Time, window time.Duration) (int, error)

	// PurgeWindow removes every entry under key.
	PurgeWindow(key string) error

	// --- Expiring flags ---

	// SetFlag upserts a flag; ttl <= 0 means no expiry.
	SetFlag(key, value string, ttl time.Duration) error

	// GetFlag returns the value and presence of an unexpired flag.
	GetFlag(key string) (string, bool, error)

	// DeleteFlag removes a flag; absent flags are not an error.
	DeleteFlag(key string) error

	// CountFlags counts active flags with the given key prefix.
	CountFlags(prefix string) (int, error)

	// ListFlags returns active flags with the given key prefix.
	ListFlags(prefix string) (map[string]string, error)

	// --- Counters ---

	// IncrCounter atomically increments a counter, returning the new value.
	IncrCounter(key string) (int64, error)

	// GetCounter returns a counter's value (0 if unset).
	GetCounter(key string) (int64, error)

	// ResetCounter zeroes a counter. Administrative use only.
	ResetCounter(key string) error

	// --- Broadcast logs ---

	// AppendLog appends a record to the named log, returning its ID.
	AppendLog(log string, payload []byte) (int64, error)

	// ReadLog returns records with ID > cursor and the advanced cursor.
	ReadLog(log string, cursor int64, limit int) ([]Record, int64, error)

	// CountLogBacklog counts records past the given cursor.
	CountLogBacklog(log string, cursor int64) (int, error)

	// GetCursor returns the read position for (instance, log).
	GetCursor(instance, log string) int64

	// SetCursor advances the read position for (instance, log).
	SetCursor(instance, log string, id int64) error

	// --- Audit ---

	// EmitAudit records a structured audit event; failures are swallowed.
	EmitAudit(event string, fields map[string]any)

	// ListAudit returns recent audit entries, newest first.
	ListAudit(limit int) ([]AuditEntry, error)
}

// Compile-time check that *SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)
