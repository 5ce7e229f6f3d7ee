// retry.go provides automatic retry for transient SQLite errors.
//
// Several loop instances share one WAL-mode database, so writes can hit
// SQLITE_BUSY, SQLITE_LOCKED, or IOERR_SHORT_READ under contention. The
// busy_timeout pragma absorbs most of it at the connection level; the rest
// is retried here with exponential backoff and jitter.
package store

import (
	"math/rand"
	"strings"
	"time"
)

// retryConfig controls retry behavior for transient SQLite errors.
type retryConfig struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

var defaultRetryConfig = retryConfig{
	maxRetries: 3,
	baseDelay:  50 * time.Millisecond,
	maxDelay:   500 * time.Millisecond,
}

// isTransient reports whether the error is a transient SQLite error worth
// retrying. modernc.org/sqlite embeds the code in the error text.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, pattern := range []string{
		"SQLITE_BUSY",
		"SQLITE_LOCKED",
		"IOERR_SHORT_READ",
		"database is locked",
		"database table is locked",
		"(5)",   // SQLITE_BUSY code
		"(6)",   // SQLITE_LOCKED code
		"(522)", // SQLITE_IOERR_SHORT_READ code
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// retryOp executes fn, retrying transient errors with backoff + jitter.
func retryOp(cfg retryConfig, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !isTransient(lastErr) {
			return lastErr
		}
		if attempt < cfg.maxRetries {
			delay := cfg.baseDelay << uint(attempt)
			if delay > cfg.maxDelay {
				delay = cfg.maxDelay
			}
			delay += time.Duration(rand.Int63n(int64(cfg.baseDelay)))
			time.Sleep(delay)
		}
	}
	return lastErr
}
