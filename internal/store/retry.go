package store

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/clearsettle/clearsettle/internal/config"
)

// PersistenceError is a store write that still failed after the retry
// budget was exhausted. It carries the record id so the failure can be
// located in the logs; sibling records in the same batch are unaffected.
type PersistenceError struct {
	Op            string
	TransactionID string
	Err           error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s failed for %s after retries: %v", e.Op, e.TransactionID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Retrier wraps store calls in a bounded exponential backoff.
type Retrier struct {
	cfg    config.RetryConfig
	logger *slog.Logger
	sleep  func(time.Duration) // overridable in tests
}

// NewRetrier builds a retrier from the configured retry policy.
func NewRetrier(cfg config.RetryConfig, logger *slog.Logger) *Retrier {
	return &Retrier{cfg: cfg, logger: logger, sleep: time.Sleep}
}

// Do runs fn up to the attempt cap, backing off exponentially between
// attempts (initial backoff doubling up to the cap). On exhaustion the last
// error is wrapped in a *PersistenceError identifying op and record.
func (r *Retrier) Do(op, transactionID string, fn func() error) error {
	backoff := r.cfg.InitialBackoff
	var lastErr error

	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, ErrNotFound) {
			// A missing record will not appear on retry.
			break
		}
		if attempt == r.cfg.MaxAttempts {
			break
		}
		r.logger.Warn("store write failed, retrying",
			"op", op, "transaction_id", transactionID,
			"attempt", attempt, "backoff", backoff, "error", lastErr)
		r.sleep(backoff)
		backoff *= 2
		if backoff > r.cfg.MaxBackoff {
			backoff = r.cfg.MaxBackoff
		}
	}

	return &PersistenceError{Op: op, TransactionID: transactionID, Err: lastErr}
}
