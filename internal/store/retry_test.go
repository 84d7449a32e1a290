package store

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/clearsettle/clearsettle/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRetrier(attempts int) (*Retrier, *[]time.Duration) {
	var slept []time.Duration
	r := NewRetrier(config.RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: 2 * time.Millisecond,
		MaxBackoff:     10 * time.Millisecond,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.sleep = func(d time.Duration) { slept = append(slept, d) }
	return r, &slept
}

func TestRetrierSucceedsFirstTry(t *testing.T) {
	r, slept := newTestRetrier(5)
	calls := 0
	err := r.Do("update", "T1", func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *slept)
}

func TestRetrierRecoversAfterTransientFailures(t *testing.T) {
	r, slept := newTestRetrier(5)
	calls := 0
	err := r.Do("update", "T1", func() error {
		calls++
		if calls < 3 {
			return errors.New("database is locked")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{2 * time.Millisecond, 4 * time.Millisecond}, *slept)
}

func TestRetrierDoesNotRetryMissingRecords(t *testing.T) {
	r, slept := newTestRetrier(5)
	calls := 0
	err := r.Do("update", "GHOST", func() error {
		calls++
		return ErrNotFound
	})

	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *slept)
}

func TestRetrierExhaustionWrapsPersistenceError(t *testing.T) {
	r, slept := newTestRetrier(5)
	cause := errors.New("disk I/O error")
	err := r.Do("append", "T9", func() error { return cause })

	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "T9", perr.TransactionID)
	assert.Equal(t, "append", perr.Op)
	assert.ErrorIs(t, err, cause)

	// 5 attempts, 4 sleeps, capped growth: 2, 4, 8, 10.
	assert.Equal(t, []time.Duration{
		2 * time.Millisecond,
		4 * time.Millisecond,
		8 * time.Millisecond,
		10 * time.Millisecond,
	}, *slept)
}
