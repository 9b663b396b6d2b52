package lockstore

import (
	"context"
	"errors"
	"time"
)

// ErrTransport wraps any failure talking to the backing store that is not
// itself meaningful application state (a miss, a lock already held, ...).
var ErrTransport = errors.New("lock store transport error")

// JobError is a recorded failure for a job path.
type JobError struct {
	Status  int
	Message string
}

// Store is the capability interface the Job Handler and the Request
// Dispatcher depend on. It never panics; every failure to reach the
// backing store is returned wrapped in ErrTransport.
type Store interface {
	// TryLock atomically creates jobs:<job> with a TTL iff it did not
	// already exist. True iff this call created the key. Successful
	// acquisition is tracked locally so only the acquiring instance
	// can later Unlock it.
	TryLock(ctx context.Context, job string, ttl time.Duration) (bool, error)

	// Unlock deletes jobs:<job> iff this Store instance previously
	// acquired it via TryLock. A job never locally held is a no-op.
	Unlock(ctx context.Context, job string) error

	// ForceUnlock deletes jobs:<job> unconditionally, bypassing the
	// locally-held check. Used by admin/reaping paths only.
	ForceUnlock(ctx context.Context, job string) error

	// Cleanup releases every lock this instance currently holds. It is
	// idempotent and safe to call multiple times.
	Cleanup(ctx context.Context) error

	// Jobs lists every job path currently holding a lock.
	Jobs(ctx context.Context) ([]string, error)

	// GetError returns the recorded failure for job, or nil if none.
	GetError(ctx context.Context, job string) (*JobError, error)

	// SetError records a failure for job with the configured error TTL.
	SetError(ctx context.Context, job string, status int, message string) error

	// Errors lists every job path with a live error flag.
	Errors(ctx context.Context) (map[string]JobError, error)

	// ClearErrors deletes every error flag.
	ClearErrors(ctx context.Context) error

	// Close releases the underlying connection. Mandatory on shutdown.
	Close() error
}
