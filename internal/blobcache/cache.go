package blobcache

import (
	"context"
	"errors"
)

// ErrNotCached is returned by Get when key has no cache entry. It is not
// an error condition for callers; it drives control flow.
var ErrNotCached = errors.New("not cached")

// ErrTransport wraps any failure reaching the backing store that is not
// itself a cache miss.
var ErrTransport = errors.New("cache transport error")

// Cache is the capability interface the Job Handler and the Request
// Dispatcher depend on.
type Cache interface {
	// Exists reports whether key has a cache entry. Implementations
	// should make this cheap (e.g. a HEAD request).
	Exists(ctx context.Context, key string) (bool, error)

	// Get retrieves the bytes stored under key. Returns ErrNotCached if
	// no entry exists.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores body under key.
	Put(ctx context.Context, key string, body []byte) error
}
