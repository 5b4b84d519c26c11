// Package cache stores finished diagram results so repeated requests skip the
// generator and the engine.
//
// The diagram core never caches; the CLI and the HTTP server wrap it with a
// [Cache] keyed by [Keyer.ResultKey]. Three backends are provided:
//
//   - [NullCache]: caching disabled
//   - [FileCache]: one JSON file per entry under the user cache directory
//   - [RedisCache]: shared cache for multi-instance deployments
//
// [Instrument] reports hits, misses and writes to observability hooks.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-level key-value store with per-entry TTL.
type Cache interface {
	// Get returns the value for key and whether it was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A zero ttl never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Clearer is implemented by backends that can drop every entry they own.
type Clearer interface {
	// Clear removes all entries and returns how many were removed.
	Clear(ctx context.Context) (int, error)
}

// Backend names accepted by configuration.
const (
	BackendNone  = "none"
	BackendFile  = "file"
	BackendRedis = "redis"
)

// TTLResult is the default lifetime of a cached diagram result.
const TTLResult = 7 * 24 * time.Hour
