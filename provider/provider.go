// Package provider defines the storage abstraction used by tenantcache.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly the
// same []byte that was previously passed to Set for a key (no prepended/appended
// metadata, no re-encoding, no mutation). If a store performs internal transforms
// (e.g., compression), they MUST be fully reversed so that the bytes returned by
// Get are identical to the bytes provided to Set.
//
// Important: every key a tenantcache.Cache writes is prefixed with the cache's
// Name. External code MUST NOT write values under that prefix. Foreign writes
// fail envelope validation and are deleted on read.
package provider

import (
	"context"
	"time"
)

// Provider is a minimal byte store with TTLs.
// Must be safe for concurrent use.
type Provider interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO/remote error happens, return (nil, false, err).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value with the given TTL. May ignore cost if unsupported.
	// Returns ok=false when the store rejected the write under pressure.
	Set(ctx context.Context, key string, value []byte, cost int64, ttl time.Duration) (ok bool, err error)

	// Del removes a key (best-effort).
	Del(ctx context.Context, key string) error

	// Close releases resources.
	Close(ctx context.Context) error
}

// Inspector is implemented by providers that can report their own
// bookkeeping. Both numbers may be approximate.
type Inspector interface {
	// Evictions counts entries dropped for capacity or TTL.
	Evictions() uint64
	// Len is the number of entries currently held.
	Len() int64
}

// Pinger is implemented by remote providers that can check connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}
