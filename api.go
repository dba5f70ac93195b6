package tenantcache

import (
	"context"
	"time"

	pr "github.com/unkn0wn-root/tenantcache/provider"
)

// Mode selects what a Cache instance stores.
type Mode uint8

const (
	// Positive caches hold encoded payloads. Empty payloads are rejected.
	Positive Mode = iota + 1
	// Negative caches hold presence markers only. Non-empty payloads are rejected.
	Negative
)

func (m Mode) String() string {
	switch m {
	case Positive:
		return "positive"
	case Negative:
		return "negative"
	default:
		return "unknown"
	}
}

// Cache is a bounded, TTL-based, byte-oriented key/value store.
// Keys are caller-built strings. A Get on a key past its TTL behaves as a miss,
// even if the provider has not evicted it yet.
type Cache interface {
	Name() string
	Mode() Mode
	Enabled() bool

	// Get returns the payload for key. For Negative caches a hit returns an
	// empty, non-nil payload. A provider failure is returned as *ProviderError
	// and counted as a miss.
	Get(ctx context.Context, key string) (payload []byte, ok bool, err error)
	Set(ctx context.Context, key string, payload []byte) error
	Invalidate(ctx context.Context, key string) error

	Stats() Stats
	Close(context.Context) error
}

// Stats is a point-in-time snapshot of a single cache. Hits and Misses are
// exact. Evictions counts lazy expiries plus whatever the provider reports.
// Entries is 0 for providers that cannot report a size.
type Stats struct {
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
	Entries   uint64 `json:"entries"`
}

// Options tune a Cache. Only Name and Provider are required.
type Options struct {
	// Required
	Name     string // storage namespace. e.g. "tenant:positive"
	Provider pr.Provider

	Mode     Mode             // 0 => Positive
	TTL      time.Duration    // 0 => DefaultPositiveTTL or DefaultNegativeTTL by Mode
	Logger   Logger           // if nil, NopLogger is used
	Hooks    Hooks            // if nil, NopHooks is used
	Clock    func() time.Time // if nil, time.Now
	Disabled bool             // default false (enabled)
}

func New(opts Options) (Cache, error) {
	return newCache(opts)
}
