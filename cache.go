package tenantcache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/tenantcache/internal/wire"
	pr "github.com/unkn0wn-root/tenantcache/provider"
)

type cache struct {
	name     string
	mode     Mode
	provider pr.Provider
	log      Logger
	hooks    Hooks
	now      func() time.Time
	ttl      time.Duration
	enabled  bool

	hits    atomic.Uint64
	misses  atomic.Uint64
	expired atomic.Uint64
}

func newCache(opts Options) (*cache, error) {
	if opts.Provider == nil {
		return nil, fmt.Errorf("tenantcache: provider is required")
	}
	if opts.Name == "" {
		return nil, fmt.Errorf("tenantcache: name is required")
	}
	if opts.TTL < 0 {
		return nil, fmt.Errorf("tenantcache: negative ttl %v", opts.TTL)
	}

	c := &cache{
		name:     opts.Name,
		mode:     coalesce(opts.Mode, Positive),
		provider: opts.Provider,
		enabled:  !opts.Disabled,
	}
	if c.mode != Positive && c.mode != Negative {
		return nil, fmt.Errorf("tenantcache: unknown mode %d", opts.Mode)
	}

	// defaults
	c.log = coalesce[Logger](opts.Logger, NopLogger{})
	c.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	c.ttl = coalesce(opts.TTL, defaultTTL(c.mode))
	if opts.Clock != nil {
		c.now = opts.Clock
	} else {
		c.now = time.Now
	}

	return c, nil
}

func (c *cache) Name() string  { return c.name }
func (c *cache) Mode() Mode    { return c.mode }
func (c *cache) Enabled() bool { return c.enabled }

func (c *cache) Close(ctx context.Context) error {
	if c.provider != nil {
		return c.provider.Close(ctx)
	}
	return nil
}

func (c *cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if !c.enabled {
		return nil, false, nil
	}
	k := c.storageKey(key)
	raw, ok, err := c.provider.Get(ctx, k)
	if err != nil {
		c.misses.Add(1)
		c.hooks.ProviderError("get", k, err)
		return nil, false, &ProviderError{Op: "get", Key: key, Err: err}
	}
	if !ok {
		c.misses.Add(1)
		return nil, false, nil
	}

	e, err := wire.Decode(raw)
	if err != nil {
		c.heal(ctx, k, "corrupt")
		return nil, false, nil
	}
	if e.Mode != c.wireMode() {
		c.heal(ctx, k, "mode_mismatch")
		return nil, false, nil
	}
	if (c.mode == Positive) == (len(e.Payload) == 0) {
		c.heal(ctx, k, "payload_shape")
		return nil, false, nil
	}
	if e.Expired(c.now()) {
		// lazy expiry: the provider may still hold it
		_ = c.provider.Del(ctx, k)
		c.expired.Add(1)
		c.misses.Add(1)
		return nil, false, nil
	}

	c.hits.Add(1)
	if c.mode == Negative {
		return []byte{}, true, nil
	}
	return e.Payload, true, nil
}

func (c *cache) Set(ctx context.Context, key string, payload []byte) error {
	if !c.enabled {
		return nil
	}
	switch {
	case c.mode == Positive && len(payload) == 0:
		return ErrEmptyPayload
	case c.mode == Negative && len(payload) != 0:
		return ErrMarkerPayload
	}

	k := c.storageKey(key)
	wireb := wire.Encode(wire.Entry{
		Mode:       c.wireMode(),
		InsertedAt: c.now(),
		TTL:        c.ttl,
		Payload:    payload,
	})
	ok, err := c.provider.Set(ctx, k, wireb, entryCost, c.ttl)
	if err != nil {
		c.hooks.ProviderError("set", k, err)
		return &ProviderError{Op: "set", Key: key, Err: err}
	}
	if !ok {
		c.hooks.ProviderSetRejected(k)
		c.log.Debug("set rejected by provider (pressure)", Fields{"cache": c.name, "key": key})
	}
	return nil
}

func (c *cache) Invalidate(ctx context.Context, key string) error {
	if !c.enabled {
		return nil
	}
	k := c.storageKey(key)
	if err := c.provider.Del(ctx, k); err != nil {
		c.hooks.ProviderError("del", k, err)
		return &ProviderError{Op: "del", Key: key, Err: err}
	}
	c.log.Debug("invalidated key", Fields{"cache": c.name, "key": key})
	return nil
}

func (c *cache) Stats() Stats {
	s := Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.expired.Load(),
	}
	if in, ok := c.provider.(pr.Inspector); ok {
		s.Evictions += in.Evictions()
		if n := in.Len(); n > 0 {
			s.Entries = uint64(n)
		}
	}
	return s
}

// heal drops an entry that failed validation and records the read as a miss.
func (c *cache) heal(ctx context.Context, storageKey, reason string) {
	_ = c.provider.Del(ctx, storageKey)
	c.misses.Add(1)
	c.hooks.SelfHeal(storageKey, reason)
	c.log.Warn("dropped invalid cache entry", Fields{"cache": c.name, "key": storageKey, "reason": reason})
}

func (c *cache) wireMode() wire.Mode {
	if c.mode == Negative {
		return wire.ModeNegative
	}
	return wire.ModePositive
}

func (c *cache) storageKey(key string) string {
	return c.name + ":" + key
}

// StorageKey returns the provider key a Cache named name uses for key.
func StorageKey(name, key string) string {
	return name + ":" + key
}
