package tenant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/unkn0wn-root/tenantcache"
	"github.com/unkn0wn-root/tenantcache/codec"
)

// Stats aggregates both caches plus the count of negative entries written.
type Stats struct {
	Positive        tenantcache.Stats `json:"positive"`
	Negative        tenantcache.Stats `json:"negative"`
	NegativeInserts uint64            `json:"negative_inserts"`
}

// Service resolves requests to tenants through a positive cache, a
// negative cache and the authoritative Store.
type Service struct {
	cfg      Config
	positive tenantcache.Cache
	negative tenantcache.Cache
	store    Store
	codec    codec.Codec[Tenant]
	log      tenantcache.Logger
	hooks    tenantcache.Hooks

	coalesce bool
	flights  singleflight.Group

	negativeInserts atomic.Uint64
}

type Option func(*Service)

func WithCodec(c codec.Codec[Tenant]) Option {
	return func(s *Service) {
		if c != nil {
			s.codec = c
		}
	}
}

func WithLogger(l tenantcache.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithHooks reports payloads that fail to decode as SelfHeal(key, "value_decode").
func WithHooks(h tenantcache.Hooks) Option {
	return func(s *Service) {
		if h != nil {
			s.hooks = h
		}
	}
}

// WithCoalescing collapses concurrent store lookups for the same key into one.
func WithCoalescing(on bool) Option {
	return func(s *Service) { s.coalesce = on }
}

func NewService(cfg Config, positive, negative tenantcache.Cache, store Store, opts ...Option) (*Service, error) {
	switch {
	case positive == nil || negative == nil:
		return nil, errors.New("tenant: positive and negative caches are required")
	case positive.Mode() != tenantcache.Positive:
		return nil, fmt.Errorf("tenant: cache %q is not a positive cache", positive.Name())
	case negative.Mode() != tenantcache.Negative:
		return nil, fmt.Errorf("tenant: cache %q is not a negative cache", negative.Name())
	case store == nil:
		return nil, errors.New("tenant: store is required")
	}

	s := &Service{
		cfg:      cfg,
		positive: positive,
		negative: negative,
		store:    store,
		codec:    codec.JSON[Tenant]{},
		log:      tenantcache.NopLogger{},
		hooks:    tenantcache.NopHooks{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Service) Config() Config { return s.cfg }

// Resolve maps r to a tenant. Errors are *ResolveError values classed as
// ErrBadRequest, ErrNotFound or ErrInternal.
func (s *Service) Resolve(ctx context.Context, r *http.Request) (*Tenant, error) {
	id, err := ResolveIdentifier(r, s.cfg)
	if err != nil {
		return nil, err
	}
	return s.Lookup(ctx, id)
}

// Lookup runs the cache-aside sequence for id: negative cache, positive
// cache, then the store. A cache that fails to answer is treated as a miss.
func (s *Service) Lookup(ctx context.Context, id Identifier) (*Tenant, error) {
	key := id.CacheKey()

	_, known, err := s.negative.Get(ctx, key)
	if err != nil {
		s.log.Warn("negative cache read failed", tenantcache.Fields{"key": key, "err": err})
	}
	if known {
		return nil, &ResolveError{Class: ErrNotFound, Key: key}
	}

	if t, ok := s.cached(ctx, key); ok {
		return t, nil
	}

	if !s.coalesce {
		return s.load(ctx, id, key)
	}
	v, err, shared := s.flights.Do(key, func() (any, error) {
		return s.load(ctx, id, key)
	})
	if err != nil {
		return nil, err
	}
	t := v.(*Tenant)
	if shared {
		t = t.Clone()
	}
	return t, nil
}

func (s *Service) cached(ctx context.Context, key string) (*Tenant, bool) {
	payload, ok, err := s.positive.Get(ctx, key)
	if err != nil {
		s.log.Warn("positive cache read failed", tenantcache.Fields{"key": key, "err": err})
		return nil, false
	}
	if !ok {
		return nil, false
	}

	t, err := s.codec.Decode(payload)
	if err != nil {
		// drop it and fall through to the store
		s.hooks.SelfHeal(tenantcache.StorageKey(s.positive.Name(), key), "value_decode")
		s.log.Warn("cached tenant failed to decode", tenantcache.Fields{"key": key, "err": err})
		if err := s.positive.Invalidate(ctx, key); err != nil {
			s.log.Warn("invalidate after decode failure", tenantcache.Fields{"key": key, "err": err})
		}
		return nil, false
	}
	return &t, true
}

func (s *Service) load(ctx context.Context, id Identifier, key string) (*Tenant, error) {
	rec, err := s.find(ctx, id)
	if err == nil && ctx.Err() != nil {
		// a store that ignores cancellation must not populate either cache
		err = ctx.Err()
	}
	if err != nil {
		s.log.Error("tenant store lookup failed", tenantcache.Fields{"key": key, "err": err})
		return nil, &ResolveError{Class: ErrInternal, Key: key, Err: err}
	}

	if rec == nil {
		if err := s.negative.Set(ctx, key, nil); err != nil {
			s.log.Warn("negative cache write failed", tenantcache.Fields{"key": key, "err": err})
		} else {
			s.negativeInserts.Add(1)
		}
		return nil, &ResolveError{Class: ErrNotFound, Key: key}
	}

	t := FromRecord(rec)
	s.remember(ctx, key, t)
	return t, nil
}

func (s *Service) find(ctx context.Context, id Identifier) (*Record, error) {
	switch id.Kind {
	case KindOpaqueID:
		uid := id.ID
		if uid == uuid.Nil && id.Value != "" {
			parsed, err := uuid.Parse(id.Value)
			if err != nil {
				return nil, err
			}
			uid = parsed
		}
		return s.store.FindByID(ctx, uid)
	case KindSlug:
		return s.store.FindBySlug(ctx, id.Value)
	case KindHost:
		return s.store.FindByHost(ctx, id.Value)
	default:
		return nil, fmt.Errorf("unknown identifier kind %d", id.Kind)
	}
}

// remember writes t to the positive cache. Failures only cost a future
// store round trip, so they are logged and swallowed.
func (s *Service) remember(ctx context.Context, key string, t *Tenant) {
	payload, err := s.codec.Encode(*t)
	if err != nil {
		s.log.Warn("tenant encode failed; not caching", tenantcache.Fields{"key": key, "err": err})
		return
	}
	if err := s.positive.Set(ctx, key, payload); err != nil {
		s.log.Warn("positive cache write failed", tenantcache.Fields{"key": key, "err": err})
	}
}

// Invalidate classifies raw the way a header value is classified and
// purges the key from both caches. Absent keys are not an error.
func (s *Service) Invalidate(ctx context.Context, raw string) error {
	return s.purge(ctx, Classify(raw).CacheKey())
}

// InvalidateHost purges a host key; host is normalized first.
func (s *Service) InvalidateHost(ctx context.Context, host string) error {
	return s.purge(ctx, CacheKey(KindHost, host))
}

func (s *Service) InvalidateID(ctx context.Context, id uuid.UUID) error {
	return s.purge(ctx, OpaqueIdentifier(id).CacheKey())
}

func (s *Service) InvalidateSlug(ctx context.Context, slug string) error {
	return s.purge(ctx, CacheKey(KindSlug, strings.TrimSpace(slug)))
}

// InvalidateTenant purges every key t can be resolved by.
func (s *Service) InvalidateTenant(ctx context.Context, t *Tenant) error {
	if t == nil {
		return nil
	}
	errs := []error{
		s.InvalidateID(ctx, t.ID),
		s.InvalidateSlug(ctx, t.Slug),
	}
	if t.Domain != nil && *t.Domain != "" {
		errs = append(errs, s.InvalidateHost(ctx, *t.Domain))
	}
	return errors.Join(errs...)
}

func (s *Service) purge(ctx context.Context, key string) error {
	err := errors.Join(
		s.positive.Invalidate(ctx, key),
		s.negative.Invalidate(ctx, key),
	)
	if err != nil {
		s.log.Warn("tenant invalidate incomplete", tenantcache.Fields{"key": key, "err": err})
		return err
	}
	s.log.Debug("tenant invalidated", tenantcache.Fields{"key": key})
	return nil
}

func (s *Service) Stats() Stats {
	return Stats{
		Positive:        s.positive.Stats(),
		Negative:        s.negative.Stats(),
		NegativeInserts: s.negativeInserts.Load(),
	}
}

// Close releases both caches.
func (s *Service) Close(ctx context.Context) error {
	return errors.Join(s.positive.Close(ctx), s.negative.Close(ctx))
}
