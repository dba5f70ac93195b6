package tenantcache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/unkn0wn-root/tenantcache/internal/wire"
	pr "github.com/unkn0wn-root/tenantcache/provider"
)

type memProvider struct {
	mu        sync.Mutex
	m         map[string][]byte
	getErr    error
	setErr    error
	rejectSet bool
	dels      int
}

var _ pr.Provider = (*memProvider)(nil)

func newMemProvider() *memProvider { return &memProvider{m: make(map[string][]byte)} }

func (p *memProvider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.getErr != nil {
		return nil, false, p.getErr
	}
	v, ok := p.m[key]
	return v, ok, nil
}

func (p *memProvider) Set(_ context.Context, key string, value []byte, _ int64, _ time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.setErr != nil {
		return false, p.setErr
	}
	if p.rejectSet {
		return false, nil
	}
	p.m[key] = value
	return true, nil
}

func (p *memProvider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dels++
	delete(p.m, key)
	return nil
}

func (p *memProvider) Close(context.Context) error { return nil }

func (p *memProvider) raw(key string) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.m[key]
	return v, ok
}

func (p *memProvider) put(key string, v []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.m[key] = v
}

type inspectingProvider struct {
	*memProvider
	evictions uint64
}

func (p inspectingProvider) Evictions() uint64 { return p.evictions }
func (p inspectingProvider) Len() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return int64(len(p.m))
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock { return &testClock{t: time.Unix(1_700_000_000, 0)} }

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type recHooks struct {
	mu       sync.Mutex
	heals    []string
	rejected int
	errs     []string
}

func (h *recHooks) SelfHeal(_ string, reason string) {
	h.mu.Lock()
	h.heals = append(h.heals, reason)
	h.mu.Unlock()
}

func (h *recHooks) ProviderSetRejected(string) {
	h.mu.Lock()
	h.rejected++
	h.mu.Unlock()
}

func (h *recHooks) ProviderError(op, _ string, _ error) {
	h.mu.Lock()
	h.errs = append(h.errs, op)
	h.mu.Unlock()
}

func newTestCache(t *testing.T, p pr.Provider, clk *testClock, optsOpt func(*Options)) Cache {
	t.Helper()
	opts := Options{
		Name:     "tenant:positive",
		Provider: p,
		Clock:    clk.Now,
	}
	if optsOpt != nil {
		optsOpt(&opts)
	}
	cc, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return cc
}

func TestNewValidatesOptions(t *testing.T) {
	if _, err := New(Options{Name: "x"}); err == nil {
		t.Fatalf("expected error for missing provider")
	}
	if _, err := New(Options{Provider: newMemProvider()}); err == nil {
		t.Fatalf("expected error for missing name")
	}
	if _, err := New(Options{Name: "x", Provider: newMemProvider(), TTL: -time.Second}); err == nil {
		t.Fatalf("expected error for negative ttl")
	}
	if _, err := New(Options{Name: "x", Provider: newMemProvider(), Mode: Mode(7)}); err == nil {
		t.Fatalf("expected error for unknown mode")
	}
}

func TestDefaultTTLByMode(t *testing.T) {
	clk := newTestClock()
	pos := newTestCache(t, newMemProvider(), clk, nil)
	neg := newTestCache(t, newMemProvider(), clk, func(o *Options) { o.Mode = Negative })

	if got := pos.(*cache).ttl; got != DefaultPositiveTTL {
		t.Fatalf("positive ttl: got %v want %v", got, DefaultPositiveTTL)
	}
	if got := neg.(*cache).ttl; got != DefaultNegativeTTL {
		t.Fatalf("negative ttl: got %v want %v", got, DefaultNegativeTTL)
	}
}

func TestSetGetInvalidate(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	cc := newTestCache(t, mp, newTestClock(), nil)

	if err := cc.Set(ctx, "slug:acme", []byte(`{"slug":"acme"}`)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok := mp.raw("tenant:positive:slug:acme"); !ok {
		t.Fatalf("expected entry under namespaced storage key")
	}

	got, ok, err := cc.Get(ctx, "slug:acme")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if string(got) != `{"slug":"acme"}` {
		t.Fatalf("payload mismatch: %s", got)
	}

	if err := cc.Invalidate(ctx, "slug:acme"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, ok, _ := cc.Get(ctx, "slug:acme"); ok {
		t.Fatalf("expected miss after invalidate")
	}
	// invalidating an absent key is fine
	if err := cc.Invalidate(ctx, "slug:acme"); err != nil {
		t.Fatalf("second Invalidate: %v", err)
	}

	st := cc.Stats()
	if st.Hits != 1 || st.Misses != 1 {
		t.Fatalf("stats: %+v", st)
	}
}

func TestPayloadShapeEnforcedOnSet(t *testing.T) {
	ctx := context.Background()
	clk := newTestClock()
	pos := newTestCache(t, newMemProvider(), clk, nil)
	neg := newTestCache(t, newMemProvider(), clk, func(o *Options) { o.Mode = Negative })

	if err := pos.Set(ctx, "k", nil); !errors.Is(err, ErrEmptyPayload) {
		t.Fatalf("positive Set(empty): got %v", err)
	}
	if err := neg.Set(ctx, "k", []byte("x")); !errors.Is(err, ErrMarkerPayload) {
		t.Fatalf("negative Set(non-empty): got %v", err)
	}
}

func TestNegativeMarkerRoundTrip(t *testing.T) {
	ctx := context.Background()
	cc := newTestCache(t, newMemProvider(), newTestClock(), func(o *Options) {
		o.Name = "tenant:negative"
		o.Mode = Negative
	})

	if err := cc.Set(ctx, "host:ghost.example", nil); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, ok, err := cc.Get(ctx, "host:ghost.example")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil marker, got %v", got)
	}
}

func TestLazyExpiryCountsEviction(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	clk := newTestClock()
	cc := newTestCache(t, mp, clk, func(o *Options) { o.TTL = time.Minute })

	if err := cc.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}

	clk.Advance(time.Minute - time.Nanosecond)
	if _, ok, _ := cc.Get(ctx, "k"); !ok {
		t.Fatalf("expected hit just before ttl")
	}

	clk.Advance(time.Nanosecond)
	if _, ok, _ := cc.Get(ctx, "k"); ok {
		t.Fatalf("expected miss at ttl even though provider still holds the entry")
	}
	if _, still := mp.raw("tenant:positive:k"); still {
		t.Fatalf("expired entry should be deleted from provider")
	}

	st := cc.Stats()
	if st.Hits != 1 || st.Misses != 1 || st.Evictions != 1 {
		t.Fatalf("stats after expiry: %+v", st)
	}
}

func TestCorruptEntrySelfHeals(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	hooks := &recHooks{}
	cc := newTestCache(t, mp, newTestClock(), func(o *Options) { o.Hooks = hooks })

	mp.put("tenant:positive:k", []byte("garbage"))
	if _, ok, err := cc.Get(ctx, "k"); ok || err != nil {
		t.Fatalf("corrupt entry: ok=%v err=%v", ok, err)
	}
	if _, still := mp.raw("tenant:positive:k"); still {
		t.Fatalf("corrupt entry should be deleted")
	}
	if len(hooks.heals) != 1 || hooks.heals[0] != "corrupt" {
		t.Fatalf("hooks: %v", hooks.heals)
	}

	// cache is usable again
	if err := cc.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok, _ := cc.Get(ctx, "k"); !ok {
		t.Fatalf("expected hit after repair")
	}
}

func TestModeMismatchSelfHeals(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	hooks := &recHooks{}
	clk := newTestClock()
	cc := newTestCache(t, mp, clk, func(o *Options) { o.Hooks = hooks })

	neg := wire.Encode(wire.Entry{Mode: wire.ModeNegative, InsertedAt: clk.Now(), TTL: time.Minute})
	mp.put("tenant:positive:k", neg)

	if _, ok, _ := cc.Get(ctx, "k"); ok {
		t.Fatalf("negative envelope must not hit a positive cache")
	}
	if len(hooks.heals) != 1 || hooks.heals[0] != "mode_mismatch" {
		t.Fatalf("hooks: %v", hooks.heals)
	}
}

func TestEntryWithoutTTLSelfHeals(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	hooks := &recHooks{}
	clk := newTestClock()
	cc := newTestCache(t, mp, clk, func(o *Options) { o.Hooks = hooks })

	forever := wire.Encode(wire.Entry{Mode: wire.ModePositive, InsertedAt: clk.Now(), Payload: []byte("v")})
	mp.put("tenant:positive:k", forever)

	if _, ok, err := cc.Get(ctx, "k"); ok || err != nil {
		t.Fatalf("entry without ttl: ok=%v err=%v", ok, err)
	}
	if _, still := mp.raw("tenant:positive:k"); still {
		t.Fatalf("entry without ttl should be deleted")
	}
	if len(hooks.heals) != 1 || hooks.heals[0] != "corrupt" {
		t.Fatalf("hooks: %v", hooks.heals)
	}
}

func TestProviderGetErrorIsMissWithError(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	mp.getErr = errors.New("boom")
	hooks := &recHooks{}
	cc := newTestCache(t, mp, newTestClock(), func(o *Options) { o.Hooks = hooks })

	_, ok, err := cc.Get(ctx, "k")
	if ok {
		t.Fatalf("expected miss on provider error")
	}
	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Op != "get" || pe.Key != "k" {
		t.Fatalf("expected *ProviderError{get,k}, got %v", err)
	}
	if cc.Stats().Misses != 1 {
		t.Fatalf("provider error should count as miss")
	}
	if len(hooks.errs) != 1 || hooks.errs[0] != "get" {
		t.Fatalf("hooks: %v", hooks.errs)
	}
}

func TestProviderSetErrorAndRejection(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	hooks := &recHooks{}
	cc := newTestCache(t, mp, newTestClock(), func(o *Options) { o.Hooks = hooks })

	mp.setErr = errors.New("down")
	if err := cc.Set(ctx, "k", []byte("v")); err == nil {
		t.Fatalf("expected set error")
	}

	mp.setErr = nil
	mp.rejectSet = true
	if err := cc.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("rejected set should not error: %v", err)
	}
	if hooks.rejected != 1 {
		t.Fatalf("expected one rejection hook, got %d", hooks.rejected)
	}
}

func TestDisabledCacheIsInert(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	cc := newTestCache(t, mp, newTestClock(), func(o *Options) { o.Disabled = true })

	if err := cc.Set(ctx, "k", []byte("v")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok, _ := cc.Get(ctx, "k"); ok {
		t.Fatalf("disabled cache should never hit")
	}
	if len(mp.m) != 0 {
		t.Fatalf("disabled cache wrote to provider")
	}
	if cc.Enabled() {
		t.Fatalf("Enabled should be false")
	}
}

func TestStatsMergeProviderInspector(t *testing.T) {
	ctx := context.Background()
	ip := inspectingProvider{memProvider: newMemProvider(), evictions: 3}
	clk := newTestClock()
	cc := newTestCache(t, ip, clk, func(o *Options) { o.TTL = time.Second })

	_ = cc.Set(ctx, "a", []byte("1"))
	_ = cc.Set(ctx, "b", []byte("2"))
	clk.Advance(time.Second)
	_, _, _ = cc.Get(ctx, "a") // lazy expiry

	st := cc.Stats()
	if st.Entries != 1 {
		t.Fatalf("entries: got %d want 1", st.Entries)
	}
	if st.Evictions != 4 {
		t.Fatalf("evictions: got %d want 4 (3 provider + 1 lazy)", st.Evictions)
	}
}

func TestConcurrentGetSetKeepsCounters(t *testing.T) {
	ctx := context.Background()
	cc := newTestCache(t, newMemProvider(), newTestClock(), nil)
	_ = cc.Set(ctx, "k", []byte("v"))

	const workers, iters = 8, 100
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < iters; i++ {
				_, _, _ = cc.Get(ctx, "k")
				_, _, _ = cc.Get(ctx, "absent")
			}
		}()
	}
	wg.Wait()

	st := cc.Stats()
	if st.Hits != workers*iters || st.Misses != workers*iters {
		t.Fatalf("stats: %+v", st)
	}
}

func TestMultiHooksFanOut(t *testing.T) {
	a, b := &recHooks{}, &recHooks{}
	m := MultiHooks{a, b}
	m.SelfHeal("k", "corrupt")
	m.ProviderSetRejected("k")
	m.ProviderError("del", "k", errors.New("x"))

	for _, h := range []*recHooks{a, b} {
		if len(h.heals) != 1 || h.rejected != 1 || len(h.errs) != 1 {
			t.Fatalf("hook did not receive all events: %+v", h)
		}
	}
}
