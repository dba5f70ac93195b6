package tenant

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/tenantcache"
	"github.com/unkn0wn-root/tenantcache/provider/memory"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) FindByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	args := m.Called(ctx, id)
	rec, _ := args.Get(0).(*Record)
	return rec, args.Error(1)
}

func (m *mockStore) FindBySlug(ctx context.Context, slug string) (*Record, error) {
	args := m.Called(ctx, slug)
	rec, _ := args.Get(0).(*Record)
	return rec, args.Error(1)
}

func (m *mockStore) FindByHost(ctx context.Context, host string) (*Record, error) {
	args := m.Called(ctx, host)
	rec, _ := args.Get(0).(*Record)
	return rec, args.Error(1)
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

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

type harness struct {
	svc      *Service
	store    *mockStore
	posProv  *memory.Provider
	negProv  *memory.Provider
	positive tenantcache.Cache
	negative tenantcache.Cache
	clock    *testClock
}

func newHarness(t *testing.T, cfg Config, opts ...Option) *harness {
	t.Helper()
	clk := &testClock{t: time.Unix(1_700_000_000, 0)}

	posProv, err := memory.New(memory.Config{Capacity: tenantcache.DefaultCapacity, Clock: clk.Now})
	require.NoError(t, err)
	negProv, err := memory.New(memory.Config{Capacity: tenantcache.DefaultCapacity, Clock: clk.Now})
	require.NoError(t, err)

	positive, err := tenantcache.New(tenantcache.Options{
		Name:     "tenant:positive",
		Mode:     tenantcache.Positive,
		Provider: posProv,
		Clock:    clk.Now,
	})
	require.NoError(t, err)
	negative, err := tenantcache.New(tenantcache.Options{
		Name:     "tenant:negative",
		Mode:     tenantcache.Negative,
		Provider: negProv,
		Clock:    clk.Now,
	})
	require.NoError(t, err)

	store := &mockStore{}
	svc, err := NewService(cfg, positive, negative, store, opts...)
	require.NoError(t, err)

	return &harness{
		svc:      svc,
		store:    store,
		posProv:  posProv,
		negProv:  negProv,
		positive: positive,
		negative: negative,
		clock:    clk,
	}
}

func headerConfig() Config {
	return Config{Enabled: true, Resolution: ModeHeader, HeaderName: DefaultHeaderName}
}

func hostConfig() Config {
	return Config{Enabled: true, Resolution: ModeHost}
}

func strPtr(s string) *string { return &s }

func acmeRecord() *Record {
	return &Record{
		ID:       uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		Name:     "Acme",
		Slug:     "acme",
		Domain:   strPtr("acme.example"),
		Settings: map[string]any{"theme": "dark", "beta": true},
		IsActive: true,
	}
}

func newRequest(headers map[string]string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	return r
}
