package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newProvider(t *testing.T, capacity int) (*Provider, *fakeClock) {
	t.Helper()
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	p, err := New(Config{Capacity: capacity, Clock: clk.Now})
	require.NoError(t, err)
	return p, clk
}

func TestNewRejectsNonPositiveCapacity(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	assert.Error(t, err)
}

func TestSetGetDel(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p, _ := newProvider(t, 4)

	ok, err := p.Set(ctx, "k", []byte("v"), 1, 0)
	require.NoError(t, err)
	assert.True(t, ok)

	got, hit, err := p.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []byte("v"), got)

	require.NoError(t, p.Del(ctx, "k"))
	_, hit, err = p.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, uint64(0), p.Evictions(), "explicit deletes are not evictions")
}

func TestTTLExpiryCountsEviction(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p, clk := newProvider(t, 4)

	_, err := p.Set(ctx, "k", []byte("v"), 1, time.Minute)
	require.NoError(t, err)

	clk.Advance(59 * time.Second)
	_, hit, _ := p.Get(ctx, "k")
	assert.True(t, hit)

	clk.Advance(time.Second)
	_, hit, _ = p.Get(ctx, "k")
	assert.False(t, hit)
	assert.Equal(t, uint64(1), p.Evictions())
	assert.Equal(t, int64(0), p.Len())
}

func TestLRUEvictionAtCapacity(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p, _ := newProvider(t, 2)

	_, _ = p.Set(ctx, "a", []byte("1"), 1, 0)
	_, _ = p.Set(ctx, "b", []byte("2"), 1, 0)
	// touch a so b becomes least recently used
	_, _, _ = p.Get(ctx, "a")
	_, _ = p.Set(ctx, "c", []byte("3"), 1, 0)

	_, hitA, _ := p.Get(ctx, "a")
	_, hitB, _ := p.Get(ctx, "b")
	_, hitC, _ := p.Get(ctx, "c")
	assert.True(t, hitA)
	assert.False(t, hitB)
	assert.True(t, hitC)
	assert.Equal(t, uint64(1), p.Evictions())
	assert.Equal(t, int64(2), p.Len())
}

func TestOverwriteKeepsSingleEntry(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p, _ := newProvider(t, 2)

	_, _ = p.Set(ctx, "k", []byte("old"), 1, 0)
	_, _ = p.Set(ctx, "k", []byte("new"), 1, 0)

	got, _, _ := p.Get(ctx, "k")
	assert.Equal(t, []byte("new"), got)
	assert.Equal(t, int64(1), p.Len())
}

func TestClosedProviderErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p, _ := newProvider(t, 2)

	require.NoError(t, p.Close(ctx))
	_, _, err := p.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrClosed)
	_, err = p.Set(ctx, "k", []byte("v"), 1, 0)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestConcurrentAccessStaysBounded(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	p, _ := newProvider(t, 16)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k-%d-%d", w, i%32)
				_, _ = p.Set(ctx, key, []byte("v"), 1, 0)
				_, _, _ = p.Get(ctx, key)
			}
		}(w)
	}
	wg.Wait()

	assert.LessOrEqual(t, p.Len(), int64(16))
}
