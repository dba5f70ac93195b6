// Package memory is an in-process LRU provider with per-entry TTL.
// Evictions and Len are exact.
package memory

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	pr "github.com/unkn0wn-root/tenantcache/provider"
)

var ErrClosed = errors.New("memory provider: closed")

type entry struct {
	key       string
	value     []byte
	expiresAt time.Time // zero => no TTL
}

type Provider struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	order    *list.List // front = most recently used
	now      func() time.Time
	closed   bool

	evictions atomic.Uint64
}

var (
	_ pr.Provider  = (*Provider)(nil)
	_ pr.Inspector = (*Provider)(nil)
)

type Config struct {
	Capacity int              // max entries; must be > 0
	Clock    func() time.Time // if nil, time.Now
}

func New(cfg Config) (*Provider, error) {
	if cfg.Capacity <= 0 {
		return nil, errors.New("memory provider: capacity must be positive")
	}
	now := cfg.Clock
	if now == nil {
		now = time.Now
	}
	return &Provider{
		capacity: cfg.Capacity,
		items:    make(map[string]*list.Element, cfg.Capacity),
		order:    list.New(),
		now:      now,
	}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, false, ErrClosed
	}
	elem, ok := p.items[key]
	if !ok {
		return nil, false, nil
	}
	e := elem.Value.(*entry)
	if !e.expiresAt.IsZero() && !p.now().Before(e.expiresAt) {
		p.remove(elem)
		p.evictions.Add(1)
		return nil, false, nil
	}
	p.order.MoveToFront(elem)
	return e.value, true, nil
}

// Set always admits; the least recently used entry makes room when full.
func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false, ErrClosed
	}
	var exp time.Time
	if ttl > 0 {
		exp = p.now().Add(ttl)
	}

	if elem, ok := p.items[key]; ok {
		e := elem.Value.(*entry)
		e.value = value
		e.expiresAt = exp
		p.order.MoveToFront(elem)
		return true, nil
	}

	p.items[key] = p.order.PushFront(&entry{key: key, value: value, expiresAt: exp})
	for p.order.Len() > p.capacity {
		p.remove(p.order.Back())
		p.evictions.Add(1)
	}
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if elem, ok := p.items[key]; ok {
		p.remove(elem)
	}
	return nil
}

func (p *Provider) Close(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	p.items = make(map[string]*list.Element)
	p.order.Init()
	return nil
}

func (p *Provider) Evictions() uint64 { return p.evictions.Load() }

// Len counts entries held, including ones past TTL that were not read yet.
func (p *Provider) Len() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return int64(p.order.Len())
}

// Must be called with lock held.
func (p *Provider) remove(elem *list.Element) {
	p.order.Remove(elem)
	delete(p.items, elem.Value.(*entry).key)
}
