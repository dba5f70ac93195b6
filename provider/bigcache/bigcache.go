package bigcache

import (
	"container/list"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	bc "github.com/allegro/bigcache/v3"

	pr "github.com/unkn0wn-root/tenantcache/provider"
)

// Provider wraps BigCache. BigCache has a single global LifeWindow, so the
// per-call TTL is ignored; tenantcache still enforces it on read.
//
// BigCache only bounds bytes, so MaxEntries is enforced here by dropping
// the oldest inserted key once the bound is reached.
type Provider struct {
	c          *bc.BigCache
	evictions  atomic.Uint64
	maxEntries int

	mu    sync.Mutex // guards order and index; never taken from bigcache callbacks
	order *list.List // front = oldest insert
	index map[string]*list.Element
}

var (
	_ pr.Provider  = (*Provider)(nil)
	_ pr.Inspector = (*Provider)(nil)
)

type Config struct {
	LifeWindow         time.Duration // should be >= the cache TTL
	CleanWindow        time.Duration
	MaxEntriesInWindow int // sizing hint only
	MaxEntries         int // 0 = unbounded
	MaxEntrySize       int
	Shards             int
	HardMaxCacheSizeMB int // ~ memory limit; 0 = unlimited
}

func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.LifeWindow <= 0 {
		return nil, errors.New("bigcache: LifeWindow must be positive")
	}
	conf := bc.DefaultConfig(cfg.LifeWindow)
	conf.Verbose = false
	if cfg.CleanWindow > 0 {
		conf.CleanWindow = cfg.CleanWindow
	}
	if cfg.MaxEntries < 0 {
		return nil, errors.New("bigcache: MaxEntries must not be negative")
	}
	if cfg.MaxEntriesInWindow > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntriesInWindow
	} else if cfg.MaxEntries > 0 {
		conf.MaxEntriesInWindow = cfg.MaxEntries
	}
	if cfg.MaxEntrySize > 0 {
		conf.MaxEntrySize = cfg.MaxEntrySize
	}
	if cfg.Shards > 0 {
		conf.Shards = cfg.Shards
	}
	if cfg.HardMaxCacheSizeMB > 0 {
		conf.HardMaxCacheSize = cfg.HardMaxCacheSizeMB
	}

	p := &Provider{maxEntries: cfg.MaxEntries}
	if p.maxEntries > 0 {
		p.order = list.New()
		p.index = make(map[string]*list.Element, p.maxEntries)
	}
	conf.OnRemoveWithReason = func(_ string, _ []byte, reason bc.RemoveReason) {
		if reason == bc.Expired || reason == bc.NoSpace {
			p.evictions.Add(1)
		}
	}

	c, err := bc.New(ctx, conf)
	if err != nil {
		return nil, err
	}
	p.c = c
	return p, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	b, err := p.c.Get(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, _ time.Duration) (bool, error) {
	if p.maxEntries == 0 {
		if err := p.c.Set(key, value); err != nil {
			return false, err
		}
		return true, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if el, ok := p.index[key]; ok {
		if err := p.c.Set(key, value); err != nil {
			return false, err
		}
		p.order.MoveToBack(el)
		return true, nil
	}
	for len(p.index) >= p.maxEntries {
		p.evictOldest()
	}
	if err := p.c.Set(key, value); err != nil {
		return false, err
	}
	p.index[key] = p.order.PushBack(key)
	return true, nil
}

// evictOldest drops the front of the insert order. A key bigcache already
// expired was counted by the remove callback, so only live drops count here.
func (p *Provider) evictOldest() {
	el := p.order.Front()
	key := p.order.Remove(el).(string)
	delete(p.index, key)
	if err := p.c.Delete(key); err == nil {
		p.evictions.Add(1)
	}
}

func (p *Provider) Del(_ context.Context, key string) error {
	if p.maxEntries > 0 {
		p.mu.Lock()
		if el, ok := p.index[key]; ok {
			p.order.Remove(el)
			delete(p.index, key)
		}
		p.mu.Unlock()
	}
	err := p.c.Delete(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil
	}
	return err
}

func (p *Provider) Close(_ context.Context) error {
	return p.c.Close()
}

func (p *Provider) Evictions() uint64 { return p.evictions.Load() }

func (p *Provider) Len() int64 { return int64(p.c.Len()) }
