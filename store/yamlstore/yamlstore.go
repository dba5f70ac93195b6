// Package yamlstore serves tenants from a YAML file. Handy for local runs
// and single-tenant deployments without a database.
//
//	tenants:
//	  - id: 11111111-1111-1111-1111-111111111111
//	    name: Acme
//	    slug: acme
//	    domain: acme.example
//	    active: true
//	    settings:
//	      theme: dark
package yamlstore

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/tenantcache/tenant"
)

type fileTenant struct {
	ID       string         `yaml:"id"`
	Name     string         `yaml:"name"`
	Slug     string         `yaml:"slug"`
	Domain   string         `yaml:"domain,omitempty"`
	Active   *bool          `yaml:"active,omitempty"` // nil => true
	Settings map[string]any `yaml:"settings,omitempty"`
}

type file struct {
	Tenants []fileTenant `yaml:"tenants"`
}

type index struct {
	byID   map[uuid.UUID]*tenant.Record
	bySlug map[string]*tenant.Record
	byHost map[string]*tenant.Record
}

type Store struct {
	path string

	mu  sync.RWMutex
	idx index
}

var _ tenant.Store = (*Store)(nil)

// Open loads path. Call Reload to pick up edits.
func Open(path string) (*Store, error) {
	s := &Store{path: path}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Parse builds an in-memory store from YAML bytes.
func Parse(b []byte) (*Store, error) {
	idx, err := build(b)
	if err != nil {
		return nil, err
	}
	return &Store{idx: idx}, nil
}

// Reload re-reads the file. On error the previous contents stay in place.
func (s *Store) Reload() error {
	if s.path == "" {
		return nil
	}
	b, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("yamlstore: read %s: %w", s.path, err)
	}
	idx, err := build(b)
	if err != nil {
		return fmt.Errorf("yamlstore: %s: %w", s.path, err)
	}
	s.mu.Lock()
	s.idx = idx
	s.mu.Unlock()
	return nil
}

func build(b []byte) (index, error) {
	var f file
	if err := yaml.Unmarshal(b, &f); err != nil {
		return index{}, err
	}

	idx := index{
		byID:   make(map[uuid.UUID]*tenant.Record, len(f.Tenants)),
		bySlug: make(map[string]*tenant.Record, len(f.Tenants)),
		byHost: make(map[string]*tenant.Record, len(f.Tenants)),
	}
	for i, ft := range f.Tenants {
		id, err := uuid.Parse(ft.ID)
		if err != nil {
			return index{}, fmt.Errorf("tenant #%d: bad id %q: %w", i, ft.ID, err)
		}
		if ft.Slug == "" {
			return index{}, fmt.Errorf("tenant %s: slug is required", id)
		}
		if _, dup := idx.byID[id]; dup {
			return index{}, fmt.Errorf("tenant %s: duplicate id", id)
		}
		if _, dup := idx.bySlug[ft.Slug]; dup {
			return index{}, fmt.Errorf("tenant %s: duplicate slug %q", id, ft.Slug)
		}

		rec := &tenant.Record{
			ID:       id,
			Name:     ft.Name,
			Slug:     ft.Slug,
			Settings: ft.Settings,
			IsActive: ft.Active == nil || *ft.Active,
		}
		if ft.Domain != "" {
			host := tenant.NormalizeHost(ft.Domain)
			if _, dup := idx.byHost[host]; dup {
				return index{}, fmt.Errorf("tenant %s: duplicate domain %q", id, host)
			}
			rec.Domain = &host
			idx.byHost[host] = rec
		}
		idx.byID[id] = rec
		idx.bySlug[ft.Slug] = rec
	}
	return idx, nil
}

func (s *Store) FindByID(ctx context.Context, id uuid.UUID) (*tenant.Record, error) {
	return s.find(ctx, func(idx index) *tenant.Record { return idx.byID[id] })
}

func (s *Store) FindBySlug(ctx context.Context, slug string) (*tenant.Record, error) {
	return s.find(ctx, func(idx index) *tenant.Record { return idx.bySlug[slug] })
}

func (s *Store) FindByHost(ctx context.Context, host string) (*tenant.Record, error) {
	return s.find(ctx, func(idx index) *tenant.Record { return idx.byHost[host] })
}

// find hands out copies so callers cannot mutate the index.
func (s *Store) find(ctx context.Context, pick func(index) *tenant.Record) (*tenant.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	rec := pick(s.idx)
	s.mu.RUnlock()
	if rec == nil {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}
