package tenant

import (
	"context"
	"maps"
	"time"

	"github.com/google/uuid"
)

// Tenant is the cached, request-scoped view of a tenant. Treat it as
// immutable once resolved; the cached bytes are the source of truth.
type Tenant struct {
	ID       uuid.UUID      `json:"id"`
	Name     string         `json:"name"`
	Slug     string         `json:"slug"`
	Domain   *string        `json:"domain"`
	Settings map[string]any `json:"settings"`
	IsActive bool           `json:"is_active"`
}

// Clone copies t so callers sharing one lookup result cannot affect each
// other. Settings is copied one level deep.
func (t *Tenant) Clone() *Tenant {
	if t == nil {
		return nil
	}
	c := *t
	if t.Domain != nil {
		d := *t.Domain
		c.Domain = &d
	}
	if t.Settings != nil {
		c.Settings = maps.Clone(t.Settings)
	}
	return &c
}

// Record is a tenant row as the backing store returns it.
type Record struct {
	ID        uuid.UUID
	Name      string
	Slug      string
	Domain    *string
	Settings  map[string]any
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FromRecord keeps the fields worth caching.
func FromRecord(rec *Record) *Tenant {
	if rec == nil {
		return nil
	}
	t := &Tenant{
		ID:       rec.ID,
		Name:     rec.Name,
		Slug:     rec.Slug,
		Settings: rec.Settings,
		IsActive: rec.IsActive,
	}
	if rec.Domain != nil {
		d := *rec.Domain
		t.Domain = &d
	}
	return t
}

// Store is the authoritative tenant lookup. Each method returns (nil, nil)
// when no tenant matches; any error means the answer is unknown.
type Store interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Record, error)
	FindBySlug(ctx context.Context, slug string) (*Record, error)
	// FindByHost receives a normalized host and matches the domain column.
	FindByHost(ctx context.Context, host string) (*Record, error)
}
