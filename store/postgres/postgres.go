// Package postgres is the authoritative tenant store backed by a tenants table.
//
//	CREATE TABLE tenants (
//	    id         uuid PRIMARY KEY,
//	    name       text NOT NULL,
//	    slug       text NOT NULL UNIQUE,
//	    domain     text UNIQUE,
//	    settings   jsonb NOT NULL DEFAULT '{}',
//	    is_active  boolean NOT NULL DEFAULT true,
//	    created_at timestamptz NOT NULL DEFAULT now(),
//	    updated_at timestamptz NOT NULL DEFAULT now()
//	);
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/unkn0wn-root/tenantcache/tenant"
)

// Querier is the subset of *pgxpool.Pool and pgx.Tx the store needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	db    Querier
	table string
}

var _ tenant.Store = (*Store)(nil)

type Option func(*Store)

// WithTable overrides the table name ("tenants").
func WithTable(name string) Option {
	return func(s *Store) {
		if name != "" {
			s.table = name
		}
	}
}

func New(db Querier, opts ...Option) *Store {
	s := &Store{db: db, table: "tenants"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) FindByID(ctx context.Context, id uuid.UUID) (*tenant.Record, error) {
	return s.findOne(ctx, "id = $1", id)
}

func (s *Store) FindBySlug(ctx context.Context, slug string) (*tenant.Record, error) {
	return s.findOne(ctx, "slug = $1", slug)
}

// FindByHost expects a normalized host; stored domains are compared lowercased.
func (s *Store) FindByHost(ctx context.Context, host string) (*tenant.Record, error) {
	return s.findOne(ctx, "lower(domain) = $1", host)
}

func (s *Store) findOne(ctx context.Context, where string, arg any) (*tenant.Record, error) {
	q := fmt.Sprintf(`SELECT id, name, slug, domain, settings, is_active, created_at, updated_at
		FROM %s WHERE %s LIMIT 1`, pgx.Identifier{s.table}.Sanitize(), where)

	var (
		rec      tenant.Record
		settings []byte
	)
	err := s.db.QueryRow(ctx, q, arg).Scan(
		&rec.ID, &rec.Name, &rec.Slug, &rec.Domain, &settings,
		&rec.IsActive, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: query tenant: %w", err)
	}

	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &rec.Settings); err != nil {
			return nil, fmt.Errorf("postgres: decode settings for %s: %w", rec.ID, err)
		}
	}
	return &rec, nil
}
