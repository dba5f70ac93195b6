package tenant

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type contextKey struct{}

func WithTenant(ctx context.Context, t *Tenant) context.Context {
	return context.WithValue(ctx, contextKey{}, t)
}

// FromContext returns nil, false when no tenant was attached.
func FromContext(ctx context.Context) (*Tenant, bool) {
	t, ok := ctx.Value(contextKey{}).(*Tenant)
	return t, ok && t != nil
}

func IDFromContext(ctx context.Context) (uuid.UUID, bool) {
	t, ok := FromContext(ctx)
	if !ok {
		return uuid.Nil, false
	}
	return t.ID, true
}

// MustFromContext panics without a tenant. Only for handlers mounted
// behind Middleware.
func MustFromContext(ctx context.Context) *Tenant {
	t, ok := FromContext(ctx)
	if !ok {
		panic(ErrNoTenantInContext)
	}
	return t
}

// LoggerExtractor yields a tenant_id slog attribute when a tenant is present.
func LoggerExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		if id, ok := IDFromContext(ctx); ok {
			return slog.String("tenant_id", id.String()), true
		}
		return slog.Attr{}, false
	}
}

// ZapFields returns tenant_id and tenant_slug fields, or nil.
func ZapFields(ctx context.Context) []zap.Field {
	t, ok := FromContext(ctx)
	if !ok {
		return nil
	}
	return []zap.Field{
		zap.Stringer("tenant_id", t.ID),
		zap.String("tenant_slug", t.Slug),
	}
}
