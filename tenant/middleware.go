package tenant

import (
	"net/http"
	"strings"

	"github.com/unkn0wn-root/tenantcache"
)

// ErrorHandler writes the response for a failed resolution.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

type middlewareConfig struct {
	errorHandler  ErrorHandler
	skipPaths     []string
	requireActive bool
	log           tenantcache.Logger
}

type MiddlewareOption func(*middlewareConfig)

func WithErrorHandler(h ErrorHandler) MiddlewareOption {
	return func(c *middlewareConfig) {
		if h != nil {
			c.errorHandler = h
		}
	}
}

// WithSkipPaths lets requests whose path starts with any prefix through
// without a tenant.
func WithSkipPaths(prefixes ...string) MiddlewareOption {
	return func(c *middlewareConfig) {
		c.skipPaths = append(c.skipPaths, prefixes...)
	}
}

// WithRequireActive rejects inactive tenants with ErrInactive (403).
func WithRequireActive(require bool) MiddlewareOption {
	return func(c *middlewareConfig) { c.requireActive = require }
}

func WithMiddlewareLogger(l tenantcache.Logger) MiddlewareOption {
	return func(c *middlewareConfig) {
		if l != nil {
			c.log = l
		}
	}
}

// Middleware resolves the tenant for every request and stores it in the
// request context. Failures are answered by the error handler.
func Middleware(svc *Service, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := &middlewareConfig{
		errorHandler: DefaultErrorHandler,
		log:          tenantcache.NopLogger{},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, skip := range cfg.skipPaths {
				if strings.HasPrefix(r.URL.Path, skip) {
					next.ServeHTTP(w, r)
					return
				}
			}

			t, err := svc.Resolve(r.Context(), r)
			if err != nil {
				if StatusCode(err) >= http.StatusInternalServerError {
					cfg.log.Error("tenant resolution failed", tenantcache.Fields{"path": r.URL.Path, "err": err})
				}
				cfg.errorHandler(w, r, err)
				return
			}
			if cfg.requireActive && !t.IsActive {
				cfg.errorHandler(w, r, &ResolveError{Class: ErrInactive, Key: t.ID.String()})
				return
			}

			next.ServeHTTP(w, r.WithContext(WithTenant(r.Context(), t)))
		})
	}
}

// RequireTenant guards routes mounted outside Middleware's skip list.
func RequireTenant(errorHandler ErrorHandler) func(http.Handler) http.Handler {
	if errorHandler == nil {
		errorHandler = DefaultErrorHandler
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := FromContext(r.Context()); !ok {
				errorHandler(w, r, ErrNoTenantInContext)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// DefaultErrorHandler answers with the status from StatusCode and a
// generic body. Internal details never reach the client.
func DefaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	code := StatusCode(err)
	switch code {
	case http.StatusBadRequest:
		http.Error(w, "Invalid tenant identifier", code)
	case http.StatusNotFound:
		http.Error(w, "Tenant not found", code)
	case http.StatusForbidden:
		http.Error(w, "Tenant is inactive", code)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
