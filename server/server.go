// Package server wires the tenant middleware and the admin endpoints into
// a chi router.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	zaplog "github.com/unkn0wn-root/tenantcache/log/zap"
	"github.com/unkn0wn-root/tenantcache/tenant"
)

type Options struct {
	Service       *tenant.Service
	Logger        *zap.Logger
	AdminToken    string // empty disables /admin
	RequireActive bool

	Metrics http.Handler                // nil => no /metrics
	Health  func(context.Context) error // nil => always healthy
	App     http.Handler                // served behind the tenant middleware
}

type server struct {
	svc    *tenant.Service
	log    *zap.Logger
	health func(context.Context) error
}

func NewRouter(opts Options) http.Handler {
	s := &server{svc: opts.Service, log: opts.Logger, health: opts.Health}
	if s.log == nil {
		s.log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, s.accessLog)

	r.Get("/healthz", s.healthz)
	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/admin/tenants/cache", func(ar chi.Router) {
		ar.Use(adminAuth(opts.AdminToken))
		ar.Get("/stats", s.stats)
		ar.Post("/invalidate", s.invalidate)
	})

	r.Group(func(tr chi.Router) {
		tr.Use(tenant.Middleware(opts.Service,
			tenant.WithRequireActive(opts.RequireActive),
			tenant.WithMiddlewareLogger(zaplog.New(s.log)),
		))
		tr.Get("/whoami", s.whoami)
		if opts.App != nil {
			tr.Handle("/*", opts.App)
		}
	})

	return r
}

func (s *server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *server) healthz(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			s.log.Warn("health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) whoami(w http.ResponseWriter, r *http.Request) {
	t := tenant.MustFromContext(r.Context())
	s.log.Debug("whoami", tenant.ZapFields(r.Context())...)
	writeJSON(w, http.StatusOK, t)
}

func (s *server) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Stats())
}

type invalidateRequest struct {
	Identifier string `json:"identifier,omitempty"` // classified like the tenant header
	ID         string `json:"id,omitempty"`
	Slug       string `json:"slug,omitempty"`
	Host       string `json:"host,omitempty"`
}

var errEmptyInvalidate = errors.New("one of identifier, id, slug or host is required")

func (s *server) invalidate(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json body"})
		return
	}

	// validate every field before purging anything
	var purges []func(context.Context) error
	if v := strings.TrimSpace(req.Identifier); v != "" {
		purges = append(purges, func(ctx context.Context) error { return s.svc.Invalidate(ctx, v) })
	}
	if v := strings.TrimSpace(req.ID); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "id is not a uuid"})
			return
		}
		purges = append(purges, func(ctx context.Context) error { return s.svc.InvalidateID(ctx, id) })
	}
	if v := strings.TrimSpace(req.Slug); v != "" {
		purges = append(purges, func(ctx context.Context) error { return s.svc.InvalidateSlug(ctx, v) })
	}
	if v := strings.TrimSpace(req.Host); v != "" {
		purges = append(purges, func(ctx context.Context) error { return s.svc.InvalidateHost(ctx, v) })
	}

	if len(purges) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": errEmptyInvalidate.Error()})
		return
	}

	var errs []error
	for _, purge := range purges {
		errs = append(errs, purge(r.Context()))
	}
	if err := errors.Join(errs...); err != nil {
		s.log.Error("tenant cache invalidate failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "invalidate failed"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// adminAuth expects "Authorization: Bearer <token>". Without a configured
// token the admin routes do not exist.
func adminAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				http.NotFound(w, r)
				return
			}
			got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
