// Package app assembles tenantd from a config.Config: logger, cache
// providers, tenant store, service, metrics and the HTTP handler.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"

	"github.com/unkn0wn-root/tenantcache"
	"github.com/unkn0wn-root/tenantcache/config"
	asynchook "github.com/unkn0wn-root/tenantcache/hooks/async"
	logruslog "github.com/unkn0wn-root/tenantcache/log/logrus"
	slogadapter "github.com/unkn0wn-root/tenantcache/log/slog"
	zaplog "github.com/unkn0wn-root/tenantcache/log/zap"
	"github.com/unkn0wn-root/tenantcache/metrics"
	"github.com/unkn0wn-root/tenantcache/provider"
	bcp "github.com/unkn0wn-root/tenantcache/provider/bigcache"
	"github.com/unkn0wn-root/tenantcache/provider/memory"
	rp "github.com/unkn0wn-root/tenantcache/provider/redis"
	ristrettop "github.com/unkn0wn-root/tenantcache/provider/ristretto"
	"github.com/unkn0wn-root/tenantcache/server"
	"github.com/unkn0wn-root/tenantcache/sloghooks"
	"github.com/unkn0wn-root/tenantcache/store/postgres"
	"github.com/unkn0wn-root/tenantcache/store/yamlstore"
	"github.com/unkn0wn-root/tenantcache/tenant"
)

const metricsNamespace = "tenantd"

var ErrUnknownLogBackend = errors.New("app: unknown log backend")

type App struct {
	Config   config.Config
	Log      *zap.Logger
	Service  *tenant.Service
	Registry *prometheus.Registry

	store   tenant.Store
	pingers []provider.Pinger
	closers []func(context.Context) error
	hooks   *asynchook.Hooks
}

type Option func(*App)

// WithStore skips building the store from config.
func WithStore(s tenant.Store) Option {
	return func(a *App) { a.store = s }
}

func WithZap(l *zap.Logger) Option {
	return func(a *App) {
		if l != nil {
			a.Log = l
		}
	}
}

// New builds everything. On error the parts already opened are closed.
func New(ctx context.Context, cfg config.Config, opts ...Option) (_ *App, err error) {
	a := &App{Config: cfg, Registry: prometheus.NewRegistry()}
	for _, opt := range opts {
		opt(a)
	}
	defer func() {
		if err != nil {
			_ = a.Close(context.WithoutCancel(ctx))
		}
	}()

	if a.Log == nil {
		if a.Log, err = NewZap(cfg.Log); err != nil {
			return nil, err
		}
	}
	cacheLog, err := a.cacheLogger()
	if err != nil {
		return nil, err
	}

	metricHooks := metrics.NewHooks(metricsNamespace)
	a.hooks = asynchook.New(sloghooks.New(newSlog(cfg.Log), sloghooks.Options{}), 1, 1024)
	hooks := tenantcache.MultiHooks{metricHooks, a.hooks}

	posProv, negProv, err := a.providers(ctx)
	if err != nil {
		return nil, err
	}

	prefix := cfg.Cache.KeyPrefix
	positive, err := tenantcache.New(tenantcache.Options{
		Name:     prefix + ":positive",
		Mode:     tenantcache.Positive,
		Provider: posProv,
		TTL:      cfg.Cache.TTL,
		Logger:   cacheLog,
		Hooks:    hooks,
	})
	if err != nil {
		_ = posProv.Close(ctx)
		_ = negProv.Close(ctx)
		return nil, fmt.Errorf("app: positive cache: %w", err)
	}
	negative, err := tenantcache.New(tenantcache.Options{
		Name:     prefix + ":negative",
		Mode:     tenantcache.Negative,
		Provider: negProv,
		TTL:      cfg.Cache.NegativeTTL,
		Logger:   cacheLog,
		Hooks:    hooks,
	})
	if err != nil {
		_ = positive.Close(ctx)
		_ = negProv.Close(ctx)
		return nil, fmt.Errorf("app: negative cache: %w", err)
	}
	// providers are closed through the caches from here on
	a.closers = append(a.closers, positive.Close, negative.Close)

	if a.store == nil {
		if a.store, err = a.openStore(ctx); err != nil {
			return nil, err
		}
	}

	codec, err := tenant.NewCodec(cfg.Cache.Codec, cfg.Cache.MaxPayload)
	if err != nil {
		return nil, err
	}

	a.Service, err = tenant.NewService(cfg.TenantConfig(), positive, negative, a.store,
		tenant.WithCodec(codec),
		tenant.WithLogger(cacheLog),
		tenant.WithHooks(hooks),
		tenant.WithCoalescing(cfg.Cache.Coalesce),
	)
	if err != nil {
		return nil, err
	}

	cs := append(metricHooks.Collectors(),
		metrics.NewCollector(metricsNamespace, a.Service),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := metrics.Register(a.Registry, cs...); err != nil {
		return nil, err
	}

	a.Log.Info("tenantd ready",
		zap.String("cache_driver", cfg.Cache.Driver),
		zap.String("store", cfg.Store.Backend),
		zap.String("codec", cfg.Cache.Codec),
		zap.String("resolution", cfg.Tenant.Resolution),
		zap.Bool("tenancy", cfg.Tenant.Enabled),
	)
	return a, nil
}

// Handler is the full HTTP surface.
func (a *App) Handler() http.Handler {
	return server.NewRouter(server.Options{
		Service:       a.Service,
		Logger:        a.Log,
		AdminToken:    a.Config.HTTP.AdminToken,
		RequireActive: a.Config.Tenant.RequireActive,
		Metrics:       promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{Registry: a.Registry}),
		Health:        a.Health,
	})
}

// Health pings every remote dependency.
func (a *App) Health(ctx context.Context) error {
	var errs []error
	for _, p := range a.pingers {
		errs = append(errs, p.Ping(ctx))
	}
	return errors.Join(errs...)
}

// Close releases resources in reverse order of creation and flushes
// pending hook events.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	if a.hooks != nil {
		a.hooks.Close()
	}
	if a.Log != nil {
		_ = a.Log.Sync()
	}
	return errors.Join(errs...)
}

func (a *App) providers(ctx context.Context) (pos, neg provider.Provider, err error) {
	c := a.Config.Cache
	switch c.Driver {
	case config.DriverMemory:
		if pos, err = memory.New(memory.Config{Capacity: c.Capacity}); err != nil {
			return nil, nil, err
		}
		if neg, err = memory.New(memory.Config{Capacity: c.NegativeCapacity}); err != nil {
			return nil, nil, err
		}
	case config.DriverRistretto:
		if pos, err = ristrettop.New(ristrettop.Config{MaxCost: int64(c.Capacity), Metrics: true, SyncWrites: true}); err != nil {
			return nil, nil, err
		}
		if neg, err = ristrettop.New(ristrettop.Config{MaxCost: int64(c.NegativeCapacity), Metrics: true, SyncWrites: true}); err != nil {
			_ = pos.Close(ctx)
			return nil, nil, err
		}
	case config.DriverBigcache:
		if pos, err = bcp.New(ctx, bcp.Config{LifeWindow: c.TTL, MaxEntries: c.Capacity}); err != nil {
			return nil, nil, err
		}
		if neg, err = bcp.New(ctx, bcp.Config{LifeWindow: c.NegativeTTL, MaxEntries: c.NegativeCapacity}); err != nil {
			_ = pos.Close(ctx)
			return nil, nil, err
		}
	case config.DriverRedis:
		client, err := rp.Connect(ctx, a.Config.Redis)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, closeRedis(client))
		r, err := rp.New(rp.Config{Client: client})
		if err != nil {
			return nil, nil, err
		}
		a.pingers = append(a.pingers, r)
		// one client; the key prefix keeps the two caches apart
		return r, r, nil
	default:
		return nil, nil, fmt.Errorf("app: unknown cache driver %q", c.Driver)
	}
	return pos, neg, nil
}

func closeRedis(c *goredis.Client) func(context.Context) error {
	return func(context.Context) error {
		if err := c.Close(); err != nil && !errors.Is(err, goredis.ErrClosed) {
			return err
		}
		return nil
	}
}

func (a *App) openStore(ctx context.Context) (tenant.Store, error) {
	switch a.Config.Store.Backend {
	case config.StoreYAML:
		return yamlstore.Open(a.Config.Store.File)
	case config.StorePostgres:
		pool, err := postgres.Connect(ctx, a.Config.Postgres)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error {
			pool.Close()
			return nil
		})
		a.pingers = append(a.pingers, pool)
		return postgres.New(pool), nil
	default:
		return nil, fmt.Errorf("app: unknown store %q", a.Config.Store.Backend)
	}
}

func (a *App) cacheLogger() (tenantcache.Logger, error) {
	switch a.Config.Log.Backend {
	case "", "zap":
		return zaplog.New(a.Log), nil
	case "logrus":
		l := logrus.New()
		l.SetFormatter(&logrus.JSONFormatter{})
		if lvl, err := logrus.ParseLevel(a.Config.Log.Level); err == nil {
			l.SetLevel(lvl)
		}
		return logruslog.New(l), nil
	case "slog":
		return slogadapter.New(newSlog(a.Config.Log)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownLogBackend, a.Config.Log.Backend)
	}
}

// NewZap returns a development logger for APP_ENV=development and a JSON
// production logger otherwise.
func NewZap(c config.Log) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if c.Env == "development" {
		zc = zap.NewDevelopmentConfig()
	}
	if c.Level != "" {
		lvl, err := zap.ParseAtomicLevel(c.Level)
		if err != nil {
			return nil, fmt.Errorf("app: log level: %w", err)
		}
		zc.Level = lvl
	}
	return zc.Build()
}

func newSlog(c config.Log) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
