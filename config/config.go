// Package config loads tenantd settings from the environment (and a .env
// file when present).
package config

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	rp "github.com/unkn0wn-root/tenantcache/provider/redis"
	"github.com/unkn0wn-root/tenantcache/store/postgres"
	"github.com/unkn0wn-root/tenantcache/tenant"
)

var (
	ErrNilPointer    = errors.New("config: nil pointer")
	ErrParsingConfig = errors.New("config: failed to parse environment")
	ErrInvalidConfig = errors.New("config: invalid value")

	dotenvOnce sync.Once
)

// Cache drivers.
const (
	DriverMemory    = "memory"
	DriverRistretto = "ristretto"
	DriverBigcache  = "bigcache"
	DriverRedis     = "redis"
)

// Store backends.
const (
	StorePostgres = "postgres"
	StoreYAML     = "yaml"
)

type Tenant struct {
	Enabled       bool      `env:"TENANT_ENABLED" envDefault:"true"`
	Resolution    string    `env:"TENANT_RESOLUTION" envDefault:"header"`
	HeaderName    string    `env:"TENANT_HEADER" envDefault:"X-Tenant-ID"`
	DefaultID     uuid.UUID `env:"TENANT_DEFAULT_ID" envDefault:"00000000-0000-0000-0000-000000000000"`
	RequireActive bool      `env:"TENANT_REQUIRE_ACTIVE" envDefault:"false"`
}

type Cache struct {
	Driver           string        `env:"TENANT_CACHE_DRIVER" envDefault:"ristretto"`
	TTL              time.Duration `env:"TENANT_CACHE_TTL" envDefault:"5m"`
	Capacity         int           `env:"TENANT_CACHE_CAPACITY" envDefault:"1000"` // entries; redis relies on maxmemory
	NegativeTTL      time.Duration `env:"TENANT_NEGATIVE_CACHE_TTL" envDefault:"60s"`
	NegativeCapacity int           `env:"TENANT_NEGATIVE_CACHE_CAPACITY" envDefault:"1000"`
	Codec            string        `env:"TENANT_CACHE_CODEC" envDefault:"json"`
	MaxPayload       int           `env:"TENANT_CACHE_MAX_PAYLOAD" envDefault:"65536"`
	Coalesce         bool          `env:"TENANT_COALESCE_LOOKUPS" envDefault:"false"`
	KeyPrefix        string        `env:"TENANT_CACHE_KEY_PREFIX" envDefault:"tenant"`
}

type Store struct {
	Backend string `env:"TENANT_STORE" envDefault:"postgres"`
	File    string `env:"TENANT_FILE" envDefault:"tenants.yaml"`
}

type HTTP struct {
	Addr            string        `env:"HTTP_ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"15s"`
	AdminToken      string        `env:"ADMIN_TOKEN"`
}

type Log struct {
	Backend string `env:"LOG_BACKEND" envDefault:"zap"`
	Level   string `env:"LOG_LEVEL" envDefault:"info"`
	Env     string `env:"APP_ENV" envDefault:"production"`
}

// Config is everything tenantd reads from the environment.
type Config struct {
	Tenant   Tenant
	Cache    Cache
	Store    Store
	HTTP     HTTP
	Log      Log
	Redis    rp.ConnectConfig
	Postgres postgres.Config
}

// Load reads .env once per process, then parses the environment into v.
func Load[T any](v *T) error {
	dotenvOnce.Do(func() {
		// a missing .env file is fine
		_ = godotenv.Load()
	})
	if v == nil {
		return ErrNilPointer
	}
	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// LoadConfig loads and validates Config.
func LoadConfig() (Config, error) {
	var c Config
	if err := Load(&c); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
		}
	}

	check(slices.Contains([]string{DriverMemory, DriverRistretto, DriverBigcache, DriverRedis}, c.Cache.Driver),
		"TENANT_CACHE_DRIVER %q", c.Cache.Driver)
	check(slices.Contains([]string{tenant.CodecJSON, tenant.CodecCBOR, tenant.CodecMsgpack, tenant.CodecProtobuf}, c.Cache.Codec),
		"TENANT_CACHE_CODEC %q", c.Cache.Codec)
	check(slices.Contains([]string{StorePostgres, StoreYAML}, c.Store.Backend),
		"TENANT_STORE %q", c.Store.Backend)
	check(c.Cache.TTL > 0, "TENANT_CACHE_TTL must be positive")
	check(c.Cache.NegativeTTL > 0, "TENANT_NEGATIVE_CACHE_TTL must be positive")
	check(c.Cache.Capacity > 0, "TENANT_CACHE_CAPACITY must be positive")
	check(c.Cache.NegativeCapacity > 0, "TENANT_NEGATIVE_CACHE_CAPACITY must be positive")
	check(c.Store.Backend != StorePostgres || c.Postgres.ConnectionString != "",
		"PG_CONN_URL is required for the postgres store")

	return errors.Join(errs...)
}

// TenantConfig is the resolver view of c.
func (c Config) TenantConfig() tenant.Config {
	return tenant.Config{
		Enabled:    c.Tenant.Enabled,
		Resolution: c.Tenant.Resolution,
		HeaderName: c.Tenant.HeaderName,
		DefaultID:  c.Tenant.DefaultID,
	}
}
