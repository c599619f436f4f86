package app

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/shopbot/core/config"
	coredatabase "github.com/m3rciful/shopbot/core/database"
	"github.com/m3rciful/shopbot/internal/catalog"
)

const (
	// DriverMemory keeps state in process memory.
	DriverMemory = "memory"
	// DriverRedis keeps sessions in Redis.
	DriverRedis = "redis"
	// DriverPostgres keeps the order ledger in Postgres.
	DriverPostgres = "postgres"
)

const (
	defaultCatalogPath   = "catalog.json"
	defaultIdleTTL       = 24 * time.Hour
	defaultSweepInterval = 10 * time.Minute
	defaultMetricsAddr   = ":9090"
	defaultRedisAddr     = "localhost:6379"
)

// CatalogConfig locates the catalog document.
type CatalogConfig struct {
	Path string `yaml:"path" envconfig:"CATALOG_PATH"`
	// PersistOnChange saves the catalog after every admin edit, not only at shutdown.
	PersistOnChange bool `yaml:"persist_on_change" envconfig:"CATALOG_PERSIST_ON_CHANGE"`
}

// SessionsConfig selects the session store.
type SessionsConfig struct {
	Driver string `yaml:"driver" envconfig:"SESSIONS_DRIVER"`
	// IdleTTL drops sessions untouched for this long; nil means the default,
	// zero disables expiry.
	IdleTTL       *time.Duration `yaml:"idle_ttl" envconfig:"SESSIONS_IDLE_TTL"`
	SweepInterval time.Duration  `yaml:"sweep_interval" envconfig:"SESSIONS_SWEEP_INTERVAL"`
}

// RedisConfig holds the Redis connection used by the redis session driver.
type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" envconfig:"REDIS_DB"`
}

// StorageConfig selects the order ledger store.
type StorageConfig struct {
	Driver string `yaml:"driver" envconfig:"STORAGE_DRIVER"`
}

// MetricsConfig controls the /health and /metrics HTTP server.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" envconfig:"METRICS_ENABLED"`
	Addr    string `yaml:"addr" envconfig:"METRICS_ADDR"`
}

// Config is the shopbot configuration: the core bot settings plus the
// shop's storage, catalog and metrics sections.
type Config struct {
	Core     coreconfig.Config   `yaml:",inline"`
	Catalog  CatalogConfig       `yaml:"catalog"`
	Sessions SessionsConfig      `yaml:"sessions"`
	Redis    RedisConfig         `yaml:"redis"`
	Storage  StorageConfig       `yaml:"storage"`
	Database coredatabase.Config `yaml:"database"`
	Metrics  MetricsConfig       `yaml:"metrics"`

	catalog *catalog.Catalog
}

// CoreConfig exposes the embedded core configuration to the runner.
func (c *Config) CoreConfig() *coreconfig.Config {
	if c == nil {
		return nil
	}
	return &c.Core
}

// LoadedCatalog returns the catalog read during Load.
func (c *Config) LoadedCatalog() *catalog.Catalog {
	return c.catalog
}

// ConfigLoadError reports a configuration that cannot be served.
type ConfigLoadError struct {
	Path string
	Err  error
}

func (e *ConfigLoadError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

func (e *ConfigLoadError) Unwrap() error { return e.Err }

// LoadConfig reads the YAML config at path with env overrides, then loads
// the catalog it points to. The catalog supplies the bot token when the
// config has none, and its ADMINS are merged into telegram.admin_ids.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, &ConfigLoadError{Path: path, Err: err}
	}
	if strings.TrimSpace(cfg.Catalog.Path) == "" {
		cfg.Catalog.Path = defaultCatalogPath
	}
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, &ConfigLoadError{Path: path, Err: err}
	}
	cfg.catalog = cat

	if strings.TrimSpace(cfg.Core.Telegram.Token) == "" {
		cfg.Core.Telegram.Token = cat.Token()
	}
	cfg.Core.Telegram.AdminIDs = mergeIDs(cfg.Core.Telegram.AdminIDs, cat.Admins())

	if err := coreconfig.Normalize(&cfg.Core); err != nil {
		return nil, &ConfigLoadError{Path: path, Err: err}
	}
	if err := normalize(&cfg); err != nil {
		return nil, &ConfigLoadError{Path: path, Err: err}
	}
	return &cfg, nil
}

// normalize fills defaults and validates the shop sections.
func normalize(cfg *Config) error {
	cfg.Sessions.Driver = strings.ToLower(strings.TrimSpace(cfg.Sessions.Driver))
	if cfg.Sessions.Driver == "" {
		cfg.Sessions.Driver = DriverMemory
	}
	switch cfg.Sessions.Driver {
	case DriverMemory:
	case DriverRedis:
		if strings.TrimSpace(cfg.Redis.Addr) == "" {
			cfg.Redis.Addr = defaultRedisAddr
		}
		if cfg.Redis.DB < 0 {
			return fmt.Errorf("redis.db must be >= 0")
		}
	default:
		return fmt.Errorf("invalid sessions.driver %q; allowed: memory, redis", cfg.Sessions.Driver)
	}
	if cfg.Sessions.IdleTTL == nil {
		ttl := defaultIdleTTL
		cfg.Sessions.IdleTTL = &ttl
	}
	if *cfg.Sessions.IdleTTL < 0 {
		return fmt.Errorf("sessions.idle_ttl must be >= 0")
	}
	if cfg.Sessions.SweepInterval < 0 {
		return fmt.Errorf("sessions.sweep_interval must be >= 0")
	}
	if cfg.Sessions.SweepInterval == 0 {
		cfg.Sessions.SweepInterval = defaultSweepInterval
	}

	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = DriverMemory
	}
	switch cfg.Storage.Driver {
	case DriverMemory:
	case DriverPostgres:
		if strings.TrimSpace(cfg.Database.Host) == "" || strings.TrimSpace(cfg.Database.Name) == "" {
			return fmt.Errorf("database.host and database.name are required when storage.driver is 'postgres'")
		}
		if cfg.Database.Port == "" {
			cfg.Database.Port = "5432"
		}
	default:
		return fmt.Errorf("invalid storage.driver %q; allowed: memory, postgres", cfg.Storage.Driver)
	}

	if cfg.Metrics.Enabled && strings.TrimSpace(cfg.Metrics.Addr) == "" {
		cfg.Metrics.Addr = defaultMetricsAddr
	}
	return nil
}

// IdleTTL returns the configured session expiry after normalization.
func (c *Config) IdleTTL() time.Duration {
	if c.Sessions.IdleTTL == nil {
		return defaultIdleTTL
	}
	return *c.Sessions.IdleTTL
}

func mergeIDs(a, b []int64) []int64 {
	seen := make(map[int64]struct{}, len(a)+len(b))
	out := make([]int64, 0, len(a)+len(b))
	for _, list := range [][]int64{a, b} {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
