// Package app wires configuration, storage and the Telegram runtime into
// the shop bot.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	corebootstrap "github.com/m3rciful/shopbot/core/bootstrap"
	coreconfig "github.com/m3rciful/shopbot/core/config"
	coredatabase "github.com/m3rciful/shopbot/core/database"
	"github.com/m3rciful/shopbot/core/logger"
	tg "github.com/m3rciful/shopbot/core/telegram"
	"github.com/m3rciful/shopbot/core/telegram/router"
	tgsender "github.com/m3rciful/shopbot/core/telegram/sender"
	"github.com/m3rciful/shopbot/internal/bot"
	"github.com/m3rciful/shopbot/internal/catalog"
	"github.com/m3rciful/shopbot/internal/ledger"
	"github.com/m3rciful/shopbot/internal/metrics"
	"github.com/m3rciful/shopbot/internal/session"
	"github.com/m3rciful/shopbot/internal/shop"
	"github.com/m3rciful/shopbot/migrations"
)

// App owns the long-lived components of the bot.
type App struct {
	cfg      *Config
	catalog  *catalog.Catalog
	sessions session.Store
	janitor  *session.MemoryStore
	ledger   *ledger.Ledger
	machine  *shop.Machine
	handlers *bot.Handlers
	sender   *bot.Sender
	metrics  *metrics.Metrics
	server   *metrics.Server

	infra *corebootstrap.Result
	redis *redis.Client
}

// Deps overrides infrastructure constructors, mainly for tests.
type Deps struct {
	LoggerInit func(*coreconfig.Config) error
	Connect    func(coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(coredatabase.Config, fs.FS) error
	Redis      func(RedisConfig) (*redis.Client, error)
}

// Bootstrap initializes logging and storage and builds the shop machine.
func Bootstrap(cfg *Config, deps Deps) (*App, error) {
	if cfg == nil || cfg.catalog == nil {
		return nil, errors.New("app: config not loaded")
	}

	opts := corebootstrap.Options{
		Config:     &cfg.Core,
		LoggerInit: deps.LoggerInit,
		Connect:    deps.Connect,
		Migrate:    deps.Migrate,
	}
	if cfg.Storage.Driver == DriverPostgres {
		opts.Database = &cfg.Database
		opts.Migrations = migrations.FS
	}
	infra, err := corebootstrap.Run(opts)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:     cfg,
		catalog: cfg.catalog,
		sender:  &bot.Sender{},
		infra:   infra,
	}

	var store ledger.Store = ledger.NewMemoryStore()
	if infra.DB != nil {
		store = ledger.NewPostgresStore(infra.DB)
	}
	a.ledger = ledger.New(store)

	switch cfg.Sessions.Driver {
	case DriverRedis:
		open := deps.Redis
		if open == nil {
			open = openRedis
		}
		client, err := open(cfg.Redis)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("app: redis: %w", err)
		}
		a.redis = client
		a.sessions = session.NewRedisStore(client, cfg.IdleTTL())
	default:
		mem := session.NewMemoryStore(cfg.IdleTTL())
		a.sessions = mem
		a.janitor = mem
	}

	a.metrics = metrics.New(a.activeSessions)
	if cfg.Metrics.Enabled {
		a.server = metrics.NewServer(cfg.Metrics.Addr, a.metrics)
	}

	var persist func() error
	if cfg.Catalog.PersistOnChange {
		persist = func() error { return a.catalog.Save(cfg.Catalog.Path) }
	}
	a.machine, err = shop.New(shop.Options{
		Catalog:  a.catalog,
		Sessions: a.sessions,
		Ledger:   a.ledger,
		Sender:   a.sender,
		Admins:   cfg.Core.Telegram.AdminIDs,
		Persist:  persist,
		Metrics:  a.metrics,
	})
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.handlers = bot.NewHandlers(a.machine)

	logger.L.Info("app bootstrapped",
		slog.String("event", "app.bootstrap"),
		slog.String("sessions", cfg.Sessions.Driver),
		slog.String("storage", cfg.Storage.Driver),
		slog.Int("cities", len(a.catalog.Cities())),
		slog.Int("admins", len(cfg.Core.Telegram.AdminIDs)),
		slog.Bool("metrics", cfg.Metrics.Enabled),
	)
	return a, nil
}

func openRedis(cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func (a *App) activeSessions() float64 {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	n, err := a.sessions.Len(ctx)
	if err != nil {
		return 0
	}
	return float64(n)
}

// Machine returns the shop state machine.
func (a *App) Machine() *shop.Machine { return a.machine }

// TelegramRunOptions assembles commands, routes and lifecycle hooks.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	cfg := &a.cfg.Core

	reg := tg.NewRegistry()
	a.handlers.Register(reg)

	routes := router.CommandRoutes(reg, a.handlers.CommandOptions())
	routes = append(routes, router.TextRoutes(a.handlers, reg, a.handlers.TextOptions())...)

	router.SetHandledHook(func(handler, outcome string, _ time.Duration) {
		a.metrics.UpdateHandled(handler, outcome)
	})

	return tg.RunOptions{
		Config:   cfg,
		Registry: reg,
		DispatcherOptions: tgsender.Options{
			Workers:    cfg.Telegram.SendWorkers,
			MaxRetries: cfg.Telegram.SendRetries,
			OnFailure: func(_ context.Context, action string, _ error) {
				a.metrics.DeliveryFailed(action)
			},
		},
		Middlewares:     tg.DefaultMiddlewares(cfg, nil),
		Routes:          routes,
		ShutdownOnPanic: !cfg.Telegram.ContinueOnPanic,
		OnStart:         a.onStart,
		OnStop:          a.onStop,
	}, nil
}

func (a *App) onStart(ctx context.Context, rt tg.Runtime) error {
	a.sender.Bind(rt.Bot, rt.Dispatcher)
	if a.server != nil {
		a.server.Start()
	}
	if a.janitor != nil {
		go a.janitor.RunJanitor(ctx, a.cfg.Sessions.SweepInterval)
	}
	return nil
}

// onStop saves the catalog back to its source document. It runs after the
// dispatcher has drained. A failed save is logged and does not change the
// exit status.
func (a *App) onStop(ctx context.Context, _ tg.Runtime) error {
	if err := a.catalog.Save(a.cfg.Catalog.Path); err != nil {
		logger.SVCCatalog.ErrorContext(ctx, "catalog not saved on shutdown",
			slog.String("event", "catalog.save"),
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
	logger.L.InfoContext(ctx, "bot stopped",
		slog.String("event", "app.stop"),
		slog.Int("orders", a.orderCount(ctx)),
	)
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("app: metrics shutdown: %w", err)
		}
	}
	return nil
}

func (a *App) orderCount(ctx context.Context) int {
	orders, err := a.ledger.ListAll(ctx)
	if err != nil {
		return -1
	}
	return len(orders)
}

// Close releases the database and Redis connections.
func (a *App) Close() error {
	router.SetHandledHook(nil)
	var errs []error
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.infra.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
