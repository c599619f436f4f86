// Package cmd holds the process entry shared by bot binaries: environment
// and config loading, bootstrap, signal handling and shutdown.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	coreconfig "github.com/m3rciful/shopbot/core/config"
	"github.com/m3rciful/shopbot/core/logger"
	coretelegram "github.com/m3rciful/shopbot/core/telegram"
)

// ConfigCarrier exposes access to the embedded core configuration.
type ConfigCarrier interface {
	CoreConfig() *coreconfig.Config
}

// TelegramApp is the minimal interface required to run a Telegram bot.
// Apps that also implement io.Closer are closed after the bot stops.
type TelegramApp interface {
	TelegramRunOptions() (coretelegram.RunOptions, error)
}

// Options describe how to load configuration, bootstrap the app, and run the bot.
type Options struct {
	// ConfigEnvVar names the variable holding the config path; defaults to CONFIG_PATH.
	ConfigEnvVar      string
	DefaultConfigPath string
	// DotEnvFiles are loaded before the config path is resolved; defaults to ".env".
	DotEnvFiles []string

	LoadConfig func(path string) (ConfigCarrier, error)
	Bootstrap  func(cfg ConfigCarrier) (TelegramApp, error)

	// ShutdownLogger defaults to logger.Shutdown.
	ShutdownLogger func() error
	// RunTelegram defaults to coretelegram.RunTelegram.
	RunTelegram func(ctx context.Context, opts coretelegram.RunOptions) error
}

// Run loads the config, bootstraps the app and serves until SIGINT or SIGTERM.
func Run(opts Options) error {
	if opts.LoadConfig == nil || opts.Bootstrap == nil {
		return errors.New("cmd: LoadConfig and Bootstrap are required")
	}
	if err := coreconfig.LoadDotEnv(opts.DotEnvFiles...); err != nil {
		return fmt.Errorf("cmd: %w", err)
	}
	path, err := configPath(opts)
	if err != nil {
		return err
	}
	cfg, err := opts.LoadConfig(path)
	if err != nil {
		return fmt.Errorf("cmd: load config %s: %w", path, err)
	}
	if cfg.CoreConfig() == nil {
		return errors.New("cmd: loaded config is missing core configuration")
	}

	application, err := opts.Bootstrap(cfg)
	if err != nil {
		return fmt.Errorf("cmd: bootstrap failed: %w", err)
	}
	defer shutdownLogger(opts.ShutdownLogger)

	runOpts, err := application.TelegramRunOptions()
	if err != nil {
		return fmt.Errorf("cmd: telegram options build failed: %w", err)
	}
	announceLifecycle(&runOpts, time.Now())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	run := opts.RunTelegram
	if run == nil {
		run = coretelegram.RunTelegram
	}
	runErr := run(ctx, runOpts)

	if closer, ok := application.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			logger.L.Error("app close failed",
				slog.String("event", "app.close"),
				slog.String("err", err.Error()),
			)
		}
	}
	return runErr
}

func configPath(opts Options) (string, error) {
	env := opts.ConfigEnvVar
	if env == "" {
		env = "CONFIG_PATH"
	}
	if p := os.Getenv(env); p != "" {
		return p, nil
	}
	if opts.DefaultConfigPath != "" {
		return opts.DefaultConfigPath, nil
	}
	return "", fmt.Errorf("cmd: config path not provided via %s or DefaultConfigPath", env)
}

// announceLifecycle logs readiness after the app's OnStart hook and the
// shutdown before its OnStop hook.
func announceLifecycle(opts *coretelegram.RunOptions, startedAt time.Time) {
	onStart, onStop := opts.OnStart, opts.OnStop
	opts.OnStart = func(ctx context.Context, rt coretelegram.Runtime) error {
		if onStart != nil {
			if err := onStart(ctx, rt); err != nil {
				return err
			}
		}
		logger.L.InfoContext(ctx, "ready",
			slog.String("event", "app.ready"),
			slog.Duration("startup", time.Since(startedAt)),
		)
		return nil
	}
	opts.OnStop = func(ctx context.Context, rt coretelegram.Runtime) error {
		logger.L.InfoContext(ctx, "shutting down", slog.String("event", "app.shutdown"))
		if onStop != nil {
			return onStop(ctx, rt)
		}
		return nil
	}
}

func shutdownLogger(fn func() error) {
	if fn == nil {
		fn = logger.Shutdown
	}
	if err := fn(); err != nil {
		fmt.Fprintf(os.Stderr, "logger shutdown: %v\n", err)
	}
}
