package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/m3rciful/shopbot/core/buildinfo"
	coreconfig "github.com/m3rciful/shopbot/core/config"
)

var (
	initOnce sync.Once
	levelVar slog.LevelVar

	sinksMu sync.Mutex
	sinks   []*sink

	// L is the base logger; component loggers below are derived from it.
	L *slog.Logger

	// DB logs database connection events.
	DB *slog.Logger
	// MIG logs database migration events.
	MIG *slog.Logger
	// TG logs Telegram transport events.
	TG *slog.Logger
	// TWire logs Telegram wiring steps.
	TWire *slog.Logger
	// TSend logs outbound reply delivery.
	TSend *slog.Logger
	// SVCOrders logs order ledger activity.
	SVCOrders *slog.Logger
	// SVCCatalog logs catalog edits and persistence.
	SVCCatalog *slog.Logger
	// SVCSessions logs session store activity.
	SVCSessions *slog.Logger
)

var components = []struct {
	dst  **slog.Logger
	name string
}{
	{&DB, "db"},
	{&MIG, "db.migrate"},
	{&TG, "tg"},
	{&TWire, "tg.wire"},
	{&TSend, "tg.sender"},
	{&SVCOrders, "service.orders"},
	{&SVCCatalog, "service.catalog"},
	{&SVCSessions, "service.sessions"},
}

func init() {
	// Package loggers discard until InitLogger runs.
	install(slog.New(slog.DiscardHandler))
}

func install(base *slog.Logger) {
	L = base
	for _, c := range components {
		*c.dst = base.With("component", c.name)
	}
}

// InitLogger configures the global structured logger from cfg.Logging.
// Only the first call has an effect.
func InitLogger(cfg *coreconfig.Config) error {
	var err error
	initOnce.Do(func() {
		var lc coreconfig.LoggingConfig
		if cfg != nil {
			lc = cfg.Logging
		}
		err = setup(lc, os.Stdout)
	})
	return err
}

func setup(lc coreconfig.LoggingConfig, stdout io.Writer) error {
	level, err := parseLevel(lc.Level)
	if err != nil {
		return err
	}
	format, err := parseFormat(lc.Format)
	if err != nil {
		return err
	}
	out, alerts, err := openSinks(lc, stdout)
	if err != nil {
		return err
	}
	levelVar.Set(level)

	l := slog.New(&lineHandler{level: &levelVar, format: format, out: out, alerts: alerts})
	slog.SetDefault(l)
	install(l)

	l.Info("startup",
		slog.String("go_version", runtime.Version()),
		slog.String("build_version", buildinfo.Version),
		slog.String("build_commit", buildinfo.Commit),
		slog.String("build_time", buildinfo.Date),
		slog.String("log_level", level.String()),
	)
	return nil
}

func parseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("logger: unknown logging.level %q", raw)
}

func parseFormat(raw string) (lineFormat, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "json":
		return formatJSON, nil
	case "kv", "text":
		return formatKV, nil
	}
	return 0, fmt.Errorf("logger: unknown logging.format %q", raw)
}

// openSinks returns the main sink (stdout plus logging.bot_file) and, when
// logging.errors_file is set, the sink for WARN and above.
func openSinks(lc coreconfig.LoggingConfig, stdout io.Writer) (*sink, *sink, error) {
	out := newSink(stdout)
	var alerts *sink
	dir := strings.TrimSpace(lc.Dir)
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("logger: create %s: %w", dir, err)
		}
		if name := strings.TrimSpace(lc.BotFile); name != "" {
			f, err := openAppend(dir, name)
			if err != nil {
				return nil, nil, err
			}
			out.own(f)
		}
		if name := strings.TrimSpace(lc.ErrorsFile); name != "" {
			f, err := openAppend(dir, name)
			if err != nil {
				_ = out.Close()
				return nil, nil, err
			}
			alerts = newSink()
			alerts.own(f)
		}
	}

	sinksMu.Lock()
	sinks = append(sinks, out)
	if alerts != nil {
		sinks = append(sinks, alerts)
	}
	sinksMu.Unlock()
	return out, alerts, nil
}

func openAppend(dir, name string) (*os.File, error) {
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logger: open %s: %w", path, err)
	}
	return f, nil
}

// Shutdown closes the log files. Lines logged afterwards are dropped.
func Shutdown() error {
	sinksMu.Lock()
	defer sinksMu.Unlock()
	var errs []error
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	sinks = nil
	return errors.Join(errs...)
}

// LogEvent writes one event line through logg, or L when logg is nil.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = L
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, level, "", attrs...)
}
