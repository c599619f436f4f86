package logger

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	coreconfig "github.com/m3rciful/shopbot/core/config"
)

func newTestLogger(buf *bytes.Buffer, format lineFormat) *slog.Logger {
	return slog.New(&lineHandler{level: slog.LevelDebug, format: format, out: newSink(buf)})
}

// assertOrder fails unless every part occurs in line, in the given order.
func assertOrder(t *testing.T, line string, parts ...string) {
	t.Helper()
	pos := -1
	for _, p := range parts {
		i := strings.Index(line, p)
		if i < 0 || i < pos {
			t.Fatalf("%s missing or out of order in %s", p, line)
		}
		pos = i
	}
}

func TestLineHandlerKVOrder(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithUpdate(context.Background(), 42, 9, 9)
	log := newTestLogger(&buf, formatKV).With("component", "service.orders")

	LogEvent(ctx, log, slog.LevelInfo, "order.submit",
		slog.String("err", "none"),
		slog.String("product", "Green Tea"),
		slog.String("city", "Moscow"),
		slog.Int64("order_id", 3),
		slog.String("status", "OK"),
		slog.String("zone", "eu"),
	)
	line := strings.TrimSpace(buf.String())
	if !strings.HasPrefix(line, "ts=") {
		t.Fatalf("line must start with ts: %s", line)
	}
	assertOrder(t, line,
		"level=INFO", "component=service.orders", "event=order.submit", "status=ok",
		"rid="+BuildRID(42, 9), "update_id=42", "chat_id=9",
		"order_id=3", "city=Moscow", `product="Green Tea"`,
		"zone=eu", "err=none",
	)
	if strings.Contains(line, "user_id=") {
		t.Fatalf("user id equal to chat id must be omitted: %s", line)
	}
}

func TestLineHandlerJSONCarriesOrderFromContext(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithUpdate(context.Background(), 11, 33, 22)
	ctx = WithOrderID(WithHandler(ctx, "admin"), 7)
	newTestLogger(&buf, formatJSON).ErrorContext(ctx, "status change failed",
		slog.String("component", "service.orders"),
		slog.String("err", "boom"),
	)

	line := strings.TrimSpace(buf.String())
	assertOrder(t, line,
		`{"ts":`, `"level":"ERROR"`, `"component":"service.orders"`, `"event":"status change failed"`,
		`"chat_id":33`, `"user_id":22`, `"handler":"admin"`, `"order_id":7`, `"err":"boom"}`,
	)
}

func TestLineHandlerRecordWinsOverContext(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithOrderID(context.Background(), 7)
	newTestLogger(&buf, formatKV).InfoContext(ctx, "x", slog.Int64("order_id", 8))
	if line := buf.String(); !strings.Contains(line, "order_id=8") || strings.Contains(line, "order_id=7") {
		t.Fatalf("record value must win: %s", line)
	}
}

func TestLineHandlerGroupsAndValues(t *testing.T) {
	var buf bytes.Buffer
	log := newTestLogger(&buf, formatKV).WithGroup("redis").With("addr", "cache:6379")
	log.Info("ping",
		slog.Duration("duration", 1500*time.Microsecond),
		slog.Any("err", errors.New("refused")),
		slog.String("note", ""),
		slog.Group("pool", slog.Int("size", 3)),
	)
	line := buf.String()
	for _, want := range []string{"redis.addr=cache:6379", "redis.duration_ms=2", "redis.err=refused", "redis.pool.size=3", "component=app"} {
		if !strings.Contains(line, want) {
			t.Fatalf("missing %s in %s", want, line)
		}
	}
	if strings.Contains(line, "note=") {
		t.Fatalf("empty values must be dropped: %s", line)
	}
}

func TestLineHandlerAlertSink(t *testing.T) {
	var main, alerts bytes.Buffer
	log := slog.New(&lineHandler{
		level:  slog.LevelDebug,
		format: formatKV,
		out:    newSink(&main),
		alerts: newSink(&alerts),
	})
	log.Info("bot started")
	log.Warn("send failed")
	log.Error("save failed")

	if got := strings.Count(main.String(), "\n"); got != 3 {
		t.Fatalf("main sink lines = %d, want 3:\n%s", got, main.String())
	}
	lines := strings.Split(strings.TrimSpace(alerts.String()), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], `event="send failed"`) || !strings.Contains(lines[1], "level=ERROR") {
		t.Fatalf("alert sink:\n%s", alerts.String())
	}
}

func TestLineHandlerLevel(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(&lineHandler{level: slog.LevelWarn, format: formatJSON, out: newSink(&buf)})
	log.Info("hidden")
	log.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("level filter: %s", buf.String())
	}
}

func TestParseLevelAndFormat(t *testing.T) {
	tests := []struct {
		level, format string
		ok            bool
	}{
		{"", "", true},
		{"Warning", "text", true},
		{"debug", "KV", true},
		{"verbose", "json", false},
		{"info", "pretty", false},
	}
	for _, tt := range tests {
		_, lerr := parseLevel(tt.level)
		_, ferr := parseFormat(tt.format)
		if ok := lerr == nil && ferr == nil; ok != tt.ok {
			t.Errorf("parse(%q, %q) ok = %v, want %v", tt.level, tt.format, ok, tt.ok)
		}
	}
}

func TestSetupWritesFiles(t *testing.T) {
	dir := t.TempDir()
	var stdout bytes.Buffer
	err := setup(coreconfig.LoggingConfig{
		Format:     "kv",
		Dir:        dir,
		BotFile:    "logs.txt",
		ErrorsFile: "errors.log",
	}, &stdout)
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	t.Cleanup(func() { install(slog.New(slog.DiscardHandler)) })

	SVCCatalog.Warn("catalog save failed", slog.String("event", "catalog.save"))
	if err := Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	all, err := os.ReadFile(filepath.Join(dir, "logs.txt"))
	if err != nil {
		t.Fatal(err)
	}
	errs, err := os.ReadFile(filepath.Join(dir, "errors.log"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(all), "event=startup") || !strings.Contains(string(all), "component=service.catalog") {
		t.Fatalf("logs.txt:\n%s", all)
	}
	if strings.Contains(string(errs), "startup") || !strings.Contains(string(errs), "event=catalog.save") {
		t.Fatalf("errors.log:\n%s", errs)
	}
	if stdout.String() != string(all) {
		t.Fatal("stdout and logs.txt must receive the same lines")
	}
}

func TestBuildRID(t *testing.T) {
	if got := BuildRID(36, -1); got != "10.-1" {
		t.Fatalf("BuildRID = %q", got)
	}
}

func TestClean(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"Москва", 3, "Мос"},
		{"a\nb\tc", 10, "a b c"},
		{"x\x00y\u200bz", 10, "xyz"},
		{"abc", 0, ""},
	}
	for _, tt := range tests {
		if got := Clean(tt.in, tt.max); got != tt.want {
			t.Errorf("Clean(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
