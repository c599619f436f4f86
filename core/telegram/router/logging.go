package router

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"sync/atomic"
	"time"

	"github.com/m3rciful/shopbot/core/logger"
	tghelpers "github.com/m3rciful/shopbot/core/telegram/helpers"
	"github.com/m3rciful/shopbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Handler outcomes reported to the summary line and the HandledHook.
const (
	outcomeOK   = "ok"
	outcomeFail = "fail"
	outcomeSkip = "skip"
)

// HandledHook observes every handler summary, e.g. to count updates.
type HandledHook func(handler, outcome string, took time.Duration)

var handledHook atomic.Pointer[HandledHook]

// SetHandledHook installs fn as the handler summary observer. nil removes it.
func SetHandledHook(fn HandledHook) {
	if fn == nil {
		handledHook.Store(nil)
		return
	}
	handledHook.Store(&fn)
}

// summarize runs fn as handler name and writes its summary line.
func summarize(c tele.Context, name string, start time.Time, fn func() error) error {
	tghelpers.WithHandler(c, name)
	err := fn()
	outcome := outcomeOK
	if err != nil {
		outcome = outcomeFail
	}
	writeSummary(c, name, outcome, time.Since(start), err)
	return err
}

// skipped records an update no handler took.
func skipped(c tele.Context, name string, start time.Time) {
	tghelpers.WithHandler(c, name)
	writeSummary(c, name, outcomeSkip, time.Since(start), nil)
}

func writeSummary(c tele.Context, name, outcome string, took time.Duration, err error) {
	if hook := handledHook.Load(); hook != nil {
		(*hook)(name, outcome, took)
	}
	msgs, kb := middleware.GetCounters(c)
	level := slog.LevelInfo
	attrs := []slog.Attr{
		slog.String("event", "tg.handled"),
		slog.String("status", outcome),
		slog.Int("messages", msgs),
		slog.Bool("kb", kb),
		slog.Duration("duration", took),
	}
	if err != nil {
		level = slog.LevelWarn
		attrs = append(attrs,
			slog.String("err", logger.Clean(err.Error(), 256)),
			slog.String("err_code", deriveErrorCode(err)),
		)
	}
	logger.TG.LogAttrs(tghelpers.BuildContext(c), level, "handled", attrs...)
}

func normalizeHandlerName(name string) string {
	name = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(name), "/"))
	if name == "" {
		return "unknown"
	}
	return strings.ReplaceAll(name, " ", "_")
}

// deriveErrorCode names err for the err_code field: the Code() of the first
// wrapped error that has one, else the type name of err.
func deriveErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := strings.TrimSpace(coded.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return "UNKNOWN_ERROR"
	}
	return strings.ToUpper(t.Name())
}
