package middleware

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"

	"github.com/m3rciful/shopbot/core/logger"
	tghelpers "github.com/m3rciful/shopbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

var panicHook atomic.Pointer[func()]

// SetPanicHook registers fn to run after every recovered panic. Pass nil to clear.
func SetPanicHook(fn func()) {
	if fn == nil {
		panicHook.Store(nil)
		return
	}
	panicHook.Store(&fn)
}

// RecoverMiddleware catches panics in handlers and prevents the bot from crashing.
// The panic is reported to the caller as an error.
func RecoverMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) (err error) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			logger.TG.ErrorContext(tghelpers.BuildContext(c), "panic recovered",
				slog.String("event", "tg.panic"),
				slog.Any("err", r),
				slog.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("handler panic: %v", r)
			if hook := panicHook.Load(); hook != nil {
				(*hook)()
			}
		}()
		return next(c)
	}
}
