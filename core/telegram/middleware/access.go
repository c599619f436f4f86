package middleware

import (
	"log/slog"

	"github.com/m3rciful/shopbot/core/logger"
	tghelpers "github.com/m3rciful/shopbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// AdminOptions defines how admin-only checks should behave.
type AdminOptions struct {
	// IsAdmin reports whether the chat may run admin-only handlers.
	IsAdmin  func(chatID int64) bool
	OnReject tele.HandlerFunc
}

// AdminOnlyMiddleware ensures that only admin chats can invoke downstream handlers.
// Without an IsAdmin check every caller is rejected.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			chatID := tghelpers.ChatID(c)
			if opts.IsAdmin == nil || !opts.IsAdmin(chatID) {
				logger.TG.InfoContext(tghelpers.BuildContext(c), "admin access denied",
					slog.String("event", "tg.access.denied"),
					slog.String("status", "rejected"),
				)
				if opts.OnReject != nil {
					return opts.OnReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}
