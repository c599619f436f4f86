package middleware

import (
	"log/slog"

	coreconfig "github.com/m3rciful/shopbot/core/config"
	"github.com/m3rciful/shopbot/core/logger"
	tghelpers "github.com/m3rciful/shopbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// receivedKey marks an update whose receipt line was already written. The
// routers wrap several branches with LoggerMiddleware, so it may run twice.
const receivedKey = "shop.received"

const payloadLimit = 256

// UpdateKind names the kind of update for rate limit exclusions and logs.
func UpdateKind(u tele.Update) string {
	switch {
	case u.Callback != nil:
		return coreconfig.UpdateCallback
	case u.Message != nil:
		return coreconfig.UpdateMessage
	case u.Query != nil:
		return coreconfig.UpdateInlineQuery
	}
	return "other"
}

// LoggerMiddleware attaches the update context to c and writes one debug
// line per update.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		ctx := tghelpers.BuildContext(c)
		if c.Get(receivedKey) == nil {
			c.Set(receivedKey, true)
			logger.TG.LogAttrs(ctx, slog.LevelDebug, "update received", receivedAttrs(c)...)
		}
		return next(c)
	}
}

func receivedAttrs(c tele.Context) []slog.Attr {
	upd := c.Update()
	attrs := []slog.Attr{
		slog.String("event", "tg.update"),
		slog.String("kind", UpdateKind(upd)),
	}
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
	}
	if u := c.Sender(); u != nil && u.Username != "" {
		attrs = append(attrs, slog.String("username", logger.Clean(u.Username, 64)))
	}
	switch {
	case upd.Callback != nil:
		attrs = append(attrs, slog.String("payload", logger.Clean(upd.Callback.Data, payloadLimit)))
	case upd.Message != nil && upd.Message.Document != nil:
		attrs = append(attrs, slog.String("payload", logger.Clean(upd.Message.Document.FileName, payloadLimit)))
	default:
		attrs = append(attrs, slog.String("payload", logger.Clean(c.Text(), payloadLimit)))
	}
	return attrs
}
