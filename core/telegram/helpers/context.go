package helpers

import (
	"context"

	"github.com/m3rciful/shopbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// ctxKey is the tele.Context slot caching the update's context.Context.
const ctxKey = "shop.ctx"

// ChatID returns the id of the chat the update came from, or 0.
func ChatID(c tele.Context) int64 {
	if chat := c.Chat(); chat != nil {
		return chat.ID
	}
	return 0
}

// SenderID returns the id of the user who sent the update, or 0.
func SenderID(c tele.Context) int64 {
	if u := c.Sender(); u != nil {
		return u.ID
	}
	return 0
}

// BuildContext returns the context of the update in c. The first call
// derives it from the update ids and caches it on c.
func BuildContext(c tele.Context) context.Context {
	if ctx, ok := c.Get(ctxKey).(context.Context); ok {
		return ctx
	}
	ctx := logger.WithUpdate(context.Background(), c.Update().ID, ChatID(c), SenderID(c))
	c.Set(ctxKey, ctx)
	return ctx
}

// WithHandler records the handler name in the cached context of c.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := logger.WithHandler(BuildContext(c), handler)
	c.Set(ctxKey, ctx)
	return ctx
}
