package router

import (
	"strings"
	"time"

	tg "github.com/m3rciful/shopbot/core/telegram"
	"github.com/m3rciful/shopbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// TextHandler consumes free-text messages that did not match a command.
type TextHandler interface {
	HandleText(c tele.Context) error
}

// TextHandlerFunc adapts a plain function to TextHandler.
type TextHandlerFunc func(c tele.Context) error

// HandleText calls f(c).
func (f TextHandlerFunc) HandleText(c tele.Context) error { return f(c) }

// TextOptions controls fallback behaviour for text/document updates.
// IsAdmin and OnAdminReject gate admin-only commands reached through text,
// the same way CommandRouteOptions does for command routes.
type TextOptions struct {
	UnknownText     tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
	IsAdmin         func(chatID int64) bool
	OnAdminReject   tele.HandlerFunc
}

// TextRoutes builds handlers for text and document routing.
// Slash-prefixed text resolves through the registry first (aliases and
// arguments included); everything else goes to the text handler.
func TextRoutes(text TextHandler, reg *tg.Registry, opts TextOptions) []tg.Route {
	adminOnly := middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		IsAdmin:  opts.IsAdmin,
		OnReject: opts.OnAdminReject,
	})

	handler := func(c tele.Context) error {
		start := time.Now()
		msg := c.Text()

		if reg != nil && strings.HasPrefix(msg, "/") {
			if key, cmd, ok := reg.LookupCommand(msg); ok && cmd.Handler != nil {
				run := cmd.Handler
				if cmd.AdminOnly {
					run = adminOnly(run)
				}
				return summarize(c, normalizeHandlerName(key), start, func() error {
					return run(c)
				})
			}
		}

		if text != nil {
			return summarize(c, "text", start, func() error {
				return text.HandleText(c)
			})
		}

		if opts.UnknownText != nil {
			return summarize(c, "unknown_text", start, func() error {
				return opts.UnknownText(c)
			})
		}

		skipped(c, "unknown_text", start)
		return nil
	}

	docHandler := func(c tele.Context) error {
		start := time.Now()
		if opts.UnknownDocument != nil {
			return summarize(c, "unexpected_document", start, func() error {
				return opts.UnknownDocument(c)
			})
		}
		skipped(c, "unexpected_document", start)
		return nil
	}

	return []tg.Route{
		{
			Endpoint: tele.OnText,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
		},
		{
			Endpoint: tele.OnDocument,
			Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(docHandler)),
		},
	}
}
