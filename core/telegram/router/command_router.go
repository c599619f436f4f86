package router

import (
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/shopbot/core/logger"
	tg "github.com/m3rciful/shopbot/core/telegram"
	"github.com/m3rciful/shopbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CommandRouteOptions configures how commands are wrapped and exposed.
type CommandRouteOptions struct {
	IsAdmin       func(chatID int64) bool
	OnAdminReject tele.HandlerFunc
}

// CommandRoutes returns one route per registered command and alias. Admin
// commands are gated by opts before the handler runs.
func CommandRoutes(reg *tg.Registry, opts CommandRouteOptions) []tg.Route {
	if reg == nil {
		return nil
	}
	adminOnly := middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		IsAdmin:  opts.IsAdmin,
		OnReject: opts.OnAdminReject,
	})

	cmds := reg.Commands()
	routes := make([]tg.Route, 0, len(cmds))
	for endpoint, def := range cmds {
		name, run := normalizeHandlerName(endpoint), def.Handler
		h := func(c tele.Context) error {
			return summarize(c, name, time.Now(), func() error { return run(c) })
		}
		if def.AdminOnly {
			h = adminOnly(h)
		}
		h = middleware.LoggerMiddleware(middleware.RecoverMiddleware(h))

		routes = append(routes, tg.Route{Endpoint: endpoint, Handler: h})
		for _, alias := range def.Aliases {
			if alias == "" {
				continue
			}
			if !strings.HasPrefix(alias, "/") {
				alias = "/" + alias
			}
			routes = append(routes, tg.Route{Endpoint: alias, Handler: h})
		}
	}

	logger.TWire.Info("command routes built",
		slog.String("event", "tg.wire.commands"),
		slog.Int("count", len(cmds)),
		slog.Int("routes", len(routes)),
	)
	return routes
}
