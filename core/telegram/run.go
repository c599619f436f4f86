package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	coreconfig "github.com/m3rciful/shopbot/core/config"
	"github.com/m3rciful/shopbot/core/logger"
	tghelpers "github.com/m3rciful/shopbot/core/telegram/helpers"
	"github.com/m3rciful/shopbot/core/telegram/middleware"
	tgsender "github.com/m3rciful/shopbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

// stopTimeout bounds the OnStop hook once updates stopped flowing.
const stopTimeout = 10 * time.Second

// Middleware is a named global middleware, installed with bot.Use in order.
type Middleware struct {
	Name string
	Use  tele.MiddlewareFunc
}

// Route binds a handler to a telebot endpoint such as "/start" or tele.OnText.
type Route struct {
	Endpoint any
	Handler  tele.HandlerFunc
}

// RunOptions controls the behaviour of RunTelegram.
type RunOptions struct {
	Config   *coreconfig.Config
	Registry *Registry

	DispatcherOptions tgsender.Options
	// Dispatcher replaces the one built from DispatcherOptions.
	Dispatcher *tgsender.Dispatcher

	Middlewares []Middleware
	Routes      []Route

	// KeepWebhook skips removing a stale webhook before long polling.
	KeepWebhook bool
	// ShutdownOnPanic stops the bot gracefully after a recovered handler panic.
	ShutdownOnPanic bool

	OnStart func(ctx context.Context, rt Runtime) error
	OnStop  func(ctx context.Context, rt Runtime) error
}

// Runtime is what lifecycle hooks get to work with.
type Runtime struct {
	Bot        *tele.Bot
	Dispatcher *tgsender.Dispatcher
	Registry   *Registry
}

// RunTelegram serves updates until ctx is done or the poller stops. Queued
// replies are delivered before OnStop runs.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	if opts.Config == nil {
		return errors.New("telegram: nil config provided")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	bot, err := newBot(opts.Config)
	if err != nil {
		return err
	}
	rt := Runtime{Bot: bot, Dispatcher: opts.Dispatcher, Registry: opts.Registry}
	if rt.Dispatcher == nil {
		rt.Dispatcher = tgsender.NewDispatcher(opts.DispatcherOptions)
	}
	if rt.Registry == nil {
		rt.Registry = NewRegistry()
	}

	if opts.ShutdownOnPanic {
		middleware.SetPanicHook(func() {
			logger.TG.Warn("stopping after handler panic", slog.String("event", "tg.panic.shutdown"))
			cancel()
		})
		defer middleware.SetPanicHook(nil)
	}
	if _, polling := bot.Poller.(*tele.LongPoller); polling && !opts.KeepWebhook {
		if err := bot.RemoveWebhook(false); err != nil {
			logger.TG.Warn("webhook removal failed",
				slog.String("event", "tg.webhook.remove"),
				slog.String("err", tgsender.RedactToken(err.Error())),
			)
		}
	}

	for _, mw := range opts.Middlewares {
		if mw.Use != nil {
			bot.Use(mw.Use)
		}
	}
	for _, r := range opts.Routes {
		if r.Endpoint != nil && r.Handler != nil {
			bot.Handle(r.Endpoint, r.Handler)
		}
	}
	InitBotCommands(bot, rt.Registry)

	if opts.OnStart != nil {
		if err := opts.OnStart(ctx, rt); err != nil {
			rt.Dispatcher.Close()
			return err
		}
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		bot.Start()
	}()
	select {
	case <-ctx.Done():
		bot.Stop()
		<-stopped
	case <-stopped:
	}

	rt.Dispatcher.Close()
	if opts.OnStop == nil {
		return nil
	}
	stopCtx, stopCancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
	defer stopCancel()
	return opts.OnStop(stopCtx, rt)
}

// newBot builds the bot for the configured run mode and logs the mode.
func newBot(cfg *coreconfig.Config) (*tele.Bot, error) {
	poller := BuildPoller(PollerOptions{
		RunMode:                cfg.Telegram.RunMode,
		LongPollTimeoutSeconds: cfg.Telegram.LongPollTimeoutSeconds,
		Webhook: WebhookOptions{
			Listen: cfg.Webhook.Listen,
			Port:   cfg.Webhook.Port,
			URL:    cfg.Webhook.URL,
		},
	})
	start := time.Now()
	bot, err := tele.NewBot(tele.Settings{
		Token:   cfg.Telegram.Token,
		Poller:  poller,
		Client:  BuildHTTPClient(),
		OnError: logBotError,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: bot initialization failed: %w", tgsender.RedactError(err))
	}

	attrs := []slog.Attr{
		slog.String("event", "tg.start"),
		slog.String("username", bot.Me.Username),
		slog.Duration("duration", time.Since(start)),
	}
	switch p := poller.(type) {
	case *tele.Webhook:
		attrs = append(attrs,
			slog.String("mode", coreconfig.RunModeWebhook),
			slog.String("listen", p.Listen),
			slog.String("public_url", p.Endpoint.PublicURL),
		)
	case *tele.LongPoller:
		attrs = append(attrs,
			slog.String("mode", coreconfig.RunModeLongpoll),
			slog.Duration("poll_timeout", p.Timeout),
		)
	}
	logger.TG.LogAttrs(context.Background(), slog.LevelInfo, "bot ready", attrs...)
	return bot, nil
}

// logBotError reports handler errors that reached telebot, under the
// context of the update that caused them.
func logBotError(err error, c tele.Context) {
	ctx := context.Background()
	if c != nil {
		ctx = tghelpers.BuildContext(c)
	}
	logger.TG.ErrorContext(ctx, "update failed",
		slog.String("event", "tg.error"),
		slog.String("err", tgsender.RedactToken(err.Error())),
	)
}
