package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/shopbot/core/logger"
	tghelpers "github.com/m3rciful/shopbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// prunePast is the number of tracked senders above which stale ones are dropped.
const prunePast = 4096

// RateLimitOptions configures RateLimitMiddleware.
type RateLimitOptions struct {
	// Interval is the minimum time between two updates of one sender.
	Interval time.Duration
	// Exclude lists update kinds, as named by UpdateKind, that are never limited.
	Exclude map[string]struct{}
	// OnLimited answers a dropped update. Optional.
	OnLimited tele.HandlerFunc
}

type limiter struct {
	interval time.Duration
	mu       sync.Mutex
	seen     map[int64]time.Time
}

// allow reports whether sender may pass at now and records the pass.
func (l *limiter) allow(sender int64, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if last, ok := l.seen[sender]; ok && now.Sub(last) < l.interval {
		return false
	}
	l.seen[sender] = now
	if len(l.seen) > prunePast {
		for id, at := range l.seen {
			if now.Sub(at) >= l.interval {
				delete(l.seen, id)
			}
		}
	}
	return true
}

// RateLimitMiddleware drops updates that a sender sends faster than
// opts.Interval. Updates without a sender always pass.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	l := &limiter{interval: opts.Interval, seen: make(map[int64]time.Time)}
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := tghelpers.SenderID(c)
			if sender == 0 || l.interval <= 0 {
				return next(c)
			}
			if _, skip := opts.Exclude[UpdateKind(c.Update())]; skip {
				return next(c)
			}
			if l.allow(sender, time.Now()) {
				return next(c)
			}
			logger.TG.WarnContext(tghelpers.BuildContext(c), "update rate limited",
				slog.String("event", "tg.rate_limit"),
				slog.Duration("interval", l.interval),
			)
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
