package bot

import (
	"bytes"
	"context"
	"errors"
	"sync"

	"github.com/m3rciful/shopbot/core/telegram/keyboard"
	"github.com/m3rciful/shopbot/core/telegram/middleware"
	tgsender "github.com/m3rciful/shopbot/core/telegram/sender"
	"github.com/m3rciful/shopbot/internal/shop"

	tele "gopkg.in/telebot.v4"
)

// ErrNotBound is returned by Sender.Send before the bot is running.
var ErrNotBound = errors.New("bot: sender not bound")

// Sender delivers shop replies through the async dispatcher. Replies to one
// chat share a dispatcher worker and keep their order.
type Sender struct {
	mu         sync.RWMutex
	bot        *tele.Bot
	dispatcher *tgsender.Dispatcher
}

// Bind attaches the running bot and dispatcher.
func (s *Sender) Bind(bot *tele.Bot, d *tgsender.Dispatcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bot = bot
	s.dispatcher = d
}

func (s *Sender) bound() (*tele.Bot, *tgsender.Dispatcher) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bot, s.dispatcher
}

// Send enqueues r. The returned error covers enqueueing only; delivery
// failures are reported by the dispatcher.
func (s *Sender) Send(ctx context.Context, r shop.Reply) error {
	bot, d := s.bound()
	if bot == nil || d == nil {
		return ErrNotBound
	}
	action, endpoint, run := buildSend(bot, r)
	if err := d.Enqueue(ctx, r.ChatID, action, endpoint, run); err != nil {
		return err
	}
	countReply(ctx, r)
	return nil
}

// buildSend returns the dispatcher job for r.
func buildSend(bot *tele.Bot, r shop.Reply) (action, endpoint string, run func() error) {
	to := tele.ChatID(r.ChatID)
	if doc := r.Document; doc != nil {
		return "document", "sendDocument", func() error {
			_, err := bot.Send(to, &tele.Document{
				File:     tele.FromReader(bytes.NewReader(doc.Data)),
				FileName: doc.Name,
				Caption:  doc.Caption,
			})
			return err
		}
	}
	opts := sendOptions(r)
	return "reply", "sendMessage", func() error {
		_, err := bot.Send(to, r.Text, opts)
		return err
	}
}

func sendOptions(r shop.Reply) *tele.SendOptions {
	opts := &tele.SendOptions{}
	if r.Markdown {
		opts.ParseMode = tele.ModeMarkdown
	}
	switch {
	case r.Buttons == nil:
	case len(r.Buttons) == 0:
		opts.ReplyMarkup = keyboard.RemoveKeyboard()
	default:
		opts.ReplyMarkup = keyboard.ReplyButtons(r.Buttons...)
	}
	return opts
}

type updateKey struct{}

// withUpdate lets Send count replies against the handler summary of c.
func withUpdate(ctx context.Context, c tele.Context) context.Context {
	return context.WithValue(ctx, updateKey{}, c)
}

func countReply(ctx context.Context, r shop.Reply) {
	c, ok := ctx.Value(updateKey{}).(tele.Context)
	if !ok {
		return
	}
	middleware.AddCounters(c, 1, r.Buttons != nil)
}
