package bot

import (
	"context"
	"errors"
	"sync"
	"testing"

	tg "github.com/m3rciful/shopbot/core/telegram"
	"github.com/m3rciful/shopbot/core/telegram/middleware"
	"github.com/m3rciful/shopbot/core/telegram/router"
	"github.com/m3rciful/shopbot/internal/catalog"
	"github.com/m3rciful/shopbot/internal/ledger"
	"github.com/m3rciful/shopbot/internal/session"
	"github.com/m3rciful/shopbot/internal/shop"

	tele "gopkg.in/telebot.v4"
)

const adminID int64 = 77

type sink struct {
	mu      sync.Mutex
	replies []shop.Reply
}

func (s *sink) Send(ctx context.Context, r shop.Reply) error {
	s.mu.Lock()
	s.replies = append(s.replies, r)
	s.mu.Unlock()
	countReply(ctx, r)
	return nil
}

func (s *sink) last(t *testing.T) shop.Reply {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.replies) == 0 {
		t.Fatal("no reply sent")
	}
	return s.replies[len(s.replies)-1]
}

func newHandlers(t *testing.T) (*Handlers, *sink) {
	t.Helper()
	cat, err := catalog.New(catalog.Document{
		Admins:         []int64{adminID},
		Cities:         []string{"Moscow"},
		Districts:      map[string][]string{"Moscow": {"Center"}},
		Products:       map[string][]catalog.Product{"Moscow": {{Name: "Tea", Price: 300}}},
		PaymentMethods: []catalog.PaymentMethod{{Method: "Card", Details: "2200"}},
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	out := &sink{}
	m, err := shop.New(shop.Options{
		Catalog:  cat,
		Sessions: session.NewMemoryStore(0),
		Ledger:   ledger.New(ledger.NewMemoryStore()),
		Sender:   out,
		Admins:   []int64{adminID},
	})
	if err != nil {
		t.Fatalf("machine: %v", err)
	}
	return NewHandlers(m), out
}

func newTestContext(t *testing.T, chatID int64, text string) tele.Context {
	t.Helper()
	bot, err := tele.NewBot(tele.Settings{Offline: true})
	if err != nil {
		t.Fatalf("offline bot: %v", err)
	}
	return bot.NewContext(tele.Update{
		ID: 1,
		Message: &tele.Message{
			Chat:   &tele.Chat{ID: chatID, Type: tele.ChatPrivate},
			Sender: &tele.User{ID: chatID},
			Text:   text,
		},
	})
}

func route(t *testing.T, routes []tg.Route, endpoint any) tele.HandlerFunc {
	t.Helper()
	for _, r := range routes {
		if r.Endpoint == endpoint {
			return r.Handler
		}
	}
	t.Fatalf("route %v missing", endpoint)
	return nil
}

func TestRegisterCommands(t *testing.T) {
	h, _ := newHandlers(t)
	reg := tg.NewRegistry()
	h.Register(reg)

	cmds := reg.Commands()
	for _, name := range []string{"/start", "/admin", "/mybonus", "/myorders", "/referral", "/payment_status", "/export"} {
		if _, ok := cmds[name]; !ok {
			t.Fatalf("command %s not registered", name)
		}
	}
	if !cmds["/admin"].AdminOnly || !cmds["/export"].Hidden {
		t.Fatal("admin commands must be gated")
	}
	for _, c := range reg.ListCommands(true) {
		if c.Text == "admin" || c.Text == "export" {
			t.Fatalf("admin command %q shown in menu", c.Text)
		}
	}
}

func TestStartThenTextDrivesMachine(t *testing.T) {
	h, out := newHandlers(t)
	reg := tg.NewRegistry()
	h.Register(reg)
	text := route(t, router.TextRoutes(h, reg, h.TextOptions()), tele.OnText)

	start := newTestContext(t, 5, "/start")
	if err := text(start); err != nil {
		t.Fatal(err)
	}
	if r := out.last(t); r.ChatID != 5 || len(r.Buttons) == 0 {
		t.Fatalf("start reply = %+v", r)
	}
	if n, kb := middleware.GetCounters(start); n != 1 || !kb {
		t.Fatalf("counters = %d, %v", n, kb)
	}

	if err := text(newTestContext(t, 5, "Moscow")); err != nil {
		t.Fatal(err)
	}
	if r := out.last(t); r.Text != "📍 Выберите ваш район:" {
		t.Fatalf("district prompt = %q", r.Text)
	}
}

func TestAdminCommandRejectsBuyers(t *testing.T) {
	h, out := newHandlers(t)
	reg := tg.NewRegistry()
	h.Register(reg)
	admin := route(t, router.CommandRoutes(reg, h.CommandOptions()), "/admin")

	if err := admin(newTestContext(t, 5, "/admin")); err != nil {
		t.Fatal(err)
	}
	if r := out.last(t); r.Text != "❌ У вас нет прав доступа к админ-меню." {
		t.Fatalf("buyer reply = %q", r.Text)
	}
	if err := admin(newTestContext(t, adminID, "/admin")); err != nil {
		t.Fatal(err)
	}
	if r := out.last(t); r.Text != "🔧 Админ-меню:" {
		t.Fatalf("admin reply = %q", r.Text)
	}
}

func TestAdminCommandAsTextRejectsBuyers(t *testing.T) {
	h, out := newHandlers(t)
	reg := tg.NewRegistry()
	h.Register(reg)
	text := route(t, router.TextRoutes(h, reg, h.TextOptions()), tele.OnText)

	if err := text(newTestContext(t, 5, "/export now")); err != nil {
		t.Fatal(err)
	}
	if r := out.last(t); r.Text != "❌ У вас нет прав доступа к админ-меню." || r.Document != nil {
		t.Fatalf("buyer reply = %+v", r)
	}
	if err := text(newTestContext(t, adminID, "/admin")); err != nil {
		t.Fatal(err)
	}
	if r := out.last(t); r.Text != "🔧 Админ-меню:" {
		t.Fatalf("admin reply = %q", r.Text)
	}
}

func TestCommandArgs(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"/payment_status 12", "12"},
		{"/status   7 ", "7"},
		{"/payment_status", ""},
		{"/payment_status\n3", "3"},
	}
	for _, tt := range tests {
		if got := commandArgs(newTestContext(t, 1, tt.text)); got != tt.want {
			t.Errorf("commandArgs(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestUnknownDocument(t *testing.T) {
	h, out := newHandlers(t)
	doc := route(t, router.TextRoutes(h, nil, h.TextOptions()), tele.OnDocument)
	if err := doc(newTestContext(t, 5, "")); err != nil {
		t.Fatal(err)
	}
	if r := out.last(t); r.Text != "❓ Неизвестная команда. Используйте кнопки ниже." {
		t.Fatalf("reply = %q", r.Text)
	}
}

func TestSenderRequiresBind(t *testing.T) {
	var s Sender
	err := s.Send(context.Background(), shop.Reply{ChatID: 1, Text: "hi"})
	if !errors.Is(err, ErrNotBound) {
		t.Fatalf("err = %v, want ErrNotBound", err)
	}
}

func TestBuildSend(t *testing.T) {
	bot, err := tele.NewBot(tele.Settings{Offline: true})
	if err != nil {
		t.Fatal(err)
	}
	action, endpoint, run := buildSend(bot, shop.Reply{ChatID: 1, Text: "hi"})
	if action != "reply" || endpoint != "sendMessage" || run == nil {
		t.Fatalf("text job = %s %s", action, endpoint)
	}
	action, endpoint, _ = buildSend(bot, shop.Reply{ChatID: 1, Document: &shop.Document{Name: "a.xlsx"}})
	if action != "document" || endpoint != "sendDocument" {
		t.Fatalf("document job = %s %s", action, endpoint)
	}
}

func TestSendOptions(t *testing.T) {
	opts := sendOptions(shop.Reply{Markdown: true, Buttons: [][]string{{"a", "b"}, {"c"}}})
	if opts.ParseMode != tele.ModeMarkdown {
		t.Fatalf("parse mode = %q", opts.ParseMode)
	}
	if opts.ReplyMarkup == nil || len(opts.ReplyMarkup.ReplyKeyboard) != 2 {
		t.Fatalf("markup = %+v", opts.ReplyMarkup)
	}
	if plain := sendOptions(shop.Reply{}); plain.ParseMode != "" || plain.ReplyMarkup != nil {
		t.Fatalf("plain options = %+v", plain)
	}
	if removed := sendOptions(shop.Reply{Buttons: [][]string{}}); removed.ReplyMarkup == nil || !removed.ReplyMarkup.RemoveKeyboard {
		t.Fatalf("empty buttons must remove the keyboard: %+v", removed.ReplyMarkup)
	}
}
