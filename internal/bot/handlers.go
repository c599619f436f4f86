// Package bot adapts the shop state machine to Telegram.
package bot

import (
	"context"
	"strings"

	tg "github.com/m3rciful/shopbot/core/telegram"
	"github.com/m3rciful/shopbot/core/telegram/commands"
	tghelpers "github.com/m3rciful/shopbot/core/telegram/helpers"
	"github.com/m3rciful/shopbot/core/telegram/router"
	"github.com/m3rciful/shopbot/internal/shop"

	tele "gopkg.in/telebot.v4"
)

// Handlers turns Telegram updates into shop machine calls.
type Handlers struct {
	machine *shop.Machine
}

// NewHandlers returns handlers bound to m.
func NewHandlers(m *shop.Machine) *Handlers {
	return &Handlers{machine: m}
}

type chatAction func(ctx context.Context, chatID int64) error

func (h *Handlers) wrap(fn chatAction) tele.HandlerFunc {
	return func(c tele.Context) error {
		chat := c.Chat()
		if chat == nil {
			return nil
		}
		return fn(withUpdate(tghelpers.BuildContext(c), c), chat.ID)
	}
}

// Register adds the shop commands to reg.
func (h *Handlers) Register(reg *tg.Registry) {
	reg.RegisterCommand(shop.CmdStart, commands.Command{
		Handler:     h.wrap(h.machine.Start),
		Description: "Начать заказ",
	})
	reg.RegisterCommand(shop.CmdAdmin, commands.Command{
		Handler:     h.wrap(h.machine.Admin),
		Description: "Админ-меню",
		AdminOnly:   true,
	})
	reg.RegisterCommand("/mybonus", commands.Command{
		Handler:     h.wrap(h.machine.MyBonus),
		Description: "Мои бонусы",
	})
	reg.RegisterCommand("/myorders", commands.Command{
		Handler:     h.wrap(h.machine.MyOrders),
		Description: "Мои заказы",
	})
	reg.RegisterCommand("/referral", commands.Command{
		Handler:     h.wrap(h.machine.Referral),
		Description: "Реферальный код",
	})
	reg.RegisterCommand("/payment_status", commands.Command{
		Handler:     h.paymentStatus,
		Description: "Статус оплаты заказа",
		Aliases:     []string{"status"},
	})
	reg.RegisterCommand("/export", commands.Command{
		Handler:     h.wrap(h.machine.ExportOrders),
		Description: "Выгрузить заказы",
		AdminOnly:   true,
		Hidden:      true,
	})
}

// CommandOptions returns the admin gate for registered commands.
func (h *Handlers) CommandOptions() router.CommandRouteOptions {
	return router.CommandRouteOptions{
		IsAdmin:       h.machine.IsAdmin,
		OnAdminReject: h.wrap(h.machine.DenyAdmin),
	}
}

// TextOptions returns the fallbacks for updates the machine does not read
// and the admin gate for commands typed as text.
func (h *Handlers) TextOptions() router.TextOptions {
	return router.TextOptions{
		UnknownDocument: h.wrap(h.machine.Unknown),
		IsAdmin:         h.machine.IsAdmin,
		OnAdminReject:   h.wrap(h.machine.DenyAdmin),
	}
}

// HandleText feeds free text to the machine.
func (h *Handlers) HandleText(c tele.Context) error {
	chat := c.Chat()
	if chat == nil {
		return nil
	}
	ctx := withUpdate(tghelpers.BuildContext(c), c)
	return h.machine.HandleText(ctx, chat.ID, c.Text())
}

func (h *Handlers) paymentStatus(c tele.Context) error {
	chat := c.Chat()
	if chat == nil {
		return nil
	}
	ctx := withUpdate(tghelpers.BuildContext(c), c)
	return h.machine.PaymentStatus(ctx, chat.ID, commandArgs(c))
}

// commandArgs returns the text after the command word. Telebot fills the
// payload only for routes matched by endpoint, not for aliases.
func commandArgs(c tele.Context) string {
	if msg := c.Message(); msg != nil && msg.Payload != "" {
		return msg.Payload
	}
	text := strings.TrimSpace(c.Text())
	if i := strings.IndexAny(text, " \n\t"); i >= 0 {
		return strings.TrimSpace(text[i+1:])
	}
	return ""
}
