package shop

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/m3rciful/shopbot/core/telegram/format"
	"github.com/m3rciful/shopbot/internal/ledger"
)

// MyBonus reports the caller's bonus balance. No accrual rule exists, so
// the balance is always zero.
func (m *Machine) MyBonus(ctx context.Context, chatID int64) error {
	m.send(ctx, Reply{ChatID: chatID, Text: fmt.Sprintf(textMyBonus, 0)})
	return nil
}

// MyOrders lists the caller's orders.
func (m *Machine) MyOrders(ctx context.Context, chatID int64) error {
	orders, err := m.ledger.ListForChat(ctx, chatID)
	if err != nil {
		return m.fail(ctx, chatID, err)
	}
	if len(orders) == 0 {
		m.send(ctx, Reply{ChatID: chatID, Text: textNoMyOrders})
		return nil
	}
	for _, text := range orderPages(textMyOrdersTitle, orders) {
		m.send(ctx, Reply{ChatID: chatID, Text: text})
	}
	return nil
}

// Referral shows the caller's referral code, which is the chat id. The first
// request in the process lifetime announces the assignment.
func (m *Machine) Referral(ctx context.Context, chatID int64) error {
	if _, seen := m.referrals.LoadOrStore(chatID, struct{}{}); seen {
		m.send(ctx, Reply{ChatID: chatID, Text: fmt.Sprintf(textReferral, chatID)})
		return nil
	}
	m.send(ctx, Reply{ChatID: chatID, Text: fmt.Sprintf(textReferralNew, chatID)})
	return nil
}

// Unknown answers input that is not text, such as files. The session is kept.
func (m *Machine) Unknown(ctx context.Context, chatID int64) error {
	m.send(ctx, Reply{ChatID: chatID, Text: textUnknown})
	return nil
}

// PaymentStatus reports the status of one of the caller's orders. args is
// the command payload; orders of other chats are reported as not found.
func (m *Machine) PaymentStatus(ctx context.Context, chatID int64, args string) error {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		m.send(ctx, Reply{ChatID: chatID, Text: textPaymentUsage})
		return nil
	}
	id, err := ParseOrderID(fields[0])
	if err != nil {
		m.send(ctx, Reply{ChatID: chatID, Text: textPaymentUsage})
		return nil
	}
	o, err := m.ledger.FindByID(ctx, id)
	if errors.Is(err, ledger.ErrNotFound) || (err == nil && o.ChatID != chatID) {
		m.send(ctx, Reply{ChatID: chatID, Text: textOrderNotFound})
		return nil
	}
	if err != nil {
		return m.fail(ctx, chatID, err)
	}
	m.send(ctx, Reply{ChatID: chatID, Text: fmt.Sprintf(textPaymentStatus, o.ID, o.Status.Title())})
	return nil
}

// paymentDetails renders the Markdown block with the transfer details of
// the payment method chosen for o.
func (m *Machine) paymentDetails(o ledger.Order) string {
	details := ""
	if pm, ok := m.catalog.FindPaymentMethod(o.PaymentMethod); ok {
		details = pm.Details
	}
	return fmt.Sprintf(textPaymentDetails,
		format.Bold(textDetailsTitle),
		format.Bold(textDetailsOrderID), format.Code(strconv.FormatInt(o.ID, 10)),
		format.Bold(textDetailsProduct), format.Code(o.Product.Name),
		format.Bold(textDetailsSum), format.Code(fmt.Sprintf("%d ₽", o.Product.Price)),
		format.Bold(textDetailsMethod), format.Code(o.PaymentMethod),
		format.Bold(textDetailsRequisit), format.Code(details),
	)
}

// orderPages renders one line per order under title, split into messages
// that fit the Telegram length limit. Every page carries at least one order
// line and over-long lines are clipped.
func orderPages(title string, orders []ledger.Order) []string {
	var (
		pages []string
		b     strings.Builder
		lines int
	)
	maxLine := maxMessageLen - len(title) - 2
	b.WriteString(title)
	b.WriteString("\n")
	for _, o := range orders {
		line := clip(fmt.Sprintf(textOrderLine, o.ID, o.Status.Title(), o.Product.Name, o.Product.Price), maxLine)
		if lines > 0 && b.Len()+len(line)+1 > maxMessageLen {
			pages = append(pages, b.String())
			b.Reset()
			lines = 0
		}
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString(line)
		lines++
	}
	pages = append(pages, strings.TrimRight(b.String(), "\n"))
	return pages
}

// clip cuts s to at most n bytes on a rune boundary, marking the cut.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	const mark = "…"
	cut := n - len(mark)
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + mark
}
