package shop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/m3rciful/shopbot/core/logger"
	"github.com/m3rciful/shopbot/core/telegram/keyboard"
	"github.com/m3rciful/shopbot/internal/catalog"
	"github.com/m3rciful/shopbot/internal/export"
	"github.com/m3rciful/shopbot/internal/ledger"
	"github.com/m3rciful/shopbot/internal/session"
)

var (
	// ErrBadFormat is returned for admin input that does not follow its grammar.
	ErrBadFormat = errors.New("shop: bad input format")
	// ErrNameTooLong is returned for product names over maxProductNameLen runes.
	ErrNameTooLong = fmt.Errorf("%w: product name too long", ErrBadFormat)
)

var adminMenu = []string{
	BtnAdminOrders,
	BtnAdminConfirmPay,
	BtnAdminCancelOrder,
	BtnAdminAddProduct,
	BtnAdminDeleteProduct,
	BtnAdminExport,
	BtnHome,
}

// Admin shows the admin menu and leaves the chat idle. Callers outside the
// admin list get the permission-denied reply.
func (m *Machine) Admin(ctx context.Context, chatID int64) error {
	if !m.IsAdmin(chatID) {
		return m.DenyAdmin(ctx, chatID)
	}
	unlock := m.locks.Lock(chatID)
	defer unlock()

	if err := m.sessions.Clear(ctx, chatID); err != nil {
		return m.fail(ctx, chatID, err)
	}
	m.send(ctx, Reply{ChatID: chatID, Text: textAdminMenu, Buttons: keyboard.Chunk(adminMenu, buttonsPerRow)})
	return nil
}

// DenyAdmin sends the permission-denied reply.
func (m *Machine) DenyAdmin(ctx context.Context, chatID int64) error {
	m.send(ctx, Reply{ChatID: chatID, Text: textAdminDenied})
	return nil
}

// ExportOrders sends the whole ledger to an admin as an XLSX document.
func (m *Machine) ExportOrders(ctx context.Context, chatID int64) error {
	if !m.IsAdmin(chatID) {
		return m.DenyAdmin(ctx, chatID)
	}
	return m.exportOrders(ctx, chatID)
}

func (m *Machine) exportOrders(ctx context.Context, chatID int64) error {
	orders, err := m.ledger.ListAll(ctx)
	if err != nil {
		return m.fail(ctx, chatID, err)
	}
	if len(orders) == 0 {
		m.send(ctx, Reply{ChatID: chatID, Text: textNoOrders})
		return nil
	}
	data, err := export.OrdersXLSX(orders)
	if err != nil {
		return m.fail(ctx, chatID, err)
	}
	m.send(ctx, Reply{ChatID: chatID, Document: &Document{
		Name:    export.FileName(m.now()),
		Data:    data,
		Caption: fmt.Sprintf(textExportCaption, len(orders)),
	}})
	return nil
}

// onAdminButton handles admin menu buttons for an idle chat. It reports
// false when text is not an admin button.
func (m *Machine) onAdminButton(ctx context.Context, chatID int64, text string) (bool, error) {
	var (
		next   session.State
		prompt string
	)
	switch text {
	case BtnAdminOrders:
		return true, m.listOrders(ctx, chatID)
	case BtnAdminExport:
		return true, m.exportOrders(ctx, chatID)
	case BtnAdminConfirmPay:
		next, prompt = session.StateAdminConfirmPayment, textAskConfirmID
	case BtnAdminCancelOrder:
		next, prompt = session.StateAdminCancelOrder, textAskCancelID
	case BtnAdminAddProduct:
		next, prompt = session.StateAdminAddProduct, textAskAdd
	case BtnAdminDeleteProduct:
		next, prompt = session.StateAdminDeleteProduct, textAskDelete
	default:
		return false, nil
	}
	if err := m.save(ctx, session.Session{ChatID: chatID, State: next}); err != nil {
		return true, m.fail(ctx, chatID, err)
	}
	m.send(ctx, Reply{ChatID: chatID, Text: prompt})
	return true, nil
}

func (m *Machine) listOrders(ctx context.Context, chatID int64) error {
	orders, err := m.ledger.ListAll(ctx)
	if err != nil {
		return m.fail(ctx, chatID, err)
	}
	if len(orders) == 0 {
		m.send(ctx, Reply{ChatID: chatID, Text: textNoOrders})
		return nil
	}
	for _, text := range orderPages(textOrdersTitle, orders) {
		m.send(ctx, Reply{ChatID: chatID, Text: text})
	}
	return nil
}

func (m *Machine) onSetStatus(ctx context.Context, sess session.Session, text string, to ledger.Status) error {
	id, err := ParseOrderID(text)
	if err != nil {
		m.send(ctx, Reply{ChatID: sess.ChatID, Text: textBadOrderID})
		return nil
	}
	ctx = logger.WithOrderID(ctx, id)
	o, err := m.ledger.SetStatus(ctx, id, to)
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		m.send(ctx, Reply{ChatID: sess.ChatID, Text: textOrderIDNotFound})
		return nil
	case errors.Is(err, ledger.ErrInvalidTransition):
		m.send(ctx, Reply{ChatID: sess.ChatID, Text: fmt.Sprintf(textAlreadyFinal, id, o.Status.Title())})
		return nil
	case err != nil:
		return m.fail(ctx, sess.ChatID, err)
	}

	m.metrics.StatusChanged(string(to))
	if err := m.sessions.Clear(ctx, sess.ChatID); err != nil {
		return m.fail(ctx, sess.ChatID, err)
	}
	confirm, owner := textPaymentConfirmed, textOwnerPaid
	if to == ledger.StatusCanceled {
		confirm, owner = textPaymentCanceled, textOwnerCanceled
	}
	m.send(ctx, Reply{ChatID: o.ChatID, Text: fmt.Sprintf(owner, o.ID)})
	m.send(ctx, Reply{ChatID: sess.ChatID, Text: fmt.Sprintf(confirm, o.ID)})
	return nil
}

func (m *Machine) onAddProduct(ctx context.Context, sess session.Session, text string) error {
	city, p, err := ParseProductLine(text)
	if errors.Is(err, ErrNameTooLong) {
		m.send(ctx, Reply{ChatID: sess.ChatID, Text: fmt.Sprintf(textProductNameTooLong, maxProductNameLen)})
		return nil
	}
	if err != nil {
		m.send(ctx, Reply{ChatID: sess.ChatID, Text: textBadProductLine})
		return nil
	}
	err = m.catalog.AddProduct(city, p)
	switch {
	case errors.Is(err, catalog.ErrCityNotFound):
		m.send(ctx, Reply{ChatID: sess.ChatID, Text: textCityNotFound})
		return nil
	case errors.Is(err, catalog.ErrDuplicateProduct):
		m.send(ctx, Reply{ChatID: sess.ChatID, Text: fmt.Sprintf(textProductDuplicate, p.Name, city)})
		return nil
	case err != nil:
		m.send(ctx, Reply{ChatID: sess.ChatID, Text: textBadProductLine})
		return nil
	}

	logger.SVCCatalog.InfoContext(ctx, "product added",
		slog.String("event", "catalog.add"),
		slog.String("status", "ok"),
		slog.Int64("chat_id", sess.ChatID),
		slog.String("city", city),
		slog.String("product", p.Name),
		slog.Int64("price", p.Price),
	)
	m.metrics.CatalogChanged("add")
	return m.finishCatalogEdit(ctx, sess.ChatID, fmt.Sprintf(textProductAdded, p.Name, city))
}

func (m *Machine) onDeleteProduct(ctx context.Context, sess session.Session, text string) error {
	name := strings.TrimSpace(text)
	city, err := m.catalog.DeleteProduct(name)
	if errors.Is(err, catalog.ErrProductNotFound) {
		m.send(ctx, Reply{ChatID: sess.ChatID, Text: textProductMissing})
		return nil
	}
	if err != nil {
		return m.fail(ctx, sess.ChatID, err)
	}

	logger.SVCCatalog.InfoContext(ctx, "product deleted",
		slog.String("event", "catalog.delete"),
		slog.String("status", "ok"),
		slog.Int64("chat_id", sess.ChatID),
		slog.String("city", city),
		slog.String("product", name),
	)
	m.metrics.CatalogChanged("delete")
	return m.finishCatalogEdit(ctx, sess.ChatID, fmt.Sprintf(textProductDeleted, name, city))
}

// finishCatalogEdit ends the sub-flow, persists the catalog when configured
// and confirms the edit.
func (m *Machine) finishCatalogEdit(ctx context.Context, chatID int64, confirm string) error {
	if err := m.sessions.Clear(ctx, chatID); err != nil {
		return m.fail(ctx, chatID, err)
	}
	m.send(ctx, Reply{ChatID: chatID, Text: confirm})
	if m.persist == nil {
		return nil
	}
	if err := m.persist(); err != nil {
		logger.SVCCatalog.ErrorContext(ctx, "catalog persist failed",
			slog.String("event", "catalog.persist"),
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		m.send(ctx, Reply{ChatID: chatID, Text: textSaveFailed})
	}
	return nil
}

// ParseOrderID parses a bare positive decimal order id.
func ParseOrderID(text string) (int64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, ErrBadFormat
	}
	for _, r := range text {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("%w: order id %q", ErrBadFormat, text)
		}
	}
	id, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: order id %q", ErrBadFormat, text)
	}
	return id, nil
}

// ParseProductLine parses "<name>, <price>, <city>". Fields are trimmed, the
// name and city must be non-empty and the price a non-negative integer. Names
// longer than maxProductNameLen runes fail with ErrNameTooLong.
func ParseProductLine(text string) (string, catalog.Product, error) {
	parts := strings.Split(text, ",")
	if len(parts) != 3 {
		return "", catalog.Product{}, fmt.Errorf("%w: want 3 comma-separated fields, got %d", ErrBadFormat, len(parts))
	}
	name := strings.TrimSpace(parts[0])
	city := strings.TrimSpace(parts[2])
	if name == "" || city == "" {
		return "", catalog.Product{}, fmt.Errorf("%w: empty name or city", ErrBadFormat)
	}
	if n := utf8.RuneCountInString(name); n > maxProductNameLen {
		return "", catalog.Product{}, fmt.Errorf("%w: %d runes", ErrNameTooLong, n)
	}
	price, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil || price < 0 {
		return "", catalog.Product{}, fmt.Errorf("%w: price %q", ErrBadFormat, strings.TrimSpace(parts[1]))
	}
	return city, catalog.Product{Name: name, Price: price}, nil
}
