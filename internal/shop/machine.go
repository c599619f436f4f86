package shop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/shopbot/core/logger"
	"github.com/m3rciful/shopbot/core/telegram/keyboard"
	"github.com/m3rciful/shopbot/internal/catalog"
	"github.com/m3rciful/shopbot/internal/ledger"
	"github.com/m3rciful/shopbot/internal/metrics"
	"github.com/m3rciful/shopbot/internal/session"
)

// buttonsPerRow matches the two-column reply keyboards of the menu.
const buttonsPerRow = 2

// Document is a file attached to a reply.
type Document struct {
	Name    string
	Data    []byte
	Caption string
}

// Reply is one outbound message. Buttons, when non-nil, replace the chat's
// reply keyboard row by row; an empty non-nil slice removes it.
type Reply struct {
	ChatID   int64
	Text     string
	Buttons  [][]string
	Markdown bool
	Document *Document
}

// Sender delivers replies. Delivery is fire-and-forget: errors are logged
// and counted by the machine, never shown to users.
type Sender interface {
	Send(ctx context.Context, r Reply) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, r Reply) error

// Send calls f(ctx, r).
func (f SenderFunc) Send(ctx context.Context, r Reply) error { return f(ctx, r) }

// Options wires the machine to its collaborators.
type Options struct {
	Catalog  *catalog.Catalog
	Sessions session.Store
	Ledger   *ledger.Ledger
	Sender   Sender
	// Admins lists the chat ids allowed into the admin menu.
	Admins []int64
	// Persist, when set, runs after every successful catalog edit.
	Persist func() error
	Metrics *metrics.Metrics
}

// Machine routes each chat's messages through its session state.
type Machine struct {
	catalog  *catalog.Catalog
	sessions session.Store
	ledger   *ledger.Ledger
	sender   Sender
	admins   map[int64]struct{}
	adminIDs []int64
	persist  func() error
	metrics  *metrics.Metrics
	now      func() time.Time

	locks     session.Locks
	referrals sync.Map
}

// New validates opts and returns a Machine.
func New(opts Options) (*Machine, error) {
	switch {
	case opts.Catalog == nil:
		return nil, errors.New("shop: nil catalog")
	case opts.Sessions == nil:
		return nil, errors.New("shop: nil session store")
	case opts.Ledger == nil:
		return nil, errors.New("shop: nil ledger")
	case opts.Sender == nil:
		return nil, errors.New("shop: nil sender")
	}
	m := &Machine{
		catalog:  opts.Catalog,
		sessions: opts.Sessions,
		ledger:   opts.Ledger,
		sender:   opts.Sender,
		admins:   make(map[int64]struct{}, len(opts.Admins)),
		persist:  opts.Persist,
		metrics:  opts.Metrics,
		now:      time.Now,
	}
	for _, id := range opts.Admins {
		if _, dup := m.admins[id]; dup {
			continue
		}
		m.admins[id] = struct{}{}
		m.adminIDs = append(m.adminIDs, id)
	}
	return m, nil
}

// IsAdmin reports whether chatID may use the admin menu.
func (m *Machine) IsAdmin(chatID int64) bool {
	_, ok := m.admins[chatID]
	return ok
}

// Start resets the chat's session and begins city selection.
func (m *Machine) Start(ctx context.Context, chatID int64) error {
	unlock := m.locks.Lock(chatID)
	defer unlock()

	sess := session.Session{ChatID: chatID, State: session.StateCity}
	if err := m.save(ctx, sess); err != nil {
		return m.fail(ctx, chatID, err)
	}
	m.send(ctx, Reply{
		ChatID:  chatID,
		Text:    textChooseCity,
		Buttons: withHome(m.catalog.Cities()),
	})
	return nil
}

// HandleText routes free text: the home button first, then the session
// state, then admin menu buttons for an idle admin chat.
func (m *Machine) HandleText(ctx context.Context, chatID int64, text string) error {
	unlock := m.locks.Lock(chatID)
	defer unlock()

	if text == BtnHome {
		return m.home(ctx, chatID)
	}

	sess, ok, err := m.sessions.Get(ctx, chatID)
	if err != nil {
		return m.fail(ctx, chatID, err)
	}
	if !ok {
		sess = session.Session{ChatID: chatID, State: session.StateNone}
	}
	if sess.State.Admin() && !m.IsAdmin(chatID) {
		if err := m.sessions.Clear(ctx, chatID); err != nil {
			return m.fail(ctx, chatID, err)
		}
		m.send(ctx, Reply{ChatID: chatID, Text: textAdminDenied})
		return nil
	}

	switch sess.State {
	case session.StateCity:
		return m.onCity(ctx, sess, text)
	case session.StateDistrict:
		return m.onDistrict(ctx, sess, text)
	case session.StateProduct:
		return m.onProduct(ctx, sess, text)
	case session.StatePayment:
		return m.onPayment(ctx, sess, text)
	case session.StateConfirm:
		return m.onConfirm(ctx, sess, text)
	case session.StateAdminConfirmPayment:
		return m.onSetStatus(ctx, sess, text, ledger.StatusPaid)
	case session.StateAdminCancelOrder:
		return m.onSetStatus(ctx, sess, text, ledger.StatusCanceled)
	case session.StateAdminAddProduct:
		return m.onAddProduct(ctx, sess, text)
	case session.StateAdminDeleteProduct:
		return m.onDeleteProduct(ctx, sess, text)
	case session.StateNone:
	}

	if m.IsAdmin(chatID) {
		if handled, err := m.onAdminButton(ctx, chatID, text); handled {
			return err
		}
	}
	m.send(ctx, Reply{ChatID: chatID, Text: textUnknown})
	return nil
}

func (m *Machine) home(ctx context.Context, chatID int64) error {
	if err := m.sessions.Clear(ctx, chatID); err != nil {
		return m.fail(ctx, chatID, err)
	}
	buttons := []string{CmdStart}
	if m.IsAdmin(chatID) {
		buttons = append(buttons, CmdAdmin)
	}
	m.send(ctx, Reply{ChatID: chatID, Text: textMainMenu, Buttons: keyboard.Chunk(buttons, buttonsPerRow)})
	return nil
}

func (m *Machine) onCity(ctx context.Context, sess session.Session, text string) error {
	if !m.catalog.HasCity(text) {
		m.send(ctx, Reply{ChatID: sess.ChatID, Text: textCityNotFound})
		return nil
	}
	sess.City = text
	sess.State = session.StateDistrict
	if err := m.save(ctx, sess); err != nil {
		return m.fail(ctx, sess.ChatID, err)
	}
	m.send(ctx, Reply{
		ChatID:  sess.ChatID,
		Text:    textChooseDistrict,
		Buttons: withHome(m.catalog.Districts(sess.City)),
	})
	return nil
}

func (m *Machine) onDistrict(ctx context.Context, sess session.Session, text string) error {
	if !m.catalog.HasDistrict(sess.City, text) {
		m.send(ctx, Reply{ChatID: sess.ChatID, Text: textDistrictNotFound})
		return nil
	}
	sess.District = text
	sess.State = session.StateProduct
	if err := m.save(ctx, sess); err != nil {
		return m.fail(ctx, sess.ChatID, err)
	}
	products := m.catalog.Products(sess.City)
	names := make([]string, 0, len(products))
	for _, p := range products {
		names = append(names, p.Name)
	}
	m.send(ctx, Reply{ChatID: sess.ChatID, Text: textChooseProduct, Buttons: withHome(names)})
	return nil
}

func (m *Machine) onProduct(ctx context.Context, sess session.Session, text string) error {
	p, ok := m.catalog.FindProduct(sess.City, text)
	if !ok {
		m.send(ctx, Reply{ChatID: sess.ChatID, Text: textProductNotFound})
		return nil
	}
	sess.Product = &p
	sess.State = session.StatePayment
	if err := m.save(ctx, sess); err != nil {
		return m.fail(ctx, sess.ChatID, err)
	}
	methods := m.catalog.PaymentMethods()
	names := make([]string, 0, len(methods))
	for _, pm := range methods {
		names = append(names, pm.Method)
	}
	m.send(ctx, Reply{ChatID: sess.ChatID, Text: textChoosePayment, Buttons: withHome(names)})
	return nil
}

func (m *Machine) onPayment(ctx context.Context, sess session.Session, text string) error {
	pm, ok := m.catalog.FindPaymentMethod(text)
	if !ok {
		m.send(ctx, Reply{ChatID: sess.ChatID, Text: textMethodNotFound})
		return nil
	}
	sess.PaymentMethod = pm.Method
	sess.State = session.StateConfirm
	if err := m.save(ctx, sess); err != nil {
		return m.fail(ctx, sess.ChatID, err)
	}
	m.send(ctx, Reply{
		ChatID:  sess.ChatID,
		Text:    fmt.Sprintf(textConfirmOrder, sess.Product.Name, sess.Product.Price),
		Buttons: keyboard.Chunk([]string{BtnConfirm, BtnCancel, BtnHome}, buttonsPerRow),
	})
	return nil
}

func (m *Machine) onConfirm(ctx context.Context, sess session.Session, text string) error {
	switch text {
	case BtnConfirm:
		return m.submit(ctx, sess)
	case BtnCancel:
		if err := m.sessions.Clear(ctx, sess.ChatID); err != nil {
			return m.fail(ctx, sess.ChatID, err)
		}
		logger.SVCSessions.DebugContext(ctx, "order abandoned",
			slog.String("event", "session.cancel"),
			slog.Int64("chat_id", sess.ChatID),
		)
		m.send(ctx, Reply{ChatID: sess.ChatID, Text: textOrderCanceled, Buttons: [][]string{{BtnHome}}})
		return nil
	}
	m.send(ctx, Reply{ChatID: sess.ChatID, Text: textUnknown})
	return nil
}

func (m *Machine) submit(ctx context.Context, sess session.Session) error {
	if sess.Product == nil || sess.City == "" || sess.District == "" || sess.PaymentMethod == "" {
		// A confirm session is always complete; anything else is a corrupt store entry.
		if err := m.sessions.Clear(ctx, sess.ChatID); err != nil {
			logger.SVCSessions.ErrorContext(ctx, "session clear failed",
				slog.String("event", "session.clear"),
				slog.Int64("chat_id", sess.ChatID),
				slog.String("err", err.Error()),
			)
		}
		return m.fail(ctx, sess.ChatID, fmt.Errorf("shop: incomplete session in state %s", sess.State))
	}
	o, err := m.ledger.Submit(ctx, ledger.Draft{
		ChatID:        sess.ChatID,
		City:          sess.City,
		District:      sess.District,
		Product:       *sess.Product,
		PaymentMethod: sess.PaymentMethod,
	})
	if err != nil {
		return m.fail(ctx, sess.ChatID, err)
	}
	ctx = logger.WithOrderID(ctx, o.ID)
	m.metrics.OrderSubmitted()
	if err := m.sessions.Clear(ctx, sess.ChatID); err != nil {
		logger.SVCSessions.ErrorContext(ctx, "session clear failed",
			slog.String("event", "session.clear"),
			slog.String("err", err.Error()),
		)
	}

	details := m.paymentDetails(o)
	m.send(ctx, Reply{
		ChatID:   o.ChatID,
		Text:     fmt.Sprintf(textOrderPlaced, o.ID) + "\n\n" + details,
		Markdown: true,
	})
	m.send(ctx, Reply{ChatID: o.ChatID, Text: textAwaitingAdmin, Buttons: [][]string{{BtnHome}}})

	notice := fmt.Sprintf(textNewOrder, o.ID, o.City, o.District, o.Product.Name, o.Product.Price, o.PaymentMethod, o.ChatID)
	for _, admin := range m.adminIDs {
		m.send(ctx, Reply{ChatID: admin, Text: notice})
	}
	return nil
}

// save stores sess and logs the state it moved to.
func (m *Machine) save(ctx context.Context, sess session.Session) error {
	if err := m.sessions.Put(ctx, sess); err != nil {
		return err
	}
	logger.SVCSessions.DebugContext(ctx, "session state",
		slog.String("event", "session.state"),
		slog.Int64("chat_id", sess.ChatID),
		slog.String("state", string(sess.State)),
	)
	return nil
}

// send delivers r and swallows delivery errors after logging them.
func (m *Machine) send(ctx context.Context, r Reply) {
	if err := m.sender.Send(ctx, r); err != nil {
		m.metrics.DeliveryFailed("enqueue")
		logger.SVCSessions.WarnContext(ctx, "reply dropped",
			slog.String("event", "reply.drop"),
			slog.Int64("chat_id", r.ChatID),
			slog.String("err", err.Error()),
		)
	}
}

// fail tells the user something went wrong and returns err for the handler summary.
func (m *Machine) fail(ctx context.Context, chatID int64, err error) error {
	m.send(ctx, Reply{ChatID: chatID, Text: textInternalError})
	return err
}

func withHome(labels []string) [][]string {
	all := make([]string, 0, len(labels)+1)
	all = append(all, labels...)
	all = append(all, BtnHome)
	return keyboard.Chunk(all, buttonsPerRow)
}
