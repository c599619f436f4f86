package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/shopbot/core/logger"
	"github.com/m3rciful/shopbot/internal/catalog"
)

var (
	// ErrNotFound is returned when no order has the requested id.
	ErrNotFound = errors.New("ledger: order not found")
	// ErrInvalidTransition is returned when the order status does not allow the change.
	ErrInvalidTransition = errors.New("ledger: invalid status transition")
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending  Status = "pending"
	StatusPaid     Status = "paid"
	StatusCanceled Status = "canceled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusCanceled:
		return true
	}
	return false
}

// Title is the status label shown to users.
func (s Status) Title() string {
	switch s {
	case StatusPending:
		return "Ожидает подтверждения"
	case StatusPaid:
		return "Оплачено"
	case StatusCanceled:
		return "Отменён"
	}
	return string(s)
}

// CanTransition reports whether an order may move from one status to another.
// Only pending orders change; paid and canceled are terminal.
func CanTransition(from, to Status) bool {
	return from == StatusPending && (to == StatusPaid || to == StatusCanceled)
}

// Order is a submitted purchase. Product is a snapshot taken at submission.
type Order struct {
	ID            int64
	ChatID        int64
	City          string
	District      string
	Product       catalog.Product
	PaymentMethod string
	Status        Status
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Draft carries the fields of an order about to be submitted.
type Draft struct {
	ChatID        int64
	City          string
	District      string
	Product       catalog.Product
	PaymentMethod string
}

// Store persists orders. Implementations assign ids sequentially starting at
// 1 and never reuse them.
type Store interface {
	Append(ctx context.Context, d Draft, now time.Time) (Order, error)
	Get(ctx context.Context, id int64) (Order, error)
	// Transition moves order id from one status to another atomically. When
	// the order is not in from, it returns the current order and ErrInvalidTransition.
	Transition(ctx context.Context, id int64, from, to Status, now time.Time) (Order, error)
	List(ctx context.Context) ([]Order, error)
	ListByChat(ctx context.Context, chatID int64) ([]Order, error)
}

// Ledger is the authoritative list of orders and their statuses.
type Ledger struct {
	store Store
	now   func() time.Time
}

// New returns a Ledger backed by store.
func New(store Store) *Ledger {
	return &Ledger{store: store, now: time.Now}
}

// Submit appends a pending order built from d and returns it with its id.
func (l *Ledger) Submit(ctx context.Context, d Draft) (Order, error) {
	o, err := l.store.Append(ctx, d, l.now())
	if err != nil {
		logger.LogEvent(ctx, logger.SVCOrders, slog.LevelError, "order.submit",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return Order{}, fmt.Errorf("submit order: %w", err)
	}
	logger.LogEvent(ctx, logger.SVCOrders, slog.LevelInfo, "order.submit",
		slog.String("status", "ok"),
		slog.Int64("order_id", o.ID),
		slog.String("city", o.City),
		slog.String("district", o.District),
		slog.String("product", o.Product.Name),
		slog.Int64("price", o.Product.Price),
		slog.String("method", o.PaymentMethod),
	)
	return o, nil
}

// FindByID returns the order with id or ErrNotFound.
func (l *Ledger) FindByID(ctx context.Context, id int64) (Order, error) {
	return l.store.Get(ctx, id)
}

// SetStatus moves a pending order to paid or canceled. Unknown ids yield
// ErrNotFound; any other change yields ErrInvalidTransition and leaves the
// order untouched. The returned order reflects the stored state.
func (l *Ledger) SetStatus(ctx context.Context, id int64, to Status) (Order, error) {
	if !CanTransition(StatusPending, to) {
		return Order{}, fmt.Errorf("%w: target %q", ErrInvalidTransition, to)
	}
	o, err := l.store.Transition(ctx, id, StatusPending, to, l.now())
	switch {
	case err == nil:
		logger.LogEvent(ctx, logger.SVCOrders, slog.LevelInfo, "order.status",
			slog.String("status", "ok"),
			slog.Int64("order_id", id),
			slog.String("order_status", string(to)),
		)
		return o, nil
	case errors.Is(err, ErrNotFound):
		logger.LogEvent(ctx, logger.SVCOrders, slog.LevelInfo, "order.status",
			slog.String("status", "not_found"),
			slog.Int64("order_id", id),
		)
	case errors.Is(err, ErrInvalidTransition):
		logger.LogEvent(ctx, logger.SVCOrders, slog.LevelWarn, "order.status",
			slog.String("status", "rejected"),
			slog.Int64("order_id", id),
			slog.String("order_status", string(o.Status)),
			slog.String("cause", "terminal"),
		)
	default:
		logger.LogEvent(ctx, logger.SVCOrders, slog.LevelError, "order.status",
			slog.String("status", "fail"),
			slog.Int64("order_id", id),
			slog.String("err", err.Error()),
		)
	}
	return o, err
}

// ListAll returns every order in id order.
func (l *Ledger) ListAll(ctx context.Context) ([]Order, error) {
	return l.store.List(ctx)
}

// ListForChat returns the orders of chatID in id order.
func (l *Ledger) ListForChat(ctx context.Context, chatID int64) ([]Order, error) {
	return l.store.ListByChat(ctx, chatID)
}
