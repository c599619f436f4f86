package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/shopbot/internal/catalog"
)

// PostgresStore keeps orders in the orders table created by the embedded
// migrations.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore returns a store using db.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type orderRow struct {
	ID            int64     `db:"id"`
	ChatID        int64     `db:"chat_id"`
	City          string    `db:"city"`
	District      string    `db:"district"`
	ProductName   string    `db:"product_name"`
	ProductPrice  int64     `db:"product_price"`
	PaymentMethod string    `db:"payment_method"`
	Status        string    `db:"status"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r orderRow) order() Order {
	return Order{
		ID:            r.ID,
		ChatID:        r.ChatID,
		City:          r.City,
		District:      r.District,
		Product:       catalog.Product{Name: r.ProductName, Price: r.ProductPrice},
		PaymentMethod: r.PaymentMethod,
		Status:        Status(r.Status),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

const orderColumns = `id, chat_id, city, district, product_name, product_price, payment_method, status, created_at, updated_at`

// Append implements Store.
func (s *PostgresStore) Append(ctx context.Context, d Draft, now time.Time) (Order, error) {
	var row orderRow
	err := s.db.GetContext(ctx, &row, `
		INSERT INTO orders (chat_id, city, district, product_name, product_price, payment_method, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING `+orderColumns,
		d.ChatID, d.City, d.District, d.Product.Name, d.Product.Price, d.PaymentMethod, string(StatusPending), now,
	)
	if err != nil {
		return Order{}, fmt.Errorf("insert order: %w", err)
	}
	return row.order(), nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, id int64) (Order, error) {
	var row orderRow
	err := s.db.GetContext(ctx, &row, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Order{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return Order{}, fmt.Errorf("select order %d: %w", id, err)
	}
	return row.order(), nil
}

// Transition implements Store. The status check and the update are a single
// statement, so concurrent admins cannot both move the same order.
func (s *PostgresStore) Transition(ctx context.Context, id int64, from, to Status, now time.Time) (Order, error) {
	var row orderRow
	err := s.db.GetContext(ctx, &row, `
		UPDATE orders SET status = $1, updated_at = $2
		WHERE id = $3 AND status = $4
		RETURNING `+orderColumns,
		string(to), now, id, string(from),
	)
	if err == nil {
		return row.order(), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Order{}, fmt.Errorf("update order %d: %w", id, err)
	}
	current, getErr := s.Get(ctx, id)
	if getErr != nil {
		return Order{}, getErr
	}
	return current, fmt.Errorf("%w: order %d is %s", ErrInvalidTransition, id, current.Status)
}

// List implements Store.
func (s *PostgresStore) List(ctx context.Context) ([]Order, error) {
	var rows []orderRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+orderColumns+` FROM orders ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return toOrders(rows), nil
}

// ListByChat implements Store.
func (s *PostgresStore) ListByChat(ctx context.Context, chatID int64) ([]Order, error) {
	var rows []orderRow
	err := s.db.SelectContext(ctx, &rows, `SELECT `+orderColumns+` FROM orders WHERE chat_id = $1 ORDER BY id`, chatID)
	if err != nil {
		return nil, fmt.Errorf("list orders of chat %d: %w", chatID, err)
	}
	return toOrders(rows), nil
}

func toOrders(rows []orderRow) []Order {
	out := make([]Order, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.order())
	}
	return out
}
