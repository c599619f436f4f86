package session

import (
	"context"
	"time"

	"github.com/m3rciful/shopbot/internal/catalog"
)

// State identifies a step of the ordering flow or of an admin sub-flow.
type State string

const (
	// StateNone means the chat is idle.
	StateNone State = "none"
	// StateCity waits for a city button.
	StateCity State = "city"
	// StateDistrict waits for a district of the selected city.
	StateDistrict State = "district"
	// StateProduct waits for a product of the selected city.
	StateProduct State = "product"
	// StatePayment waits for a payment method.
	StatePayment State = "payment"
	// StateConfirm waits for the confirm or cancel button.
	StateConfirm State = "confirm"

	// StateAdminConfirmPayment waits for an order id to mark as paid.
	StateAdminConfirmPayment State = "admin_confirm_payment"
	// StateAdminCancelOrder waits for an order id to cancel.
	StateAdminCancelOrder State = "admin_cancel_order"
	// StateAdminAddProduct waits for "name, price, city".
	StateAdminAddProduct State = "admin_add_product"
	// StateAdminDeleteProduct waits for a product name.
	StateAdminDeleteProduct State = "admin_delete_product"
)

// Valid reports whether s is one of the known states.
func (s State) Valid() bool {
	switch s {
	case StateNone, StateCity, StateDistrict, StateProduct, StatePayment, StateConfirm,
		StateAdminConfirmPayment, StateAdminCancelOrder, StateAdminAddProduct, StateAdminDeleteProduct:
		return true
	}
	return false
}

// Admin reports whether s belongs to an admin sub-flow.
func (s State) Admin() bool {
	switch s {
	case StateAdminConfirmPayment, StateAdminCancelOrder, StateAdminAddProduct, StateAdminDeleteProduct:
		return true
	}
	return false
}

// Session is the conversation state of one chat.
type Session struct {
	ChatID        int64            `json:"chat_id"`
	State         State            `json:"state"`
	City          string           `json:"city,omitempty"`
	District      string           `json:"district,omitempty"`
	Product       *catalog.Product `json:"product,omitempty"`
	PaymentMethod string           `json:"payment_method,omitempty"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

// Clone returns a copy that shares no memory with s.
func (s Session) Clone() Session {
	if s.Product != nil {
		p := *s.Product
		s.Product = &p
	}
	return s
}

// Store maps chat ids to sessions. At most one session exists per chat.
type Store interface {
	// Get returns a copy of the chat's session; ok is false when there is none.
	Get(ctx context.Context, chatID int64) (Session, bool, error)
	// Put replaces the chat's session.
	Put(ctx context.Context, s Session) error
	// Clear removes the chat's session.
	Clear(ctx context.Context, chatID int64) error
	// Len returns the number of live sessions.
	Len(ctx context.Context) (int, error)
}
