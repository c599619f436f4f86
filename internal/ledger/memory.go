package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MemoryStore keeps orders in process memory for the lifetime of the bot.
type MemoryStore struct {
	mu     sync.Mutex
	orders []Order
	nextID int64
}

// NewMemoryStore returns an empty store whose first order gets id 1.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextID: 1}
}

// Append implements Store.
func (s *MemoryStore) Append(_ context.Context, d Draft, now time.Time) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := Order{
		ID:            s.nextID,
		ChatID:        d.ChatID,
		City:          d.City,
		District:      d.District,
		Product:       d.Product,
		PaymentMethod: d.PaymentMethod,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.nextID++
	s.orders = append(s.orders, o)
	return o, nil
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, id int64) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return Order{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return s.orders[i], nil
}

// Transition implements Store.
func (s *MemoryStore) Transition(_ context.Context, id int64, from, to Status, now time.Time) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return Order{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	o := s.orders[i]
	if o.Status != from {
		return o, fmt.Errorf("%w: order %d is %s", ErrInvalidTransition, id, o.Status)
	}
	o.Status = to
	o.UpdatedAt = now
	s.orders[i] = o
	return o, nil
}

// List implements Store.
func (s *MemoryStore) List(_ context.Context) ([]Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Order, len(s.orders))
	copy(out, s.orders)
	return out, nil
}

// ListByChat implements Store.
func (s *MemoryStore) ListByChat(_ context.Context, chatID int64) ([]Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Order
	for _, o := range s.orders {
		if o.ChatID == chatID {
			out = append(out, o)
		}
	}
	return out, nil
}

// Orders are appended with consecutive ids, so the position follows from the id.
func (s *MemoryStore) index(id int64) int {
	i := id - 1
	if i < 0 || i >= int64(len(s.orders)) {
		return -1
	}
	return int(i)
}
