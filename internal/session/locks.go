package session

import "sync"

// Locks serialises work per chat: one mutex per chat id, created on first use.
type Locks struct {
	m sync.Map
}

// Lock acquires the chat's mutex and returns the function releasing it.
func (l *Locks) Lock(chatID int64) (unlock func()) {
	v, _ := l.m.LoadOrStore(chatID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
