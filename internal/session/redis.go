package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "shopbot:session:"

// RedisStore keeps sessions as JSON values; the idle TTL is the key expiry
// and is refreshed on every Put.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore returns a store using client. A ttl of zero keeps keys forever.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: defaultKeyPrefix,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (r *RedisStore) key(chatID int64) string {
	return r.prefix + strconv.FormatInt(chatID, 10)
}

// Get implements Store. Values holding an unknown state are rejected.
func (r *RedisStore) Get(ctx context.Context, chatID int64) (Session, bool, error) {
	raw, err := r.client.Get(ctx, r.key(chatID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, fmt.Errorf("session get %d: %w", chatID, err)
	}
	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return Session{}, false, fmt.Errorf("session decode %d: %w", chatID, err)
	}
	if !s.State.Valid() {
		return Session{}, false, fmt.Errorf("session decode %d: unknown state %q", chatID, s.State)
	}
	s.ChatID = chatID
	return s, true, nil
}

// Put implements Store. UpdatedAt is set to the current time.
func (r *RedisStore) Put(ctx context.Context, s Session) error {
	s.UpdatedAt = r.now()
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session encode %d: %w", s.ChatID, err)
	}
	if err := r.client.Set(ctx, r.key(s.ChatID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("session put %d: %w", s.ChatID, err)
	}
	return nil
}

// Clear implements Store.
func (r *RedisStore) Clear(ctx context.Context, chatID int64) error {
	if err := r.client.Del(ctx, r.key(chatID)).Err(); err != nil {
		return fmt.Errorf("session clear %d: %w", chatID, err)
	}
	return nil
}

// Len implements Store by scanning the key prefix.
func (r *RedisStore) Len(ctx context.Context) (int, error) {
	n := 0
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if strings.HasPrefix(iter.Val(), r.prefix) {
			n++
		}
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("session scan: %w", err)
	}
	return n, nil
}
