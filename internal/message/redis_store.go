package message

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// listKey holds the JSON-encoded message log.
	listKey = "chat:messages"

	// idKey holds the id counter behind INCR.
	idKey = "chat:messages:next_id"

	// opTimeout bounds every Redis round trip.
	opTimeout = 2 * time.Second
)

// RedisStore persists messages as a Redis list of JSON documents. Appends go
// through a mutex so ids stay aligned with list order and timestamps stay
// monotonic.
type RedisStore struct {
	mu     sync.Mutex
	client redis.Cmdable
	lastTS time.Time
}

// NewRedisStore creates a RedisStore on the given client.
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

// Append persists a message and returns its assigned id.
func (s *RedisStore) Append(sender, receiver, text string, ts time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if ts.Before(s.lastTS) {
		ts = s.lastTS
	}

	id, err := s.client.Incr(ctx, idKey).Result()
	if err != nil {
		return 0, fmt.Errorf("message: redis id for %s->%s: %w", sender, receiver, err)
	}

	data, err := json.Marshal(Message{
		ID:        id,
		Sender:    sender,
		Receiver:  receiver,
		Text:      text,
		Timestamp: ts,
	})
	if err != nil {
		return 0, fmt.Errorf("message: marshal %s->%s: %w", sender, receiver, err)
	}

	if err := s.client.RPush(ctx, listKey, data).Err(); err != nil {
		return 0, fmt.Errorf("message: redis append %s->%s: %w", sender, receiver, err)
	}
	s.lastTS = ts
	return id, nil
}

// ByParticipant returns every message sent or received by username.
func (s *RedisStore) ByParticipant(username string) ([]Message, error) {
	return s.filter(func(m Message) bool {
		return m.Sender == username || m.Receiver == username
	})
}

// BetweenPair returns every message exchanged between a and b.
func (s *RedisStore) BetweenPair(a, b string) ([]Message, error) {
	return s.filter(func(m Message) bool {
		return (m.Sender == a && m.Receiver == b) || (m.Sender == b && m.Receiver == a)
	})
}

// Count returns the total number of stored messages.
func (s *RedisStore) Count() (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	n, err := s.client.LLen(ctx, listKey).Result()
	if err != nil {
		return 0, fmt.Errorf("message: redis count: %w", err)
	}
	return int(n), nil
}

// filter reads the whole log and keeps the messages keep accepts. Appends
// are monotonic, so list order is already ascending by timestamp.
func (s *RedisStore) filter(keep func(Message) bool) ([]Message, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	vals, err := s.client.LRange(ctx, listKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("message: redis read: %w", err)
	}

	msgs := []Message{}
	for _, v := range vals {
		var m Message
		if err := json.Unmarshal([]byte(v), &m); err != nil {
			continue
		}
		if keep(m) {
			msgs = append(msgs, m)
		}
	}
	return msgs, nil
}
