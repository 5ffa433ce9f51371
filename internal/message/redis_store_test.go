package message

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisStore(client)
}

func TestRedisAppendAndCount(t *testing.T) {
	s := newTestRedisStore(t)

	id1, err := s.Append("alice", "bob", "hello", time.Now())
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	id2, err := s.Append("bob", "alice", "world", time.Now())
	if err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if id2 <= id1 {
		t.Fatalf("expected increasing ids, got %d then %d", id1, id2)
	}

	n, err := s.Count()
	if err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 messages, got %d", n)
	}
}

func TestRedisByParticipant(t *testing.T) {
	s := newTestRedisStore(t)
	base := time.Now()

	mustAppend(t, s, "alice", "bob", "first", base)
	mustAppend(t, s, "carol", "alice", "second", base.Add(time.Second))
	mustAppend(t, s, "carol", "bob", "not alice", base.Add(2*time.Second))

	msgs, err := s.ByParticipant("alice")
	if err != nil {
		t.Fatalf("by participant failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages for alice, got %d", len(msgs))
	}
	if msgs[0].Text != "first" || msgs[1].Text != "second" {
		t.Errorf("expected [first, second], got [%s, %s]", msgs[0].Text, msgs[1].Text)
	}
}

func TestRedisBetweenPairIsDirectionSymmetric(t *testing.T) {
	s := newTestRedisStore(t)
	base := time.Now()

	mustAppend(t, s, "alice", "bob", "hi bob", base)
	mustAppend(t, s, "bob", "alice", "hi alice", base.Add(time.Second))
	mustAppend(t, s, "alice", "carol", "other pair", base.Add(2*time.Second))

	ab, err := s.BetweenPair("alice", "bob")
	if err != nil {
		t.Fatalf("between pair failed: %v", err)
	}
	ba, err := s.BetweenPair("bob", "alice")
	if err != nil {
		t.Fatalf("between pair failed: %v", err)
	}

	if len(ab) != 2 || len(ba) != 2 {
		t.Fatalf("expected 2 messages each way, got %d and %d", len(ab), len(ba))
	}
	for i := range ab {
		if ab[i].ID != ba[i].ID {
			t.Errorf("pair queries disagree at %d: %d vs %d", i, ab[i].ID, ba[i].ID)
		}
	}
}

func TestRedisEmptyResultIsEmptyList(t *testing.T) {
	s := newTestRedisStore(t)

	msgs, err := s.ByParticipant("alice")
	if err != nil {
		t.Fatalf("by participant failed: %v", err)
	}
	if msgs == nil || len(msgs) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", msgs)
	}
}

func mustAppend(t *testing.T, s *RedisStore, sender, receiver, text string, ts time.Time) {
	t.Helper()
	if _, err := s.Append(sender, receiver, text, ts); err != nil {
		t.Fatalf("append %s->%s failed: %v", sender, receiver, err)
	}
}
