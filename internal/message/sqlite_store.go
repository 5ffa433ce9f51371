package message

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

const selectMessage = "SELECT id, sender, receiver, message, timestamp FROM messages "

// writeTimeout bounds a durable append.
const writeTimeout = 5 * time.Second

// SQLiteStore persists messages in the sqlite messages table. A write mutex
// serializes appends so ids and timestamps stay monotonic.
type SQLiteStore struct {
	mu     sync.Mutex
	db     *sql.DB
	lastTS time.Time
}

// NewSQLiteStore creates a store over an already-migrated database.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}

	// Seed the monotonic-timestamp clamp from whatever is already stored.
	var last time.Time
	err := db.QueryRow("SELECT timestamp FROM messages ORDER BY timestamp DESC, id DESC LIMIT 1").Scan(&last)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, fmt.Errorf("message: read last timestamp: %w", err)
	default:
		s.lastTS = last
	}
	return s, nil
}

// Append persists a message and returns its assigned id. Timestamps that
// would run backwards are clamped to the previous append's timestamp.
func (s *SQLiteStore) Append(sender, receiver, text string, ts time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ts.Before(s.lastTS) {
		ts = s.lastTS
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO messages (sender, receiver, message, timestamp) VALUES (?, ?, ?, ?)",
		sender, receiver, text, ts,
	)
	if err != nil {
		return 0, fmt.Errorf("message: append %s->%s: %w", sender, receiver, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("message: append %s->%s: %w", sender, receiver, err)
	}
	s.lastTS = ts
	return id, nil
}

// ByParticipant returns every message sent or received by username, ascending
// by timestamp.
func (s *SQLiteStore) ByParticipant(username string) ([]Message, error) {
	rows, err := s.db.Query(
		selectMessage+"WHERE sender = ? OR receiver = ? ORDER BY timestamp, id",
		username, username,
	)
	if err != nil {
		return nil, fmt.Errorf("message: by participant %q: %w", username, err)
	}
	return scanMessages(rows)
}

// BetweenPair returns every message exchanged between a and b in either
// direction, ascending by timestamp.
func (s *SQLiteStore) BetweenPair(a, b string) ([]Message, error) {
	rows, err := s.db.Query(
		selectMessage+"WHERE (sender = ? AND receiver = ?) OR (sender = ? AND receiver = ?) ORDER BY timestamp, id",
		a, b, b, a,
	)
	if err != nil {
		return nil, fmt.Errorf("message: between %q and %q: %w", a, b, err)
	}
	return scanMessages(rows)
}

// Count returns the total number of stored messages.
func (s *SQLiteStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM messages").Scan(&n); err != nil {
		return 0, fmt.Errorf("message: count: %w", err)
	}
	return n, nil
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	defer rows.Close()

	msgs := []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Sender, &m.Receiver, &m.Text, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("message: scan: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("message: scan: %w", err)
	}
	return msgs, nil
}
