// Package message persists the append-only chat log.
package message

import "time"

// Message is one persisted point-to-point chat message.
type Message struct {
	ID        int64     `json:"id"`
	Sender    string    `json:"sender"`
	Receiver  string    `json:"receiver"`
	Text      string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is the interface for message persistence backends. Append assigns a
// strictly increasing id and persists before returning; timestamps are
// non-decreasing in insertion order. Queries return ascending-by-timestamp
// slices, empty (never nil) when nothing matches.
type Store interface {
	Append(sender, receiver, text string, ts time.Time) (int64, error)
	ByParticipant(username string) ([]Message, error)
	BetweenPair(a, b string) ([]Message, error)
	Count() (int, error)
}
