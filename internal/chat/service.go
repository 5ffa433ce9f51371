// Package chat composes the account directory, session store, message store
// and connection registry into the chat backend's operations.
package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jmendes/chatwire/internal/message"
	"github.com/jmendes/chatwire/internal/push"
	"github.com/jmendes/chatwire/internal/session"
	"github.com/jmendes/chatwire/internal/user"
)

// ErrUnknownParticipant is returned when a message names a sender or
// receiver that is not registered.
var ErrUnknownParticipant = errors.New("user not found")

// Service orchestrates the chat backend.
type Service struct {
	users    *user.Directory
	sessions *session.Store
	messages message.Store
	registry *push.Registry
}

// NewService wires the stores together.
func NewService(users *user.Directory, sessions *session.Store, messages message.Store, registry *push.Registry) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		messages: messages,
		registry: registry,
	}
}

// Register creates a new account.
func (s *Service) Register(username, credential string, profile user.Profile) (user.Account, error) {
	return s.users.Register(username, credential, profile)
}

// Login verifies credentials and returns a session token.
func (s *Service) Login(username, credential string) (string, error) {
	return s.sessions.Login(username, credential)
}

// Logout invalidates a session token.
func (s *Service) Logout(token string) {
	s.sessions.Logout(token)
}

// Whoami resolves a session token to the username it was issued to.
func (s *Service) Whoami(token string) (string, error) {
	return s.sessions.Validate(token)
}

// Profile returns the account for a username.
func (s *Service) Profile(username string) (user.Account, error) {
	return s.users.Get(username)
}

// Users lists every registered username in registration order.
func (s *Service) Users() ([]string, error) {
	return s.users.List()
}

// Send validates both participants, persists the message, then pushes it to
// every live connection. A broadcast failure never undoes the append.
func (s *Service) Send(sender, receiver, text string) (message.Message, error) {
	for _, name := range []string{sender, receiver} {
		ok, err := s.users.Exists(name)
		if err != nil {
			return message.Message{}, err
		}
		if !ok {
			return message.Message{}, fmt.Errorf("%w: %s", ErrUnknownParticipant, name)
		}
	}

	ts := time.Now()
	id, err := s.messages.Append(sender, receiver, text, ts)
	if err != nil {
		return message.Message{}, err
	}

	msg := message.Message{
		ID:        id,
		Sender:    sender,
		Receiver:  receiver,
		Text:      text,
		Timestamp: ts,
	}

	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("chat: marshal message %d: %v", id, err)
		return msg, nil
	}
	s.registry.Broadcast(data)
	return msg, nil
}

// MessagesFor returns every message the user sent or received, ascending by
// timestamp. No messages yet is an empty list; an unregistered username is
// user.ErrUnknownUser.
func (s *Service) MessagesFor(username string) ([]message.Message, error) {
	ok, err := s.users.Exists(username)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", user.ErrUnknownUser, username)
	}
	return s.messages.ByParticipant(username)
}

// MessagesBetween returns every message exchanged between a and b in either
// direction, ascending by timestamp.
func (s *Service) MessagesBetween(a, b string) ([]message.Message, error) {
	for _, name := range []string{a, b} {
		ok, err := s.users.Exists(name)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", user.ErrUnknownUser, name)
		}
	}
	return s.messages.BetweenPair(a, b)
}
