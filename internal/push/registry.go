// Package push tracks live websocket channels and fans broadcasts out to
// them.
package push

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"
)

const (
	// defaultSendBuffer is the number of frames queued per client.
	defaultSendBuffer = 16

	// writeTimeout is the max time to wait for a single write to complete.
	writeTimeout = 5 * time.Second
)

// Client is one live push channel to a connected peer.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	id   string
}

// ID returns the client's opaque connection handle.
func (c *Client) ID() string {
	return c.id
}

// Stats holds point-in-time registry statistics.
type Stats struct {
	Active  int
	Dropped int64
}

// Registry tracks all live connections. Broadcast fans a payload out to a
// snapshot of the registered set, so connects and disconnects during the
// fan-out never block or lose delivery to the others.
type Registry struct {
	mu      sync.Mutex
	clients map[*Client]context.CancelFunc
	closed  bool
	buffer  int

	dropped atomic.Int64
}

// Option configures a Registry.
type Option func(*Registry)

// WithSendBuffer sets the per-client send queue depth.
func WithSendBuffer(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.buffer = n
		}
	}
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		clients: make(map[*Client]context.CancelFunc),
		buffer:  defaultSendBuffer,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Connect registers a live connection and starts its write pump. The
// returned context is cancelled when the client is disconnected or the
// registry shuts down; callers should stop reading when it is done.
func (r *Registry) Connect(conn *websocket.Conn) (*Client, context.Context) {
	c := &Client{
		conn: conn,
		id:   generateHandle(),
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return c, ctx
	}
	c.send = make(chan []byte, r.buffer)
	ctx, cancel := context.WithCancel(context.Background())
	r.clients[c] = cancel
	r.mu.Unlock()

	go r.writePump(ctx, c)
	return c, ctx
}

// Disconnect removes a client and stops its write pump. Disconnecting an
// already-removed client is a no-op. The send channel is left open so a
// broadcast holding an older snapshot can still queue to it harmlessly.
func (r *Registry) Disconnect(c *Client) {
	r.mu.Lock()
	cancel, ok := r.clients[c]
	if ok {
		delete(r.clients, c)
	}
	r.mu.Unlock()

	if ok {
		cancel()
	}
}

// Broadcast queues the payload for every currently registered client. A
// client whose queue is full is dropped and delivery continues to the rest.
func (r *Registry) Broadcast(payload []byte) {
	r.mu.Lock()
	targets := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		targets = append(targets, c)
	}
	r.mu.Unlock()

	for _, c := range targets {
		select {
		case c.send <- payload:
		default:
			// Slow consumer. Drop it, not the broadcast.
			r.dropped.Add(1)
			log.Printf("push: send buffer full for client %s, disconnecting", c.id)
			r.Disconnect(c)
			c.conn.Close(websocket.StatusPolicyViolation, "slow consumer")
		}
	}
}

// Count returns the number of live connections.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}

// Stats returns point-in-time registry statistics.
func (r *Registry) Stats() Stats {
	r.mu.Lock()
	active := len(r.clients)
	r.mu.Unlock()
	return Stats{
		Active:  active,
		Dropped: r.dropped.Load(),
	}
}

// Shutdown closes every connection and rejects future connects.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	r.closed = true
	clients := make(map[*Client]context.CancelFunc, len(r.clients))
	for c, cancel := range r.clients {
		clients[c] = cancel
	}
	r.clients = make(map[*Client]context.CancelFunc)
	r.mu.Unlock()

	for c, cancel := range clients {
		cancel()
		c.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}

// writePump drains the client's send channel onto the websocket. A failed
// or timed-out write disconnects only this client.
func (r *Registry) writePump(ctx context.Context, c *Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-c.send:
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(writeCtx, websocket.MessageText, payload)
			cancel()
			if err != nil {
				log.Printf("push: write to client %s failed: %v", c.id, err)
				r.Disconnect(c)
				c.conn.Close(websocket.StatusNormalClosure, "")
				return
			}
		}
	}
}

func generateHandle() string {
	b := make([]byte, 16)
	rand.Read(b)
	return hex.EncodeToString(b)
}
