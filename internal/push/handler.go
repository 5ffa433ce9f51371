package push

import (
	"context"
	"log"
	"net/http"

	"nhooyr.io/websocket"
)

// Handler upgrades HTTP requests to websocket push channels. Every text
// frame a client sends is rebroadcast verbatim to all connected clients,
// the sender included.
type Handler struct {
	registry *Registry
}

// NewHandler creates a websocket Handler over the given registry.
func NewHandler(registry *Registry) *Handler {
	return &Handler{registry: registry}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // Allow all origins in dev; tighten in production.
	})
	if err != nil {
		log.Printf("push: accept error: %v", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	client, connCtx := h.registry.Connect(conn)
	defer h.registry.Disconnect(client)

	h.readLoop(r.Context(), connCtx, client)
}

// readLoop reads frames from the client until the connection closes or the
// registry cancels connCtx.
func (h *Handler) readLoop(ctx context.Context, connCtx context.Context, client *Client) {
	for {
		select {
		case <-connCtx.Done():
			return
		default:
		}

		_, data, err := client.conn.Read(ctx)
		if err != nil {
			// Normal close or context cancelled.
			return
		}

		h.registry.Broadcast(data)
	}
}
