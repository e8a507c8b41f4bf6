package observer

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
)

// Hub is a websocket Broadcaster. The transport layer registers accepted
// sockets under a presentation session id; the engine publishes JSON
// notifications to whatever is attached at that moment.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string][]*hubConn
}

// hubConn serializes writes: gorilla/websocket allows at most one
// concurrent writer per connection, and notifications for one session
// arrive from independent goroutines.
type hubConn struct {
	writeMu sync.Mutex
	conn    *websocket.Conn
}

func (c *hubConn) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

var _ Broadcaster = (*Hub)(nil)

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{sessions: map[string][]*hubConn{}}
}

// Register attaches a socket to a presentation session.
func (h *Hub) Register(presentationSessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions[presentationSessionID] = append(h.sessions[presentationSessionID], &hubConn{conn: conn})
}

// Unregister detaches a socket. The socket itself is not closed; the
// transport layer owns its lifecycle.
func (h *Hub) Unregister(presentationSessionID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns := h.sessions[presentationSessionID]
	for i, candidate := range conns {
		if candidate.conn == conn {
			h.sessions[presentationSessionID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(h.sessions[presentationSessionID]) == 0 {
		delete(h.sessions, presentationSessionID)
	}
}

func (h *Hub) Attached(presentationSessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[presentationSessionID]) > 0
}

func (h *Hub) Publish(ctx context.Context, presentationSessionID string, notification Notification) error {
	h.mu.RLock()
	conns := make([]*hubConn, len(h.sessions[presentationSessionID]))
	copy(conns, h.sessions[presentationSessionID])
	h.mu.RUnlock()

	if len(conns) == 0 {
		return fmt.Errorf("no receiver attached to session %s", presentationSessionID)
	}

	delivered := 0
	for _, conn := range conns {
		if err := conn.writeJSON(notification); err != nil {
			logger.WarnContext(ctx, "failed to deliver notification",
				"session_id", presentationSessionID,
				"notification_type", notification.Type,
				"error", err,
			)
			continue
		}
		delivered++
	}

	if delivered == 0 {
		return fmt.Errorf("no receiver reachable for session %s", presentationSessionID)
	}
	return nil
}
