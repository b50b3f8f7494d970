package handler

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WSEvent is the envelope for all WebSocket messages.
type WSEvent struct {
	Type    string `json:"type"`
	MatchID string `json:"match_id,omitempty"`
	Data    any    `json:"data"`
}

// ClientMessage is the envelope for messages sent from the client.
type ClientMessage struct {
	Action  string `json:"action"` // "subscribe" or "unsubscribe"
	MatchID string `json:"match_id"`
}

// WSConn wraps a WebSocket connection with its user and subscriptions.
type WSConn struct {
	conn   *websocket.Conn
	userID string
	send   chan []byte
}

// Hub manages WebSocket connections and match-channel subscriptions. A
// user counts as present in a match while at least one of their
// connections is subscribed to it.
type Hub struct {
	mu          sync.RWMutex
	connections map[*WSConn]bool
	matches     map[string]map[*WSConn]bool // matchID -> set of connections
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		connections: make(map[*WSConn]bool),
		matches:     make(map[string]map[*WSConn]bool),
	}
}

// Register adds a connection to the hub.
func (h *Hub) Register(c *WSConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[c] = true
}

// Unregister removes a connection from the hub and all its subscriptions.
// It returns the IDs of matches where the connection's user now has no
// remaining subscription, so the caller can mark them disconnected.
func (h *Hub) Unregister(c *WSConn) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.connections, c)

	var vacated []string
	for matchID, conns := range h.matches {
		if !conns[c] {
			continue
		}
		delete(conns, c)
		if !h.userPresentLocked(matchID, c.userID) {
			vacated = append(vacated, matchID)
		}
		if len(conns) == 0 {
			delete(h.matches, matchID)
		}
	}
	close(c.send)
	return vacated
}

// Subscribe adds a connection to a match channel. It reports whether this
// is the user's first live subscription to the match.
func (h *Hub) Subscribe(c *WSConn, matchID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	first := !h.userPresentLocked(matchID, c.userID)
	if h.matches[matchID] == nil {
		h.matches[matchID] = make(map[*WSConn]bool)
	}
	h.matches[matchID][c] = true
	return first
}

// Unsubscribe removes a connection from a match channel. It reports
// whether the user now has no remaining subscription to the match.
func (h *Hub) Unsubscribe(c *WSConn, matchID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns, ok := h.matches[matchID]
	if !ok || !conns[c] {
		return false
	}
	delete(conns, c)
	if len(conns) == 0 {
		delete(h.matches, matchID)
	}
	return !h.userPresentLocked(matchID, c.userID)
}

// userPresentLocked reports whether the user has any connection subscribed
// to the match. Caller holds h.mu.
func (h *Hub) userPresentLocked(matchID, userID string) bool {
	for c := range h.matches[matchID] {
		if c.userID == userID {
			return true
		}
	}
	return false
}

// BroadcastToMatch sends an event to all connections subscribed to a match.
func (h *Hub) BroadcastToMatch(matchID string, event WSEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("matchId", matchID).Msg("Failed to marshal WebSocket event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.matches[matchID] {
		select {
		case c.send <- data:
		default:
			log.Warn().Str("userId", c.userID).Str("matchId", matchID).Msg("Dropping WebSocket message, buffer full")
		}
	}
}

// BroadcastToUser sends an event to a specific user across all their connections.
func (h *Hub) BroadcastToUser(userID string, event WSEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("userId", userID).Msg("Failed to marshal WebSocket event")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.connections {
		if c.userID == userID {
			select {
			case c.send <- data:
			default:
			}
		}
	}
}

// ConnectionCount returns the total number of active connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

// MatchSubscriberCount returns the number of connections subscribed to a match.
func (h *Hub) MatchSubscriberCount(matchID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.matches[matchID])
}
