package handler

// BroadcastMatchEvent implements service.Broadcaster using the WebSocket hub.
func (h *Hub) BroadcastMatchEvent(matchID string, eventType string, data any) {
	h.BroadcastToMatch(matchID, WSEvent{
		Type:    eventType,
		MatchID: matchID,
		Data:    data,
	})
}

// SendUserEvent implements service.Broadcaster for per-viewer payloads,
// which carry fog-of-war state and must never be shared between sides.
func (h *Hub) SendUserEvent(userID string, eventType string, data any) {
	h.BroadcastToUser(userID, WSEvent{
		Type: eventType,
		Data: data,
	})
}
