package service

// Broadcaster sends real-time events to connected clients.
// Implemented by the WebSocket hub.
type Broadcaster interface {
	// BroadcastMatchEvent sends an event to everyone subscribed to a match.
	BroadcastMatchEvent(matchID string, eventType string, data any)
	// SendUserEvent sends an event to one user's connections. Board views
	// differ per side, so state updates go through here rather than the
	// match-wide channel.
	SendUserEvent(userID string, eventType string, data any)
}

// NoopBroadcaster is a no-op implementation for testing or when WS is disabled.
type NoopBroadcaster struct{}

func (NoopBroadcaster) BroadcastMatchEvent(string, string, any) {}
func (NoopBroadcaster) SendUserEvent(string, string, any)       {}
