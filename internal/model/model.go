package model

import (
	"encoding/json"
	"time"
)

// User represents a registered user.
type User struct {
	ID          string    `json:"id"`
	Provider    string    `json:"provider"`
	ProviderID  string    `json:"provider_id"`
	DisplayName string    `json:"display_name"`
	AvatarURL   string    `json:"avatar_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Match statuses.
const (
	StatusWaiting   = "waiting"
	StatusSetup     = "setup"
	StatusPlaying   = "playing"
	StatusPaused    = "paused"
	StatusFinished  = "finished"
	StatusAbandoned = "abandoned"
)

// Match represents one game between two players.
type Match struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	CreatorID  string          `json:"creator_id"`
	Status     string          `json:"status"`
	MapID      string          `json:"map_id"`
	Winner     string          `json:"winner,omitempty"`     // home or away
	WinReason  string          `json:"win_reason,omitempty"` // flag_captured, no_moves, forfeit
	Snapshot   json.RawMessage `json:"snapshot,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Players    []MatchPlayer   `json:"players,omitempty"`
}

// MatchPlayer represents a player's seat in a match.
type MatchPlayer struct {
	MatchID        string     `json:"match_id"`
	UserID         string     `json:"user_id"`
	Side           string     `json:"side"` // home or away
	RosterID       string     `json:"roster_id,omitempty"`
	Placed         bool       `json:"placed"`
	Ready          bool       `json:"ready"`
	Connected      bool       `json:"connected"`
	DisconnectedAt *time.Time `json:"disconnected_at,omitempty"`
	JoinedAt       time.Time  `json:"joined_at"`
}

// PlayerBySide returns the seat for a side, or nil.
func (m *Match) PlayerBySide(side string) *MatchPlayer {
	for i := range m.Players {
		if m.Players[i].Side == side {
			return &m.Players[i]
		}
	}
	return nil
}

// PlayerByUser returns the seat for a user, or nil.
func (m *Match) PlayerByUser(userID string) *MatchPlayer {
	for i := range m.Players {
		if m.Players[i].UserID == userID {
			return &m.Players[i]
		}
	}
	return nil
}
