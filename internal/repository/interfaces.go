package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mpetrov/fogline/internal/model"
)

// UserRepository defines user data operations.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByProviderID(ctx context.Context, provider, providerID string) (*model.User, error)
	Upsert(ctx context.Context, provider, providerID, displayName, avatarURL string) (*model.User, error)
	UpdateDisplayName(ctx context.Context, id, displayName string) error
}

// MatchRepository defines match and seat data operations.
type MatchRepository interface {
	Create(ctx context.Context, name, creatorID, mapID string) (*model.Match, error)
	FindByID(ctx context.Context, id string) (*model.Match, error)
	ListOpen(ctx context.Context) ([]model.Match, error)
	ListByUser(ctx context.Context, userID string) ([]model.Match, error)
	ListFinished(ctx context.Context) ([]model.Match, error)
	ListUnfinished(ctx context.Context) ([]model.Match, error)
	AddPlayer(ctx context.Context, matchID, userID, side string) error
	SetStatus(ctx context.Context, matchID, status string) error
	SetRoster(ctx context.Context, matchID, userID, rosterID string) error
	SetPlaced(ctx context.Context, matchID, userID string, placed bool) error
	SetReady(ctx context.Context, matchID, userID string, ready bool) error
	SetConnected(ctx context.Context, matchID, userID string, connected bool, at *time.Time) error
	SaveSnapshot(ctx context.Context, matchID string, snapshot json.RawMessage) error
	SetFinished(ctx context.Context, matchID, status, winner, reason string) error
	Delete(ctx context.Context, matchID string) error
}

// MatchCache defines live match state operations (Redis).
type MatchCache interface {
	SetState(ctx context.Context, matchID string, state json.RawMessage) error
	GetState(ctx context.Context, matchID string) (json.RawMessage, error)
	SetPlacement(ctx context.Context, matchID, side string, placement json.RawMessage) error
	GetPlacement(ctx context.Context, matchID, side string) (json.RawMessage, error)
	SetReconnectTimer(ctx context.Context, matchID, userID string, window time.Duration) error
	ClearReconnectTimer(ctx context.Context, matchID, userID string) error
	ReconnectDeadline(ctx context.Context, matchID, userID string) (time.Time, bool, error)
	DeleteMatchData(ctx context.Context, matchID string) error
}
