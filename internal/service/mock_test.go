package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mpetrov/fogline/internal/model"
)

// mockMatchRepo implements repository.MatchRepository in memory.
type mockMatchRepo struct {
	matches map[string]*model.Match
	players map[string][]model.MatchPlayer
}

func newMockMatchRepo() *mockMatchRepo {
	return &mockMatchRepo{
		matches: make(map[string]*model.Match),
		players: make(map[string][]model.MatchPlayer),
	}
}

func (m *mockMatchRepo) Create(_ context.Context, name, creatorID, mapID string) (*model.Match, error) {
	match := &model.Match{
		ID:        fmt.Sprintf("match-%d", len(m.matches)+1),
		Name:      name,
		CreatorID: creatorID,
		Status:    model.StatusWaiting,
		MapID:     mapID,
		CreatedAt: time.Now(),
	}
	m.matches[match.ID] = match
	return match, nil
}

func (m *mockMatchRepo) FindByID(_ context.Context, id string) (*model.Match, error) {
	match, ok := m.matches[id]
	if !ok {
		return nil, nil
	}
	cp := *match
	cp.Players = append([]model.MatchPlayer(nil), m.players[id]...)
	return &cp, nil
}

func (m *mockMatchRepo) ListOpen(_ context.Context) ([]model.Match, error) {
	var result []model.Match
	for _, match := range m.matches {
		if match.Status == model.StatusWaiting {
			result = append(result, *match)
		}
	}
	return result, nil
}

func (m *mockMatchRepo) ListByUser(_ context.Context, userID string) ([]model.Match, error) {
	var result []model.Match
	for matchID, players := range m.players {
		for _, p := range players {
			if p.UserID == userID {
				if match, ok := m.matches[matchID]; ok {
					result = append(result, *match)
				}
				break
			}
		}
	}
	return result, nil
}

func (m *mockMatchRepo) ListFinished(_ context.Context) ([]model.Match, error) {
	var result []model.Match
	for _, match := range m.matches {
		if match.Status == model.StatusFinished || match.Status == model.StatusAbandoned {
			result = append(result, *match)
		}
	}
	return result, nil
}

func (m *mockMatchRepo) ListUnfinished(_ context.Context) ([]model.Match, error) {
	var result []model.Match
	for _, match := range m.matches {
		switch match.Status {
		case model.StatusSetup, model.StatusPlaying, model.StatusPaused:
			cp := *match
			cp.Players = append([]model.MatchPlayer(nil), m.players[match.ID]...)
			result = append(result, cp)
		}
	}
	return result, nil
}

func (m *mockMatchRepo) AddPlayer(_ context.Context, matchID, userID, side string) error {
	m.players[matchID] = append(m.players[matchID], model.MatchPlayer{
		MatchID:   matchID,
		UserID:    userID,
		Side:      side,
		Connected: true,
		JoinedAt:  time.Now(),
	})
	return nil
}

func (m *mockMatchRepo) SetStatus(_ context.Context, matchID, status string) error {
	if match, ok := m.matches[matchID]; ok {
		match.Status = status
		if status == model.StatusSetup && match.StartedAt == nil {
			now := time.Now()
			match.StartedAt = &now
		}
	}
	return nil
}

func (m *mockMatchRepo) SetRoster(_ context.Context, matchID, userID, rosterID string) error {
	return m.updatePlayer(matchID, userID, func(p *model.MatchPlayer) { p.RosterID = rosterID })
}

func (m *mockMatchRepo) SetPlaced(_ context.Context, matchID, userID string, placed bool) error {
	return m.updatePlayer(matchID, userID, func(p *model.MatchPlayer) { p.Placed = placed })
}

func (m *mockMatchRepo) SetReady(_ context.Context, matchID, userID string, ready bool) error {
	return m.updatePlayer(matchID, userID, func(p *model.MatchPlayer) { p.Ready = ready })
}

func (m *mockMatchRepo) SetConnected(_ context.Context, matchID, userID string, connected bool, at *time.Time) error {
	return m.updatePlayer(matchID, userID, func(p *model.MatchPlayer) {
		p.Connected = connected
		p.DisconnectedAt = at
	})
}

func (m *mockMatchRepo) updatePlayer(matchID, userID string, fn func(*model.MatchPlayer)) error {
	players := m.players[matchID]
	for i := range players {
		if players[i].UserID == userID {
			fn(&players[i])
			return nil
		}
	}
	return fmt.Errorf("player not found")
}

func (m *mockMatchRepo) SaveSnapshot(_ context.Context, matchID string, snapshot json.RawMessage) error {
	if match, ok := m.matches[matchID]; ok {
		match.Snapshot = snapshot
	}
	return nil
}

func (m *mockMatchRepo) SetFinished(_ context.Context, matchID, status, winner, reason string) error {
	if match, ok := m.matches[matchID]; ok {
		match.Status = status
		match.Winner = winner
		match.WinReason = reason
		now := time.Now()
		match.FinishedAt = &now
	}
	return nil
}

func (m *mockMatchRepo) Delete(_ context.Context, matchID string) error {
	delete(m.matches, matchID)
	delete(m.players, matchID)
	return nil
}

// mockUserRepo implements repository.UserRepository for testing.
type mockUserRepo struct {
	users map[string]*model.User
	seq   int
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return u, nil
}

func (m *mockUserRepo) FindByProviderID(_ context.Context, provider, providerID string) (*model.User, error) {
	for _, u := range m.users {
		if u.Provider == provider && u.ProviderID == providerID {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) Upsert(_ context.Context, provider, providerID, displayName, avatarURL string) (*model.User, error) {
	for _, u := range m.users {
		if u.Provider == provider && u.ProviderID == providerID {
			u.DisplayName = displayName
			return u, nil
		}
	}
	m.seq++
	u := &model.User{
		ID:          fmt.Sprintf("user-%d", m.seq),
		Provider:    provider,
		ProviderID:  providerID,
		DisplayName: displayName,
		AvatarURL:   avatarURL,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *mockUserRepo) UpdateDisplayName(_ context.Context, id, displayName string) error {
	if u, ok := m.users[id]; ok {
		u.DisplayName = displayName
	}
	return nil
}

// mockCache implements repository.MatchCache for testing.
type mockCache struct {
	states     map[string]json.RawMessage
	placements map[string]json.RawMessage // key: "matchID:side"
	timers     map[string]time.Time       // key: "matchID:userID"
}

func newMockCache() *mockCache {
	return &mockCache{
		states:     make(map[string]json.RawMessage),
		placements: make(map[string]json.RawMessage),
		timers:     make(map[string]time.Time),
	}
}

func (c *mockCache) SetState(_ context.Context, matchID string, state json.RawMessage) error {
	c.states[matchID] = state
	return nil
}

func (c *mockCache) GetState(_ context.Context, matchID string) (json.RawMessage, error) {
	return c.states[matchID], nil
}

func (c *mockCache) SetPlacement(_ context.Context, matchID, side string, placement json.RawMessage) error {
	c.placements[matchID+":"+side] = placement
	return nil
}

func (c *mockCache) GetPlacement(_ context.Context, matchID, side string) (json.RawMessage, error) {
	return c.placements[matchID+":"+side], nil
}

func (c *mockCache) SetReconnectTimer(_ context.Context, matchID, userID string, window time.Duration) error {
	c.timers[matchID+":"+userID] = time.Now().Add(window)
	return nil
}

func (c *mockCache) ClearReconnectTimer(_ context.Context, matchID, userID string) error {
	delete(c.timers, matchID+":"+userID)
	return nil
}

func (c *mockCache) ReconnectDeadline(_ context.Context, matchID, userID string) (time.Time, bool, error) {
	deadline, ok := c.timers[matchID+":"+userID]
	return deadline, ok, nil
}

func (c *mockCache) DeleteMatchData(_ context.Context, matchID string) error {
	delete(c.states, matchID)
	delete(c.placements, matchID+":home")
	delete(c.placements, matchID+":away")
	return nil
}

// recordingBroadcaster captures events for assertions.
type recordingBroadcaster struct {
	matchEvents []recordedEvent
	userEvents  []recordedEvent
}

type recordedEvent struct {
	Target string
	Type   string
	Data   any
}

func (b *recordingBroadcaster) BroadcastMatchEvent(matchID, eventType string, data any) {
	b.matchEvents = append(b.matchEvents, recordedEvent{Target: matchID, Type: eventType, Data: data})
}

func (b *recordingBroadcaster) SendUserEvent(userID, eventType string, data any) {
	b.userEvents = append(b.userEvents, recordedEvent{Target: userID, Type: eventType, Data: data})
}

func (b *recordingBroadcaster) matchEventTypes() []string {
	var types []string
	for _, e := range b.matchEvents {
		types = append(types, e.Type)
	}
	return types
}
