package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mpetrov/fogline/internal/model"
)

func TestDisconnectDuringPlayPausesMatch(t *testing.T) {
	f := newFixture()
	match := startedMatch(t, f)
	ctx := context.Background()

	require.NoError(t, f.svc.HandleDisconnect(ctx, match.ID, "user-2"))

	m, err := f.svc.GetMatch(ctx, match.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusPaused, m.Status)
	require.False(t, m.PlayerByUser("user-2").Connected)

	_, armed, err := f.cache.ReconnectDeadline(ctx, match.ID, "user-2")
	require.NoError(t, err)
	require.True(t, armed, "disconnect during play must arm the abandonment timer")

	// The opponent cannot move while the match is paused.
	_, err = f.svc.Move(ctx, match.ID, "user-1", MoveInput{})
	require.ErrorIs(t, err, ErrMatchPaused)
}

func TestDisconnectInLobbyDoesNotPause(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	match, err := f.svc.CreateMatch(ctx, "Lobby", "user-1", "")
	require.NoError(t, err)

	require.NoError(t, f.svc.HandleDisconnect(ctx, match.ID, "user-1"))

	m, err := f.svc.GetMatch(ctx, match.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusWaiting, m.Status)
	_, armed, err := f.cache.ReconnectDeadline(ctx, match.ID, "user-1")
	require.NoError(t, err)
	require.False(t, armed)
}

func TestReconnectResumesAndCancelsTimer(t *testing.T) {
	f := newFixture()
	match := startedMatch(t, f)
	ctx := context.Background()

	require.NoError(t, f.svc.HandleDisconnect(ctx, match.ID, "user-2"))
	require.NoError(t, f.svc.HandleReconnect(ctx, match.ID, "user-2"))

	m, err := f.svc.GetMatch(ctx, match.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusPlaying, m.Status)
	require.True(t, m.PlayerByUser("user-2").Connected)

	_, armed, err := f.cache.ReconnectDeadline(ctx, match.ID, "user-2")
	require.NoError(t, err)
	require.False(t, armed, "reconnect must cancel the abandonment timer")
}

func TestReconnectWithBothSidesDownStaysPaused(t *testing.T) {
	f := newFixture()
	match := startedMatch(t, f)
	ctx := context.Background()

	require.NoError(t, f.svc.HandleDisconnect(ctx, match.ID, "user-1"))
	require.NoError(t, f.svc.HandleDisconnect(ctx, match.ID, "user-2"))
	require.NoError(t, f.svc.HandleReconnect(ctx, match.ID, "user-1"))

	m, err := f.svc.GetMatch(ctx, match.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusPaused, m.Status, "match resumes only when both players are back")

	require.NoError(t, f.svc.HandleReconnect(ctx, match.ID, "user-2"))
	m, err = f.svc.GetMatch(ctx, match.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusPlaying, m.Status)
}

func TestExpireReconnectAbandonsMatch(t *testing.T) {
	f := newFixture()
	match := startedMatch(t, f)
	ctx := context.Background()

	require.NoError(t, f.svc.HandleDisconnect(ctx, match.ID, "user-2"))
	require.NoError(t, f.svc.ExpireReconnect(ctx, match.ID, "user-2"))

	m, err := f.svc.GetMatch(ctx, match.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusAbandoned, m.Status)
	require.Equal(t, "home", m.Winner)
	require.Equal(t, "forfeit", m.WinReason)
	require.Nil(t, f.cache.states[match.ID], "cache data dropped on abandonment")
}

func TestExpireAfterReconnectIsNoop(t *testing.T) {
	f := newFixture()
	match := startedMatch(t, f)
	ctx := context.Background()

	require.NoError(t, f.svc.HandleDisconnect(ctx, match.ID, "user-2"))
	require.NoError(t, f.svc.HandleReconnect(ctx, match.ID, "user-2"))

	// A stale expiry (dropped notification, slow poller) arrives late.
	require.NoError(t, f.svc.ExpireReconnect(ctx, match.ID, "user-2"))

	m, err := f.svc.GetMatch(ctx, match.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusPlaying, m.Status, "expiry after reconnect must change nothing")
}

func TestExpireReconnectIsIdempotent(t *testing.T) {
	f := newFixture()
	match := startedMatch(t, f)
	ctx := context.Background()

	require.NoError(t, f.svc.HandleDisconnect(ctx, match.ID, "user-2"))
	require.NoError(t, f.svc.ExpireReconnect(ctx, match.ID, "user-2"))
	// Keyspace event and poller can both fire.
	require.NoError(t, f.svc.ExpireReconnect(ctx, match.ID, "user-2"))

	m, err := f.svc.GetMatch(ctx, match.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusAbandoned, m.Status)
}

func TestRecoverMatchesRehydratesAndPauses(t *testing.T) {
	f := newFixture()
	match := startedMatch(t, f)
	ctx := context.Background()

	// Simulate a restart: live cache is gone, connections dropped.
	f.cache.states = make(map[string]json.RawMessage)
	require.NoError(t, f.svc.RecoverMatches(ctx))

	m, err := f.svc.GetMatch(ctx, match.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusPaused, m.Status, "recovered matches wait for reconnects")
	require.NotNil(t, f.cache.states[match.ID], "snapshot rehydrated into cache")
	for _, p := range m.Players {
		require.False(t, p.Connected)
		_, armed, err := f.cache.ReconnectDeadline(ctx, match.ID, p.UserID)
		require.NoError(t, err)
		require.True(t, armed, "reconnect timer re-armed for %s", p.UserID)
	}
}

func TestRecoverMatchesSettlesLapsedWindow(t *testing.T) {
	f := newFixture()
	match := startedMatch(t, f)
	ctx := context.Background()

	// One player dropped long before the restart.
	require.NoError(t, f.svc.HandleDisconnect(ctx, match.ID, "user-2"))
	past := time.Now().Add(-10 * time.Minute)
	require.NoError(t, f.matchRepo.SetConnected(ctx, match.ID, "user-2", false, &past))

	f.cache.states = make(map[string]json.RawMessage)
	require.NoError(t, f.svc.RecoverMatches(ctx))

	m, err := f.svc.GetMatch(ctx, match.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusAbandoned, m.Status)
	require.Equal(t, "home", m.Winner)
}

func TestDisconnectDuringSetupAbandonsImmediately(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	match, err := f.svc.CreateMatch(ctx, "Setup", "user-1", "")
	require.NoError(t, err)
	_, err = f.svc.JoinMatch(ctx, match.ID, "user-2")
	require.NoError(t, err)

	// No committed board exists yet, so there is no grace window.
	require.NoError(t, f.svc.HandleDisconnect(ctx, match.ID, "user-2"))

	m, err := f.svc.GetMatch(ctx, match.ID)
	require.NoError(t, err)
	require.Equal(t, model.StatusAbandoned, m.Status)
	require.Equal(t, "home", m.Winner)
	require.Equal(t, "forfeit", m.WinReason)

	_, armed, err := f.cache.ReconnectDeadline(ctx, match.ID, "user-2")
	require.NoError(t, err)
	require.False(t, armed, "setup disconnects must not arm a timer")
}
