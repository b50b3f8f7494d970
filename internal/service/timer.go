package service

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/mpetrov/fogline/internal/model"
	"github.com/mpetrov/fogline/internal/repository"
	"github.com/mpetrov/fogline/internal/repository/redis"
)

// TimerListener listens for Redis keyspace notifications on expired
// reconnect keys and abandons matches whose grace window lapsed. A polling
// fallback catches expirations if keyspace notifications are unavailable.
type TimerListener struct {
	rdb       *goredis.Client
	matchSvc  *MatchService
	matchRepo repository.MatchRepository
}

// NewTimerListener creates a TimerListener.
func NewTimerListener(rdb *goredis.Client, matchSvc *MatchService, matchRepo repository.MatchRepository) *TimerListener {
	return &TimerListener{rdb: rdb, matchSvc: matchSvc, matchRepo: matchRepo}
}

// Start begins listening for expired key events and runs a polling fallback.
func (t *TimerListener) Start(ctx context.Context) {
	go t.listenKeyspace(ctx)
	t.pollPausedMatches(ctx)
}

// listenKeyspace subscribes to Redis keyspace notifications for expired keys.
func (t *TimerListener) listenKeyspace(ctx context.Context) {
	pubsub := t.rdb.PSubscribe(ctx, "__keyevent@0__:expired")
	defer pubsub.Close()

	log.Info().Msg("Timer listener started, listening for expired keys")
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			t.handleExpiry(ctx, msg.Payload)
		}
	}
}

// handleExpiry processes an expired key. Only acts on reconnect timer keys.
func (t *TimerListener) handleExpiry(ctx context.Context, key string) {
	matchID, userID, ok := redis.ParseReconnectKey(key)
	if !ok {
		return
	}
	log.Info().Str("matchId", matchID).Str("userId", userID).Msg("Reconnect timer expired")
	if err := t.matchSvc.ExpireReconnect(ctx, matchID, userID); err != nil {
		log.Error().Err(err).Str("matchId", matchID).Msg("Abandonment failed after timer expiry")
	}
}

// pollPausedMatches periodically sweeps paused matches for players whose
// grace window has passed without a live timer key, which happens when a
// keyspace notification is dropped.
func (t *TimerListener) pollPausedMatches(ctx context.Context) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	log.Info().Msg("Reconnect deadline poller started (10s interval)")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Reconnect deadline poller stopped")
			return
		case <-ticker.C:
			t.checkPausedMatches(ctx)
		}
	}
}

// checkPausedMatches abandons matches with disconnected players past their
// grace window. ExpireReconnect re-checks under the match lock, so firing
// for a player who just reconnected is harmless.
func (t *TimerListener) checkPausedMatches(ctx context.Context) {
	matches, err := t.matchRepo.ListUnfinished(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list matches for reconnect sweep")
		return
	}
	now := time.Now()
	for _, m := range matches {
		if m.Status != model.StatusPaused {
			continue
		}
		for _, p := range m.Players {
			if p.Connected || p.DisconnectedAt == nil {
				continue
			}
			if now.Before(p.DisconnectedAt.Add(t.matchSvc.reconnectWindow)) {
				continue
			}
			log.Info().Str("matchId", m.ID).Str("userId", p.UserID).Msg("Poller found lapsed reconnect window")
			if err := t.matchSvc.ExpireReconnect(ctx, m.ID, p.UserID); err != nil {
				log.Error().Err(err).Str("matchId", m.ID).Msg("Abandonment failed from poller")
			}
		}
	}
}
