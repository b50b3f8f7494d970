package service

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mpetrov/fogline/internal/model"
	"github.com/mpetrov/fogline/pkg/stratego"
)

// HandleDisconnect records a dropped connection. During play the match is
// paused and an abandonment timer armed; in the lobby and setup phases a
// disconnect is only bookkeeping.
func (s *MatchService) HandleDisconnect(ctx context.Context, matchID, userID string) error {
	mu := s.matchLock(matchID)
	mu.Lock()
	defer mu.Unlock()

	match, err := s.matchRepo.FindByID(ctx, matchID)
	if err != nil {
		return err
	}
	if match == nil {
		return ErrMatchNotFound
	}
	player := match.PlayerByUser(userID)
	if player == nil {
		return ErrNotInMatch
	}

	now := time.Now()
	if err := s.matchRepo.SetConnected(ctx, matchID, userID, false, &now); err != nil {
		return err
	}

	// Before play starts there is no committed state worth a grace window:
	// a setup-phase disconnect abandons the match outright.
	if match.Status == model.StatusSetup {
		return s.abandonMatch(ctx, match, player, false)
	}
	if match.Status != model.StatusPlaying && match.Status != model.StatusPaused {
		return nil
	}

	if match.Status == model.StatusPlaying {
		if err := s.matchRepo.SetStatus(ctx, matchID, model.StatusPaused); err != nil {
			return err
		}
	}
	if err := s.cache.SetReconnectTimer(ctx, matchID, userID, s.reconnectWindow); err != nil {
		return err
	}

	deadline := now.Add(s.reconnectWindow)
	log.Info().Str("matchId", matchID).Str("userId", userID).
		Time("deadline", deadline).Msg("Player disconnected, match paused")
	s.broadcaster.BroadcastMatchEvent(matchID, "player_disconnected", map[string]any{
		"side":     player.Side,
		"deadline": deadline.Format(time.RFC3339),
	})
	return nil
}

// HandleReconnect cancels any pending abandonment timer and resumes the
// match. Cancelling the timer first means a reconnect that races the
// expiry always wins: by the time the expiry handler takes the match lock,
// the match is no longer paused and the expiry is a no-op.
func (s *MatchService) HandleReconnect(ctx context.Context, matchID, userID string) error {
	mu := s.matchLock(matchID)
	mu.Lock()
	defer mu.Unlock()

	match, err := s.matchRepo.FindByID(ctx, matchID)
	if err != nil {
		return err
	}
	if match == nil {
		return ErrMatchNotFound
	}
	player := match.PlayerByUser(userID)
	if player == nil {
		return ErrNotInMatch
	}

	if err := s.cache.ClearReconnectTimer(ctx, matchID, userID); err != nil {
		return err
	}
	if err := s.matchRepo.SetConnected(ctx, matchID, userID, true, nil); err != nil {
		return err
	}
	player.Connected = true

	if match.Status != model.StatusPaused {
		return nil
	}

	// Resume only when nobody else is still in their grace window.
	for _, p := range match.Players {
		if p.UserID != userID && !p.Connected {
			s.broadcaster.BroadcastMatchEvent(matchID, "player_reconnected", map[string]any{
				"side": player.Side,
			})
			return nil
		}
	}

	if err := s.matchRepo.SetStatus(ctx, matchID, model.StatusPlaying); err != nil {
		return err
	}
	log.Info().Str("matchId", matchID).Str("userId", userID).Msg("Player reconnected, match resumed")
	s.broadcaster.BroadcastMatchEvent(matchID, "player_reconnected", map[string]any{
		"side":    player.Side,
		"resumed": true,
	})

	if gs, err := s.loadState(ctx, match); err == nil {
		s.sendViews(match, gs)
	} else {
		log.Warn().Err(err).Str("matchId", matchID).Msg("Failed to load state after reconnect")
	}
	return nil
}

// ExpireReconnect handles an abandonment timer firing. The timer key is
// gone by the time this runs (it expired), so the match record is the
// source of truth: if the player reconnected in the meantime the expiry
// does nothing. Safe to call more than once.
func (s *MatchService) ExpireReconnect(ctx context.Context, matchID, userID string) error {
	mu := s.matchLock(matchID)
	mu.Lock()
	defer mu.Unlock()

	match, err := s.matchRepo.FindByID(ctx, matchID)
	if err != nil {
		return err
	}
	if match == nil || match.Status != model.StatusPaused {
		return nil
	}
	player := match.PlayerByUser(userID)
	if player == nil || player.Connected {
		return nil
	}

	log.Info().Str("matchId", matchID).Str("userId", userID).Msg("Reconnect window expired, abandoning match")
	return s.abandonMatch(ctx, match, player, true)
}

// abandonMatch settles a match against the named player with a forfeit win
// for their opponent. Caller holds the match lock. hasState is false when
// play never started and there is no board to record the forfeit on.
func (s *MatchService) abandonMatch(ctx context.Context, match *model.Match, player *model.MatchPlayer, hasState bool) error {
	winner := stratego.Side(player.Side).Opponent()

	if hasState {
		if gs, err := s.loadState(ctx, match); err == nil {
			gs.Forfeit(stratego.Side(player.Side))
			if err := s.saveState(ctx, match.ID, gs); err != nil {
				log.Warn().Err(err).Str("matchId", match.ID).Msg("Failed to save abandoned state")
			}
		}
	}

	if err := s.matchRepo.SetFinished(ctx, match.ID, model.StatusAbandoned, string(winner), string(stratego.WinForfeit)); err != nil {
		return err
	}
	log.Info().Str("matchId", match.ID).Str("winner", string(winner)).Msg("Match abandoned")
	s.broadcaster.BroadcastMatchEvent(match.ID, "match_abandoned", map[string]any{
		"winner": string(winner),
		"reason": string(stratego.WinForfeit),
	})
	for _, p := range match.Players {
		if err := s.cache.ClearReconnectTimer(ctx, match.ID, p.UserID); err != nil {
			log.Warn().Err(err).Str("matchId", match.ID).Msg("Failed to clear reconnect timer")
		}
	}
	return s.cache.DeleteMatchData(ctx, match.ID)
}

// RecoverMatches rehydrates Redis from Postgres snapshots after a restart
// and settles matches whose reconnect windows lapsed while the server was
// down. Connections do not survive a restart, so every in-progress match
// comes back paused until its players reconnect.
func (s *MatchService) RecoverMatches(ctx context.Context) error {
	matches, err := s.matchRepo.ListUnfinished(ctx)
	if err != nil {
		return err
	}
	if len(matches) == 0 {
		log.Info().Msg("No matches to recover")
		return nil
	}
	log.Info().Int("count", len(matches)).Msg("Recovering matches after restart")

	for i := range matches {
		match := &matches[i]
		if match.Status == model.StatusSetup {
			// Placements were only in Redis; players must redo setup.
			for _, p := range match.Players {
				if p.Placed {
					if err := s.matchRepo.SetPlaced(ctx, match.ID, p.UserID, false); err != nil {
						log.Error().Err(err).Str("matchId", match.ID).Msg("Failed to reset placement flag")
					}
				}
				if p.Ready {
					if err := s.matchRepo.SetReady(ctx, match.ID, p.UserID, false); err != nil {
						log.Error().Err(err).Str("matchId", match.ID).Msg("Failed to reset ready flag")
					}
				}
			}
			continue
		}

		if match.Snapshot == nil {
			log.Warn().Str("matchId", match.ID).Msg("In-progress match has no snapshot, skipping")
			continue
		}
		if err := s.cache.SetState(ctx, match.ID, match.Snapshot); err != nil {
			log.Error().Err(err).Str("matchId", match.ID).Msg("Failed to rehydrate match state")
			continue
		}

		if match.Status == model.StatusPlaying {
			if err := s.matchRepo.SetStatus(ctx, match.ID, model.StatusPaused); err != nil {
				log.Error().Err(err).Str("matchId", match.ID).Msg("Failed to pause match during recovery")
				continue
			}
		}

		for _, p := range match.Players {
			now := time.Now()
			if p.Connected {
				if err := s.matchRepo.SetConnected(ctx, match.ID, p.UserID, false, &now); err != nil {
					log.Error().Err(err).Str("matchId", match.ID).Msg("Failed to mark player disconnected")
					continue
				}
				p.Connected = false
				p.DisconnectedAt = &now
			}
			window := s.reconnectWindow
			if p.DisconnectedAt != nil {
				window = time.Until(p.DisconnectedAt.Add(s.reconnectWindow))
			}
			if window <= 0 {
				if err := s.ExpireReconnect(ctx, match.ID, p.UserID); err != nil {
					log.Error().Err(err).Str("matchId", match.ID).Msg("Failed to expire lapsed reconnect window")
				}
				break
			}
			if err := s.cache.SetReconnectTimer(ctx, match.ID, p.UserID, window); err != nil {
				log.Error().Err(err).Str("matchId", match.ID).Msg("Failed to re-arm reconnect timer")
			}
		}
		log.Info().Str("matchId", match.ID).Msg("Recovered match")
	}
	return nil
}
