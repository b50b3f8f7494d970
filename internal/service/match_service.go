package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mpetrov/fogline/internal/content"
	"github.com/mpetrov/fogline/internal/model"
	"github.com/mpetrov/fogline/internal/repository"
	"github.com/mpetrov/fogline/pkg/stratego"
)

var (
	ErrMatchNotFound   = errors.New("match not found")
	ErrMatchNotWaiting = errors.New("match is not in waiting status")
	ErrMatchNotInSetup = errors.New("match is not in setup")
	ErrMatchNotPlaying = errors.New("match is not in progress")
	ErrMatchPaused     = errors.New("match is paused waiting for a reconnect")
	ErrMatchFull       = errors.New("match already has two players")
	ErrAlreadyJoined   = errors.New("already joined this match")
	ErrNotInMatch      = errors.New("you are not in this match")
	ErrNotCreator      = errors.New("only the creator can do this")
	ErrNotPlaced       = errors.New("submit a placement before confirming")
	ErrAlreadyStarted  = errors.New("setup is already confirmed")
)

// MatchService owns the match lifecycle: lobby, army setup, move
// processing, and persistence. All state-mutating operations for a match
// run under that match's lock, giving each match a single writer even
// though requests arrive on many goroutines.
type MatchService struct {
	matchRepo   repository.MatchRepository
	userRepo    repository.UserRepository
	cache       repository.MatchCache
	content     *content.StaticProvider
	broadcaster Broadcaster

	// reconnectWindow is how long a disconnected player has before the
	// match is abandoned in their opponent's favor.
	reconnectWindow time.Duration

	// matchLocks serializes writes per match. Move requests, presence
	// changes, and timer expiries can all fire concurrently for the same
	// match; the lock makes their effects sequential.
	matchLocks sync.Map
}

// NewMatchService creates a MatchService.
func NewMatchService(
	matchRepo repository.MatchRepository,
	userRepo repository.UserRepository,
	cache repository.MatchCache,
	provider *content.StaticProvider,
	broadcaster Broadcaster,
	reconnectWindow time.Duration,
) *MatchService {
	if broadcaster == nil {
		broadcaster = NoopBroadcaster{}
	}
	if reconnectWindow <= 0 {
		reconnectWindow = 5 * time.Minute
	}
	return &MatchService{
		matchRepo:       matchRepo,
		userRepo:        userRepo,
		cache:           cache,
		content:         provider,
		broadcaster:     broadcaster,
		reconnectWindow: reconnectWindow,
	}
}

// matchLock returns the mutex for a given match ID.
func (s *MatchService) matchLock(matchID string) *sync.Mutex {
	v, _ := s.matchLocks.LoadOrStore(matchID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// CreateMatch creates a match in "waiting" status with the creator seated
// on the home side.
func (s *MatchService) CreateMatch(ctx context.Context, name, creatorID, mapID string) (*model.Match, error) {
	if mapID == "" {
		mapID = s.content.DefaultMapID()
	}
	if _, err := s.content.Map(mapID); err != nil {
		return nil, err
	}

	match, err := s.matchRepo.Create(ctx, name, creatorID, mapID)
	if err != nil {
		return nil, err
	}
	if err := s.matchRepo.AddPlayer(ctx, match.ID, creatorID, string(stratego.Home)); err != nil {
		return nil, err
	}
	return s.matchRepo.FindByID(ctx, match.ID)
}

// JoinMatch seats a second player on the away side and moves the match
// into setup.
func (s *MatchService) JoinMatch(ctx context.Context, matchID, userID string) (*model.Match, error) {
	mu := s.matchLock(matchID)
	mu.Lock()
	defer mu.Unlock()

	match, err := s.matchRepo.FindByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, ErrMatchNotFound
	}
	if match.Status != model.StatusWaiting {
		return nil, ErrMatchNotWaiting
	}
	if match.PlayerByUser(userID) != nil {
		return nil, ErrAlreadyJoined
	}
	if len(match.Players) >= 2 {
		return nil, ErrMatchFull
	}

	if err := s.matchRepo.AddPlayer(ctx, matchID, userID, string(stratego.Away)); err != nil {
		return nil, err
	}
	if err := s.matchRepo.SetStatus(ctx, matchID, model.StatusSetup); err != nil {
		return nil, err
	}

	match, err = s.matchRepo.FindByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	s.broadcaster.BroadcastMatchEvent(matchID, "setup_started", map[string]any{
		"match_id": matchID,
		"map_id":   match.MapID,
	})
	return match, nil
}

// SelectArmy records a player's roster choice during setup. Choosing a new
// army discards any placement made with the old one.
func (s *MatchService) SelectArmy(ctx context.Context, matchID, userID, rosterID string) error {
	if _, err := s.content.Roster(rosterID); err != nil {
		return err
	}

	mu := s.matchLock(matchID)
	mu.Lock()
	defer mu.Unlock()

	match, player, err := s.seatInStatus(ctx, matchID, userID, model.StatusSetup, ErrMatchNotInSetup)
	if err != nil {
		return err
	}
	if player.Ready {
		return ErrAlreadyStarted
	}

	if err := s.matchRepo.SetRoster(ctx, matchID, userID, rosterID); err != nil {
		return err
	}
	if player.Placed {
		if err := s.matchRepo.SetPlaced(ctx, matchID, userID, false); err != nil {
			return err
		}
	}
	s.broadcastSetupProgress(ctx, match.ID)
	return nil
}

// SubmitPlacement validates a full army placement against the player's
// roster and the match map, then stores it. The opponent never sees the
// layout, only that a placement exists.
func (s *MatchService) SubmitPlacement(ctx context.Context, matchID, userID string, placements []stratego.PlacementInput) error {
	mu := s.matchLock(matchID)
	mu.Lock()
	defer mu.Unlock()

	match, player, err := s.seatInStatus(ctx, matchID, userID, model.StatusSetup, ErrMatchNotInSetup)
	if err != nil {
		return err
	}
	if player.Ready {
		return ErrAlreadyStarted
	}
	return s.storePlacement(ctx, match, player, placements)
}

// SubmitRandomPlacement generates a shuffled legal placement for the
// player's roster and stores it like a manual one.
func (s *MatchService) SubmitRandomPlacement(ctx context.Context, matchID, userID string) error {
	mu := s.matchLock(matchID)
	mu.Lock()
	defer mu.Unlock()

	match, player, err := s.seatInStatus(ctx, matchID, userID, model.StatusSetup, ErrMatchNotInSetup)
	if err != nil {
		return err
	}
	if player.Ready {
		return ErrAlreadyStarted
	}

	roster, mapDef, err := s.contentFor(match, player)
	if err != nil {
		return err
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	placements := stratego.RandomPlacement(roster, mapDef, stratego.Side(player.Side), rng)
	return s.storePlacement(ctx, match, player, placements)
}

// storePlacement validates and stores a placement. Caller holds the match
// lock.
func (s *MatchService) storePlacement(ctx context.Context, match *model.Match, player *model.MatchPlayer, placements []stratego.PlacementInput) error {
	roster, mapDef, err := s.contentFor(match, player)
	if err != nil {
		return err
	}
	if _, err := stratego.ValidatePlacement(roster, mapDef, stratego.Side(player.Side), placements); err != nil {
		return err
	}

	raw, err := json.Marshal(placements)
	if err != nil {
		return fmt.Errorf("marshal placement: %w", err)
	}
	if err := s.cache.SetPlacement(ctx, match.ID, player.Side, raw); err != nil {
		return fmt.Errorf("store placement: %w", err)
	}
	if err := s.matchRepo.SetPlaced(ctx, match.ID, player.UserID, true); err != nil {
		return err
	}
	s.broadcastSetupProgress(ctx, match.ID)
	return nil
}

// ConfirmSetup locks in a player's placement. When both players have
// confirmed, the match starts.
func (s *MatchService) ConfirmSetup(ctx context.Context, matchID, userID string) error {
	mu := s.matchLock(matchID)
	mu.Lock()
	defer mu.Unlock()

	match, player, err := s.seatInStatus(ctx, matchID, userID, model.StatusSetup, ErrMatchNotInSetup)
	if err != nil {
		return err
	}
	if !player.Placed {
		return ErrNotPlaced
	}
	if player.Ready {
		return nil
	}

	if err := s.matchRepo.SetReady(ctx, matchID, userID, true); err != nil {
		return err
	}
	player.Ready = true

	for _, p := range match.Players {
		if !p.Ready {
			s.broadcastSetupProgress(ctx, matchID)
			return nil
		}
	}
	if err := s.startMatch(ctx, match); err != nil {
		// Confirmation is all-or-nothing: undo the ready flag so the
		// player can fix their setup and confirm again.
		if rbErr := s.matchRepo.SetReady(ctx, matchID, userID, false); rbErr != nil {
			log.Error().Err(rbErr).Str("matchId", matchID).Msg("Failed to roll back ready flag")
		}
		return err
	}
	return nil
}

// startMatch builds the initial game state from both stored placements and
// transitions the match to playing. Caller holds the match lock.
func (s *MatchService) startMatch(ctx context.Context, match *model.Match) error {
	mapDef, err := s.content.Map(match.MapID)
	if err != nil {
		return err
	}

	gs := stratego.NewGameState(mapDef)
	for _, player := range match.Players {
		roster, _, err := s.contentFor(match, &player)
		if err != nil {
			return err
		}
		raw, err := s.cache.GetPlacement(ctx, match.ID, player.Side)
		if err != nil {
			return err
		}
		if raw == nil {
			// The stored layout is gone (cache flush). Clear the owner's
			// setup flags so they can place again instead of being stuck
			// behind the ready checks.
			if err := s.matchRepo.SetPlaced(ctx, match.ID, player.UserID, false); err != nil {
				log.Error().Err(err).Str("matchId", match.ID).Msg("Failed to reset placement flag")
			}
			if err := s.matchRepo.SetReady(ctx, match.ID, player.UserID, false); err != nil {
				log.Error().Err(err).Str("matchId", match.ID).Msg("Failed to reset ready flag")
			}
			return fmt.Errorf("no stored placement for %s", player.Side)
		}
		var placements []stratego.PlacementInput
		if err := json.Unmarshal(raw, &placements); err != nil {
			return fmt.Errorf("unmarshal placement: %w", err)
		}
		pieces, err := stratego.ValidatePlacement(roster, mapDef, stratego.Side(player.Side), placements)
		if err != nil {
			return fmt.Errorf("stored placement no longer valid: %w", err)
		}
		if err := gs.PlaceArmy(pieces); err != nil {
			return err
		}
	}

	if err := gs.BeginPlay(); err != nil {
		return err
	}
	// Scouts that start adjacent to enemies reveal them before the first move.
	stratego.ApplyReconnaissance(gs.Board)

	if err := s.saveState(ctx, match.ID, gs); err != nil {
		return err
	}
	if err := s.matchRepo.SetStatus(ctx, match.ID, model.StatusPlaying); err != nil {
		return err
	}

	log.Info().Str("matchId", match.ID).Str("mapId", match.MapID).Msg("Match started")
	s.broadcaster.BroadcastMatchEvent(match.ID, "game_started", map[string]any{
		"match_id":       match.ID,
		"current_player": string(gs.CurrentPlayer),
		"turn_number":    gs.TurnNumber,
	})
	s.sendViews(match, gs)
	return nil
}

// MoveInput is a move request as received from a client.
type MoveInput struct {
	From stratego.Coord `json:"from"`
	To   stratego.Coord `json:"to"`
}

// Move applies one move for the requesting player. Engine rejections come
// back as *stratego.MoveError with the board untouched.
func (s *MatchService) Move(ctx context.Context, matchID, userID string, in MoveInput) (*stratego.MoveResult, error) {
	mu := s.matchLock(matchID)
	mu.Lock()
	defer mu.Unlock()

	match, err := s.matchRepo.FindByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, ErrMatchNotFound
	}
	if match.Status == model.StatusPaused {
		return nil, ErrMatchPaused
	}
	if match.Status != model.StatusPlaying {
		return nil, ErrMatchNotPlaying
	}
	player := match.PlayerByUser(userID)
	if player == nil {
		return nil, ErrNotInMatch
	}

	gs, err := s.loadState(ctx, match)
	if err != nil {
		return nil, err
	}

	result, err := gs.ApplyMove(stratego.Side(player.Side), in.From, in.To)
	if err != nil {
		return nil, err
	}

	if err := s.saveState(ctx, matchID, gs); err != nil {
		return nil, err
	}

	if result.Combat != nil {
		s.broadcaster.BroadcastMatchEvent(matchID, "combat_result", result.Combat)
	}
	if result.GameOver {
		if err := s.finishMatch(ctx, match, string(result.Winner), string(result.Reason)); err != nil {
			return nil, err
		}
	}
	s.sendViews(match, gs)
	return result, nil
}

// Forfeit resigns the match for the requesting player.
func (s *MatchService) Forfeit(ctx context.Context, matchID, userID string) error {
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
	if match.Status != model.StatusPlaying && match.Status != model.StatusPaused {
		return ErrMatchNotPlaying
	}

	gs, err := s.loadState(ctx, match)
	if err != nil {
		return err
	}
	gs.Forfeit(stratego.Side(player.Side))
	if err := s.saveState(ctx, matchID, gs); err != nil {
		return err
	}
	if err := s.finishMatch(ctx, match, string(gs.Winner), string(gs.WinReason)); err != nil {
		return err
	}
	s.sendViews(match, gs)
	return nil
}

// finishMatch records a terminal result and drops live cache data. Caller
// holds the match lock.
func (s *MatchService) finishMatch(ctx context.Context, match *model.Match, winner, reason string) error {
	if err := s.matchRepo.SetFinished(ctx, match.ID, model.StatusFinished, winner, reason); err != nil {
		return err
	}
	log.Info().Str("matchId", match.ID).Str("winner", winner).Str("reason", reason).Msg("Match finished")
	s.broadcaster.BroadcastMatchEvent(match.ID, "game_finished", map[string]any{
		"winner": winner,
		"reason": reason,
	})
	for _, p := range match.Players {
		if err := s.cache.ClearReconnectTimer(ctx, match.ID, p.UserID); err != nil {
			log.Warn().Err(err).Str("matchId", match.ID).Msg("Failed to clear reconnect timer")
		}
	}
	return s.cache.DeleteMatchData(ctx, match.ID)
}

// GetMatch returns a match by ID.
func (s *MatchService) GetMatch(ctx context.Context, matchID string) (*model.Match, error) {
	match, err := s.matchRepo.FindByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, ErrMatchNotFound
	}
	return match, nil
}

// GetView returns the fog-of-war board projection for a user. Users
// without a seat get the spectator view, where both armies are masked.
func (s *MatchService) GetView(ctx context.Context, matchID, userID string) (*stratego.PlayerView, error) {
	match, err := s.matchRepo.FindByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, ErrMatchNotFound
	}
	switch match.Status {
	case model.StatusPlaying, model.StatusPaused, model.StatusFinished, model.StatusAbandoned:
	default:
		return nil, ErrMatchNotPlaying
	}

	gs, err := s.loadState(ctx, match)
	if err != nil {
		return nil, err
	}

	viewer := stratego.NoSide
	if player := match.PlayerByUser(userID); player != nil {
		viewer = stratego.Side(player.Side)
	}
	return stratego.ViewFor(gs, viewer), nil
}

// ListMatches returns open matches, the user's matches, or finished ones.
func (s *MatchService) ListMatches(ctx context.Context, userID, filter string) ([]model.Match, error) {
	switch filter {
	case "my":
		return s.matchRepo.ListByUser(ctx, userID)
	case "finished":
		return s.matchRepo.ListFinished(ctx)
	default:
		return s.matchRepo.ListOpen(ctx)
	}
}

// DeleteMatch removes a waiting match. Only the creator can delete. Runs
// under the match lock so a concurrent join cannot race the status check.
func (s *MatchService) DeleteMatch(ctx context.Context, matchID, userID string) error {
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
	if match.Status != model.StatusWaiting {
		return ErrMatchNotWaiting
	}
	if match.CreatorID != userID {
		return ErrNotCreator
	}
	return s.matchRepo.Delete(ctx, matchID)
}

// Content exposes the content provider for listing rosters and maps.
func (s *MatchService) Content() *content.StaticProvider { return s.content }

// seatInStatus loads the match, checks its status, and finds the user's
// seat.
func (s *MatchService) seatInStatus(ctx context.Context, matchID, userID, status string, statusErr error) (*model.Match, *model.MatchPlayer, error) {
	match, err := s.matchRepo.FindByID(ctx, matchID)
	if err != nil {
		return nil, nil, err
	}
	if match == nil {
		return nil, nil, ErrMatchNotFound
	}
	if match.Status != status {
		return nil, nil, statusErr
	}
	player := match.PlayerByUser(userID)
	if player == nil {
		return nil, nil, ErrNotInMatch
	}
	return match, player, nil
}

// contentFor resolves a player's roster (falling back to the default when
// none was chosen) and the match map.
func (s *MatchService) contentFor(match *model.Match, player *model.MatchPlayer) (*stratego.Roster, *stratego.MapDef, error) {
	rosterID := player.RosterID
	if rosterID == "" {
		rosterID = s.content.DefaultRosterID()
	}
	roster, err := s.content.Roster(rosterID)
	if err != nil {
		return nil, nil, err
	}
	mapDef, err := s.content.Map(match.MapID)
	if err != nil {
		return nil, nil, err
	}
	return roster, mapDef, nil
}

// loadState reads the authoritative game state, preferring the cache and
// falling back to the persisted snapshot after a Redis flush or restart.
func (s *MatchService) loadState(ctx context.Context, match *model.Match) (*stratego.GameState, error) {
	raw, err := s.cache.GetState(ctx, match.ID)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		raw = match.Snapshot
	}
	if raw == nil {
		return nil, fmt.Errorf("match %s has no stored state", match.ID)
	}
	var gs stratego.GameState
	if err := json.Unmarshal(raw, &gs); err != nil {
		return nil, fmt.Errorf("unmarshal game state: %w", err)
	}
	if gs.SchemaVersion != stratego.SchemaVersion {
		return nil, fmt.Errorf("match %s snapshot schema %d, want %d", match.ID, gs.SchemaVersion, stratego.SchemaVersion)
	}
	return &gs, nil
}

// saveState writes the game state to both the cache and the durable
// snapshot so either store can rebuild the other.
func (s *MatchService) saveState(ctx context.Context, matchID string, gs *stratego.GameState) error {
	raw, err := json.Marshal(gs)
	if err != nil {
		return fmt.Errorf("marshal game state: %w", err)
	}
	if err := s.matchRepo.SaveSnapshot(ctx, matchID, raw); err != nil {
		return err
	}
	if err := s.cache.SetState(ctx, matchID, raw); err != nil {
		return fmt.Errorf("cache game state: %w", err)
	}
	return nil
}

// sendViews pushes each seated player their own masked board.
func (s *MatchService) sendViews(match *model.Match, gs *stratego.GameState) {
	for _, p := range match.Players {
		view := stratego.ViewFor(gs, stratego.Side(p.Side))
		s.broadcaster.SendUserEvent(p.UserID, "state_update", view)
	}
}

// broadcastSetupProgress tells both players how far setup has advanced
// without leaking placements.
func (s *MatchService) broadcastSetupProgress(ctx context.Context, matchID string) {
	match, err := s.matchRepo.FindByID(ctx, matchID)
	if err != nil || match == nil {
		return
	}
	progress := make([]map[string]any, 0, len(match.Players))
	for _, p := range match.Players {
		progress = append(progress, map[string]any{
			"side":   p.Side,
			"placed": p.Placed,
			"ready":  p.Ready,
		})
	}
	s.broadcaster.BroadcastMatchEvent(matchID, "setup_progress", map[string]any{
		"players": progress,
	})
}
