package service

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/mpetrov/fogline/internal/content"
	"github.com/mpetrov/fogline/internal/model"
	"github.com/mpetrov/fogline/pkg/stratego"
)

type fixture struct {
	svc       *MatchService
	matchRepo *mockMatchRepo
	cache     *mockCache
	bcast     *recordingBroadcaster
}

func newFixture() *fixture {
	matchRepo := newMockMatchRepo()
	cache := newMockCache()
	bcast := &recordingBroadcaster{}
	svc := NewMatchService(matchRepo, newMockUserRepo(), cache, content.NewStaticProvider(), bcast, 5*time.Minute)
	return &fixture{svc: svc, matchRepo: matchRepo, cache: cache, bcast: bcast}
}

// placeBoth submits a valid random placement and confirms for both players.
func placeBoth(t *testing.T, f *fixture, matchID string) {
	t.Helper()
	ctx := context.Background()
	rng := rand.New(rand.NewSource(7))
	roster := stratego.ClassicRoster()
	mapDef := stratego.ClassicMap()

	for _, seat := range []struct {
		userID string
		side   stratego.Side
	}{{"user-1", stratego.Home}, {"user-2", stratego.Away}} {
		placement := stratego.RandomPlacement(roster, mapDef, seat.side, rng)
		if err := f.svc.SubmitPlacement(ctx, matchID, seat.userID, placement); err != nil {
			t.Fatalf("placement for %s: %v", seat.userID, err)
		}
		if err := f.svc.ConfirmSetup(ctx, matchID, seat.userID); err != nil {
			t.Fatalf("confirm for %s: %v", seat.userID, err)
		}
	}
}

// startedMatch creates a match and drives it to playing status.
func startedMatch(t *testing.T, f *fixture) *model.Match {
	t.Helper()
	ctx := context.Background()
	match, err := f.svc.CreateMatch(ctx, "Test Match", "user-1", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.svc.JoinMatch(ctx, match.ID, "user-2"); err != nil {
		t.Fatalf("join: %v", err)
	}
	placeBoth(t, f, match.ID)

	match, err = f.svc.GetMatch(ctx, match.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if match.Status != model.StatusPlaying {
		t.Fatalf("expected playing, got %s", match.Status)
	}
	return match
}

func TestCreateMatchSeatsCreatorHome(t *testing.T) {
	f := newFixture()
	match, err := f.svc.CreateMatch(context.Background(), "Lobby", "user-1", "")
	if err != nil {
		t.Fatalf("CreateMatch: %v", err)
	}
	if match.Status != model.StatusWaiting {
		t.Errorf("status = %s, want waiting", match.Status)
	}
	if len(match.Players) != 1 || match.Players[0].Side != "home" {
		t.Errorf("players = %+v, want one home seat", match.Players)
	}
	if match.MapID == "" {
		t.Error("expected a default map to be assigned")
	}
}

func TestCreateMatchRejectsUnknownMap(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.CreateMatch(context.Background(), "Lobby", "user-1", "atlantis"); err == nil {
		t.Fatal("expected unknown map rejection")
	}
}

func TestJoinMatchStartsSetup(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	match, _ := f.svc.CreateMatch(ctx, "Lobby", "user-1", "")

	joined, err := f.svc.JoinMatch(ctx, match.ID, "user-2")
	if err != nil {
		t.Fatalf("JoinMatch: %v", err)
	}
	if joined.Status != model.StatusSetup {
		t.Errorf("status = %s, want setup", joined.Status)
	}
	if p := joined.PlayerByUser("user-2"); p == nil || p.Side != "away" {
		t.Errorf("second player seat: %+v", p)
	}

	if _, err := f.svc.JoinMatch(ctx, match.ID, "user-3"); !errors.Is(err, ErrMatchNotWaiting) {
		t.Errorf("third join: got %v, want ErrMatchNotWaiting", err)
	}
	if _, err := f.svc.JoinMatch(ctx, "no-such", "user-3"); !errors.Is(err, ErrMatchNotFound) {
		t.Errorf("missing match: got %v, want ErrMatchNotFound", err)
	}
}

func TestSubmitPlacementRejectsInvalid(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	match, _ := f.svc.CreateMatch(ctx, "Lobby", "user-1", "")
	f.svc.JoinMatch(ctx, match.ID, "user-2")

	// Too few pieces: the engine's setup error surfaces to the caller.
	bad := []stratego.PlacementInput{{Type: "flag", X: 0, Y: 9}}
	err := f.svc.SubmitPlacement(ctx, match.ID, "user-1", bad)
	var setupErr *stratego.SetupError
	if !errors.As(err, &setupErr) {
		t.Fatalf("got %v, want *stratego.SetupError", err)
	}

	if p, _ := f.matchRepo.FindByID(ctx, match.ID); p.PlayerByUser("user-1").Placed {
		t.Error("rejected placement must not mark the player placed")
	}
}

func TestConfirmSetupRequiresPlacement(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	match, _ := f.svc.CreateMatch(ctx, "Lobby", "user-1", "")
	f.svc.JoinMatch(ctx, match.ID, "user-2")

	if err := f.svc.ConfirmSetup(ctx, match.ID, "user-1"); !errors.Is(err, ErrNotPlaced) {
		t.Errorf("got %v, want ErrNotPlaced", err)
	}
}

func TestBothConfirmationsStartTheMatch(t *testing.T) {
	f := newFixture()
	match := startedMatch(t, f)

	if f.cache.states[match.ID] == nil {
		t.Error("starting must cache the game state")
	}
	if match.Snapshot == nil {
		t.Error("starting must persist a snapshot")
	}

	sawStart := false
	for _, typ := range f.bcast.matchEventTypes() {
		if typ == "game_started" {
			sawStart = true
		}
	}
	if !sawStart {
		t.Errorf("events %v missing game_started", f.bcast.matchEventTypes())
	}
	// Each player got a private board view.
	if len(f.bcast.userEvents) < 2 {
		t.Errorf("expected per-player state updates, got %+v", f.bcast.userEvents)
	}
}

func TestSelectArmyDiscardsPlacement(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	match, _ := f.svc.CreateMatch(ctx, "Lobby", "user-1", "")
	f.svc.JoinMatch(ctx, match.ID, "user-2")

	rng := rand.New(rand.NewSource(3))
	placement := stratego.RandomPlacement(stratego.ClassicRoster(), stratego.ClassicMap(), stratego.Home, rng)
	if err := f.svc.SubmitPlacement(ctx, match.ID, "user-1", placement); err != nil {
		t.Fatalf("placement: %v", err)
	}

	if err := f.svc.SelectArmy(ctx, match.ID, "user-1", "vanguard"); err != nil {
		t.Fatalf("SelectArmy: %v", err)
	}
	m, _ := f.matchRepo.FindByID(ctx, match.ID)
	p := m.PlayerByUser("user-1")
	if p.RosterID != "vanguard" || p.Placed {
		t.Errorf("after reroster: roster=%s placed=%v, want vanguard/false", p.RosterID, p.Placed)
	}
}

func TestMoveEnforcesTurnAndSeat(t *testing.T) {
	f := newFixture()
	match := startedMatch(t, f)
	ctx := context.Background()

	// Home moves first; away's request is an engine rejection.
	_, err := f.svc.Move(ctx, match.ID, "user-2", MoveInput{From: stratego.Coord{X: 0, Y: 3}, To: stratego.Coord{X: 0, Y: 4}})
	var moveErr *stratego.MoveError
	if !errors.As(err, &moveErr) {
		t.Fatalf("away out of turn: got %v, want *stratego.MoveError", err)
	}

	if _, err := f.svc.Move(ctx, match.ID, "user-3", MoveInput{}); !errors.Is(err, ErrNotInMatch) {
		t.Errorf("outsider: got %v, want ErrNotInMatch", err)
	}
}

func TestMovePersistsState(t *testing.T) {
	f := newFixture()
	match := startedMatch(t, f)
	ctx := context.Background()

	// Find any legal opening move for home by scanning its front row.
	view, err := f.svc.GetView(ctx, match.ID, "user-1")
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	var from, to stratego.Coord
	found := false
	for x := 0; x < view.Width && !found; x++ {
		p := view.Cells[6][x].Piece
		if p == nil || !p.Moveable {
			continue
		}
		if view.Cells[5][x].Piece == nil && view.Cells[5][x].Terrain == "" {
			from, to = stratego.Coord{X: x, Y: 6}, stratego.Coord{X: x, Y: 5}
			found = true
		}
	}
	if !found {
		t.Fatal("no legal opening move on the front row")
	}

	res, err := f.svc.Move(ctx, match.ID, "user-1", MoveInput{From: from, To: to})
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if res.Record.Side != stratego.Home {
		t.Errorf("record side = %s", res.Record.Side)
	}

	m, _ := f.svc.GetMatch(ctx, match.ID)
	var gs stratego.GameState
	if err := json.Unmarshal(m.Snapshot, &gs); err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if gs.CurrentPlayer != stratego.Away {
		t.Errorf("snapshot current player = %s, want away", gs.CurrentPlayer)
	}
}

func TestForfeitFinishesMatch(t *testing.T) {
	f := newFixture()
	match := startedMatch(t, f)
	ctx := context.Background()

	if err := f.svc.Forfeit(ctx, match.ID, "user-2"); err != nil {
		t.Fatalf("Forfeit: %v", err)
	}
	m, _ := f.svc.GetMatch(ctx, match.ID)
	if m.Status != model.StatusFinished || m.Winner != "home" || m.WinReason != "forfeit" {
		t.Errorf("after forfeit: status=%s winner=%s reason=%s", m.Status, m.Winner, m.WinReason)
	}
	if f.cache.states[match.ID] != nil {
		t.Error("live cache data must be dropped on finish")
	}

	if _, err := f.svc.Move(ctx, match.ID, "user-1", MoveInput{}); !errors.Is(err, ErrMatchNotPlaying) {
		t.Errorf("move after finish: got %v, want ErrMatchNotPlaying", err)
	}
}

func TestGetViewMasksOpponent(t *testing.T) {
	f := newFixture()
	match := startedMatch(t, f)
	ctx := context.Background()

	view, err := f.svc.GetView(ctx, match.ID, "user-1")
	if err != nil {
		t.Fatalf("GetView: %v", err)
	}
	for y := range view.Cells {
		for x := range view.Cells[y] {
			p := view.Cells[y][x].Piece
			if p == nil || p.Side != stratego.Away {
				continue
			}
			if !p.Hidden && !p.Revealed {
				t.Fatalf("unrevealed away piece visible at (%d,%d): %+v", x, y, p)
			}
			if p.Hidden && p.Rank != 0 {
				t.Fatalf("hidden piece leaks rank at (%d,%d)", x, y)
			}
		}
	}

	// A spectator sees both armies masked.
	spec, err := f.svc.GetView(ctx, match.ID, "user-99")
	if err != nil {
		t.Fatalf("spectator view: %v", err)
	}
	if spec.Viewer != stratego.NoSide {
		t.Errorf("spectator viewer = %q", spec.Viewer)
	}
}

func TestSubmitRandomPlacementValidates(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	match, _ := f.svc.CreateMatch(ctx, "Lobby", "user-1", "")
	f.svc.JoinMatch(ctx, match.ID, "user-2")

	if err := f.svc.SubmitRandomPlacement(ctx, match.ID, "user-1"); err != nil {
		t.Fatalf("SubmitRandomPlacement: %v", err)
	}

	m, _ := f.svc.GetMatch(ctx, match.ID)
	if !m.PlayerByUser("user-1").Placed {
		t.Error("expected placed flag after random placement")
	}

	// The stored layout must pass the same validator a manual one would.
	raw, err := f.cache.GetPlacement(ctx, match.ID, "home")
	if err != nil || raw == nil {
		t.Fatalf("stored placement: raw=%v err=%v", raw, err)
	}
	var placements []stratego.PlacementInput
	if err := json.Unmarshal(raw, &placements); err != nil {
		t.Fatalf("unmarshal placement: %v", err)
	}
	if _, err := stratego.ValidatePlacement(stratego.ClassicRoster(), stratego.ClassicMap(), stratego.Home, placements); err != nil {
		t.Errorf("random placement failed validation: %v", err)
	}
}

func TestDeleteMatchWaitsForMatchLock(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	match, _ := f.svc.CreateMatch(ctx, "Lobby", "user-1", "")

	// Hold the match lock as an in-flight join would and flip the status
	// underneath the delete. The delete must observe the committed status,
	// not a snapshot read before the lock was released.
	mu := f.svc.matchLock(match.ID)
	mu.Lock()
	done := make(chan error, 1)
	go func() { done <- f.svc.DeleteMatch(ctx, match.ID, "user-1") }()

	select {
	case err := <-done:
		t.Fatalf("delete ran while the match lock was held: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	if err := f.matchRepo.SetStatus(ctx, match.ID, model.StatusSetup); err != nil {
		t.Fatalf("set status: %v", err)
	}
	mu.Unlock()

	if err := <-done; !errors.Is(err, ErrMatchNotWaiting) {
		t.Errorf("delete after join committed: got %v, want ErrMatchNotWaiting", err)
	}
	if m, _ := f.matchRepo.FindByID(ctx, match.ID); m == nil {
		t.Error("joined match must not be deleted")
	}
}

func TestConfirmSetupRollsBackWhenStartFails(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	match, _ := f.svc.CreateMatch(ctx, "Lobby", "user-1", "")
	f.svc.JoinMatch(ctx, match.ID, "user-2")

	rng := rand.New(rand.NewSource(5))
	roster, mapDef := stratego.ClassicRoster(), stratego.ClassicMap()
	if err := f.svc.SubmitPlacement(ctx, match.ID, "user-1", stratego.RandomPlacement(roster, mapDef, stratego.Home, rng)); err != nil {
		t.Fatalf("home placement: %v", err)
	}
	if err := f.svc.SubmitPlacement(ctx, match.ID, "user-2", stratego.RandomPlacement(roster, mapDef, stratego.Away, rng)); err != nil {
		t.Fatalf("away placement: %v", err)
	}
	if err := f.svc.ConfirmSetup(ctx, match.ID, "user-1"); err != nil {
		t.Fatalf("first confirm: %v", err)
	}

	// Lose the stored layouts, as a cache flush would.
	f.cache.placements = make(map[string]json.RawMessage)

	if err := f.svc.ConfirmSetup(ctx, match.ID, "user-2"); err == nil {
		t.Fatal("expected start to fail without stored placements")
	}

	m, _ := f.matchRepo.FindByID(ctx, match.ID)
	if m.Status != model.StatusSetup {
		t.Fatalf("status = %s, want setup", m.Status)
	}
	for _, p := range m.Players {
		if p.Ready {
			t.Errorf("%s still ready after failed start", p.Side)
		}
	}

	// The failure must not strand the match: both players can place and
	// confirm again.
	placeBoth(t, f, match.ID)
	m, _ = f.matchRepo.FindByID(ctx, match.ID)
	if m.Status != model.StatusPlaying {
		t.Errorf("status after retry = %s, want playing", m.Status)
	}
}
