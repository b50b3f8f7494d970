package stratego

import (
	"encoding/json"
	"testing"
)

// playingState builds a minimal playing-phase state with the given
// pieces already on the board.
func playingState(t *testing.T, place ...func(*Board)) *GameState {
	t.Helper()
	gs := NewGameState(emptyMap(8, 8))
	for _, fn := range place {
		fn(gs.Board)
	}
	if err := gs.BeginPlay(); err != nil {
		t.Fatal(err)
	}
	return gs
}

func put(p *Piece, c Coord) func(*Board) {
	return func(b *Board) {
		pos := c
		p.Position = &pos
		b.At(c).Piece = p
	}
}

func TestApplyMoveTurnAlternation(t *testing.T) {
	gs := playingState(t,
		put(testPiece(Home, "pikeman", 7, ClassStandard), Coord{1, 6}),
		put(testPiece(Home, "flag", 12, ClassFlag), Coord{0, 7}),
		put(testPiece(Away, "pikeman", 7, ClassStandard), Coord{1, 1}),
		put(testPiece(Away, "flag", 12, ClassFlag), Coord{0, 0}),
	)

	if gs.CurrentPlayer != Home || gs.TurnNumber != 1 {
		t.Fatalf("initial: player=%s turn=%d", gs.CurrentPlayer, gs.TurnNumber)
	}

	// A request from the non-active side is rejected, not queued.
	if _, err := gs.ApplyMove(Away, Coord{1, 1}, Coord{1, 2}); err == nil {
		t.Fatal("away must not move on home's turn")
	}

	if _, err := gs.ApplyMove(Home, Coord{1, 6}, Coord{1, 5}); err != nil {
		t.Fatal(err)
	}
	if gs.CurrentPlayer != Away || gs.TurnNumber != 1 {
		t.Fatalf("after home move: player=%s turn=%d", gs.CurrentPlayer, gs.TurnNumber)
	}

	if _, err := gs.ApplyMove(Away, Coord{1, 1}, Coord{1, 2}); err != nil {
		t.Fatal(err)
	}
	// Turn number increments once per full home+away round.
	if gs.CurrentPlayer != Home || gs.TurnNumber != 2 {
		t.Fatalf("after away move: player=%s turn=%d", gs.CurrentPlayer, gs.TurnNumber)
	}
	if len(gs.MoveHistory) != 2 || gs.LastMove == nil {
		t.Fatalf("history: %d records", len(gs.MoveHistory))
	}
}

func TestApplyMoveRejectionLeavesStateUntouched(t *testing.T) {
	mover := testPiece(Home, "pikeman", 7, ClassStandard)
	gs := playingState(t,
		put(mover, Coord{1, 6}),
		put(testPiece(Home, "flag", 12, ClassFlag), Coord{0, 7}),
		put(testPiece(Away, "flag", 12, ClassFlag), Coord{0, 0}),
		put(testPiece(Away, "pikeman", 7, ClassStandard), Coord{1, 1}),
	)
	before, _ := json.Marshal(gs)

	if _, err := gs.ApplyMove(Home, Coord{1, 6}, Coord{3, 6}); err == nil {
		t.Fatal("expected range rejection")
	}
	after, _ := json.Marshal(gs)
	if string(before) != string(after) {
		t.Fatal("rejected move mutated state")
	}
}

func TestApplyMoveCombatOccupiesSquare(t *testing.T) {
	att := testPiece(Home, "colonel", 3, ClassStandard)
	def := testPiece(Away, "captain", 5, ClassStandard)
	gs := playingState(t,
		put(att, Coord{2, 3}),
		put(def, Coord{2, 2}),
		put(testPiece(Home, "flag", 12, ClassFlag), Coord{0, 7}),
		put(testPiece(Away, "flag", 12, ClassFlag), Coord{0, 0}),
		put(testPiece(Away, "pikeman", 7, ClassStandard), Coord{7, 1}),
	)

	res, err := gs.ApplyMove(Home, Coord{2, 3}, Coord{2, 2})
	if err != nil {
		t.Fatal(err)
	}
	if res.Combat == nil || res.Combat.Outcome != AttackerWins {
		t.Fatalf("combat: %+v", res.Combat)
	}
	if got := gs.Board.PieceAt(Coord{2, 2}); got != att {
		t.Fatal("attacker must occupy the defender's square")
	}
	if gs.Board.PieceAt(Coord{2, 3}) != nil {
		t.Fatal("origin square must be empty")
	}
	if def.Position != nil {
		t.Fatal("defeated piece still has a position")
	}
}

func TestApplyMoveFlagCaptureEndsMatchImmediately(t *testing.T) {
	gs := playingState(t,
		put(testPiece(Home, "scout", 9, ClassScout, Ability{Kind: AbilityMobile, Range: 9}), Coord{0, 1}),
		put(testPiece(Home, "flag", 12, ClassFlag), Coord{0, 7}),
		put(testPiece(Away, "flag", 12, ClassFlag), Coord{0, 0}),
		put(testPiece(Away, "pikeman", 7, ClassStandard), Coord{7, 7}),
	)

	res, err := gs.ApplyMove(Home, Coord{0, 1}, Coord{0, 0})
	if err != nil {
		t.Fatal(err)
	}
	if !res.GameOver || res.Winner != Home || res.Reason != WinFlagCaptured {
		t.Fatalf("flag capture: %+v", res)
	}
	if gs.Phase != PhaseFinished || gs.Winner != Home || gs.WinReason != WinFlagCaptured {
		t.Fatalf("state: phase=%s winner=%s reason=%s", gs.Phase, gs.Winner, gs.WinReason)
	}

	// No further moves accepted.
	if _, err := gs.ApplyMove(Away, Coord{7, 7}, Coord{7, 6}); err == nil {
		t.Fatal("finished match accepted a move")
	}
}

func TestApplyMoveImmobilizedOpponentLoses(t *testing.T) {
	// Away's only moveable piece dies in combat; the win check after the
	// move reports no_moves even though the flag still stands.
	gs := playingState(t,
		put(testPiece(Home, "colonel", 3, ClassStandard), Coord{2, 3}),
		put(testPiece(Home, "flag", 12, ClassFlag), Coord{0, 7}),
		put(testPiece(Away, "captain", 5, ClassStandard), Coord{2, 2}),
		put(testPiece(Away, "flag", 12, ClassFlag), Coord{0, 0}),
	)

	res, err := gs.ApplyMove(Home, Coord{2, 3}, Coord{2, 2})
	if err != nil {
		t.Fatal(err)
	}
	if !res.GameOver || res.Winner != Home || res.Reason != WinNoMoves {
		t.Fatalf("immobilization: %+v", res)
	}
}

func TestCheckWinConditionReasons(t *testing.T) {
	b := NewBoard(emptyMap(6, 6))
	mustPlace(t, b, testPiece(Home, "flag", 12, ClassFlag), Coord{0, 5})
	mustPlace(t, b, testPiece(Home, "mine", 11, ClassMine), Coord{1, 5})

	over, reason := CheckWinCondition(b, Home)
	if !over || reason != WinNoMoves {
		t.Fatalf("flag+mine only: over=%v reason=%s", over, reason)
	}

	mustPlace(t, b, testPiece(Home, "pikeman", 7, ClassStandard), Coord{2, 5})
	if over, _ := CheckWinCondition(b, Home); over {
		t.Fatal("flag + moveable piece should not be a loss")
	}

	b.Remove(Coord{0, 5})
	over, reason = CheckWinCondition(b, Home)
	if !over || reason != WinFlagCaptured {
		t.Fatalf("flag gone: over=%v reason=%s", over, reason)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	hidden := testPiece(Away, "spy", 10, ClassAssassin)
	gs := playingState(t,
		put(testPiece(Home, "scout", 9, ClassScout, Ability{Kind: AbilityMobile, Range: 9}), Coord{4, 6}),
		put(testPiece(Home, "flag", 12, ClassFlag), Coord{0, 7}),
		put(hidden, Coord{4, 1}),
		put(testPiece(Away, "flag", 12, ClassFlag), Coord{0, 0}),
	)

	raw, err := json.Marshal(gs)
	if err != nil {
		t.Fatal(err)
	}
	var restored GameState
	if err := json.Unmarshal(raw, &restored); err != nil {
		t.Fatal(err)
	}
	if restored.SchemaVersion != SchemaVersion || restored.Phase != PhasePlaying {
		t.Fatalf("restored header: %+v", restored)
	}
	p := restored.Board.PieceAt(Coord{4, 1})
	if p == nil || p.Type != "spy" || p.Revealed {
		t.Fatalf("restored piece: %+v", p)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	orig := playingState(t,
		put(testPiece(Home, "pikeman", 7, ClassStandard), Coord{1, 6}),
		put(testPiece(Home, "flag", 12, ClassFlag), Coord{0, 7}),
		put(testPiece(Away, "pikeman", 7, ClassStandard), Coord{1, 1}),
		put(testPiece(Away, "flag", 12, ClassFlag), Coord{0, 0}),
	)
	clone := orig.Clone()

	if _, err := clone.ApplyMove(Home, Coord{1, 6}, Coord{1, 5}); err != nil {
		t.Fatal(err)
	}
	if orig.Board.PieceAt(Coord{1, 5}) != nil {
		t.Fatal("mutating the clone touched the original board")
	}
	if orig.CurrentPlayer != Home {
		t.Fatal("mutating the clone touched the original turn state")
	}
}
