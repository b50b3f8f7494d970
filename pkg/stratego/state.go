package stratego

import "fmt"

// SchemaVersion is bumped whenever the serialized GameState layout
// changes incompatibly. Snapshots carry the version they were written
// with so stored matches can be migrated deliberately instead of ad hoc.
const SchemaVersion = 1

// MoveRecord is one completed move in the match history.
type MoveRecord struct {
	Turn   int           `json:"turn"`
	Side   Side          `json:"side"`
	From   Coord         `json:"from"`
	To     Coord         `json:"to"`
	Combat *CombatResult `json:"combat,omitempty"`
}

// GameState is the complete authoritative snapshot of a match's board
// position. It is owned by a single writer for the duration of a turn;
// per-player projections are derived with ViewFor.
type GameState struct {
	SchemaVersion int          `json:"schema_version"`
	Phase         Phase        `json:"phase"`
	Board         *Board       `json:"board"`
	CurrentPlayer Side         `json:"current_player"`
	TurnNumber    int          `json:"turn_number"`
	Winner        Side         `json:"winner,omitempty"`
	WinReason     WinReason    `json:"win_reason,omitempty"`
	LastMove      *MoveRecord  `json:"last_move,omitempty"`
	MoveHistory   []MoveRecord `json:"move_history,omitempty"`
}

// NewGameState creates a setup-phase state with terrain pre-populated
// from the map and an otherwise empty board.
func NewGameState(m *MapDef) *GameState {
	return &GameState{
		SchemaVersion: SchemaVersion,
		Phase:         PhaseSetup,
		Board:         NewBoard(m),
	}
}

// PlaceArmy puts a validated piece set on the board. Call after
// ValidatePlacement; placement failures here indicate corrupted input.
func (gs *GameState) PlaceArmy(pieces []*Piece) error {
	if gs.Phase != PhaseSetup {
		return fmt.Errorf("cannot place army in phase %q", gs.Phase)
	}
	for _, p := range pieces {
		if p.Position == nil {
			return fmt.Errorf("piece %s has no position", p.ID)
		}
		if err := gs.Board.Place(p, *p.Position); err != nil {
			return err
		}
	}
	return nil
}

// BeginPlay transitions setup → playing. Home moves first on turn 1.
func (gs *GameState) BeginPlay() error {
	if gs.Phase != PhaseSetup {
		return fmt.Errorf("cannot begin play from phase %q", gs.Phase)
	}
	gs.Phase = PhasePlaying
	gs.CurrentPlayer = Home
	gs.TurnNumber = 1
	return nil
}

// MoveResult is what a completed ApplyMove reports to the caller.
type MoveResult struct {
	Record   MoveRecord    `json:"record"`
	Combat   *CombatResult `json:"combat,omitempty"`
	GameOver bool          `json:"game_over"`
	Winner   Side          `json:"winner,omitempty"`
	Reason   WinReason     `json:"reason,omitempty"`
}

// ApplyMove runs one full turn for the side to move: validation, combat
// if the destination is an enemy, board mutation, the end-of-turn
// reconnaissance pass, and the win check against the opponent. On any
// validation failure the state is untouched. A flag capture ends the
// match inside combat resolution and takes precedence over the generic
// post-move check.
func (gs *GameState) ApplyMove(side Side, from, to Coord) (*MoveResult, error) {
	if gs.Phase != PhasePlaying {
		return nil, &MoveError{From: from, To: to, Message: fmt.Sprintf("match is in phase %q", gs.Phase)}
	}
	if side != gs.CurrentPlayer {
		return nil, &MoveError{From: from, To: to, Message: "not your turn"}
	}

	isAttack, err := ValidateMove(gs.Board, from, to, side)
	if err != nil {
		return nil, err
	}

	record := MoveRecord{Turn: gs.TurnNumber, Side: side, From: from, To: to}
	result := &MoveResult{}

	if isAttack {
		attacker := gs.Board.PieceAt(from)
		defender := gs.Board.PieceAt(to)
		combat := ResolveCombat(attacker, defender, gs.Board.TerrainAt(to), gs.Board, from, to)
		record.Combat = &combat
		result.Combat = &combat
		gs.applyCombat(&combat, from, to)

		if combat.FlagCaptured {
			gs.finish(side, WinFlagCaptured)
			result.GameOver, result.Winner, result.Reason = true, side, WinFlagCaptured
		}
	} else {
		gs.Board.MovePiece(from, to)
	}

	ApplyReconnaissance(gs.Board)

	if !result.GameOver {
		if over, reason := CheckWinCondition(gs.Board, side.Opponent()); over {
			gs.finish(side, reason)
			result.GameOver, result.Winner, result.Reason = true, side, reason
		}
	}

	gs.LastMove = &record
	gs.MoveHistory = append(gs.MoveHistory, record)
	result.Record = record

	if !result.GameOver {
		if side == Away {
			gs.TurnNumber++
		}
		gs.CurrentPlayer = side.Opponent()
	}
	return result, nil
}

// applyCombat mutates the board according to a combat result. The
// resolver has already mutated the pieces themselves (reveal, curse,
// veteran).
func (gs *GameState) applyCombat(c *CombatResult, from, to Coord) {
	switch c.Outcome {
	case AttackerWins:
		gs.Board.Remove(to)
		if !c.AttackerHolds {
			gs.Board.MovePiece(from, to)
		}
	case DefenderWins:
		gs.Board.Remove(from)
	case MutualLoss:
		gs.Board.Remove(from)
		gs.Board.Remove(to)
	}
}

func (gs *GameState) finish(winner Side, reason WinReason) {
	gs.Phase = PhaseFinished
	gs.Winner = winner
	gs.WinReason = reason
	gs.CurrentPlayer = NoSide
}

// Forfeit ends the match in the opponent's favor. Used for explicit
// resignation and for abandonment after a reconnect window expires.
func (gs *GameState) Forfeit(loser Side) {
	if gs.Phase == PhaseFinished {
		return
	}
	gs.finish(loser.Opponent(), WinForfeit)
}

// Clone returns a deep copy of the state.
func (gs *GameState) Clone() *GameState {
	c := &GameState{
		SchemaVersion: gs.SchemaVersion,
		Phase:         gs.Phase,
		CurrentPlayer: gs.CurrentPlayer,
		TurnNumber:    gs.TurnNumber,
		Winner:        gs.Winner,
		WinReason:     gs.WinReason,
	}
	if gs.Board != nil {
		c.Board = gs.Board.Clone()
	}
	if gs.LastMove != nil {
		lm := *gs.LastMove
		c.LastMove = &lm
	}
	if gs.MoveHistory != nil {
		c.MoveHistory = make([]MoveRecord, len(gs.MoveHistory))
		copy(c.MoveHistory, gs.MoveHistory)
	}
	return c
}
