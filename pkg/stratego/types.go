// Package stratego implements the authoritative rules engine for Fogline,
// a two-player hidden-information board game in the Stratego family. The
// package is pure: it performs no I/O and treats rosters and maps as
// injected configuration, so callers can drive it with synthetic content
// in tests.
package stratego

import "fmt"

// Side identifies one of the two players.
type Side string

const (
	Home Side = "home"
	Away Side = "away"
	// NoSide is used for empty winner fields.
	NoSide Side = ""
)

// Opponent returns the other side.
func (s Side) Opponent() Side {
	if s == Home {
		return Away
	}
	return Home
}

// Valid reports whether s is one of the two playable sides.
func (s Side) Valid() bool { return s == Home || s == Away }

// Phase is the engine-level match phase.
type Phase string

const (
	PhaseSetup    Phase = "setup"
	PhasePlaying  Phase = "playing"
	PhaseFinished Phase = "finished"
)

// WinReason records why a match ended.
type WinReason string

const (
	WinFlagCaptured WinReason = "flag_captured"
	WinNoMoves      WinReason = "no_moves"
	WinForfeit      WinReason = "forfeit"
)

// Terrain marks a board cell's ground type.
type Terrain string

const (
	TerrainNone  Terrain = ""
	TerrainWater Terrain = "water" // impassable except to flying pieces
	TerrainRidge Terrain = "ridge" // defenders on a ridge fight one rank stronger
)

// Class groups piece types for the combat and visibility rule tables.
type Class string

const (
	ClassStandard Class = "standard"
	ClassFlag     Class = "flag"
	ClassMine     Class = "mine"
	ClassScout    Class = "scout"
	ClassSniper   Class = "sniper"
	ClassAssassin Class = "assassin"
)

// Coord is a zero-based board coordinate. X grows rightward, Y downward;
// the away side sets up on low Y rows, home on high Y rows.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (c Coord) String() string { return fmt.Sprintf("(%d,%d)", c.X, c.Y) }

// OrthAdjacent reports whether o is exactly one orthogonal step from c.
func (c Coord) OrthAdjacent(o Coord) bool {
	dx, dy := abs(c.X-o.X), abs(c.Y-o.Y)
	return dx+dy == 1
}

// AxisDist returns the straight-line distance between two coordinates on a
// shared row or column, or -1 if they are not axis-aligned.
func (c Coord) AxisDist(o Coord) int {
	if c.X == o.X {
		return abs(c.Y - o.Y)
	}
	if c.Y == o.Y {
		return abs(c.X - o.X)
	}
	return -1
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Piece is a single unit instance on (or destined for) the board.
type Piece struct {
	ID           string    `json:"id"`
	Side         Side      `json:"side"`
	Type         string    `json:"type"` // roster key, e.g. "marshal"
	Class        Class     `json:"class"`
	Rank         int       `json:"rank"`          // current; lower defeats higher
	OriginalRank int       `json:"original_rank"` // immutable baseline
	Abilities    Abilities `json:"abilities,omitempty"`
	Moveable     bool      `json:"moveable"`
	Revealed     bool      `json:"revealed"`
	Cursed       bool      `json:"cursed,omitempty"`
	VeteranWins  int       `json:"veteran_wins,omitempty"`
	Position     *Coord    `json:"position,omitempty"` // nil before placement
}

// MoveRange returns the piece's straight-line movement range (1 unless a
// mobile ability extends it).
func (p *Piece) MoveRange() int {
	if a, ok := p.Abilities.Find(AbilityMobile); ok && a.Range > 1 {
		return a.Range
	}
	return 1
}

// CanFly reports whether the piece bypasses impassable terrain.
func (p *Piece) CanFly() bool { return p.Abilities.Has(AbilityFlying) }
