package stratego

import (
	"fmt"
	"math/rand"
)

// PlacementInput is one requested piece placement during setup.
type PlacementInput struct {
	Type string `json:"type"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
}

// SetupError describes why a proposed army placement is invalid. Like
// MoveError it is an expected, non-fatal failure returned to the player.
type SetupError struct {
	Side    Side
	Message string
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("invalid placement for %s: %s", e.Side, e.Message)
}

// ValidatePlacement checks a full-army placement against the roster and
// map constraints and, on success, returns fully materialized pieces
// ready to put on the board. It is pure: the caller applies the result.
//
// The expected army size is the roster total minus the number of water
// cells inside the side's setup rows; the shortfall may be absorbed by
// any moveable non-flag type, but no type may exceed its roster count
// and the flag count is always exact.
func ValidatePlacement(r *Roster, m *MapDef, side Side, placements []PlacementInput) ([]*Piece, error) {
	fail := func(format string, args ...any) ([]*Piece, error) {
		return nil, &SetupError{Side: side, Message: fmt.Sprintf(format, args...)}
	}

	expected := ArmySize(r, m, side)
	if len(placements) != expected {
		return fail("expected %d pieces, got %d", expected, len(placements))
	}

	counts := make(map[string]int)
	occupied := make(map[Coord]bool)
	pieces := make([]*Piece, 0, len(placements))

	for i, pl := range placements {
		def, ok := r.Unit(pl.Type)
		if !ok {
			return fail("unknown piece type %q", pl.Type)
		}
		counts[pl.Type]++
		if counts[pl.Type] > def.Count {
			return fail("too many %s pieces (max %d)", pl.Type, def.Count)
		}

		c := Coord{pl.X, pl.Y}
		if c.X < 0 || c.X >= m.Width || c.Y < 0 || c.Y >= m.Height {
			return fail("%s out of bounds", c)
		}
		if !m.InSetupRows(side, c) {
			return fail("%s is outside your setup rows", c)
		}
		if m.IsWater(c) {
			return fail("%s is impassable", c)
		}
		if occupied[c] {
			return fail("%s is already occupied", c)
		}
		occupied[c] = true

		pos := c
		pieces = append(pieces, &Piece{
			ID:           fmt.Sprintf("%s-%s-%d", side, pl.Type, i),
			Side:         side,
			Type:         def.Type,
			Class:        def.Class,
			Rank:         def.Rank,
			OriginalRank: def.Rank,
			Abilities:    ParseAbilities(def.Abilities),
			Moveable:     def.Moveable,
			Position:     &pos,
		})
	}

	for _, def := range r.Units {
		placed := counts[def.Type]
		if placed == def.Count {
			continue
		}
		// Shortfalls from terrain reduction are only allowed on moveable
		// non-flag types.
		if def.Class == ClassFlag || !def.Moveable {
			return fail("wrong %s count: expected %d, got %d", def.Type, def.Count, placed)
		}
	}

	return pieces, nil
}

// RandomPlacement builds a legal random setup: it shuffles the side's
// placeable setup cells and deals the roster onto them, trimming any
// terrain-driven shortfall from the most numerous moveable types. The
// output always passes ValidatePlacement with the same arguments.
func RandomPlacement(r *Roster, m *MapDef, side Side, rng *rand.Rand) []PlacementInput {
	cells := m.SetupCells(side)
	rng.Shuffle(len(cells), func(i, j int) { cells[i], cells[j] = cells[j], cells[i] })

	counts := make([]int, len(r.Units))
	for i, u := range r.Units {
		counts[i] = u.Count
	}

	// Trim the army down to the cell count, never touching flags or
	// immobile pieces, taking from whichever eligible type has the most
	// copies left.
	excess := r.TotalCount() - len(cells)
	for excess > 0 {
		best := -1
		for i, u := range r.Units {
			if u.Class == ClassFlag || !u.Moveable || counts[i] == 0 {
				continue
			}
			if best == -1 || counts[i] > counts[best] {
				best = i
			}
		}
		if best == -1 {
			break
		}
		counts[best]--
		excess--
	}

	var placements []PlacementInput
	idx := 0
	for i, u := range r.Units {
		for n := 0; n < counts[i]; n++ {
			c := cells[idx]
			idx++
			placements = append(placements, PlacementInput{Type: u.Type, X: c.X, Y: c.Y})
		}
	}
	return placements
}
