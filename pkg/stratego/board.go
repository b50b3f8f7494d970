package stratego

import "fmt"

// Cell is one board square: terrain plus at most one piece. Pieces are
// never placed on water during setup; in play only a flier can stop there.
type Cell struct {
	Terrain Terrain `json:"terrain,omitempty"`
	Piece   *Piece  `json:"piece,omitempty"`
}

// Board is the height × width grid. Cells are indexed [y][x].
type Board struct {
	Width  int      `json:"width"`
	Height int      `json:"height"`
	Cells  [][]Cell `json:"cells"`
}

// NewBoard builds an empty board with terrain pre-populated from the map.
func NewBoard(m *MapDef) *Board {
	b := &Board{Width: m.Width, Height: m.Height}
	b.Cells = make([][]Cell, m.Height)
	for y := range b.Cells {
		b.Cells[y] = make([]Cell, m.Width)
	}
	for _, w := range m.Water {
		b.Cells[w.Y][w.X].Terrain = TerrainWater
	}
	for _, r := range m.Ridges {
		b.Cells[r.Y][r.X].Terrain = TerrainRidge
	}
	return b
}

// InBounds reports whether c is on the board.
func (b *Board) InBounds(c Coord) bool {
	return c.X >= 0 && c.X < b.Width && c.Y >= 0 && c.Y < b.Height
}

// At returns the cell at c. Caller must ensure c is in bounds.
func (b *Board) At(c Coord) *Cell { return &b.Cells[c.Y][c.X] }

// PieceAt returns the piece at c, or nil for empty or out-of-bounds cells.
func (b *Board) PieceAt(c Coord) *Piece {
	if !b.InBounds(c) {
		return nil
	}
	return b.Cells[c.Y][c.X].Piece
}

// TerrainAt returns the terrain at c.
func (b *Board) TerrainAt(c Coord) Terrain {
	if !b.InBounds(c) {
		return TerrainNone
	}
	return b.Cells[c.Y][c.X].Terrain
}

// Place puts a piece on an empty, non-water cell and records its position.
func (b *Board) Place(p *Piece, c Coord) error {
	if !b.InBounds(c) {
		return fmt.Errorf("place %s: %s out of bounds", p.Type, c)
	}
	cell := b.At(c)
	if cell.Terrain == TerrainWater {
		return fmt.Errorf("place %s: %s is water", p.Type, c)
	}
	if cell.Piece != nil {
		return fmt.Errorf("place %s: %s already occupied", p.Type, c)
	}
	pos := c
	p.Position = &pos
	cell.Piece = p
	return nil
}

// Remove clears the cell at c and returns the piece that was there, if any.
// The removed piece's position is nilled out.
func (b *Board) Remove(c Coord) *Piece {
	if !b.InBounds(c) {
		return nil
	}
	cell := b.At(c)
	p := cell.Piece
	cell.Piece = nil
	if p != nil {
		p.Position = nil
	}
	return p
}

// MovePiece relocates the piece at from to the empty cell at to.
func (b *Board) MovePiece(from, to Coord) {
	p := b.Remove(from)
	if p == nil {
		return
	}
	pos := to
	p.Position = &pos
	b.At(to).Piece = p
}

// PiecesOf returns all of a side's pieces currently on the board.
func (b *Board) PiecesOf(side Side) []*Piece {
	var out []*Piece
	for y := range b.Cells {
		for x := range b.Cells[y] {
			if p := b.Cells[y][x].Piece; p != nil && p.Side == side {
				out = append(out, p)
			}
		}
	}
	return out
}

// StrongestRank returns the minimum numeric rank among a side's on-board
// pieces with combat ranks, ignoring flags and mines. Returns ok=false if
// the side has no such pieces.
func (b *Board) StrongestRank(side Side) (int, bool) {
	best, found := 0, false
	for _, p := range b.PiecesOf(side) {
		if p.Class == ClassFlag || p.Class == ClassMine {
			continue
		}
		if !found || p.Rank < best {
			best, found = p.Rank, true
		}
	}
	return best, found
}

// pathClear reports whether every cell strictly between from and to (which
// must be axis-aligned) is empty and, unless flying, passable.
func (b *Board) pathClear(from, to Coord, flying bool) bool {
	dx, dy := sign(to.X-from.X), sign(to.Y-from.Y)
	for c := (Coord{from.X + dx, from.Y + dy}); c != to; c = (Coord{c.X + dx, c.Y + dy}) {
		if b.At(c).Piece != nil {
			return false
		}
		if !flying && b.At(c).Terrain == TerrainWater {
			return false
		}
	}
	return true
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	}
	return 0
}

// Clone returns a deep copy of the board, including pieces.
func (b *Board) Clone() *Board {
	c := &Board{Width: b.Width, Height: b.Height}
	c.Cells = make([][]Cell, b.Height)
	for y := range b.Cells {
		c.Cells[y] = make([]Cell, b.Width)
		for x := range b.Cells[y] {
			src := b.Cells[y][x]
			cell := Cell{Terrain: src.Terrain}
			if src.Piece != nil {
				cp := *src.Piece
				cp.Abilities = src.Piece.Abilities.Clone()
				if src.Piece.Position != nil {
					pos := *src.Piece.Position
					cp.Position = &pos
				}
				cell.Piece = &cp
			}
			c.Cells[y][x] = cell
		}
	}
	return c
}
