package stratego

// ApplyReconnaissance runs the board-wide passive reveal pass executed
// once after every completed move, combat or not: any enemy piece
// orthogonally adjacent to a scout-class piece becomes revealed. Reveal
// is monotonic; nothing in the engine ever hides a revealed piece again.
func ApplyReconnaissance(b *Board) {
	for y := range b.Cells {
		for x := range b.Cells[y] {
			scout := b.Cells[y][x].Piece
			if scout == nil || scout.Class != ClassScout {
				continue
			}
			pos := Coord{x, y}
			for _, n := range []Coord{
				{pos.X + 1, pos.Y}, {pos.X - 1, pos.Y},
				{pos.X, pos.Y + 1}, {pos.X, pos.Y - 1},
			} {
				if p := b.PieceAt(n); p != nil && p.Side != scout.Side {
					p.Revealed = true
				}
			}
		}
	}
}
