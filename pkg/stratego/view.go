package stratego

// ViewPiece is how one piece appears to a particular viewer. Enemy
// pieces that have not been revealed carry only their side and the
// hidden marker.
type ViewPiece struct {
	ID       string `json:"id"`
	Side     Side   `json:"side"`
	Hidden   bool   `json:"hidden,omitempty"`
	Type     string `json:"type,omitempty"`
	Rank     int    `json:"rank,omitempty"`
	Class    Class  `json:"class,omitempty"`
	Moveable bool   `json:"moveable,omitempty"`
	Revealed bool   `json:"revealed,omitempty"`
}

// ViewCell is one board square as seen by a viewer.
type ViewCell struct {
	Terrain Terrain    `json:"terrain,omitempty"`
	Piece   *ViewPiece `json:"piece,omitempty"`
}

// PlayerView is the fog-of-war projection of a GameState for one side.
// It is recomputed on demand from consistent state and never stored, so
// any number of concurrent readers may share it without locking.
type PlayerView struct {
	Viewer        Side         `json:"viewer"`
	Phase         Phase        `json:"phase"`
	CurrentPlayer Side         `json:"current_player,omitempty"`
	TurnNumber    int          `json:"turn_number"`
	Winner        Side         `json:"winner,omitempty"`
	WinReason     WinReason    `json:"win_reason,omitempty"`
	Width         int          `json:"width"`
	Height        int          `json:"height"`
	Cells         [][]ViewCell `json:"cells"`
	LastMove      *MoveRecord  `json:"last_move,omitempty"`
}

// ViewFor projects the state for one viewing side: own pieces fully
// visible, unrevealed enemy pieces masked to side + hidden, terrain
// passed through as terrain.
func ViewFor(gs *GameState, viewer Side) *PlayerView {
	v := &PlayerView{
		Viewer:        viewer,
		Phase:         gs.Phase,
		CurrentPlayer: gs.CurrentPlayer,
		TurnNumber:    gs.TurnNumber,
		Winner:        gs.Winner,
		WinReason:     gs.WinReason,
		Width:         gs.Board.Width,
		Height:        gs.Board.Height,
		LastMove:      gs.LastMove,
	}
	v.Cells = make([][]ViewCell, gs.Board.Height)
	for y := range gs.Board.Cells {
		v.Cells[y] = make([]ViewCell, gs.Board.Width)
		for x := range gs.Board.Cells[y] {
			cell := gs.Board.Cells[y][x]
			vc := ViewCell{Terrain: cell.Terrain}
			if cell.Piece != nil {
				vc.Piece = maskPiece(cell.Piece, viewer)
			}
			v.Cells[y][x] = vc
		}
	}
	return v
}

func maskPiece(p *Piece, viewer Side) *ViewPiece {
	if p.Side != viewer && !p.Revealed {
		return &ViewPiece{ID: p.ID, Side: p.Side, Hidden: true}
	}
	return &ViewPiece{
		ID:       p.ID,
		Side:     p.Side,
		Type:     p.Type,
		Rank:     p.Rank,
		Class:    p.Class,
		Moveable: p.Moveable,
		Revealed: p.Revealed,
	}
}
