package stratego

import "fmt"

// MoveError describes why a move is illegal. It is an expected,
// player-facing failure: the message is relayed verbatim to the client
// and the board is left untouched.
type MoveError struct {
	From    Coord
	To      Coord
	Message string
}

func (e *MoveError) Error() string {
	return fmt.Sprintf("illegal move %s -> %s: %s", e.From, e.To, e.Message)
}

// ValidateMove decides whether side may move the piece at from to to.
// Checks run in a fixed order and the first failure wins. Returns
// isAttack=true when the destination holds an enemy piece, so the caller
// can branch to combat resolution.
func ValidateMove(b *Board, from, to Coord, side Side) (isAttack bool, err error) {
	fail := func(msg string) (bool, error) {
		return false, &MoveError{From: from, To: to, Message: msg}
	}

	if !b.InBounds(to) {
		return fail("destination out of bounds")
	}
	if !b.InBounds(from) {
		return fail("source out of bounds")
	}

	piece := b.PieceAt(from)
	if piece == nil {
		return fail("no piece at source")
	}
	if piece.Side != side {
		return fail("piece does not belong to you")
	}
	if !piece.Moveable {
		return fail(piece.Type + " cannot move")
	}

	if b.TerrainAt(to) == TerrainWater && !piece.CanFly() {
		return fail("destination is impassable")
	}

	target := b.PieceAt(to)
	if target != nil && target.Side == side {
		return fail("destination occupied by your own piece")
	}

	dist := from.AxisDist(to)
	if dist < 0 {
		return fail("moves must be along a row or column")
	}
	if dist == 0 {
		return fail("piece must move")
	}
	if dist > piece.MoveRange() {
		return fail(fmt.Sprintf("%s cannot move %d squares", piece.Type, dist))
	}
	if dist > 1 && !b.pathClear(from, to, piece.CanFly()) {
		return fail("path is blocked")
	}

	return target != nil, nil
}
