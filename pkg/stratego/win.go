package stratego

// CheckWinCondition tests whether side has lost: either its flag-class
// piece is gone, or it has no moveable pieces left. It is evaluated
// after every move against the opponent of the mover. Flag loss is
// reported first; an in-move flag capture ends the match inside combat
// resolution before this check runs.
func CheckWinCondition(b *Board, side Side) (gameOver bool, reason WinReason) {
	hasFlag := false
	hasMoveable := false
	for _, p := range b.PiecesOf(side) {
		if p.Class == ClassFlag {
			hasFlag = true
		}
		if p.Moveable {
			hasMoveable = true
		}
		if hasFlag && hasMoveable {
			return false, ""
		}
	}
	if !hasFlag {
		return true, WinFlagCaptured
	}
	return true, WinNoMoves
}
