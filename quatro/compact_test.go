package quatro

import "testing"

// drawValues is a full arrangement with no winning line anywhere: every
// prefix of it along the placement order is win-free and the finished game
// is a draw.
var drawValues = [BoardCells]byte{0, 7, 9, 14, 11, 12, 2, 5, 6, 1, 15, 8, 13, 10, 4, 3}

// lateWinValues is win-free through ply 14 and completes column 2 as a win
// on the final ply: pieces 2,6,14,10 there all share trait bit 1.
var lateWinValues = [BoardCells]byte{0, 7, 2, 13, 11, 15, 6, 5, 9, 1, 14, 3, 4, 8, 10, 12}

func compactFromValues(vals [BoardCells]byte) CompactBoard {
	var c CompactBoard
	for pos, v := range vals {
		c |= CompactBoard(v) << (4 * uint(pos))
	}
	return c
}

// stateAtPly replays the first ply placements of the arrangement through
// the live give/place machine, following the analysis placement order.
func stateAtPly(t *testing.T, c CompactBoard, ply int) GameState {
	t.Helper()
	s := NewGameState()
	for k := 0; k < ply; k++ {
		cell := placementOrder[k]
		mustGive(t, &s, c.PieceAt(cell))
		mustPlace(t, &s, cell/BoardSize, cell%BoardSize)
	}
	return s
}

func TestPlacementOrderIsAPermutation(t *testing.T) {
	var seen [BoardCells]bool
	for _, cell := range placementOrder {
		if cell < 0 || cell >= BoardCells {
			t.Fatalf("placement order holds %d", cell)
		}
		if seen[cell] {
			t.Fatalf("placement order repeats cell %d", cell)
		}
		seen[cell] = true
	}
	// The diagonals fill first.
	diag := map[int]bool{0: true, 5: true, 10: true, 15: true}
	for k := 0; k < 4; k++ {
		if !diag[placementOrder[k]] {
			t.Fatalf("ply %d fills cell %d, want a main-diagonal cell", k, placementOrder[k])
		}
	}
	anti := map[int]bool{3: true, 6: true, 9: true, 12: true}
	for k := 4; k < 8; k++ {
		if !anti[placementOrder[k]] {
			t.Fatalf("ply %d fills cell %d, want an anti-diagonal cell", k, placementOrder[k])
		}
	}
}

func TestPlyLinesPartitionTheWinningLines(t *testing.T) {
	var filledAt [BoardCells]int
	for ply, cell := range placementOrder {
		filledAt[cell] = ply
	}
	total := 0
	seen := make(map[int]bool)
	for ply, lines := range plyLines {
		for _, lineIdx := range lines {
			if seen[lineIdx] {
				t.Fatalf("line %d appears twice in the ply tables", lineIdx)
			}
			seen[lineIdx] = true
			total++
			// The line must complete exactly at this ply.
			last := 0
			for _, cell := range winningLines[lineIdx] {
				if filledAt[cell] > last {
					last = filledAt[cell]
				}
			}
			if last != ply {
				t.Fatalf("line %d tabled at ply %d but completes at ply %d", lineIdx, ply, last)
			}
		}
	}
	if total != len(winningLines) {
		t.Fatalf("ply tables cover %d lines, want %d", total, len(winningLines))
	}
	// No line can complete before the fourth placement.
	for ply := 0; ply < 3; ply++ {
		if len(plyLines[ply]) != 0 {
			t.Fatalf("ply %d unexpectedly completes lines %v", ply, plyLines[ply])
		}
	}
}

func TestIdentityCompactBoardHoldsEachPieceAtItsPosition(t *testing.T) {
	c := IdentityCompactBoard()
	for pos := 0; pos < BoardCells; pos++ {
		if got := c.PieceAt(pos); int(got) != pos {
			t.Fatalf("position %d holds %v", pos, got)
		}
	}
}

func TestSwappedExchangesTwoPositions(t *testing.T) {
	c := IdentityCompactBoard()
	swapped := c.Swapped(2, 11)
	if swapped.PieceAt(2) != 11 || swapped.PieceAt(11) != 2 {
		t.Fatalf("swap failed: pos2=%v pos11=%v", swapped.PieceAt(2), swapped.PieceAt(11))
	}
	for pos := 0; pos < BoardCells; pos++ {
		if pos == 2 || pos == 11 {
			continue
		}
		if int(swapped.PieceAt(pos)) != pos {
			t.Fatalf("swap disturbed position %d", pos)
		}
	}
	if swapped.Swapped(2, 11) != c {
		t.Fatalf("swapping twice must restore the board")
	}
	if c.Swapped(5, 5) != c {
		t.Fatalf("self-swap must be a no-op")
	}
}

func TestCompactFromStateRoundTrip(t *testing.T) {
	full := compactFromValues(drawValues)
	for _, ply := range []int{0, 1, 5, 14, 16} {
		s := stateAtPly(t, full, ply)
		c, gotPly, err := CompactFromState(s)
		if err != nil {
			t.Fatalf("ply %d: %v", ply, err)
		}
		if gotPly != ply {
			t.Fatalf("ply %d: CompactFromState reports ply %d", ply, gotPly)
		}
		for k := 0; k < ply; k++ {
			cell := placementOrder[k]
			if c.PieceAt(cell) != full.PieceAt(cell) {
				t.Fatalf("ply %d: cell %d holds %v, want %v", ply, cell, c.PieceAt(cell), full.PieceAt(cell))
			}
		}
		board := BoardFromCompact(c, ply)
		if board != s.Board {
			t.Fatalf("ply %d: BoardFromCompact disagrees with the live board", ply)
		}
	}
}

func TestCompactFromStateFillsRemainderWithPoolPieces(t *testing.T) {
	full := compactFromValues(drawValues)
	s := stateAtPly(t, full, 3)
	c, _, err := CompactFromState(s)
	if err != nil {
		t.Fatalf("CompactFromState: %v", err)
	}
	var seen [NumPieces]bool
	for pos := 0; pos < BoardCells; pos++ {
		v := c.PieceAt(pos)
		if seen[v] {
			t.Fatalf("piece %v appears twice", v)
		}
		seen[v] = true
	}
}

func TestCompactFromStateRejectsPendingPiece(t *testing.T) {
	s := NewGameState()
	mustGive(t, &s, 3)
	if _, _, err := CompactFromState(s); err == nil {
		t.Fatalf("pending piece should have no compact equivalent")
	}
}

func TestCompactFromStateRejectsOffOrderBoards(t *testing.T) {
	s := NewGameState()
	mustGive(t, &s, 3)
	// Cell 1 is filled late in the placement order; a board holding only it
	// cannot be a placement-order prefix.
	mustPlace(t, &s, 0, 1)
	if _, _, err := CompactFromState(s); err == nil {
		t.Fatalf("off-order board should be rejected")
	}
}

func TestCompactDrawBoardHasNoWinningLine(t *testing.T) {
	b := BoardFromCompact(compactFromValues(drawValues), BoardCells)
	if NewWinChecker().HasWin(b) {
		t.Fatalf("the draw arrangement must not contain a winning line")
	}
}

func TestCompactLateWinBoardWinsOnlyOnFinalPly(t *testing.T) {
	c := compactFromValues(lateWinValues)
	for ply := 0; ply < BoardCells-1; ply++ {
		if lineWinAt(c, ply) {
			t.Fatalf("arrangement wins at ply %d, want only ply 15", ply)
		}
	}
	if !lineWinAt(c, BoardCells-1) {
		t.Fatalf("arrangement must win on the final ply")
	}
}
