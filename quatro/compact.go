package quatro

import "fmt"

// CompactBoard packs a piece value into 4 bits per cell position, the full
// board in one uint64. Every slot always holds a piece: the exhaustive
// search treats the game as a permutation of the 16 pieces over the 16
// positions, with only the placement-order prefix counting as played. The
// empty-cell sentinel of Board has no equivalent here.
type CompactBoard uint64

// placementOrder fixes which cell each ply fills: both diagonals first,
// then cells chosen so completed lines arrive spread across the remaining
// plies. Moving line completions toward the shallow plies lets losing
// branches terminate close to the root.
var placementOrder = [BoardCells]int{0, 5, 10, 15, 3, 6, 9, 12, 4, 7, 8, 1, 2, 13, 11, 14}

// plyLines[k] indexes the winning lines that become fully contained in the
// placement-order prefix exactly when ply k fills placementOrder[k]. Only
// those lines can newly complete at ply k.
var plyLines = buildPlyLines()

func buildPlyLines() [BoardCells][]int {
	var filledAt [BoardCells]int
	for ply, cell := range placementOrder {
		filledAt[cell] = ply
	}
	var out [BoardCells][]int
	for lineIdx, line := range winningLines {
		last := 0
		for _, cell := range line {
			if filledAt[cell] > last {
				last = filledAt[cell]
			}
		}
		out[last] = append(out[last], lineIdx)
	}
	return out
}

// IdentityCompactBoard holds piece v at position v.
func IdentityCompactBoard() CompactBoard {
	var c CompactBoard
	for pos := 0; pos < BoardCells; pos++ {
		c |= CompactBoard(pos) << (4 * uint(pos))
	}
	return c
}

func (c CompactBoard) PieceAt(pos int) Piece {
	return Piece(c >> (4 * uint(pos)) & 0xF)
}

// Swapped exchanges the pieces at positions i and j.
func (c CompactBoard) Swapped(i, j int) CompactBoard {
	si := 4 * uint(i)
	sj := 4 * uint(j)
	vi := c >> si & 0xF
	vj := c >> sj & 0xF
	c &^= 0xF<<si | 0xF<<sj
	return c | vi<<sj | vj<<si
}

func (c CompactBoard) String() string {
	out := make([]byte, 0, BoardCells+3)
	for pos := 0; pos < BoardCells; pos++ {
		if pos > 0 && pos%BoardSize == 0 {
			out = append(out, '/')
		}
		out = append(out, "0123456789abcdef"[c.PieceAt(pos)])
	}
	return string(out)
}

// CompactFromState maps a live state onto the permutation view. The
// occupied cells must exactly match the placement-order prefix, and no
// piece may be pending (the permutation model has no between-moves
// position). Unplaced pieces fill the remaining order positions in
// ascending value; the returned ply is the number of placed pieces.
func CompactFromState(s GameState) (CompactBoard, int, error) {
	if s.Pending != NoPiece {
		return 0, 0, fmt.Errorf("state with a pending piece has no compact equivalent")
	}
	ply := s.Board.PieceCount()
	for k, cell := range placementOrder {
		occupied := s.Board.cells[cell] != NoPiece
		if k < ply && !occupied {
			return 0, 0, fmt.Errorf("board does not follow the analysis placement order: cell %d empty at ply %d", cell, k)
		}
		if k >= ply && occupied {
			return 0, 0, fmt.Errorf("board does not follow the analysis placement order: cell %d filled beyond ply %d", cell, ply)
		}
	}
	var c CompactBoard
	for k := 0; k < ply; k++ {
		cell := placementOrder[k]
		c |= CompactBoard(s.Board.cells[cell]) << (4 * uint(cell))
	}
	rest := make([]byte, 0, BoardCells-ply)
	for v := 0; v < NumPieces; v++ {
		if s.Available&(1<<v) != 0 {
			rest = append(rest, byte(v))
		}
	}
	if len(rest) != BoardCells-ply {
		return 0, 0, fmt.Errorf("pool holds %d pieces, want %d for %d placed", len(rest), BoardCells-ply, ply)
	}
	for i, v := range rest {
		cell := placementOrder[ply+i]
		c |= CompactBoard(v) << (4 * uint(cell))
	}
	return c, ply, nil
}

// BoardFromCompact expands the first ply placement-order positions into a
// live board; the rest stay empty.
func BoardFromCompact(c CompactBoard, ply int) Board {
	b := NewBoard()
	if ply > BoardCells {
		ply = BoardCells
	}
	for k := 0; k < ply; k++ {
		cell := placementOrder[k]
		b.cells[cell] = byte(c.PieceAt(cell))
	}
	return b
}
