package quatro

import "fmt"

const BoardCells = BoardSize * BoardSize

// Board stores one byte per cell in row-major order. Occupied cells hold a
// piece value 0..15; empty cells hold NoPiece. Piece 0 on the board and an
// empty cell are different things.
type Board struct {
	cells [BoardCells]byte
}

func NewBoard() Board {
	var b Board
	for i := range b.cells {
		b.cells[i] = NoPiece
	}
	return b
}

func (b Board) InBounds(row, col int) bool {
	return row >= 0 && col >= 0 && row < BoardSize && col < BoardSize
}

// At returns the piece at (row,col) and whether the cell is occupied.
func (b Board) At(row, col int) (Piece, bool, error) {
	if !b.InBounds(row, col) {
		return 0, false, fmt.Errorf("cell (%d,%d) out of range", row, col)
	}
	raw := b.cells[row*BoardSize+col]
	if raw == NoPiece {
		return 0, false, nil
	}
	return Piece(raw), true, nil
}

// Set writes p to (row,col) regardless of what the cell holds.
func (b *Board) Set(row, col int, p Piece) error {
	if !b.InBounds(row, col) {
		return fmt.Errorf("cell (%d,%d) out of range", row, col)
	}
	if !p.Valid() {
		return fmt.Errorf("piece value %d out of range [0,15]", p)
	}
	b.cells[row*BoardSize+col] = byte(p)
	return nil
}

// TryPlace writes p to an empty cell. It reports false without mutating when
// the cell is occupied; errors are reserved for out-of-range arguments.
func (b *Board) TryPlace(row, col int, p Piece) (bool, error) {
	if !b.InBounds(row, col) {
		return false, fmt.Errorf("cell (%d,%d) out of range", row, col)
	}
	if !p.Valid() {
		return false, fmt.Errorf("piece value %d out of range [0,15]", p)
	}
	idx := row*BoardSize + col
	if b.cells[idx] != NoPiece {
		return false, nil
	}
	b.cells[idx] = byte(p)
	return true, nil
}

func (b *Board) Remove(row, col int) error {
	if !b.InBounds(row, col) {
		return fmt.Errorf("cell (%d,%d) out of range", row, col)
	}
	b.cells[row*BoardSize+col] = NoPiece
	return nil
}

func (b Board) IsEmpty(row, col int) bool {
	return b.InBounds(row, col) && b.cells[row*BoardSize+col] == NoPiece
}

func (b Board) EmptyCells() []Cell {
	cells := make([]Cell, 0, BoardCells)
	for i, raw := range b.cells {
		if raw == NoPiece {
			cells = append(cells, CellFromIndex(i))
		}
	}
	return cells
}

func (b Board) PieceCount() int {
	count := 0
	for _, raw := range b.cells {
		if raw != NoPiece {
			count++
		}
	}
	return count
}

func (b Board) Full() bool { return b.PieceCount() == BoardCells }

// Serialize returns the 16 raw cell bytes in row-major order.
func (b Board) Serialize() []byte {
	out := make([]byte, BoardCells)
	copy(out, b.cells[:])
	return out
}

func DeserializeBoard(data []byte) (Board, error) {
	if len(data) != BoardCells {
		return Board{}, fmt.Errorf("board buffer is %d bytes, want %d", len(data), BoardCells)
	}
	var b Board
	for i, raw := range data {
		if raw != NoPiece && raw >= NumPieces {
			return Board{}, fmt.Errorf("cell %d holds invalid value 0x%02x", i, raw)
		}
		b.cells[i] = raw
	}
	return b, nil
}

func (b Board) Clone() Board { return b }
