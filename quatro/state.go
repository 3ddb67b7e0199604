package quatro

import (
	"encoding/binary"
	"fmt"
)

// StateBytes is the length of a serialized GameState.
const StateBytes = 20

const allPiecesMask uint16 = 0xFFFF

var stateChecker = NewWinChecker()

// GameState is the full position between moves: the board, the bitmask of
// pieces still in the pool (bit v = piece v available), the piece handed
// over but not yet placed, whose turn it is, and the winner (0 while the
// game runs). Player 1 gives first, so placements alternate starting with
// player 2.
type GameState struct {
	Board     Board
	Available uint16
	Pending   byte
	P1Turn    bool
	Winner    uint8
}

func NewGameState() GameState {
	return GameState{
		Board:     NewBoard(),
		Available: allPiecesMask,
		Pending:   NoPiece,
		P1Turn:    true,
	}
}

func (s GameState) ActivePlayer() int {
	if s.P1Turn {
		return 1
	}
	return 2
}

func (s GameState) IsOver() bool {
	return s.Winner != 0 || s.Board.Full()
}

func (s GameState) IsDraw() bool {
	return s.Winner == 0 && s.Board.Full()
}

func (s GameState) PieceAvailable(p Piece) bool {
	return p.Valid() && s.Available&(1<<p) != 0
}

func (s GameState) AvailablePieces() []Piece {
	pieces := make([]Piece, 0, NumPieces)
	for v := 0; v < NumPieces; v++ {
		if s.Available&(1<<v) != 0 {
			pieces = append(pieces, Piece(v))
		}
	}
	return pieces
}

func (s GameState) PendingPiece() (Piece, bool) {
	if s.Pending == NoPiece {
		return 0, false
	}
	return Piece(s.Pending), true
}

func (s GameState) PlacedCount() int { return s.Board.PieceCount() }

// Give removes p from the pool and hands it to the opponent to place. It
// reports false without mutating when p is not available, another piece is
// already pending, or the game is over. The turn flips: whoever received
// the piece acts next.
func (s *GameState) Give(p Piece) (bool, error) {
	if !p.Valid() {
		return false, fmt.Errorf("piece value %d out of range [0,15]", p)
	}
	if s.IsOver() || s.Pending != NoPiece || !s.PieceAvailable(p) {
		return false, nil
	}
	s.Available &^= 1 << p
	s.Pending = byte(p)
	s.P1Turn = !s.P1Turn
	return true, nil
}

// Place puts the pending piece at (row,col). It reports false without
// mutating when no piece is pending, the cell is occupied, or the game is
// over. Completing a line sets the winner to the player who placed. The
// turn does not flip: the placer gives the next piece.
func (s *GameState) Place(row, col int) (bool, error) {
	if !s.Board.InBounds(row, col) {
		return false, fmt.Errorf("cell (%d,%d) out of range", row, col)
	}
	if s.IsOver() || s.Pending == NoPiece {
		return false, nil
	}
	placed, err := s.Board.TryPlace(row, col, Piece(s.Pending))
	if err != nil || !placed {
		return false, err
	}
	s.Pending = NoPiece
	if stateChecker.winAt(s.Board, row*BoardSize+col) {
		s.Winner = uint8(s.ActivePlayer())
	}
	return true, nil
}

// Serialize packs the state into 20 bytes: the 16 board cells, the
// little-endian availability mask, the pending piece, and a flags byte
// (bit 0 set when player 1 is active, bits 1-2 the winner).
func (s GameState) Serialize() []byte {
	out := make([]byte, StateBytes)
	copy(out[:BoardCells], s.Board.cells[:])
	binary.LittleEndian.PutUint16(out[16:18], s.Available)
	out[18] = s.Pending
	flags := s.Winner << 1
	if s.P1Turn {
		flags |= 1
	}
	out[19] = flags
	return out
}

func DeserializeGameState(data []byte) (GameState, error) {
	if len(data) != StateBytes {
		return GameState{}, fmt.Errorf("state buffer is %d bytes, want %d", len(data), StateBytes)
	}
	board, err := DeserializeBoard(data[:BoardCells])
	if err != nil {
		return GameState{}, err
	}
	pending := data[18]
	if pending != NoPiece && pending >= NumPieces {
		return GameState{}, fmt.Errorf("pending slot holds invalid value 0x%02x", pending)
	}
	flags := data[19]
	if flags&^0x07 != 0 {
		return GameState{}, fmt.Errorf("flags byte holds invalid value 0x%02x", flags)
	}
	winner := flags >> 1
	if winner > 2 {
		return GameState{}, fmt.Errorf("winner value %d out of range", winner)
	}
	return GameState{
		Board:     board,
		Available: binary.LittleEndian.Uint16(data[16:18]),
		Pending:   pending,
		P1Turn:    flags&1 != 0,
		Winner:    winner,
	}, nil
}

func (s GameState) Clone() GameState { return s }
