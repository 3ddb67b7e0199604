// Package quatro implements the 4x4 four-trait placement game and the
// exhaustive analysis engine behind the bot: outcome counting, minimax
// solving, symmetry-reduced memoization, and rational-play pruning.
package quatro

import "fmt"

// Piece encodes the four binary traits of a game piece in its low 4 bits:
// bit 0 tall, bit 1 dark, bit 2 round, bit 3 hollow.
type Piece uint8

const (
	NumPieces = 16
	NumTraits = 4
)

// NoPiece is the serialization sentinel for an empty cell or no pending piece.
const NoPiece byte = 0xFF

func NewPiece(v int) (Piece, error) {
	if v < 0 || v >= NumPieces {
		return 0, fmt.Errorf("piece value %d out of range [0,15]", v)
	}
	return Piece(v), nil
}

func (p Piece) Valid() bool { return p < NumPieces }

func (p Piece) Tall() bool   { return p&1 != 0 }
func (p Piece) Dark() bool   { return p&2 != 0 }
func (p Piece) Round() bool  { return p&4 != 0 }
func (p Piece) Hollow() bool { return p&8 != 0 }

func (p Piece) HasTrait(bit int) bool {
	return bit >= 0 && bit < NumTraits && p&(1<<bit) != 0
}

// SharesTrait reports whether p and other agree on trait bit, set or clear.
func (p Piece) SharesTrait(other Piece, bit int) bool {
	if bit < 0 || bit >= NumTraits {
		return false
	}
	mask := Piece(1) << bit
	return p&mask == other&mask
}

// String renders the trait letters, uppercase when the trait is set:
// piece 5 (tall, round) prints as "TdRh".
func (p Piece) String() string {
	if !p.Valid() {
		return "none"
	}
	letters := [NumTraits]byte{'t', 'd', 'r', 'h'}
	out := make([]byte, NumTraits)
	for bit := 0; bit < NumTraits; bit++ {
		c := letters[bit]
		if p.HasTrait(bit) {
			c -= 'a' - 'A'
		}
		out[bit] = c
	}
	return string(out)
}
