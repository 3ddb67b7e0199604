package quatro

import "fmt"

// GameOutcomes tallies the terminal results of explored continuations.
type GameOutcomes struct {
	P1Wins uint64 `json:"p1Wins"`
	P2Wins uint64 `json:"p2Wins"`
	Draws  uint64 `json:"draws"`
}

func (o GameOutcomes) Add(other GameOutcomes) GameOutcomes {
	return GameOutcomes{
		P1Wins: o.P1Wins + other.P1Wins,
		P2Wins: o.P2Wins + other.P2Wins,
		Draws:  o.Draws + other.Draws,
	}
}

func (o GameOutcomes) Total() uint64 { return o.P1Wins + o.P2Wins + o.Draws }

func (o GameOutcomes) IsZero() bool { return o == GameOutcomes{} }

func (o GameOutcomes) WinsFor(player int) uint64 {
	if player == 1 {
		return o.P1Wins
	}
	return o.P2Wins
}

func (o GameOutcomes) String() string {
	return fmt.Sprintf("p1=%d p2=%d draws=%d", o.P1Wins, o.P2Wins, o.Draws)
}

// MinimaxResult is the guaranteed result for the player about to act,
// assuming perfect play from both sides. Unknown only appears when a
// search was cancelled before finishing.
type MinimaxResult uint8

const (
	ResultUnknown MinimaxResult = iota
	ResultWin
	ResultLose
	ResultDraw
)

func (r MinimaxResult) String() string {
	switch r {
	case ResultWin:
		return "win"
	case ResultLose:
		return "lose"
	case ResultDraw:
		return "draw"
	default:
		return "unknown"
	}
}

// invert flips the verdict to the opponent's point of view. Draw and
// Unknown are their own opposites.
func (r MinimaxResult) invert() MinimaxResult {
	switch r {
	case ResultWin:
		return ResultLose
	case ResultLose:
		return ResultWin
	default:
		return r
	}
}
