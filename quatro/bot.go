package quatro

import (
	"fmt"
	"math/rand"
)

const (
	MinBotLevel = 1
	MaxBotLevel = 5

	// botAnalysisThreshold is the placed-piece count from which the bot
	// scores candidates through the analyzer; below it the remaining tree
	// is too wide to enumerate and a cheap heuristic decides.
	botAnalysisThreshold = 7

	// lowWinShare bounds the opponent win share a level-5 bot accepts when
	// a still-winnable candidate offers it.
	lowWinShare = 0.15
)

// BotPlayer picks pieces to give and cells to place by ranking rational
// outcome counts, breaking ties uniformly at random from its seeded source.
// A nil ShouldStop runs every decision to completion; a stop mid-scoring
// degrades to the heuristic over whatever was already scored.
type BotPlayer struct {
	Level      int
	ShouldStop func() bool

	analyzer *Analyzer
	rng      *rand.Rand
}

// NewBotPlayer builds a bot at the given level. The seed fixes the
// tie-break sequence: two bots built with the same seed and level make the
// same choices on the same states.
func NewBotPlayer(analyzer *Analyzer, level int, seed int64) (*BotPlayer, error) {
	if analyzer == nil {
		return nil, fmt.Errorf("bot requires an analyzer")
	}
	if level < MinBotLevel || level > MaxBotLevel {
		return nil, fmt.Errorf("bot level %d out of range [%d,%d]", level, MinBotLevel, MaxBotLevel)
	}
	return &BotPlayer{
		Level:    level,
		analyzer: analyzer,
		rng:      rand.New(rand.NewSource(seed)),
	}, nil
}

func (b *BotPlayer) stopRequested() bool {
	return b.ShouldStop != nil && b.ShouldStop()
}

// SelectPieceToGive picks a piece for the opponent to place. It fails when
// a piece is already pending or the game is over.
func (b *BotPlayer) SelectPieceToGive(s GameState) (Piece, error) {
	if _, ok := s.PendingPiece(); ok {
		return 0, fmt.Errorf("cannot select a piece while one is pending")
	}
	if s.IsOver() {
		return 0, fmt.Errorf("cannot select a piece: game is over")
	}
	pieces := s.AvailablePieces()
	if len(pieces) == 0 {
		return 0, fmt.Errorf("cannot select a piece: none available")
	}
	if s.PlacedCount() >= botAnalysisThreshold {
		if p, ok := b.giveByCounts(s, pieces); ok {
			return p, nil
		}
	}
	return b.heuristicGive(s, pieces), nil
}

// SelectPlacement picks a cell for the pending piece. It fails when no
// piece is pending or the game is over.
func (b *BotPlayer) SelectPlacement(s GameState) (Cell, error) {
	pending, ok := s.PendingPiece()
	if !ok {
		return Cell{}, fmt.Errorf("cannot select a placement: no piece is pending")
	}
	if s.IsOver() {
		return Cell{}, fmt.Errorf("cannot select a placement: game is over")
	}
	empties := s.Board.EmptyCells()
	if len(empties) == 0 {
		return Cell{}, fmt.Errorf("cannot select a placement: board is full")
	}
	// An immediate win is taken at every level.
	wins := make([]Cell, 0, len(empties))
	for _, cell := range empties {
		if b.analyzer.checker.WouldWin(s.Board, cell, pending) {
			wins = append(wins, cell)
		}
	}
	if len(wins) > 0 {
		return wins[b.rng.Intn(len(wins))], nil
	}
	if s.PlacedCount() >= botAnalysisThreshold {
		if cell, ok := b.placeByCounts(s, empties); ok {
			return cell, nil
		}
	}
	return b.heuristicPlace(s, empties), nil
}

func (b *BotPlayer) giveByCounts(s GameState, pieces []Piece) (Piece, bool) {
	me := s.ActivePlayer()
	opp := 3 - me
	var best []Piece
	var bestScore float64
	for _, p := range pieces {
		if b.stopRequested() {
			break
		}
		out, err := b.analyzer.AnalyzePieceSelection(s, p, b.ShouldStop)
		if err != nil || out.Total() == 0 {
			continue
		}
		score := b.scoreOutcomes(out, me, opp)
		if len(best) == 0 || score > bestScore {
			bestScore = score
			best = append(best[:0], p)
		} else if score == bestScore {
			best = append(best, p)
		}
	}
	if len(best) == 0 {
		return 0, false
	}
	return best[b.rng.Intn(len(best))], true
}

func (b *BotPlayer) placeByCounts(s GameState, empties []Cell) (Cell, bool) {
	me := s.ActivePlayer()
	opp := 3 - me
	var best []Cell
	var bestScore float64
	for _, cell := range empties {
		if b.stopRequested() {
			break
		}
		out, err := b.analyzer.AnalyzePlacement(s, cell.Row, cell.Col, b.ShouldStop)
		if err != nil || out.Total() == 0 {
			continue
		}
		score := b.scoreOutcomes(out, me, opp)
		if len(best) == 0 || score > bestScore {
			bestScore = score
			best = append(best[:0], cell)
		} else if score == bestScore {
			best = append(best, cell)
		}
	}
	if len(best) == 0 {
		return Cell{}, false
	}
	return best[b.rng.Intn(len(best))], true
}

// scoreOutcomes ranks a rational outcome tally from the mover's side. The
// levels climb from damage avoidance to margin play:
//
//	1: fewest opponent wins
//	2: most own wins
//	3: best win/loss margin
//	4: most non-losses (own wins plus draws)
//	5: margin play, but a candidate keeping the opponent's win share under
//	   lowWinShare while staying winnable outranks every plain margin
func (b *BotPlayer) scoreOutcomes(out GameOutcomes, me, opp int) float64 {
	mine := float64(out.WinsFor(me))
	theirs := float64(out.WinsFor(opp))
	draws := float64(out.Draws)
	total := float64(out.Total())
	switch b.Level {
	case 1:
		return -theirs
	case 2:
		return mine
	case 3:
		return mine - theirs
	case 4:
		return mine + draws
	default:
		score := mine - theirs
		if mine > 0 && theirs/total < lowWinShare {
			// Margins stay inside (-total, total], so the bonus puts every
			// low-risk candidate above every plain one.
			score += 2 * total
		}
		return score
	}
}

// heuristicGive avoids handing an immediate win when it can: safe pieces
// first, any available piece otherwise, uniformly at random.
func (b *BotPlayer) heuristicGive(s GameState, pieces []Piece) Piece {
	safe, unsafe := b.analyzer.SplitSafePieces(s)
	pool := safe
	if len(pool) == 0 {
		pool = unsafe
	}
	if len(pool) == 0 {
		pool = pieces
	}
	return pool[b.rng.Intn(len(pool))]
}

// heuristicPlace prefers cells that leave at least one safe piece to give
// afterwards; failing that, any empty cell.
func (b *BotPlayer) heuristicPlace(s GameState, empties []Cell) Cell {
	keepsSafe := make([]Cell, 0, len(empties))
	for _, cell := range empties {
		next := s.Clone()
		if placed, err := next.Place(cell.Row, cell.Col); err != nil || !placed {
			continue
		}
		if safe, _ := b.analyzer.SplitSafePieces(next); len(safe) > 0 {
			keepsSafe = append(keepsSafe, cell)
		}
	}
	pool := keepsSafe
	if len(pool) == 0 {
		pool = empties
	}
	return pool[b.rng.Intn(len(pool))]
}
