package quatro

import "fmt"

// Live-state exploration works on GameState directly, branching over gives
// and placements instead of the fixed placement order. One finished game
// counts one outcome, so the tallies here are game counts, not the
// permutation-weighted totals of AnalyzeBoard.

// AnalyzeState counts every continuation of a live state: all empty cells
// when a piece is pending, all available pieces otherwise. Results are not
// cached; this is the unpruned cross-check for the rational variant.
func (a *Analyzer) AnalyzeState(s GameState, stop func() bool) GameOutcomes {
	out, _ := a.countState(s, stop, false)
	return out
}

// AnalyzeStateRational counts continuations under rational play: an
// immediate winning placement is always taken, and a piece handing the
// opponent an immediate win is only given when no safe piece exists.
// Completed subtrees are cached by state hash.
func (a *Analyzer) AnalyzeStateRational(s GameState, stop func() bool) GameOutcomes {
	out, _ := a.countState(s, stop, true)
	return out
}

func (a *Analyzer) countState(s GameState, stop func() bool, rational bool) (GameOutcomes, bool) {
	if stopped(stop) {
		a.stats.Cancellations.Add(1)
		return GameOutcomes{}, false
	}
	a.stats.Nodes.Add(1)
	if s.Winner != 0 {
		a.stats.Terminals.Add(1)
		if s.Winner == 1 {
			return GameOutcomes{P1Wins: 1}, true
		}
		return GameOutcomes{P2Wins: 1}, true
	}
	if s.Board.Full() {
		a.stats.Terminals.Add(1)
		return GameOutcomes{Draws: 1}, true
	}
	memo := a.cfg.MemoEnabled && rational
	var key uint64
	if memo {
		key = StateHash(s)
		if cached, ok := a.stateCounts.Get(key); ok {
			a.stats.CacheHits.Add(1)
			return cached, true
		}
		a.stats.CacheMisses.Add(1)
	}
	var out GameOutcomes
	var complete bool
	if pending, ok := s.PendingPiece(); ok {
		out, complete = a.countPlacements(s, pending, stop, rational)
	} else {
		out, complete = a.countGives(s, stop, rational)
	}
	if memo && complete {
		a.stateCounts.Put(key, out)
		a.stats.CacheStores.Add(1)
	}
	return out, complete
}

func (a *Analyzer) countPlacements(s GameState, pending Piece, stop func() bool, rational bool) (GameOutcomes, bool) {
	empties := s.Board.EmptyCells()
	if rational {
		// A rational player takes an immediate win instead of branching.
		for _, cell := range empties {
			if a.checker.WouldWin(s.Board, cell, pending) {
				a.stats.Terminals.Add(1)
				if s.ActivePlayer() == 1 {
					return GameOutcomes{P1Wins: 1}, true
				}
				return GameOutcomes{P2Wins: 1}, true
			}
		}
	}
	var out GameOutcomes
	for _, cell := range empties {
		if stopped(stop) {
			return GameOutcomes{}, false
		}
		next := s.Clone()
		if placed, err := next.Place(cell.Row, cell.Col); err != nil || !placed {
			continue
		}
		childOut, complete := a.countState(next, stop, rational)
		if !complete {
			return GameOutcomes{}, false
		}
		out = out.Add(childOut)
	}
	return out, true
}

func (a *Analyzer) countGives(s GameState, stop func() bool, rational bool) (GameOutcomes, bool) {
	pieces := s.AvailablePieces()
	if rational {
		safe, unsafe := a.SplitSafePieces(s)
		if len(safe) > 0 {
			pieces = safe
		} else {
			pieces = unsafe
		}
	}
	var out GameOutcomes
	for _, p := range pieces {
		if stopped(stop) {
			return GameOutcomes{}, false
		}
		next := s.Clone()
		if gave, err := next.Give(p); err != nil || !gave {
			continue
		}
		childOut, complete := a.countState(next, stop, rational)
		if !complete {
			return GameOutcomes{}, false
		}
		out = out.Add(childOut)
	}
	return out, true
}

// SplitSafePieces partitions the available pieces of s: a piece is unsafe
// when some empty cell would let its receiver win immediately. The
// look-ahead is one ply deep on purpose; deeper threats are left to the
// search.
func (a *Analyzer) SplitSafePieces(s GameState) (safe, unsafe []Piece) {
	empties := s.Board.EmptyCells()
	for _, p := range s.AvailablePieces() {
		handsWin := false
		for _, cell := range empties {
			if a.checker.WouldWin(s.Board, cell, p) {
				handsWin = true
				break
			}
		}
		if handsWin {
			unsafe = append(unsafe, p)
		} else {
			safe = append(safe, p)
		}
	}
	return safe, unsafe
}

// AnalyzePieceSelection scores giving p from s under rational play. An
// unavailable or unplayable piece yields the zero tally; errors are
// reserved for invalid piece values.
func (a *Analyzer) AnalyzePieceSelection(s GameState, p Piece, stop func() bool) (GameOutcomes, error) {
	if !p.Valid() {
		return GameOutcomes{}, fmt.Errorf("piece value %d out of range [0,15]", p)
	}
	next := s.Clone()
	gave, err := next.Give(p)
	if err != nil {
		return GameOutcomes{}, err
	}
	if !gave {
		return GameOutcomes{}, nil
	}
	return a.AnalyzeStateRational(next, stop), nil
}

// AnalyzePlacement scores placing the pending piece at (row,col) under
// rational play. An occupied cell or missing pending piece yields the zero
// tally; errors are reserved for out-of-range cells.
func (a *Analyzer) AnalyzePlacement(s GameState, row, col int, stop func() bool) (GameOutcomes, error) {
	next := s.Clone()
	placed, err := next.Place(row, col)
	if err != nil {
		return GameOutcomes{}, err
	}
	if !placed {
		return GameOutcomes{}, nil
	}
	return a.AnalyzeStateRational(next, stop), nil
}

// EvaluateState computes the guaranteed result for the player about to act
// in s: give when no piece is pending, place otherwise. Placement keeps the
// turn, so only give edges invert the verdict. Cancellation yields Unknown,
// which is never cached.
func (a *Analyzer) EvaluateState(s GameState, stop func() bool) MinimaxResult {
	if stopped(stop) {
		a.stats.Cancellations.Add(1)
		return ResultUnknown
	}
	a.stats.Nodes.Add(1)
	if s.Winner != 0 {
		a.stats.Terminals.Add(1)
		if int(s.Winner) == s.ActivePlayer() {
			return ResultWin
		}
		return ResultLose
	}
	if s.Board.Full() {
		a.stats.Terminals.Add(1)
		return ResultDraw
	}
	memo := a.cfg.MemoEnabled
	var key uint64
	if memo {
		key = StateHash(s)
		if cached, ok := a.stateVerdicts.Get(key); ok {
			a.stats.CacheHits.Add(1)
			return cached
		}
		a.stats.CacheMisses.Add(1)
	}
	var result MinimaxResult
	if _, ok := s.PendingPiece(); ok {
		result = a.evaluatePlacements(s, stop)
	} else {
		result = a.evaluateGives(s, stop)
	}
	if memo && result != ResultUnknown {
		a.stateVerdicts.Put(key, result)
		a.stats.CacheStores.Add(1)
	}
	return result
}

func (a *Analyzer) evaluatePlacements(s GameState, stop func() bool) MinimaxResult {
	sawDraw := false
	sawUnknown := false
	for _, cell := range s.Board.EmptyCells() {
		if stopped(stop) {
			return ResultUnknown
		}
		next := s.Clone()
		if placed, err := next.Place(cell.Row, cell.Col); err != nil || !placed {
			continue
		}
		// The placer keeps the turn, so the child verdict is already from
		// this side's point of view. A winning placement surfaces as a
		// terminal Win in the child.
		switch a.EvaluateState(next, stop) {
		case ResultWin:
			return ResultWin
		case ResultDraw:
			sawDraw = true
		case ResultUnknown:
			sawUnknown = true
		}
	}
	if sawUnknown {
		return ResultUnknown
	}
	if sawDraw {
		return ResultDraw
	}
	return ResultLose
}

func (a *Analyzer) evaluateGives(s GameState, stop func() bool) MinimaxResult {
	sawDraw := false
	sawUnknown := false
	for _, p := range s.AvailablePieces() {
		if stopped(stop) {
			return ResultUnknown
		}
		next := s.Clone()
		if gave, err := next.Give(p); err != nil || !gave {
			continue
		}
		// Give hands the turn over; the opponent's verdict inverts.
		switch a.EvaluateState(next, stop).invert() {
		case ResultWin:
			return ResultWin
		case ResultDraw:
			sawDraw = true
		case ResultUnknown:
			sawUnknown = true
		}
	}
	if sawUnknown {
		return ResultUnknown
	}
	if sawDraw {
		return ResultDraw
	}
	return ResultLose
}
