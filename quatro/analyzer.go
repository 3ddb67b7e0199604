package quatro

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// maxLookupPly bounds memoization depth on the permutation model: the
// signature space grows by a factor of 16 per ply, and nodes at ply 10 and
// beyond are cheaper to recompute than to store.
const maxLookupPly = 10

// defaultParallelThreshold is the minimum number of untried branches at a
// node before it fans out, which restricts goroutine spawning to the plies
// near the root.
const defaultParallelThreshold = 14

type AnalyzerConfig struct {
	// MemoEnabled toggles every cache; disabling it makes runs bitwise
	// repeatable for cross-checking.
	MemoEnabled bool
	// ParallelThreshold is the minimum branch count before a node explores
	// its children on separate goroutines.
	ParallelThreshold int
	// MaxWorkers caps the goroutines exploring branches at any one time.
	// Values below 2 disable parallel exploration; 0 means NumCPU.
	MaxWorkers int
	// CacheStripes is rounded up to a power of two; 0 means the default.
	CacheStripes int
}

func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{
		MemoEnabled:       true,
		ParallelThreshold: defaultParallelThreshold,
		MaxWorkers:        clampWorkerCount(0),
		CacheStripes:      defaultCacheStripes,
	}
}

func clampWorkerCount(requested int) int {
	if requested > 0 {
		return requested
	}
	workers := runtime.NumCPU()
	if workers < 1 {
		workers = 1
	}
	return workers
}

// Analyzer owns the caches and settings for every analysis mode. It is safe
// for concurrent use; results accumulate in the caches across calls until
// ClearCaches.
type Analyzer struct {
	cfg     AnalyzerConfig
	checker WinChecker

	// counts and verdicts key on ply|signature over the permutation model;
	// stateCounts and stateVerdicts key on the live-state hash.
	counts        *countCache
	verdicts      *verdictCache
	stateCounts   *countCache
	stateVerdicts *verdictCache

	// workers bounds branch goroutines. Acquisition never blocks: when no
	// slot is free the branch runs inline on the current goroutine, so
	// nested fan-outs cannot deadlock on their own children.
	workers *semaphore.Weighted

	stats AnalysisStats
}

func NewAnalyzer(cfg AnalyzerConfig) *Analyzer {
	if cfg.CacheStripes <= 0 {
		cfg.CacheStripes = defaultCacheStripes
	}
	if cfg.ParallelThreshold <= 0 {
		cfg.ParallelThreshold = defaultParallelThreshold
	}
	cfg.MaxWorkers = clampWorkerCount(cfg.MaxWorkers)
	return &Analyzer{
		cfg:           cfg,
		checker:       NewWinChecker(),
		counts:        newCountCache(cfg.CacheStripes),
		verdicts:      newVerdictCache(cfg.CacheStripes),
		stateCounts:   newCountCache(cfg.CacheStripes),
		stateVerdicts: newVerdictCache(cfg.CacheStripes),
		workers:       semaphore.NewWeighted(int64(cfg.MaxWorkers)),
	}
}

func (a *Analyzer) Config() AnalyzerConfig { return a.cfg }

func (a *Analyzer) Stats() StatsSnapshot { return a.stats.Snapshot() }

func (a *Analyzer) ResetStats() { a.stats.Reset() }

type CacheSizes struct {
	Counts        int `json:"counts"`
	Verdicts      int `json:"verdicts"`
	StateCounts   int `json:"stateCounts"`
	StateVerdicts int `json:"stateVerdicts"`
}

func (s CacheSizes) Total() int {
	return s.Counts + s.Verdicts + s.StateCounts + s.StateVerdicts
}

func (a *Analyzer) CacheSizes() CacheSizes {
	return CacheSizes{
		Counts:        a.counts.Len(),
		Verdicts:      a.verdicts.Len(),
		StateCounts:   a.stateCounts.Len(),
		StateVerdicts: a.stateVerdicts.Len(),
	}
}

func (a *Analyzer) ClearCaches() {
	a.counts.Clear()
	a.verdicts.Clear()
	a.stateCounts.Clear()
	a.stateVerdicts.Clear()
}

func stopped(stop func() bool) bool {
	return stop != nil && stop()
}

func (a *Analyzer) parallelEligible(remaining int) bool {
	return a.cfg.MaxWorkers > 1 && remaining >= a.cfg.ParallelThreshold
}

// factorials[n] = n!. The full tree has 16! leaves, which still fits uint64.
var factorials = buildFactorials()

func buildFactorials() [BoardCells + 1]uint64 {
	var f [BoardCells + 1]uint64
	f[0] = 1
	for i := 1; i <= BoardCells; i++ {
		f[i] = f[i-1] * uint64(i)
	}
	return f
}

// outcomesForWin credits a win ending the game at the given ply. Player 1
// gives the first piece, so even plies are placed by player 2. The
// never-placed remainder contributes all its (15-ply)! orderings, which
// keeps the counts consistent with the tree's (16-turn)! leaves whether or
// not subtrees were pruned by the win.
func outcomesForWin(ply int) GameOutcomes {
	weight := factorials[BoardCells-1-ply]
	if ply%2 == 0 {
		return GameOutcomes{P2Wins: weight}
	}
	return GameOutcomes{P1Wins: weight}
}

// lineWinAt reports whether a line newly completed by ply shares a trait.
// Every compact slot holds a value, so only plyLines needs checking.
func lineWinAt(c CompactBoard, ply int) bool {
	for _, lineIdx := range plyLines[ply] {
		line := winningLines[lineIdx]
		if lineSharesTrait(
			byte(c.PieceAt(line[0])),
			byte(c.PieceAt(line[1])),
			byte(c.PieceAt(line[2])),
			byte(c.PieceAt(line[3])),
		) {
			return true
		}
	}
	return false
}

// prefixSignature folds the pieces placed before turn into the canonical
// signature and surviving-symmetry mask that the recursion then extends one
// piece at a time.
func (a *Analyzer) prefixSignature(c CompactBoard, turn int) (uint64, uint64) {
	if !a.cfg.MemoEnabled || turn >= maxLookupPly {
		return 0, 0
	}
	var sig uint64
	candidates := allSymmetries
	for k := 0; k < turn; k++ {
		v, kept := canonicalStep(candidates, byte(c.PieceAt(placementOrder[k])))
		sig |= uint64(v) << (4 * uint(k))
		candidates = kept
	}
	return sig, candidates
}

// depthKey packs ply and signature into one cache key. A cached signature
// occupies at most maxLookupPly nibbles, so the ply tag above bit 40 keeps
// the pairs distinct.
func depthKey(turn int, sig uint64) uint64 {
	return uint64(turn)<<40 | sig
}

// AnalyzeFullGame counts the terminal outcome of all 16! piece orderings.
func (a *Analyzer) AnalyzeFullGame(stop func() bool) GameOutcomes {
	out, _ := a.countFrom(IdentityCompactBoard(), 0, stop)
	return out
}

// AnalyzeBoard counts the outcomes of every completion of the permutation
// prefix fixed through turn. The prefix must be win-free: a finished game
// has no continuations to count. A cancelled run returns the zero tally.
func (a *Analyzer) AnalyzeBoard(c CompactBoard, turn int, stop func() bool) (GameOutcomes, error) {
	if turn < 0 || turn > BoardCells {
		return GameOutcomes{}, fmt.Errorf("turn %d out of range [0,%d]", turn, BoardCells)
	}
	out, _ := a.countFrom(c, turn, stop)
	return out, nil
}

func (a *Analyzer) countFrom(c CompactBoard, turn int, stop func() bool) (GameOutcomes, bool) {
	sig, cands := a.prefixSignature(c, turn)
	return a.countBoard(c, turn, sig, cands, stop)
}

// countBoard is the counting recursion. The bool result reports whether the
// subtree was fully explored; an interrupted tally is zero and never cached.
func (a *Analyzer) countBoard(c CompactBoard, turn int, sig, cands uint64, stop func() bool) (GameOutcomes, bool) {
	if stopped(stop) {
		a.stats.Cancellations.Add(1)
		return GameOutcomes{}, false
	}
	a.stats.Nodes.Add(1)
	if turn >= BoardCells {
		a.stats.Terminals.Add(1)
		return GameOutcomes{Draws: 1}, true
	}
	memo := a.cfg.MemoEnabled && turn < maxLookupPly
	var key uint64
	if memo {
		key = depthKey(turn, sig)
		if cached, ok := a.counts.Get(key); ok {
			a.stats.CacheHits.Add(1)
			return cached, true
		}
		a.stats.CacheMisses.Add(1)
	}
	var out GameOutcomes
	var complete bool
	if a.parallelEligible(BoardCells - turn) {
		out, complete = a.countBranchesParallel(c, turn, sig, cands, stop)
	} else {
		out, complete = a.countBranches(c, turn, sig, cands, stop)
	}
	if memo && complete {
		a.counts.Put(key, out)
		a.stats.CacheStores.Add(1)
	}
	return out, complete
}

func (a *Analyzer) countBranches(c CompactBoard, turn int, sig, cands uint64, stop func() bool) (GameOutcomes, bool) {
	var out GameOutcomes
	for j := turn; j < BoardCells; j++ {
		if stopped(stop) {
			return GameOutcomes{}, false
		}
		child := c.Swapped(placementOrder[turn], placementOrder[j])
		branchOut, complete := a.countBranch(child, turn, sig, cands, stop)
		if !complete {
			return GameOutcomes{}, false
		}
		out = out.Add(branchOut)
	}
	return out, true
}

func (a *Analyzer) countBranchesParallel(c CompactBoard, turn int, sig, cands uint64, stop func() bool) (GameOutcomes, bool) {
	var p1, p2, draws atomic.Uint64
	var incomplete atomic.Bool
	fold := func(child CompactBoard) {
		branchOut, complete := a.countBranch(child, turn, sig, cands, stop)
		if !complete {
			incomplete.Store(true)
			return
		}
		p1.Add(branchOut.P1Wins)
		p2.Add(branchOut.P2Wins)
		draws.Add(branchOut.Draws)
	}
	var wg sync.WaitGroup
	for j := turn; j < BoardCells; j++ {
		if stopped(stop) {
			incomplete.Store(true)
			break
		}
		child := c.Swapped(placementOrder[turn], placementOrder[j])
		if a.workers.TryAcquire(1) {
			wg.Add(1)
			a.stats.ParallelBranches.Add(1)
			go func(child CompactBoard) {
				defer wg.Done()
				defer a.workers.Release(1)
				fold(child)
			}(child)
		} else {
			fold(child)
		}
	}
	wg.Wait()
	if incomplete.Load() {
		return GameOutcomes{}, false
	}
	return GameOutcomes{P1Wins: p1.Load(), P2Wins: p2.Load(), Draws: draws.Load()}, true
}

// countBranch scores one piece choice at turn: a newly completed line ends
// the game there, otherwise the recursion continues one ply deeper with the
// signature extended by the placed piece.
func (a *Analyzer) countBranch(child CompactBoard, turn int, sig, cands uint64, stop func() bool) (GameOutcomes, bool) {
	if lineWinAt(child, turn) {
		a.stats.Terminals.Add(1)
		return outcomesForWin(turn), true
	}
	var childSig, childCands uint64
	if a.cfg.MemoEnabled && turn+1 < maxLookupPly {
		v, kept := canonicalStep(cands, byte(child.PieceAt(placementOrder[turn])))
		childSig = sig | uint64(v)<<(4*uint(turn))
		childCands = kept
	}
	return a.countBoard(child, turn+1, childSig, childCands, stop)
}

// SolveFullGame computes the perfect-play result of the whole game for the
// side choosing the first piece placement.
func (a *Analyzer) SolveFullGame(stop func() bool) MinimaxResult {
	return a.solveFrom(IdentityCompactBoard(), 0, stop)
}

// SolveBoard computes the guaranteed result of the permutation game from
// turn, for the side picking which remaining piece fills the next position.
// The prefix must be win-free. Cancellation yields Unknown.
func (a *Analyzer) SolveBoard(c CompactBoard, turn int, stop func() bool) (MinimaxResult, error) {
	if turn < 0 || turn > BoardCells {
		return ResultUnknown, fmt.Errorf("turn %d out of range [0,%d]", turn, BoardCells)
	}
	return a.solveFrom(c, turn, stop), nil
}

func (a *Analyzer) solveFrom(c CompactBoard, turn int, stop func() bool) MinimaxResult {
	sig, cands := a.prefixSignature(c, turn)
	return a.verdictBoard(c, turn, sig, cands, stop)
}

func (a *Analyzer) verdictBoard(c CompactBoard, turn int, sig, cands uint64, stop func() bool) MinimaxResult {
	if stopped(stop) {
		a.stats.Cancellations.Add(1)
		return ResultUnknown
	}
	a.stats.Nodes.Add(1)
	if turn >= BoardCells {
		a.stats.Terminals.Add(1)
		return ResultDraw
	}
	memo := a.cfg.MemoEnabled && turn < maxLookupPly
	var key uint64
	if memo {
		key = depthKey(turn, sig)
		if cached, ok := a.verdicts.Get(key); ok {
			a.stats.CacheHits.Add(1)
			return cached
		}
		a.stats.CacheMisses.Add(1)
	}
	var result MinimaxResult
	if a.parallelEligible(BoardCells - turn) {
		result = a.verdictBranchesParallel(c, turn, sig, cands, stop)
	} else {
		result = a.verdictBranches(c, turn, sig, cands, stop)
	}
	if memo && result != ResultUnknown {
		a.verdicts.Put(key, result)
		a.stats.CacheStores.Add(1)
	}
	return result
}

// verdictBranches folds the children with minimax over {Win,Lose,Draw}. A
// single winning branch settles the node even when siblings were cut short;
// Draw and Lose need every branch known.
func (a *Analyzer) verdictBranches(c CompactBoard, turn int, sig, cands uint64, stop func() bool) MinimaxResult {
	sawDraw := false
	sawUnknown := false
	for j := turn; j < BoardCells; j++ {
		if stopped(stop) {
			return ResultUnknown
		}
		child := c.Swapped(placementOrder[turn], placementOrder[j])
		switch a.verdictBranch(child, turn, sig, cands, stop) {
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

func (a *Analyzer) verdictBranchesParallel(c CompactBoard, turn int, sig, cands uint64, stop func() bool) MinimaxResult {
	var won, sawDraw, sawUnknown atomic.Bool
	// Sibling cancellation is best effort: branches poll the flag and may
	// finish real work after it flips. Their results are still correct,
	// only possibly wasted.
	branchStop := func() bool { return won.Load() || stopped(stop) }
	fold := func(child CompactBoard) {
		switch a.verdictBranch(child, turn, sig, cands, branchStop) {
		case ResultWin:
			won.Store(true)
		case ResultDraw:
			sawDraw.Store(true)
		case ResultUnknown:
			sawUnknown.Store(true)
		}
	}
	var wg sync.WaitGroup
	for j := turn; j < BoardCells; j++ {
		if won.Load() {
			break
		}
		if stopped(stop) {
			sawUnknown.Store(true)
			break
		}
		child := c.Swapped(placementOrder[turn], placementOrder[j])
		if a.workers.TryAcquire(1) {
			wg.Add(1)
			a.stats.ParallelBranches.Add(1)
			go func(child CompactBoard) {
				defer wg.Done()
				defer a.workers.Release(1)
				fold(child)
			}(child)
		} else {
			fold(child)
		}
	}
	wg.Wait()
	if won.Load() {
		return ResultWin
	}
	if sawUnknown.Load() {
		return ResultUnknown
	}
	if sawDraw.Load() {
		return ResultDraw
	}
	return ResultLose
}

// verdictBranch scores one piece choice from the mover's side: an immediate
// line win wins outright, otherwise the opponent's verdict inverts.
func (a *Analyzer) verdictBranch(child CompactBoard, turn int, sig, cands uint64, stop func() bool) MinimaxResult {
	if lineWinAt(child, turn) {
		a.stats.Terminals.Add(1)
		return ResultWin
	}
	var childSig, childCands uint64
	if a.cfg.MemoEnabled && turn+1 < maxLookupPly {
		v, kept := canonicalStep(cands, byte(child.PieceAt(placementOrder[turn])))
		childSig = sig | uint64(v)<<(4*uint(turn))
		childCands = kept
	}
	return a.verdictBoard(child, turn+1, childSig, childCands, stop).invert()
}

// FullAnalysis runs the outcome count and the perfect-play solve over the
// whole game in one call.
func (a *Analyzer) FullAnalysis(stop func() bool) (GameOutcomes, MinimaxResult) {
	counts := a.AnalyzeFullGame(stop)
	verdict := a.SolveFullGame(stop)
	return counts, verdict
}
