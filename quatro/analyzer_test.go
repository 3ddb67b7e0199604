package quatro

import "testing"

func sequentialAnalyzer(memo bool) *Analyzer {
	return NewAnalyzer(AnalyzerConfig{
		MemoEnabled: memo,
		MaxWorkers:  1,
	})
}

func applyTraitMap(c CompactBoard, m [NumPieces]byte) CompactBoard {
	var out CompactBoard
	for pos := 0; pos < BoardCells; pos++ {
		out |= CompactBoard(m[c.PieceAt(pos)]) << (4 * uint(pos))
	}
	return out
}

func TestFactorialsTable(t *testing.T) {
	if factorials[0] != 1 || factorials[1] != 1 {
		t.Fatalf("small factorials wrong: %d %d", factorials[0], factorials[1])
	}
	if factorials[8] != 40320 {
		t.Fatalf("8! = %d", factorials[8])
	}
	if factorials[16] != 20922789888000 {
		t.Fatalf("16! = %d", factorials[16])
	}
}

func TestAnalyzeBoardTotalsMatchRemainingPermutations(t *testing.T) {
	a := sequentialAnalyzer(true)
	out, err := a.AnalyzeBoard(IdentityCompactBoard(), 8, nil)
	if err != nil {
		t.Fatalf("AnalyzeBoard: %v", err)
	}
	if got := out.Total(); got != factorials[8] {
		t.Fatalf("total = %d, want %d", got, factorials[8])
	}
	if out.IsZero() {
		t.Fatalf("expected a non-zero tally")
	}
}

func TestAnalyzeBoardMemoizedMatchesUnmemoized(t *testing.T) {
	memo := sequentialAnalyzer(true)
	plain := sequentialAnalyzer(false)
	c := IdentityCompactBoard()

	got, err := memo.AnalyzeBoard(c, 8, nil)
	if err != nil {
		t.Fatalf("memoized: %v", err)
	}
	want, err := plain.AnalyzeBoard(c, 8, nil)
	if err != nil {
		t.Fatalf("unmemoized: %v", err)
	}
	if got != want {
		t.Fatalf("memoized %v, unmemoized %v", got, want)
	}
	if memo.Stats().CacheStores == 0 {
		t.Fatalf("memoized run should store entries")
	}
	if plain.Stats().CacheStores != 0 {
		t.Fatalf("unmemoized run must not touch the caches")
	}
	if plain.CacheSizes().Total() != 0 {
		t.Fatalf("unmemoized caches hold %d entries", plain.CacheSizes().Total())
	}
}

func TestAnalyzeBoardCountsDrawTail(t *testing.T) {
	a := sequentialAnalyzer(true)
	c := compactFromValues(drawValues)
	cases := []struct {
		turn int
		want GameOutcomes
	}{
		{16, GameOutcomes{Draws: 1}},
		{15, GameOutcomes{Draws: 1}},
		{14, GameOutcomes{Draws: 2}},
		{13, GameOutcomes{Draws: 6}},
		{12, GameOutcomes{Draws: 24}},
	}
	for _, tc := range cases {
		got, err := a.AnalyzeBoard(c, tc.turn, nil)
		if err != nil {
			t.Fatalf("turn %d: %v", tc.turn, err)
		}
		if got != tc.want {
			t.Fatalf("turn %d: %v, want %v", tc.turn, got, tc.want)
		}
	}
}

func TestAnalyzeBoardWeightsWinsByUnplacedOrderings(t *testing.T) {
	a := sequentialAnalyzer(true)
	c := compactFromValues(lateWinValues)

	// The final ply is player 1's (odd plies are theirs).
	out, err := a.AnalyzeBoard(c, 15, nil)
	if err != nil {
		t.Fatalf("turn 15: %v", err)
	}
	if (out != GameOutcomes{P1Wins: 1}) {
		t.Fatalf("turn 15: %v, want one player-1 win", out)
	}

	out, err = a.AnalyzeBoard(c, 14, nil)
	if err != nil {
		t.Fatalf("turn 14: %v", err)
	}
	if (out != GameOutcomes{P1Wins: 2}) {
		t.Fatalf("turn 14: %v, want two player-1 wins", out)
	}

	// From turn 13 one branch wins immediately at ply 13 and counts both
	// orderings of the two never-placed pieces; another ordering hands
	// player 2 a column of pieces sharing a clear bit on ply 14.
	out, err = a.AnalyzeBoard(c, 13, nil)
	if err != nil {
		t.Fatalf("turn 13: %v", err)
	}
	if (out != GameOutcomes{P1Wins: 5, P2Wins: 1}) {
		t.Fatalf("turn 13: %v, want p1=5 p2=1", out)
	}
	if got := out.Total(); got != factorials[3] {
		t.Fatalf("turn 13 total = %d, want %d", got, factorials[3])
	}
}

func TestAnalyzeBoardRejectsOutOfRangeTurn(t *testing.T) {
	a := sequentialAnalyzer(true)
	if _, err := a.AnalyzeBoard(IdentityCompactBoard(), -1, nil); err == nil {
		t.Fatalf("negative turn should fail")
	}
	if _, err := a.AnalyzeBoard(IdentityCompactBoard(), BoardCells+1, nil); err == nil {
		t.Fatalf("turn beyond the board should fail")
	}
	if _, err := a.SolveBoard(IdentityCompactBoard(), 17, nil); err == nil {
		t.Fatalf("solve beyond the board should fail")
	}
}

func TestAnalyzeBoardInvariantUnderTraitRelabeling(t *testing.T) {
	c := IdentityCompactBoard()
	mapped := applyTraitMap(c, symmetryMaps[17])

	// Ground truth without caches.
	plain := sequentialAnalyzer(false)
	want, _ := plain.AnalyzeBoard(c, 8, nil)
	got, _ := plain.AnalyzeBoard(mapped, 8, nil)
	if got != want {
		t.Fatalf("relabeled board counts %v, want %v", got, want)
	}

	// With memoization the relabeled board folds to the same signatures and
	// resolves from cache.
	memo := sequentialAnalyzer(true)
	first, _ := memo.AnalyzeBoard(c, 8, nil)
	hitsBefore := memo.Stats().CacheHits
	second, _ := memo.AnalyzeBoard(mapped, 8, nil)
	if first != second {
		t.Fatalf("memoized relabeled counts %v, want %v", second, first)
	}
	if memo.Stats().CacheHits <= hitsBefore {
		t.Fatalf("relabeled rerun should hit the cache")
	}
}

func TestSolveBoardVerdictsOnFixedTails(t *testing.T) {
	a := sequentialAnalyzer(true)
	draw := compactFromValues(drawValues)
	lateWin := compactFromValues(lateWinValues)

	cases := []struct {
		name string
		c    CompactBoard
		turn int
		want MinimaxResult
	}{
		{"draw full board", draw, 16, ResultDraw},
		{"draw forced last ply", draw, 15, ResultDraw},
		{"draw both arrangements", draw, 14, ResultDraw},
		{"draw all six arrangements", draw, 13, ResultDraw},
		{"forced winning completion", lateWin, 15, ResultWin},
		{"every choice loses", lateWin, 14, ResultLose},
		{"immediate win available", lateWin, 13, ResultWin},
	}
	for _, tc := range cases {
		got, err := a.SolveBoard(tc.c, tc.turn, nil)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: verdict %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestSolveBoardAgreesWithCountsOnWinlessSubtrees(t *testing.T) {
	a := sequentialAnalyzer(true)
	c := compactFromValues(drawValues)
	out, err := a.AnalyzeBoard(c, 12, nil)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if out.P1Wins != 0 || out.P2Wins != 0 {
		t.Fatalf("expected a winless subtree, got %v", out)
	}
	verdict, err := a.SolveBoard(c, 12, nil)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if verdict != ResultDraw {
		t.Fatalf("a winless subtree must solve to a draw, got %v", verdict)
	}
}

func TestAnalyzeBoardCancellationReturnsZeroAndCachesNothing(t *testing.T) {
	a := sequentialAnalyzer(true)
	stop := func() bool { return true }
	out, err := a.AnalyzeBoard(IdentityCompactBoard(), 8, stop)
	if err != nil {
		t.Fatalf("AnalyzeBoard: %v", err)
	}
	if !out.IsZero() {
		t.Fatalf("cancelled run returned %v", out)
	}
	if a.CacheSizes().Total() != 0 {
		t.Fatalf("cancelled run stored %d cache entries", a.CacheSizes().Total())
	}
	if a.Stats().Cancellations == 0 {
		t.Fatalf("cancellation should be counted")
	}

	verdict, err := a.SolveBoard(IdentityCompactBoard(), 8, stop)
	if err != nil {
		t.Fatalf("SolveBoard: %v", err)
	}
	if verdict != ResultUnknown {
		t.Fatalf("cancelled solve = %v, want unknown", verdict)
	}
}

func TestPartialCancellationDoesNotPoisonLaterRuns(t *testing.T) {
	a := sequentialAnalyzer(true)
	calls := 0
	stop := func() bool {
		calls++
		return calls > 500
	}
	partial, err := a.AnalyzeBoard(IdentityCompactBoard(), 8, stop)
	if err != nil {
		t.Fatalf("partial run: %v", err)
	}
	if !partial.IsZero() {
		t.Fatalf("interrupted run returned %v", partial)
	}

	full, err := a.AnalyzeBoard(IdentityCompactBoard(), 8, nil)
	if err != nil {
		t.Fatalf("full run: %v", err)
	}
	if got := full.Total(); got != factorials[8] {
		t.Fatalf("total after earlier cancellation = %d, want %d", got, factorials[8])
	}
}

func TestParallelCountMatchesSequential(t *testing.T) {
	seq := sequentialAnalyzer(true)
	par := NewAnalyzer(AnalyzerConfig{
		MemoEnabled:       true,
		ParallelThreshold: 2,
		MaxWorkers:        4,
	})
	c := compactFromValues(drawValues)

	want, err := seq.AnalyzeBoard(c, 12, nil)
	if err != nil {
		t.Fatalf("sequential: %v", err)
	}
	got, err := par.AnalyzeBoard(c, 12, nil)
	if err != nil {
		t.Fatalf("parallel: %v", err)
	}
	if got != want {
		t.Fatalf("parallel %v, sequential %v", got, want)
	}
	if par.Stats().ParallelBranches == 0 {
		t.Fatalf("expected branch goroutines with a low threshold")
	}

	verdict, err := par.SolveBoard(compactFromValues(lateWinValues), 13, nil)
	if err != nil {
		t.Fatalf("parallel solve: %v", err)
	}
	if verdict != ResultWin {
		t.Fatalf("parallel solve = %v, want win", verdict)
	}
}

func TestFullAnalysisHonorsCancellation(t *testing.T) {
	a := sequentialAnalyzer(true)
	stop := func() bool { return true }
	counts, verdict := a.FullAnalysis(stop)
	if !counts.IsZero() {
		t.Fatalf("cancelled full analysis counted %v", counts)
	}
	if verdict != ResultUnknown {
		t.Fatalf("cancelled full analysis verdict = %v", verdict)
	}
}

func TestClearCachesEmptiesEverything(t *testing.T) {
	a := sequentialAnalyzer(true)
	if _, err := a.AnalyzeBoard(IdentityCompactBoard(), 8, nil); err != nil {
		t.Fatalf("AnalyzeBoard: %v", err)
	}
	if a.CacheSizes().Total() == 0 {
		t.Fatalf("expected cached entries before clearing")
	}
	a.ClearCaches()
	if a.CacheSizes().Total() != 0 {
		t.Fatalf("caches hold %d entries after clearing", a.CacheSizes().Total())
	}
}
