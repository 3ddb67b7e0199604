package main

import (
	"log"
	"time"

	"github.com/zinnin/QuatroBot/quatro"
)

// sharedAnalyzer backs every analysis consumer in the process: bot seats,
// the HTTP analysis endpoints, the hint route and the backlog workers all
// accumulate into the same caches. Analyzer shape settings (memoization,
// parallel threshold, workers, stripes) are read once at startup; time
// budgets and queue gates are read live from the config.
var sharedAnalyzer = newAnalyzerFromConfig(DefaultConfig())

func newAnalyzerFromConfig(cfg Config) *quatro.Analyzer {
	ac := quatro.DefaultAnalyzerConfig()
	ac.MemoEnabled = cfg.AnalyzerMemo
	if cfg.AnalyzerParallelAt > 0 {
		ac.ParallelThreshold = cfg.AnalyzerParallelAt
	}
	if cfg.AnalyzerWorkers > 0 {
		ac.MaxWorkers = cfg.AnalyzerWorkers
	}
	if cfg.AnalyzerStripes > 0 {
		ac.CacheStripes = cfg.AnalyzerStripes
	}
	return quatro.NewAnalyzer(ac)
}

// logAnalysisStats reports one finished analysis pass as the delta between
// two snapshots of the shared analyzer counters.
func logAnalysisStats(tag string, elapsed time.Duration, before, after quatro.StatsSnapshot) {
	if !GetConfig().LogAnalysisStats {
		return
	}
	nodes := after.Nodes - before.Nodes
	terminals := after.Terminals - before.Terminals
	hits := after.CacheHits - before.CacheHits
	misses := after.CacheMisses - before.CacheMisses
	stores := after.CacheStores - before.CacheStores
	parallel := after.ParallelBranches - before.ParallelBranches
	cancels := after.Cancellations - before.Cancellations
	nps := 0.0
	if elapsed > 0 {
		nps = float64(nodes) / elapsed.Seconds()
	}
	hitRate := 0.0
	if hits+misses > 0 {
		hitRate = 100 * float64(hits) / float64(hits+misses)
	}
	sizes := sharedAnalyzer.CacheSizes()
	log.Printf("[analyzer:%s] t=%dms nodes=%d terminals=%d nps=%.0f cache_hit=%d hit_rate=%.1f%% stores=%d parallel=%d cancels=%d sizes=(c:%d v:%d sc:%d sv:%d)",
		tag, elapsed.Milliseconds(), nodes, terminals, nps, hits, hitRate,
		stores, parallel, cancels,
		sizes.Counts, sizes.Verdicts, sizes.StateCounts, sizes.StateVerdicts)
}

type giveCandidateDTO struct {
	Piece    int                 `json:"piece"`
	Outcomes quatro.GameOutcomes `json:"outcomes"`
	Safe     bool                `json:"safe"`
}

type placeCandidateDTO struct {
	Row      int                 `json:"row"`
	Col      int                 `json:"col"`
	Outcomes quatro.GameOutcomes `json:"outcomes"`
	Wins     bool                `json:"wins"`
}

// buildGiveCandidates rates every piece the active player could hand over.
// Returns nil when the position is not a give turn.
func buildGiveCandidates(state quatro.GameState, stop func() bool) []giveCandidateDTO {
	if _, pending := state.PendingPiece(); pending || state.IsOver() {
		return nil
	}
	safe, _ := sharedAnalyzer.SplitSafePieces(state)
	safeSet := make(map[quatro.Piece]bool, len(safe))
	for _, p := range safe {
		safeSet[p] = true
	}
	pieces := state.AvailablePieces()
	candidates := make([]giveCandidateDTO, 0, len(pieces))
	for _, p := range pieces {
		out, err := sharedAnalyzer.AnalyzePieceSelection(state, p, stop)
		if err != nil {
			continue
		}
		candidates = append(candidates, giveCandidateDTO{
			Piece:    int(p),
			Outcomes: out,
			Safe:     safeSet[p],
		})
	}
	return candidates
}

// buildPlaceCandidates rates every empty cell for the pending piece.
// Returns nil when no piece is waiting to be placed.
func buildPlaceCandidates(state quatro.GameState, stop func() bool) []placeCandidateDTO {
	if _, pending := state.PendingPiece(); !pending || state.IsOver() {
		return nil
	}
	empties := state.Board.EmptyCells()
	candidates := make([]placeCandidateDTO, 0, len(empties))
	for _, cell := range empties {
		out, err := sharedAnalyzer.AnalyzePlacement(state, cell.Row, cell.Col, stop)
		if err != nil {
			continue
		}
		next := state.Clone()
		applied, _ := next.Place(cell.Row, cell.Col)
		candidates = append(candidates, placeCandidateDTO{
			Row:      cell.Row,
			Col:      cell.Col,
			Outcomes: out,
			Wins:     applied && next.Winner != 0,
		})
	}
	return candidates
}
