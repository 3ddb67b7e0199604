package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"github.com/zinnin/QuatroBot/quatro"
)

type solver struct {
	analyzer      *quatro.Analyzer
	logger        *log.Logger
	cachePath     string
	reportPath    string
	dbPath        string
	branchWorkers int
	progressEvery time.Duration
	solveVerdict  bool

	mu       sync.Mutex
	phase    string
	branches []branchResult
}

type branchResult struct {
	Piece     int                 `json:"piece"`
	Outcomes  quatro.GameOutcomes `json:"outcomes"`
	ElapsedMs int64               `json:"elapsed_ms"`
	Done      bool                `json:"done"`
}

type runReport struct {
	ID             string               `json:"id"`
	StartedAt      string               `json:"started_at"`
	FinishedAt     string               `json:"finished_at"`
	ElapsedMs      int64                `json:"elapsed_ms"`
	Completed      bool                 `json:"completed"`
	Branches       []branchResult       `json:"branches"`
	Totals         quatro.GameOutcomes  `json:"totals"`
	TotalOrderings uint64               `json:"total_orderings"`
	Verdict        string               `json:"verdict,omitempty"`
	Stats          quatro.StatsSnapshot `json:"stats"`
	CacheEntries   int                  `json:"cache_entries"`
	BranchWorkers  int                  `json:"branch_workers"`
	NodeWorkers    int                  `json:"node_workers"`
	MemoEnabled    bool                 `json:"memo_enabled"`
}

func main() {
	logger, closeLog, err := buildLogger(getenv("SOLVER_LOG_PATH", "logs/solver.log"))
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer closeLog()

	cfg := quatro.DefaultAnalyzerConfig()
	if envDisabled("SOLVER_MEMO") {
		cfg.MemoEnabled = false
	}
	cfg.ParallelThreshold = getenvInt("SOLVER_PARALLEL_AT", cfg.ParallelThreshold)
	cfg.MaxWorkers = getenvInt("SOLVER_WORKERS", cfg.MaxWorkers)
	cfg.CacheStripes = getenvInt("SOLVER_CACHE_STRIPES", cfg.CacheStripes)

	s := &solver{
		analyzer:      quatro.NewAnalyzer(cfg),
		logger:        logger,
		cachePath:     getenv("SOLVER_CACHE_PATH", "data/solver_caches.gob"),
		reportPath:    getenv("SOLVER_REPORT_PATH", "data/full_game_report.json"),
		dbPath:        getenv("SOLVER_DB_PATH", ""),
		branchWorkers: getenvInt("SOLVER_BRANCH_WORKERS", 4),
		progressEvery: time.Duration(getenvInt("SOLVER_PROGRESS_SEC", 30)) * time.Second,
		solveVerdict:  !envDisabled("SOLVER_VERDICT"),
		phase:         "starting",
	}
	effective := s.analyzer.Config()
	s.logf("Solver started. memo=%v node_workers=%d parallel_at=%d branch_workers=%d report=%s",
		effective.MemoEnabled, effective.MaxWorkers, effective.ParallelThreshold, s.branchWorkers, s.reportPath)

	if err := s.analyzer.LoadCaches(s.cachePath); err != nil {
		s.logf("Cache load failed: %v", err)
	} else if total := s.analyzer.CacheSizes().Total(); total > 0 {
		s.logf("Loaded %d cached entries from %s", total, s.cachePath)
	}

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	started := time.Now()
	progressDone := make(chan struct{})
	go s.progressLoop(progressDone, started)

	completed := s.countAllBranches(sigCtx)
	totals := s.mergedTotals()

	verdict := quatro.ResultUnknown
	if completed && s.solveVerdict {
		s.setPhase("solving")
		s.logf("Counting finished, starting perfect-play solve")
		began := time.Now()
		verdict = s.analyzer.SolveFullGame(func() bool { return sigCtx.Err() != nil })
		if verdict == quatro.ResultUnknown {
			completed = false
			s.logf("Solve interrupted after %s", time.Since(began).Round(time.Millisecond))
		} else {
			s.logf("Solve finished in %s: first placement side result=%s",
				time.Since(began).Round(time.Millisecond), verdict)
		}
	}
	close(progressDone)
	s.setPhase("reporting")

	elapsed := time.Since(started)
	if completed {
		s.logf("Run complete in %s: %s total_orderings=%d", elapsed.Round(time.Second), totals, totals.Total())
		if err := s.analyzer.SaveCaches(s.cachePath); err != nil {
			s.logf("Cache snapshot failed: %v", err)
		} else {
			s.logf("Cache snapshot saved to %s (%d entries)", s.cachePath, s.analyzer.CacheSizes().Total())
		}
	} else {
		// Partial tallies are reported but never cached; an interrupted
		// subtree counts as zero and must not poison a later run.
		s.logf("Run interrupted after %s: %d/%d branches finished, skipping cache snapshot",
			elapsed.Round(time.Second), s.doneBranches(), quatro.NumPieces)
	}

	report := runReport{
		ID:             uuid.New().String(),
		StartedAt:      started.UTC().Format(time.RFC3339),
		FinishedAt:     time.Now().UTC().Format(time.RFC3339),
		ElapsedMs:      elapsed.Milliseconds(),
		Completed:      completed,
		Branches:       s.branchSnapshot(),
		Totals:         totals,
		TotalOrderings: totals.Total(),
		Stats:          s.analyzer.Stats(),
		CacheEntries:   s.analyzer.CacheSizes().Total(),
		BranchWorkers:  s.branchWorkers,
		NodeWorkers:    effective.MaxWorkers,
		MemoEnabled:    effective.MemoEnabled,
	}
	if verdict != quatro.ResultUnknown {
		report.Verdict = verdict.String()
	}
	if err := s.writeReport(report); err != nil {
		s.logf("Report write failed: %v", err)
	} else {
		s.logf("Report written to %s", s.reportPath)
	}
	if s.dbPath != "" {
		if err := s.storeRun(report); err != nil {
			s.logf("Failed to store run in database: %v", err)
		} else {
			s.logf("Run %s stored in %s", report.ID, s.dbPath)
		}
	}
	s.logf("Solver stopping")
}

// countAllBranches splits the full tree by the first piece handed over. The
// sixteen openings are one branch each; their tallies sum to the whole
// game's 16! orderings. Returns false when any branch was cut short.
func (s *solver) countAllBranches(ctx context.Context) bool {
	s.mu.Lock()
	s.phase = "counting"
	s.branches = make([]branchResult, quatro.NumPieces)
	for p := range s.branches {
		s.branches[p].Piece = p
	}
	s.mu.Unlock()
	s.logf("Counting %d first-piece branches", quatro.NumPieces)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.branchWorkers)
	for p := 0; p < quatro.NumPieces; p++ {
		piece := quatro.Piece(p)
		g.Go(func() error {
			stop := func() bool { return gctx.Err() != nil }
			out, took, err := s.countBranch(piece, stop)
			if err != nil {
				return fmt.Errorf("branch piece=%d: %w", piece, err)
			}
			if out.IsZero() {
				s.logf("Branch piece=%d interrupted after %s", piece, took.Round(time.Millisecond))
				return nil
			}
			s.mu.Lock()
			s.branches[p].Outcomes = out
			s.branches[p].ElapsedMs = took.Milliseconds()
			s.branches[p].Done = true
			s.mu.Unlock()
			s.logf("Branch piece=%d done in %s outcomes=(%s)", piece, took.Round(time.Millisecond), out)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logf("Branch fan-out failed: %v", err)
		return false
	}
	return ctx.Err() == nil && s.doneBranches() == quatro.NumPieces
}

// countBranch counts every completion after the opening piece lands on the
// first cell of the analysis placement order.
func (s *solver) countBranch(piece quatro.Piece, stop func() bool) (quatro.GameOutcomes, time.Duration, error) {
	state := quatro.NewGameState()
	if gave, err := state.Give(piece); err != nil || !gave {
		return quatro.GameOutcomes{}, 0, fmt.Errorf("give: gave=%v err=%v", gave, err)
	}
	if placed, err := state.Place(0, 0); err != nil || !placed {
		return quatro.GameOutcomes{}, 0, fmt.Errorf("place: placed=%v err=%v", placed, err)
	}
	compact, ply, err := quatro.CompactFromState(state)
	if err != nil {
		return quatro.GameOutcomes{}, 0, err
	}
	began := time.Now()
	out, err := s.analyzer.AnalyzeBoard(compact, ply, stop)
	return out, time.Since(began), err
}

func (s *solver) mergedTotals() quatro.GameOutcomes {
	s.mu.Lock()
	defer s.mu.Unlock()
	var totals quatro.GameOutcomes
	for _, b := range s.branches {
		totals = totals.Add(b.Outcomes)
	}
	return totals
}

func (s *solver) doneBranches() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	done := 0
	for _, b := range s.branches {
		if b.Done {
			done++
		}
	}
	return done
}

func (s *solver) branchSnapshot() []branchResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]branchResult(nil), s.branches...)
}

func (s *solver) setPhase(phase string) {
	s.mu.Lock()
	s.phase = phase
	s.mu.Unlock()
}

func (s *solver) getPhase() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *solver) progressLoop(done <-chan struct{}, started time.Time) {
	ticker := time.NewTicker(s.progressEvery)
	defer ticker.Stop()
	var lastNodes int64
	lastTick := time.Now()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			snapshot := s.analyzer.Stats()
			nps := float64(snapshot.Nodes-lastNodes) / time.Since(lastTick).Seconds()
			lastNodes = snapshot.Nodes
			lastTick = time.Now()
			sizes := s.analyzer.CacheSizes()
			s.logf("Progress phase=%s t=%s branches=%d/%d nodes=%d nps=%.0f parallel=%d cache=(c:%d v:%d)",
				s.getPhase(), time.Since(started).Round(time.Second), s.doneBranches(), quatro.NumPieces,
				snapshot.Nodes, nps, snapshot.ParallelBranches, sizes.Counts, sizes.Verdicts)
		}
	}
}

func (s *solver) writeReport(report runReport) error {
	dir := filepath.Dir(s.reportPath)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	raw, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	raw = append(raw, '\n')
	tmp := s.reportPath + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.reportPath)
}

func (s *solver) storeRun(report runReport) error {
	dir := filepath.Dir(s.dbPath)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	db, err := sql.Open("sqlite", s.dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS solver_runs (
		id TEXT PRIMARY KEY,
		started_at TEXT NOT NULL,
		elapsed_ms INTEGER NOT NULL,
		completed BOOLEAN NOT NULL,
		p1_wins INTEGER NOT NULL,
		p2_wins INTEGER NOT NULL,
		draws INTEGER NOT NULL,
		verdict TEXT NOT NULL,
		nodes INTEGER NOT NULL
	)`); err != nil {
		return err
	}
	verdict := report.Verdict
	if verdict == "" {
		verdict = "none"
	}
	_, err = db.Exec(`INSERT INTO solver_runs
		(id, started_at, elapsed_ms, completed, p1_wins, p2_wins, draws, verdict, nodes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.ID, report.StartedAt, report.ElapsedMs, report.Completed,
		int64(report.Totals.P1Wins), int64(report.Totals.P2Wins), int64(report.Totals.Draws),
		verdict, report.Stats.Nodes)
	return err
}

func (s *solver) logf(format string, args ...any) {
	ts := time.Now().Format("2006-01-02 15:04:05")
	s.logger.Printf("[%s] %s", ts, fmt.Sprintf(format, args...))
}

func buildLogger(path string) (*log.Logger, func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	logger := log.New(io.MultiWriter(os.Stdout, f), "", 0)
	return logger, func() { _ = f.Close() }, nil
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	var parsed int
	if _, err := fmt.Sscanf(value, "%d", &parsed); err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envDisabled(key string) bool {
	value := os.Getenv(key)
	return value == "0" || strings.EqualFold(value, "off") || strings.EqualFold(value, "false")
}
