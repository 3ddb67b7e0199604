package main

import (
	"testing"
	"time"

	"github.com/zinnin/QuatroBot/quatro"
)

// advance plays one give and one placement, failing the test on any
// rejection so the resulting state is always well formed.
func advance(t *testing.T, s *quatro.GameState, piece quatro.Piece, row, col int) {
	t.Helper()
	if gave, err := s.Give(piece); err != nil || !gave {
		t.Fatalf("give %d: gave=%v err=%v", piece, gave, err)
	}
	if placed, err := s.Place(row, col); err != nil || !placed {
		t.Fatalf("place (%d,%d): placed=%v err=%v", row, col, placed, err)
	}
}

func TestBacklogWorkerCountDefaultsToOne(t *testing.T) {
	if got := backlogWorkerCount(Config{}, 8); got != 1 {
		t.Fatalf("backlogWorkerCount with no request = %d, want 1", got)
	}
}

func TestBacklogWorkerCountClampsToCPUCount(t *testing.T) {
	if got := backlogWorkerCount(Config{QueueWorkers: 12}, 4); got != 4 {
		t.Fatalf("backlogWorkerCount(12 workers, 4 cpus) = %d, want 4", got)
	}
	if got := backlogWorkerCount(Config{QueueWorkers: 2}, 0); got != 1 {
		t.Fatalf("backlogWorkerCount with zero cpus = %d, want 1", got)
	}
}

func TestBacklogWorkerCountHonorsRequest(t *testing.T) {
	if got := backlogWorkerCount(Config{QueueWorkers: 3}, 8); got != 3 {
		t.Fatalf("backlogWorkerCount(3 workers, 8 cpus) = %d, want 3", got)
	}
}

func TestEnqueueSkipsWhenQueueDisabled(t *testing.T) {
	b := newAnalysisBacklog()
	state := quatro.NewGameState()
	advance(t, &state, 0, 0, 0)

	b.EnqueueState(state, Config{QueueEnabled: false})
	if got := b.Len(); got != 0 {
		t.Fatalf("queue length with queue disabled = %d, want 0", got)
	}
}

func TestEnqueueRequiresMinimumPlacedPieces(t *testing.T) {
	b := newAnalysisBacklog()
	cfg := Config{QueueEnabled: true, QueueMinPlaced: 2}
	state := quatro.NewGameState()
	advance(t, &state, 0, 0, 0)

	b.EnqueueState(state, cfg)
	if got := b.Len(); got != 0 {
		t.Fatalf("state with 1 placed piece queued, want skip below minimum")
	}

	advance(t, &state, 1, 1, 1)
	b.EnqueueState(state, cfg)
	if got := b.Len(); got != 1 {
		t.Fatalf("queue length at minimum fill = %d, want 1", got)
	}
}

func TestEnqueueDeduplicatesByStateHash(t *testing.T) {
	b := newAnalysisBacklog()
	cfg := Config{QueueEnabled: true}
	state := quatro.NewGameState()
	advance(t, &state, 3, 0, 0)

	b.EnqueueState(state, cfg)
	b.EnqueueState(state, cfg)
	if got := b.Len(); got != 1 {
		t.Fatalf("queue length after duplicate enqueue = %d, want 1", got)
	}
	if got := b.TotalQueued(); got != 1 {
		t.Fatalf("total queued after duplicate enqueue = %d, want 1", got)
	}
	top := b.TopQueue(10)
	if len(top) != 1 {
		t.Fatalf("top queue size = %d, want 1", len(top))
	}
	if top[0].Hits != 2 {
		t.Fatalf("hits after duplicate enqueue = %d, want 2", top[0].Hits)
	}
}

func TestBacklogPicksMostRequestedTaskFirst(t *testing.T) {
	b := newAnalysisBacklog()
	cfg := Config{QueueEnabled: true}
	first := quatro.NewGameState()
	advance(t, &first, 0, 0, 0)
	second := quatro.NewGameState()
	advance(t, &second, 15, 3, 3)

	b.EnqueueState(first, cfg)
	b.EnqueueState(second, cfg)
	b.EnqueueState(second, cfg)

	task, hash, ok := b.pickTaskForProcessing()
	if !ok {
		t.Fatalf("no task picked from a two-entry queue")
	}
	if want := quatro.StateHash(second); hash != want {
		t.Fatalf("picked hash 0x%x, want the twice-requested state 0x%x", hash, want)
	}
	if got := task.state.PlacedCount(); got != 1 {
		t.Fatalf("picked task placed count = %d, want 1", got)
	}

	_, otherHash, ok := b.pickTaskForProcessing()
	if !ok {
		t.Fatalf("second worker found no task while one is in flight")
	}
	if want := quatro.StateHash(first); otherHash != want {
		t.Fatalf("second pick hash 0x%x, want the remaining state 0x%x", otherHash, want)
	}
}

func TestBacklogFinishRemovesTaskAndKeepsResult(t *testing.T) {
	b := newAnalysisBacklog()
	cfg := Config{QueueEnabled: true}
	state := quatro.NewGameState()
	advance(t, &state, 4, 2, 1)
	b.EnqueueState(state, cfg)

	_, hash, ok := b.pickTaskForProcessing()
	if !ok {
		t.Fatalf("no task to pick")
	}
	b.recordResult(hash, quatro.GameOutcomes{Draws: 42}, "draw", 7)
	b.finishTaskProcessing(hash, true)

	if got := b.Len(); got != 0 {
		t.Fatalf("queue length after finish = %d, want 0", got)
	}
	if got := b.TotalQueued(); got != 0 {
		t.Fatalf("total queued after finish = %d, want 0", got)
	}
	if !b.entryDone(hash) {
		t.Fatalf("finished entry not marked done")
	}

	b.EnqueueState(state, cfg)
	if got := b.Len(); got != 0 {
		t.Fatalf("already-analyzed state was re-queued, want skip")
	}
}

func TestBacklogInterruptedTaskStaysQueued(t *testing.T) {
	b := newAnalysisBacklog()
	cfg := Config{QueueEnabled: true}
	state := quatro.NewGameState()
	advance(t, &state, 8, 1, 3)
	b.EnqueueState(state, cfg)

	_, hash, ok := b.pickTaskForProcessing()
	if !ok {
		t.Fatalf("no task to pick")
	}
	b.finishTaskProcessing(hash, false)

	if got := b.Len(); got != 1 {
		t.Fatalf("queue length after interruption = %d, want 1", got)
	}
	if _, _, ok := b.pickTaskForProcessing(); !ok {
		t.Fatalf("interrupted task not pickable again")
	}
}

func TestAnalysisPriorityOrdersHitsThenFill(t *testing.T) {
	now := time.Now()
	hot := backlogBoardEntry{Hash: 1, Hits: 3, Placed: 4, Created: now}
	cold := backlogBoardEntry{Hash: 2, Hits: 1, Placed: 12, Created: now}
	if compareAnalysisPriority(hot, cold) >= 0 {
		t.Fatalf("more requested entry should sort first")
	}

	fuller := backlogBoardEntry{Hash: 3, Hits: 1, Placed: 12, Created: now}
	emptier := backlogBoardEntry{Hash: 4, Hits: 1, Placed: 6, Created: now}
	if compareAnalysisPriority(fuller, emptier) >= 0 {
		t.Fatalf("fuller board should sort first on equal hits")
	}

	older := backlogBoardEntry{Hash: 5, Hits: 1, Placed: 6, Created: now.Add(-time.Second)}
	newer := backlogBoardEntry{Hash: 6, Hits: 1, Placed: 6, Created: now}
	if compareAnalysisPriority(older, newer) >= 0 {
		t.Fatalf("older entry should sort first on equal hits and fill")
	}
}
