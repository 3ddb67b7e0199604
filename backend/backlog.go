package main

import (
	"log"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zinnin/QuatroBot/quatro"
)

type backlogTask struct {
	state   quatro.GameState
	hash    uint64
	created time.Time
}

// analysisBacklog collects positions reached during play and has workers
// analyze them exhaustively whenever no match is running. Tasks dedupe by
// state hash; repeated hits raise a position's priority instead of queueing
// it twice.
type analysisBacklog struct {
	mu               sync.Mutex
	queue            []backlogTask
	present          map[uint64]struct{}
	hitCounts        map[uint64]int
	entries          map[uint64]backlogBoardEntry
	processing       map[uint64]bool
	hub              *AnalysisHub
	currentHash      uint64
	currentSet       bool
	stop             atomic.Bool
	limitWarned      bool
	queueEmptyLogged bool
}

var analysisBacklogManager = newAnalysisBacklog()

func newAnalysisBacklog() *analysisBacklog {
	return &analysisBacklog{
		present:    make(map[uint64]struct{}),
		processing: make(map[uint64]bool),
		hitCounts:  make(map[uint64]int),
		entries:    make(map[uint64]backlogBoardEntry),
	}
}

// enqueueAnalysisTask queues a position reached during play for exhaustive
// background analysis once the current match releases the workers.
func enqueueAnalysisTask(state quatro.GameState) {
	analysisBacklogManager.EnqueueState(state, GetConfig())
}

func (b *analysisBacklog) EnqueueState(state quatro.GameState, config Config) {
	if !config.QueueEnabled {
		return
	}
	if state.IsOver() {
		return
	}
	if state.PlacedCount() < config.QueueMinPlaced {
		return
	}
	task := backlogTask{
		state:   state.Clone(),
		hash:    quatro.StateHash(state),
		created: time.Now(),
	}
	b.enqueue(task, config)
}

func (b *analysisBacklog) enqueue(task backlogTask, config Config) {
	var eventPayload analysisPayload
	b.mu.Lock()
	hash := task.hash
	b.hitCounts[hash]++
	entry := b.entries[hash]
	if entry.Hash == 0 {
		entry = backlogBoardEntry{
			Hash:    hash,
			Board:   task.state.Board.Clone(),
			Placed:  task.state.PlacedCount(),
			Created: task.created,
		}
	}
	entry.Hits = b.hitCounts[hash]
	b.entries[hash] = entry
	if entry.Done {
		b.mu.Unlock()
		log.Printf("[analyzer:queue] skip state 0x%x (already analyzed)", hash)
		return
	}
	if _, ok := b.present[hash]; ok {
		eventPayload = b.eventPayloadLocked("board_hit", hash)
		b.mu.Unlock()
		b.publishEvent(eventPayload)
		return
	}
	limit := config.QueueMaxPending
	if limit > 0 && len(b.queue) >= limit && !b.limitWarned {
		log.Printf("[analyzer:queue] queue size %d exceeded limit %d", len(b.queue)+1, limit)
		b.limitWarned = true
	}
	b.queue = append(b.queue, task)
	b.present[hash] = struct{}{}
	b.queueEmptyLogged = false
	eventPayload = b.eventPayloadLocked("board_added", hash)
	b.mu.Unlock()
	b.publishEvent(eventPayload)
}

func (b *analysisBacklog) pickTaskForProcessing() (backlogTask, uint64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return backlogTask{}, 0, false
	}
	bestIdx := -1
	var bestHash uint64
	var bestEntry backlogBoardEntry
	for i, task := range b.queue {
		if b.processing[task.hash] {
			continue
		}
		entry, ok := b.entries[task.hash]
		if !ok || entry.Hash == 0 {
			entry = backlogBoardEntry{
				Hash:    task.hash,
				Placed:  task.state.PlacedCount(),
				Created: task.created,
				Hits:    b.hitCounts[task.hash],
			}
		}
		if bestIdx == -1 || compareAnalysisPriority(entry, bestEntry) < 0 {
			bestIdx = i
			bestHash = task.hash
			bestEntry = entry
		}
	}
	if bestIdx == -1 {
		return backlogTask{}, 0, false
	}
	b.processing[bestHash] = true
	return b.queue[bestIdx], bestHash, true
}

func (b *analysisBacklog) finishTaskProcessing(hash uint64, remove bool) {
	var eventPayload analysisPayload
	b.mu.Lock()
	delete(b.processing, hash)
	entry := b.entries[hash]
	if entry.Hash != 0 && !entry.Done {
		entry.Analyzing = false
		entry.AnalysisStartedAtMs = 0
		b.entries[hash] = entry
	}
	if !remove {
		eventPayload = b.eventPayloadLocked("board_paused", hash)
		b.mu.Unlock()
		b.publishEvent(eventPayload)
		return
	}
	for i, task := range b.queue {
		if task.hash == hash {
			b.queue = append(b.queue[:i], b.queue[i+1:]...)
			delete(b.present, hash)
			eventPayload = b.eventPayloadLocked("board_done", hash)
			b.mu.Unlock()
			b.publishEvent(eventPayload)
			return
		}
	}
	b.mu.Unlock()
}

func (b *analysisBacklog) logQueueEmptyIfNeeded() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) != 0 || b.queueEmptyLogged {
		return
	}
	log.Printf("[analyzer:queue] every queued state has been analyzed")
	b.queueEmptyLogged = true
}

func (b *analysisBacklog) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

func (b *analysisBacklog) SetHub(hub *AnalysisHub) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hub = hub
}

func (b *analysisBacklog) TopQueue(limit int) []analysisQueueEntryDTO {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.topQueueLocked(limit)
}

func (b *analysisBacklog) TotalQueued() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.present)
}

func (b *analysisBacklog) markStarted(hash uint64) {
	b.mu.Lock()
	entry := b.entries[hash]
	if entry.Hash != 0 {
		entry.Analyzing = true
		entry.AnalysisStartedAtMs = time.Now().UnixMilli()
		b.entries[hash] = entry
	}
	payload := b.eventPayloadLocked("board_started", hash)
	b.mu.Unlock()
	b.publishEvent(payload)
}

func (b *analysisBacklog) recordResult(hash uint64, out quatro.GameOutcomes, verdict string, elapsedMs int64) {
	b.mu.Lock()
	entry := b.entries[hash]
	if entry.Hash != 0 {
		entry.Outcomes = out
		entry.HasOutcomes = true
		entry.Verdict = verdict
		entry.ElapsedMs = elapsedMs
		entry.Analyzing = false
		entry.AnalysisStartedAtMs = 0
		entry.Done = true
		b.entries[hash] = entry
	}
	b.mu.Unlock()
}

func (b *analysisBacklog) entryDone(hash uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.entries[hash]
	return ok && entry.Done
}

func (b *analysisBacklog) topQueueLocked(limit int) []analysisQueueEntryDTO {
	if limit <= 0 {
		return []analysisQueueEntryDTO{}
	}
	items := make([]backlogBoardEntry, 0, len(b.present))
	for hash := range b.present {
		entry, ok := b.entries[hash]
		if !ok || entry.Hash == 0 {
			continue
		}
		items = append(items, entry)
	}
	sortAnalysisQueue(items)
	if len(items) > limit {
		items = items[:limit]
	}
	result := make([]analysisQueueEntryDTO, 0, len(items))
	for _, item := range items {
		result = append(result, analysisEntryToDTO(item))
	}
	return result
}

func (b *analysisBacklog) eventPayloadLocked(event string, hash uint64) analysisPayload {
	var eventEntry *analysisQueueEventEntry
	if entry, ok := b.entries[hash]; ok && entry.Hash != 0 {
		dto := analysisEntryToEventEntry(entry)
		eventEntry = &dto
	}
	return analysisPayload{
		Event:        event,
		Entry:        eventEntry,
		TotalInQueue: len(b.present),
		UpdatedAt:    time.Now().UnixMilli(),
	}
}

func (b *analysisBacklog) publishEvent(payload analysisPayload) {
	b.mu.Lock()
	hub := b.hub
	b.mu.Unlock()
	if hub == nil {
		return
	}
	hub.Publish(payload)
}

func (b *analysisBacklog) setCurrentState(hash uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.currentHash = hash
	b.currentSet = true
}

func (b *analysisBacklog) clearCurrentState() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.currentHash = 0
	b.currentSet = false
}

func (b *analysisBacklog) currentStateHash() (uint64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.currentSet {
		return 0, false
	}
	return b.currentHash, true
}

func (b *analysisBacklog) RequestStop() {
	if b.stop.CompareAndSwap(false, true) {
		if hash, ok := b.currentStateHash(); ok {
			log.Printf("[analyzer:queue] stopping state 0x%x because a new match started", hash)
		}
	}
}

func (b *analysisBacklog) ResetStop() {
	b.stop.Store(false)
}

func (b *analysisBacklog) shouldStop() bool {
	return b.stop.Load()
}

func startAnalysisBacklogWorkers(controller *MatchController) {
	if !GetConfig().QueueEnabled {
		return
	}
	workerCount := backlogWorkerCount(GetConfig(), runtime.NumCPU())
	log.Printf("[analyzer:queue] starting workers=%d", workerCount)
	analysisBacklogManager.startWorkers(controller, workerCount)
}

func backlogWorkerCount(config Config, cpuCount int) int {
	if cpuCount < 1 {
		cpuCount = 1
	}
	workers := config.QueueWorkers
	if workers <= 0 {
		workers = 1
	}
	if workers > cpuCount {
		workers = cpuCount
	}
	return workers
}

func (b *analysisBacklog) startWorkers(controller *MatchController, count int) {
	if count <= 0 {
		count = 1
	}
	for i := 0; i < count; i++ {
		go b.worker(controller, i)
	}
}

func (b *analysisBacklog) worker(controller *MatchController, _ int) {
	pausedLogged := false
	for {
		if controller != nil && controller.Running() {
			b.RequestStop()
			if b.Len() > 0 && !pausedLogged {
				log.Printf("[analyzer:queue] match running, pausing backlog (%d queued)", b.Len())
				pausedLogged = true
			}
			time.Sleep(150 * time.Millisecond)
			continue
		}
		pausedLogged = false
		task, hash, ok := b.pickTaskForProcessing()
		if !ok {
			b.logQueueEmptyIfNeeded()
			time.Sleep(150 * time.Millisecond)
			continue
		}
		b.setCurrentState(hash)
		b.markStarted(hash)
		b.ResetStop()
		done := b.processTask(task)
		b.finishTaskProcessing(hash, done)
		b.clearCurrentState()
	}
}

// processTask runs the exhaustive pass for one queued state. Returns true
// when the analysis finished and the task can leave the queue, false when
// it was interrupted and should stay for a later attempt.
func (b *analysisBacklog) processTask(task backlogTask) bool {
	config := GetConfig()
	if b.entryDone(task.hash) {
		log.Printf("[analyzer:queue] skip state 0x%x (already analyzed)", task.hash)
		return true
	}
	remaining := b.Len()
	log.Printf("[analyzer:queue] analyzing state 0x%x placed=%d, %d remains in queue",
		task.hash, task.state.PlacedCount(), remaining)

	before := sharedAnalyzer.Stats()
	start := time.Now()
	progressDone := make(chan struct{})
	if config.LogAnalysisStats {
		go func() {
			ticker := time.NewTicker(5 * time.Second)
			defer ticker.Stop()
			lastTick := start
			lastNodes := before.Nodes
			for {
				select {
				case <-progressDone:
					return
				case <-ticker.C:
					now := time.Now()
					snapshot := sharedAnalyzer.Stats()
					intervalMs := now.Sub(lastTick).Milliseconds()
					if intervalMs <= 0 {
						intervalMs = 1
					}
					nps := (snapshot.Nodes - lastNodes) * 1000 / intervalMs
					log.Printf("[analyzer:queue] state 0x%x (%dms, %d nodes, %d nps)",
						task.hash, now.Sub(start).Milliseconds(), snapshot.Nodes-before.Nodes, nps)
					lastTick = now
					lastNodes = snapshot.Nodes
				}
			}
		}()
	}

	out := sharedAnalyzer.AnalyzeStateRational(task.state, b.shouldStop)
	verdict := ""
	if config.QueueVerdicts && !b.shouldStop() {
		result := sharedAnalyzer.EvaluateState(task.state, b.shouldStop)
		if !b.shouldStop() {
			verdict = result.String()
		}
	}
	close(progressDone)

	elapsed := time.Since(start)
	if b.shouldStop() {
		log.Printf("[analyzer:queue] interrupted state 0x%x after %dms (match started), keeping for later",
			task.hash, elapsed.Milliseconds())
		return false
	}
	b.recordResult(task.hash, out, verdict, elapsed.Milliseconds())
	SaveAnalysisRecord(AnalysisRecord{
		StateHash: stateID(task.hash),
		Placed:    task.state.PlacedCount(),
		P1Wins:    out.P1Wins,
		P2Wins:    out.P2Wins,
		Draws:     out.Draws,
		Verdict:   verdict,
		ElapsedMs: elapsed.Milliseconds(),
	})
	verdictStr := verdict
	if verdictStr == "" {
		verdictStr = "none"
	}
	log.Printf("[analyzer:queue] state 0x%x finished in %dms outcomes=(%s) verdict=%s cache_size=%d",
		task.hash, elapsed.Milliseconds(), out, verdictStr, sharedAnalyzer.CacheSizes().Total())
	logAnalysisStats("queue", elapsed, before, sharedAnalyzer.Stats())
	return true
}
