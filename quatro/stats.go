package quatro

import "sync/atomic"

// AnalysisStats counts the work an Analyzer has done. Fields are atomic so
// parallel branches tally without coordination; read them through Snapshot.
type AnalysisStats struct {
	Nodes            atomic.Int64
	Terminals        atomic.Int64
	CacheHits        atomic.Int64
	CacheMisses      atomic.Int64
	CacheStores      atomic.Int64
	ParallelBranches atomic.Int64
	Cancellations    atomic.Int64
}

type StatsSnapshot struct {
	Nodes            int64 `json:"nodes"`
	Terminals        int64 `json:"terminals"`
	CacheHits        int64 `json:"cacheHits"`
	CacheMisses      int64 `json:"cacheMisses"`
	CacheStores      int64 `json:"cacheStores"`
	ParallelBranches int64 `json:"parallelBranches"`
	Cancellations    int64 `json:"cancellations"`
}

func (s *AnalysisStats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Nodes:            s.Nodes.Load(),
		Terminals:        s.Terminals.Load(),
		CacheHits:        s.CacheHits.Load(),
		CacheMisses:      s.CacheMisses.Load(),
		CacheStores:      s.CacheStores.Load(),
		ParallelBranches: s.ParallelBranches.Load(),
		Cancellations:    s.Cancellations.Load(),
	}
}

func (s *AnalysisStats) Reset() {
	s.Nodes.Store(0)
	s.Terminals.Store(0)
	s.CacheHits.Store(0)
	s.CacheMisses.Store(0)
	s.CacheStores.Store(0)
	s.ParallelBranches.Store(0)
	s.Cancellations.Store(0)
}
