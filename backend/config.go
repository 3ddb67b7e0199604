package main

import "sync"

type Config struct {
	AnalyzerMemo       bool   `json:"analyzer_memo"`
	AnalyzerParallelAt int    `json:"analyzer_parallel_at"`
	AnalyzerWorkers    int    `json:"analyzer_workers"`
	AnalyzerStripes    int    `json:"analyzer_cache_stripes"`
	LogAnalysisStats   bool   `json:"log_analysis_stats"`
	BotLevel           int    `json:"bot_level"`
	BotSeed            int64  `json:"bot_seed"`
	BotTimeBudgetMs    int    `json:"bot_time_budget_ms"`
	HintTimeBudgetMs   int    `json:"hint_time_budget_ms"`
	QueueEnabled       bool   `json:"queue_enabled"`
	QueueWorkers       int    `json:"queue_workers"`
	QueueVerdicts      bool   `json:"queue_verdicts"`
	QueueMinPlaced     int    `json:"queue_min_placed"`
	QueueMaxPending    int    `json:"queue_max_pending"`
	QueueTopBoards     int    `json:"queue_top_boards"`
	PersistCaches      bool   `json:"persist_caches"`
	CachePath          string `json:"cache_path"`
	StoreMatches       bool   `json:"store_matches"`
	DatabasePath       string `json:"database_path"`
	RecentMatchLimit   int    `json:"recent_match_limit"`
}

type ConfigStore struct {
	mu     sync.RWMutex
	config Config
}

func DefaultConfig() Config {
	return Config{
		// Shared analyzer, applied at startup
		AnalyzerMemo:       true,
		AnalyzerParallelAt: 14,
		AnalyzerWorkers:    0, // 0 = half the CPUs
		AnalyzerStripes:    0, // 0 = engine default

		LogAnalysisStats: false,

		// Bot seats
		BotLevel:         4,
		BotSeed:          0, // 0 = seeded from the clock
		BotTimeBudgetMs:  2000,
		HintTimeBudgetMs: 1500,

		// Background analysis queue
		QueueEnabled:    true,
		QueueWorkers:    1,
		QueueVerdicts:   true,
		QueueMinPlaced:  8,
		QueueMaxPending: 64,
		QueueTopBoards:  10,

		// Cache snapshots survive restarts
		PersistCaches: true,
		CachePath:     "data/analysis_caches.gob",

		// Match archive
		StoreMatches:     true,
		DatabasePath:     "data/quatro.db",
		RecentMatchLimit: 20,
	}
}

var configStore = &ConfigStore{config: DefaultConfig()}

func GetConfig() Config {
	return configStore.Get()
}

func (c *ConfigStore) Get() Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.config
}

func (c *ConfigStore) Update(newConfig Config) {
	c.mu.Lock()
	c.config = newConfig
	c.mu.Unlock()
}
