package main

import "log"

// loadPersistedCaches restores the analyzer's state caches from the
// configured snapshot file. A missing file is a normal first run.
func loadPersistedCaches() {
	config := GetConfig()
	if !config.PersistCaches {
		return
	}
	if err := sharedAnalyzer.LoadCaches(config.CachePath); err != nil {
		log.Printf("[analyzer:cache] load error: %v", err)
		return
	}
	if total := sharedAnalyzer.CacheSizes().Total(); total > 0 {
		log.Printf("[analyzer:cache] loaded %d entries from %s", total, config.CachePath)
	}
}

func persistCaches() {
	config := GetConfig()
	if !config.PersistCaches {
		return
	}
	if err := sharedAnalyzer.SaveCaches(config.CachePath); err != nil {
		log.Printf("[analyzer:cache] persist error: %v", err)
		return
	}
	log.Printf("[analyzer:cache] persisted %d entries to %s",
		sharedAnalyzer.CacheSizes().Total(), config.CachePath)
}
