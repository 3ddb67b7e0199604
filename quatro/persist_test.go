package quatro

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSaveAndLoadCachesRoundTrip(t *testing.T) {
	a := sequentialAnalyzer(true)
	s := stateAtPly(t, compactFromValues(lateWinValues), 14)
	wantCounts := a.AnalyzeStateRational(s, nil)
	wantVerdict := a.EvaluateState(s, nil)

	sizes := a.CacheSizes()
	if sizes.StateCounts == 0 || sizes.StateVerdicts == 0 {
		t.Fatalf("analysis left empty caches: %+v", sizes)
	}

	path := filepath.Join(t.TempDir(), "caches", "snapshot.gob")
	if err := a.SaveCaches(path); err != nil {
		t.Fatalf("SaveCaches: %v", err)
	}

	fresh := sequentialAnalyzer(true)
	if err := fresh.LoadCaches(path); err != nil {
		t.Fatalf("LoadCaches: %v", err)
	}
	loaded := fresh.CacheSizes()
	if loaded.StateCounts != sizes.StateCounts || loaded.StateVerdicts != sizes.StateVerdicts {
		t.Fatalf("loaded sizes %+v, want %+v", loaded, sizes)
	}

	hitsBefore := fresh.Stats().CacheHits
	if got := fresh.AnalyzeStateRational(s, nil); got != wantCounts {
		t.Fatalf("counts after load %v, want %v", got, wantCounts)
	}
	if got := fresh.EvaluateState(s, nil); got != wantVerdict {
		t.Fatalf("verdict after load %v, want %v", got, wantVerdict)
	}
	if fresh.Stats().CacheHits <= hitsBefore {
		t.Fatalf("loaded entries were not hit")
	}
}

func TestLoadCachesMissingFileIsNotAnError(t *testing.T) {
	a := sequentialAnalyzer(true)
	if err := a.LoadCaches(filepath.Join(t.TempDir(), "absent.gob")); err != nil {
		t.Fatalf("missing file: %v", err)
	}
	if sizes := a.CacheSizes(); sizes.StateCounts != 0 || sizes.StateVerdicts != 0 {
		t.Fatalf("missing file populated caches: %+v", sizes)
	}
}

func TestLoadCachesRemovesTruncatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "truncated.gob")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	a := sequentialAnalyzer(true)
	if err := a.LoadCaches(path); err != nil {
		t.Fatalf("truncated file: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("truncated file was not removed: %v", err)
	}
}

func TestSaveCachesLeavesNoTemporaryFile(t *testing.T) {
	a := sequentialAnalyzer(true)
	s := stateAtPly(t, compactFromValues(drawValues), 14)
	a.AnalyzeStateRational(s, nil)

	dir := t.TempDir()
	path := filepath.Join(dir, "snapshot.gob")
	if err := a.SaveCaches(path); err != nil {
		t.Fatalf("SaveCaches: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "snapshot.gob" {
		t.Fatalf("directory holds %d entries, want the snapshot alone", len(entries))
	}
}
