package quatro

import (
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// cacheSnapshot carries the live-state caches between runs. The depth
// caches rebuild faster than they decode at full-solve scale, so only the
// state-keyed maps persist.
type cacheSnapshot struct {
	StateCounts   map[uint64]GameOutcomes
	StateVerdicts map[uint64]MinimaxResult
}

// SaveCaches writes a gob snapshot of the live-state caches, creating the
// parent directory when needed. The file lands under a temporary name first
// so a crash mid-write cannot leave a half-written snapshot behind.
func (a *Analyzer) SaveCaches(path string) error {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cache dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create cache file: %w", err)
	}
	snapshot := cacheSnapshot{
		StateCounts:   a.stateCounts.dump(),
		StateVerdicts: a.stateVerdicts.dump(),
	}
	if err := gob.NewEncoder(file).Encode(&snapshot); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode cache snapshot: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// LoadCaches merges a snapshot written by SaveCaches into the live-state
// caches. A missing file is not an error; a truncated one is removed and
// ignored so the next save starts clean.
func (a *Analyzer) LoadCaches(path string) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	var snapshot cacheSnapshot
	decodeErr := gob.NewDecoder(file).Decode(&snapshot)
	file.Close()
	if decodeErr != nil {
		if isEOFError(decodeErr) {
			os.Remove(path)
			return nil
		}
		return fmt.Errorf("decode cache snapshot: %w", decodeErr)
	}
	a.stateCounts.load(snapshot.StateCounts)
	a.stateVerdicts.load(snapshot.StateVerdicts)
	return nil
}

func isEOFError(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)
}
