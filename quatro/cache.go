package quatro

import "sync"

// Striped maps back the analyzer's memoization. The stripe count rounds up
// to a power of two and the mixed key picks the stripe, so concurrent
// branches mostly touch different locks. Entries are idempotent (equal keys
// always store equal values), which makes last-write-wins stores safe.

const defaultCacheStripes = 64

type countStripe struct {
	mu      sync.RWMutex
	entries map[uint64]GameOutcomes
}

type countCache struct {
	stripes []countStripe
	mask    uint64
}

func newCountCache(stripeCount int) *countCache {
	n := nextPowerOfTwo(uint64(stripeCount))
	c := &countCache{
		stripes: make([]countStripe, n),
		mask:    n - 1,
	}
	for i := range c.stripes {
		c.stripes[i].entries = make(map[uint64]GameOutcomes)
	}
	return c
}

func (c *countCache) stripeFor(key uint64) *countStripe {
	return &c.stripes[mixKey(key)&c.mask]
}

func (c *countCache) Get(key uint64) (GameOutcomes, bool) {
	s := c.stripeFor(key)
	s.mu.RLock()
	out, ok := s.entries[key]
	s.mu.RUnlock()
	return out, ok
}

func (c *countCache) Put(key uint64, out GameOutcomes) {
	s := c.stripeFor(key)
	s.mu.Lock()
	s.entries[key] = out
	s.mu.Unlock()
}

func (c *countCache) Len() int {
	total := 0
	for i := range c.stripes {
		s := &c.stripes[i]
		s.mu.RLock()
		total += len(s.entries)
		s.mu.RUnlock()
	}
	return total
}

func (c *countCache) Clear() {
	for i := range c.stripes {
		s := &c.stripes[i]
		s.mu.Lock()
		s.entries = make(map[uint64]GameOutcomes)
		s.mu.Unlock()
	}
}

func (c *countCache) dump() map[uint64]GameOutcomes {
	out := make(map[uint64]GameOutcomes, c.Len())
	for i := range c.stripes {
		s := &c.stripes[i]
		s.mu.RLock()
		for k, v := range s.entries {
			out[k] = v
		}
		s.mu.RUnlock()
	}
	return out
}

func (c *countCache) load(entries map[uint64]GameOutcomes) {
	for k, v := range entries {
		c.Put(k, v)
	}
}

type verdictStripe struct {
	mu      sync.RWMutex
	entries map[uint64]MinimaxResult
}

type verdictCache struct {
	stripes []verdictStripe
	mask    uint64
}

func newVerdictCache(stripeCount int) *verdictCache {
	n := nextPowerOfTwo(uint64(stripeCount))
	c := &verdictCache{
		stripes: make([]verdictStripe, n),
		mask:    n - 1,
	}
	for i := range c.stripes {
		c.stripes[i].entries = make(map[uint64]MinimaxResult)
	}
	return c
}

func (c *verdictCache) stripeFor(key uint64) *verdictStripe {
	return &c.stripes[mixKey(key)&c.mask]
}

func (c *verdictCache) Get(key uint64) (MinimaxResult, bool) {
	s := c.stripeFor(key)
	s.mu.RLock()
	out, ok := s.entries[key]
	s.mu.RUnlock()
	return out, ok
}

func (c *verdictCache) Put(key uint64, result MinimaxResult) {
	s := c.stripeFor(key)
	s.mu.Lock()
	s.entries[key] = result
	s.mu.Unlock()
}

func (c *verdictCache) Len() int {
	total := 0
	for i := range c.stripes {
		s := &c.stripes[i]
		s.mu.RLock()
		total += len(s.entries)
		s.mu.RUnlock()
	}
	return total
}

func (c *verdictCache) Clear() {
	for i := range c.stripes {
		s := &c.stripes[i]
		s.mu.Lock()
		s.entries = make(map[uint64]MinimaxResult)
		s.mu.Unlock()
	}
}

func (c *verdictCache) dump() map[uint64]MinimaxResult {
	out := make(map[uint64]MinimaxResult, c.Len())
	for i := range c.stripes {
		s := &c.stripes[i]
		s.mu.RLock()
		for k, v := range s.entries {
			out[k] = v
		}
		s.mu.RUnlock()
	}
	return out
}

func (c *verdictCache) load(entries map[uint64]MinimaxResult) {
	for k, v := range entries {
		c.Put(k, v)
	}
}

func nextPowerOfTwo(v uint64) uint64 {
	if v == 0 {
		return 1
	}
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v |= v >> 32
	return v + 1
}
