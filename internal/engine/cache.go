package engine

import (
	"sync"

	"price-action-bot/internal/market"
	"price-action-bot/internal/setups"
)

type cacheKey struct {
	Instrument string
	Timeframe  market.Timeframe
}

type cacheEntry struct {
	cycleID  int64
	snapshot setups.Snapshot
}

// CycleCache memoizes scan snapshots per instrument and timeframe. The cycle
// id is the close time of the latest candle, so a cached snapshot is reused
// until a new candle closes and the analysis could actually change.
type CycleCache struct {
	mu      sync.RWMutex
	entries map[cacheKey]cacheEntry
}

func NewCycleCache() *CycleCache {
	return &CycleCache{entries: make(map[cacheKey]cacheEntry)}
}

// Get returns the cached snapshot when one exists for the same cycle.
func (c *CycleCache) Get(instrument string, tf market.Timeframe, cycleID int64) (setups.Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[cacheKey{instrument, tf}]
	if !ok || e.cycleID != cycleID {
		return setups.Snapshot{}, false
	}
	return e.snapshot, true
}

// Put stores the snapshot for the cycle, replacing any older entry for the
// same instrument and timeframe.
func (c *CycleCache) Put(instrument string, tf market.Timeframe, cycleID int64, snap setups.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[cacheKey{instrument, tf}] = cacheEntry{cycleID: cycleID, snapshot: snap}
}
