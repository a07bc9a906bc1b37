package ranking

import (
	"sync"

	"github.com/truckboard/truckboard/internal/domain"
)

// CacheKey identifies one precomputed snapshot.
type CacheKey struct {
	Mode   domain.Mode
	Filter domain.DriverTypeFilter
}

// String renders the key for persistence.
func (k CacheKey) String() string {
	return string(k.Mode) + "|" + string(k.Filter)
}

// Cache holds precomputed ranking snapshots keyed by (mode, filter).
//
// The inner map is replaced wholesale on every refresh: readers either see
// the complete previous generation or the complete new one, never a mix of
// ranks from new data and history from old.
type Cache struct {
	mu        sync.RWMutex
	snapshots map[CacheKey]*Snapshot
}

// NewCache creates an empty snapshot cache.
func NewCache() *Cache {
	return &Cache{snapshots: make(map[CacheKey]*Snapshot)}
}

// Get returns the cached snapshot for a key, if present.
func (c *Cache) Get(mode domain.Mode, filter domain.DriverTypeFilter) (*Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.snapshots[CacheKey{Mode: mode, Filter: filter}]
	return s, ok
}

// ReplaceAll swaps in a complete new generation of snapshots.
func (c *Cache) ReplaceAll(snapshots map[CacheKey]*Snapshot) {
	next := make(map[CacheKey]*Snapshot, len(snapshots))
	for k, v := range snapshots {
		next[k] = v
	}

	c.mu.Lock()
	c.snapshots = next
	c.mu.Unlock()
}

// Keys returns the currently cached combinations.
func (c *Cache) Keys() []CacheKey {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]CacheKey, 0, len(c.snapshots))
	for k := range c.snapshots {
		keys = append(keys, k)
	}
	return keys
}

// All returns the current generation of snapshots.
func (c *Cache) All() map[CacheKey]*Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[CacheKey]*Snapshot, len(c.snapshots))
	for k, v := range c.snapshots {
		out[k] = v
	}
	return out
}
