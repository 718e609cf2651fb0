// Package loccache caches tablet locations on the client side. Entries
// are never pushed to or refreshed proactively. A stale entry is
// discovered when a tablet server rejects a request, after which the
// client evicts it and resolves the key again.
package loccache

import (
	"sync"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
	"github.com/jrife/tablets/catalog/catalogpb"
)

// Cache maps row keys to the tablets that own them, per table.
// It is safe for concurrent use.
type Cache struct {
	mu     sync.RWMutex
	tables map[string]*treemap.Map
	// lowers maps a tablet id to the lower bound
	// under which it is cached
	lowers map[string]string
}

// New creates an empty cache
func New() *Cache {
	return &Cache{
		tables: map[string]*treemap.Map{},
		lowers: map[string]string{},
	}
}

// Lookup returns the cached tablet of a table whose partition
// range contains key or nil if there is none
func (cache *Cache) Lookup(tableID string, key []byte) *catalogpb.TabletRecord {
	cache.mu.RLock()
	defer cache.mu.RUnlock()

	ranges, ok := cache.tables[tableID]

	if !ok {
		return nil
	}

	_, value := ranges.Floor(string(key))

	if value == nil {
		return nil
	}

	record := value.(*catalogpb.TabletRecord)

	if !record.PartitionRange.Contains(key) {
		return nil
	}

	return record.Clone()
}

// Update caches a tablet location. Cached entries whose
// ranges overlap the new one are stale and are dropped.
func (cache *Cache) Update(record *catalogpb.TabletRecord) {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	ranges, ok := cache.tables[record.TableId]

	if !ok {
		ranges = treemap.NewWith(utils.StringComparator)
		cache.tables[record.TableId] = ranges
	}

	lower := string(record.PartitionRange.Lower)
	stale := []*catalogpb.TabletRecord{}

	if _, value := ranges.Floor(lower); value != nil && value.(*catalogpb.TabletRecord).PartitionRange.Overlaps(record.PartitionRange) {
		stale = append(stale, value.(*catalogpb.TabletRecord))
	}

	for key, value := ranges.Ceiling(lower); key != nil; key, value = ranges.Ceiling(key.(string) + "\x00") {
		cached := value.(*catalogpb.TabletRecord)

		if !cached.PartitionRange.Overlaps(record.PartitionRange) {
			break
		}

		stale = append(stale, cached)
	}

	for _, cached := range stale {
		ranges.Remove(string(cached.PartitionRange.Lower))
		delete(cache.lowers, cached.TabletId)
	}

	ranges.Put(lower, record.Clone())
	cache.lowers[record.TabletId] = lower
}

// Evict drops the cached location of a tablet. It
// returns false if the tablet was not cached.
func (cache *Cache) Evict(tableID string, tabletID string) bool {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	lower, ok := cache.lowers[tabletID]

	if !ok {
		return false
	}

	delete(cache.lowers, tabletID)

	if ranges, ok := cache.tables[tableID]; ok {
		ranges.Remove(lower)
	}

	return true
}

// Len returns the number of tablets cached for a table
func (cache *Cache) Len(tableID string) int {
	cache.mu.RLock()
	defer cache.mu.RUnlock()

	ranges, ok := cache.tables[tableID]

	if !ok {
		return 0
	}

	return ranges.Size()
}
