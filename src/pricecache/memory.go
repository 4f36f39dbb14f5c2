package pricecache

import (
	"sort"
	"sync"
	"time"

	"coinvest/src/models"
)

// -----------------------------------------------------------------------------
// MemoryCache
// -----------------------------------------------------------------------------

type entry struct {
	record  models.MPriceRecord
	expires time.Time
}

// MemoryCache keeps the latest record per symbol under an RWMutex. Entries are
// replaced whole on Put, so readers never observe a partially written record.
// The instrument universe is small and fixed, so there is no eviction beyond
// overwrite-on-symbol.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// -----------------------------------------------------------------------------

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// -----------------------------------------------------------------------------

// Get returns the latest record for symbol regardless of freshness.
func (c *MemoryCache) Get(symbol string) (models.MPriceRecord, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[symbol]
	if !ok {
		return models.MPriceRecord{}, false
	}
	return e.record, true
}

// -----------------------------------------------------------------------------

// GetAllFresh returns records whose entry is unexpired, sorted by symbol.
func (c *MemoryCache) GetAllFresh() []models.MPriceRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	now := c.now()
	out := make([]models.MPriceRecord, 0, len(c.entries))
	for _, e := range c.entries {
		if now.Before(e.expires) {
			out = append(out, e.record)
		}
	}
	sortRecords(out)
	return out
}

// -----------------------------------------------------------------------------

// GetAllAny returns every known record, expired or not.
func (c *MemoryCache) GetAllAny() []models.MPriceRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.MPriceRecord, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.record)
	}
	sortRecords(out)
	return out
}

// -----------------------------------------------------------------------------

// Put atomically replaces the record and expiry for rec.Symbol.
func (c *MemoryCache) Put(rec models.MPriceRecord, observedAt time.Time) {
	c.mu.Lock()
	c.entries[rec.Symbol] = entry{
		record:  rec,
		expires: observedAt.Add(c.ttl),
	}
	c.mu.Unlock()
}

// -----------------------------------------------------------------------------

func sortRecords(recs []models.MPriceRecord) {
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].Symbol < recs[j].Symbol
	})
}
