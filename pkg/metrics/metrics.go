package metrics

import "sync/atomic"

// Collector collects storage-engine counters. All methods are safe for
// concurrent use.
type Collector struct {
	fetchHits       atomic.Uint64
	fetchMisses     atomic.Uint64
	evictions       atomic.Uint64
	flushes         atomic.Uint64
	recordsInserted atomic.Uint64
	recordsDeleted  atomic.Uint64
	keysInserted    atomic.Uint64
	keysDeleted     atomic.Uint64
}

// NewCollector creates an empty collector
func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) RecordFetchHit()  { c.fetchHits.Add(1) }
func (c *Collector) RecordFetchMiss() { c.fetchMisses.Add(1) }
func (c *Collector) RecordEviction()  { c.evictions.Add(1) }
func (c *Collector) RecordFlush()     { c.flushes.Add(1) }
func (c *Collector) RecordInsert()    { c.recordsInserted.Add(1) }
func (c *Collector) RecordDelete()    { c.recordsDeleted.Add(1) }
func (c *Collector) RecordKeyInsert() { c.keysInserted.Add(1) }
func (c *Collector) RecordKeyDelete() { c.keysDeleted.Add(1) }

// Stats is a point-in-time snapshot of the collector
type Stats struct {
	FetchHits       uint64  `json:"fetch_hits"`
	FetchMisses     uint64  `json:"fetch_misses"`
	HitRate         float64 `json:"hit_rate"`
	Evictions       uint64  `json:"evictions"`
	Flushes         uint64  `json:"flushes"`
	RecordsInserted uint64  `json:"records_inserted"`
	RecordsDeleted  uint64  `json:"records_deleted"`
	KeysInserted    uint64  `json:"keys_inserted"`
	KeysDeleted     uint64  `json:"keys_deleted"`
}

// Snapshot returns the current counter values
func (c *Collector) Snapshot() Stats {
	hits := c.fetchHits.Load()
	misses := c.fetchMisses.Load()
	hitRate := 0.0
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	return Stats{
		FetchHits:       hits,
		FetchMisses:     misses,
		HitRate:         hitRate,
		Evictions:       c.evictions.Load(),
		Flushes:         c.flushes.Load(),
		RecordsInserted: c.recordsInserted.Load(),
		RecordsDeleted:  c.recordsDeleted.Load(),
		KeysInserted:    c.keysInserted.Load(),
		KeysDeleted:     c.keysDeleted.Load(),
	}
}

// Reset clears every counter
func (c *Collector) Reset() {
	c.fetchHits.Store(0)
	c.fetchMisses.Store(0)
	c.evictions.Store(0)
	c.flushes.Store(0)
	c.recordsInserted.Store(0)
	c.recordsDeleted.Store(0)
	c.keysInserted.Store(0)
	c.keysDeleted.Store(0)
}

// Default is the process-wide collector used by the storage layer
var Default = NewCollector()
