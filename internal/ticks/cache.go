// Package ticks implements the in-memory, concurrent tick cache (C2):
// a map from (segment, security_id) to the latest Tick, with an optional
// write-through to a DurableStore and a short-TTL micro-cache fronting the
// hot path, mirroring the mutex-guarded map idiom the teacher's brokers use
// for their own single-mutable-price state (see broker_paper.go).
package ticks

import (
	"sync"
	"time"

	"github.com/shubhamtaywade82/dhan-scalper/internal/money"
	"github.com/shubhamtaywade82/dhan-scalper/internal/types"
)

// Backend is the narrow slice of DurableStore the cache write-throughs to.
// Satisfied by store.SnapshottingStore.
type Backend interface {
	SnapshotTick(t types.Tick) error
}

// Stats is a point-in-time snapshot of cache activity, useful for /healthz.
type Stats struct {
	Entries int
	Puts    int64
	Drops   int64
	Hits    int64
	Misses  int64
}

type microEntry struct {
	tick     types.Tick
	cachedAt time.Time
}

// Cache is the concurrent tick store. Zero value is not usable; use New.
type Cache struct {
	mu      sync.RWMutex
	latest  map[string]types.Tick
	micro   map[string]microEntry
	microTTL time.Duration
	backend Backend

	lastPut                   time.Time
	puts, drops, hits, misses int64
}

// New builds a Cache with an optional write-through backend (nil disables it)
// and a micro-cache TTL (<=0 disables the micro-cache).
func New(backend Backend, microTTL time.Duration) *Cache {
	return &Cache{
		latest:   make(map[string]types.Tick),
		micro:    make(map[string]microEntry),
		microTTL: microTTL,
		backend:  backend,
	}
}

// Put stores tick if it is not older than what is already stored for its key.
// A tick with a strictly older server timestamp is dropped (out-of-order).
func (c *Cache) Put(tick types.Tick) {
	key := tick.Key()
	c.mu.Lock()
	if existing, ok := c.latest[key]; ok && tick.ServerTime.Before(existing.ServerTime) {
		c.drops++
		c.mu.Unlock()
		return
	}
	c.latest[key] = tick
	if c.microTTL > 0 {
		c.micro[key] = microEntry{tick: tick, cachedAt: time.Now()}
	}
	c.puts++
	c.lastPut = time.Now()
	c.mu.Unlock()

	if c.backend != nil {
		_ = c.backend.SnapshotTick(tick)
	}
}

// Get returns the latest tick for (segment, security_id), preferring the
// micro-cache when it is still fresh.
func (c *Cache) Get(segment, securityID string) (types.Tick, bool) {
	key := segment + ":" + securityID
	c.mu.Lock() // exclusive: the hit/miss counters are written below
	defer c.mu.Unlock()

	if c.microTTL > 0 {
		if me, ok := c.micro[key]; ok && time.Since(me.cachedAt) <= c.microTTL {
			c.hits++
			return me.tick, true
		}
	}
	t, ok := c.latest[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return t, ok
}

// LTP is a convenience accessor returning just the last traded price.
func (c *Cache) LTP(segment, securityID string) (money.Money, bool) {
	t, ok := c.Get(segment, securityID)
	if !ok {
		return money.Zero, false
	}
	return t.LTP, true
}

// Fresh reports whether the stored tick's ReceivedAt is within maxAge of now.
func (c *Cache) Fresh(segment, securityID string, maxAge time.Duration) bool {
	t, ok := c.Get(segment, securityID)
	if !ok {
		return false
	}
	return time.Since(t.ReceivedAt) <= maxAge
}

// LastHeartbeat returns the time of the most recent Put, satisfying
// session.HeartbeatSource for the feed-staleness check. Zero time if no
// tick has ever arrived.
func (c *Cache) LastHeartbeat() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastPut
}

// Clear empties the cache. Used on session reset.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.latest = make(map[string]types.Tick)
	c.micro = make(map[string]microEntry)
}

// Stats returns a snapshot of cache counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Entries: len(c.latest),
		Puts:    c.puts,
		Drops:   c.drops,
		Hits:    c.hits,
		Misses:  c.misses,
	}
}
