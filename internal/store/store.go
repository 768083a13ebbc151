// Package store implements the DurableStore capability contract (C3): a
// namespaced key/value store with hashes, sets, lists, and an atomic
// multi-op, used for positions, orders, session P&L, and LTP snapshots.
// Two backends are provided: an in-memory implementation for paper mode and
// tests, and a Redis-backed implementation for live trading, grounded in the
// pack's widespread use of github.com/redis/go-redis for exactly this role
// (koshedutech-binance-trading-app, s2ungeda-cexoms, anywhy-bbgo).
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shubhamtaywade82/dhan-scalper/internal/types"
)

// Store is the capability contract every category in spec.md §4.3 is built
// from. Field values are encoded as printable strings; callers serialize.
type Store interface {
	HSet(ctx context.Context, key string, fields map[string]string) error
	HGet(ctx context.Context, key, field string) (string, bool, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)
	LPush(ctx context.Context, key string, values ...string) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LTrim(ctx context.Context, key string, start, stop int64) error
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Atomic groups the writes performed by fn so they all apply or none do.
	Atomic(ctx context.Context, fn func(tx Tx) error) error

	// TryLock attempts to acquire locks:<name> with the given TTL, returning
	// false (not an error) if another holder already owns it.
	TryLock(ctx context.Context, name string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, name string) error

	// Idempotent records idemp:<key> the first time it is seen and reports
	// whether this call was the first (true) or a replay (false).
	Idempotent(ctx context.Context, key string, ttl time.Duration) (firstSeen bool, err error)
}

// Tx is the subset of Store operations usable inside an Atomic block.
type Tx interface {
	HSet(key string, fields map[string]string) error
	SAdd(key string, members ...string) error
	SRem(key string, members ...string) error
	LPush(key string, values ...string) error
}

// Namespace builds the "<ns>:<category>:<id>" key hierarchy from spec.md §4.3.
type Namespace string

func (ns Namespace) key(parts ...string) string {
	k := string(ns)
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

func (ns Namespace) PositionKey(id string) string      { return ns.key("pos", id) }
func (ns Namespace) PositionOpenSet() string            { return ns.key("pos", "open") }
func (ns Namespace) OrderKey(id string) string          { return ns.key("order", id) }
func (ns Namespace) OrdersList(mode, session string) string {
	return ns.key("orders", mode, session)
}
func (ns Namespace) SessionPnLKey() string  { return ns.key("pnl", "session") }
func (ns Namespace) LTPSnapshotKey() string { return ns.key("ltp", "snapshot") }
func (ns Namespace) HeartbeatKey() string   { return ns.key("hb") }
func (ns Namespace) LockKey(name string) string   { return ns.key("locks", name) }
func (ns Namespace) IdempKey(key string) string    { return ns.key("idemp", key) }
func (ns Namespace) TickKey(segment, sid string) string {
	return ns.key("ticks", segment, sid)
}

// LTPSnapshotTTL is the crash-recovery TTL for ltp:snapshot per spec.md §6.
const LTPSnapshotTTL = 5 * time.Minute

// HeartbeatTTL is the liveness TTL for hb per spec.md §4.3.
const HeartbeatTTL = 5 * time.Minute

// SnapshottingStore adapts Store to the ticks.Backend write-through contract.
type SnapshottingStore struct {
	NS    Namespace
	Store Store
	Ctx   func() context.Context
}

// SnapshotTick writes the tick into the ltp:snapshot hash, keyed by its
// (segment, security_id), refreshing the crash-recovery TTL on every write.
func (s *SnapshottingStore) SnapshotTick(t types.Tick) error {
	ctx := context.Background()
	if s.Ctx != nil {
		ctx = s.Ctx()
	}
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	key := s.NS.LTPSnapshotKey()
	if err := s.Store.HSet(ctx, key, map[string]string{t.Key(): string(b)}); err != nil {
		return err
	}
	return s.Store.Expire(ctx, key, LTPSnapshotTTL)
}
