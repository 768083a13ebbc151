package store

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-process Store, used by the paper trading path and tests.
// It implements the same contract as the Redis backend so AtomicTrade and
// friends never know which one they're talking to.
type Memory struct {
	txMu   sync.Mutex
	mu     sync.Mutex
	hashes map[string]map[string]string
	sets   map[string]map[string]struct{}
	lists  map[string][]string
	expiry map[string]time.Time
	locks  map[string]time.Time
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		hashes: make(map[string]map[string]string),
		sets:   make(map[string]map[string]struct{}),
		lists:  make(map[string][]string),
		expiry: make(map[string]time.Time),
		locks:  make(map[string]time.Time),
	}
}

func (m *Memory) expired(key string) bool {
	deadline, ok := m.expiry[key]
	return ok && time.Now().After(deadline)
}

func (m *Memory) HSet(_ context.Context, key string, fields map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashes[key]
	if !ok || m.expired(key) {
		h = make(map[string]string)
		m.hashes[key] = h
		delete(m.expiry, key)
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

func (m *Memory) HGet(_ context.Context, key, field string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expired(key) {
		return "", false, nil
	}
	h, ok := m.hashes[key]
	if !ok {
		return "", false, nil
	}
	v, ok := h[field]
	return v, ok, nil
}

func (m *Memory) HGetAll(_ context.Context, key string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.expired(key) {
		return map[string]string{}, nil
	}
	out := make(map[string]string, len(m.hashes[key]))
	for k, v := range m.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (m *Memory) SAdd(_ context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sets[key]
	if !ok {
		s = make(map[string]struct{})
		m.sets[key] = s
	}
	for _, mem := range members {
		s[mem] = struct{}{}
	}
	return nil
}

func (m *Memory) SRem(_ context.Context, key string, members ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sets[key]
	if !ok {
		return nil
	}
	for _, mem := range members {
		delete(s, mem)
	}
	return nil
}

func (m *Memory) SMembers(_ context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sets[key]))
	for mem := range m.sets[key] {
		out = append(out, mem)
	}
	return out, nil
}

func (m *Memory) LPush(_ context.Context, key string, values ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range values {
		m.lists[key] = append([]string{v}, m.lists[key]...)
	}
	return nil
}

func (m *Memory) LRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.lists[key]
	n := int64(len(l))
	if n == 0 {
		return nil, nil
	}
	if stop < 0 || stop >= n {
		stop = n - 1
	}
	if start < 0 {
		start = 0
	}
	if start > stop {
		return nil, nil
	}
	out := make([]string, stop-start+1)
	copy(out, l[start:stop+1])
	return out, nil
}

func (m *Memory) LTrim(_ context.Context, key string, start, stop int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l := m.lists[key]
	n := int64(len(l))
	if n == 0 {
		return nil
	}
	if stop < 0 || stop >= n {
		stop = n - 1
	}
	if start < 0 {
		start = 0
	}
	if start > stop {
		m.lists[key] = nil
		return nil
	}
	m.lists[key] = append([]string{}, l[start:stop+1]...)
	return nil
}

func (m *Memory) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expiry[key] = time.Now().Add(ttl)
	return nil
}

type memoryTx struct{ m *Memory }

func (tx memoryTx) HSet(key string, fields map[string]string) error {
	return tx.m.HSet(context.Background(), key, fields)
}
func (tx memoryTx) SAdd(key string, members ...string) error {
	return tx.m.SAdd(context.Background(), key, members...)
}
func (tx memoryTx) SRem(key string, members ...string) error {
	return tx.m.SRem(context.Background(), key, members...)
}
func (tx memoryTx) LPush(key string, values ...string) error {
	return tx.m.LPush(context.Background(), key, values...)
}

// Atomic runs fn while holding a transaction mutex, so two Atomic blocks
// never interleave. Each write inside fn takes the store mutex on its own:
// a plain read can observe a block half-applied, and writes made before fn
// returns an error are kept.
func (m *Memory) Atomic(_ context.Context, fn func(tx Tx) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()
	return fn(memoryTx{m: m})
}

func (m *Memory) TryLock(_ context.Context, name string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := "locks:" + name
	if deadline, held := m.locks[key]; held && time.Now().Before(deadline) {
		return false, nil
	}
	m.locks[key] = time.Now().Add(ttl)
	return true, nil
}

func (m *Memory) Unlock(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, "locks:"+name)
	return nil
}

func (m *Memory) Idempotent(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	idempKey := "idemp:" + key
	if deadline, seen := m.locks[idempKey]; seen && time.Now().Before(deadline) {
		return false, nil
	}
	m.locks[idempKey] = time.Now().Add(ttl)
	return true, nil
}
