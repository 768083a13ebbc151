package stream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shubhamtaywade82/dhan-scalper/internal/types"
)

type fakeConn struct {
	mu        sync.Mutex
	writes    []interface{}
	messages  chan []byte
	closed    bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{messages: make(chan []byte, 16)}
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, v)
	return nil
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	msg, ok := <-f.messages
	if !ok {
		return 0, nil, errors.New("closed")
	}
	return 1, msg, nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.messages)
	}
	return nil
}

type fakeDialer struct {
	mu      sync.Mutex
	conns   []*fakeConn
	dials   int
	failFirst bool
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.failFirst && d.dials == 1 {
		return nil, errors.New("dial refused")
	}
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func decodeTestFrame(frame []byte) (types.Tick, bool) {
	if len(frame) == 0 {
		return types.Tick{}, false
	}
	return types.Tick{Segment: "NSE_FNO", SecurityID: string(frame), ServerTime: time.Now()}, true
}

func TestResubscribeInvariantOnConnect(t *testing.T) {
	dialer := &fakeDialer{}
	var received []types.Tick
	var mu sync.Mutex
	sink := func(tk types.Tick) {
		mu.Lock()
		received = append(received, tk)
		mu.Unlock()
	}
	m := New(dialer, decodeTestFrame, sink, Config{BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, HeartbeatInterval: 0}, nil)
	m.AddBaseline("NSE_FNO", "13")

	ctx, cancel := context.WithCancel(context.Background())
	go m.Run(ctx)

	deadline := time.After(2 * time.Second)
	for {
		dialer.mu.Lock()
		n := len(dialer.conns)
		dialer.mu.Unlock()
		if n >= 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("dialer never connected")
		case <-time.After(5 * time.Millisecond):
		}
	}

	dialer.mu.Lock()
	conn := dialer.conns[0]
	dialer.mu.Unlock()

	conn.mu.Lock()
	writeCount := len(conn.writes)
	conn.mu.Unlock()
	if writeCount == 0 {
		t.Fatal("expected a subscribe message on connect")
	}

	cancel()
	m.Stop()
}

func TestDedupDropsOlderTick(t *testing.T) {
	m := &Manager{lastSeen: make(map[subKey]time.Time), cfg: Config{}}
	now := time.Now()
	older := now.Add(-time.Second)

	first := types.Tick{Segment: "S", SecurityID: "1", ServerTime: now}
	if m.dedup(first) {
		t.Fatal("first tick must not be dropped")
	}
	second := types.Tick{Segment: "S", SecurityID: "1", ServerTime: older}
	if !m.dedup(second) {
		t.Fatal("older tick must be dropped")
	}
}
