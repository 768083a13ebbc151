// Package stream implements WSManager (C12): a resilient websocket
// subscription manager with reconnect backoff, heartbeat, resubscription,
// and tick dedup, per spec.md §4.12. Concurrency follows the teacher's
// trader.go pattern: a mutex guards in-memory state, but the lock is
// released around any network I/O (dial, write, read) so a stalled
// connection never blocks a state read.
package stream

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/shubhamtaywade82/dhan-scalper/internal/types"
)

// State is the connection state machine per spec.md §4.12.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateClosing      State = "closing"
)

// Dialer abstracts the websocket transport so tests can substitute a fake.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// Conn is the minimal connection surface the manager drives.
type Conn interface {
	WriteJSON(v interface{}) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Decoder turns a raw websocket frame into a Tick. Returns ok=false for
// frames that are not tick updates (acks, heartbeats).
type Decoder func(frame []byte) (types.Tick, bool)

// Sink receives decoded, deduped ticks. Must be non-blocking: it updates
// TickCache and returns.
type Sink func(types.Tick)

// Config bounds reconnect/heartbeat timing.
type Config struct {
	BaseDelay           time.Duration
	MaxDelay            time.Duration
	MaxReconnectAttempts int
	HeartbeatInterval   time.Duration
	DedupWindow         time.Duration
	URL                 string
}

type subKey struct {
	Segment    string
	SecurityID string
}

// Manager owns one logical streaming connection to the broker feed. Baseline
// subscriptions are sticky for the session; position subscriptions are
// added/removed as positions open/close. Every reconnect resubscribes the
// full set.
type Manager struct {
	dialer  Dialer
	decode  Decoder
	sink    Sink
	cfg     Config
	log     *logrus.Entry

	mu          sync.Mutex
	state       State
	baseline    map[subKey]bool
	position    map[subKey]bool
	lastSeen    map[subKey]time.Time
	attempts    int
	conn        Conn
	cancel      context.CancelFunc
	stopped     bool
}

// New constructs a Manager. Call Run to start the connect/reconnect loop.
func New(dialer Dialer, decode Decoder, sink Sink, cfg Config, log *logrus.Logger) *Manager {
	if log == nil {
		log = logrus.New()
	}
	return &Manager{
		dialer:   dialer,
		decode:   decode,
		sink:     sink,
		cfg:      cfg,
		log:      log.WithField("component", "wsmanager"),
		state:    StateDisconnected,
		baseline: make(map[subKey]bool),
		position: make(map[subKey]bool),
		lastSeen: make(map[subKey]time.Time),
	}
}

// AddBaseline adds a sticky-for-session subscription. Idempotent.
func (m *Manager) AddBaseline(segment, securityID string) {
	m.mu.Lock()
	m.baseline[subKey{segment, securityID}] = true
	m.mu.Unlock()
}

// AddPosition adds a subscription tied to an open position. Idempotent.
func (m *Manager) AddPosition(segment, securityID string) {
	m.mu.Lock()
	m.position[subKey{segment, securityID}] = true
	m.mu.Unlock()
}

// RemovePosition drops a position subscription once net_qty returns to 0.
func (m *Manager) RemovePosition(segment, securityID string) {
	m.mu.Lock()
	delete(m.position, subKey{segment, securityID})
	m.mu.Unlock()
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) subscriptionSet() []subKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]subKey, 0, len(m.baseline)+len(m.position))
	for k := range m.baseline {
		keys = append(keys, k)
	}
	for k := range m.position {
		if !m.baseline[k] {
			keys = append(keys, k)
		}
	}
	return keys
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Run drives connect → subscribe → read loop → reconnect-on-failure until
// ctx is cancelled or Stop is called. It is meant to run in its own
// goroutine for the life of the session.
func (m *Manager) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancel = cancel
	m.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			m.setState(StateDisconnected)
			return
		default:
		}

		m.mu.Lock()
		if m.stopped {
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()

		m.setState(StateConnecting)
		conn, err := m.dialer.Dial(ctx, m.cfg.URL)
		if err != nil {
			m.log.WithError(err).Warn("dial failed")
			if !m.backoff(ctx) {
				return
			}
			continue
		}

		m.mu.Lock()
		m.conn = conn
		m.attempts = 0
		m.mu.Unlock()
		m.setState(StateConnected)

		if err := m.resubscribe(conn); err != nil {
			m.log.WithError(err).Warn("resubscribe failed")
			conn.Close()
			if !m.backoff(ctx) {
				return
			}
			continue
		}

		hbDone := make(chan struct{})
		go m.heartbeat(ctx, conn, hbDone)

		m.readLoop(ctx, conn)
		close(hbDone)

		m.setState(StateDisconnected)
		select {
		case <-ctx.Done():
			return
		default:
		}
		if !m.backoff(ctx) {
			return
		}
	}
}

// resubscribe issues a subscribe message for the full baseline ∪ position
// set. Called on every transition to Connected per the resubscription
// invariant.
func (m *Manager) resubscribe(conn Conn) error {
	keys := m.subscriptionSet()
	return conn.WriteJSON(map[string]interface{}{
		"action": "subscribe",
		"instruments": keys,
	})
}

func (m *Manager) heartbeat(ctx context.Context, conn Conn, done chan struct{}) {
	if m.cfg.HeartbeatInterval <= 0 {
		return
	}
	ticker := time.NewTicker(m.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteJSON(map[string]string{"action": "ping"}); err != nil {
				m.log.WithError(err).Warn("heartbeat failed, forcing reconnect")
				conn.Close()
				return
			}
		}
	}
}

func (m *Manager) readLoop(ctx context.Context, conn Conn) {
	for {
		select {
		case <-ctx.Done():
			conn.Close()
			return
		default:
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		tick, ok := m.decode(data)
		if !ok {
			continue
		}
		if m.dedup(tick) {
			continue
		}
		m.sink(tick)
	}
}

// dedup drops ticks strictly older than the last seen timestamp for the
// same key. When DedupWindow is non-zero it also drops a tick carrying
// exactly that timestamp, as a duplicate; the window's length is not
// otherwise used.
func (m *Manager) dedup(t types.Tick) bool {
	key := subKey{t.Segment, t.SecurityID}
	m.mu.Lock()
	defer m.mu.Unlock()
	last, ok := m.lastSeen[key]
	if ok {
		if t.ServerTime.Before(last) {
			return true
		}
		if m.cfg.DedupWindow > 0 && t.ServerTime.Equal(last) {
			return true
		}
	}
	m.lastSeen[key] = t.ServerTime
	return false
}

// backoff waits min(base*2^attempts, max) plus jitter before the next
// reconnect attempt. Returns false if the attempt ceiling was hit or ctx
// was cancelled mid-wait.
func (m *Manager) backoff(ctx context.Context) bool {
	m.mu.Lock()
	m.attempts++
	attempt := m.attempts
	m.mu.Unlock()

	if m.cfg.MaxReconnectAttempts > 0 && attempt > m.cfg.MaxReconnectAttempts {
		m.log.Error("max reconnect attempts exceeded, giving up")
		return false
	}

	delay := m.cfg.BaseDelay << attempt
	if m.cfg.MaxDelay > 0 && delay > m.cfg.MaxDelay {
		delay = m.cfg.MaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(delay/2) + 1))
	select {
	case <-ctx.Done():
		return false
	case <-time.After(delay + jitter):
		return true
	}
}

// Stop gracefully shuts the manager down: stops the reconnect loop and
// closes the socket. Pending sends are dropped.
func (m *Manager) Stop() {
	m.mu.Lock()
	m.stopped = true
	if m.cancel != nil {
		m.cancel()
	}
	conn := m.conn
	m.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// GorillaDialer adapts gorilla/websocket to the Dialer interface.
type GorillaDialer struct{}

func (GorillaDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return gorillaConn{conn}, nil
}

type gorillaConn struct{ c *websocket.Conn }

func (g gorillaConn) WriteJSON(v interface{}) error             { return g.c.WriteJSON(v) }
func (g gorillaConn) ReadMessage() (int, []byte, error)          { return g.c.ReadMessage() }
func (g gorillaConn) Close() error                               { return g.c.Close() }
