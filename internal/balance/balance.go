// Package balance implements BalanceProvider (C4): available/used/total cash
// and realized P&L, with a simulated in-memory wallet for paper trading and a
// live broker-funds proxy with a TTL cache, per spec.md §4.4.
package balance

import (
	"context"
	"sync"
	"time"

	"github.com/shubhamtaywade82/dhan-scalper/internal/money"
	"github.com/shubhamtaywade82/dhan-scalper/internal/types"
)

// Kind is the direction of a balance mutation.
type Kind string

const (
	Debit  Kind = "debit"
	Credit Kind = "credit"
)

// Provider is the common contract both Simulated and Live satisfy.
type Provider interface {
	Available(ctx context.Context) (money.Money, error)
	Used(ctx context.Context) (money.Money, error)
	Total(ctx context.Context) (money.Money, error)
	RealizedPnL(ctx context.Context) (money.Money, error)
	Update(ctx context.Context, amount money.Money, kind Kind) error
	AddRealizedPnL(ctx context.Context, amount money.Money) error
	Reset(ctx context.Context, amount money.Money) error
}

// Simulated is a pure in-memory wallet obeying the §3 Balance invariants:
// total = available + used, and available + used >= 0.
type Simulated struct {
	mu          sync.Mutex
	available   money.Money
	used        money.Money
	realizedPnL money.Money
}

// NewSimulated seeds a paper wallet from paper.starting_balance.
func NewSimulated(startingBalance money.Money) *Simulated {
	return &Simulated{available: startingBalance}
}

func (s *Simulated) Available(context.Context) (money.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.available, nil
}

func (s *Simulated) Used(context.Context) (money.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used, nil
}

func (s *Simulated) Total(context.Context) (money.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.available.Add(s.used), nil
}

func (s *Simulated) RealizedPnL(context.Context) (money.Money, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.realizedPnL, nil
}

// Update applies a debit or credit. A debit that would push available below
// zero is rejected with ErrInsufficientBalance rather than silently clamped.
func (s *Simulated) Update(_ context.Context, amount money.Money, kind Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case Debit:
		if s.available.LessThan(amount) {
			return types.NewError(types.ErrInsufficientBalance, "available balance below debit amount")
		}
		s.available = s.available.Sub(amount)
		s.used = s.used.Add(amount)
	case Credit:
		s.available = s.available.Add(amount)
		s.used = s.used.Sub(amount)
	}
	return nil
}

func (s *Simulated) AddRealizedPnL(_ context.Context, amount money.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.realizedPnL = s.realizedPnL.Add(amount)
	return nil
}

func (s *Simulated) Reset(_ context.Context, amount money.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.available = amount
	s.used = money.Zero
	s.realizedPnL = money.Zero
	return nil
}

// FundsFetcher is the narrow broker-funds endpoint the Live provider proxies.
type FundsFetcher interface {
	FetchFunds(ctx context.Context) (available, used, total, realizedPnL money.Money, err error)
}

// Live proxies to the broker funds endpoint with a 30-second TTL cache; on a
// fetch failure it retains the last known good values; on permanent failure
// it seeds defaults and keeps serving reads so callers can degrade gracefully.
type Live struct {
	fetcher FundsFetcher
	ttl     time.Duration

	mu          sync.Mutex
	available   money.Money
	used        money.Money
	total       money.Money
	realizedPnL money.Money
	fetchedAt   time.Time
	everFetched bool
}

// DefaultLiveTTL is the 30-second cache window from spec.md §4.4.
const DefaultLiveTTL = 30 * time.Second

// NewLive constructs a Live provider seeded with defaults until first fetch.
func NewLive(fetcher FundsFetcher, defaults money.Money) *Live {
	return &Live{fetcher: fetcher, ttl: DefaultLiveTTL, available: defaults}
}

func (l *Live) refresh(ctx context.Context) {
	l.mu.Lock()
	stale := time.Since(l.fetchedAt) > l.ttl
	l.mu.Unlock()
	if !stale {
		return
	}
	available, used, total, pnl, err := l.fetcher.FetchFunds(ctx)
	l.mu.Lock()
	defer l.mu.Unlock()
	if err != nil {
		// Retain last known good values; defaults already seeded if never fetched.
		return
	}
	l.available, l.used, l.total, l.realizedPnL = available, used, total, pnl
	l.fetchedAt = time.Now()
	l.everFetched = true
}

func (l *Live) Available(ctx context.Context) (money.Money, error) {
	l.refresh(ctx)
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.available, nil
}

func (l *Live) Used(ctx context.Context) (money.Money, error) {
	l.refresh(ctx)
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.used, nil
}

func (l *Live) Total(ctx context.Context) (money.Money, error) {
	l.refresh(ctx)
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.everFetched {
		return l.total, nil
	}
	return l.available.Add(l.used), nil
}

func (l *Live) RealizedPnL(ctx context.Context) (money.Money, error) {
	l.refresh(ctx)
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.realizedPnL, nil
}

// Update mutates the cached view optimistically; the next refresh past TTL
// reconciles against the broker's authoritative figures.
func (l *Live) Update(_ context.Context, amount money.Money, kind Kind) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch kind {
	case Debit:
		if l.available.LessThan(amount) {
			return types.NewError(types.ErrInsufficientBalance, "available balance below debit amount")
		}
		l.available = l.available.Sub(amount)
		l.used = l.used.Add(amount)
	case Credit:
		l.available = l.available.Add(amount)
		l.used = l.used.Sub(amount)
	}
	return nil
}

func (l *Live) AddRealizedPnL(_ context.Context, amount money.Money) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.realizedPnL = l.realizedPnL.Add(amount)
	return nil
}

func (l *Live) Reset(_ context.Context, amount money.Money) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.available = amount
	l.used = money.Zero
	l.realizedPnL = money.Zero
	l.fetchedAt = time.Time{}
	l.everFetched = false
	return nil
}
