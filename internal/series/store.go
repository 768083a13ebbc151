// Package series holds each symbol's primary/secondary CandleSeries in
// memory, append-only during a session and reseeded from a historical
// fetch on startup, per spec.md's CandleSeries glossary entry. It is the
// thin collaborator IndicatorEngine reads through entry.Manager's
// SeriesProvider.
package series

import (
	"sync"

	"github.com/shubhamtaywade82/dhan-scalper/internal/types"
)

type symbolSeries struct {
	primary   types.CandleSeries
	secondary types.CandleSeries
	spot      float64
	hasSpot   bool
}

// Store is a concurrent-safe map from symbol to its candle series pair.
type Store struct {
	mu sync.RWMutex
	m  map[string]*symbolSeries
}

// New constructs an empty Store.
func New() *Store {
	return &Store{m: make(map[string]*symbolSeries)}
}

func (s *Store) entry(symbol string) *symbolSeries {
	e, ok := s.m[symbol]
	if !ok {
		e = &symbolSeries{}
		s.m[symbol] = e
	}
	return e
}

// Seed replaces a symbol's series wholesale, used for the startup
// historical-fetch reseed.
func (s *Store) Seed(symbol string, primary, secondary types.CandleSeries) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(symbol)
	e.primary = primary
	e.secondary = secondary
}

// AppendPrimary folds one new bar onto the primary timeframe.
func (s *Store) AppendPrimary(symbol string, c types.Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry(symbol).primary.Append(c)
}

// AppendSecondary folds one new bar onto the secondary timeframe.
func (s *Store) AppendSecondary(symbol string, c types.Candle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry(symbol).secondary.Append(c)
}

// SetSpot records the latest underlying spot price used for ATM strike
// selection.
func (s *Store) SetSpot(symbol string, spot float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entry(symbol)
	e.spot, e.hasSpot = spot, true
}

// Primary implements entry.SeriesProvider.
func (s *Store) Primary(symbol string) (types.CandleSeries, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.m[symbol]
	if !ok || len(e.primary.Candles) == 0 {
		return types.CandleSeries{}, false
	}
	return e.primary, true
}

// Secondary implements entry.SeriesProvider.
func (s *Store) Secondary(symbol string) (types.CandleSeries, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.m[symbol]
	if !ok || len(e.secondary.Candles) == 0 {
		return types.CandleSeries{}, false
	}
	return e.secondary, true
}

// Spot implements entry.SeriesProvider.
func (s *Store) Spot(symbol string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.m[symbol]
	if !ok || !e.hasSpot {
		return 0, false
	}
	return e.spot, true
}
