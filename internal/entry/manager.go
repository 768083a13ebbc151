// Package entry implements EntryManager (C13): the per-decision-tick scan
// over configured symbols that turns an IndicatorEngine verdict into a new
// option position, per spec.md §4.13. Control flow mirrors the teacher's
// step.go EXIT→OPEN tick (evaluate, size, place, then register risk state)
// generalized from a single spot instrument to a symbol list with
// portfolio-wide caps.
package entry

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shubhamtaywade82/dhan-scalper/internal/balance"
	"github.com/shubhamtaywade82/dhan-scalper/internal/broker"
	"github.com/shubhamtaywade82/dhan-scalper/internal/indicator"
	"github.com/shubhamtaywade82/dhan-scalper/internal/money"
	"github.com/shubhamtaywade82/dhan-scalper/internal/option"
	"github.com/shubhamtaywade82/dhan-scalper/internal/position"
	"github.com/shubhamtaywade82/dhan-scalper/internal/sizing"
	"github.com/shubhamtaywade82/dhan-scalper/internal/stream"
	"github.com/shubhamtaywade82/dhan-scalper/internal/trade"
	"github.com/shubhamtaywade82/dhan-scalper/internal/types"
)

// SeriesProvider loads a symbol's candle series for indicator evaluation.
// Returns ok=false if no series is available yet (warmup).
type SeriesProvider interface {
	Primary(symbol string) (types.CandleSeries, bool)
	Secondary(symbol string) (types.CandleSeries, bool)
	Spot(symbol string) (float64, bool)
}

// LTPProvider is the narrow tick-cache slice EntryManager needs for premium
// lookups.
type LTPProvider interface {
	LTP(segment, securityID string) (money.Money, bool)
	Fresh(segment, securityID string, maxAge time.Duration) bool
}

// SymbolConfig is the resolved per-symbol configuration for one decision
// tick, assembled by the caller from SYMBOLS.<sym>.* config keys.
type SymbolConfig struct {
	Symbol          string
	Segment         string
	StrikeStep      float64
	ExpiryWeekday   time.Weekday
	IndicatorPrimary   indicator.Params
	IndicatorSecondary indicator.Params
	UseSecondary    bool
	Sizing          sizing.Params
	Fee             money.Money
	StopLossPct     float64
	TakeProfitPct   float64
	MaxStalePremium time.Duration
	MaxPerDirection int // per-symbol concurrency cap, per direction
}

// Manager is EntryManager (C13).
type Manager struct {
	series     SeriesProvider
	ltp        LTPProvider
	bal        balance.Provider
	engine     *indicator.Engine
	picker     *option.Picker
	sizer      *sizing.Sizer
	executor   *trade.Executor
	positions  *position.Tracker
	ws         *stream.Manager
	broker     broker.Broker
	mode       types.Mode
	log        *logrus.Entry
	maxConcurrent int
}

// New wires EntryManager's collaborators. brk places the actual market
// order; its fill is what AtomicTrade then books against the balance and
// position.
func New(series SeriesProvider, ltp LTPProvider, bal balance.Provider, engine *indicator.Engine, picker *option.Picker, sizer *sizing.Sizer, executor *trade.Executor, positions *position.Tracker, ws *stream.Manager, brk broker.Broker, mode types.Mode, maxConcurrent int, log *logrus.Logger) *Manager {
	if log == nil {
		log = logrus.New()
	}
	return &Manager{
		series: series, ltp: ltp, bal: bal, engine: engine, picker: picker, sizer: sizer,
		executor: executor, positions: positions, ws: ws, broker: brk, mode: mode,
		maxConcurrent: maxConcurrent, log: log.WithField("component", "entrymanager"),
	}
}

// countOpenByDirection returns how many open positions exist for symbol in
// the given direction (right), for the per-symbol/per-direction cap.
func countOpenByDirection(open []types.Position, symbol string, right types.Right) int {
	n := 0
	for _, p := range open {
		if p.Underlying == symbol && p.Right == right {
			n++
		}
	}
	return n
}

// Tick runs one decision-tick pass over the configured symbols in order.
// Symbols are evaluated in the caller-supplied slice order (deterministic
// iteration per spec.md §4.13 edge case).
func (m *Manager) Tick(ctx context.Context, symbols []SymbolConfig) {
	open := m.positions.ListOpen()
	if m.maxConcurrent > 0 && len(open) >= m.maxConcurrent {
		m.log.Debug("portfolio position cap reached, skipping entries this tick")
		return
	}

	for _, cfg := range symbols {
		m.evaluateSymbol(ctx, cfg, open)
	}
}

func (m *Manager) evaluateSymbol(ctx context.Context, cfg SymbolConfig, open []types.Position) {
	primary, ok := m.series.Primary(cfg.Symbol)
	if !ok {
		return
	}
	var secondary *types.CandleSeries
	if cfg.UseSecondary {
		if s, ok := m.series.Secondary(cfg.Symbol); ok {
			secondary = &s
		}
	}

	sig := m.engine.Evaluate(primary, secondary, cfg.IndicatorPrimary, cfg.IndicatorSecondary)
	if !sig.Proceed || sig.Direction == types.DirectionNone {
		return
	}

	right := sig.RightFor()
	if cfg.MaxPerDirection > 0 && countOpenByDirection(open, cfg.Symbol, right) >= cfg.MaxPerDirection {
		return
	}

	spot, ok := m.series.Spot(cfg.Symbol)
	if !ok {
		return
	}
	pick := m.picker.Pick(cfg.Symbol, spot, cfg.StrikeStep, cfg.ExpiryWeekday, time.Now())
	sid, ok := pick.SecurityIDFor(pick.ATM(), right)
	if !ok {
		m.log.WithField("symbol", cfg.Symbol).Warn("option resolution failed")
		return
	}

	if !m.ltp.Fresh(cfg.Segment, sid, cfg.MaxStalePremium) {
		m.log.WithFields(logrus.Fields{"symbol": cfg.Symbol, "security_id": sid}).Warn("stale_price")
		return
	}
	premium, ok := m.ltp.LTP(cfg.Segment, sid)
	if !ok {
		return
	}

	avail, err := m.bal.Available(ctx)
	if err != nil {
		return
	}
	lots := m.sizer.Lots(avail, premium, cfg.Sizing)
	if lots <= 0 {
		return
	}
	qty := lots * cfg.Sizing.LotSize

	fillPrice := premium
	if m.broker != nil {
		orderRes, err := m.broker.BuyMarket(ctx, cfg.Segment, sid, int64(qty), cfg.Fee)
		if err != nil || !orderRes.OK {
			m.log.WithFields(logrus.Fields{"symbol": cfg.Symbol, "security_id": sid}).Warn("broker buy rejected")
			return
		}
		fillPrice = orderRes.FilledPrice
	}

	id := types.PositionID{Segment: cfg.Segment, SecurityID: sid, Side: types.SideLong}
	res, err := m.executor.Buy(ctx, id, qty, fillPrice, cfg.Fee, "")
	if err != nil || !res.OK {
		return
	}

	filled := res.Order.FilledPrice
	m.positions.Mutate(id, func(p *types.Position) {
		p.Underlying = cfg.Symbol
		p.Right = right
		p.PeakPrice = filled
		p.StopLoss = filled.MulFloat(1 - cfg.StopLossPct)
		p.TakeProfit = filled.MulFloat(1 + cfg.TakeProfitPct)
		p.TrailingStop = nil
	})

	m.ws.AddPosition(cfg.Segment, sid)
}
