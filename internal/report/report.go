// Package report builds the end-of-session tabular record, the way teacher's
// backtest.go accumulates running stats across a walk-forward loop and logs
// periodic progress lines.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/shubhamtaywade82/dhan-scalper/internal/money"
)

// Record is the spec.md §6 session report artifact.
type Record struct {
	SessionID       string
	Start           time.Time
	End             time.Time
	Duration        time.Duration
	TotalTrades     int
	Winning         int
	Losing          int
	WinRate         float64
	TotalPnL        money.Money
	MaxProfit       money.Money
	MaxDrawdown     money.Money
	StartingBalance money.Money
	FinalBalance    money.Money
	FailuresByKind  map[string]int
}

// Builder accumulates trade outcomes as they happen and produces a Record
// when the session ends, mirroring the running-counter style of the
// teacher's backtest loop rather than re-deriving everything from the store
// after the fact.
type Builder struct {
	sessionID       string
	start           time.Time
	startingBalance money.Money

	totalTrades int
	winning     int
	losing      int
	totalPnL    money.Money
	maxProfit   money.Money
	maxDrawdown money.Money
	failures    map[string]int
}

// NewBuilder starts a fresh accumulator for a session.
func NewBuilder(sessionID string, start time.Time, startingBalance money.Money) *Builder {
	return &Builder{
		sessionID:       sessionID,
		start:           start,
		startingBalance: startingBalance,
		failures:        make(map[string]int),
	}
}

// RecordExit folds a closed trade's realized P&L into the running totals.
func (b *Builder) RecordExit(realizedPnL money.Money) {
	b.totalTrades++
	if realizedPnL.IsNegative() {
		b.losing++
	} else {
		b.winning++
	}
	b.totalPnL = b.totalPnL.Add(realizedPnL)
	if realizedPnL.GreaterThan(b.maxProfit) {
		b.maxProfit = realizedPnL
	}
	if realizedPnL.IsNegative() && realizedPnL.Neg().GreaterThan(b.maxDrawdown) {
		b.maxDrawdown = realizedPnL.Neg()
	}
}

// RecordFailure tallies a rejected order by its error kind, so the final
// report enumerates failures by kind and count per spec.md §4.7.
func (b *Builder) RecordFailure(kind string) {
	b.failures[kind]++
}

// Build closes out the session and returns the Record.
func (b *Builder) Build(end time.Time, finalBalance money.Money) Record {
	winRate := 0.0
	if b.totalTrades > 0 {
		winRate = float64(b.winning) / float64(b.totalTrades)
	}
	return Record{
		SessionID:       b.sessionID,
		Start:           b.start,
		End:             end,
		Duration:        end.Sub(b.start),
		TotalTrades:     b.totalTrades,
		Winning:         b.winning,
		Losing:          b.losing,
		WinRate:         winRate,
		TotalPnL:        b.totalPnL,
		MaxProfit:       b.maxProfit,
		MaxDrawdown:     b.maxDrawdown,
		StartingBalance: b.startingBalance,
		FinalBalance:    finalBalance,
		FailuresByKind:  b.failures,
	}
}

// WriteCSV renders the Record as a single CSV header+row pair, the fixed
// tabular shape spec.md §6 asks for.
func WriteCSV(w io.Writer, r Record) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{
		"session_id", "start", "end", "duration", "total_trades", "winning",
		"losing", "win_rate", "total_pnl", "max_profit", "max_drawdown",
		"starting_balance", "final_balance",
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	row := []string{
		r.SessionID,
		r.Start.Format(time.RFC3339),
		r.End.Format(time.RFC3339),
		r.Duration.String(),
		fmt.Sprintf("%d", r.TotalTrades),
		fmt.Sprintf("%d", r.Winning),
		fmt.Sprintf("%d", r.Losing),
		fmt.Sprintf("%.4f", r.WinRate),
		r.TotalPnL.String(),
		r.MaxProfit.String(),
		r.MaxDrawdown.String(),
		r.StartingBalance.String(),
		r.FinalBalance.String(),
	}
	return cw.Write(row)
}
