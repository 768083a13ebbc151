package report

import (
	"strings"
	"testing"
	"time"

	"github.com/shubhamtaywade82/dhan-scalper/internal/money"
)

func TestBuilderAccumulatesWinLossAndExtremes(t *testing.T) {
	start := time.Date(2026, 7, 31, 9, 15, 0, 0, time.UTC)
	b := NewBuilder("sess-1", start, money.FromInt(100000))

	b.RecordExit(money.FromInt(500))
	b.RecordExit(money.FromInt(-200))
	b.RecordExit(money.FromInt(1200))
	b.RecordFailure("insufficient_balance")

	end := start.Add(2 * time.Hour)
	rec := b.Build(end, money.FromInt(101500))

	if rec.TotalTrades != 3 || rec.Winning != 2 || rec.Losing != 1 {
		t.Fatalf("unexpected win/loss split: %+v", rec)
	}
	if !rec.MaxProfit.Equal(money.FromInt(1200)) {
		t.Fatalf("max profit = %s, want 1200", rec.MaxProfit)
	}
	if !rec.MaxDrawdown.Equal(money.FromInt(200)) {
		t.Fatalf("max drawdown = %s, want 200", rec.MaxDrawdown)
	}
	if rec.FailuresByKind["insufficient_balance"] != 1 {
		t.Fatalf("expected one insufficient_balance failure, got %+v", rec.FailuresByKind)
	}
	wantRate := 2.0 / 3.0
	if rec.WinRate < wantRate-1e-9 || rec.WinRate > wantRate+1e-9 {
		t.Fatalf("win rate = %f, want %f", rec.WinRate, wantRate)
	}
}

func TestWriteCSVProducesHeaderAndRow(t *testing.T) {
	start := time.Date(2026, 7, 31, 9, 15, 0, 0, time.UTC)
	b := NewBuilder("sess-2", start, money.FromInt(50000))
	b.RecordExit(money.FromInt(100))
	rec := b.Build(start.Add(time.Hour), money.FromInt(50100))

	var buf strings.Builder
	if err := WriteCSV(&buf, rec); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "session_id") {
		t.Fatalf("missing header: %q", lines[0])
	}
	if !strings.Contains(lines[1], "sess-2") {
		t.Fatalf("missing session id in row: %q", lines[1])
	}
}
