package supervisor

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shubhamtaywade82/dhan-scalper/internal/balance"
	"github.com/shubhamtaywade82/dhan-scalper/internal/entry"
	"github.com/shubhamtaywade82/dhan-scalper/internal/exit"
	"github.com/shubhamtaywade82/dhan-scalper/internal/money"
	"github.com/shubhamtaywade82/dhan-scalper/internal/position"
	"github.com/shubhamtaywade82/dhan-scalper/internal/report"
	"github.com/shubhamtaywade82/dhan-scalper/internal/session"
	"github.com/shubhamtaywade82/dhan-scalper/internal/store"
	"github.com/shubhamtaywade82/dhan-scalper/internal/trade"
	"github.com/shubhamtaywade82/dhan-scalper/internal/types"
)

func TestRunExitsOnContextCancelAndWritesReport(t *testing.T) {
	bal := balance.NewSimulated(money.FromInt(100000))
	pos := position.New()
	st := store.NewMemory()
	ex := trade.New(bal, pos, st, store.Namespace("sup"), "sess-1", types.ModePaper)

	window := session.Window{Open: 0, Close: 24 * time.Hour}
	guard := session.New(window, money.FromInt(999999), 0, nil, nil, pos, ex)

	entryMgr := entry.New(nil, nil, bal, nil, nil, nil, ex, pos, nil, nil, types.ModePaper, 5, nil)
	exitMgr := exit.New(pos, ex, nil, nil)

	var out strings.Builder
	rb := report.NewBuilder("sess-1", time.Now(), money.FromInt(100000))

	sup := New(Config{
		DecisionInterval: 20 * time.Millisecond,
		Guard:            guard,
		Entry:            entryMgr,
		EntrySymbols:     nil,
		Exit:             exitMgr,
		Signals:          func(string) (types.Signal, bool) { return types.Signal{}, false },
		ExitParams:       func(string) exit.Params { return exit.Params{} },
		Positions:        pos,
		Balance:          bal,
		ReportOut:        &out,
		Report:           rb,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := sup.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "session_id") {
		t.Fatalf("expected a CSV report to be written, got %q", out.String())
	}
}
