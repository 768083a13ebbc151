package trade

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shubhamtaywade82/dhan-scalper/internal/balance"
	"github.com/shubhamtaywade82/dhan-scalper/internal/money"
	"github.com/shubhamtaywade82/dhan-scalper/internal/position"
	"github.com/shubhamtaywade82/dhan-scalper/internal/store"
	"github.com/shubhamtaywade82/dhan-scalper/internal/types"
)

func newExecutor(startingBalance int64) (*Executor, balance.Provider) {
	bal := balance.NewSimulated(money.FromInt(startingBalance))
	pos := position.New()
	st := store.NewMemory()
	ex := New(bal, pos, st, store.Namespace("test"), "sess-1", types.ModePaper)
	return ex, bal
}

func pid() types.PositionID {
	return types.PositionID{Segment: "NSE_FNO", SecurityID: "501", Side: types.SideLong}
}

func TestProfitRoundTrip(t *testing.T) {
	ctx := context.Background()
	ex, bal := newExecutor(100000)
	id := pid()

	buyRes, err := ex.Buy(ctx, id, 75, money.FromInt(100), money.FromInt(20), "")
	require.NoError(t, err)
	require.True(t, buyRes.OK)

	sellRes, err := ex.Sell(ctx, id, 75, money.FromInt(120), money.FromInt(20), "")
	require.NoError(t, err)
	require.True(t, sellRes.OK)

	avail, _ := bal.Available(ctx)
	assert.True(t, avail.Equal(money.FromInt(101460)), "final available balance = %s, want 101460", avail)

	pnl, _ := bal.RealizedPnL(ctx)
	assert.True(t, pnl.Equal(money.FromInt(1500)), "realized pnl = %s, want 1500", pnl)

	used, _ := bal.Used(ctx)
	total, _ := bal.Total(ctx)
	assert.True(t, avail.Add(used).Equal(total), "available+used = %s, want total %s", avail.Add(used), total)
	assert.True(t, total.Equal(money.FromInt(100000)), "total must stay conserved at starting balance, got %s", total)
}

func TestLossRoundTrip(t *testing.T) {
	ctx := context.Background()
	ex, bal := newExecutor(100000)
	id := pid()

	_, err := ex.Buy(ctx, id, 75, money.FromInt(100), money.FromInt(20), "")
	require.NoError(t, err)
	_, err = ex.Sell(ctx, id, 75, money.FromInt(90), money.FromInt(20), "")
	require.NoError(t, err)

	avail, _ := bal.Available(ctx)
	assert.True(t, avail.Equal(money.FromInt(99210)), "final available balance = %s, want 99210", avail)
}

func TestInsufficientBalanceRejected(t *testing.T) {
	ctx := context.Background()
	ex, bal := newExecutor(5000)
	id := pid()

	res, err := ex.Buy(ctx, id, 75, money.FromInt(100), money.FromInt(20), "")
	require.NoError(t, err)
	assert.False(t, res.OK, "expected rejection")
	assert.Equal(t, types.ErrInsufficientBalance, res.Reason)

	total, _ := bal.Total(ctx)
	assert.True(t, total.Equal(money.FromInt(5000)), "balance must be unchanged, got %s", total)
}

func TestOversellRejected(t *testing.T) {
	ctx := context.Background()
	ex, _ := newExecutor(100000)
	id := pid()

	_, err := ex.Buy(ctx, id, 75, money.FromInt(100), money.FromInt(20), "")
	require.NoError(t, err)

	res, err := ex.Sell(ctx, id, 150, money.FromInt(100), money.FromInt(20), "")
	require.NoError(t, err)
	assert.False(t, res.OK, "expected oversell rejection")
	assert.Equal(t, types.ErrInsufficientPosition, res.Reason)
}

func TestIdempotencyReplaysPriorResult(t *testing.T) {
	ctx := context.Background()
	ex, bal := newExecutor(100000)
	id := pid()

	first, err := ex.Buy(ctx, id, 75, money.FromInt(100), money.FromInt(20), "key-1")
	require.NoError(t, err)
	require.True(t, first.OK)

	second, err := ex.Buy(ctx, id, 75, money.FromInt(100), money.FromInt(20), "key-1")
	require.NoError(t, err)
	assert.Equal(t, first.Order.OrderID, second.Order.OrderID, "replay should return the identical prior order, not execute again")

	avail, _ := bal.Available(ctx)
	want := money.FromInt(100000).Sub(money.FromInt(100).MulInt(75).Add(money.FromInt(20)))
	assert.True(t, avail.Equal(want), "available balance must reflect exactly one debit, got %s want %s", avail, want)
}
