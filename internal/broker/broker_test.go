package broker

import (
	"context"
	"testing"

	"github.com/shubhamtaywade82/dhan-scalper/internal/money"
	"github.com/shubhamtaywade82/dhan-scalper/internal/types"
)

type fakeLTP struct {
	price money.Money
	ok    bool
}

func (f fakeLTP) LTP(segment, securityID string) (money.Money, bool) { return f.price, f.ok }

func TestPaperFillsAtLTP(t *testing.T) {
	p := NewPaper(fakeLTP{price: money.FromInt(120), ok: true})
	res, err := p.BuyMarket(context.Background(), "NSE_FNO", "501", 75, money.FromInt(20))
	if err != nil || !res.OK {
		t.Fatalf("expected fill, got %+v err=%v", res, err)
	}
	if !res.FilledPrice.Equal(money.FromInt(120)) {
		t.Fatalf("filled price = %s, want 120", res.FilledPrice)
	}
}

func TestPaperInvalidPriceWhenLTPMissing(t *testing.T) {
	p := NewPaper(fakeLTP{ok: false})
	res, err := p.SellMarket(context.Background(), "NSE_FNO", "501", 75, money.FromInt(20))
	if err != nil {
		t.Fatal(err)
	}
	if res.OK || res.Error != types.ErrInvalidPrice {
		t.Fatalf("expected invalid_price rejection, got %+v", res)
	}
}

type flakyClient struct {
	failures int
	calls    int
}

func (f *flakyClient) PlaceMarketOrder(ctx context.Context, spec OrderSpec) (OrderResult, error) {
	f.calls++
	if f.calls <= f.failures {
		return OrderResult{}, types.NewError(types.ErrBrokerTransient, "timeout")
	}
	return OrderResult{OK: true, OrderID: "ord-1", FilledPrice: money.FromInt(100), FilledQty: spec.Quantity}, nil
}

func TestLiveRetriesTransientThenSucceeds(t *testing.T) {
	client := &flakyClient{failures: 1}
	l := NewLive(client, "test", RetryConfig{MaxAttempts: 3, BaseDelay: 0, MaxDelay: 0})
	res, err := l.BuyMarket(context.Background(), "NSE_FNO", "501", 75, money.FromInt(20))
	if err != nil || !res.OK {
		t.Fatalf("expected eventual success, got %+v err=%v", res, err)
	}
	if client.calls != 2 {
		t.Fatalf("expected 2 calls (1 failure + 1 success), got %d", client.calls)
	}
}

type permanentClient struct{ calls int }

func (p *permanentClient) PlaceMarketOrder(ctx context.Context, spec OrderSpec) (OrderResult, error) {
	p.calls++
	return OrderResult{}, types.NewError(types.ErrBrokerPermanent, "rejected by exchange")
}

func TestLivePermanentErrorFailsFastWithoutRetry(t *testing.T) {
	client := &permanentClient{}
	l := NewLive(client, "test", RetryConfig{MaxAttempts: 3, BaseDelay: 0, MaxDelay: 0})
	res, err := l.SellMarket(context.Background(), "NSE_FNO", "501", 75, money.FromInt(20))
	if err == nil || res.OK {
		t.Fatalf("expected failure surfaced, got %+v", res)
	}
	if client.calls != 1 {
		t.Fatalf("permanent error must not retry, got %d calls", client.calls)
	}
}
