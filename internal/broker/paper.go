package broker

import (
	"context"

	"github.com/google/uuid"
	"github.com/shubhamtaywade82/dhan-scalper/internal/money"
	"github.com/shubhamtaywade82/dhan-scalper/internal/types"
)

// LTPProvider is the narrow slice of ticks.Cache the paper broker needs.
type LTPProvider interface {
	LTP(segment, securityID string) (money.Money, bool)
}

// Paper fills every order at the last traded price, exactly like the
// teacher's PaperBroker fills a quote at GetNowPrice — no exchange round
// trip, no slippage model beyond what the caller already folded into fee.
type Paper struct {
	ltp LTPProvider
}

// NewPaper constructs a Paper broker backed by a tick cache.
func NewPaper(ltp LTPProvider) *Paper {
	return &Paper{ltp: ltp}
}

func (p *Paper) Name() string { return "paper" }

func (p *Paper) fill(ctx context.Context, segment, securityID string, qty int64) (OrderResult, error) {
	price, ok := p.ltp.LTP(segment, securityID)
	if !ok {
		return OrderResult{OK: false, Error: types.ErrInvalidPrice}, nil
	}
	return OrderResult{
		OK:          true,
		OrderID:     uuid.New().String(),
		FilledPrice: price,
		FilledQty:   qty,
	}, nil
}

func (p *Paper) BuyMarket(ctx context.Context, segment, securityID string, qty int64, fee money.Money) (OrderResult, error) {
	return p.fill(ctx, segment, securityID, qty)
}

func (p *Paper) SellMarket(ctx context.Context, segment, securityID string, qty int64, fee money.Money) (OrderResult, error) {
	return p.fill(ctx, segment, securityID, qty)
}

func (p *Paper) PlaceOrder(ctx context.Context, spec OrderSpec) (OrderResult, error) {
	if spec.Side == types.SideLong {
		return p.BuyMarket(ctx, spec.Segment, spec.SecurityID, spec.Quantity, spec.Fee)
	}
	return p.SellMarket(ctx, spec.Segment, spec.SecurityID, spec.Quantity, spec.Fee)
}
