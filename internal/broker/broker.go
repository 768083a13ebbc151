// Package broker implements the Broker collaborator (C11): a uniform market
// order interface with Paper and Live implementations, per spec.md §4.11.
// The interface shape and the paper/live split follow the teacher's
// broker.go/broker_paper.go/broker_bridge.go: a small Broker interface, a
// zero-dependency in-memory paper implementation, and an HTTP-backed live
// implementation wrapped for resilience.
package broker

import (
	"context"

	"github.com/shubhamtaywade82/dhan-scalper/internal/money"
	"github.com/shubhamtaywade82/dhan-scalper/internal/types"
)

// OrderSpec is the unified order request passed to place_order.
type OrderSpec struct {
	Segment    string
	SecurityID string
	Side       types.Side
	Quantity   int64
	Fee        money.Money
}

// OrderResult is what every Broker operation returns.
type OrderResult struct {
	OK          bool
	OrderID     string
	FilledPrice money.Money
	FilledQty   int64
	Error       types.ErrorKind
}

// Broker is the minimal surface the trading loop needs to execute orders.
type Broker interface {
	Name() string
	BuyMarket(ctx context.Context, segment, securityID string, qty int64, fee money.Money) (OrderResult, error)
	SellMarket(ctx context.Context, segment, securityID string, qty int64, fee money.Money) (OrderResult, error)
	PlaceOrder(ctx context.Context, spec OrderSpec) (OrderResult, error)
}
