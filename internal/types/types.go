// Package types holds the tagged records that cross component boundaries:
// Tick, Candle, Position, Order, SessionPnL, Signal, and Subscription. Every
// dynamic hash from the source system becomes one of these structs with a
// statically known field set, per the engine's re-architecture notes.
package types

import (
	"time"

	"github.com/shubhamtaywade82/dhan-scalper/internal/money"
)

// Side is the directional leg of a position or order.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Right is an option contract's call/put leg.
type Right string

const (
	RightCall Right = "C"
	RightPut  Right = "P"
)

// Tick is an immutable market data sample for one (segment, security_id).
type Tick struct {
	Segment        string
	SecurityID     string
	LTP            money.Money
	ATP            money.Money
	DayHigh        money.Money
	DayLow         money.Money
	Volume         int64
	ServerTime     time.Time
	ReceivedAt     time.Time
}

// Key identifies the (segment, security_id) pair a Tick or Position belongs to.
func (t Tick) Key() string { return t.Segment + ":" + t.SecurityID }

// Candle is one OHLCV sample of a CandleSeries.
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// CandleSeries is an ordered, append-only sequence of Candle for one
// instrument at a fixed interval. Reseeded from historical fetch on startup.
type CandleSeries struct {
	Instrument string
	Interval   time.Duration
	Candles    []Candle
}

// Append adds a new candle to the end of the series.
func (s *CandleSeries) Append(c Candle) { s.Candles = append(s.Candles, c) }

// Closes extracts the Close column, the shape indicator math consumes.
func (s *CandleSeries) Closes() []float64 {
	out := make([]float64, len(s.Candles))
	for i, c := range s.Candles {
		out[i] = c.Close
	}
	return out
}

// OrderStatus is the lifecycle stage of an Order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderFilled    OrderStatus = "filled"
	OrderCancelled OrderStatus = "cancelled"
	OrderRejected  OrderStatus = "rejected"
)

// Mode distinguishes paper simulation from live trading.
type Mode string

const (
	ModePaper Mode = "paper"
	ModeLive  Mode = "live"
)

// Order is an append-only record of an order placement and its fill.
type Order struct {
	OrderID        string
	SecurityID     string
	Segment        string
	Side           Side
	Quantity       int
	FilledQuantity int
	Price          money.Money
	FilledPrice    money.Money
	Fee            money.Money
	Status         OrderStatus
	CreatedAt      time.Time
	FilledAt       time.Time
	SessionID      string
	Mode           Mode
	PositionID     string
}

// PositionID identifies a Position by (segment, security_id, side).
type PositionID struct {
	Segment    string
	SecurityID string
	Side       Side
}

// String renders a stable key suitable for map indexing and store keys.
func (p PositionID) String() string {
	return p.Segment + ":" + p.SecurityID + ":" + string(p.Side)
}

// Position is the authoritative per-instrument position record.
type Position struct {
	ID             PositionID
	BuyQty         int
	BuyAvg         money.Money
	SellQty        int
	SellAvg        money.Money
	DayBuyQty      int
	DaySellQty     int
	NetQty         int
	RealizedPnL    money.Money
	UnrealizedPnL  money.Money
	CurrentPrice   money.Money
	EntryTimestamp time.Time
	PeakPrice      money.Money
	StopLoss       money.Money
	TakeProfit     money.Money
	TrailingStop   *money.Money
	BreakevenSet   bool
	OrderIDs       []string
	Version        int
	Underlying     string
	Right          Right
	Quarantined    bool
}

// IsOpen reports whether the position still has a non-zero net quantity.
func (p Position) IsOpen() bool { return p.NetQty != 0 }

// SignalDirection is the verdict produced by the IndicatorEngine.
type SignalDirection string

const (
	DirectionBullish SignalDirection = "bullish"
	DirectionBearish SignalDirection = "bearish"
	DirectionNone    SignalDirection = "none"
)

// Signal is the tagged verdict returned by IndicatorEngine.Evaluate.
type Signal struct {
	Direction SignalDirection
	Strength  float64
	ADX       float64
	Proceed   bool
	Reason    string
}

// RightFor maps a bullish/bearish signal to the option leg to buy.
func (s Signal) RightFor() Right {
	if s.Direction == DirectionBullish {
		return RightCall
	}
	return RightPut
}

// SubscriptionKind distinguishes a baseline (sticky) subscription from one
// opened for the lifetime of a position.
type SubscriptionKind string

const (
	SubscriptionBaseline SubscriptionKind = "baseline"
	SubscriptionPosition SubscriptionKind = "position"
)

// Subscription is one entry in WSManager's tracked subscription set.
type Subscription struct {
	Segment    string
	SecurityID string
	Kind       SubscriptionKind
}

// Key identifies the (segment, security_id) pair regardless of kind.
func (s Subscription) Key() string { return s.Segment + ":" + s.SecurityID }

// SessionPnL is the live running total of the trading session.
type SessionPnL struct {
	Realized         money.Money
	Unrealized       money.Money
	Fees             money.Money
	Total            money.Money
	StartTime        time.Time
	LastUpdate       time.Time
	TotalTrades      int
	WinningTrades    int
	LosingTrades     int
	MaxDrawdown      money.Money
	CurrentPositions int
}

// SessionState is the value SessionGuard.Check can return.
type SessionState string

const (
	SessionOK           SessionState = "ok"
	SessionMarketClosed SessionState = "market_closed"
	SessionDayLossLimit SessionState = "day_loss_limit"
	SessionFeedStale    SessionState = "feed_stale"
	SessionPanic        SessionState = "panic"
)

// ErrorKind is the taxonomy of recoverable/fatal failures per the error
// handling design: business-logic failures are typed values, never
// exceptions, and the Supervisor only ever recovers from programming bugs.
type ErrorKind string

const (
	ErrInsufficientBalance  ErrorKind = "insufficient_balance"
	ErrInsufficientPosition ErrorKind = "insufficient_position"
	ErrInvalidPrice         ErrorKind = "invalid_price"
	ErrStalePrice           ErrorKind = "stale_price"
	ErrMissingInstrument    ErrorKind = "missing_instrument"
	ErrBrokerTransient      ErrorKind = "broker_transient"
	ErrBrokerPermanent      ErrorKind = "broker_permanent"
	ErrStoreUnavailable     ErrorKind = "store_unavailable"
	ErrFeedStale            ErrorKind = "feed_stale"
	ErrDisconnected         ErrorKind = "disconnected"
	ErrPanic                ErrorKind = "panic"
)

// TypedError is a business-logic failure that the engine must be able to
// switch on by Kind without resorting to string matching or exceptions.
type TypedError struct {
	Kind ErrorKind
	Msg  string
}

func (e *TypedError) Error() string { return string(e.Kind) + ": " + e.Msg }

// NewError constructs a TypedError for the given kind.
func NewError(kind ErrorKind, msg string) *TypedError {
	return &TypedError{Kind: kind, Msg: msg}
}
