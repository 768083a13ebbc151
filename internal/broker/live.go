package broker

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/sony/gobreaker"

	"github.com/shubhamtaywade82/dhan-scalper/internal/money"
	"github.com/shubhamtaywade82/dhan-scalper/internal/types"
)

// Client is the narrow surface a broker API transport must implement. A
// concrete implementation forwards to the exchange's order API (REST or
// otherwise) the way the teacher's broker_bridge.go forwards to its sidecar.
type Client interface {
	PlaceMarketOrder(ctx context.Context, spec OrderSpec) (OrderResult, error)
}

// RetryConfig bounds the jittered backoff used to retry transient broker
// errors, the same shape as the teacher's retry-once logic in step.go
// generalized into a configurable ceiling instead of one hardcoded attempt.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryConfig mirrors the teacher's single-retry-on-insufficient-funds
// behavior but widens it to a small bounded ladder.
var DefaultRetryConfig = RetryConfig{MaxAttempts: 3, BaseDelay: 200 * time.Millisecond, MaxDelay: 2 * time.Second}

// Live forwards orders to the broker API, waiting for acknowledgement and
// retrying transient failures with jittered backoff behind a circuit
// breaker so a wedged exchange endpoint doesn't cascade into every decision
// tick.
type Live struct {
	client Client
	cb     *gobreaker.CircuitBreaker
	retry  RetryConfig
}

// NewLive wires a Client behind a circuit breaker. name identifies the
// breaker in metrics/logs (the broker's Name()).
func NewLive(client Client, name string, retry RetryConfig) *Live {
	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
	}
	return &Live{client: client, cb: gobreaker.NewCircuitBreaker(st), retry: retry}
}

func (l *Live) Name() string { return "live" }

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var te *types.TypedError
	if errors.As(err, &te) {
		return te.Kind == types.ErrBrokerTransient
	}
	return true // unclassified transport errors are treated as retryable
}

func (l *Live) place(ctx context.Context, spec OrderSpec) (OrderResult, error) {
	var result OrderResult
	var lastErr error
	for attempt := 0; attempt < l.retry.MaxAttempts; attempt++ {
		v, err := l.cb.Execute(func() (interface{}, error) {
			return l.client.PlaceMarketOrder(ctx, spec)
		})
		if err == nil {
			result = v.(OrderResult)
			return result, nil
		}
		lastErr = err
		if !isTransient(err) {
			return OrderResult{OK: false, Error: types.ErrBrokerPermanent}, err
		}
		delay := time.Duration(math.Min(
			float64(l.retry.BaseDelay)*math.Pow(2, float64(attempt)),
			float64(l.retry.MaxDelay),
		))
		jitter := time.Duration(rand.Int63n(int64(delay) + 1))
		select {
		case <-ctx.Done():
			return OrderResult{OK: false, Error: types.ErrBrokerTransient}, ctx.Err()
		case <-time.After(delay/2 + jitter/2):
		}
	}
	return OrderResult{OK: false, Error: types.ErrBrokerTransient}, lastErr
}

func (l *Live) BuyMarket(ctx context.Context, segment, securityID string, qty int64, fee money.Money) (OrderResult, error) {
	return l.place(ctx, OrderSpec{Segment: segment, SecurityID: securityID, Side: types.SideLong, Quantity: qty, Fee: fee})
}

func (l *Live) SellMarket(ctx context.Context, segment, securityID string, qty int64, fee money.Money) (OrderResult, error) {
	return l.place(ctx, OrderSpec{Segment: segment, SecurityID: securityID, Side: types.SideShort, Quantity: qty, Fee: fee})
}

func (l *Live) PlaceOrder(ctx context.Context, spec OrderSpec) (OrderResult, error) {
	return l.place(ctx, spec)
}
