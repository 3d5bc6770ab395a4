package broker

import (
	"context"
	"time"

	"github.com/efreitasn/basketexec/internal/domain"
	"github.com/efreitasn/basketexec/internal/engine"
	"github.com/shopspring/decimal"
)

// CallObserver records the result of one broker call.
type CallObserver interface {
	ObserveBrokerCall(op string, err error, seconds float64)
}

// Instrumented wraps a broker and reports every call to an observer.
type Instrumented struct {
	next engine.Broker
	obs  CallObserver
}

// NewInstrumented wraps next.
func NewInstrumented(next engine.Broker, obs CallObserver) *Instrumented {
	return &Instrumented{next: next, obs: obs}
}

func (i *Instrumented) observe(op string, start time.Time, err error) {
	i.obs.ObserveBrokerCall(op, err, time.Since(start).Seconds())
}

// PlaceOrder implements engine.Broker.
func (i *Instrumented) PlaceOrder(ctx context.Context, req domain.OrderRequest) (string, error) {
	start := time.Now()
	id, err := i.next.PlaceOrder(ctx, req)
	i.observe("place", start, err)
	return id, err
}

// ModifyOrderPrice implements engine.Broker.
func (i *Instrumented) ModifyOrderPrice(ctx context.Context, brokerOrderID string, price decimal.Decimal) (string, error) {
	start := time.Now()
	id, err := i.next.ModifyOrderPrice(ctx, brokerOrderID, price)
	i.observe("modify", start, err)
	return id, err
}

// CancelOrder implements engine.Broker.
func (i *Instrumented) CancelOrder(ctx context.Context, brokerOrderID string) (string, error) {
	start := time.Now()
	id, err := i.next.CancelOrder(ctx, brokerOrderID)
	i.observe("cancel", start, err)
	return id, err
}

// OrderTrades implements engine.Broker.
func (i *Instrumented) OrderTrades(ctx context.Context, brokerOrderID string) ([]domain.Trade, error) {
	start := time.Now()
	trades, err := i.next.OrderTrades(ctx, brokerOrderID)
	i.observe("trades", start, err)
	return trades, err
}
