// Package pricing decides the next limit price of an order that did not
// fill within its monitoring interval.
package pricing

import (
	"context"

	"github.com/efreitasn/basketexec/internal/domain"
	"github.com/shopspring/decimal"
)

// Policy proposes the next price for an order given the last price tried.
// Implementations stay unbounded; the order handler clamps the result.
type Policy interface {
	NextPrice(ctx context.Context, req domain.OrderRequest, lastPrice decimal.Decimal) (decimal.Decimal, error)
}

// TickSizer looks up the minimum price increment of a symbol.
type TickSizer interface {
	TickSize(symbol string) (decimal.Decimal, error)
}

// AdjustByTick moves the price one tick towards the other side of the book:
// up for a buy, down for a sell.
type AdjustByTick struct {
	ticks TickSizer
}

// NewAdjustByTick creates an AdjustByTick policy backed by ticks.
func NewAdjustByTick(ticks TickSizer) *AdjustByTick {
	return &AdjustByTick{ticks: ticks}
}

// NextPrice implements Policy.
func (p *AdjustByTick) NextPrice(_ context.Context, req domain.OrderRequest, lastPrice decimal.Decimal) (decimal.Decimal, error) {
	tick, err := p.ticks.TickSize(req.Symbol)
	if err != nil {
		return decimal.Zero, err
	}
	if req.Side == domain.SideBuy {
		return lastPrice.Add(tick), nil
	}
	return lastPrice.Sub(tick), nil
}

// Clamp bounds price to [original - k·tick, original + k·tick].
func Clamp(price, original, tick decimal.Decimal, k int) decimal.Decimal {
	band := tick.Mul(decimal.NewFromInt(int64(k)))
	lo := original.Sub(band)
	hi := original.Add(band)
	if price.LessThan(lo) {
		return lo
	}
	if price.GreaterThan(hi) {
		return hi
	}
	return price
}
