package engine

import (
	"context"
	"testing"
	"time"

	"github.com/efreitasn/basketexec/internal/domain"
	"github.com/shopspring/decimal"
	"pgregory.net/rapid"
)

var allStatuses = []domain.OrderStatus{
	domain.OrderStatusOpen,
	domain.OrderStatusUpdate,
	domain.OrderStatusComplete,
	domain.OrderStatusCancelled,
	domain.OrderStatusRejected,
	domain.OrderStatus("AMO REQ RECEIVED"),
}

// Any stream of broker pushes ending in at least one terminal status yields
// exactly one Handled emission, however many terminals or foreign updates
// it contains.
func TestProperty_ExactlyOnceOutcome(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		statuses := rapid.SliceOfN(rapid.SampledFrom(allStatuses), 0, 20).Draw(t, "statuses")
		terminal := rapid.SampledFrom([]domain.OrderStatus{
			domain.OrderStatusComplete,
			domain.OrderStatusCancelled,
			domain.OrderStatusRejected,
		}).Draw(t, "terminal")
		foreign := rapid.Bool().Draw(t, "foreign")

		b := newFakeBroker()
		rec := &outcomeRecorder{}
		deps := newTestDeps(b, rec)
		deps.Config.RetryInterval = time.Hour

		b.onPlace = func(id string) {
			for _, s := range statuses {
				deps.Dispatcher.Dispatch(update(id, s))
				if foreign {
					deps.Dispatcher.Dispatch(update("X"+id, s))
				}
			}
			deps.Dispatcher.Dispatch(update(id, terminal))
			deps.Dispatcher.Dispatch(update(id, domain.OrderStatusComplete))
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		out := NewOrderHandler(buyRequest(), deps).Run(ctx)

		if out.Kind != domain.OutcomeHandled {
			t.Fatalf("Kind = %s, want handled", out.Kind)
		}
		if got := len(rec.all()); got != 1 {
			t.Fatalf("listener called %d times, want 1", got)
		}
	})
}

// With no broker pushes at all, the handler still terminates through its own
// timer and emits once, never modifying more than the configured maximum.
func TestProperty_TimerDrivenTermination(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		maxAdj := rapid.IntRange(0, 4).Draw(t, "max_adjustments")
		k := rapid.IntRange(0, 6).Draw(t, "max_tick_multiple")

		b := newFakeBroker()
		rec := &outcomeRecorder{}
		deps := newTestDeps(b, rec)
		deps.Config.RetryInterval = time.Millisecond
		deps.Config.MaxPriceAdjustments = maxAdj
		deps.Config.MaxTickMultiple = k

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		req := buyRequest()
		out := NewOrderHandler(req, deps).Run(ctx)

		if out.Kind != domain.OutcomeHandled {
			t.Fatalf("Kind = %s, want handled", out.Kind)
		}
		prices := b.modifiedPrices()
		if len(prices) != maxAdj {
			t.Fatalf("modified %d times, want %d", len(prices), maxAdj)
		}
		hi := req.Price.Add(dec("0.05").Mul(decimal.NewFromInt(int64(k))))
		for _, p := range prices {
			if p.GreaterThan(hi) || p.LessThan(req.Price) {
				t.Fatalf("price %s outside [%s, %s]", p, req.Price, hi)
			}
		}
		if got := len(rec.all()); got != 1 {
			t.Fatalf("listener called %d times, want 1", got)
		}
	})
}
