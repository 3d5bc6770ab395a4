package broker

import (
	"context"
	"errors"
	"testing"

	"github.com/efreitasn/basketexec/internal/domain"
)

type callLog struct {
	ops  []string
	errs []error
}

func (c *callLog) ObserveBrokerCall(op string, err error, _ float64) {
	c.ops = append(c.ops, op)
	c.errs = append(c.errs, err)
}

func TestInstrumented_ObservesEveryCall(t *testing.T) {
	p, _ := newTestPaper()
	obs := &callLog{}
	b := NewInstrumented(p, obs)
	ctx := context.Background()

	id, err := b.PlaceOrder(ctx, infyBuy("100", 1))
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	b.ModifyOrderPrice(ctx, id, dec("100.05"))
	b.OrderTrades(ctx, id)
	b.CancelOrder(ctx, id)
	_, err = b.CancelOrder(ctx, id)

	want := []string{"place", "modify", "trades", "cancel", "cancel"}
	if len(obs.ops) != len(want) {
		t.Fatalf("observed %v, want %v", obs.ops, want)
	}
	for i := range want {
		if obs.ops[i] != want[i] {
			t.Errorf("op %d = %s, want %s", i, obs.ops[i], want[i])
		}
	}
	if !errors.Is(obs.errs[4], domain.ErrOrderNotOpen) || !errors.Is(err, domain.ErrOrderNotOpen) {
		t.Errorf("second cancel error = %v, want ErrOrderNotOpen observed and returned", obs.errs[4])
	}
	if obs.errs[0] != nil {
		t.Errorf("place error observed = %v, want nil", obs.errs[0])
	}
}
