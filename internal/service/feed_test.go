package service

import (
	"errors"
	"sync"
	"testing"

	"github.com/efreitasn/basketexec/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type routerStub struct {
	mu      sync.Mutex
	known   map[string]bool
	updates []domain.OrderUpdate
}

func (r *routerStub) Dispatch(u domain.OrderUpdate) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
	return r.known[u.BrokerOrderID]
}

type feedObs struct {
	mu       sync.Mutex
	observed []string
}

func (o *feedObs) ObserveFeedUpdate(status domain.OrderStatus, routed bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	r := "orphan"
	if routed {
		r = "routed"
	}
	o.observed = append(o.observed, string(status)+"/"+r)
}

type tickRecorder struct {
	ticks map[string]decimal.Decimal
}

func (r *tickRecorder) OnTick(symbol string, price decimal.Decimal) {
	r.ticks[symbol] = price
}

func TestFeedService_RoutesAndObserves(t *testing.T) {
	router := &routerStub{known: map[string]bool{"B1": true}}
	obs := &feedObs{}
	svc := NewFeedService(router, nil, obs, discardLogger())

	svc.OnOrderUpdate(domain.OrderUpdate{BrokerOrderID: "B1", Status: domain.OrderStatusComplete})
	svc.Publish(domain.OrderUpdate{BrokerOrderID: "B9", Status: domain.OrderStatusOpen})

	require.Len(t, router.updates, 2)
	assert.Equal(t, []string{"COMPLETE/routed", "OPEN/orphan"}, obs.observed)
}

func TestFeedService_TicksForwarded(t *testing.T) {
	ticks := &tickRecorder{ticks: map[string]decimal.Decimal{}}
	svc := NewFeedService(&routerStub{}, ticks, &feedObs{}, discardLogger())

	svc.OnTick("INFY", decimal.RequireFromString("1500.5"))
	assert.True(t, ticks.ticks["INFY"].Equal(decimal.RequireFromString("1500.5")))

	// No tick sink configured.
	NewFeedService(&routerStub{}, nil, &feedObs{}, discardLogger()).OnTick("INFY", decimal.NewFromInt(1))
}

func TestFeedService_InjectValidates(t *testing.T) {
	router := &routerStub{}
	svc := NewFeedService(router, nil, &feedObs{}, discardLogger())

	tests := []struct {
		name    string
		update  domain.OrderUpdate
		message string
	}{
		{"missing order id", domain.OrderUpdate{Status: domain.OrderStatusOpen}, "order_id is required"},
		{"missing status", domain.OrderUpdate{BrokerOrderID: "B1"}, "status is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ve *domain.ValidationError
			err := svc.Inject(tt.update)
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.message, ve.Message)
		})
	}
	assert.Empty(t, router.updates)

	require.NoError(t, svc.Inject(domain.OrderUpdate{BrokerOrderID: "B1", Status: "TRIGGER PENDING"}))
	assert.Len(t, router.updates, 1)
}
