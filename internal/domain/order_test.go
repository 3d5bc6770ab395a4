package domain

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func validRequest() OrderRequest {
	return OrderRequest{
		ID:       "0",
		Symbol:   "INFY",
		Price:    decimal.NewFromInt(1500),
		Quantity: 10,
		Side:     SideBuy,
		Tag:      "covered-call",
	}
}

func TestOrderRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*OrderRequest)
		wantErr bool
	}{
		{"valid", func(r *OrderRequest) {}, false},
		{"valid sell", func(r *OrderRequest) { r.Side = SideSell }, false},
		{"derivative symbol", func(r *OrderRequest) { r.Symbol = "NIFTY24DEC24000CE" }, false},
		{"empty symbol", func(r *OrderRequest) { r.Symbol = "" }, true},
		{"lowercase symbol", func(r *OrderRequest) { r.Symbol = "infy" }, true},
		{"unknown side", func(r *OrderRequest) { r.Side = "HOLD" }, true},
		{"zero price", func(r *OrderRequest) { r.Price = decimal.Zero }, true},
		{"negative price", func(r *OrderRequest) { r.Price = decimal.NewFromInt(-1) }, true},
		{"zero quantity", func(r *OrderRequest) { r.Quantity = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			err := req.Validate()
			if tt.wantErr {
				var ve *ValidationError
				if !errors.As(err, &ve) {
					t.Errorf("Validate() = %v, want *ValidationError", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() unexpected error: %v", err)
			}
		})
	}
}

func TestOrderStatus_Classification(t *testing.T) {
	tests := []struct {
		status   OrderStatus
		known    bool
		terminal bool
	}{
		{OrderStatusOpen, true, false},
		{OrderStatusUpdate, true, false},
		{OrderStatusComplete, true, true},
		{OrderStatusCancelled, true, true},
		{OrderStatusRejected, true, true},
		{"TRIGGER PENDING", false, false},
		{"", false, false},
	}
	for _, tt := range tests {
		if got := tt.status.Known(); got != tt.known {
			t.Errorf("%q.Known() = %v, want %v", tt.status, got, tt.known)
		}
		if got := tt.status.Terminal(); got != tt.terminal {
			t.Errorf("%q.Terminal() = %v, want %v", tt.status, got, tt.terminal)
		}
	}
}

func TestOutcome_Fulfilled(t *testing.T) {
	if (Outcome{Kind: OutcomeFailed}).Fulfilled() {
		t.Error("failed outcome should not be fulfilled")
	}
	if !(Outcome{Kind: OutcomeHandled}).Fulfilled() {
		t.Error("handled outcome should be fulfilled")
	}
	if !(Outcome{Kind: OutcomeNotHandled}).Fulfilled() {
		t.Error("not handled outcome should be fulfilled")
	}
	if got := OutcomeNotHandled.Event(); got != "order.not_handled" {
		t.Errorf("Event() = %q, want order.not_handled", got)
	}
}
