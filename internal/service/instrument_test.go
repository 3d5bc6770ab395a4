package service

import (
	"errors"
	"testing"

	"github.com/efreitasn/basketexec/internal/domain"
	"github.com/shopspring/decimal"
)

type quoteCall struct {
	symbol   string
	price    decimal.Decimal
	quantity int64
}

type quoterStub struct {
	calls []quoteCall
}

func (q *quoterStub) SetQuote(symbol string, price decimal.Decimal, quantity int64) {
	q.calls = append(q.calls, quoteCall{symbol, price, quantity})
}

func TestInstrumentService_Get(t *testing.T) {
	svc := NewInstrumentService(testInstruments(), nil)

	v, err := svc.Get("INFY")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v.TickSize.Equal(decimal.RequireFromString("0.05")) {
		t.Errorf("TickSize = %s, want 0.05", v.TickSize)
	}
	if v.LastPrice != nil || v.QuotedAt != nil {
		t.Error("expected no last price before any quote")
	}

	if _, err := svc.Get("WIPRO"); !errors.Is(err, domain.ErrInstrumentNotFound) {
		t.Errorf("Get(WIPRO) error = %v, want ErrInstrumentNotFound", err)
	}
}

func TestInstrumentService_List(t *testing.T) {
	svc := NewInstrumentService(testInstruments(), nil)

	list := svc.List()
	if len(list) != 2 {
		t.Fatalf("got %d instruments, want 2", len(list))
	}
	if list[0].Symbol != "INFY" || list[1].Symbol != "TCS" {
		t.Errorf("got %s, %s; want INFY, TCS", list[0].Symbol, list[1].Symbol)
	}
}

func TestInstrumentService_SetQuote(t *testing.T) {
	q := &quoterStub{}
	svc := NewInstrumentService(testInstruments(), q)

	v, err := svc.SetQuote("INFY", 1500.25, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.LastPrice == nil || !v.LastPrice.Equal(decimal.RequireFromString("1500.25")) {
		t.Errorf("LastPrice = %v, want 1500.25", v.LastPrice)
	}
	if len(q.calls) != 1 || q.calls[0].quantity != 100 || q.calls[0].symbol != "INFY" {
		t.Errorf("quoter calls = %+v", q.calls)
	}
}

func TestInstrumentService_SetQuoteErrors(t *testing.T) {
	tests := []struct {
		name     string
		symbol   string
		price    float64
		quantity int64
		message  string
	}{
		{"zero price", "INFY", 0, 0, "price must be greater than 0"},
		{"three decimals", "INFY", 1.001, 0, "price must have at most 2 decimal places"},
		{"negative quantity", "INFY", 10, -1, "quantity must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &quoterStub{}
			_, err := NewInstrumentService(testInstruments(), q).SetQuote(tt.symbol, tt.price, tt.quantity)
			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected *ValidationError, got %T: %v", err, err)
			}
			if ve.Message != tt.message {
				t.Errorf("got message %q, want %q", ve.Message, tt.message)
			}
			if len(q.calls) != 0 {
				t.Error("quoter called on invalid quote")
			}
		})
	}

	_, err := NewInstrumentService(testInstruments(), nil).SetQuote("WIPRO", 10, 0)
	if !errors.Is(err, domain.ErrInstrumentNotFound) {
		t.Errorf("got %v, want ErrInstrumentNotFound", err)
	}
}

func TestInstrumentService_OnTick(t *testing.T) {
	q := &quoterStub{}
	svc := NewInstrumentService(testInstruments(), q)

	svc.OnTick("TCS", decimal.RequireFromString("3200.5"))
	svc.OnTick("WIPRO", decimal.RequireFromString("400"))

	v, _ := svc.Get("TCS")
	if v.LastPrice == nil || !v.LastPrice.Equal(decimal.RequireFromString("3200.5")) {
		t.Errorf("LastPrice = %v, want 3200.5", v.LastPrice)
	}
	if len(q.calls) != 1 || q.calls[0].quantity != 0 {
		t.Errorf("quoter calls = %+v, want one unlimited quote", q.calls)
	}
}
