package domain

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
)

func TestInstrumentRegistry_RegisterAndTickSize(t *testing.T) {
	r := NewInstrumentRegistry()

	if r.Exists("INFY") {
		t.Error("Exists(INFY) = true before registration")
	}

	r.Register("INFY", decimal.RequireFromString("0.05"))

	if !r.Exists("INFY") {
		t.Error("Exists(INFY) = false after registration")
	}
	tick, err := r.TickSize("INFY")
	if err != nil {
		t.Fatalf("TickSize(INFY) unexpected error: %v", err)
	}
	if !tick.Equal(decimal.RequireFromString("0.05")) {
		t.Errorf("TickSize(INFY) = %s, want 0.05", tick)
	}

	_, err = r.TickSize("TCS")
	if !errors.Is(err, ErrInstrumentNotFound) {
		t.Errorf("TickSize(TCS) error = %v, want ErrInstrumentNotFound", err)
	}
}

func TestInstrumentRegistry_LoadInstruments(t *testing.T) {
	src := `
instruments:
  - symbol: INFY
    tick_size: 0.05
  - symbol: NIFTY24DEC24000CE
    tick_size: 0.1
`
	r := NewInstrumentRegistry()
	if err := r.LoadInstruments(strings.NewReader(src)); err != nil {
		t.Fatalf("LoadInstruments unexpected error: %v", err)
	}
	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}
	tick, _ := r.TickSize("NIFTY24DEC24000CE")
	if !tick.Equal(decimal.RequireFromString("0.1")) {
		t.Errorf("TickSize = %s, want 0.1", tick)
	}
}

func TestInstrumentRegistry_LoadInstruments_Invalid(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"missing symbol", "instruments:\n  - tick_size: 0.05\n"},
		{"zero tick", "instruments:\n  - symbol: INFY\n    tick_size: 0\n"},
		{"malformed yaml", "instruments: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewInstrumentRegistry()
			if err := r.LoadInstruments(strings.NewReader(tt.src)); err == nil {
				t.Error("LoadInstruments expected error, got nil")
			}
		})
	}
}

func TestInstrumentRegistry_ConcurrentAccess(t *testing.T) {
	r := NewInstrumentRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Register("SYM", decimal.RequireFromString("0.05"))
		}()
	}
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = r.TickSize("SYM")
		}()
	}

	wg.Wait()

	if !r.Exists("SYM") {
		t.Error("Exists(SYM) = false after concurrent registration")
	}
}

func TestInstrumentRegistry_SymbolsSorted(t *testing.T) {
	r := NewInstrumentRegistry()
	for _, s := range []string{"TCS", "INFY", "HDFCBANK"} {
		r.Register(s, decimal.RequireFromString("0.05"))
	}

	got := strings.Join(r.Symbols(), ",")
	if got != "HDFCBANK,INFY,TCS" {
		t.Errorf("Symbols() = %s, want HDFCBANK,INFY,TCS", got)
	}
}
