package domain

import (
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// InstrumentRegistry maps trading symbols to their tick size in a
// thread-safe manner. Order handlers only read from it while a basket runs.
type InstrumentRegistry struct {
	mu        sync.RWMutex
	tickSizes map[string]decimal.Decimal
}

// NewInstrumentRegistry creates an empty InstrumentRegistry.
func NewInstrumentRegistry() *InstrumentRegistry {
	return &InstrumentRegistry{
		tickSizes: make(map[string]decimal.Decimal),
	}
}

// Register sets the tick size of a symbol. Safe for concurrent use.
func (r *InstrumentRegistry) Register(symbol string, tickSize decimal.Decimal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tickSizes[symbol] = tickSize
}

// Exists returns true if the symbol has been registered. Safe for concurrent use.
func (r *InstrumentRegistry) Exists(symbol string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tickSizes[symbol]
	return ok
}

// TickSize returns the minimum price increment of a symbol, or
// ErrInstrumentNotFound.
func (r *InstrumentRegistry) TickSize(symbol string) (decimal.Decimal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tick, ok := r.tickSizes[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrInstrumentNotFound, symbol)
	}
	return tick, nil
}

// Len returns the number of registered instruments.
func (r *InstrumentRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tickSizes)
}

type instrumentFile struct {
	Instruments []struct {
		Symbol   string  `yaml:"symbol"`
		TickSize float64 `yaml:"tick_size"`
	} `yaml:"instruments"`
}

// LoadInstruments reads a YAML instrument list into the registry:
//
//	instruments:
//	  - symbol: INFY
//	    tick_size: 0.05
func (r *InstrumentRegistry) LoadInstruments(src io.Reader) error {
	var f instrumentFile
	if err := yaml.NewDecoder(src).Decode(&f); err != nil {
		return fmt.Errorf("decode instruments: %w", err)
	}
	for _, in := range f.Instruments {
		if in.Symbol == "" {
			return &ValidationError{Message: "instrument symbol is required"}
		}
		if in.TickSize <= 0 {
			return &ValidationError{Message: fmt.Sprintf("tick_size must be > 0 for symbol %s", in.Symbol)}
		}
		r.Register(in.Symbol, decimal.NewFromFloat(in.TickSize))
	}
	return nil
}

// Symbols returns the registered symbols in ascending order.
func (r *InstrumentRegistry) Symbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	symbols := make([]string, 0, len(r.tickSizes))
	for s := range r.tickSizes {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}
