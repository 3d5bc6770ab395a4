package service

import (
	"sync"
	"time"

	"github.com/efreitasn/basketexec/internal/domain"
	"github.com/shopspring/decimal"
)

// Quoter accepts reference prices, e.g. the paper broker.
type Quoter interface {
	SetQuote(symbol string, price decimal.Decimal, quantity int64)
}

// InstrumentView is the response for GET /instruments/{symbol}.
type InstrumentView struct {
	Symbol    string
	TickSize  decimal.Decimal
	LastPrice *decimal.Decimal // nil until the first tick or quote
	QuotedAt  *time.Time
}

type lastQuote struct {
	price decimal.Decimal
	at    time.Time
}

// InstrumentService serves instrument metadata and tracks the last price
// seen per symbol.
type InstrumentService struct {
	instruments *domain.InstrumentRegistry
	quoter      Quoter // optional

	mu     sync.RWMutex
	quotes map[string]lastQuote
}

// NewInstrumentService creates a new InstrumentService with the given dependencies.
func NewInstrumentService(instruments *domain.InstrumentRegistry, quoter Quoter) *InstrumentService {
	return &InstrumentService{
		instruments: instruments,
		quoter:      quoter,
		quotes:      make(map[string]lastQuote),
	}
}

// List returns every registered instrument ordered by symbol.
func (s *InstrumentService) List() []*InstrumentView {
	symbols := s.instruments.Symbols()
	result := make([]*InstrumentView, 0, len(symbols))
	for _, sym := range symbols {
		if v, err := s.Get(sym); err == nil {
			result = append(result, v)
		}
	}
	return result
}

// Get returns the instrument's tick size and last price.
func (s *InstrumentService) Get(symbol string) (*InstrumentView, error) {
	tick, err := s.instruments.TickSize(symbol)
	if err != nil {
		return nil, err
	}

	v := &InstrumentView{Symbol: symbol, TickSize: tick}

	s.mu.RLock()
	q, ok := s.quotes[symbol]
	s.mu.RUnlock()
	if ok {
		price, at := q.price, q.at
		v.LastPrice = &price
		v.QuotedAt = &at
	}
	return v, nil
}

// SetQuote sets the reference price of a symbol with quantity shares of
// liquidity (0 means unlimited) and forwards it to the quoter.
func (s *InstrumentService) SetQuote(symbol string, price float64, quantity int64) (*InstrumentView, error) {
	if !s.instruments.Exists(symbol) {
		return nil, domain.ErrInstrumentNotFound
	}
	if price <= 0 {
		return nil, &domain.ValidationError{Message: "price must be greater than 0"}
	}
	p, err := domain.PriceFromFloat(price)
	if err != nil {
		return nil, &domain.ValidationError{Message: "price must have at most 2 decimal places"}
	}
	if quantity < 0 {
		return nil, &domain.ValidationError{Message: "quantity must not be negative"}
	}

	s.record(symbol, p)
	if s.quoter != nil {
		s.quoter.SetQuote(symbol, p, quantity)
	}
	return s.Get(symbol)
}

// OnTick implements TickSink. Ticks for unregistered symbols are ignored.
func (s *InstrumentService) OnTick(symbol string, lastPrice decimal.Decimal) {
	if !s.instruments.Exists(symbol) {
		return
	}
	s.record(symbol, lastPrice)
	if s.quoter != nil {
		s.quoter.SetQuote(symbol, lastPrice, 0)
	}
}

func (s *InstrumentService) record(symbol string, price decimal.Decimal) {
	s.mu.Lock()
	s.quotes[symbol] = lastQuote{price: price, at: time.Now().UTC()}
	s.mu.Unlock()
}
