// Package broker provides an in-process paper broker and instrumentation
// for any broker implementation.
package broker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/efreitasn/basketexec/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Publisher receives the order updates the broker pushes.
type Publisher interface {
	Publish(update domain.OrderUpdate)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(update domain.OrderUpdate)

// Publish implements Publisher.
func (f PublisherFunc) Publish(u domain.OrderUpdate) { f(u) }

// Fanout publishes every update to each publisher in order.
type Fanout []Publisher

// Publish implements Publisher.
func (f Fanout) Publish(u domain.OrderUpdate) {
	for _, p := range f {
		p.Publish(u)
	}
}

// PaperConfig tunes the simulation.
type PaperConfig struct {
	// FillDelay postpones every push, like a broker's postback latency.
	FillDelay time.Duration
	// Instruments, when set, rejects orders for unknown symbols.
	Instruments *domain.InstrumentRegistry
}

type quote struct {
	price     decimal.Decimal
	available int64
	unlimited bool
}

type paperOrder struct {
	id        string
	req       domain.OrderRequest
	price     decimal.Decimal
	filled    int64
	cancelled int64
	status    domain.OrderStatus
}

func (o *paperOrder) open() bool {
	return !o.status.Terminal()
}

func (o *paperOrder) remaining() int64 {
	return o.req.Quantity - o.filled - o.cancelled
}

// PaperBroker simulates a broker against per-symbol reference quotes. A limit
// order fills at the quote price once it crosses the quote, up to the
// quote's remaining liquidity; the rest rests on the book until a later
// quote or modification makes it marketable.
type PaperBroker struct {
	mu     sync.Mutex
	orders map[string]*paperOrder
	trades map[string][]domain.Trade
	books  map[string]*book
	quotes map[string]*quote
	seq    uint64

	publisher Publisher
	cfg       PaperConfig
	logger    *slog.Logger
}

// NewPaperBroker creates a paper broker pushing updates to publisher.
func NewPaperBroker(publisher Publisher, cfg PaperConfig, logger *slog.Logger) *PaperBroker {
	return &PaperBroker{
		orders:    make(map[string]*paperOrder),
		trades:    make(map[string][]domain.Trade),
		books:     make(map[string]*book),
		quotes:    make(map[string]*quote),
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

// SetQuote sets the reference price of symbol with quantity shares of
// liquidity (quantity <= 0 means unlimited) and fills resting orders that
// now cross it.
func (p *PaperBroker) SetQuote(symbol string, price decimal.Decimal, quantity int64) {
	p.mu.Lock()
	p.quotes[symbol] = &quote{price: price, available: quantity, unlimited: quantity <= 0}

	var updates []domain.OrderUpdate
	if b, ok := p.books[symbol]; ok {
		for _, id := range b.crossing(price) {
			updates = append(updates, p.match(p.orders[id])...)
		}
	}
	p.mu.Unlock()

	p.emit(updates)
}

// PlaceOrder implements engine.Broker.
func (p *PaperBroker) PlaceOrder(ctx context.Context, req domain.OrderRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := req.Validate(); err != nil {
		return "", err
	}

	p.mu.Lock()
	o := &paperOrder{
		id:     uuid.New().String(),
		req:    req,
		price:  req.Price,
		status: domain.OrderStatusOpen,
	}
	p.orders[o.id] = o

	var updates []domain.OrderUpdate
	if p.cfg.Instruments != nil && !p.cfg.Instruments.Exists(req.Symbol) {
		o.status = domain.OrderStatusRejected
		updates = append(updates, p.snapshot(o))
	} else {
		updates = append(updates, p.snapshot(o))
		p.rest(o)
		updates = append(updates, p.match(o)...)
	}
	p.mu.Unlock()

	p.logger.Info("paper order placed",
		slog.String("broker_order_id", o.id),
		slog.String("symbol", req.Symbol),
		slog.String("side", string(req.Side)),
		slog.String("price", req.Price.String()),
		slog.Int64("quantity", req.Quantity),
	)
	p.emit(updates)
	return o.id, nil
}

// ModifyOrderPrice implements engine.Broker.
func (p *PaperBroker) ModifyOrderPrice(ctx context.Context, brokerOrderID string, price decimal.Decimal) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !price.IsPositive() {
		return "", &domain.ValidationError{Message: "price must be greater than 0"}
	}

	p.mu.Lock()
	o, err := p.openOrder(brokerOrderID)
	if err != nil {
		p.mu.Unlock()
		return "", err
	}
	p.books[o.req.Symbol].remove(o.id)
	o.price = price
	p.rest(o)

	u := p.snapshot(o)
	u.Status = domain.OrderStatusUpdate
	updates := append([]domain.OrderUpdate{u}, p.match(o)...)
	p.mu.Unlock()

	p.emit(updates)
	return brokerOrderID, nil
}

// CancelOrder implements engine.Broker.
func (p *PaperBroker) CancelOrder(ctx context.Context, brokerOrderID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p.mu.Lock()
	o, err := p.openOrder(brokerOrderID)
	if err != nil {
		p.mu.Unlock()
		return "", err
	}
	p.books[o.req.Symbol].remove(o.id)
	o.cancelled = o.remaining()
	o.status = domain.OrderStatusCancelled
	u := p.snapshot(o)
	p.mu.Unlock()

	p.emit([]domain.OrderUpdate{u})
	return brokerOrderID, nil
}

// OrderTrades implements engine.Broker.
func (p *PaperBroker) OrderTrades(ctx context.Context, brokerOrderID string) ([]domain.Trade, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.orders[brokerOrderID]; !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, brokerOrderID)
	}
	trades := p.trades[brokerOrderID]
	out := make([]domain.Trade, len(trades))
	copy(out, trades)
	return out, nil
}

// Order returns the current state of a paper order as an update snapshot.
func (p *PaperBroker) Order(brokerOrderID string) (domain.OrderUpdate, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.orders[brokerOrderID]
	if !ok {
		return domain.OrderUpdate{}, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, brokerOrderID)
	}
	return p.snapshot(o), nil
}

// RestingCount returns the number of open orders on symbol's book.
func (p *PaperBroker) RestingCount(symbol string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if b, ok := p.books[symbol]; ok {
		return b.len()
	}
	return 0
}

// openOrder must be called with p.mu held.
func (p *PaperBroker) openOrder(id string) (*paperOrder, error) {
	o, ok := p.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, id)
	}
	if !o.open() {
		return nil, fmt.Errorf("%w: %s is %s", domain.ErrOrderNotOpen, id, o.status)
	}
	return o, nil
}

// rest puts o on its symbol's book. Must be called with p.mu held.
func (p *PaperBroker) rest(o *paperOrder) {
	b, ok := p.books[o.req.Symbol]
	if !ok {
		b = newBook()
		p.books[o.req.Symbol] = b
	}
	p.seq++
	b.insert(o.req.Side, bookEntry{Price: o.price, Seq: p.seq, OrderID: o.id})
}

// match fills o against its symbol's quote and returns the resulting
// updates. Must be called with p.mu held.
func (p *PaperBroker) match(o *paperOrder) []domain.OrderUpdate {
	q, ok := p.quotes[o.req.Symbol]
	if !ok || !o.open() {
		return nil
	}
	crosses := o.price.GreaterThanOrEqual(q.price)
	if o.req.Side == domain.SideSell {
		crosses = o.price.LessThanOrEqual(q.price)
	}
	if !crosses {
		return nil
	}

	qty := o.remaining()
	if !q.unlimited {
		qty = min(qty, q.available)
		q.available -= qty
	}
	if qty <= 0 {
		return nil
	}

	o.filled += qty
	p.trades[o.id] = append(p.trades[o.id], domain.Trade{
		BrokerOrderID: o.id,
		TradeID:       uuid.New().String(),
		Quantity:      qty,
		AveragePrice:  q.price,
	})

	if o.remaining() > 0 {
		u := p.snapshot(o)
		u.Status = domain.OrderStatusUpdate
		return []domain.OrderUpdate{u}
	}
	o.status = domain.OrderStatusComplete
	p.books[o.req.Symbol].remove(o.id)
	return []domain.OrderUpdate{p.snapshot(o)}
}

// snapshot must be called with p.mu held.
func (p *PaperBroker) snapshot(o *paperOrder) domain.OrderUpdate {
	u := domain.OrderUpdate{
		BrokerOrderID:     o.id,
		Status:            o.status,
		Symbol:            o.req.Symbol,
		Side:              o.req.Side,
		Quantity:          o.req.Quantity,
		PendingQuantity:   o.remaining(),
		FilledQuantity:    o.filled,
		CancelledQuantity: o.cancelled,
		Price:             o.price,
		AveragePrice:      decimal.Zero,
		Tag:               o.req.Tag,
	}
	if o.status == domain.OrderStatusComplete {
		u.AveragePrice = domain.SummarizeFills(p.trades[o.id]).AveragePrice
	}
	if o.status.Terminal() {
		u.PendingQuantity = 0
	}
	return u
}

func (p *PaperBroker) emit(updates []domain.OrderUpdate) {
	if len(updates) == 0 || p.publisher == nil {
		return
	}
	if p.cfg.FillDelay <= 0 {
		for _, u := range updates {
			p.publisher.Publish(u)
		}
		return
	}
	time.AfterFunc(p.cfg.FillDelay, func() {
		for _, u := range updates {
			p.publisher.Publish(u)
		}
	})
}
