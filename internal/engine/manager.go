package engine

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/efreitasn/basketexec/internal/domain"
	"github.com/google/uuid"
)

// Ledger persists filled orders.
type Ledger interface {
	SaveTrade(ctx context.Context, entry domain.LedgerEntry) error
}

// BasketListener observes finished baskets. Implementations must not block.
type BasketListener interface {
	OnBasketCompleted(report *BasketReport)
}

// BasketReport is the result of one basket execution.
type BasketReport struct {
	BasketID   string
	Outcomes   []domain.Outcome // same order as the submitted requests
	Entries    []domain.LedgerEntry
	StartedAt  time.Time
	FinishedAt time.Time
}

// Counts returns the number of outcomes per kind.
func (r *BasketReport) Counts() map[domain.OutcomeKind]int {
	counts := make(map[domain.OutcomeKind]int, 3)
	for _, o := range r.Outcomes {
		counts[o.Kind]++
	}
	return counts
}

// Runner drives one order to its outcome.
type Runner interface {
	Run(ctx context.Context) domain.Outcome
}

// HandlerFactory builds the runner for one order of a basket.
type HandlerFactory func(req domain.OrderRequest) Runner

// NewHandlerFactory returns a factory producing OrderHandlers wired to deps.
func NewHandlerFactory(deps HandlerDeps) HandlerFactory {
	return func(req domain.OrderRequest) Runner {
		return NewOrderHandler(req, deps)
	}
}

// OrderManager runs one basket at a time. Every order of the basket gets its
// own handler; the ledger is written once all of them have settled.
type OrderManager struct {
	newHandler HandlerFactory
	dispatcher *Dispatcher
	ledger     Ledger
	listener   BasketListener // optional
	logger     *slog.Logger

	running atomic.Bool
	active  atomic.Int64

	mu     sync.Mutex
	basket map[string]domain.OrderRequest
}

// NewOrderManager creates an idle OrderManager.
func NewOrderManager(
	newHandler HandlerFactory,
	dispatcher *Dispatcher,
	ledger Ledger,
	listener BasketListener,
	logger *slog.Logger,
) *OrderManager {
	return &OrderManager{
		newHandler: newHandler,
		dispatcher: dispatcher,
		ledger:     ledger,
		listener:   listener,
		logger:     logger,
		basket:     make(map[string]domain.OrderRequest),
	}
}

// Running reports whether a basket is in flight.
func (m *OrderManager) Running() bool {
	return m.running.Load()
}

// ActiveHandlers returns the number of handlers that have not settled yet.
func (m *OrderManager) ActiveHandlers() int64 {
	return m.active.Load()
}

// InFlight returns the requests of the running basket ordered by ID, or nil
// when the manager is idle.
func (m *OrderManager) InFlight() []domain.OrderRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.basket) == 0 {
		return nil
	}
	reqs := make([]domain.OrderRequest, 0, len(m.basket))
	for _, r := range m.basket {
		reqs = append(reqs, r)
	}
	sort.Slice(reqs, func(i, j int) bool {
		a, _ := strconv.Atoi(reqs[i].ID)
		b, _ := strconv.Atoi(reqs[j].ID)
		return a < b
	})
	return reqs
}

// Execute runs the basket to completion and returns its report. Requests get
// their position in the basket as ID. If another basket is in flight the call
// returns domain.ErrBasketBusy without touching it.
func (m *OrderManager) Execute(ctx context.Context, requests []domain.OrderRequest) (*BasketReport, error) {
	if len(requests) == 0 {
		return nil, domain.ErrEmptyBasket
	}
	if !m.running.CompareAndSwap(false, true) {
		m.logger.Warn("basket already running, rejecting new basket",
			slog.Int("orders", len(requests)),
		)
		return nil, domain.ErrBasketBusy
	}
	defer func() {
		m.reset()
		m.running.Store(false)
	}()

	report := &BasketReport{
		BasketID:  uuid.New().String(),
		Outcomes:  make([]domain.Outcome, len(requests)),
		StartedAt: time.Now().UTC(),
	}
	log := m.logger.With(slog.String("basket_id", report.BasketID))
	log.Info("executing basket", slog.Int("orders", len(requests)))

	runners := make([]Runner, len(requests))
	m.mu.Lock()
	for i, req := range requests {
		req.ID = strconv.Itoa(i)
		m.basket[req.ID] = req
		runners[i] = m.newHandler(req)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for i, r := range runners {
		wg.Add(1)
		m.active.Add(1)
		go func(i int, r Runner) {
			defer wg.Done()
			defer m.active.Add(-1)
			report.Outcomes[i] = r.Run(ctx)
		}(i, r)
	}
	wg.Wait()

	// Ledger writes must land even if the caller has gone away.
	saveCtx := context.WithoutCancel(ctx)
	for _, out := range report.Outcomes {
		if !out.Fulfilled() || out.FilledQuantity <= 0 {
			continue
		}
		entry := domain.LedgerEntry{
			ID:            uuid.New().String(),
			BrokerOrderID: out.BrokerOrderID,
			Symbol:        out.Request.Symbol,
			Quantity:      out.FilledQuantity,
			AveragePrice:  out.AveragePrice,
			Side:          out.Request.Side,
			Tag:           out.Request.Tag,
			CreatedAt:     time.Now().UTC(),
		}
		if err := m.ledger.SaveTrade(saveCtx, entry); err != nil {
			log.Error("failed to save ledger entry",
				slog.String("broker_order_id", out.BrokerOrderID),
				slog.String("error", err.Error()),
			)
			continue
		}
		report.Entries = append(report.Entries, entry)
	}

	report.FinishedAt = time.Now().UTC()
	counts := report.Counts()
	log.Info("basket completed",
		slog.Int("handled", counts[domain.OutcomeHandled]),
		slog.Int("not_handled", counts[domain.OutcomeNotHandled]),
		slog.Int("failed", counts[domain.OutcomeFailed]),
		slog.Int("ledger_entries", len(report.Entries)),
	)
	if m.listener != nil {
		m.listener.OnBasketCompleted(report)
	}
	return report, nil
}

func (m *OrderManager) reset() {
	m.mu.Lock()
	m.basket = make(map[string]domain.OrderRequest)
	m.mu.Unlock()
	m.dispatcher.Reset()
}

// Listeners fans outcomes and basket reports out to several listeners.
type Listeners struct {
	Outcome []OutcomeListener
	Basket  []BasketListener
}

// OnOutcome implements OutcomeListener.
func (l Listeners) OnOutcome(out domain.Outcome) {
	for _, ol := range l.Outcome {
		ol.OnOutcome(out)
	}
}

// OnBasketCompleted implements BasketListener.
func (l Listeners) OnBasketCompleted(r *BasketReport) {
	for _, bl := range l.Basket {
		bl.OnBasketCompleted(r)
	}
}
