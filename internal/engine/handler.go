package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/efreitasn/basketexec/internal/domain"
	"github.com/efreitasn/basketexec/internal/pricing"
	"github.com/efreitasn/basketexec/internal/retry"
	"github.com/shopspring/decimal"
)

// Broker is the port to the remote brokerage. Every call may fail and is
// always made through the retry helper.
type Broker interface {
	PlaceOrder(ctx context.Context, req domain.OrderRequest) (string, error)
	ModifyOrderPrice(ctx context.Context, brokerOrderID string, price decimal.Decimal) (string, error)
	CancelOrder(ctx context.Context, brokerOrderID string) (string, error)
	OrderTrades(ctx context.Context, brokerOrderID string) ([]domain.Trade, error)
}

// OutcomeListener observes terminal outcomes. Implementations must not block.
type OutcomeListener interface {
	OnOutcome(out domain.Outcome)
}

// State is the lifecycle position of an order handler.
type State int32

const (
	StateInitializing State = iota
	StateMonitoring
	StatePriceAdjusting
	StateCancelling
	StateFailed
	StateHandled
	StateNotHandled
)

var stateNames = map[State]string{
	StateInitializing:   "initializing",
	StateMonitoring:     "monitoring",
	StatePriceAdjusting: "price_adjusting",
	StateCancelling:     "cancelling",
	StateFailed:         "failed",
	StateHandled:        "handled",
	StateNotHandled:     "not_handled",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateFailed || s == StateHandled || s == StateNotHandled
}

func terminalState(kind domain.OutcomeKind) State {
	switch kind {
	case domain.OutcomeFailed:
		return StateFailed
	case domain.OutcomeHandled:
		return StateHandled
	default:
		return StateNotHandled
	}
}

// HandlerConfig holds the management constants of an order handler.
type HandlerConfig struct {
	RetryInterval       time.Duration // period between management passes
	MaxPriceAdjustments int
	MaxTickMultiple     int // max deviation from the requested price, in ticks
	Retry               retry.Policy
}

// DefaultHandlerConfig returns a 15s interval, 3 adjustments, a 5 tick band
// and the default retry policy.
func DefaultHandlerConfig() HandlerConfig {
	return HandlerConfig{
		RetryInterval:       15 * time.Second,
		MaxPriceAdjustments: 3,
		MaxTickMultiple:     5,
		Retry:               retry.DefaultPolicy(),
	}
}

// HandlerDeps are the collaborators shared by every handler of a process.
type HandlerDeps struct {
	Config     HandlerConfig
	Broker     Broker
	Policy     pricing.Policy
	Ticks      pricing.TickSizer
	Dispatcher *Dispatcher
	Listener   OutcomeListener // optional
	Logger     *slog.Logger
}

// OrderHandler drives one order from placement to a terminal outcome.
//
// All lifecycle state is owned by the goroutine running Run: the management
// timer and the inbound updates are both consumed from its select loop, so
// whichever of them the loop observes first decides the outcome and the
// other finds a terminal state and does nothing.
type OrderHandler struct {
	req  domain.OrderRequest
	deps HandlerDeps
	log  *slog.Logger

	// inbox, written by the dispatcher
	mu     sync.Mutex
	inbox  []domain.OrderUpdate
	notify chan struct{}

	state atomic.Int32

	// owned by the Run goroutine
	brokerOrderID     string
	lastPrice         decimal.Decimal
	priceAdjustments  int
	lastAdjustmentAt  time.Time
	filledQuantity    int64
	cancelledQuantity int64
	rejectedQuantity  int64
	lastAveragePrice  decimal.Decimal
	timer             *time.Timer
	outcome           domain.Outcome
}

// NewOrderHandler creates a handler for req in the Initializing state.
func NewOrderHandler(req domain.OrderRequest, deps HandlerDeps) *OrderHandler {
	return &OrderHandler{
		req:  req,
		deps: deps,
		log: deps.Logger.With(
			slog.String("order_id", req.ID),
			slog.String("symbol", req.Symbol),
		),
		notify:           make(chan struct{}, 1),
		lastPrice:        req.Price,
		lastAveragePrice: decimal.Zero,
	}
}

// State returns the current lifecycle state. Safe for concurrent use.
func (h *OrderHandler) State() State {
	return State(h.state.Load())
}

// Deliver queues a broker update for the Run loop. It never blocks.
func (h *OrderHandler) Deliver(u domain.OrderUpdate) {
	h.mu.Lock()
	h.inbox = append(h.inbox, u)
	h.mu.Unlock()

	select {
	case h.notify <- struct{}{}:
	default:
	}
}

// Run places the order and manages it until a terminal outcome, which it
// returns. The outcome is also reported to the listener exactly once.
func (h *OrderHandler) Run(ctx context.Context) domain.Outcome {
	h.log.Info("executing order",
		slog.String("side", string(h.req.Side)),
		slog.String("price", h.req.Price.String()),
		slog.Int64("quantity", h.req.Quantity),
	)

	// The timer starts before placement so the order is reviewed even if
	// the broker never pushes an update.
	h.startTimer()

	id, err := retry.Do(ctx, func(ctx context.Context) (string, error) {
		return h.deps.Broker.PlaceOrder(ctx, h.req)
	}, retry.WithPolicy(h.deps.Config.Retry))
	if err != nil {
		h.log.Error("failed to place order", slog.String("error", err.Error()))
		h.stopTimer()
		h.finish(ctx, domain.OutcomeFailed)
		return h.outcome
	}

	h.brokerOrderID = id
	h.log = h.log.With(slog.String("broker_order_id", id))
	h.setState(StateMonitoring)
	h.log.Info("order placed")

	h.deps.Dispatcher.Subscribe(id, h)
	defer h.deps.Dispatcher.Unsubscribe(id)

	for !h.State().Terminal() {
		select {
		case <-ctx.Done():
			h.log.Warn("context cancelled while order open", slog.String("error", ctx.Err().Error()))
			h.stopTimer()
			h.finish(ctx, domain.OutcomeNotHandled)
		case <-h.timerC():
			h.timer = nil
			h.manageOrder(ctx)
		case <-h.notify:
			h.processInbox(ctx)
		}
	}
	return h.outcome
}

// manageOrder runs when the order is still open after RetryInterval. It
// steps the price while adjustments remain, then cancels.
func (h *OrderHandler) manageOrder(ctx context.Context) {
	h.log.Info("order not completed yet, managing",
		slog.Duration("interval", h.deps.Config.RetryInterval),
		slog.Int("price_adjustments", h.priceAdjustments),
	)

	if h.priceAdjustments < h.deps.Config.MaxPriceAdjustments {
		h.setState(StatePriceAdjusting)
		price, err := retry.Do(ctx, h.modifyOrder, retry.WithPolicy(h.deps.Config.Retry))
		if err != nil {
			h.log.Warn("failed to modify order price", slog.String("error", err.Error()))
			h.giveUp(ctx)
			return
		}
		h.lastPrice = price
		h.priceAdjustments++
		h.lastAdjustmentAt = time.Now()
		h.setState(StateMonitoring)
		h.startTimer()
		h.log.Info("order price adjusted",
			slog.String("price", price.String()),
			slog.Int("price_adjustments", h.priceAdjustments),
		)
		return
	}

	h.setState(StateCancelling)
	_, err := retry.Do(ctx, func(ctx context.Context) (string, error) {
		return h.deps.Broker.CancelOrder(ctx, h.brokerOrderID)
	}, retry.WithPolicy(h.deps.Config.Retry))
	if err != nil {
		h.log.Warn("failed to cancel order", slog.String("error", err.Error()))
		h.giveUp(ctx)
		return
	}
	h.stopTimer()
	h.finish(ctx, domain.OutcomeHandled)
}

// modifyOrder submits the next clamped price and returns it.
func (h *OrderHandler) modifyOrder(ctx context.Context) (decimal.Decimal, error) {
	next, err := h.deps.Policy.NextPrice(ctx, h.req, h.lastPrice)
	if err != nil {
		return decimal.Zero, err
	}
	tick, err := h.deps.Ticks.TickSize(h.req.Symbol)
	if err != nil {
		return decimal.Zero, err
	}
	price := pricing.Clamp(next, h.req.Price, tick, h.deps.Config.MaxTickMultiple)

	if _, err := h.deps.Broker.ModifyOrderPrice(ctx, h.brokerOrderID, price); err != nil {
		return decimal.Zero, err
	}
	return price, nil
}

// giveUp ends a failed management pass. Updates that queued up while the
// broker call was retrying are applied first, so a broker-confirmed terminal
// state wins over NotHandled.
func (h *OrderHandler) giveUp(ctx context.Context) {
	h.stopTimer()
	h.processInbox(ctx)
	h.finish(ctx, domain.OutcomeNotHandled)
}

func (h *OrderHandler) processInbox(ctx context.Context) {
	h.mu.Lock()
	pending := h.inbox
	h.inbox = nil
	h.mu.Unlock()

	for _, u := range pending {
		if h.State().Terminal() {
			return
		}
		h.onUpdate(ctx, u)
	}
}

func (h *OrderHandler) onUpdate(ctx context.Context, u domain.OrderUpdate) {
	if u.BrokerOrderID != h.brokerOrderID {
		return
	}

	switch u.Status {
	case domain.OrderStatusComplete:
		h.filledQuantity = u.FilledQuantity
		if !u.AveragePrice.IsZero() {
			h.lastAveragePrice = u.AveragePrice
		}
		h.stopTimer()
		h.finish(ctx, domain.OutcomeHandled)
	case domain.OrderStatusCancelled:
		h.cancelledQuantity = u.CancelledQuantity
		h.stopTimer()
		h.finish(ctx, domain.OutcomeHandled)
	case domain.OrderStatusRejected:
		h.rejectedQuantity = h.req.Quantity - h.filledQuantity - h.cancelledQuantity
		h.stopTimer()
		h.finish(ctx, domain.OutcomeHandled)
	case domain.OrderStatusUpdate:
		h.filledQuantity = u.FilledQuantity
		if !u.AveragePrice.IsZero() {
			h.lastAveragePrice = u.AveragePrice
		}
		h.log.Debug("order modified or partially filled", slog.Int64("filled_quantity", u.FilledQuantity))
	case domain.OrderStatusOpen:
		h.log.Debug("order open")
	default:
		h.log.Warn("unhandled order update", slog.String("status", string(u.Status)))
	}
}

// finish moves to the terminal state of kind and emits the outcome. It is a
// no-op once any terminal state has been reached.
func (h *OrderHandler) finish(ctx context.Context, kind domain.OutcomeKind) {
	if h.State().Terminal() {
		return
	}
	h.setState(terminalState(kind))

	out := domain.Outcome{
		Kind:          kind,
		BrokerOrderID: h.brokerOrderID,
		Request:       h.req,
		AveragePrice:  decimal.Zero,
	}
	if kind != domain.OutcomeFailed {
		summary := h.fillSummary(ctx)
		out.AveragePrice = summary.AveragePrice
		out.FilledQuantity = summary.FilledQuantity
	}
	h.outcome = out

	h.log.Info("order outcome",
		slog.String("outcome", string(kind)),
		slog.String("average_price", out.AveragePrice.String()),
		slog.Int64("filled_quantity", out.FilledQuantity),
		slog.Int64("cancelled_quantity", h.cancelledQuantity),
		slog.Int64("rejected_quantity", h.rejectedQuantity),
		slog.Int("price_adjustments", h.priceAdjustments),
	)
	if h.deps.Listener != nil {
		h.deps.Listener.OnOutcome(out)
	}
}

// fillSummary asks the broker for the order's trades. If the broker cannot
// answer, the handler's own bookkeeping from pushed updates is used instead.
func (h *OrderHandler) fillSummary(ctx context.Context) domain.FillSummary {
	if ctx.Err() == nil {
		trades, err := retry.Do(ctx, func(ctx context.Context) ([]domain.Trade, error) {
			return h.deps.Broker.OrderTrades(ctx, h.brokerOrderID)
		}, retry.WithPolicy(h.deps.Config.Retry))
		if err == nil {
			return domain.SummarizeFills(trades)
		}
		h.log.Warn("failed to fetch order trades", slog.String("error", err.Error()))
	}
	return domain.FillSummary{
		AveragePrice:   h.lastAveragePrice,
		FilledQuantity: h.filledQuantity,
	}
}

func (h *OrderHandler) setState(s State) {
	h.state.Store(int32(s))
}

func (h *OrderHandler) startTimer() {
	h.stopTimer()
	h.timer = time.NewTimer(h.deps.Config.RetryInterval)
}

// stopTimer is safe to call repeatedly.
func (h *OrderHandler) stopTimer() {
	if h.timer != nil {
		h.timer.Stop()
		h.timer = nil
	}
}

// timerC returns the pending timer's channel, or nil (never ready) when no
// timer is armed.
func (h *OrderHandler) timerC() <-chan time.Time {
	if h.timer == nil {
		return nil
	}
	return h.timer.C
}
