package service

import (
	"log/slog"

	"github.com/efreitasn/basketexec/internal/domain"
	"github.com/shopspring/decimal"
)

// UpdateRouter routes an order update to the handler that owns it.
type UpdateRouter interface {
	Dispatch(update domain.OrderUpdate) bool
}

// FeedObserver records received order updates.
type FeedObserver interface {
	ObserveFeedUpdate(status domain.OrderStatus, routed bool)
}

// TickSink receives last-traded prices.
type TickSink interface {
	OnTick(symbol string, lastPrice decimal.Decimal)
}

// FeedService is the entry point of broker pushes, whether they arrive on
// the streaming connection, by HTTP postback or from the paper broker.
type FeedService struct {
	router   UpdateRouter
	ticks    TickSink // optional
	observer FeedObserver
	logger   *slog.Logger
}

// NewFeedService creates a new FeedService with the given dependencies.
func NewFeedService(router UpdateRouter, ticks TickSink, observer FeedObserver, logger *slog.Logger) *FeedService {
	return &FeedService{
		router:   router,
		ticks:    ticks,
		observer: observer,
		logger:   logger,
	}
}

// OnOrderUpdate implements live.Sink.
func (s *FeedService) OnOrderUpdate(u domain.OrderUpdate) {
	routed := s.router.Dispatch(u)
	s.observer.ObserveFeedUpdate(u.Status, routed)
	s.logger.Debug("order update received",
		slog.String("broker_order_id", u.BrokerOrderID),
		slog.String("status", string(u.Status)),
		slog.Bool("routed", routed),
	)
}

// Publish implements broker.Publisher.
func (s *FeedService) Publish(u domain.OrderUpdate) {
	s.OnOrderUpdate(u)
}

// OnTick implements live.Sink.
func (s *FeedService) OnTick(symbol string, lastPrice decimal.Decimal) {
	if s.ticks != nil {
		s.ticks.OnTick(symbol, lastPrice)
	}
}

// Inject validates an update received by HTTP postback and feeds it in.
func (s *FeedService) Inject(u domain.OrderUpdate) error {
	if u.BrokerOrderID == "" {
		return &domain.ValidationError{Message: "order_id is required"}
	}
	if u.Status == "" {
		return &domain.ValidationError{Message: "status is required"}
	}
	s.OnOrderUpdate(u)
	return nil
}
