package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/efreitasn/basketexec/internal/domain"
	"github.com/efreitasn/basketexec/internal/engine"
	"github.com/efreitasn/basketexec/internal/metrics"
)

// MaxBasketOrders bounds the number of orders accepted in one basket.
const MaxBasketOrders = 100

// SubmitBasketOrder is one order of a basket submission.
type SubmitBasketOrder struct {
	Symbol   string
	Side     domain.Side
	Price    float64
	Quantity int64
	Tag      string
}

// BasketExecutor runs a basket to completion.
type BasketExecutor interface {
	Execute(ctx context.Context, requests []domain.OrderRequest) (*engine.BasketReport, error)
}

// BasketObserver records basket results.
type BasketObserver interface {
	ObserveBasket(result string)
	ObserveLedgerEntries(n int)
}

// BasketService validates basket submissions and hands them to the order
// manager.
type BasketService struct {
	executor    BasketExecutor
	instruments *domain.InstrumentRegistry
	observer    BasketObserver
	logger      *slog.Logger
}

// NewBasketService creates a new BasketService with the given dependencies.
func NewBasketService(
	executor BasketExecutor,
	instruments *domain.InstrumentRegistry,
	observer BasketObserver,
	logger *slog.Logger,
) *BasketService {
	return &BasketService{
		executor:    executor,
		instruments: instruments,
		observer:    observer,
		logger:      logger,
	}
}

// Submit validates every order, then executes the basket and blocks until
// all of its orders have settled.
func (s *BasketService) Submit(ctx context.Context, orders []SubmitBasketOrder) (*engine.BasketReport, error) {
	requests, err := s.validate(orders)
	if err != nil {
		s.observer.ObserveBasket(metrics.BasketRejected)
		return nil, err
	}

	report, err := s.executor.Execute(ctx, requests)
	switch {
	case errors.Is(err, domain.ErrBasketBusy):
		s.observer.ObserveBasket(metrics.BasketBusy)
		return nil, err
	case err != nil:
		s.observer.ObserveBasket(metrics.BasketRejected)
		return nil, err
	}

	s.observer.ObserveBasket(metrics.BasketCompleted)
	s.observer.ObserveLedgerEntries(len(report.Entries))
	return report, nil
}

func (s *BasketService) validate(orders []SubmitBasketOrder) ([]domain.OrderRequest, error) {
	if len(orders) == 0 {
		return nil, &domain.ValidationError{Message: "orders must be a non-empty array"}
	}
	if len(orders) > MaxBasketOrders {
		return nil, &domain.ValidationError{
			Message: fmt.Sprintf("orders must contain at most %d entries", MaxBasketOrders),
		}
	}

	requests := make([]domain.OrderRequest, len(orders))
	for i, o := range orders {
		price, err := domain.PriceFromFloat(o.Price)
		if err != nil {
			return nil, &domain.ValidationError{
				Message: fmt.Sprintf("orders[%d]: price must have at most %d decimal places", i, domain.PricePlaces),
			}
		}
		req := domain.OrderRequest{
			Symbol:   o.Symbol,
			Price:    price,
			Quantity: o.Quantity,
			Side:     o.Side,
			Tag:      o.Tag,
		}
		if err := req.Validate(); err != nil {
			return nil, &domain.ValidationError{Message: fmt.Sprintf("orders[%d]: %s", i, err.Error())}
		}
		if !s.instruments.Exists(o.Symbol) {
			return nil, &domain.ValidationError{
				Message: fmt.Sprintf("orders[%d]: unknown symbol %s", i, o.Symbol),
			}
		}
		if len(o.Tag) > 64 {
			return nil, &domain.ValidationError{
				Message: fmt.Sprintf("orders[%d]: tag must be at most 64 characters", i),
			}
		}
		requests[i] = req
	}
	return requests, nil
}
