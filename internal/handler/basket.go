package handler

import (
	"errors"
	"net/http"

	"github.com/efreitasn/basketexec/internal/domain"
	"github.com/efreitasn/basketexec/internal/engine"
	"github.com/efreitasn/basketexec/internal/service"
)

// BasketHandler handles HTTP requests for basket endpoints.
type BasketHandler struct {
	basketSvc *service.BasketService
}

// NewBasketHandler creates a new BasketHandler.
func NewBasketHandler(basketSvc *service.BasketService) *BasketHandler {
	return &BasketHandler{basketSvc: basketSvc}
}

// basketOrderRequest is one order of the POST /baskets body.
type basketOrderRequest struct {
	Symbol   string  `json:"symbol"`
	Side     string  `json:"side"`
	Price    float64 `json:"price"`
	Quantity int64   `json:"quantity"`
	Tag      string  `json:"tag"`
}

// submitBasketRequest is the JSON request body for POST /baskets.
type submitBasketRequest struct {
	Orders []basketOrderRequest `json:"orders"`
}

// outcomeResponse is the terminal outcome of one order.
type outcomeResponse struct {
	OrderID        string  `json:"order_id"`
	BrokerOrderID  *string `json:"broker_order_id"`
	Symbol         string  `json:"symbol"`
	Side           string  `json:"side"`
	Price          float64 `json:"price"`
	Quantity       int64   `json:"quantity"`
	Tag            string  `json:"tag"`
	Outcome        string  `json:"outcome"`
	AveragePrice   float64 `json:"average_price"`
	FilledQuantity int64   `json:"filled_quantity"`
}

// basketResponse is the JSON response for POST /baskets.
type basketResponse struct {
	BasketID      string                `json:"basket_id"`
	Outcomes      []outcomeResponse     `json:"outcomes"`
	LedgerEntries []ledgerEntryResponse `json:"ledger_entries"`
	StartedAt     string                `json:"started_at"`
	FinishedAt    string                `json:"finished_at"`
}

// Submit handles POST /baskets. The response is written once every order of
// the basket has settled.
func (h *BasketHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitBasketRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	orders := make([]service.SubmitBasketOrder, len(req.Orders))
	for i, o := range req.Orders {
		orders[i] = service.SubmitBasketOrder{
			Symbol:   o.Symbol,
			Side:     domain.Side(o.Side),
			Price:    o.Price,
			Quantity: o.Quantity,
			Tag:      o.Tag,
		}
	}

	report, err := h.basketSvc.Submit(r.Context(), orders)
	if err != nil {
		mapBasketError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, buildBasketResponse(report))
}

func buildBasketResponse(report *engine.BasketReport) basketResponse {
	outcomes := make([]outcomeResponse, len(report.Outcomes))
	for i, out := range report.Outcomes {
		o := outcomeResponse{
			OrderID:        out.Request.ID,
			Symbol:         out.Request.Symbol,
			Side:           string(out.Request.Side),
			Price:          domain.PriceToFloat(out.Request.Price),
			Quantity:       out.Request.Quantity,
			Tag:            out.Request.Tag,
			Outcome:        string(out.Kind),
			AveragePrice:   domain.PriceToFloat(out.AveragePrice),
			FilledQuantity: out.FilledQuantity,
		}
		if out.BrokerOrderID != "" {
			id := out.BrokerOrderID
			o.BrokerOrderID = &id
		}
		outcomes[i] = o
	}

	return basketResponse{
		BasketID:      report.BasketID,
		Outcomes:      outcomes,
		LedgerEntries: buildLedgerEntryResponses(report.Entries),
		StartedAt:     formatTime(report.StartedAt),
		FinishedAt:    formatTime(report.FinishedAt),
	}
}

// mapBasketError maps domain errors to HTTP responses for basket endpoints.
func mapBasketError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	switch {
	case errors.Is(err, domain.ErrBasketBusy):
		WriteError(w, http.StatusConflict, "basket_busy", "A basket is already executing")
	case errors.Is(err, domain.ErrEmptyBasket):
		WriteError(w, http.StatusBadRequest, "validation_error", "orders must be a non-empty array")
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
