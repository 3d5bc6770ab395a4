package handler

import (
	"errors"
	"net/http"

	"github.com/efreitasn/basketexec/internal/domain"
	"github.com/efreitasn/basketexec/internal/service"
	"github.com/go-chi/chi/v5"
)

// InstrumentHandler handles HTTP requests for instrument endpoints.
type InstrumentHandler struct {
	instrumentSvc *service.InstrumentService
}

// NewInstrumentHandler creates a new InstrumentHandler.
func NewInstrumentHandler(instrumentSvc *service.InstrumentService) *InstrumentHandler {
	return &InstrumentHandler{instrumentSvc: instrumentSvc}
}

// instrumentResponse is the JSON response for GET /instruments/{symbol}.
type instrumentResponse struct {
	Symbol    string   `json:"symbol"`
	TickSize  float64  `json:"tick_size"`
	LastPrice *float64 `json:"last_price"`
	QuotedAt  *string  `json:"quoted_at"`
}

// instrumentListResponse is the JSON response for GET /instruments.
type instrumentListResponse struct {
	Instruments []instrumentResponse `json:"instruments"`
}

// setQuoteRequest is the JSON request body for PUT /instruments/{symbol}/quote.
type setQuoteRequest struct {
	Price    float64 `json:"price"`
	Quantity int64   `json:"quantity"`
}

// List handles GET /instruments.
func (h *InstrumentHandler) List(w http.ResponseWriter, r *http.Request) {
	views := h.instrumentSvc.List()
	result := make([]instrumentResponse, len(views))
	for i, v := range views {
		result[i] = buildInstrumentResponse(v)
	}
	WriteJSON(w, http.StatusOK, instrumentListResponse{Instruments: result})
}

// Get handles GET /instruments/{symbol}.
func (h *InstrumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	v, err := h.instrumentSvc.Get(chi.URLParam(r, "symbol"))
	if err != nil {
		mapInstrumentError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildInstrumentResponse(v))
}

// SetQuote handles PUT /instruments/{symbol}/quote.
func (h *InstrumentHandler) SetQuote(w http.ResponseWriter, r *http.Request) {
	var req setQuoteRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	v, err := h.instrumentSvc.SetQuote(chi.URLParam(r, "symbol"), req.Price, req.Quantity)
	if err != nil {
		mapInstrumentError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, buildInstrumentResponse(v))
}

func buildInstrumentResponse(v *service.InstrumentView) instrumentResponse {
	resp := instrumentResponse{
		Symbol:   v.Symbol,
		TickSize: v.TickSize.InexactFloat64(),
	}
	if v.LastPrice != nil {
		p := domain.PriceToFloat(*v.LastPrice)
		resp.LastPrice = &p
	}
	if v.QuotedAt != nil {
		s := formatTime(*v.QuotedAt)
		resp.QuotedAt = &s
	}
	return resp
}

// mapInstrumentError maps domain errors to HTTP responses for instrument endpoints.
func mapInstrumentError(w http.ResponseWriter, err error) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		WriteError(w, http.StatusBadRequest, "validation_error", validationErr.Message)
		return
	}

	switch {
	case errors.Is(err, domain.ErrInstrumentNotFound):
		WriteError(w, http.StatusNotFound, "instrument_not_found", err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}
