package handler

import (
	"net/http"

	"github.com/efreitasn/basketexec/internal/domain"
	"github.com/efreitasn/basketexec/internal/service"
)

// LedgerHandler handles HTTP requests for ledger endpoints.
type LedgerHandler struct {
	ledgerSvc *service.LedgerService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerSvc *service.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerSvc: ledgerSvc}
}

// ledgerEntryResponse is a single ledger entry in the response.
type ledgerEntryResponse struct {
	EntryID       string  `json:"entry_id"`
	BrokerOrderID string  `json:"broker_order_id"`
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"`
	Quantity      int64   `json:"quantity"`
	AveragePrice  float64 `json:"average_price"`
	Tag           string  `json:"tag"`
	CreatedAt     string  `json:"created_at"`
}

// ledgerListResponse is the JSON response for GET /ledger/trades.
type ledgerListResponse struct {
	Trades []ledgerEntryResponse `json:"trades"`
}

// ListTrades handles GET /ledger/trades. The optional tag query parameter
// selects entries whose tag starts with it.
func (h *LedgerHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	var entries []domain.LedgerEntry
	if tag := r.URL.Query().Get("tag"); tag != "" {
		entries = h.ledgerSvc.TradesByTag(tag)
	} else {
		entries = h.ledgerSvc.Trades()
	}

	WriteJSON(w, http.StatusOK, ledgerListResponse{
		Trades: buildLedgerEntryResponses(entries),
	})
}

// buildLedgerEntryResponses converts domain entries to response entries.
func buildLedgerEntryResponses(entries []domain.LedgerEntry) []ledgerEntryResponse {
	result := make([]ledgerEntryResponse, len(entries))
	for i, e := range entries {
		result[i] = ledgerEntryResponse{
			EntryID:       e.ID,
			BrokerOrderID: e.BrokerOrderID,
			Symbol:        e.Symbol,
			Side:          string(e.Side),
			Quantity:      e.Quantity,
			AveragePrice:  domain.PriceToFloat(e.AveragePrice),
			Tag:           e.Tag,
			CreatedAt:     formatTime(e.CreatedAt),
		}
	}
	return result
}
