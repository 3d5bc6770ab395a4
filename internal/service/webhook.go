package service

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/efreitasn/basketexec/internal/domain"
	"github.com/efreitasn/basketexec/internal/engine"
	"github.com/efreitasn/basketexec/internal/store"
	"github.com/google/uuid"
)

// Webhook event types.
const (
	EventOrderFailed     = "order.failed"
	EventOrderHandled    = "order.handled"
	EventOrderNotHandled = "order.not_handled"
	EventBasketCompleted = "basket.completed"
)

var validWebhookEvents = []string{
	EventOrderFailed,
	EventOrderHandled,
	EventOrderNotHandled,
	EventBasketCompleted,
}

func isValidWebhookEvent(event string) bool {
	for _, e := range validWebhookEvents {
		if e == event {
			return true
		}
	}
	return false
}

// UpsertWebhookRequest represents the input for webhook registration.
type UpsertWebhookRequest struct {
	URL    string
	Events []string
}

// WebhookService handles webhook CRUD and outcome notification.
type WebhookService struct {
	store  *store.WebhookStore
	client *http.Client
	logger *slog.Logger
}

// NewWebhookService creates a new WebhookService with the given dependencies.
func NewWebhookService(webhookStore *store.WebhookStore, webhookTimeout time.Duration, logger *slog.Logger) *WebhookService {
	return &WebhookService{
		store: webhookStore,
		client: &http.Client{
			Timeout: webhookTimeout,
		},
		logger: logger,
	}
}

// Upsert validates the request and creates or updates webhook subscriptions.
// Returns the resulting webhooks, whether any new subscriptions were created, and any error.
func (s *WebhookService) Upsert(req UpsertWebhookRequest) ([]*domain.Webhook, bool, error) {
	if req.URL == "" {
		return nil, false, &domain.ValidationError{Message: "url is required"}
	}
	if len(req.URL) > 2048 {
		return nil, false, &domain.ValidationError{Message: "url must be at most 2048 characters"}
	}
	parsed, err := url.ParseRequestURI(req.URL)
	if err != nil || !parsed.IsAbs() {
		return nil, false, &domain.ValidationError{Message: "url must be a valid absolute URL"}
	}
	if parsed.Scheme != "https" {
		return nil, false, &domain.ValidationError{Message: "url must use https scheme"}
	}

	if len(req.Events) == 0 {
		return nil, false, &domain.ValidationError{Message: "events must be a non-empty array"}
	}

	// Deduplicate events while preserving order and validating.
	seen := make(map[string]bool, len(req.Events))
	dedupedEvents := make([]string, 0, len(req.Events))
	for _, event := range req.Events {
		if !isValidWebhookEvent(event) {
			return nil, false, &domain.ValidationError{
				Message: "Unknown event type: " + event + ". Must be one of: " + strings.Join(validWebhookEvents, ", "),
			}
		}
		if !seen[event] {
			seen[event] = true
			dedupedEvents = append(dedupedEvents, event)
		}
	}

	now := time.Now().UTC().Truncate(time.Second)
	anyCreated := false
	webhooks := make([]*domain.Webhook, 0, len(dedupedEvents))

	for _, event := range dedupedEvents {
		w := &domain.Webhook{
			WebhookID: uuid.New().String(),
			Event:     event,
			URL:       req.URL,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if s.store.Upsert(w) {
			anyCreated = true
			webhooks = append(webhooks, w)
		} else if existing := s.store.GetByEvent(event); existing != nil {
			webhooks = append(webhooks, existing)
		}
	}

	return webhooks, anyCreated, nil
}

// List returns all webhook subscriptions.
func (s *WebhookService) List() []*domain.Webhook {
	return s.store.List()
}

// Delete removes a webhook subscription by ID.
func (s *WebhookService) Delete(webhookID string) error {
	return s.store.Delete(webhookID)
}

// outcomePayload is the JSON payload for order.* webhooks.
type outcomePayload struct {
	Event     string      `json:"event"`
	Timestamp string      `json:"timestamp"`
	Data      outcomeData `json:"data"`
}

type outcomeData struct {
	OrderID        string  `json:"order_id"`
	BrokerOrderID  string  `json:"broker_order_id,omitempty"`
	Symbol         string  `json:"symbol"`
	Side           string  `json:"side"`
	Price          float64 `json:"price"`
	Quantity       int64   `json:"quantity"`
	Tag            string  `json:"tag"`
	Outcome        string  `json:"outcome"`
	AveragePrice   float64 `json:"average_price"`
	FilledQuantity int64   `json:"filled_quantity"`
}

// basketPayload is the JSON payload for basket.completed webhooks.
type basketPayload struct {
	Event     string     `json:"event"`
	Timestamp string     `json:"timestamp"`
	Data      basketData `json:"data"`
}

type basketData struct {
	BasketID      string `json:"basket_id"`
	Orders        int    `json:"orders"`
	Handled       int    `json:"handled"`
	NotHandled    int    `json:"not_handled"`
	Failed        int    `json:"failed"`
	LedgerEntries int    `json:"ledger_entries"`
	StartedAt     string `json:"started_at"`
	FinishedAt    string `json:"finished_at"`
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

// OnOutcome implements engine.OutcomeListener. Fire-and-forget.
func (s *WebhookService) OnOutcome(out domain.Outcome) {
	event := out.Kind.Event()
	wh := s.store.GetByEvent(event)
	if wh == nil {
		return
	}

	payload := outcomePayload{
		Event:     event,
		Timestamp: formatTimestamp(time.Now()),
		Data: outcomeData{
			OrderID:        out.Request.ID,
			BrokerOrderID:  out.BrokerOrderID,
			Symbol:         out.Request.Symbol,
			Side:           string(out.Request.Side),
			Price:          domain.PriceToFloat(out.Request.Price),
			Quantity:       out.Request.Quantity,
			Tag:            out.Request.Tag,
			Outcome:        string(out.Kind),
			AveragePrice:   domain.PriceToFloat(out.AveragePrice),
			FilledQuantity: out.FilledQuantity,
		},
	}
	go s.deliver(wh, event, payload)
}

// OnBasketCompleted implements engine.BasketListener. Fire-and-forget.
func (s *WebhookService) OnBasketCompleted(r *engine.BasketReport) {
	wh := s.store.GetByEvent(EventBasketCompleted)
	if wh == nil {
		return
	}

	counts := r.Counts()
	payload := basketPayload{
		Event:     EventBasketCompleted,
		Timestamp: formatTimestamp(r.FinishedAt),
		Data: basketData{
			BasketID:      r.BasketID,
			Orders:        len(r.Outcomes),
			Handled:       counts[domain.OutcomeHandled],
			NotHandled:    counts[domain.OutcomeNotHandled],
			Failed:        counts[domain.OutcomeFailed],
			LedgerEntries: len(r.Entries),
			StartedAt:     formatTimestamp(r.StartedAt),
			FinishedAt:    formatTimestamp(r.FinishedAt),
		},
	}
	go s.deliver(wh, EventBasketCompleted, payload)
}

// deliver sends the webhook payload via HTTP POST with the required headers.
// Failures are logged and not retried.
func (s *WebhookService) deliver(wh *domain.Webhook, eventType string, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		return
	}

	req, err := http.NewRequest(http.MethodPost, wh.URL, bytes.NewReader(body))
	if err != nil {
		return
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-Id", uuid.New().String())
	req.Header.Set("X-Webhook-Id", wh.WebhookID)
	req.Header.Set("X-Event-Type", eventType)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("webhook delivery failed",
			slog.String("webhook_id", wh.WebhookID),
			slog.String("event", eventType),
			slog.String("error", err.Error()),
		)
		return
	}
	resp.Body.Close()
}
