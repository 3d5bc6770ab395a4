package store

import (
	"sort"
	"sync"

	"github.com/efreitasn/basketexec/internal/domain"
)

// WebhookStore is a thread-safe in-memory store for webhooks.
// Primary index: webhook_id → webhook.
// Secondary index: event → webhook.
type WebhookStore struct {
	mu       sync.RWMutex
	webhooks map[string]*domain.Webhook // webhook_id → webhook
	byEvent  map[string]*domain.Webhook // event → webhook
}

// NewWebhookStore creates an empty WebhookStore.
func NewWebhookStore() *WebhookStore {
	return &WebhookStore{
		webhooks: make(map[string]*domain.Webhook),
		byEvent:  make(map[string]*domain.Webhook),
	}
}

// Upsert inserts or updates the subscription for w.Event. An existing
// subscription keeps its webhook_id and only has its URL and UpdatedAt
// replaced when the URL changed. Returns true if a new subscription was
// created.
func (s *WebhookStore) Upsert(w *domain.Webhook) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byEvent[w.Event]; ok {
		if existing.URL != w.URL {
			existing.URL = w.URL
			existing.UpdatedAt = w.UpdatedAt
		}
		return false
	}

	s.webhooks[w.WebhookID] = w
	s.byEvent[w.Event] = w
	return true
}

// Get retrieves a webhook by ID. It returns
// domain.ErrWebhookNotFound if the webhook does not exist.
func (s *WebhookStore) Get(id string) (*domain.Webhook, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.webhooks[id]
	if !ok {
		return nil, domain.ErrWebhookNotFound
	}
	return w, nil
}

// List returns all webhooks ordered by event name.
// Returns an empty slice if there are no subscriptions.
func (s *WebhookStore) List() []*domain.Webhook {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Webhook, 0, len(s.byEvent))
	for _, w := range s.byEvent {
		result = append(result, w)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Event < result[j].Event })
	return result
}

// Delete removes a webhook by ID from both indexes. It returns
// domain.ErrWebhookNotFound if the webhook does not exist.
func (s *WebhookStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.webhooks[id]
	if !ok {
		return domain.ErrWebhookNotFound
	}
	delete(s.webhooks, id)
	delete(s.byEvent, w.Event)
	return nil
}

// GetByEvent returns the subscription for event, or nil if there is none.
func (s *WebhookStore) GetByEvent(event string) *domain.Webhook {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.byEvent[event]
}
