package store

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/efreitasn/basketexec/internal/domain"
)

func newTestWebhook(id, event, url string) *domain.Webhook {
	now := time.Now()
	return &domain.Webhook{
		WebhookID: id,
		Event:     event,
		URL:       url,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestWebhookStore_Upsert_NewSubscription(t *testing.T) {
	s := NewWebhookStore()
	w := newTestWebhook("wh-1", "order.handled", "https://example.com/hook")

	if !s.Upsert(w) {
		t.Fatal("expected Upsert to return true for new subscription")
	}

	got, err := s.Get("wh-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.WebhookID != "wh-1" {
		t.Fatalf("expected webhook ID wh-1, got %s", got.WebhookID)
	}
}

func TestWebhookStore_Upsert_UpdateURL(t *testing.T) {
	s := NewWebhookStore()
	s.Upsert(newTestWebhook("wh-1", "order.handled", "https://example.com/old"))

	w2 := newTestWebhook("wh-2", "order.handled", "https://example.com/new")
	w2.UpdatedAt = time.Now().Add(time.Second)
	if s.Upsert(w2) {
		t.Fatal("expected Upsert to return false when updating existing subscription")
	}

	// The original webhook_id stays stable.
	got, err := s.Get("wh-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.URL != "https://example.com/new" {
		t.Fatalf("expected URL to be updated, got %s", got.URL)
	}
	if !got.UpdatedAt.Equal(w2.UpdatedAt) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, w2.UpdatedAt)
	}
	if _, err := s.Get("wh-2"); err != domain.ErrWebhookNotFound {
		t.Fatalf("expected ErrWebhookNotFound for wh-2, got %v", err)
	}
}

func TestWebhookStore_Upsert_SameURL_Idempotent(t *testing.T) {
	s := NewWebhookStore()
	w := newTestWebhook("wh-1", "order.failed", "https://example.com/hook")
	s.Upsert(w)
	updatedAt := w.UpdatedAt

	w2 := newTestWebhook("wh-2", "order.failed", "https://example.com/hook")
	w2.UpdatedAt = time.Now().Add(time.Hour)
	if s.Upsert(w2) {
		t.Fatal("expected Upsert to return false for idempotent re-registration")
	}

	got, _ := s.Get("wh-1")
	if !got.UpdatedAt.Equal(updatedAt) {
		t.Errorf("UpdatedAt changed on a no-op upsert")
	}
}

func TestWebhookStore_List_SortedByEvent(t *testing.T) {
	s := NewWebhookStore()
	s.Upsert(newTestWebhook("wh-1", "order.not_handled", "https://example.com/a"))
	s.Upsert(newTestWebhook("wh-2", "basket.completed", "https://example.com/b"))
	s.Upsert(newTestWebhook("wh-3", "order.failed", "https://example.com/c"))

	list := s.List()
	want := []string{"basket.completed", "order.failed", "order.not_handled"}
	if len(list) != len(want) {
		t.Fatalf("expected %d webhooks, got %d", len(want), len(list))
	}
	for i, e := range want {
		if list[i].Event != e {
			t.Errorf("list[%d].Event = %s, want %s", i, list[i].Event, e)
		}
	}
}

func TestWebhookStore_List_Empty(t *testing.T) {
	s := NewWebhookStore()

	list := s.List()
	if list == nil {
		t.Fatal("expected non-nil empty slice, got nil")
	}
	if len(list) != 0 {
		t.Fatalf("expected 0 webhooks, got %d", len(list))
	}
}

func TestWebhookStore_Get_NotFound(t *testing.T) {
	s := NewWebhookStore()
	if _, err := s.Get("nonexistent"); err != domain.ErrWebhookNotFound {
		t.Fatalf("expected ErrWebhookNotFound, got %v", err)
	}
}

func TestWebhookStore_Delete(t *testing.T) {
	s := NewWebhookStore()
	s.Upsert(newTestWebhook("wh-1", "order.handled", "https://example.com/hook"))
	s.Upsert(newTestWebhook("wh-2", "order.failed", "https://example.com/hook"))

	if err := s.Delete("wh-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := s.Get("wh-1"); err != domain.ErrWebhookNotFound {
		t.Fatalf("expected ErrWebhookNotFound after delete, got %v", err)
	}
	if got := s.GetByEvent("order.handled"); got != nil {
		t.Fatal("expected nil from GetByEvent after delete")
	}
	list := s.List()
	if len(list) != 1 || list[0].WebhookID != "wh-2" {
		t.Fatalf("expected only wh-2 to remain, got %v", list)
	}
}

func TestWebhookStore_Delete_NotFound(t *testing.T) {
	s := NewWebhookStore()
	if err := s.Delete("nonexistent"); err != domain.ErrWebhookNotFound {
		t.Fatalf("expected ErrWebhookNotFound, got %v", err)
	}
}

func TestWebhookStore_GetByEvent(t *testing.T) {
	s := NewWebhookStore()
	if got := s.GetByEvent("order.handled"); got != nil {
		t.Fatal("expected nil for unsubscribed event")
	}

	s.Upsert(newTestWebhook("wh-1", "order.handled", "https://example.com/hook"))
	got := s.GetByEvent("order.handled")
	if got == nil || got.WebhookID != "wh-1" {
		t.Fatalf("expected wh-1, got %v", got)
	}
	if s.GetByEvent("order.failed") != nil {
		t.Fatal("expected nil for different event")
	}
}

func TestWebhookStore_ConcurrentAccess(t *testing.T) {
	s := NewWebhookStore()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Upsert(newTestWebhook(
				fmt.Sprintf("wh-%d", i),
				fmt.Sprintf("event-%d", i%4),
				fmt.Sprintf("https://example.com/hook/%d", i),
			))
		}(i)
	}
	wg.Wait()

	if n := len(s.List()); n != 4 {
		t.Fatalf("expected 4 subscriptions, got %d", n)
	}

	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.List()
		}()
		go func(i int) {
			defer wg.Done()
			s.Get(fmt.Sprintf("wh-%d", i))
		}(i)
	}
	wg.Wait()
}
