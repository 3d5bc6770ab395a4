package store

import (
	"context"
	"sync"

	"github.com/efreitasn/basketexec/internal/domain"
)

// LedgerStore is a thread-safe in-memory ledger. Entries are append-only and
// kept in insertion order.
type LedgerStore struct {
	mu      sync.RWMutex
	entries []domain.LedgerEntry
}

// NewLedgerStore creates an empty LedgerStore.
func NewLedgerStore() *LedgerStore {
	return &LedgerStore{}
}

// Save appends an entry.
func (s *LedgerStore) Save(_ context.Context, e domain.LedgerEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, e)
	return nil
}

// All returns every entry in insertion order. Returns an empty slice if the
// ledger is empty.
func (s *LedgerStore) All(_ context.Context) ([]domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Return a copy to avoid callers mutating the internal slice.
	result := make([]domain.LedgerEntry, len(s.entries))
	copy(result, s.entries)
	return result, nil
}

// Close is a no-op.
func (s *LedgerStore) Close() error {
	return nil
}
