package service

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/efreitasn/basketexec/internal/domain"
	"github.com/google/btree"
)

// LedgerStore is the durable side of the ledger.
type LedgerStore interface {
	Save(ctx context.Context, e domain.LedgerEntry) error
	All(ctx context.Context) ([]domain.LedgerEntry, error)
}

// ledgerItem orders the tag index by tag, then insertion sequence.
type ledgerItem struct {
	Tag   string
	Seq   uint64
	Entry domain.LedgerEntry
}

func ledgerLess(a, b ledgerItem) bool {
	if a.Tag != b.Tag {
		return a.Tag < b.Tag
	}
	return a.Seq < b.Seq
}

// LedgerService writes filled orders to the store and serves reads from an
// in-memory copy indexed by tag. The copy is rebuilt from the store by Sync.
type LedgerService struct {
	store  LedgerStore
	logger *slog.Logger

	// writeMu serializes SaveTrade and Sync so a sync never drops an entry
	// saved while it was reading the store.
	writeMu sync.Mutex

	mu      sync.RWMutex
	entries []domain.LedgerEntry
	byTag   *btree.BTreeG[ledgerItem]
	seq     uint64
}

// NewLedgerService creates a LedgerService with an empty cache. Call Sync to
// load existing entries.
func NewLedgerService(store LedgerStore, logger *slog.Logger) *LedgerService {
	return &LedgerService{
		store:  store,
		logger: logger,
		byTag:  btree.NewG[ledgerItem](32, ledgerLess),
	}
}

// Sync replaces the cache with the store's contents.
func (s *LedgerService) Sync(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	all, err := s.store.All(ctx)
	if err != nil {
		return err
	}

	index := btree.NewG[ledgerItem](32, ledgerLess)
	for i, e := range all {
		index.ReplaceOrInsert(ledgerItem{Tag: e.Tag, Seq: uint64(i), Entry: e})
	}

	s.mu.Lock()
	s.entries = all
	s.byTag = index
	s.seq = uint64(len(all))
	s.mu.Unlock()

	s.logger.Debug("ledger synced", slog.Int("entries", len(all)))
	return nil
}

// SaveTrade implements engine.Ledger. The entry is visible to reads once the
// store has accepted it.
func (s *LedgerService) SaveTrade(ctx context.Context, e domain.LedgerEntry) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.store.Save(ctx, e); err != nil {
		return err
	}

	s.mu.Lock()
	s.entries = append(s.entries, e)
	s.byTag.ReplaceOrInsert(ledgerItem{Tag: e.Tag, Seq: s.seq, Entry: e})
	s.seq++
	s.mu.Unlock()

	s.logger.Info("ledger entry saved",
		slog.String("entry_id", e.ID),
		slog.String("broker_order_id", e.BrokerOrderID),
		slog.String("tag", e.Tag),
		slog.Int64("quantity", e.Quantity),
		slog.String("average_price", e.AveragePrice.String()),
	)
	return nil
}

// Trades returns every entry in insertion order.
func (s *LedgerService) Trades() []domain.LedgerEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.LedgerEntry, len(s.entries))
	copy(result, s.entries)
	return result
}

// TradesByTag returns the entries whose tag starts with prefix, ordered by
// tag and then insertion.
func (s *LedgerService) TradesByTag(prefix string) []domain.LedgerEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.LedgerEntry, 0)
	s.byTag.AscendGreaterOrEqual(ledgerItem{Tag: prefix}, func(it ledgerItem) bool {
		if !strings.HasPrefix(it.Tag, prefix) {
			return false
		}
		result = append(result, it.Entry)
		return true
	})
	return result
}

// StartSync launches a background goroutine that re-syncs the cache every
// interval, picking up entries written by other processes sharing the
// store. It stops when ctx is cancelled.
func (s *LedgerService) StartSync(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.Sync(ctx); err != nil && ctx.Err() == nil {
					s.logger.Warn("ledger sync failed", slog.String("error", err.Error()))
				}
			}
		}
	}()
}
