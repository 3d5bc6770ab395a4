package engine

import (
	"log/slog"
	"sync"

	"github.com/efreitasn/basketexec/internal/domain"
)

const defaultMaxOrphans = 1024

// Subscriber receives the order updates of exactly one broker order.
// Deliver must not block.
type Subscriber interface {
	Deliver(update domain.OrderUpdate)
}

// Dispatcher routes broker-pushed order updates to the single handler that
// owns the broker order id. Updates that arrive before their handler has
// subscribed (the broker can push before PlaceOrder returns) are held as
// orphans and replayed on Subscribe.
type Dispatcher struct {
	mu          sync.Mutex
	routes      map[string]Subscriber           // broker_order_id → subscriber
	orphans     map[string][]domain.OrderUpdate // broker_order_id → updates
	orphanOrder []string                        // FIFO of orphan ids for eviction
	maxOrphans  int
	logger      *slog.Logger
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		routes:     make(map[string]Subscriber),
		orphans:    make(map[string][]domain.OrderUpdate),
		maxOrphans: defaultMaxOrphans,
		logger:     logger,
	}
}

// Subscribe routes updates for brokerOrderID to s, replaying any orphans
// in arrival order.
func (d *Dispatcher) Subscribe(brokerOrderID string, s Subscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.routes[brokerOrderID] = s
	if pending, ok := d.orphans[brokerOrderID]; ok {
		delete(d.orphans, brokerOrderID)
		d.removeOrphanID(brokerOrderID)
		for _, u := range pending {
			s.Deliver(u)
		}
	}
}

// Unsubscribe stops routing updates for brokerOrderID.
func (d *Dispatcher) Unsubscribe(brokerOrderID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.routes, brokerOrderID)
}

// Dispatch hands the update to its subscriber. It returns false when no
// handler owns the order yet; the update is then kept as an orphan.
func (d *Dispatcher) Dispatch(u domain.OrderUpdate) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if s, ok := d.routes[u.BrokerOrderID]; ok {
		s.Deliver(u)
		return true
	}

	if _, ok := d.orphans[u.BrokerOrderID]; !ok {
		if len(d.orphanOrder) >= d.maxOrphans {
			evicted := d.orphanOrder[0]
			d.orphanOrder = d.orphanOrder[1:]
			delete(d.orphans, evicted)
			d.logger.Warn("dropping orphan order updates",
				slog.String("broker_order_id", evicted),
			)
		}
		d.orphanOrder = append(d.orphanOrder, u.BrokerOrderID)
	}
	d.orphans[u.BrokerOrderID] = append(d.orphans[u.BrokerOrderID], u)
	return false
}

// Reset drops every held orphan. Called between baskets.
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.orphans = make(map[string][]domain.OrderUpdate)
	d.orphanOrder = nil
}

// SubscriberCount returns the number of routed broker orders.
func (d *Dispatcher) SubscriberCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.routes)
}

// OrphanCount returns the number of broker orders with held updates.
func (d *Dispatcher) OrphanCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.orphans)
}

func (d *Dispatcher) removeOrphanID(id string) {
	for i, o := range d.orphanOrder {
		if o == id {
			d.orphanOrder = append(d.orphanOrder[:i], d.orphanOrder[i+1:]...)
			return
		}
	}
}
