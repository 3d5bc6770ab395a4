// Package metrics exposes Prometheus collectors for basket execution.
package metrics

import (
	"github.com/efreitasn/basketexec/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "basketexec"

// Basket results.
const (
	BasketCompleted = "completed"
	BasketBusy      = "busy"
	BasketRejected  = "rejected"
)

// Metrics groups the collectors registered on one registry.
type Metrics struct {
	outcomes      *prometheus.CounterVec
	baskets       *prometheus.CounterVec
	brokerCalls   *prometheus.CounterVec
	brokerLatency *prometheus.HistogramVec
	feedUpdates   *prometheus.CounterVec
	ledgerEntries prometheus.Counter
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		outcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "order_outcomes_total",
				Help:      "Terminal order outcomes by kind",
			},
			[]string{"kind"},
		),
		baskets: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "baskets_total",
				Help:      "Basket executions by result",
			},
			[]string{"result"},
		),
		brokerCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "broker",
				Name:      "calls_total",
				Help:      "Broker calls by operation and result",
			},
			[]string{"op", "result"},
		),
		brokerLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "broker",
				Name:      "call_duration_seconds",
				Help:      "Duration of broker calls",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		feedUpdates: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "feed",
				Name:      "order_updates_total",
				Help:      "Order updates received by status and routing",
			},
			[]string{"status", "routed"},
		),
		ledgerEntries: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ledger",
				Name:      "entries_total",
				Help:      "Ledger entries written",
			},
		),
	}
}

// RegisterActiveHandlers exposes fn as the live handler gauge.
func (m *Metrics) RegisterActiveHandlers(reg prometheus.Registerer, fn func() float64) {
	promauto.With(reg).NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "active_handlers",
			Help:      "Order handlers that have not reached a terminal state",
		},
		fn,
	)
}

// OnOutcome implements engine.OutcomeListener.
func (m *Metrics) OnOutcome(out domain.Outcome) {
	m.outcomes.WithLabelValues(string(out.Kind)).Inc()
}

// ObserveBasket counts one basket execution attempt.
func (m *Metrics) ObserveBasket(result string) {
	m.baskets.WithLabelValues(result).Inc()
}

// ObserveBrokerCall records a broker call and its duration in seconds.
func (m *Metrics) ObserveBrokerCall(op string, err error, seconds float64) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.brokerCalls.WithLabelValues(op, result).Inc()
	m.brokerLatency.WithLabelValues(op).Observe(seconds)
}

// ObserveFeedUpdate counts an order update pushed by the broker.
func (m *Metrics) ObserveFeedUpdate(status domain.OrderStatus, routed bool) {
	r := "orphan"
	if routed {
		r = "routed"
	}
	m.feedUpdates.WithLabelValues(string(status), r).Inc()
}

// ObserveLedgerEntries counts written ledger entries.
func (m *Metrics) ObserveLedgerEntries(n int) {
	m.ledgerEntries.Add(float64(n))
}
