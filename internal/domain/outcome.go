package domain

import "github.com/shopspring/decimal"

// OutcomeKind is the single terminal disposition of an order handler.
type OutcomeKind string

const (
	// OutcomeFailed means the order never reached the broker.
	OutcomeFailed OutcomeKind = "failed"
	// OutcomeHandled means the broker reported a terminal state, or the
	// order was cancelled after exhausting price adjustments.
	OutcomeHandled OutcomeKind = "handled"
	// OutcomeNotHandled means a modify or cancel exhausted its retries and
	// the order must be reconciled by hand.
	OutcomeNotHandled OutcomeKind = "not_handled"
)

// Event returns the webhook event name for the outcome.
func (k OutcomeKind) Event() string {
	return "order." + string(k)
}

// Outcome is emitted exactly once per order handler.
type Outcome struct {
	Kind           OutcomeKind
	BrokerOrderID  string // empty for OutcomeFailed
	Request        OrderRequest
	AveragePrice   decimal.Decimal
	FilledQuantity int64
}

// Fulfilled reports whether the order exists at the broker, i.e. the
// outcome is eligible for a ledger entry.
func (o Outcome) Fulfilled() bool {
	return o.Kind == OutcomeHandled || o.Kind == OutcomeNotHandled
}
