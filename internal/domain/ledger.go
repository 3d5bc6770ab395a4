package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntry is an append-only record of a filled order.
type LedgerEntry struct {
	ID            string
	BrokerOrderID string
	Symbol        string
	Quantity      int64
	AveragePrice  decimal.Decimal
	Side          Side
	Tag           string
	CreatedAt     time.Time
}
