package domain

import (
	"regexp"

	"github.com/shopspring/decimal"
)

var symbolRegex = regexp.MustCompile(`^[A-Z0-9&_-]{1,40}$`)

// Side indicates whether an order buys or sells.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// OrderRequest is the immutable input of one order handler. ID is the
// basket-local sequential id assigned by the order manager.
type OrderRequest struct {
	ID       string
	Symbol   string
	Price    decimal.Decimal
	Quantity int64
	Side     Side
	Tag      string
}

// Validate checks the fields a broker would reject outright.
func (r OrderRequest) Validate() error {
	if !symbolRegex.MatchString(r.Symbol) {
		return &ValidationError{Message: "symbol must match ^[A-Z0-9&_-]{1,40}$"}
	}
	if r.Side != SideBuy && r.Side != SideSell {
		return &ValidationError{Message: "side must be 'BUY' or 'SELL'"}
	}
	if !r.Price.IsPositive() {
		return &ValidationError{Message: "price must be greater than 0"}
	}
	if r.Quantity <= 0 {
		return &ValidationError{Message: "quantity must be a positive integer"}
	}
	return nil
}
