package domain

import "errors"

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrBasketBusy         = errors.New("basket_busy")
	ErrEmptyBasket        = errors.New("empty_basket")
	ErrInstrumentNotFound = errors.New("instrument_not_found")
	ErrOrderNotFound      = errors.New("order_not_found")
	ErrOrderNotOpen       = errors.New("order_not_open")
	ErrWebhookNotFound    = errors.New("webhook_not_found")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
