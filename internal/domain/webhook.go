package domain

import "time"

// Webhook represents a subscription to an outcome notification.
type Webhook struct {
	WebhookID string
	Event     string
	URL       string
	CreatedAt time.Time
	UpdatedAt time.Time
}
