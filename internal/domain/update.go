package domain

import "github.com/shopspring/decimal"

// OrderStatus is the status a broker reports in a pushed order update.
// Anything outside the known constants is treated as unrecognized.
type OrderStatus string

const (
	OrderStatusOpen      OrderStatus = "OPEN"
	OrderStatusUpdate    OrderStatus = "UPDATE"
	OrderStatusComplete  OrderStatus = "COMPLETE"
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusRejected  OrderStatus = "REJECTED"
)

// Known reports whether the status is one the engine reacts to.
func (s OrderStatus) Known() bool {
	switch s {
	case OrderStatusOpen, OrderStatusUpdate, OrderStatusComplete,
		OrderStatusCancelled, OrderStatusRejected:
		return true
	}
	return false
}

// Terminal reports whether the broker will send no further updates
// for an order in this status.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusComplete, OrderStatusCancelled, OrderStatusRejected:
		return true
	}
	return false
}

// OrderUpdate is a broker-pushed notification about one order.
type OrderUpdate struct {
	BrokerOrderID     string
	Status            OrderStatus
	Symbol            string
	Side              Side
	Quantity          int64
	PendingQuantity   int64
	FilledQuantity    int64
	CancelledQuantity int64
	Price             decimal.Decimal
	AveragePrice      decimal.Decimal // only set on COMPLETE
	Tag               string
}
