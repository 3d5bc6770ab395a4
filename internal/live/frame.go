// Package live connects to a broker's streaming websocket and relays order
// updates and price ticks, and serves the same stream to local subscribers.
package live

import (
	"encoding/json"
	"fmt"

	"github.com/efreitasn/basketexec/internal/domain"
	"github.com/shopspring/decimal"
)

// Frame types.
const (
	FrameOrder = "order"
	FrameTick  = "tick"
)

// Frame is the text envelope of every websocket message:
//
//	{"type": "order", "data": {...}}
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// OrderUpdateFrame is the broker's order postback payload.
type OrderUpdateFrame struct {
	OrderID           string  `json:"order_id"`
	Status            string  `json:"status"`
	StatusMessage     *string `json:"status_message,omitempty"`
	Tradingsymbol     string  `json:"tradingsymbol"`
	TransactionType   string  `json:"transaction_type"`
	Quantity          int64   `json:"quantity"`
	PendingQuantity   int64   `json:"pending_quantity"`
	FilledQuantity    int64   `json:"filled_quantity"`
	CancelledQuantity int64   `json:"cancelled_quantity"`
	Price             float64 `json:"price"`
	AveragePrice      float64 `json:"average_price"`
	Tag               *string `json:"tag"`
}

// TickFrame is a last-traded-price update.
type TickFrame struct {
	Tradingsymbol string  `json:"tradingsymbol"`
	LastPrice     float64 `json:"last_price"`
}

// ToDomain converts the payload to a domain.OrderUpdate.
func (f OrderUpdateFrame) ToDomain() domain.OrderUpdate {
	u := domain.OrderUpdate{
		BrokerOrderID:     f.OrderID,
		Status:            domain.OrderStatus(f.Status),
		Symbol:            f.Tradingsymbol,
		Side:              domain.Side(f.TransactionType),
		Quantity:          f.Quantity,
		PendingQuantity:   f.PendingQuantity,
		FilledQuantity:    f.FilledQuantity,
		CancelledQuantity: f.CancelledQuantity,
		Price:             domain.RoundPrice(decimal.NewFromFloat(f.Price)),
		AveragePrice:      domain.RoundPrice(decimal.NewFromFloat(f.AveragePrice)),
	}
	if f.Tag != nil {
		u.Tag = *f.Tag
	}
	return u
}

// NewOrderUpdateFrame converts a domain update to its wire payload.
func NewOrderUpdateFrame(u domain.OrderUpdate) OrderUpdateFrame {
	f := OrderUpdateFrame{
		OrderID:           u.BrokerOrderID,
		Status:            string(u.Status),
		Tradingsymbol:     u.Symbol,
		TransactionType:   string(u.Side),
		Quantity:          u.Quantity,
		PendingQuantity:   u.PendingQuantity,
		FilledQuantity:    u.FilledQuantity,
		CancelledQuantity: u.CancelledQuantity,
		Price:             u.Price.InexactFloat64(),
		AveragePrice:      u.AveragePrice.InexactFloat64(),
	}
	if u.Tag != "" {
		tag := u.Tag
		f.Tag = &tag
	}
	return f
}

// EncodeOrderUpdate marshals u inside an order frame.
func EncodeOrderUpdate(u domain.OrderUpdate) ([]byte, error) {
	data, err := json.Marshal(NewOrderUpdateFrame(u))
	if err != nil {
		return nil, fmt.Errorf("encode order update: %w", err)
	}
	return json.Marshal(Frame{Type: FrameOrder, Data: data})
}

// DecodeFrame splits a message into its envelope.
func DecodeFrame(msg []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(msg, &f); err != nil {
		return Frame{}, fmt.Errorf("decode frame: %w", err)
	}
	if f.Type == "" {
		return Frame{}, fmt.Errorf("decode frame: missing type")
	}
	return f, nil
}

// DecodeOrderUpdate decodes an order frame's payload.
func DecodeOrderUpdate(data json.RawMessage) (domain.OrderUpdate, error) {
	var f OrderUpdateFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return domain.OrderUpdate{}, fmt.Errorf("decode order update: %w", err)
	}
	if f.OrderID == "" {
		return domain.OrderUpdate{}, fmt.Errorf("decode order update: missing order_id")
	}
	return f.ToDomain(), nil
}

// DecodeTick decodes a tick frame's payload.
func DecodeTick(data json.RawMessage) (TickFrame, error) {
	var t TickFrame
	if err := json.Unmarshal(data, &t); err != nil {
		return TickFrame{}, fmt.Errorf("decode tick: %w", err)
	}
	if t.Tradingsymbol == "" || t.LastPrice <= 0 {
		return TickFrame{}, fmt.Errorf("decode tick: missing tradingsymbol or last_price")
	}
	return t, nil
}
