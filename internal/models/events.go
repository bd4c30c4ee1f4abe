package models

import "time"

// Event types
const (
	EventTypeOrderPlaced    = "ORDER_PLACED"
	EventTypeOrderPaid      = "ORDER_PAID"
	EventTypeOrderCancelled = "ORDER_CANCELLED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPlacedEvent published when an order is placed
type OrderPlacedEvent struct {
	BaseEvent
	OrderID     int64           `json:"order_id"`
	UserID      int64           `json:"user_id"`
	Amount      int64           `json:"amount"`
	PaymentType string          `json:"payment_type"`
	Items       []OrderItemData `json:"items"`
}

// OrderPaidEvent published when a webhook confirms payment
type OrderPaidEvent struct {
	BaseEvent
	OrderID         int64  `json:"order_id"`
	UserID          int64  `json:"user_id"`
	PaymentIntentID string `json:"payment_intent_id"`
}

// OrderCancelledEvent published when a webhook reports payment failure
// and the order is removed
type OrderCancelledEvent struct {
	BaseEvent
	OrderID         int64  `json:"order_id"`
	UserID          int64  `json:"user_id"`
	PaymentIntentID string `json:"payment_intent_id"`
	Reason          string `json:"reason"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
	UnitPrice int64 `json:"unit_price"`
}
