package models

import "time"

// Payment types
const (
	PaymentTypeCOD    = "COD"
	PaymentTypeOnline = "Online"
)

// Product represents a product in the catalog
type Product struct {
	ID        int64     `db:"id" json:"id"`
	SKU       string    `db:"sku" json:"sku"`
	Name      string    `db:"name" json:"name"`
	Price     int64     `db:"price" json:"price"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Address represents a shipping address
type Address struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	Street    string    `db:"street" json:"street"`
	City      string    `db:"city" json:"city"`
	State     string    `db:"state" json:"state"`
	ZipCode   string    `db:"zip_code" json:"zip_code"`
	Country   string    `db:"country" json:"country"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// User represents a customer account. CartItems is a product-id to
// quantity mapping stored as jsonb.
type User struct {
	ID        int64     `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	CartItems []byte    `db:"cart_items" json:"-"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Order represents a customer order. Amount is the total in minor
// currency units, tax included, computed once at placement.
type Order struct {
	ID          int64     `db:"id" json:"id"`
	UserID      int64     `db:"user_id" json:"user_id"`
	Amount      int64     `db:"amount" json:"amount"`
	AddressID   int64     `db:"address_id" json:"-"`
	PaymentType string    `db:"payment_type" json:"payment_type"`
	IsPaid      bool      `db:"is_paid" json:"is_paid"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// OrderItem represents one line of an order. UnitPrice snapshots the
// product price at placement time.
type OrderItem struct {
	ID        int64 `db:"id" json:"id"`
	OrderID   int64 `db:"order_id" json:"order_id"`
	ProductID int64 `db:"product_id" json:"product_id"`
	Quantity  int   `db:"quantity" json:"quantity"`
	UnitPrice int64 `db:"unit_price" json:"unit_price"`
}

// OrderItemView is an order line with the product resolved
type OrderItemView struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
}

// OrderView is an order with product and address references resolved,
// as returned by the listing endpoints
type OrderView struct {
	ID          int64           `json:"id"`
	UserID      int64           `json:"user_id"`
	Items       []OrderItemView `json:"items"`
	Amount      int64           `json:"amount"`
	Address     Address         `json:"address"`
	PaymentType string          `json:"payment_type"`
	IsPaid      bool            `json:"is_paid"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ProcessedWebhookEvent records a gateway event id that has already been
// applied, so redelivered events short-circuit
type ProcessedWebhookEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
