package store

import (
	"context"

	"ecommerce-service/internal/models"
)

// placedFilter keeps unpaid online orders out of listings. COD orders are
// actionable regardless of the paid flag.
const placedFilter = "(payment_type = 'COD' OR is_paid = true)"

// CreateOrder creates a new order
func (s *Store) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (user_id, amount, address_id, payment_type, is_paid)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	return s.db.GetContext(ctx, order, query,
		order.UserID, order.Amount, order.AddressID, order.PaymentType, order.IsPaid)
}

// CreateOrderItem creates a new order item
func (s *Store) CreateOrderItem(ctx context.Context, item *models.OrderItem) error {
	query := `
		INSERT INTO order_items (order_id, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	return s.db.GetContext(ctx, &item.ID, query,
		item.OrderID, item.ProductID, item.Quantity, item.UnitPrice)
}

// MarkOrderPaid sets the paid flag on an order. Setting it repeatedly is a
// no-op, and a missing order (already removed by a failure event) is not an
// error, so redelivered webhook events stay safe.
func (s *Store) MarkOrderPaid(ctx context.Context, orderID int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE orders SET is_paid = true, updated_at = NOW() WHERE id = $1",
		orderID)
	return err
}

// DeleteOrder removes an order and its items. A missing order is not an error.
func (s *Store) DeleteOrder(ctx context.Context, orderID int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM order_items WHERE order_id = $1", orderID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM orders WHERE id = $1", orderID); err != nil {
		return err
	}

	return tx.Commit()
}

// ListPlacedOrdersByUser retrieves a user's placed orders, newest first
func (s *Store) ListPlacedOrdersByUser(ctx context.Context, userID int64) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE user_id = $1 AND "+placedFilter+" ORDER BY created_at DESC",
		userID)
	return orders, err
}

// ListPlacedOrders retrieves all placed orders, newest first
func (s *Store) ListPlacedOrders(ctx context.Context) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE "+placedFilter+" ORDER BY created_at DESC")
	return orders, err
}

// GetOrderItemViews retrieves an order's lines with products resolved
func (s *Store) GetOrderItemViews(ctx context.Context, orderID int64) ([]models.OrderItemView, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT p.id, p.sku, p.name, p.price, p.created_at, oi.quantity
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = $1
		ORDER BY oi.id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var views []models.OrderItemView
	for rows.Next() {
		var v models.OrderItemView
		if err := rows.Scan(&v.Product.ID, &v.Product.SKU, &v.Product.Name,
			&v.Product.Price, &v.Product.CreatedAt, &v.Quantity); err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

// IsEventProcessed checks if a gateway webhook event has been applied
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_webhook_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed records a gateway webhook event as applied
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_webhook_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
