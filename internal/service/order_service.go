package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ecommerce-service/internal/gateway"
	"ecommerce-service/internal/models"
	"ecommerce-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderStore is the order persistence contract used by the placement and
// query operations
type OrderStore interface {
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateOrderItem(ctx context.Context, item *models.OrderItem) error
	ListPlacedOrdersByUser(ctx context.Context, userID int64) ([]models.Order, error)
	ListPlacedOrders(ctx context.Context) ([]models.Order, error)
	GetOrderItemViews(ctx context.Context, orderID int64) ([]models.OrderItemView, error)
	GetAddressByID(ctx context.Context, id int64) (*models.Address, error)
}

// EventPublisher publishes order lifecycle events. Publish failures are
// logged, never surfaced to the caller.
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error
	PublishOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error
}

// OrderItemRequest represents one line of a placement request
type OrderItemRequest struct {
	ProductID int64 `json:"product" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,min=1"`
}

// PlaceOrderRequest represents an order placement request body
type PlaceOrderRequest struct {
	Items     []OrderItemRequest `json:"items" binding:"required,min=1"`
	AddressID int64              `json:"address" binding:"required"`
}

// OrderService handles order placement and queries
type OrderService struct {
	store          OrderStore
	pricing        *PricingService
	gateway        gateway.CheckoutGateway
	eventPublisher EventPublisher
	successPath    string
	cancelPath     string
	logger         *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	store OrderStore,
	pricing *PricingService,
	checkoutGateway gateway.CheckoutGateway,
	eventPublisher EventPublisher,
	successPath, cancelPath string,
) *OrderService {
	return &OrderService{
		store:          store,
		pricing:        pricing,
		gateway:        checkoutGateway,
		eventPublisher: eventPublisher,
		successPath:    successPath,
		cancelPath:     cancelPath,
		logger:         util.GetLogger(),
	}
}

// PlaceCOD places a cash-on-delivery order. The order is actionable
// immediately; no checkout session is involved.
func (s *OrderService) PlaceCOD(ctx context.Context, userID int64, req *PlaceOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.PlaceCOD")
	defer span.End()

	if err := validatePlacement(req); err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_input").Inc()
		return nil, err
	}

	order, _, err := s.persistOrder(ctx, userID, req, models.PaymentTypeCOD)
	if err != nil {
		return nil, err
	}

	util.OrdersPlacedTotal.WithLabelValues(models.PaymentTypeCOD).Inc()
	s.logger.Info("COD order placed",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", userID),
		zap.Int64("amount", order.Amount))

	return order, nil
}

// PlaceOnline places an online-payment order and returns the checkout
// session redirect URL. The order row is persisted before the session is
// requested; if session creation fails, the pending row is left for the
// webhook failure path or administrative cleanup to resolve.
func (s *OrderService) PlaceOnline(ctx context.Context, userID int64, req *PlaceOrderRequest, origin string) (string, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.PlaceOnline")
	defer span.End()

	if err := validatePlacement(req); err != nil {
		util.OrdersFailedTotal.WithLabelValues("invalid_input").Inc()
		return "", err
	}

	order, products, err := s.persistOrder(ctx, userID, req, models.PaymentTypeOnline)
	if err != nil {
		return "", err
	}

	util.OrdersPlacedTotal.WithLabelValues(models.PaymentTypeOnline).Inc()

	lineItems := make([]gateway.LineItem, 0, len(req.Items))
	for _, item := range req.Items {
		product := products[item.ProductID]
		lineItems = append(lineItems, gateway.LineItem{
			Name:       product.Name,
			UnitAmount: UnitAmountWithTax(product.Price),
			Quantity:   int64(item.Quantity),
		})
	}

	session, err := s.gateway.CreateSession(ctx, gateway.SessionRequest{
		LineItems:  lineItems,
		SuccessURL: annotateURL(origin+s.successPath, "order", strconv.FormatInt(order.ID, 10)),
		CancelURL:  origin + s.cancelPath,
		Metadata: map[string]string{
			"order_id": strconv.FormatInt(order.ID, 10),
			"user_id":  strconv.FormatInt(userID, 10),
		},
	})
	if err != nil {
		util.CheckoutSessionFailuresTotal.Inc()
		s.logger.Error("Checkout session creation failed, pending order left for reconciliation",
			zap.Int64("order_id", order.ID),
			zap.Error(err))
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}

	util.CheckoutSessionsCreatedTotal.Inc()
	s.logger.Info("Online order placed",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", userID),
		zap.String("session_id", session.ID))

	return session.URL, nil
}

// persistOrder quotes the items and writes the order and its lines.
// The quote runs first so an unknown product short-circuits before any write.
func (s *OrderService) persistOrder(ctx context.Context, userID int64, req *PlaceOrderRequest, paymentType string) (*models.Order, map[int64]*models.Product, error) {
	total, products, err := s.pricing.Quote(ctx, req.Items)
	if err != nil {
		util.OrdersFailedTotal.WithLabelValues("pricing").Inc()
		return nil, nil, err
	}

	order := &models.Order{
		UserID:      userID,
		Amount:      total,
		AddressID:   req.AddressID,
		PaymentType: paymentType,
		IsPaid:      false,
	}

	if err := s.store.CreateOrder(ctx, order); err != nil {
		util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		return nil, nil, fmt.Errorf("failed to create order: %w", err)
	}

	eventItems := make([]models.OrderItemData, 0, len(req.Items))
	for _, item := range req.Items {
		product := products[item.ProductID]
		orderItem := &models.OrderItem{
			OrderID:   order.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: product.Price,
		}

		if err := s.store.CreateOrderItem(ctx, orderItem); err != nil {
			return nil, nil, fmt.Errorf("failed to create order item: %w", err)
		}

		eventItems = append(eventItems, models.OrderItemData{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: product.Price,
		})
	}

	event := &models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderPlaced,
			Timestamp: time.Now(),
		},
		OrderID:     order.ID,
		UserID:      userID,
		Amount:      total,
		PaymentType: paymentType,
		Items:       eventItems,
	}

	if err := s.eventPublisher.PublishOrderPlaced(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderPlaced event", zap.Error(err))
	}

	return order, products, nil
}

// ListUserOrders returns a user's placed orders with products and address
// resolved, newest first
func (s *OrderService) ListUserOrders(ctx context.Context, userID int64) ([]models.OrderView, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListUserOrders")
	defer span.End()

	orders, err := s.store.ListPlacedOrdersByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	return s.resolveOrders(ctx, orders)
}

// ListAllOrders returns every placed order with products and address
// resolved, newest first
func (s *OrderService) ListAllOrders(ctx context.Context) ([]models.OrderView, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ListAllOrders")
	defer span.End()

	orders, err := s.store.ListPlacedOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	return s.resolveOrders(ctx, orders)
}

func (s *OrderService) resolveOrders(ctx context.Context, orders []models.Order) ([]models.OrderView, error) {
	views := make([]models.OrderView, 0, len(orders))
	for _, order := range orders {
		items, err := s.store.GetOrderItemViews(ctx, order.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve items for order %d: %w", order.ID, err)
		}

		address, err := s.store.GetAddressByID(ctx, order.AddressID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve address for order %d: %w", order.ID, err)
		}

		views = append(views, models.OrderView{
			ID:          order.ID,
			UserID:      order.UserID,
			Items:       items,
			Amount:      order.Amount,
			Address:     *address,
			PaymentType: order.PaymentType,
			IsPaid:      order.IsPaid,
			CreatedAt:   order.CreatedAt,
		})
	}
	return views, nil
}

func validatePlacement(req *PlaceOrderRequest) error {
	if req == nil || len(req.Items) == 0 || req.AddressID == 0 {
		return models.ErrInvalidOrder
	}
	for _, item := range req.Items {
		if item.Quantity < 1 {
			return models.ErrInvalidOrder
		}
	}
	return nil
}

func annotateURL(base, key, value string) string {
	sep := "?"
	if strings.Contains(base, "?") {
		sep = "&"
	}
	return base + sep + key + "=" + value
}
