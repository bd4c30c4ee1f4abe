package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"ecommerce-service/internal/gateway"
	"ecommerce-service/internal/models"
	"ecommerce-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReconcileStore is the persistence contract for applying webhook state
// transitions
type ReconcileStore interface {
	MarkOrderPaid(ctx context.Context, orderID int64) error
	DeleteOrder(ctx context.Context, orderID int64) error
	ClearUserCart(ctx context.Context, userID int64) error
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
}

// ReconciliationService maps verified payment-gateway webhook events back to
// local orders and applies the one-time state transition:
// Pending -> Paid on payment success, Pending -> Removed on payment failure.
// COD orders never enter this machine.
type ReconciliationService struct {
	store          ReconcileStore
	gateway        gateway.CheckoutGateway
	eventPublisher EventPublisher
	logger         *zap.Logger
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(
	store ReconcileStore,
	checkoutGateway gateway.CheckoutGateway,
	eventPublisher EventPublisher,
) *ReconciliationService {
	return &ReconciliationService{
		store:          store,
		gateway:        checkoutGateway,
		eventPublisher: eventPublisher,
		logger:         util.GetLogger(),
	}
}

// HandleEvent verifies a webhook delivery, resolves the order it refers to
// and applies the transition. A nil return means the event is acknowledged;
// the gateway redelivers on anything else, so every path here must tolerate
// re-delivery of the same event.
func (rs *ReconciliationService) HandleEvent(ctx context.Context, payload []byte, sigHeader string) error {
	ctx, span := util.StartSpan(ctx, "ReconciliationService.HandleEvent")
	defer span.End()

	// Verification runs over the exact bytes as received; the handler must
	// not re-serialize the body.
	event, err := rs.gateway.ConstructEvent(payload, sigHeader)
	if err != nil {
		util.WebhookRejectedTotal.Inc()
		rs.logger.Warn("Rejected webhook with invalid signature", zap.Error(err))
		return fmt.Errorf("%w: %v", models.ErrSignatureVerification, err)
	}

	util.WebhookEventsTotal.WithLabelValues(event.Type).Inc()

	// Unhandled event types are acknowledged without attempting session
	// resolution; their objects need not carry a payment intent.
	if event.Type != gateway.EventPaymentSucceeded && event.Type != gateway.EventPaymentFailed {
		rs.logger.Info("Ignoring webhook event type", zap.String("type", event.Type))
		return nil
	}

	processed, err := rs.store.IsEventProcessed(ctx, event.ID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		rs.logger.Info("Webhook event already processed", zap.String("event_id", event.ID))
		return nil
	}

	orderID, userID, err := rs.resolveOrder(ctx, event.PaymentIntentID)
	if err != nil {
		return err
	}

	switch event.Type {
	case gateway.EventPaymentSucceeded:
		if err := rs.applyPaid(ctx, event, orderID, userID); err != nil {
			return err
		}
	case gateway.EventPaymentFailed:
		if err := rs.applyRemoved(ctx, event, orderID, userID); err != nil {
			return err
		}
	}

	if err := rs.store.MarkEventProcessed(ctx, event.ID, event.Type); err != nil {
		rs.logger.Error("Failed to mark webhook event processed", zap.Error(err))
	}

	return nil
}

// resolveOrder maps a payment intent back to the order id and user id stored
// in the checkout session metadata. Exactly one session per payment intent is
// a documented precondition; zero or multiple is a resolution failure, not a
// guess.
func (rs *ReconciliationService) resolveOrder(ctx context.Context, paymentIntentID string) (int64, int64, error) {
	sessions, err := rs.gateway.SessionsByPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list sessions for payment intent %s: %w", paymentIntentID, err)
	}

	if len(sessions) != 1 {
		return 0, 0, fmt.Errorf("payment intent %s maps to %d sessions: %w",
			paymentIntentID, len(sessions), models.ErrSessionResolution)
	}

	orderID, err := strconv.ParseInt(sessions[0].Metadata["order_id"], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad order_id in session metadata: %w", models.ErrSessionResolution)
	}

	userID, err := strconv.ParseInt(sessions[0].Metadata["user_id"], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad user_id in session metadata: %w", models.ErrSessionResolution)
	}

	return orderID, userID, nil
}

// applyPaid marks the order paid and clears the user's cart. Marking is
// idempotent and a missing order (removed by an earlier failure event) is a
// benign no-op.
func (rs *ReconciliationService) applyPaid(ctx context.Context, event *gateway.Event, orderID, userID int64) error {
	if err := rs.store.MarkOrderPaid(ctx, orderID); err != nil {
		return fmt.Errorf("failed to mark order %d paid: %w", orderID, err)
	}

	if err := rs.store.ClearUserCart(ctx, userID); err != nil {
		rs.logger.Error("Failed to clear user cart",
			zap.Int64("user_id", userID),
			zap.Error(err))
	}

	util.OrdersReconciledTotal.WithLabelValues("paid").Inc()
	rs.logger.Info("Order reconciled as paid",
		zap.Int64("order_id", orderID),
		zap.String("payment_intent_id", event.PaymentIntentID))

	paidEvent := &models.OrderPaidEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderPaid,
			Timestamp: time.Now(),
		},
		OrderID:         orderID,
		UserID:          userID,
		PaymentIntentID: event.PaymentIntentID,
	}
	if err := rs.eventPublisher.PublishOrderPaid(ctx, paidEvent); err != nil {
		rs.logger.Error("Failed to publish OrderPaid event", zap.Error(err))
	}

	return nil
}

// applyRemoved deletes the order row. A missing order is a benign no-op.
func (rs *ReconciliationService) applyRemoved(ctx context.Context, event *gateway.Event, orderID, userID int64) error {
	if err := rs.store.DeleteOrder(ctx, orderID); err != nil {
		return fmt.Errorf("failed to delete order %d: %w", orderID, err)
	}

	util.OrdersReconciledTotal.WithLabelValues("removed").Inc()
	rs.logger.Warn("Order removed after payment failure",
		zap.Int64("order_id", orderID),
		zap.String("payment_intent_id", event.PaymentIntentID))

	cancelledEvent := &models.OrderCancelledEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderCancelled,
			Timestamp: time.Now(),
		},
		OrderID:         orderID,
		UserID:          userID,
		PaymentIntentID: event.PaymentIntentID,
		Reason:          "payment_failed",
	}
	if err := rs.eventPublisher.PublishOrderCancelled(ctx, cancelledEvent); err != nil {
		rs.logger.Error("Failed to publish OrderCancelled event", zap.Error(err))
	}

	return nil
}
