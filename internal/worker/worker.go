package worker

import (
	"context"
	"log"

	"ecommerce-service/internal/broker"
	"ecommerce-service/internal/models"
	"ecommerce-service/internal/util"

	"go.uber.org/zap"
)

// NotificationWorker consumes order lifecycle events and emits customer
// notifications. Delivery is currently a structured log line; this is the
// seam where email/push transports plug in.
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(consumer *broker.Consumer) *NotificationWorker {
	w := &NotificationWorker{
		consumer: consumer,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderPlaced(w.notifyOrderPlaced)
	eventHandler.OnOrderPaid(w.notifyOrderPaid)
	eventHandler.OnOrderCancelled(w.notifyOrderCancelled)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	log.Println("Starting notification worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	log.Println("Stopping notification worker...")
	return w.consumer.Close()
}

func (w *NotificationWorker) notifyOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error {
	w.logger.Info("Order confirmation notification",
		zap.Int64("order_id", event.OrderID),
		zap.Int64("user_id", event.UserID),
		zap.String("payment_type", event.PaymentType),
		zap.Int64("amount", event.Amount))
	return nil
}

func (w *NotificationWorker) notifyOrderPaid(ctx context.Context, event *models.OrderPaidEvent) error {
	w.logger.Info("Payment confirmation notification",
		zap.Int64("order_id", event.OrderID),
		zap.Int64("user_id", event.UserID))
	return nil
}

func (w *NotificationWorker) notifyOrderCancelled(ctx context.Context, event *models.OrderCancelledEvent) error {
	w.logger.Info("Order cancellation notification",
		zap.Int64("order_id", event.OrderID),
		zap.Int64("user_id", event.UserID),
		zap.String("reason", event.Reason))
	return nil
}
