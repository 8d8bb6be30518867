package worker

import (
	"context"

	"market-service/internal/broker"
	"market-service/internal/models"
	"market-service/internal/util"

	"go.uber.org/zap"
)

// HomeFeedInvalidator drops a user's cached home recommendations
type HomeFeedInvalidator interface {
	InvalidateHome(ctx context.Context, userID int64) error
}

// EventWorker consumes market events in the background
type EventWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	homeFeed     HomeFeedInvalidator
	logger       *zap.Logger
}

// NewEventWorker creates a new event worker
func NewEventWorker(consumer *broker.Consumer, homeFeed HomeFeedInvalidator) *EventWorker {
	w := &EventWorker{
		consumer: consumer,
		homeFeed: homeFeed,
		logger:   util.GetLogger(),
	}
	w.eventHandler = w.newHandler()
	return w
}

func (w *EventWorker) newHandler() *broker.EventHandler {
	h := broker.NewEventHandler()
	h.OnOrderCreated(w.handleOrderCreated)
	h.OnOrderConfirmed(w.handleOrderConfirmed)
	h.OnOrderPaymentFailed(w.handlePaymentFailed)
	h.OnAppointment(w.handleAppointment)
	return h
}

// Start starts the worker; it blocks until ctx is cancelled
func (w *EventWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting event worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *EventWorker) Stop() error {
	w.logger.Info("Stopping event worker")
	return w.consumer.Close()
}

func (w *EventWorker) handleOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	util.EventsConsumedTotal.WithLabelValues(event.EventType).Inc()
	w.logger.Info("Order created",
		zap.Int64("order_id", event.OrderID),
		zap.Int64("user_id", event.UserID),
		zap.String("total_amount", event.TotalAmount.StringFixed(2)),
		zap.Int("items", len(event.Items)))
	return nil
}

// handleOrderConfirmed refreshes the buyer's home feed, which excludes
// purchased products
func (w *EventWorker) handleOrderConfirmed(ctx context.Context, event *models.OrderConfirmedEvent) error {
	ctx, span := util.StartSpan(ctx, "EventWorker.HandleOrderConfirmed")
	defer span.End()

	util.EventsConsumedTotal.WithLabelValues(event.EventType).Inc()

	if err := w.homeFeed.InvalidateHome(ctx, event.UserID); err != nil {
		w.logger.Warn("Failed to invalidate home recommendations",
			zap.Int64("user_id", event.UserID),
			zap.Error(err))
		return util.RecordError(span, err)
	}

	w.logger.Info("Order confirmed",
		zap.Int64("order_id", event.OrderID),
		zap.Int64("user_id", event.UserID),
		zap.Bool("dev_mode", event.DevMode))
	return nil
}

func (w *EventWorker) handlePaymentFailed(ctx context.Context, event *models.OrderPaymentFailedEvent) error {
	util.EventsConsumedTotal.WithLabelValues(event.EventType).Inc()
	w.logger.Warn("Order payment failed",
		zap.Int64("order_id", event.OrderID),
		zap.Int64("user_id", event.UserID),
		zap.String("reason", event.Reason))
	return nil
}

func (w *EventWorker) handleAppointment(ctx context.Context, event *models.AppointmentEvent) error {
	util.EventsConsumedTotal.WithLabelValues(event.EventType).Inc()
	w.logger.Info("Appointment event",
		zap.String("type", event.EventType),
		zap.Int64("appointment_id", event.AppointmentID),
		zap.Int64("shop_id", event.ShopID),
		zap.String("date", event.Date),
		zap.String("time", event.Time))
	return nil
}
