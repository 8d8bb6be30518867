package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"market-service/internal/models"
	"market-service/internal/util"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// EventWriter delivers a keyed event; *Producer is the Kafka implementation
type EventWriter interface {
	PublishEvent(ctx context.Context, key string, event interface{}) error
}

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer EventWriter
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer EventWriter) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.NewString(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
	}
}

func orderKey(orderID int64) string { return fmt.Sprintf("order-%d", orderID) }

func appointmentKey(id int64) string { return fmt.Sprintf("appointment-%d", id) }

// PublishOrderCreated publishes OrderCreated event
func (ep *EventPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	event.BaseEvent = newBaseEvent(models.EventTypeOrderCreated)
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishOrderConfirmed publishes OrderConfirmed event
func (ep *EventPublisher) PublishOrderConfirmed(ctx context.Context, event *models.OrderConfirmedEvent) error {
	event.BaseEvent = newBaseEvent(models.EventTypeOrderConfirmed)
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishOrderPaymentFailed publishes OrderPaymentFailed event
func (ep *EventPublisher) PublishOrderPaymentFailed(ctx context.Context, event *models.OrderPaymentFailedEvent) error {
	event.BaseEvent = newBaseEvent(models.EventTypeOrderPaymentFailed)
	return ep.producer.PublishEvent(ctx, orderKey(event.OrderID), event)
}

// PublishAppointmentBooked publishes AppointmentBooked event
func (ep *EventPublisher) PublishAppointmentBooked(ctx context.Context, event *models.AppointmentEvent) error {
	event.BaseEvent = newBaseEvent(models.EventTypeAppointmentBooked)
	return ep.producer.PublishEvent(ctx, appointmentKey(event.AppointmentID), event)
}

// PublishAppointmentCancelled publishes AppointmentCancelled event
func (ep *EventPublisher) PublishAppointmentCancelled(ctx context.Context, event *models.AppointmentEvent) error {
	event.BaseEvent = newBaseEvent(models.EventTypeAppointmentCancelled)
	return ep.producer.PublishEvent(ctx, appointmentKey(event.AppointmentID), event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onOrderCreated   func(context.Context, *models.OrderCreatedEvent) error
	onOrderConfirmed func(context.Context, *models.OrderConfirmedEvent) error
	onPaymentFailed  func(context.Context, *models.OrderPaymentFailedEvent) error
	onAppointment    func(context.Context, *models.AppointmentEvent) error
	logger           *zap.Logger
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{logger: util.GetLogger()}
}

// OnOrderCreated registers a handler for OrderCreated events
func (eh *EventHandler) OnOrderCreated(handler func(context.Context, *models.OrderCreatedEvent) error) {
	eh.onOrderCreated = handler
}

// OnOrderConfirmed registers a handler for OrderConfirmed events
func (eh *EventHandler) OnOrderConfirmed(handler func(context.Context, *models.OrderConfirmedEvent) error) {
	eh.onOrderConfirmed = handler
}

// OnOrderPaymentFailed registers a handler for OrderPaymentFailed events
func (eh *EventHandler) OnOrderPaymentFailed(handler func(context.Context, *models.OrderPaymentFailedEvent) error) {
	eh.onPaymentFailed = handler
}

// OnAppointment registers a handler for both appointment event types
func (eh *EventHandler) OnAppointment(handler func(context.Context, *models.AppointmentEvent) error) {
	eh.onAppointment = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	eh.logger.Debug("Handling event",
		zap.String("type", baseEvent.EventType),
		zap.String("event_id", baseEvent.EventID))

	switch baseEvent.EventType {
	case models.EventTypeOrderCreated:
		if eh.onOrderCreated != nil {
			var event models.OrderCreatedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderCreated event: %w", err)
			}
			return eh.onOrderCreated(ctx, &event)
		}

	case models.EventTypeOrderConfirmed:
		if eh.onOrderConfirmed != nil {
			var event models.OrderConfirmedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderConfirmed event: %w", err)
			}
			return eh.onOrderConfirmed(ctx, &event)
		}

	case models.EventTypeOrderPaymentFailed:
		if eh.onPaymentFailed != nil {
			var event models.OrderPaymentFailedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderPaymentFailed event: %w", err)
			}
			return eh.onPaymentFailed(ctx, &event)
		}

	case models.EventTypeAppointmentBooked, models.EventTypeAppointmentCancelled:
		if eh.onAppointment != nil {
			var event models.AppointmentEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal %s event: %w", baseEvent.EventType, err)
			}
			return eh.onAppointment(ctx, &event)
		}

	default:
		eh.logger.Warn("Unhandled event type", zap.String("type", baseEvent.EventType))
	}

	return nil
}
