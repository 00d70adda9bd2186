package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"fulfillment-service/internal/models"

	"github.com/segmentio/kafka-go"
)

// EventPublisher handles publishing domain events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOrderCreated publishes OrderCreated event
func (ep *EventPublisher) PublishOrderCreated(ctx context.Context, event *models.OrderCreatedEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishOrderTransitioned publishes OrderTransitioned event
func (ep *EventPublisher) PublishOrderTransitioned(ctx context.Context, event *models.OrderTransitionedEvent) error {
	key := fmt.Sprintf("order-%d", event.OrderID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// PublishDepositRecorded publishes DepositRecorded event
func (ep *EventPublisher) PublishDepositRecorded(ctx context.Context, event *models.DepositRecordedEvent) error {
	key := fmt.Sprintf("counterparty-%d", event.CounterpartyID)
	return ep.producer.PublishEvent(ctx, key, event)
}

// EventHandler handles incoming events
type EventHandler struct {
	onOrderTransitioned func(context.Context, *models.OrderTransitionedEvent) error
	onDepositRecorded   func(context.Context, *models.DepositRecordedEvent) error
}

// NewEventHandler creates a new event handler
func NewEventHandler() *EventHandler {
	return &EventHandler{}
}

// OnOrderTransitioned registers a handler for OrderTransitioned events
func (eh *EventHandler) OnOrderTransitioned(handler func(context.Context, *models.OrderTransitionedEvent) error) {
	eh.onOrderTransitioned = handler
}

// OnDepositRecorded registers a handler for DepositRecorded events
func (eh *EventHandler) OnDepositRecorded(handler func(context.Context, *models.DepositRecordedEvent) error) {
	eh.onDepositRecorded = handler
}

// HandleMessage routes messages to appropriate handlers
func (eh *EventHandler) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var baseEvent models.BaseEvent
	if err := json.Unmarshal(msg.Value, &baseEvent); err != nil {
		return fmt.Errorf("failed to unmarshal base event: %w", err)
	}

	log.Printf("Handling event: type=%s, id=%s", baseEvent.EventType, baseEvent.EventID)

	switch baseEvent.EventType {
	case models.EventTypeOrderTransitioned:
		if eh.onOrderTransitioned != nil {
			var event models.OrderTransitionedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal OrderTransitioned event: %w", err)
			}
			return eh.onOrderTransitioned(ctx, &event)
		}

	case models.EventTypeDepositRecorded:
		if eh.onDepositRecorded != nil {
			var event models.DepositRecordedEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				return fmt.Errorf("failed to unmarshal DepositRecorded event: %w", err)
			}
			return eh.onDepositRecorded(ctx, &event)
		}

	default:
		log.Printf("Unhandled event type: %s", baseEvent.EventType)
	}

	return nil
}
