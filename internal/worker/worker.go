package worker

import (
	"context"
	"log"

	"fulfillment-service/internal/broker"
	"fulfillment-service/internal/service"
)

// SnapshotWorker refreshes the Redis read snapshots from committed
// fulfillment events.
type SnapshotWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
}

// NewSnapshotWorker creates a new snapshot worker
func NewSnapshotWorker(
	consumer *broker.Consumer,
	cache *service.SnapshotCache,
) *SnapshotWorker {
	eventHandler := broker.NewEventHandler()

	eventHandler.OnOrderTransitioned(cache.ApplyTransition)
	eventHandler.OnDepositRecorded(cache.ApplyDeposit)

	return &SnapshotWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
	}
}

// Start starts the worker
func (w *SnapshotWorker) Start(ctx context.Context) error {
	log.Println("Starting snapshot worker...")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *SnapshotWorker) Stop() error {
	log.Println("Stopping snapshot worker...")
	return w.consumer.Close()
}
