package worker

import (
	"context"

	"go.uber.org/zap"

	"auto-order/internal/broker"
	"auto-order/internal/service"
	"auto-order/internal/util"
)

// NotificationWorker consumes order events and fans them out to chat users
type NotificationWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	logger       *zap.Logger
}

// NewNotificationWorker creates a new notification worker
func NewNotificationWorker(
	consumer *broker.Consumer,
	dispatcher *service.NotificationDispatcher,
) *NotificationWorker {
	eventHandler := broker.NewEventHandler()
	eventHandler.OnOrderEvent(dispatcher.HandleOrderEvent)

	return &NotificationWorker{
		consumer:     consumer,
		eventHandler: eventHandler,
		logger:       util.GetLogger(),
	}
}

// Start starts the worker
func (w *NotificationWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting notification worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *NotificationWorker) Stop() error {
	w.logger.Info("Stopping notification worker")
	return w.consumer.Close()
}
