package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"auto-order/internal/models"
	"auto-order/internal/util"
)

// EventLedger remembers which events were already handled
type EventLedger interface {
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) (bool, error)
}

// Notifier delivers order news to chat users
type Notifier interface {
	NotifyUser(ctx context.Context, userID int64, event *models.OrderEvent) error
	NotifyAdmin(ctx context.Context, adminID int64, event *models.OrderEvent) error
}

// NotificationDispatcher turns order events into user and admin messages.
// Delivery is at-least-once: an event is marked processed only after every
// recipient was reached.
type NotificationDispatcher struct {
	ledger   EventLedger
	notifier Notifier
	auth     *Authorizer
	logger   *zap.Logger
}

// NewNotificationDispatcher creates a new notification dispatcher
func NewNotificationDispatcher(ledger EventLedger, notifier Notifier, auth *Authorizer) *NotificationDispatcher {
	return &NotificationDispatcher{
		ledger:   ledger,
		notifier: notifier,
		auth:     auth,
		logger:   util.GetLogger(),
	}
}

// HandleOrderEvent notifies the recipients of one order event
func (d *NotificationDispatcher) HandleOrderEvent(ctx context.Context, event *models.OrderEvent) error {
	ctx, span := util.StartSpan(ctx, "NotificationDispatcher.HandleOrderEvent")
	defer span.End()

	processed, err := d.ledger.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		d.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	notifyUser, notifyAdmins := recipients(event)
	var errs []error
	if notifyUser {
		errs = append(errs, d.send("user", func() error {
			return d.notifier.NotifyUser(ctx, event.UserID, event)
		}))
	}
	if notifyAdmins {
		for _, adminID := range d.auth.AdminIDs() {
			adminID := adminID
			errs = append(errs, d.send("admin", func() error {
				return d.notifier.NotifyAdmin(ctx, adminID, event)
			}))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to notify order %d: %w", event.OrderID, err)
	}

	if _, err := d.ledger.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		d.logger.Error("Failed to mark event processed", zap.Error(err))
	}

	d.logger.Info("Order event dispatched",
		zap.Int64("order_id", event.OrderID),
		zap.String("event_type", event.EventType))
	return nil
}

func (d *NotificationDispatcher) send(kind string, fn func() error) error {
	if err := fn(); err != nil {
		util.NotificationsSentTotal.WithLabelValues("failed").Inc()
		d.logger.Warn("Notification failed", zap.String("recipient", kind), zap.Error(err))
		return err
	}
	util.NotificationsSentTotal.WithLabelValues("sent").Inc()
	return nil
}

// recipients says who hears about an event
func recipients(event *models.OrderEvent) (user, admins bool) {
	switch event.EventType {
	case models.EventTypeOrderPaid:
		return true, true
	case models.EventTypeOrderProofSubmitted:
		return false, true
	case models.EventTypeOrderCancelled:
		// a gateway order cancelled before its payment was created failed
		// inside checkout, and the buyer got the reason in that reply
		if event.Lane == models.LaneGateway && event.PreviousStatus == models.StatusPending {
			return false, false
		}
		return true, false
	case models.EventTypeOrderRejected, models.EventTypeOrderDone, models.EventTypeOrderExpired:
		return true, false
	}
	return false, false
}
