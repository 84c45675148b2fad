package bot

import (
	"context"

	"auto-order/internal/models"
)

// Notifier delivers order events as chat messages. Private chats share the
// user's id, so a user id is also the chat id.
type Notifier struct {
	sender Sender
}

// NewNotifier creates a notifier on top of a chat sender
func NewNotifier(sender Sender) *Notifier {
	return &Notifier{sender: sender}
}

// NotifyUser tells the buyer about their order
func (n *Notifier) NotifyUser(ctx context.Context, userID int64, event *models.OrderEvent) error {
	return n.sender.SendText(ctx, userID, userNotice(event), nil)
}

// NotifyAdmin tells an admin about an order. Proof submissions carry the
// proof photo and the decision buttons.
func (n *Notifier) NotifyAdmin(ctx context.Context, adminID int64, event *models.OrderEvent) error {
	text := adminNotice(event)
	kb := decisionKeyboard(&models.Order{ID: event.OrderID, Lane: event.Lane, Status: event.Status})

	if event.EventType == models.EventTypeOrderProofSubmitted && event.ProofFileID != "" {
		return n.sender.SendPhoto(ctx, adminID, event.ProofFileID, text, kb)
	}
	return n.sender.SendText(ctx, adminID, text, kb)
}
