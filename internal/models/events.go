package models

import "time"

// Event types
const (
	EventTypeOrderCreated        = "ORDER_CREATED"
	EventTypeOrderPaymentCreated = "ORDER_PAYMENT_CREATED"
	EventTypeOrderProofSubmitted = "ORDER_PROOF_SUBMITTED"
	EventTypeOrderPaid           = "ORDER_PAID"
	EventTypeOrderRejected       = "ORDER_REJECTED"
	EventTypeOrderDone           = "ORDER_DONE"
	EventTypeOrderCancelled      = "ORDER_CANCELLED"
	EventTypeOrderExpired        = "ORDER_EXPIRED"
)

// EventTypeFor maps the status an order just entered to the event announcing it.
func EventTypeFor(status Status) (string, bool) {
	switch status {
	case StatusPaymentCreated:
		return EventTypeOrderPaymentCreated, true
	case StatusProofSubmitted:
		return EventTypeOrderProofSubmitted, true
	case StatusPaid:
		return EventTypeOrderPaid, true
	case StatusRejected:
		return EventTypeOrderRejected, true
	case StatusDone:
		return EventTypeOrderDone, true
	case StatusCancelled:
		return EventTypeOrderCancelled, true
	case StatusExpired:
		return EventTypeOrderExpired, true
	}
	return "", false
}

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderEvent is published whenever an order is created or changes status
type OrderEvent struct {
	BaseEvent
	OrderID        int64  `json:"order_id"`
	UserID         int64  `json:"user_id"`
	Username       string `json:"username"`
	ReferenceID    string `json:"reference_id"`
	ProductName    string `json:"product_name"`
	Qty            int    `json:"qty"`
	Amount         int64  `json:"amount"`
	PaymentMethod  string `json:"payment_method"`
	Lane           Lane   `json:"lane"`
	Status         Status `json:"status"`
	PreviousStatus Status `json:"previous_status,omitempty"`
	PayURL         string `json:"pay_url,omitempty"`
	ProofFileID    string `json:"proof_file_id,omitempty"`
	ProofCaption   string `json:"proof_caption,omitempty"`
	AdminNote      string `json:"admin_note,omitempty"`
	GatewayTrxID   string `json:"gateway_trx_id,omitempty"`
}
