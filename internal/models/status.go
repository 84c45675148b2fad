package models

import (
	"fmt"

	"auto-order/internal/apperr"
)

// Lane is one of the two status paths an order can follow.
type Lane string

const (
	// LaneGateway orders are settled by the payment gateway callback.
	LaneGateway Lane = "GATEWAY"
	// LaneManual orders are settled by an admin after reviewing a proof image.
	LaneManual Lane = "MANUAL"
)

// Status is the order status.
type Status string

const (
	StatusPending        Status = "PENDING"
	StatusPaymentCreated Status = "PAYMENT_CREATED"
	StatusWaitingPayment Status = "WAITING_PAYMENT"
	StatusProofSubmitted Status = "PROOF_SUBMITTED"
	StatusPaid           Status = "PAID"
	StatusDone           Status = "DONE"
	StatusCancelled      Status = "CANCELLED"
	StatusExpired        Status = "EXPIRED"
	StatusRejected       Status = "REJECTED"
)

// Signal is an external input that may move an order.
type Signal int

const (
	SignalPaymentCreated Signal = iota + 1
	SignalGatewayPaid
	SignalGatewayExpired
	SignalGatewayPending
	SignalProofSubmitted
	SignalApprove
	SignalReject
	SignalMarkDone
	SignalCancel
)

func (s Signal) String() string {
	switch s {
	case SignalPaymentCreated:
		return "payment_created"
	case SignalGatewayPaid:
		return "gateway_paid"
	case SignalGatewayExpired:
		return "gateway_expired"
	case SignalGatewayPending:
		return "gateway_pending"
	case SignalProofSubmitted:
		return "proof_submitted"
	case SignalApprove:
		return "approve"
	case SignalReject:
		return "reject"
	case SignalMarkDone:
		return "mark_done"
	case SignalCancel:
		return "cancel"
	}
	return fmt.Sprintf("signal(%d)", int(s))
}

// Initial returns the status a freshly created order starts in.
func (l Lane) Initial() Status {
	if l == LaneManual {
		return StatusWaitingPayment
	}
	return StatusPending
}

// Valid reports whether l is a known lane.
func (l Lane) Valid() bool {
	return l == LaneGateway || l == LaneManual
}

// IsTerminal reports whether no signal can move the order any more.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusDone, StatusCancelled, StatusExpired, StatusRejected:
		return true
	}
	return false
}

// Settled reports whether the order has been paid (PAID or DONE).
func (s Status) Settled() bool {
	return s == StatusPaid || s == StatusDone
}

// open reports whether the order still waits for money.
func (s Status) open(l Lane) bool {
	switch l {
	case LaneGateway:
		return s == StatusPending || s == StatusPaymentCreated
	case LaneManual:
		return s == StatusWaitingPayment || s == StatusProofSubmitted
	}
	return false
}

// Transition computes the status that signal moves an order in lane from status
// from. A Conflict error means the signal is a no-op: the order already advanced
// past the target, sits in a terminal state, or the signal does not apply to the
// lane. Callers treat Conflict as success without change.
func Transition(lane Lane, from Status, signal Signal) (Status, error) {
	if !lane.Valid() {
		return from, fmt.Errorf("unknown lane %q", lane)
	}
	if from.IsTerminal() {
		return from, apperr.Conflict.New("order is %s, %s ignored", from, signal)
	}

	switch signal {
	case SignalPaymentCreated:
		if lane == LaneGateway && from == StatusPending {
			return StatusPaymentCreated, nil
		}

	case SignalGatewayPaid:
		if lane == LaneGateway && from.open(lane) {
			return StatusPaid, nil
		}

	case SignalGatewayExpired:
		if lane == LaneGateway && from.open(lane) {
			return StatusExpired, nil
		}

	case SignalGatewayPending:
		// pending notifications never move an order

	case SignalProofSubmitted:
		if lane == LaneManual && from.open(lane) {
			return StatusProofSubmitted, nil
		}

	case SignalApprove:
		if from.open(lane) {
			return StatusPaid, nil
		}

	case SignalReject:
		if lane == LaneManual && from.open(lane) {
			return StatusRejected, nil
		}

	case SignalMarkDone:
		if from == StatusPaid {
			return StatusDone, nil
		}

	case SignalCancel:
		if from.open(lane) {
			return StatusCancelled, nil
		}

	default:
		return from, fmt.Errorf("unknown signal %d", int(signal))
	}

	return from, apperr.Conflict.New("order is %s, %s ignored", from, signal)
}
