package gateway

import (
	"net/url"
	"strings"

	"auto-order/internal/apperr"
	"auto-order/internal/models"
)

// Outcome is what a notify callback reports about a payment.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomePaid
	OutcomeExpired
)

func (o Outcome) String() string {
	switch o {
	case OutcomePaid:
		return "paid"
	case OutcomeExpired:
		return "expired"
	}
	return "pending"
}

// Signal maps the outcome onto the order state machine.
func (o Outcome) Signal() models.Signal {
	switch o {
	case OutcomePaid:
		return models.SignalGatewayPaid
	case OutcomeExpired:
		return models.SignalGatewayExpired
	}
	return models.SignalGatewayPending
}

// Notification is the form body of a notify callback.
type Notification struct {
	TrxID       string
	Status      string
	StatusCode  string
	SID         string
	ReferenceID string
}

// ParseNotification reads the callback form. Only the reference is required.
func ParseNotification(form url.Values) (Notification, error) {
	n := Notification{
		TrxID:       strings.TrimSpace(form.Get("trx_id")),
		Status:      strings.TrimSpace(form.Get("status")),
		StatusCode:  strings.TrimSpace(form.Get("status_code")),
		SID:         strings.TrimSpace(form.Get("sid")),
		ReferenceID: strings.TrimSpace(form.Get("reference_id")),
	}
	if n.ReferenceID == "" {
		return n, apperr.Validation.New("missing reference_id")
	}
	return n, nil
}

// Outcome applies the fixed mapping: code 1 or "berhasil" is paid, code -2
// or "expired" is expired, anything else is pending.
func (n Notification) Outcome() Outcome {
	status := strings.ToLower(n.Status)
	switch {
	case n.StatusCode == "1" || status == "berhasil":
		return OutcomePaid
	case n.StatusCode == "-2" || status == "expired":
		return OutcomeExpired
	}
	return OutcomePending
}

// ReplayKey identifies one delivery of one status for one transaction.
func (n Notification) ReplayKey() string {
	return "ipaymu:" + n.ReferenceID + ":" + n.TrxID + ":" + n.StatusCode + ":" + strings.ToLower(n.Status)
}
