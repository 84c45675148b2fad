// Package checkout drives the per-user conversation that turns a product pick
// into a committed order.
//
// Flow is pure: it moves a Session between stages and never touches storage.
// Service wires a Flow to a SessionStore, the voucher ledger and the order
// committer, and serializes every step for a user behind the store's lock.
package checkout

import (
	"context"
	"time"
)

// Stage is where a session waits for the user's next input.
type Stage string

const (
	StageQuantity      Stage = "quantity"
	StageAccountInfo   Stage = "account_info"
	StageVoucher       Stage = "voucher"
	StagePaymentMethod Stage = "payment_method"
	StageReady         Stage = "ready"
)

// stageOrder is the strict forward order of stages.
var stageOrder = []Stage{StageQuantity, StageAccountInfo, StageVoucher, StagePaymentMethod, StageReady}

const (
	MinQty = 1
	MaxQty = 99
)

// Session is the transient checkout state of one user.
type Session struct {
	UserID              int64     `json:"user_id"`
	Username            string    `json:"username"`
	ProductID           int64     `json:"product_id"`
	ProductName         string    `json:"product_name"`
	UnitPrice           int64     `json:"unit_price"`
	RequiresAccountInfo bool      `json:"requires_account_info"`
	Qty                 int       `json:"qty"`
	Note                string    `json:"note"`
	VoucherCode         string    `json:"voucher_code,omitempty"`
	Discount            int64     `json:"discount"`
	PaymentMethod       string    `json:"payment_method,omitempty"`
	Stage               Stage     `json:"stage"`
	StartedAt           time.Time `json:"started_at"`
}

// Subtotal is unit price times quantity.
func (s *Session) Subtotal() int64 {
	return s.UnitPrice * int64(s.Qty)
}

// SessionStore keeps at most one session per user. Lock serializes all
// reads and writes for a user; the returned func releases it.
type SessionStore interface {
	Lock(ctx context.Context, userID int64) (func(), error)
	Get(ctx context.Context, userID int64) (*Session, error)
	Put(ctx context.Context, s *Session) error
	Delete(ctx context.Context, userID int64) error
}
