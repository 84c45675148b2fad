package models

import (
	"fmt"
	"strings"
	"time"
)

// Product represents a catalog entry
type Product struct {
	ID                  int64     `db:"id" json:"id"`
	Name                string    `db:"name" json:"name"`
	Price               int64     `db:"price" json:"price"`
	Active              bool      `db:"active" json:"active"`
	Note                string    `db:"note" json:"note"`
	RequiresAccountInfo bool      `db:"requires_account_info" json:"requires_account_info"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
}

// Order represents a committed purchase
type Order struct {
	ID            int64      `db:"id" json:"id"`
	UserID        int64      `db:"user_id" json:"user_id"`
	Username      string     `db:"username" json:"username"`
	ProductID     int64      `db:"product_id" json:"product_id"`
	ProductName   string     `db:"product_name" json:"product_name"`
	UnitPrice     int64      `db:"unit_price" json:"unit_price"`
	Qty           int        `db:"qty" json:"qty"`
	Subtotal      int64      `db:"subtotal" json:"subtotal"`
	Discount      int64      `db:"discount" json:"discount"`
	Fee           int64      `db:"fee" json:"fee"`
	Amount        int64      `db:"amount" json:"amount"`
	Note          string     `db:"note" json:"note"`
	PaymentMethod string     `db:"payment_method" json:"payment_method"`
	VoucherCode   *string    `db:"voucher_code" json:"voucher_code,omitempty"`
	Lane          Lane       `db:"lane" json:"lane"`
	Status        Status     `db:"status" json:"status"`
	ReferenceID   string     `db:"reference_id" json:"reference_id"`
	GatewaySID    string     `db:"gateway_sid" json:"gateway_sid,omitempty"`
	GatewayTrxID  string     `db:"gateway_trx_id" json:"gateway_trx_id,omitempty"`
	PayURL        string     `db:"pay_url" json:"pay_url,omitempty"`
	ProofFileID   *string    `db:"proof_file_id" json:"proof_file_id,omitempty"`
	ProofCaption  string     `db:"proof_caption" json:"proof_caption,omitempty"`
	AdminNote     string     `db:"admin_note" json:"admin_note,omitempty"`
	DecidedAt     *time.Time `db:"decided_at" json:"decided_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// AmountConsistent reports whether amount == subtotal - discount + fee.
func (o *Order) AmountConsistent() bool {
	return o.Subtotal == o.UnitPrice*int64(o.Qty) && o.Amount == o.Subtotal-o.Discount+o.Fee
}

// DiscountType is how a voucher reduces the subtotal
type DiscountType string

const (
	DiscountFixed   DiscountType = "fixed"
	DiscountPercent DiscountType = "percent"
)

// ParseDiscountType accepts the admin spellings of a discount type.
func ParseDiscountType(s string) (DiscountType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "fixed", "flat", "amount":
		return DiscountFixed, true
	case "percent", "percentage", "%":
		return DiscountPercent, true
	}
	return "", false
}

// Voucher represents a discount code. MaxUses 0 means unlimited.
type Voucher struct {
	ID           int64        `db:"id" json:"id"`
	Code         string       `db:"code" json:"code"`
	DiscountType DiscountType `db:"discount_type" json:"discount_type"`
	Value        int64        `db:"value" json:"value"`
	MaxUses      int          `db:"max_uses" json:"max_uses"`
	UsedCount    int          `db:"used_count" json:"used_count"`
	ExpiresOn    *time.Time   `db:"expires_on" json:"expires_on,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
}

// NormalizeVoucherCode is the canonical form used for case-insensitive lookups.
func NormalizeVoucherCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}

// ReferenceToken builds the externally shared order handle. It embeds the
// user id, the order id and the creation time.
func ReferenceToken(userID, orderID int64, at time.Time) string {
	return fmt.Sprintf("ORD-%d-%d-%s", userID, orderID, at.Format("20060102150405"))
}
