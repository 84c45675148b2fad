// Package pricing computes order totals in whole Rupiah.
//
// Amounts are integer minor units. The discount is always applied to the
// subtotal before the payment fee is added.
package pricing

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"auto-order/internal/models"
)

// Breakdown is the priced result of a checkout
type Breakdown struct {
	Subtotal int64 `json:"subtotal"`
	Discount int64 `json:"discount"`
	Fee      int64 `json:"fee"`
	Total    int64 `json:"total"`
}

// Price computes subtotal, clamped discount, fee and total.
func Price(unitPrice int64, qty int, discount, fee int64) Breakdown {
	subtotal := unitPrice * int64(qty)
	if subtotal < 0 {
		subtotal = 0
	}
	discount = clamp(discount, 0, subtotal)
	if fee < 0 {
		fee = 0
	}
	return Breakdown{
		Subtotal: subtotal,
		Discount: discount,
		Fee:      fee,
		Total:    subtotal - discount + fee,
	}
}

// PercentDiscount returns floor(subtotal * pct / 100) with pct clamped to [0, 100].
func PercentDiscount(subtotal, pct int64) int64 {
	if subtotal <= 0 {
		return 0
	}
	return subtotal * clamp(pct, 0, 100) / 100
}

// FixedDiscount returns min(subtotal, value).
func FixedDiscount(subtotal, value int64) int64 {
	return clamp(value, 0, subtotal)
}

// Discount computes what a voucher takes off the given subtotal.
func Discount(v *models.Voucher, subtotal int64) int64 {
	if v == nil {
		return 0
	}
	switch v.DiscountType {
	case models.DiscountPercent:
		return PercentDiscount(subtotal, v.Value)
	case models.DiscountFixed:
		return FixedDiscount(subtotal, v.Value)
	}
	return 0
}

// FeeFor returns the configured fee for a payment method, or def when the
// method is empty or has no entry.
func FeeFor(fees map[string]int64, method string, def int64) int64 {
	if method == "" {
		return def
	}
	if fee, ok := fees[method]; ok {
		return fee
	}
	return def
}

var printer = message.NewPrinter(language.Indonesian)

// FormatRupiah renders an amount the way the storefront shows it, e.g. Rp20.000.
func FormatRupiah(amount int64) string {
	if amount < 0 {
		return "-" + printer.Sprintf("Rp%d", -amount)
	}
	return printer.Sprintf("Rp%d", amount)
}

func clamp(v, lo, hi int64) int64 {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
