package pricing

import (
	"testing"

	"auto-order/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestPrice_VoucherAndFeeScenario(t *testing.T) {
	v := &models.Voucher{Code: "HEMAT10", DiscountType: models.DiscountPercent, Value: 10}
	fees := map[string]int64{"DANA": 200, "QRIS": 0}

	subtotal := int64(20000 * 2)
	b := Price(20000, 2, Discount(v, subtotal), FeeFor(fees, "DANA", 0))

	assert.Equal(t, Breakdown{Subtotal: 40000, Discount: 4000, Fee: 200, Total: 36200}, b)
}

func TestPrice_ClampsDiscount(t *testing.T) {
	b := Price(1000, 1, 5000, 300)
	assert.Equal(t, int64(1000), b.Discount)
	assert.Equal(t, int64(300), b.Total, "discount never drives the total below the fee")

	b = Price(1000, 1, -50, 0)
	assert.Equal(t, int64(0), b.Discount)
	assert.Equal(t, int64(1000), b.Total)
}

func TestPercentDiscount_FloorsAndStaysWithinSubtotal(t *testing.T) {
	for _, s := range []int64{0, 1, 7, 99, 101, 12345, 999999} {
		for p := int64(1); p <= 100; p++ {
			d := PercentDiscount(s, p)
			assert.LessOrEqual(t, d, s)
			assert.Equal(t, s*p/100, d)
		}
	}
	assert.Equal(t, int64(3), PercentDiscount(35, 10))
	assert.Equal(t, int64(100), PercentDiscount(100, 250))
	assert.Equal(t, int64(0), PercentDiscount(100, -5))
}

func TestFixedDiscount(t *testing.T) {
	assert.Equal(t, int64(5000), FixedDiscount(40000, 5000))
	assert.Equal(t, int64(3000), FixedDiscount(3000, 5000))
	assert.Equal(t, int64(0), FixedDiscount(3000, -1))
}

func TestFeeFor(t *testing.T) {
	fees := map[string]int64{"DANA": 200}
	assert.Equal(t, int64(200), FeeFor(fees, "DANA", 50))
	assert.Equal(t, int64(50), FeeFor(fees, "OVO", 50))
	assert.Equal(t, int64(50), FeeFor(fees, "", 50))
}

func TestFormatRupiah(t *testing.T) {
	assert.Equal(t, "Rp20.000", FormatRupiah(20000))
	assert.Equal(t, "Rp1.250.000", FormatRupiah(1250000))
	assert.Equal(t, "Rp0", FormatRupiah(0))
}
