package checkout

import (
	"strings"
	"time"

	"auto-order/internal/apperr"
	"auto-order/internal/models"
	"auto-order/internal/pricing"
)

// Flow is the configurable checkout state machine. The optional stages are
// data: AccountInfo and Voucher switch their stage on, and an empty Methods
// list skips method selection and prices with DefaultFee.
type Flow struct {
	AccountInfo bool
	Voucher     bool
	Methods     []string
	Fees        map[string]int64
	DefaultFee  int64
}

// Start opens a session for product with quantity 1.
func (f *Flow) Start(userID int64, username string, p *models.Product, now time.Time) *Session {
	return &Session{
		UserID:              userID,
		Username:            username,
		ProductID:           p.ID,
		ProductName:         p.Name,
		UnitPrice:           p.Price,
		RequiresAccountInfo: p.RequiresAccountInfo,
		Qty:                 MinQty,
		Stage:               StageQuantity,
		StartedAt:           now,
	}
}

// Adjust changes the quantity by delta, clamped to [MinQty, MaxQty].
func (f *Flow) Adjust(s *Session, delta int) error {
	if err := expect(s, StageQuantity); err != nil {
		return err
	}
	q := s.Qty + delta
	if q < MinQty {
		q = MinQty
	}
	if q > MaxQty {
		q = MaxQty
	}
	s.Qty = q
	return nil
}

// ConfirmQuantity leaves the quantity stage.
func (f *Flow) ConfirmQuantity(s *Session) error {
	if err := expect(s, StageQuantity); err != nil {
		return err
	}
	f.advance(s)
	return nil
}

// CaptureAccountInfo stores the opaque account info text and moves on.
func (f *Flow) CaptureAccountInfo(s *Session, text string) error {
	if err := expect(s, StageAccountInfo); err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return apperr.Validation.New("please send the account info as text")
	}
	s.Note = text
	f.advance(s)
	return nil
}

// ApplyVoucher records an already validated voucher and moves on.
func (f *Flow) ApplyVoucher(s *Session, code string, discount int64) error {
	if err := expect(s, StageVoucher); err != nil {
		return err
	}
	s.VoucherCode = models.NormalizeVoucherCode(code)
	s.Discount = discount
	f.advance(s)
	return nil
}

// Skip leaves an optional stage without input. Account info can only be
// skipped when the product does not require it.
func (f *Flow) Skip(s *Session) error {
	switch s.Stage {
	case StageAccountInfo:
		if s.RequiresAccountInfo {
			return apperr.Validation.New("this product needs account info before you continue")
		}
		s.Note = ""
	case StageVoucher:
		s.VoucherCode = ""
		s.Discount = 0
	default:
		return apperr.Validation.New("nothing to skip here")
	}
	f.advance(s)
	return nil
}

// ChooseMethod selects one of the configured payment methods.
func (f *Flow) ChooseMethod(s *Session, method string) error {
	if err := expect(s, StagePaymentMethod); err != nil {
		return err
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	for _, m := range f.Methods {
		if m == method {
			s.PaymentMethod = m
			f.advance(s)
			return nil
		}
	}
	return apperr.Validation.New("unknown payment method %q", method)
}

// Quote prices the session with its current quantity, voucher and method.
func (f *Flow) Quote(s *Session) pricing.Breakdown {
	return pricing.Price(s.UnitPrice, s.Qty, s.Discount, pricing.FeeFor(f.Fees, s.PaymentMethod, f.DefaultFee))
}

// Active reports whether stage applies to the session.
func (f *Flow) Active(s *Session, stage Stage) bool {
	switch stage {
	case StageAccountInfo:
		return f.AccountInfo || s.RequiresAccountInfo
	case StageVoucher:
		return f.Voucher
	case StagePaymentMethod:
		return len(f.Methods) > 0
	}
	return true
}

// advance moves to the next active stage after the current one.
func (f *Flow) advance(s *Session) {
	for i, st := range stageOrder {
		if st != s.Stage {
			continue
		}
		for _, next := range stageOrder[i+1:] {
			if f.Active(s, next) {
				s.Stage = next
				return
			}
		}
	}
	s.Stage = StageReady
}

func expect(s *Session, stage Stage) error {
	if s.Stage == StageReady {
		return apperr.Validation.New("your order is being placed, please wait")
	}
	if s.Stage != stage {
		return apperr.Validation.New("that step is not available now, finish the current one or /cancel")
	}
	return nil
}
