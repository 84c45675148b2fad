package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"auto-order/internal/apperr"
	"auto-order/internal/models"
	"auto-order/internal/pricing"
	"auto-order/internal/util"
)

// Reason explains why a voucher cannot be applied
type Reason string

const (
	ReasonNone          Reason = ""
	ReasonNotFound      Reason = "not_found"
	ReasonExpired       Reason = "expired"
	ReasonExhausted     Reason = "exhausted"
	ReasonNotApplicable Reason = "not_applicable"
)

// VoucherRepository is the voucher part of the store. Redemption happens in
// OrderRepository.CreateOrderTx together with the order insert.
type VoucherRepository interface {
	GetVoucher(ctx context.Context, code string) (*models.Voucher, error)
	ListVouchers(ctx context.Context) ([]models.Voucher, error)
	CreateVoucher(ctx context.Context, v *models.Voucher) error
	DeleteVoucher(ctx context.Context, code string) error
}

// VoucherLedger validates voucher codes and manages vouchers for admins
type VoucherLedger struct {
	repo   VoucherRepository
	auth   *Authorizer
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

// NewVoucherLedger creates a new voucher ledger
func NewVoucherLedger(repo VoucherRepository, auth *Authorizer, loc *time.Location) *VoucherLedger {
	if loc == nil {
		loc = time.UTC
	}
	return &VoucherLedger{
		repo:   repo,
		auth:   auth,
		loc:    loc,
		now:    time.Now,
		logger: util.GetLogger(),
	}
}

// Evaluate applies the voucher rules in order, first failure wins: expiry,
// usage cap, then a discount that must be positive.
func Evaluate(v *models.Voucher, subtotal int64, today time.Time) (int64, Reason) {
	if v == nil {
		return 0, ReasonNotFound
	}
	if v.ExpiresOn != nil && dateOf(today).After(dateOf(*v.ExpiresOn)) {
		return 0, ReasonExpired
	}
	if v.MaxUses > 0 && v.UsedCount >= v.MaxUses {
		return 0, ReasonExhausted
	}
	discount := pricing.Discount(v, subtotal)
	if discount <= 0 {
		return 0, ReasonNotApplicable
	}
	return discount, ReasonNone
}

// Validate checks code against subtotal and returns the discount. It never
// redeems the voucher.
func (l *VoucherLedger) Validate(ctx context.Context, code string, subtotal int64) (int64, error) {
	ctx, span := util.StartSpan(ctx, "VoucherLedger.Validate")
	defer span.End()

	code = models.NormalizeVoucherCode(code)
	if code == "" {
		return 0, apperr.Validation.New("send a voucher code or press Skip")
	}

	v, err := l.repo.GetVoucher(ctx, code)
	if apperr.NotFound.Has(err) {
		util.VoucherRejectionsTotal.WithLabelValues(string(ReasonNotFound)).Inc()
		return 0, apperr.NotFound.New("voucher %s not found", code)
	}
	if err != nil {
		return 0, err
	}

	discount, reason := Evaluate(v, subtotal, l.today())
	if reason != ReasonNone {
		util.VoucherRejectionsTotal.WithLabelValues(string(reason)).Inc()
		return 0, reasonError(code, reason)
	}
	return discount, nil
}

// Vouchers lists all vouchers
func (l *VoucherLedger) Vouchers(ctx context.Context, actorID int64) ([]models.Voucher, error) {
	if err := l.auth.RequireAdmin(actorID); err != nil {
		return nil, err
	}
	return l.repo.ListVouchers(ctx)
}

// AddVoucher creates a voucher
func (l *VoucherLedger) AddVoucher(ctx context.Context, actorID int64, v *models.Voucher) error {
	if err := l.auth.RequireAdmin(actorID); err != nil {
		return err
	}
	v.Code = models.NormalizeVoucherCode(v.Code)
	switch {
	case v.Code == "":
		return apperr.Validation.New("voucher code is required")
	case v.DiscountType != models.DiscountFixed && v.DiscountType != models.DiscountPercent:
		return apperr.Validation.New("discount type must be percent or fixed")
	case v.Value <= 0:
		return apperr.Validation.New("voucher value must be positive")
	case v.DiscountType == models.DiscountPercent && v.Value > 100:
		return apperr.Validation.New("percent voucher value must be at most 100")
	case v.MaxUses < 0:
		return apperr.Validation.New("max uses must be 0 (unlimited) or more")
	}
	if err := l.repo.CreateVoucher(ctx, v); err != nil {
		return err
	}

	l.logger.Info("Voucher added", zap.String("code", v.Code), zap.Int64("admin_id", actorID))
	return nil
}

// RemoveVoucher deletes a voucher
func (l *VoucherLedger) RemoveVoucher(ctx context.Context, actorID int64, code string) error {
	if err := l.auth.RequireAdmin(actorID); err != nil {
		return err
	}
	return l.repo.DeleteVoucher(ctx, models.NormalizeVoucherCode(code))
}

// today is the current date in the ledger's time zone
func (l *VoucherLedger) today() time.Time {
	return dateOf(l.now().In(l.loc))
}

func reasonError(code string, reason Reason) error {
	switch reason {
	case ReasonNotFound:
		return apperr.NotFound.New("voucher %s not found", code)
	case ReasonExpired:
		return apperr.Validation.New("voucher %s has expired", code)
	case ReasonExhausted:
		return apperr.Validation.New("voucher %s has been used up", code)
	}
	return apperr.Validation.New("voucher %s does not apply to this order", code)
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
