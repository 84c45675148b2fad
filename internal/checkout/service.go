package checkout

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"auto-order/internal/apperr"
	"auto-order/internal/models"
	"auto-order/internal/pricing"
	"auto-order/internal/util"
)

// ProductSource looks up catalog products.
type ProductSource interface {
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
}

// VoucherValidator checks a code against a subtotal without redeeming it.
type VoucherValidator interface {
	Validate(ctx context.Context, code string, subtotal int64) (int64, error)
}

// CommitRequest is everything needed to create an order from a finished session.
type CommitRequest struct {
	UserID        int64
	Username      string
	ProductID     int64
	ProductName   string
	UnitPrice     int64
	Qty           int
	Note          string
	VoucherCode   string
	PaymentMethod string
	Pricing       pricing.Breakdown
}

// OrderCommitter creates the order and redeems the voucher in one transaction.
// It may return a non-nil order together with an error when the order was
// created but a later step (payment creation) failed.
type OrderCommitter interface {
	CommitOrder(ctx context.Context, req CommitRequest) (*models.Order, error)
}

// Step is the outcome of a checkout action. Order is set once the session
// was committed; the session is gone at that point.
type Step struct {
	Session *Session
	Quote   pricing.Breakdown
	Order   *models.Order
}

// Service runs the checkout flow for chat users.
type Service struct {
	flow      *Flow
	sessions  SessionStore
	products  ProductSource
	vouchers  VoucherValidator
	committer OrderCommitter
	now       func() time.Time
	logger    *zap.Logger
}

// NewService creates a new checkout service
func NewService(flow *Flow, sessions SessionStore, products ProductSource, vouchers VoucherValidator, committer OrderCommitter) *Service {
	return &Service{
		flow:      flow,
		sessions:  sessions,
		products:  products,
		vouchers:  vouchers,
		committer: committer,
		now:       time.Now,
		logger:    util.GetLogger(),
	}
}

// Flow returns the stage configuration.
func (s *Service) Flow() *Flow {
	return s.flow
}

// SelectProduct starts a session for the product, discarding any previous one.
func (s *Service) SelectProduct(ctx context.Context, userID int64, username string, productID int64) (*Step, error) {
	ctx, span := util.StartSpan(ctx, "Checkout.SelectProduct")
	defer span.End()

	p, err := s.products.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, apperr.NotFound.New("product %d is not available", productID)
	}

	unlock, err := s.sessions.Lock(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock session: %w", err)
	}
	defer unlock()

	sess := s.flow.Start(userID, username, p, s.now())
	if err := s.sessions.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	s.logger.Debug("Checkout started",
		zap.Int64("user_id", userID),
		zap.Int64("product_id", p.ID),
	)
	return s.step(sess), nil
}

// AdjustQuantity adds delta to the quantity.
func (s *Service) AdjustQuantity(ctx context.Context, userID int64, delta int) (*Step, error) {
	return s.update(ctx, userID, func(sess *Session) error {
		return s.flow.Adjust(sess, delta)
	})
}

// ConfirmQuantity leaves the quantity stage.
func (s *Service) ConfirmQuantity(ctx context.Context, userID int64) (*Step, error) {
	return s.update(ctx, userID, s.flow.ConfirmQuantity)
}

// SubmitText feeds a free-text reply to the stage waiting for one.
func (s *Service) SubmitText(ctx context.Context, userID int64, text string) (*Step, error) {
	return s.update(ctx, userID, func(sess *Session) error {
		switch sess.Stage {
		case StageAccountInfo:
			return s.flow.CaptureAccountInfo(sess, text)
		case StageVoucher:
			discount, err := s.vouchers.Validate(ctx, text, sess.Subtotal())
			if err != nil {
				return err
			}
			return s.flow.ApplyVoucher(sess, text, discount)
		}
		return apperr.Validation.New("use the buttons to continue, or /cancel")
	})
}

// Skip leaves the current optional stage.
func (s *Service) Skip(ctx context.Context, userID int64) (*Step, error) {
	return s.update(ctx, userID, s.flow.Skip)
}

// ChooseMethod selects the payment method, which commits the order.
func (s *Service) ChooseMethod(ctx context.Context, userID int64, method string) (*Step, error) {
	return s.update(ctx, userID, func(sess *Session) error {
		return s.flow.ChooseMethod(sess, method)
	})
}

// Cancel drops the user's session. Cancelling with no session is not an error.
func (s *Service) Cancel(ctx context.Context, userID int64) error {
	unlock, err := s.sessions.Lock(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to lock session: %w", err)
	}
	defer unlock()

	if err := s.sessions.Delete(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// update loads the session under the user lock, applies fn and either saves
// the session or commits it when it reached StageReady. A failed fn leaves
// the stored session untouched.
func (s *Service) update(ctx context.Context, userID int64, fn func(*Session) error) (*Step, error) {
	unlock, err := s.sessions.Lock(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to lock session: %w", err)
	}
	defer unlock()

	sess, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	before := sess.Stage

	if err := fn(sess); err != nil {
		return s.step(sess), err
	}

	if sess.Stage == StageReady {
		return s.commit(ctx, sess, before)
	}

	if err := s.sessions.Put(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return s.step(sess), nil
}

func (s *Service) commit(ctx context.Context, sess *Session, before Stage) (*Step, error) {
	ctx, span := util.StartSpan(ctx, "Checkout.Commit")
	defer span.End()

	quote := s.flow.Quote(sess)
	req := CommitRequest{
		UserID:        sess.UserID,
		Username:      sess.Username,
		ProductID:     sess.ProductID,
		ProductName:   sess.ProductName,
		UnitPrice:     sess.UnitPrice,
		Qty:           sess.Qty,
		Note:          sess.Note,
		VoucherCode:   sess.VoucherCode,
		PaymentMethod: sess.PaymentMethod,
		Pricing:       quote,
	}

	// the session sits in StageReady while the order is placed, so a repeated
	// tap finds nothing to commit even if the user lock lapsed meanwhile
	if err := s.sessions.Put(ctx, sess); err != nil {
		sess.PaymentMethod = ""
		sess.Stage = before
		return s.step(sess), fmt.Errorf("failed to save session: %w", err)
	}

	order, err := s.committer.CommitOrder(ctx, req)
	if order == nil {
		// nothing was created, let the user retry from where they were
		if err == nil {
			err = fmt.Errorf("commit returned no order")
		}
		if apperr.Validation.Has(err) && sess.VoucherCode != "" && s.flow.Active(sess, StageVoucher) {
			sess.VoucherCode = ""
			sess.Discount = 0
			before = StageVoucher
		}
		sess.PaymentMethod = ""
		sess.Stage = before
		if perr := s.sessions.Put(ctx, sess); perr != nil {
			s.logger.Error("Failed to restore session", zap.Error(perr), zap.Int64("user_id", sess.UserID))
		}
		return s.step(sess), err
	}

	if derr := s.sessions.Delete(ctx, sess.UserID); derr != nil {
		s.logger.Error("Failed to drop committed session", zap.Error(derr), zap.Int64("user_id", sess.UserID))
	}
	return &Step{Quote: quote, Order: order}, err
}

func (s *Service) step(sess *Session) *Step {
	return &Step{Session: sess, Quote: s.flow.Quote(sess)}
}
