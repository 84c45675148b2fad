package service

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"auto-order/internal/apperr"
	"auto-order/internal/checkout"
	"auto-order/internal/gateway"
	"auto-order/internal/models"
	"auto-order/internal/store"
	"auto-order/internal/util"
)

// OrderRepository is the order part of the store
type OrderRepository interface {
	CreateOrderTx(ctx context.Context, order *models.Order, today time.Time, ref store.ReferenceFunc) error
	UpdateOrderTx(ctx context.Context, key store.OrderKey, mutate func(*models.Order) (bool, error)) (*models.Order, bool, error)
	GetOrder(ctx context.Context, key store.OrderKey) (*models.Order, error)
	ListOrdersByUser(ctx context.Context, userID int64, limit int) ([]models.Order, error)
	ListRecentOrders(ctx context.Context, limit int) ([]models.Order, error)
	LatestAwaitingProof(ctx context.Context, userID int64) (*models.Order, error)
}

// EventPublisher announces order changes
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event *models.OrderEvent) error
}

// PaymentCreator opens a gateway payment for an order
type PaymentCreator interface {
	CreatePayment(ctx context.Context, order *models.Order) (*gateway.Payment, error)
}

// Decision is an admin action on an order
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
	DecisionDone    Decision = "done"
	DecisionCancel  Decision = "cancel"
)

// Signal maps the decision onto the order state machine
func (d Decision) Signal() (models.Signal, error) {
	switch d {
	case DecisionApprove:
		return models.SignalApprove, nil
	case DecisionReject:
		return models.SignalReject, nil
	case DecisionDone:
		return models.SignalMarkDone, nil
	case DecisionCancel:
		return models.SignalCancel, nil
	}
	return 0, apperr.Validation.New("unknown decision %q", string(d))
}

// OrderSettings configures lane selection and list sizes
type OrderSettings struct {
	GatewayMethods   []string
	GatewayEnabled   bool
	Location         *time.Location
	UserOrdersLimit  int
	AdminOrdersLimit int
}

// OrderService owns order creation and every status transition
type OrderService struct {
	repo      OrderRepository
	publisher EventPublisher
	payments  PaymentCreator
	auth      *Authorizer
	settings  OrderSettings
	now       func() time.Time
	logger    *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(
	repo OrderRepository,
	publisher EventPublisher,
	payments PaymentCreator,
	auth *Authorizer,
	settings OrderSettings,
) *OrderService {
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	if settings.UserOrdersLimit <= 0 {
		settings.UserOrdersLimit = 10
	}
	if settings.AdminOrdersLimit <= 0 {
		settings.AdminOrdersLimit = 12
	}
	return &OrderService{
		repo:      repo,
		publisher: publisher,
		payments:  payments,
		auth:      auth,
		settings:  settings,
		now:       time.Now,
		logger:    util.GetLogger(),
	}
}

// LaneFor picks the status lane for a payment method
func (s *OrderService) LaneFor(method string) models.Lane {
	if method == "" {
		if s.settings.GatewayEnabled && s.payments != nil {
			return models.LaneGateway
		}
		return models.LaneManual
	}
	for _, m := range s.settings.GatewayMethods {
		if strings.EqualFold(m, method) && s.payments != nil {
			return models.LaneGateway
		}
	}
	return models.LaneManual
}

// CommitOrder creates the order from a finished checkout, redeeming its
// voucher in the same transaction. Gateway-lane orders then get a payment;
// if the gateway fails the order is cancelled and returned together with
// the upstream error. The voucher stays redeemed in that case.
func (s *OrderService) CommitOrder(ctx context.Context, req checkout.CommitRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CommitOrder")
	defer span.End()

	lane := s.LaneFor(req.PaymentMethod)
	order := &models.Order{
		UserID:        req.UserID,
		Username:      req.Username,
		ProductID:     req.ProductID,
		ProductName:   req.ProductName,
		UnitPrice:     req.UnitPrice,
		Qty:           req.Qty,
		Subtotal:      req.Pricing.Subtotal,
		Discount:      req.Pricing.Discount,
		Fee:           req.Pricing.Fee,
		Amount:        req.Pricing.Total,
		Note:          req.Note,
		PaymentMethod: req.PaymentMethod,
		Lane:          lane,
		Status:        lane.Initial(),
	}
	if req.VoucherCode != "" {
		code := models.NormalizeVoucherCode(req.VoucherCode)
		order.VoucherCode = &code
	}
	if !order.AmountConsistent() {
		return nil, fmt.Errorf("inconsistent pricing for user %d: %+v", req.UserID, req.Pricing)
	}

	now := s.now().In(s.settings.Location)
	err := s.repo.CreateOrderTx(ctx, order, now, func(o *models.Order) string {
		return models.ReferenceToken(o.UserID, o.ID, now)
	})
	if err != nil {
		if !apperr.Validation.Has(err) {
			s.logger.Error("Failed to create order", zap.Error(err), zap.Int64("user_id", req.UserID))
		}
		return nil, err
	}

	util.OrdersCreatedTotal.WithLabelValues(string(lane)).Inc()
	if order.VoucherCode != nil {
		util.VoucherRedemptionsTotal.Inc()
	}
	s.logger.Info("Order created",
		zap.Int64("order_id", order.ID),
		zap.String("reference_id", order.ReferenceID),
		zap.String("lane", string(lane)),
		zap.Int64("amount", order.Amount),
	)
	s.publish(ctx, models.EventTypeOrderCreated, order, "")

	if lane != models.LaneGateway {
		return order, nil
	}

	payment, err := s.payments.CreatePayment(ctx, order)
	if err != nil {
		s.logger.Warn("Payment creation failed, cancelling order",
			zap.Int64("order_id", order.ID),
			zap.Error(err),
		)
		cancelled, _, cerr := s.apply(ctx, store.ByID(order.ID), models.SignalCancel, func(o *models.Order) {
			o.AdminNote = apperr.UserMessage(err)
		})
		if cerr != nil {
			s.logger.Error("Failed to cancel order after payment failure", zap.Error(cerr), zap.Int64("order_id", order.ID))
			cancelled = order
		}
		if !apperr.Upstream.Has(err) {
			err = apperr.Upstream.Wrap(err)
		}
		return cancelled, err
	}

	updated, _, err := s.apply(ctx, store.ByID(order.ID), models.SignalPaymentCreated, func(o *models.Order) {
		o.GatewaySID = payment.SessionID
		o.PayURL = payment.URL
	})
	if err != nil {
		return order, err
	}
	return updated, nil
}

var proofCaptionRe = regexp.MustCompile(`#\s*(\d+)`)

// ProofTarget extracts an order id from a caption like "#12"
func ProofTarget(caption string) (int64, bool) {
	m := proofCaptionRe.FindStringSubmatch(caption)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// SubmitProof binds a proof image to an order of the user. An "#<id>"
// caption names the order directly; otherwise the user's newest order
// waiting for payment is used.
func (s *OrderService) SubmitProof(ctx context.Context, userID int64, fileID, caption string) (*models.Order, bool, error) {
	if id, ok := ProofTarget(caption); ok {
		return s.AttachProof(ctx, id, userID, fileID, caption)
	}
	latest, err := s.repo.LatestAwaitingProof(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	return s.AttachProof(ctx, latest.ID, userID, fileID, caption)
}

// AttachProof stores the proof on the owner's order and moves it to
// PROOF_SUBMITTED. A later proof replaces an earlier one.
func (s *OrderService) AttachProof(ctx context.Context, orderID, ownerID int64, fileID, caption string) (*models.Order, bool, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.AttachProof")
	defer span.End()

	if strings.TrimSpace(fileID) == "" {
		return nil, false, apperr.Validation.New("send the payment proof as a photo")
	}

	order, changed, err := s.applyChecked(ctx, store.ByID(orderID), models.SignalProofSubmitted,
		func(o *models.Order) error {
			if o.UserID != ownerID {
				return apperr.NotFound.New("order #%d not found", orderID)
			}
			return nil
		},
		func(o *models.Order) {
			o.ProofFileID = &fileID
			o.ProofCaption = strings.TrimSpace(caption)
		}, nil)
	if err != nil {
		return nil, false, err
	}
	if !changed {
		return order, false, apperr.Validation.New("order #%d is %s and no longer takes a payment proof", order.ID, order.Status)
	}
	return order, true, nil
}

// ApplyGatewayEvent applies a notify callback to the order it references.
// Duplicates and late callbacks leave the order unchanged.
func (s *OrderService) ApplyGatewayEvent(ctx context.Context, n gateway.Notification) (*models.Order, bool, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ApplyGatewayEvent")
	defer span.End()

	order, changed, err := s.apply(ctx, store.ByReference(n.ReferenceID), n.Outcome().Signal(), func(o *models.Order) {
		if n.TrxID != "" {
			o.GatewayTrxID = n.TrxID
		}
		if n.SID != "" {
			o.GatewaySID = n.SID
		}
	})
	util.GatewayCallbacksTotal.WithLabelValues(n.Outcome().String()).Inc()
	return order, changed, err
}

// ApplyAdminDecision approves, rejects, completes or cancels an order
func (s *OrderService) ApplyAdminDecision(ctx context.Context, actorID, orderID int64, decision Decision, note string) (*models.Order, bool, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.ApplyAdminDecision")
	defer span.End()

	if err := s.auth.RequireAdmin(actorID); err != nil {
		return nil, false, err
	}
	signal, err := decision.Signal()
	if err != nil {
		return nil, false, err
	}

	// the note and decision time are recorded even when the order already
	// moved on; the status only changes through the transition
	decidedAt := s.now()
	return s.applyChecked(ctx, store.ByID(orderID), signal, nil, nil, func(o *models.Order) {
		if note = strings.TrimSpace(note); note != "" {
			o.AdminNote = note
		}
		o.DecidedAt = &decidedAt
	})
}

// UserOrders lists the user's latest orders
func (s *OrderService) UserOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	return s.repo.ListOrdersByUser(ctx, userID, s.settings.UserOrdersLimit)
}

// RecentOrders lists the latest orders of all users
func (s *OrderService) RecentOrders(ctx context.Context, actorID int64) ([]models.Order, error) {
	if err := s.auth.RequireAdmin(actorID); err != nil {
		return nil, err
	}
	return s.repo.ListRecentOrders(ctx, s.settings.AdminOrdersLimit)
}

// GetOrder returns an order for its owner or for an admin
func (s *OrderService) GetOrder(ctx context.Context, actorID, orderID int64) (*models.Order, error) {
	order, err := s.repo.GetOrder(ctx, store.ByID(orderID))
	if err != nil {
		return nil, err
	}
	if order.UserID != actorID && !s.auth.IsAdmin(actorID) {
		return nil, apperr.NotFound.New("order #%d not found", orderID)
	}
	return order, nil
}

func (s *OrderService) apply(ctx context.Context, key store.OrderKey, signal models.Signal, edit func(*models.Order)) (*models.Order, bool, error) {
	return s.applyChecked(ctx, key, signal, nil, edit, nil)
}

// applyChecked runs one transition under the order row lock. check may
// refuse the order before the transition; edit adds the fields that travel
// with the transition. always is written whether or not the transition
// applies. A Conflict from the state machine is reported as unchanged,
// never as an error.
func (s *OrderService) applyChecked(ctx context.Context, key store.OrderKey, signal models.Signal,
	check func(*models.Order) error, edit, always func(*models.Order)) (*models.Order, bool, error) {
	var from models.Status
	transitioned := false
	order, _, err := s.repo.UpdateOrderTx(ctx, key, func(o *models.Order) (bool, error) {
		if check != nil {
			if err := check(o); err != nil {
				return false, err
			}
		}
		from = o.Status
		to, err := models.Transition(o.Lane, o.Status, signal)
		if err != nil {
			if always != nil && apperr.IsConflict(err) {
				always(o)
				return true, nil
			}
			return false, err
		}
		if edit != nil {
			edit(o)
		}
		if always != nil {
			always(o)
		}
		o.Status = to
		transitioned = true
		return true, nil
	})

	if err != nil && !apperr.IsConflict(err) {
		return nil, false, err
	}
	if !transitioned {
		util.OrderTransitionNoopsTotal.WithLabelValues(signal.String()).Inc()
		s.logger.Info("Order signal ignored",
			zap.Int64("order_id", order.ID),
			zap.String("status", string(order.Status)),
			zap.String("signal", signal.String()),
		)
		return order, false, nil
	}

	util.OrderTransitionsTotal.WithLabelValues(signal.String(), string(order.Status)).Inc()
	s.logger.Info("Order transitioned",
		zap.Int64("order_id", order.ID),
		zap.String("from", string(from)),
		zap.String("to", string(order.Status)),
		zap.String("signal", signal.String()),
	)
	if eventType, ok := models.EventTypeFor(order.Status); ok {
		s.publish(ctx, eventType, order, from)
	}
	return order, true, nil
}

func (s *OrderService) publish(ctx context.Context, eventType string, order *models.Order, from models.Status) {
	if s.publisher == nil {
		return
	}
	event := &models.OrderEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: eventType,
			Timestamp: s.now(),
		},
		OrderID:        order.ID,
		UserID:         order.UserID,
		Username:       order.Username,
		ReferenceID:    order.ReferenceID,
		ProductName:    order.ProductName,
		Qty:            order.Qty,
		Amount:         order.Amount,
		PaymentMethod:  order.PaymentMethod,
		Lane:           order.Lane,
		Status:         order.Status,
		PreviousStatus: from,
		PayURL:         order.PayURL,
		ProofCaption:   order.ProofCaption,
		AdminNote:      order.AdminNote,
		GatewayTrxID:   order.GatewayTrxID,
	}
	if order.ProofFileID != nil {
		event.ProofFileID = *order.ProofFileID
	}

	if err := s.publisher.PublishOrderEvent(ctx, event); err != nil {
		s.logger.Error("Failed to publish order event",
			zap.String("event_type", eventType),
			zap.Int64("order_id", order.ID),
			zap.Error(err),
		)
	}
}
