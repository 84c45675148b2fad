package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"auto-order/internal/gateway"
	"auto-order/internal/models"
	"auto-order/internal/util"
)

// PaymentGateway is the outbound side of the payment gateway
type PaymentGateway interface {
	CreatePayment(ctx context.Context, req gateway.PaymentRequest) (*gateway.Payment, error)
}

// PaymentService opens gateway payments for gateway-lane orders
type PaymentService struct {
	gateway   PaymentGateway
	returnURL string
	cancelURL string
	notifyURL string
	logger    *zap.Logger
}

// NewPaymentService creates a new payment service. The return, cancel and
// notify URLs are derived from the public base URL.
func NewPaymentService(gw PaymentGateway, publicBaseURL, notifyPath string) *PaymentService {
	base := strings.TrimRight(publicBaseURL, "/")
	if !strings.HasPrefix(notifyPath, "/") {
		notifyPath = "/" + notifyPath
	}
	return &PaymentService{
		gateway:   gw,
		returnURL: base + "/thanks",
		cancelURL: base + "/cancel",
		notifyURL: base + notifyPath,
		logger:    util.GetLogger(),
	}
}

// PaymentRequestFor builds the gateway body for an order. When the order
// has no discount or fee the product line mirrors the order line;
// otherwise the gateway gets one line priced at the order total.
func (ps *PaymentService) PaymentRequestFor(order *models.Order) gateway.PaymentRequest {
	req := gateway.PaymentRequest{
		Product:       []string{order.ProductName},
		Qty:           []int{order.Qty},
		Price:         []int64{order.UnitPrice},
		Description:   []string{"Order " + order.ReferenceID},
		ReturnURL:     ps.returnURL,
		CancelURL:     ps.cancelURL,
		NotifyURL:     ps.notifyURL,
		ReferenceID:   order.ReferenceID,
		BuyerName:     order.Username,
		PaymentMethod: gateway.PaymentMethodQRIS,
	}
	if order.Discount != 0 || order.Fee != 0 {
		req.Product = []string{fmt.Sprintf("%s x%d", order.ProductName, order.Qty)}
		req.Qty = []int{1}
		req.Price = []int64{order.Amount}
	}
	if req.BuyerName == "" {
		req.BuyerName = "Buyer"
	}
	return req
}

// CreatePayment opens a payment for the order
func (ps *PaymentService) CreatePayment(ctx context.Context, order *models.Order) (*gateway.Payment, error) {
	ctx, span := util.StartSpan(ctx, "PaymentService.CreatePayment")

	util.PaymentAttemptsTotal.Inc()
	start := time.Now()
	defer func() {
		util.PaymentProcessingLatency.Observe(time.Since(start).Seconds())
	}()

	ps.logger.Info("Creating payment",
		zap.Int64("order_id", order.ID),
		zap.String("reference_id", order.ReferenceID),
		zap.Int64("amount", order.Amount))

	payment, err := ps.gateway.CreatePayment(ctx, ps.PaymentRequestFor(order))
	util.EndSpan(span, err)
	if err != nil {
		util.PaymentFailedTotal.Inc()
		return nil, err
	}
	return payment, nil
}
