package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders committed from checkout",
	}, []string{"lane"})

	OrderTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Total number of applied order status transitions",
	}, []string{"signal", "to"})

	OrderTransitionNoopsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transition_noops_total",
		Help: "Total number of signals ignored because the order already advanced",
	}, []string{"signal"})

	VoucherRedemptionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voucher_redemptions_total",
		Help: "Total number of vouchers redeemed by committed orders",
	})

	VoucherRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voucher_rejections_total",
		Help: "Total number of voucher codes refused during checkout",
	}, []string{"reason"})

	PaymentAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_attempts_total",
		Help: "Total number of gateway payment creation attempts",
	})

	PaymentFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_failed_total",
		Help: "Total number of failed gateway payment creations",
	})

	PaymentProcessingLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_processing_latency_seconds",
		Help:    "Latency of gateway payment creation",
		Buckets: prometheus.DefBuckets,
	})

	GatewayCallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_callbacks_total",
		Help: "Total number of gateway notify callbacks by outcome",
	}, []string{"outcome"})

	ChatUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_updates_total",
		Help: "Total number of chat updates handled",
	}, []string{"kind"})

	ChatUpdatesThrottledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_updates_throttled_total",
		Help: "Total number of chat updates dropped by the flood guard",
	})

	NotificationsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_sent_total",
		Help: "Total number of outbound notifications",
	}, []string{"result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
