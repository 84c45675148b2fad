package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"auto-order/internal/apperr"
	"auto-order/internal/gateway"
	"auto-order/internal/models"
	"auto-order/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// GatewayEventApplier applies notify callbacks to orders
type GatewayEventApplier interface {
	ApplyGatewayEvent(ctx context.Context, n gateway.Notification) (*models.Order, bool, error)
}

// ReplayGuard remembers callbacks that were already applied
type ReplayGuard interface {
	CheckIdempotencyKey(ctx context.Context, key string) (bool, error)
	SetIdempotencyKey(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Pinger is a dependency checked by /ready
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the HTTP handler
type Options struct {
	NotifyPath string
	ReplayTTL  time.Duration
	Checks     map[string]Pinger
}

// Handler contains HTTP handlers
type Handler struct {
	orders GatewayEventApplier
	replay ReplayGuard
	opts   Options
	logger *zap.Logger
}

// NewHandler creates a new HTTP handler. replay may be nil.
func NewHandler(orders GatewayEventApplier, replay ReplayGuard, opts Options) *Handler {
	if opts.NotifyPath == "" {
		opts.NotifyPath = "/ipaymu/notify"
	}
	if opts.ReplayTTL <= 0 {
		opts.ReplayTTL = 24 * time.Hour
	}
	return &Handler{
		orders: orders,
		replay: replay,
		opts:   opts,
		logger: util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(requestIDMiddleware())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST(h.opts.NotifyPath, h.gatewayNotify)
	router.GET("/thanks", h.thanksPage)
	router.GET("/cancel", h.cancelPage)
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings the database and Redis
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, p := range h.opts.Checks {
		if err := p.Ping(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

// gatewayNotify handles the payment gateway notify callback. Any failure
// answers with an error status so the gateway retries.
func (h *Handler) gatewayNotify(c *gin.Context) {
	ctx := c.Request.Context()
	logger := util.LoggerFromContext(ctx)

	if err := c.Request.ParseForm(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "invalid form body"})
		return
	}
	n, err := gateway.ParseNotification(c.Request.PostForm)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": apperr.UserMessage(err)})
		return
	}

	logger = logger.With(
		zap.String("reference_id", n.ReferenceID),
		zap.String("trx_id", n.TrxID),
		zap.String("status_code", n.StatusCode),
	)

	key := n.ReplayKey()
	if h.replay != nil {
		seen, err := h.replay.CheckIdempotencyKey(ctx, key)
		if err != nil {
			logger.Warn("Replay check failed, applying callback", zap.Error(err))
		} else if seen {
			logger.Info("Gateway callback replayed")
			c.JSON(http.StatusOK, gin.H{"ok": true})
			return
		}
	}

	order, changed, err := h.orders.ApplyGatewayEvent(ctx, n)
	if err != nil {
		if apperr.NotFound.Has(err) {
			logger.Warn("Gateway callback for unknown order")
			c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "order not found"})
			return
		}
		logger.Error("Failed to apply gateway callback", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "processing failed"})
		return
	}

	if h.replay != nil {
		if err := h.replay.SetIdempotencyKey(ctx, key, string(order.Status), h.opts.ReplayTTL); err != nil {
			logger.Warn("Failed to remember gateway callback", zap.Error(err))
		}
	}

	logger.Info("Gateway callback applied",
		zap.Int64("order_id", order.ID),
		zap.String("status", string(order.Status)),
		zap.Bool("changed", changed),
	)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

const pageTemplate = `<!doctype html><html><head><meta charset="utf-8"><title>%s</title></head>` +
	`<body style="font-family:sans-serif;text-align:center;padding-top:4em"><h2>%s</h2><p>%s</p></body></html>`

func (h *Handler) thanksPage(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, pageTemplate, "Payment received", "Thank you!",
		"Your payment is being confirmed. You can go back to the chat, the order updates there automatically.")
}

func (h *Handler) cancelPage(c *gin.Context) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, pageTemplate, "Payment cancelled", "Payment cancelled",
		"No money was taken. Go back to the chat to start a new order.")
}

// requestIDMiddleware propagates X-Request-ID and puts a request-scoped logger in the context
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(util.RequestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Header(util.RequestIDHeader, id)
		c.Request = c.Request.WithContext(util.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
