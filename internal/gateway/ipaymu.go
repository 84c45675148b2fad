// Package gateway talks to the iPaymu redirect payment API and interprets its
// asynchronous notify callbacks.
package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"auto-order/internal/apperr"
	"auto-order/internal/util"
)

const (
	paymentPath     = "/api/v2/payment"
	timestampLayout = "20060102150405"
	// PaymentMethodQRIS routes the redirect page straight to QRIS.
	PaymentMethodQRIS = "qris"
)

// Config holds the merchant account and transport settings.
type Config struct {
	VA        string
	APIKey    string
	BaseURL   string
	Timeout   time.Duration
	Transport http.RoundTripper
}

// PaymentRequest is the redirect payment body. Field order is the
// serialization order and therefore part of the signature.
type PaymentRequest struct {
	Product       []string `json:"product"`
	Qty           []int    `json:"qty"`
	Price         []int64  `json:"price"`
	Description   []string `json:"description"`
	ReturnURL     string   `json:"returnUrl"`
	CancelURL     string   `json:"cancelUrl"`
	NotifyURL     string   `json:"notifyUrl"`
	ReferenceID   string   `json:"referenceId"`
	BuyerName     string   `json:"buyerName"`
	BuyerPhone    string   `json:"buyerPhone"`
	BuyerEmail    string   `json:"buyerEmail"`
	PaymentMethod string   `json:"paymentMethod"`
}

// Payment is a created payment session.
type Payment struct {
	URL       string
	SessionID string
}

type paymentResponse struct {
	Status  int    `json:"Status"`
	Message string `json:"Message"`
	Data    struct {
		URL        string `json:"Url"`
		URLPayment string `json:"UrlPayment"`
		SessionID  string `json:"SessionID"`
	} `json:"Data"`
}

// Client creates payments on the gateway.
type Client struct {
	cfg        Config
	httpClient *http.Client
	now        func() time.Time
	logger     *zap.Logger
}

// NewClient creates a new gateway client
func NewClient(cfg Config) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		now:        time.Now,
		logger:     util.GetLogger(),
	}
}

// CanonicalJSON serializes v compactly, in struct field order, without HTML escaping.
func CanonicalJSON(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Sign returns hex(HMAC-SHA256(secret, METHOD:VA:hex(sha256(body)):secret)).
func Sign(method, va string, body []byte, secret string) string {
	digest := sha256.Sum256(body)
	stringToSign := strings.ToUpper(method) + ":" + va + ":" + hex.EncodeToString(digest[:]) + ":" + secret

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(stringToSign))
	return hex.EncodeToString(mac.Sum(nil))
}

// CreatePayment registers a redirect payment and returns its pay URL and
// session id. Any non-success answer is an apperr.Upstream carrying the
// gateway's own message.
func (c *Client) CreatePayment(ctx context.Context, req PaymentRequest) (*Payment, error) {
	ctx, span := util.StartSpan(ctx, "Gateway.CreatePayment")
	defer span.End()

	body, err := CanonicalJSON(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payment request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+paymentPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build payment request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("va", c.cfg.VA)
	httpReq.Header.Set("signature", Sign(http.MethodPost, c.cfg.VA, body, c.cfg.APIKey))
	httpReq.Header.Set("timestamp", c.now().Format(timestampLayout))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, apperr.Upstream.Wrap(fmt.Errorf("payment gateway unreachable: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, apperr.Upstream.Wrap(fmt.Errorf("failed to read gateway response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("Gateway rejected payment",
			zap.String("reference_id", req.ReferenceID),
			zap.Int("http_status", resp.StatusCode),
			zap.ByteString("body", raw),
		)
		return nil, apperr.Upstream.New("gateway HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed paymentResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, apperr.Upstream.New("unexpected gateway response: %s", strings.TrimSpace(string(raw)))
	}
	if parsed.Status != http.StatusOK {
		return nil, apperr.Upstream.New("gateway status %d: %s", parsed.Status, parsed.Message)
	}

	payment := &Payment{URL: parsed.Data.URL, SessionID: parsed.Data.SessionID}
	if payment.URL == "" {
		payment.URL = parsed.Data.URLPayment
	}
	if payment.URL == "" {
		return nil, apperr.Upstream.New("gateway response has no payment URL: %s", strings.TrimSpace(string(raw)))
	}

	c.logger.Info("Payment created",
		zap.String("reference_id", req.ReferenceID),
		zap.String("session_id", payment.SessionID),
	)
	return payment, nil
}
