package razorpay

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	rzpsdk "github.com/razorpay/razorpay-go"
	rzperrors "github.com/razorpay/razorpay-go/errors"

	"github.com/velostore/storefront-backend/pkg/config"
	pkgerrors "github.com/velostore/storefront-backend/pkg/errors"
	"github.com/velostore/storefront-backend/pkg/logger"
)

var (
	errKeyIDRequired         = errors.New("razorpay key id is required")
	errKeySecretRequired     = errors.New("razorpay key secret is required")
	errWebhookSecretRequired = errors.New("razorpay webhook secret is required")
	errLoggerRequired        = errors.New("razorpay logger is required")
)

// Order is the subset of the remote order resource the platform uses.
type Order struct {
	ID          string
	AmountMinor int64
	Currency    string
	Receipt     string
	Status      string
}

// Refund is the subset of the remote refund resource the platform uses.
type Refund struct {
	ID          string
	PaymentID   string
	AmountMinor int64
	Status      string
}

// OrderCreateParams holds inputs for creating a gateway order.
type OrderCreateParams struct {
	AmountMinor int64
	Currency    string
	Receipt     string
	Notes       map[string]any
}

// Client exposes Razorpay primitives with centralized auth, logging, and error mapping.
// It carries two secrets with different jobs: KeySecret signs the client checkout
// confirmation, WebhookSecret signs webhook bodies. Never interchangeable.
type Client struct {
	sdk           *rzpsdk.Client
	keyID         string
	keySecret     string
	webhookSecret string
	currency      string
	logger        *logger.Logger
}

// NewClient initializes the Razorpay wrapper and validates the credentials.
func NewClient(ctx context.Context, cfg config.RazorpayConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	keyID := strings.TrimSpace(cfg.KeyID)
	if keyID == "" {
		return nil, errKeyIDRequired
	}
	keySecret := strings.TrimSpace(cfg.KeySecret)
	if keySecret == "" {
		return nil, errKeySecretRequired
	}
	webhookSecret := strings.TrimSpace(cfg.WebhookSecret)
	if webhookSecret == "" {
		return nil, errWebhookSecretRequired
	}

	currency := strings.ToUpper(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = "INR"
	}

	c := &Client{
		sdk:           rzpsdk.NewClient(keyID, keySecret),
		keyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
		currency:      currency,
		logger:        logg,
	}

	logg.Info(ctx, "razorpay client initialized")
	return c, nil
}

// KeyID returns the public key id exposed to checkout clients.
func (c *Client) KeyID() string {
	if c == nil {
		return ""
	}
	return c.keyID
}

// Currency reports the configured settlement currency.
func (c *Client) Currency() string {
	if c == nil {
		return ""
	}
	return c.currency
}

// CreateOrder registers an order with the gateway and returns its id for client checkout.
func (c *Client) CreateOrder(ctx context.Context, params OrderCreateParams) (*Order, error) {
	if params.AmountMinor <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order amount must be positive")
	}
	currency := strings.ToUpper(strings.TrimSpace(params.Currency))
	if currency == "" {
		currency = c.currency
	}

	data := map[string]interface{}{
		"amount":   params.AmountMinor,
		"currency": currency,
	}
	if params.Receipt != "" {
		data["receipt"] = params.Receipt
	}
	if len(params.Notes) > 0 {
		data["notes"] = params.Notes
	}

	c.log(ctx, "request", "create_order", map[string]any{
		"amount":   params.AmountMinor,
		"currency": currency,
		"receipt":  params.Receipt,
	})

	resp, err := c.sdk.Order.Create(data, nil)
	if err != nil {
		c.log(ctx, "error", "create_order", map[string]any{"error": err.Error()})
		return nil, c.mapGatewayError(err, "create order")
	}

	order := &Order{
		ID:          stringField(resp, "id"),
		AmountMinor: int64Field(resp, "amount"),
		Currency:    stringField(resp, "currency"),
		Receipt:     stringField(resp, "receipt"),
		Status:      stringField(resp, "status"),
	}
	c.log(ctx, "response", "create_order", map[string]any{
		"gateway_order_id": order.ID,
		"status":           order.Status,
	})
	return order, nil
}

// RefundPayment issues a full or partial refund against a captured payment.
func (c *Client) RefundPayment(ctx context.Context, paymentID string, amountMinor int64, notes map[string]any) (*Refund, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}
	if amountMinor <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive")
	}

	data := map[string]interface{}{}
	if len(notes) > 0 {
		data["notes"] = notes
	}

	c.log(ctx, "request", "refund_payment", map[string]any{
		"payment_id": paymentID,
		"amount":     amountMinor,
	})

	resp, err := c.sdk.Payment.Refund(paymentID, int(amountMinor), data, nil)
	if err != nil {
		c.log(ctx, "error", "refund_payment", map[string]any{"error": err.Error()})
		return nil, c.mapGatewayError(err, "refund payment")
	}

	refund := &Refund{
		ID:          stringField(resp, "id"),
		PaymentID:   stringField(resp, "payment_id"),
		AmountMinor: int64Field(resp, "amount"),
		Status:      stringField(resp, "status"),
	}
	c.log(ctx, "response", "refund_payment", map[string]any{
		"refund_id": refund.ID,
		"status":    refund.Status,
	})
	return refund, nil
}

// VerifyPaymentSignature checks the checkout callback signature. The gateway signs
// "<order_id>|<payment_id>" with the key secret.
func (c *Client) VerifyPaymentSignature(gatewayOrderID, gatewayPaymentID, signature string) bool {
	if c == nil || gatewayOrderID == "" || gatewayPaymentID == "" || signature == "" {
		return false
	}
	payload := gatewayOrderID + "|" + gatewayPaymentID
	return verifyHMAC([]byte(payload), c.keySecret, signature)
}

// VerifyWebhookSignature checks the webhook signature over the raw request body
// using the webhook secret. The body must be the exact bytes received.
func (c *Client) VerifyWebhookSignature(payload []byte, signature string) bool {
	if c == nil || len(payload) == 0 || signature == "" {
		return false
	}
	return verifyHMAC(payload, c.webhookSecret, signature)
}

func verifyHMAC(payload []byte, secret, signature string) bool {
	if secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// SignPayload computes the hex HMAC the gateway would produce; used by tests and tools.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("razorpay %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("razorpay %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"secret", "signature", "token", "card", "email", "phone"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}

func (c *Client) mapGatewayError(err error, op string) error {
	if err == nil {
		return nil
	}
	var badReq *rzperrors.BadRequestError
	if errors.As(err, &badReq) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("razorpay %s rejected", op))
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("razorpay %s failed", op))
}

func stringField(resp map[string]interface{}, key string) string {
	if resp == nil {
		return ""
	}
	if v, ok := resp[key].(string); ok {
		return v
	}
	return ""
}

func int64Field(resp map[string]interface{}, key string) int64 {
	if resp == nil {
		return 0
	}
	switch v := resp[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}
