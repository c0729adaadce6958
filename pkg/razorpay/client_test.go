package razorpay

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velostore/storefront-backend/pkg/config"
	"github.com/velostore/storefront-backend/pkg/logger"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "razorpay-test"})
	client, err := NewClient(context.Background(), config.RazorpayConfig{
		KeyID:         "rzp_test_key",
		KeySecret:     "client-secret",
		WebhookSecret: "webhook-secret",
		Currency:      "INR",
	}, logg)
	require.NoError(t, err)
	return client
}

func TestNewClientValidatesCredentials(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "razorpay-test"})

	_, err := NewClient(context.Background(), config.RazorpayConfig{
		KeySecret:     "secret",
		WebhookSecret: "hook",
	}, logg)
	require.ErrorIs(t, err, errKeyIDRequired)

	_, err = NewClient(context.Background(), config.RazorpayConfig{
		KeyID:         "rzp_test_key",
		WebhookSecret: "hook",
	}, logg)
	require.ErrorIs(t, err, errKeySecretRequired)

	_, err = NewClient(context.Background(), config.RazorpayConfig{
		KeyID:     "rzp_test_key",
		KeySecret: "secret",
	}, logg)
	require.ErrorIs(t, err, errWebhookSecretRequired)
}

func TestVerifyPaymentSignature(t *testing.T) {
	client := testClient(t)

	payload := []byte("order_abc|pay_xyz")
	valid := SignPayload(payload, "client-secret")

	assert.True(t, client.VerifyPaymentSignature("order_abc", "pay_xyz", valid))
	assert.False(t, client.VerifyPaymentSignature("order_abc", "pay_xyz", "deadbeef"))
	assert.False(t, client.VerifyPaymentSignature("", "pay_xyz", valid))
	assert.False(t, client.VerifyPaymentSignature("order_abc", "", valid))
}

func TestVerifyPaymentSignatureRejectsWebhookSecret(t *testing.T) {
	client := testClient(t)

	// A signature minted with the webhook secret must not pass client verification.
	payload := []byte("order_abc|pay_xyz")
	wrongSecret := SignPayload(payload, "webhook-secret")
	assert.False(t, client.VerifyPaymentSignature("order_abc", "pay_xyz", wrongSecret))
}

func TestVerifyWebhookSignature(t *testing.T) {
	client := testClient(t)

	body := []byte(`{"event":"payment.captured","payload":{}}`)
	valid := SignPayload(body, "webhook-secret")

	assert.True(t, client.VerifyWebhookSignature(body, valid))
	assert.False(t, client.VerifyWebhookSignature(body, SignPayload(body, "client-secret")))
	assert.False(t, client.VerifyWebhookSignature([]byte(`{"event":"payment.captured"}`), valid))
	assert.False(t, client.VerifyWebhookSignature(nil, valid))
}

func TestCreateOrderValidatesAmount(t *testing.T) {
	client := testClient(t)

	_, err := client.CreateOrder(context.Background(), OrderCreateParams{AmountMinor: 0})
	require.Error(t, err)
}

func TestRefundPaymentValidatesInputs(t *testing.T) {
	client := testClient(t)

	_, err := client.RefundPayment(context.Background(), "", 100, nil)
	require.Error(t, err)

	_, err = client.RefundPayment(context.Background(), "pay_123", 0, nil)
	require.Error(t, err)
}
