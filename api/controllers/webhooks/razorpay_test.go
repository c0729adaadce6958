package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	razorpaywebhook "github.com/velostore/storefront-backend/internal/webhooks/razorpay"
	"github.com/velostore/storefront-backend/pkg/razorpay"
)

type fakeWebhookService struct {
	calls int
	fail  error
	last  razorpaywebhook.Event
}

func (f *fakeWebhookService) HandleEvent(ctx context.Context, event razorpaywebhook.Event) error {
	f.calls++
	f.last = event
	return f.fail
}

type fakeVerifier struct {
	secret string
}

func (v fakeVerifier) VerifyWebhookSignature(payload []byte, signature string) bool {
	return razorpay.SignPayload(payload, v.secret) == signature
}

func buildCapturedEvent(t *testing.T) []byte {
	t.Helper()
	event := razorpaywebhook.Event{Type: razorpaywebhook.EventPaymentCaptured}
	event.Payload.Payment.Entity.ID = "pay_test123"
	event.Payload.Payment.Entity.OrderID = "order_test123"
	event.Payload.Payment.Entity.Status = "captured"
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return payload
}

func TestRazorpayWebhook_Success(t *testing.T) {
	payload := buildCapturedEvent(t)
	service := &fakeWebhookService{}
	handler := RazorpayWebhook(service, fakeVerifier{secret: "whsec"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/razorpay", bytes.NewReader(payload))
	req.Header.Set("X-Razorpay-Signature", razorpay.SignPayload(payload, "whsec"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	if service.calls != 1 {
		t.Fatalf("expected service called once, got %d", service.calls)
	}
	if service.last.Payload.Payment.Entity.OrderID != "order_test123" {
		t.Fatalf("event not decoded, got %+v", service.last)
	}
}

func TestRazorpayWebhook_MissingSignature(t *testing.T) {
	payload := buildCapturedEvent(t)
	service := &fakeWebhookService{}
	handler := RazorpayWebhook(service, fakeVerifier{secret: "whsec"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/razorpay", bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing signature, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatalf("service should not be invoked without a signature")
	}
}

func TestRazorpayWebhook_InvalidSignature(t *testing.T) {
	payload := buildCapturedEvent(t)
	service := &fakeWebhookService{}
	handler := RazorpayWebhook(service, fakeVerifier{secret: "whsec"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/razorpay", bytes.NewReader(payload))
	req.Header.Set("X-Razorpay-Signature", razorpay.SignPayload(payload, "wrong-secret"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad signature, got %d", rec.Code)
	}
	if service.calls != 0 {
		t.Fatalf("service should not be invoked on a bad signature")
	}
}

func TestRazorpayWebhook_ServiceFailureBubblesForRetry(t *testing.T) {
	payload := buildCapturedEvent(t)
	service := &fakeWebhookService{fail: context.DeadlineExceeded}
	handler := RazorpayWebhook(service, fakeVerifier{secret: "whsec"}, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/razorpay", bytes.NewReader(payload))
	req.Header.Set("X-Razorpay-Signature", razorpay.SignPayload(payload, "whsec"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code < http.StatusInternalServerError {
		t.Fatalf("expected 5xx so the gateway retries, got %d", rec.Code)
	}
}
