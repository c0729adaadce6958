package razorpay

// Event types this reconciler acts on. Everything else is acknowledged
// without side effects so the gateway stops retrying.
const (
	EventPaymentAuthorized = "payment.authorized"
	EventPaymentCaptured   = "payment.captured"
)

// PaymentEntity is the payment object inside the webhook envelope. Amount is
// in minor units, matching the intent that opened the charge.
type PaymentEntity struct {
	ID          string `json:"id"`
	OrderID     string `json:"order_id"`
	AmountMinor int64  `json:"amount"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
	Method      string `json:"method"`
}

// Event is the decoded webhook envelope as Razorpay posts it.
type Event struct {
	Type    string `json:"event"`
	Payload struct {
		Payment struct {
			Entity PaymentEntity `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// entity returns the payment object carried by the event.
func (e Event) entity() PaymentEntity {
	return e.Payload.Payment.Entity
}
