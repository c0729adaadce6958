package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/velostore/storefront-backend/pkg/enums"
)

// ListFilters describe the inputs supported by the order list endpoints.
type ListFilters struct {
	Status        *enums.OrderStatus
	PaymentStatus *enums.PaymentStatus
	DateFrom      *time.Time
	DateTo        *time.Time
}

// Summary exposes the aggregated fields returned in order lists.
type Summary struct {
	ID            uuid.UUID           `json:"id"`
	CreatedAt     time.Time           `json:"created_at"`
	Status        enums.OrderStatus   `json:"status"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	TotalMinor    int64               `json:"total_minor"`
	Currency      string              `json:"currency"`
	TotalItems    int                 `json:"total_items"`
}

// List wraps the paginated orders plus the next page cursor.
type List struct {
	Orders     []Summary `json:"orders"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

// LineItemView is a snapshot line as shown in order detail.
type LineItemView struct {
	ProductID      uuid.UUID `json:"product_id"`
	Name           string    `json:"name"`
	Qty            int       `json:"qty"`
	UnitPriceMinor int64     `json:"unit_price_minor"`
	LineTotalMinor int64     `json:"line_total_minor"`
}

// PaymentView is the payment slice of order detail.
type PaymentView struct {
	Status           enums.PaymentStatus `json:"status"`
	GatewayOrderID   string              `json:"gateway_order_id"`
	GatewayPaymentID *string             `json:"gateway_payment_id,omitempty"`
	AmountMinor      int64               `json:"amount_minor"`
	Currency         string              `json:"currency"`
}

// Detail is the full order view returned to clients.
type Detail struct {
	ID                uuid.UUID           `json:"id"`
	CreatedAt         time.Time           `json:"created_at"`
	Status            enums.OrderStatus   `json:"status"`
	PaymentStatus     enums.PaymentStatus `json:"payment_status"`
	SubtotalMinor     int64               `json:"subtotal_minor"`
	TaxMinor          int64               `json:"tax_minor"`
	ShippingFeeMinor  int64               `json:"shipping_fee_minor"`
	TotalMinor        int64               `json:"total_minor"`
	Currency          string              `json:"currency"`
	ShippingAddressID uuid.UUID           `json:"shipping_address_id"`
	BillingAddressID  uuid.UUID           `json:"billing_address_id"`
	CancelReason      *string             `json:"cancel_reason,omitempty"`
	Items             []LineItemView      `json:"items"`
	Payment           *PaymentView        `json:"payment,omitempty"`
}

// CancelInput captures a customer cancellation request.
type CancelInput struct {
	OrderID uuid.UUID
	UserID  uuid.UUID
	Reason  *string
}

// ReturnInput captures a customer return request.
type ReturnInput struct {
	OrderID uuid.UUID
	UserID  uuid.UUID
	Reason  *string
}

// FulfillmentInput captures an admin fulfillment transition.
type FulfillmentInput struct {
	OrderID uuid.UUID
}
