package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velostore/storefront-backend/pkg/enums"
)

// Order is the customer order aggregate root. Totals are computed once at
// creation and never recomputed; grand total = subtotal + tax + shipping.
type Order struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	UserID            uuid.UUID           `gorm:"column:user_id;type:uuid;not null;index"`
	Status            enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentStatus     enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	SubtotalMinor     int64               `gorm:"column:subtotal_minor;not null"`
	TaxMinor          int64               `gorm:"column:tax_minor;not null"`
	ShippingFeeMinor  int64               `gorm:"column:shipping_fee_minor;not null"`
	TotalMinor        int64               `gorm:"column:total_minor;not null"`
	Currency          string              `gorm:"column:currency;type:text;not null;default:'INR'"`
	ShippingAddressID uuid.UUID           `gorm:"column:shipping_address_id;type:uuid;not null"`
	BillingAddressID  uuid.UUID           `gorm:"column:billing_address_id;type:uuid;not null"`
	CancelReason      *string             `gorm:"column:cancel_reason;type:text"`
	CancelledAt       *time.Time          `gorm:"column:cancelled_at"`
	ShippedAt         *time.Time          `gorm:"column:shipped_at"`
	DeliveredAt       *time.Time          `gorm:"column:delivered_at"`
	Items             []OrderLineItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Payment           *Payment            `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt         time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
