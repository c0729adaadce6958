package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/velostore/storefront-backend/pkg/enums"
	"github.com/velostore/storefront-backend/pkg/types"
)

// Payment tracks one gateway charge attempt for an order. GatewayOrderID is
// the remote order/intent id and the idempotency key webhooks use to locate
// the row. GatewayEvents is an append-only log; entries are never rewritten.
type Payment struct {
	ID               uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	OrderID          uuid.UUID             `gorm:"column:order_id;type:uuid;not null;index"`
	Gateway          string                `gorm:"column:gateway;type:text;not null;default:'razorpay'"`
	GatewayOrderID   string                `gorm:"column:gateway_order_id;type:text;not null;uniqueIndex"`
	GatewayPaymentID *string               `gorm:"column:gateway_payment_id;type:text"`
	AmountMinor      int64                 `gorm:"column:amount_minor;not null"`
	Currency         string                `gorm:"column:currency;type:text;not null;default:'INR'"`
	Status           enums.PaymentStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	GatewayEvents    types.GatewayEventLog `gorm:"column:gateway_events;type:jsonb"`
	CreatedAt        time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
