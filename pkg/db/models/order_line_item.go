package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderLineItem snapshots product name and unit price at order-creation time.
// The live catalog price can drift afterwards; the snapshot never does.
type OrderLineItem struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;not null"`
	Name           string    `gorm:"column:name;type:text;not null"`
	Qty            int       `gorm:"column:qty;not null"`
	UnitPriceMinor int64     `gorm:"column:unit_price_minor;not null"`
	LineTotalMinor int64     `gorm:"column:line_total_minor;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderLineItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
