package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product is a catalog row. StockOnHand is the permanent stock count; the
// quantity actually sellable is StockOnHand minus live reservations and is
// computed by the inventory ledger, never stored.
type Product struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	SKU            string    `gorm:"column:sku;type:text;not null;uniqueIndex"`
	Title          string    `gorm:"column:title;type:text;not null"`
	Description    *string   `gorm:"column:description;type:text"`
	UnitPriceMinor int64     `gorm:"column:unit_price_minor;not null"`
	StockOnHand    int       `gorm:"column:stock_on_hand;not null;default:0"`
	Active         bool      `gorm:"column:active;not null;default:true"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
