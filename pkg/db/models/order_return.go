package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderReturn records a customer return request for a delivered order.
// RestockedAt is stamped once an admin puts the quantities back on hand.
type OrderReturn struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	OrderID     uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index"`
	Reason      *string    `gorm:"column:reason;type:text"`
	RestockedAt *time.Time `gorm:"column:restocked_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
}

func (r *OrderReturn) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
