package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Address belongs to exactly one user; orders reference addresses by id and
// ownership is re-checked at order creation.
type Address struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID     uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	Line1      string    `gorm:"column:line1;type:text;not null"`
	Line2      *string   `gorm:"column:line2;type:text"`
	City       string    `gorm:"column:city;type:text;not null"`
	State      string    `gorm:"column:state;type:text;not null"`
	PostalCode string    `gorm:"column:postal_code;type:text;not null"`
	Country    string    `gorm:"column:country;type:text;not null;default:'IN'"`
	Phone      *string   `gorm:"column:phone;type:text"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (a *Address) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
