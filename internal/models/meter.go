package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Meter represents a household's prepaid energy account. Units are consumable
// energy; Balance is currency available to purchase units. The two quantities
// are independent: top-up never converts balance into units.
//
// UserID carries a unique index: exactly one meter per user.
type Meter struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	UserID    uint            `gorm:"uniqueIndex;not null" json:"user_id"`
	Num       string          `gorm:"uniqueIndex;size:8;not null" json:"num"`
	Units     decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"units"`
	Balance   decimal.Decimal `gorm:"type:decimal(20,2);default:0" json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	DeletedAt gorm.DeletedAt  `gorm:"index" json:"-"`

	// Relations
	User User `gorm:"foreignKey:UserID" json:"-"`
}

// TableName specifies the table name for Meter model
func (Meter) TableName() string {
	return "meters"
}
