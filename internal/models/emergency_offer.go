package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EmergencyOffer is a catalog entry: a fixed quantity of rescue units at a
// fixed price. Immutable reference data, read-only from the operational flow.
type EmergencyOffer struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Units     decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"units"`
	Price     decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"price"`
	CreatedAt time.Time       `json:"created_at"`
}

// TableName specifies the table name for EmergencyOffer model
func (EmergencyOffer) TableName() string {
	return "emergency_offers"
}
