package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Activity descriptions written to the log.
const (
	ActivityEmergencyCredit = "emergency credit"
	ActivityUsage           = "metered usage"
)

// ActivityLog is an append-only record of meter activity. Rows are written on
// emergency grants and by the usage decrement job, never updated or deleted.
type ActivityLog struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	MeterID        uint            `gorm:"index;not null" json:"meter_id"`
	UsedUnits      decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"used_units"`
	RemainingUnits decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"remaining_units"`
	Activity       string          `gorm:"size:100;not null" json:"activity"`
	CreatedAt      time.Time       `json:"created_at"`
}

// TableName specifies the table name for ActivityLog model
func (ActivityLog) TableName() string {
	return "activity_logs"
}
