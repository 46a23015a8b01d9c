package service

import (
	"time"

	"github.com/metervend/internal/models"
	"github.com/shopspring/decimal"
)

// Store interfaces consumed by the services. The gorm repositories under
// internal/repository satisfy them; tests substitute in-memory fakes.

// UserStore is the user persistence surface. Delete removes the row
// permanently; registration uses it to roll back when meter allocation fails.
type UserStore interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	ExistsByEmail(email string) (bool, error)
	Delete(id uint) error
}

// MeterStore is the meter persistence surface. TransferUnits, ApplyEmergency
// and ApplyUsage are atomic: each either fully applies or leaves every row
// untouched.
type MeterStore interface {
	Create(meter *models.Meter) error
	GetByUserID(userID uint) (*models.Meter, error)
	GetByNum(num string) (*models.Meter, error)
	ListAll() ([]models.Meter, error)
	AddBalance(id uint, amount decimal.Decimal) (*models.Meter, error)
	TransferUnits(srcID, destID uint, amount decimal.Decimal) error
	ApplyEmergency(meterID uint, offer *models.EmergencyOffer, threshold decimal.Decimal) (*models.Meter, error)
	ApplyUsage(meterID uint, usage decimal.Decimal) (*models.Meter, decimal.Decimal, error)
}

// OfferStore is the emergency catalog surface
type OfferStore interface {
	GetByID(id uint) (*models.EmergencyOffer, error)
	List() ([]models.EmergencyOffer, error)
}

// LogStore is the activity log read surface
type LogStore interface {
	ListByMeter(meterID uint, from, to time.Time) ([]models.ActivityLog, error)
}
