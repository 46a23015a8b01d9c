package repository

import (
	"errors"

	"github.com/metervend/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrMeterNotFound     = errors.New("meter not found")
	ErrDuplicateMeterNum = errors.New("meter number already taken")
	ErrInsufficientUnits = errors.New("insufficient units")
	ErrNotEmergency      = errors.New("units above emergency threshold")
)

// MeterRepository handles meter data access. Every mutation that touches two
// rows (transfer) or a row plus its log entry (emergency credit, usage) runs
// inside a single database transaction.
type MeterRepository struct {
	db *gorm.DB
}

// NewMeterRepository creates a new MeterRepository
func NewMeterRepository(db *gorm.DB) *MeterRepository {
	return &MeterRepository{db: db}
}

// Create creates a new meter. A unique-index collision on the meter number is
// reported as ErrDuplicateMeterNum so callers can regenerate and retry.
func (r *MeterRepository) Create(meter *models.Meter) error {
	if err := r.db.Create(meter).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicateMeterNum
		}
		return err
	}
	return nil
}

// GetByUserID retrieves the meter owned by a user
func (r *MeterRepository) GetByUserID(userID uint) (*models.Meter, error) {
	var meter models.Meter
	result := r.db.Where("user_id = ?", userID).First(&meter)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrMeterNotFound
		}
		return nil, result.Error
	}
	return &meter, nil
}

// GetByNum retrieves a meter by its external-facing number
func (r *MeterRepository) GetByNum(num string) (*models.Meter, error) {
	var meter models.Meter
	result := r.db.Where("num = ?", num).First(&meter)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrMeterNotFound
		}
		return nil, result.Error
	}
	return &meter, nil
}

// ListAll retrieves every meter, ordered by id. Used by the usage sweep.
func (r *MeterRepository) ListAll() ([]models.Meter, error) {
	var meters []models.Meter
	if err := r.db.Order("id").Find(&meters).Error; err != nil {
		return nil, err
	}
	return meters, nil
}

// AddBalance credits a paid top-up amount to the meter balance and returns
// the updated meter.
func (r *MeterRepository) AddBalance(id uint, amount decimal.Decimal) (*models.Meter, error) {
	var meter models.Meter
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := lockMeter(tx, &meter, id); err != nil {
			return err
		}
		meter.Balance = meter.Balance.Add(amount)
		return tx.Save(&meter).Error
	})
	if err != nil {
		return nil, err
	}
	return &meter, nil
}

// TransferUnits moves amount units from the source meter to the destination
// meter atomically. The debit carries a units >= amount guard, so the sum of
// units across both rows is conserved and neither row can go negative.
func (r *MeterRepository) TransferUnits(srcID, destID uint, amount decimal.Decimal) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		debit := tx.Model(&models.Meter{}).
			Where("id = ? AND units >= ?", srcID, amount).
			Update("units", gorm.Expr("units - ?", amount))
		if debit.Error != nil {
			return debit.Error
		}
		if debit.RowsAffected == 0 {
			return ErrInsufficientUnits
		}

		credit := tx.Model(&models.Meter{}).
			Where("id = ?", destID).
			Update("units", gorm.Expr("units + ?", amount))
		if credit.Error != nil {
			return credit.Error
		}
		if credit.RowsAffected == 0 {
			return ErrMeterNotFound
		}
		return nil
	})
}

// ApplyEmergency grants an emergency offer: units += offer.Units,
// balance -= offer.Price, and exactly one activity log row, in one
// transaction. The threshold guard runs on the locked row, like the
// units >= amount guard on transfers, so two concurrent grants cannot both
// pass it. Balance is allowed to go negative; the debt stays visible on the
// balance view.
func (r *MeterRepository) ApplyEmergency(meterID uint, offer *models.EmergencyOffer, threshold decimal.Decimal) (*models.Meter, error) {
	var meter models.Meter
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := lockMeter(tx, &meter, meterID); err != nil {
			return err
		}
		if meter.Units.GreaterThan(threshold) {
			return ErrNotEmergency
		}

		meter.Units = meter.Units.Add(offer.Units)
		meter.Balance = meter.Balance.Sub(offer.Price)
		if err := tx.Save(&meter).Error; err != nil {
			return err
		}

		entry := models.ActivityLog{
			MeterID:        meter.ID,
			UsedUnits:      decimal.Zero,
			RemainingUnits: meter.Units,
			Activity:       models.ActivityEmergencyCredit,
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		return nil, err
	}
	return &meter, nil
}

// ApplyUsage deducts metered consumption from a meter, clamping units at
// zero, and appends a usage log row. Returns the updated meter and the
// quantity actually deducted.
func (r *MeterRepository) ApplyUsage(meterID uint, usage decimal.Decimal) (*models.Meter, decimal.Decimal, error) {
	var meter models.Meter
	var used decimal.Decimal
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := lockMeter(tx, &meter, meterID); err != nil {
			return err
		}

		used = usage
		if meter.Units.LessThan(usage) {
			used = meter.Units
		}
		meter.Units = meter.Units.Sub(used)
		if err := tx.Save(&meter).Error; err != nil {
			return err
		}

		entry := models.ActivityLog{
			MeterID:        meter.ID,
			UsedUnits:      used,
			RemainingUnits: meter.Units,
			Activity:       models.ActivityUsage,
		}
		return tx.Create(&entry).Error
	})
	if err != nil {
		return nil, decimal.Zero, err
	}
	return &meter, used, nil
}

// lockMeter loads a meter row under FOR UPDATE within tx
func lockMeter(tx *gorm.DB, meter *models.Meter, id uint) error {
	result := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(meter, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return ErrMeterNotFound
		}
		return result.Error
	}
	return nil
}
