package repository

import (
	"time"

	"github.com/metervend/internal/models"
	"gorm.io/gorm"
)

// LogRepository handles activity log access. Rows are written inside the
// meter repository's transactions; this repository only reads them back.
type LogRepository struct {
	db *gorm.DB
}

// NewLogRepository creates a new LogRepository
func NewLogRepository(db *gorm.DB) *LogRepository {
	return &LogRepository{db: db}
}

// ListByMeter retrieves log rows for a meter within [from, to], newest first
func (r *LogRepository) ListByMeter(meterID uint, from, to time.Time) ([]models.ActivityLog, error) {
	var entries []models.ActivityLog
	q := r.db.Where("meter_id = ?", meterID)
	if !from.IsZero() {
		q = q.Where("created_at >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("created_at <= ?", to)
	}
	if err := q.Order("created_at DESC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// CountByMeter counts log rows for a meter
func (r *LogRepository) CountByMeter(meterID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.ActivityLog{}).Where("meter_id = ?", meterID).Count(&count).Error
	return count, err
}
