package repository

import (
	"errors"

	"github.com/metervend/internal/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrOfferNotFound = errors.New("emergency offer not found")
)

// OfferRepository handles emergency offer catalog access
type OfferRepository struct {
	db *gorm.DB
}

// NewOfferRepository creates a new OfferRepository
func NewOfferRepository(db *gorm.DB) *OfferRepository {
	return &OfferRepository{db: db}
}

// GetByID retrieves an offer by ID
func (r *OfferRepository) GetByID(id uint) (*models.EmergencyOffer, error) {
	var offer models.EmergencyOffer
	result := r.db.First(&offer, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrOfferNotFound
		}
		return nil, result.Error
	}
	return &offer, nil
}

// List retrieves the whole catalog, ordered by units
func (r *OfferRepository) List() ([]models.EmergencyOffer, error) {
	var offers []models.EmergencyOffer
	if err := r.db.Order("units").Find(&offers).Error; err != nil {
		return nil, err
	}
	return offers, nil
}

// SeedDefaults inserts the stock emergency catalog if the table is empty
func (r *OfferRepository) SeedDefaults() error {
	var count int64
	if err := r.db.Model(&models.EmergencyOffer{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	offers := []models.EmergencyOffer{
		{Units: decimal.NewFromInt(10), Price: decimal.NewFromInt(2)},
		{Units: decimal.NewFromInt(25), Price: decimal.NewFromInt(5)},
		{Units: decimal.NewFromInt(50), Price: decimal.NewFromInt(10)},
	}
	return r.db.Create(&offers).Error
}
