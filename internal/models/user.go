package models

import (
	"time"

	"gorm.io/gorm"
)

// Role values. The legacy system only ever issued RoleCustomer.
const (
	RoleCustomer = 1
	RoleAdmin    = 2
)

// User represents a registered household account
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Name         string         `gorm:"size:100;not null" json:"name"`
	Email        string         `gorm:"uniqueIndex;size:100;not null" json:"email"`
	PasswordHash string         `gorm:"size:255;not null" json:"-"`
	Role         int            `gorm:"default:1" json:"role"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	Meter *Meter `gorm:"foreignKey:UserID" json:"meter,omitempty"`
}

// TableName specifies the table name for User model
func (User) TableName() string {
	return "users"
}
