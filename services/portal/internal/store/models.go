package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Name         string
	Email        string    `gorm:"uniqueIndex;not null"`
	PasswordHash string    `gorm:"not null"`
	Role         string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time
}

type VehicleModel struct {
	ID          string `gorm:"primaryKey"`
	PlateNumber string `gorm:"not null;index"`
	Type        string
	Brand       string
	Model       string
	Year        string
	OwnerID     string    `gorm:"not null;index"`
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time
}

type ViolationModel struct {
	ID            string `gorm:"primaryKey"`
	PlateNumber   string `gorm:"not null;index"`
	ViolationType string `gorm:"not null"`
	Location      string
	Date          string `gorm:"not null;index"`
	Fine          int    `gorm:"not null"`
	TicketNumber  string `gorm:"index"`
	Status        string `gorm:"not null"`
	Coordinates   datatypes.JSON
	FileKeys      datatypes.JSON
	Notes         string
	UserID        string `gorm:"index"`
	PaidAt        *time.Time
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

type AppealModel struct {
	ID            string `gorm:"primaryKey"`
	ViolationID   string `gorm:"uniqueIndex;not null"`
	PlateNumber   string `gorm:"index"`
	ViolationType string
	Location      string
	Date          string
	Fine          int
	Status        string `gorm:"not null;index"`
	Letter        string `gorm:"type:text"`
	Notes         string
	Analysis      datatypes.JSON `gorm:"type:jsonb"`
	UserID        string         `gorm:"index"`
	SubmittedDate time.Time      `gorm:"not null;index"`
	CreatedAt     time.Time      `gorm:"not null"`
	UpdatedAt     time.Time      `gorm:"not null"`
}
