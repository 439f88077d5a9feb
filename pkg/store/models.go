package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string    `gorm:"primaryKey"`
	Email        string    `gorm:"uniqueIndex;not null"`
	Name         string    `gorm:"not null"`
	PasswordHash string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
}

type PersonaModel struct {
	ID             string `gorm:"primaryKey"`
	UserID         string `gorm:"uniqueIndex;not null"`
	Bio            string `gorm:"type:text"`
	Industry       string
	TargetAudience string
	BrandTone      string
	Images         []PersonaImageModel `gorm:"foreignKey:PersonaID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time           `gorm:"not null"`
	UpdatedAt      time.Time           `gorm:"not null"`
}

type PersonaImageModel struct {
	ID        string    `gorm:"primaryKey"`
	PersonaID string    `gorm:"not null;index"`
	ImageURL  string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

type GenerationModel struct {
	ID           string         `gorm:"primaryKey"`
	UserID       string         `gorm:"not null;index"`
	Type         string         `gorm:"not null;index"`
	Prompt       string         `gorm:"type:text;not null"`
	Model        string         `gorm:"not null"`
	Result       string         `gorm:"type:text"`
	Status       string         `gorm:"not null"`
	ErrorMessage string         `gorm:"type:text"`
	Params       datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt    time.Time      `gorm:"not null;index"`
}
