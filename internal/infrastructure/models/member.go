package models

import (
	"time"

	"github.com/google/uuid"
)

type MemberProfile struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey"`
	DisplayID       string     `gorm:"type:varchar(16);uniqueIndex"`
	Name            string     `gorm:"type:varchar(120);not null"`
	NationalID      string     `gorm:"type:varchar(32);uniqueIndex;not null"`
	Email           string     `gorm:"type:varchar(255)"`
	Phone           string     `gorm:"type:varchar(32)"`
	BirthDate       *time.Time `gorm:"type:date"`
	Profession      string     `gorm:"type:varchar(120)"`
	PaymentComplete bool       `gorm:"not null;default:false"`
	RegisteredAt    time.Time
	Role            string `gorm:"type:varchar(20);not null;default:'member'"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (MemberProfile) TableName() string { return "member_profiles" }
