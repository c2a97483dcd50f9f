package models

import (
	"time"

	"github.com/google/uuid"
)

type OnboardingRecord struct {
	IdentityID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	IDDocumentURL      *string   `gorm:"column:id_document_url;type:text"`
	AddressDocumentURL *string   `gorm:"type:text"`
	PaymentID          *string   `gorm:"type:varchar(64)"`
	SignatureURL       *string   `gorm:"type:text"`
	CompletedAt        *time.Time
	UpdatedAt          time.Time
}

func (OnboardingRecord) TableName() string { return "onboarding_records" }

type PaymentAttempt struct {
	PaymentID    string    `gorm:"type:varchar(64);primaryKey"`
	IdentityID   uuid.UUID `gorm:"type:uuid;index;not null"`
	Method       string    `gorm:"type:varchar(20);not null"`
	Status       string    `gorm:"type:varchar(20);index;not null"`
	Amount       string    `gorm:"type:decimal(12,2);not null"`
	DisplayAsset string    `gorm:"type:text"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (PaymentAttempt) TableName() string { return "payment_attempts" }

type MembershipCard struct {
	IdentityID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	CardNumber   string    `gorm:"type:varchar(32);uniqueIndex;not null"`
	DeliveryDate *time.Time
	Status       string `gorm:"type:varchar(20);not null;default:'pending'"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (MembershipCard) TableName() string { return "membership_cards" }
