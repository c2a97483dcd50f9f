package entities

import (
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
)

// CardStatus represents membership card status
type CardStatus string

const (
	CardStatusPending    CardStatus = "pending"
	CardStatusProduction CardStatus = "production"
	CardStatusShipped    CardStatus = "shipped"
	CardStatusDelivered  CardStatus = "delivered"
	CardStatusCancelled  CardStatus = "cancelled"
)

// Valid reports whether s is a known card status.
func (s CardStatus) Valid() bool {
	switch s {
	case CardStatusPending, CardStatusProduction, CardStatusShipped, CardStatusDelivered, CardStatusCancelled:
		return true
	}
	return false
}

// MembershipCard is created once per member.
type MembershipCard struct {
	IdentityID   uuid.UUID  `json:"identityId"`
	CardNumber   string     `json:"cardNumber"`
	DeliveryDate null.Time  `json:"deliveryDate"`
	Status       CardStatus `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// UpdateCardInput represents an admin card update
type UpdateCardInput struct {
	Status       CardStatus `json:"status" binding:"required"`
	DeliveryDate *time.Time `json:"deliveryDate"`
}
