package entities

import (
	"time"

	"github.com/google/uuid"
)

// PaymentMethod represents the billing type
type PaymentMethod string

const (
	PaymentMethodCreditCard PaymentMethod = "CREDIT_CARD"
	PaymentMethodPix        PaymentMethod = "PIX"
	PaymentMethodBoleto     PaymentMethod = "BOLETO"
)

// Valid reports whether m is a supported method.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCreditCard, PaymentMethodPix, PaymentMethodBoleto:
		return true
	}
	return false
}

// Polled reports whether the method settles asynchronously.
func (m PaymentMethod) Polled() bool {
	return m == PaymentMethodPix || m == PaymentMethodBoleto
}

// PaymentStatus represents payment status
type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "PENDING"
	PaymentStatusProcessing PaymentStatus = "PROCESSING"
	PaymentStatusConfirmed  PaymentStatus = "CONFIRMED"
	PaymentStatusReceived   PaymentStatus = "RECEIVED"
	PaymentStatusFailed     PaymentStatus = "FAILED"
	PaymentStatusCancelled  PaymentStatus = "CANCELLED"
)

// Succeeded reports a paid status.
func (s PaymentStatus) Succeeded() bool {
	return s == PaymentStatusConfirmed || s == PaymentStatusReceived
}

// Terminal reports whether polling must stop.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentStatusConfirmed, PaymentStatusReceived, PaymentStatusFailed, PaymentStatusCancelled:
		return true
	}
	return false
}

// PaymentAttempt is one gateway charge for a member.
type PaymentAttempt struct {
	PaymentID    string        `json:"paymentId"`
	IdentityID   uuid.UUID     `json:"identityId"`
	Method       PaymentMethod `json:"method"`
	Status       PaymentStatus `json:"status"`
	Amount       string        `json:"amount"`
	DisplayAsset string        `json:"displayAsset,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// CreditCardInput holds card fields; never persisted.
type CreditCardInput struct {
	HolderName  string `json:"holderName"`
	Number      string `json:"number"`
	ExpiryMonth string `json:"expiryMonth"`
	ExpiryYear  string `json:"expiryYear"`
	CCV         string `json:"ccv"`
}

// StartPaymentInput represents input for starting a payment
type StartPaymentInput struct {
	Method     PaymentMethod    `json:"method" binding:"required"`
	CreditCard *CreditCardInput `json:"creditCard,omitempty"`
	CustomerIP string           `json:"-"`
}

// PaymentCustomer is the payer identity sent to the gateway.
type PaymentCustomer struct {
	Name       string
	NationalID string
	Email      string
	Phone      string
}

// PaymentCharge is what the gateway is asked to collect.
type PaymentCharge struct {
	CustomerID  string
	Method      PaymentMethod
	Amount      string
	Description string
	ExternalRef string
	DueDate     time.Time
	CreditCard  *CreditCardInput
	Holder      PaymentCustomer
	RemoteIP    string
}

// PaymentInitiation is the gateway's answer to a charge.
type PaymentInitiation struct {
	PaymentID    string
	Status       PaymentStatus
	DisplayAsset string
}

// StartPaymentResult is returned when a payment is started.
type StartPaymentResult struct {
	Stage   OnboardingStage `json:"stage"`
	Attempt *PaymentAttempt `json:"attempt"`
}

// PaymentStatusResult reports the latest attempt and, for a failed one, why the stage did not advance.
type PaymentStatusResult struct {
	Stage   OnboardingStage `json:"stage"`
	Attempt *PaymentAttempt `json:"attempt"`
	Error   string          `json:"error,omitempty"`
}
