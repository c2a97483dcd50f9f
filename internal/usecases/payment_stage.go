package usecases

import (
	"context"
	"strconv"
	"strings"
	"time"

	"memberhub.backend/internal/domain/entities"
	domainerrors "memberhub.backend/internal/domain/errors"
)

const (
	// DefaultChargeAmount is the membership fee.
	DefaultChargeAmount = "39.90"
	DefaultBoletoDueIn  = 72 * time.Hour

	chargeDescription = "Membership enrollment fee"
)

// PaymentStage charges the membership fee through the gateway.
type PaymentStage struct {
	gateway     PaymentGateway
	amount      string
	boletoDueIn time.Duration
	now         func() time.Time
}

// NewPaymentStage creates a payment stage charging amount.
func NewPaymentStage(gateway PaymentGateway, amount string, boletoDueIn time.Duration) *PaymentStage {
	if amount == "" {
		amount = DefaultChargeAmount
	}
	if boletoDueIn <= 0 {
		boletoDueIn = DefaultBoletoDueIn
	}
	return &PaymentStage{gateway: gateway, amount: amount, boletoDueIn: boletoDueIn, now: time.Now}
}

// Validate checks the input without calling the gateway.
func (s *PaymentStage) Validate(input *entities.StartPaymentInput) error {
	if input == nil || !input.Method.Valid() {
		return domainerrors.Invalid("method", "must be CREDIT_CARD, PIX or BOLETO")
	}
	if input.Method != entities.PaymentMethodCreditCard {
		return nil
	}
	return validateCreditCard(input.CreditCard, s.now())
}

// Initiate creates the gateway charge for member. Credit card attempts carry the
// gateway verdict; polled attempts are returned as processing.
func (s *PaymentStage) Initiate(ctx context.Context, member *entities.MemberProfile, input *entities.StartPaymentInput) (*entities.PaymentAttempt, error) {
	if err := s.Validate(input); err != nil {
		return nil, err
	}

	customer := entities.PaymentCustomer{
		Name:       member.Name,
		NationalID: entities.NormalizeNationalID(member.NationalID),
		Email:      member.Email,
		Phone:      member.Phone,
	}
	customerID, err := s.gateway.EnsureCustomer(ctx, customer)
	if err != nil {
		return nil, &domainerrors.GatewayError{Op: "ensure customer", Err: err}
	}

	now := s.now()
	charge := entities.PaymentCharge{
		CustomerID:  customerID,
		Method:      input.Method,
		Amount:      s.amount,
		Description: chargeDescription,
		ExternalRef: member.ID.String(),
		DueDate:     now.Add(s.boletoDueIn),
		CreditCard:  input.CreditCard,
		Holder:      customer,
		RemoteIP:    input.CustomerIP,
	}
	if input.Method == entities.PaymentMethodCreditCard {
		charge.DueDate = now
	}

	initiation, err := s.gateway.Initiate(ctx, charge)
	if err != nil {
		return nil, &domainerrors.GatewayError{Op: "initiate payment", Err: err}
	}

	attempt := &entities.PaymentAttempt{
		PaymentID:    initiation.PaymentID,
		IdentityID:   member.ID,
		Method:       input.Method,
		Status:       initiation.Status,
		Amount:       s.amount,
		DisplayAsset: initiation.DisplayAsset,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if input.Method.Polled() {
		attempt.Status = entities.PaymentStatusProcessing
	}
	return attempt, nil
}

// Void makes a charge unpayable gateway side. Captured card charges are refunded;
// declined card charges hold no money and are left alone.
func (s *PaymentStage) Void(ctx context.Context, attempt *entities.PaymentAttempt) error {
	var err error
	switch {
	case attempt.Method != entities.PaymentMethodCreditCard:
		err = s.gateway.CancelCharge(ctx, attempt.PaymentID)
	case attempt.Status.Succeeded():
		err = s.gateway.RefundCharge(ctx, attempt.PaymentID)
	default:
		return nil
	}
	if err != nil {
		return &domainerrors.GatewayError{Op: "void payment", Err: err}
	}
	return nil
}

// DisplayAsset fetches the pix payload of a charge created without one.
func (s *PaymentStage) DisplayAsset(ctx context.Context, attempt *entities.PaymentAttempt) (string, error) {
	payload, err := s.gateway.PixPayload(ctx, attempt.PaymentID)
	if err != nil {
		return "", &domainerrors.GatewayError{Op: "fetch pix qr code", Err: err}
	}
	return payload, nil
}

func validateCreditCard(card *entities.CreditCardInput, now time.Time) error {
	if card == nil {
		return domainerrors.Invalid("creditCard", "card details are required")
	}
	if strings.TrimSpace(card.HolderName) == "" {
		return domainerrors.Invalid("creditCard.holderName", "is required")
	}
	if !luhnValid(card.Number) {
		return domainerrors.Invalid("creditCard.number", "is not a valid card number")
	}

	month, err := strconv.Atoi(strings.TrimSpace(card.ExpiryMonth))
	if err != nil || month < 1 || month > 12 {
		return domainerrors.Invalid("creditCard.expiryMonth", "must be between 01 and 12")
	}
	year, err := strconv.Atoi(strings.TrimSpace(card.ExpiryYear))
	if err != nil || year < 0 {
		return domainerrors.Invalid("creditCard.expiryYear", "is not a year")
	}
	if year < 100 {
		year += 2000
	}
	// cards are valid through the last day of the expiry month
	expires := time.Date(year, time.Month(month)+1, 1, 0, 0, 0, 0, time.UTC)
	if !now.UTC().Before(expires) {
		return domainerrors.Invalid("creditCard.expiry", "card has expired")
	}

	ccv := strings.TrimSpace(card.CCV)
	if len(ccv) < 3 || len(ccv) > 4 || !allDigits(ccv) {
		return domainerrors.Invalid("creditCard.ccv", "must have 3 or 4 digits")
	}
	return nil
}

func luhnValid(number string) bool {
	digits := strings.NewReplacer(" ", "", "-", "").Replace(number)
	if len(digits) < 13 || len(digits) > 19 || !allDigits(digits) {
		return false
	}
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
