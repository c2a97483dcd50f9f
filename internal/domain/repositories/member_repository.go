package repositories

import (
	"context"

	"github.com/google/uuid"
	"memberhub.backend/internal/domain/entities"
)

// MemberProfileRepository defines member profile data operations
type MemberProfileRepository interface {
	// Create returns ErrAlreadyExists when the id, national id or display id is taken.
	Create(ctx context.Context, member *entities.MemberProfile) error
	GetByID(ctx context.Context, id uuid.UUID) (*entities.MemberProfile, error)
	Update(ctx context.Context, member *entities.MemberProfile) error
	// SetPaymentComplete reports whether the persisted flag changed.
	SetPaymentComplete(ctx context.Context, id uuid.UUID, complete bool) (bool, error)
	DisplayIDExists(ctx context.Context, displayID string) (bool, error)
	ExistingIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error)
	List(ctx context.Context, filter entities.MemberListFilter) ([]*entities.MemberProfile, int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// OnboardingRecordRepository defines onboarding progress operations
type OnboardingRecordRepository interface {
	// Get returns an empty record when none is stored.
	Get(ctx context.Context, identityID uuid.UUID) (*entities.OnboardingRecord, error)
	// SetField upserts a single optional field.
	SetField(ctx context.Context, identityID uuid.UUID, field OnboardingField, value string) error
	MarkCompleted(ctx context.Context, identityID uuid.UUID) error
	Reset(ctx context.Context, identityID uuid.UUID) error
	Delete(ctx context.Context, identityID uuid.UUID) error
}

// OnboardingField names a writable record column
type OnboardingField string

const (
	FieldIDDocumentURL      OnboardingField = "id_document_url"
	FieldAddressDocumentURL OnboardingField = "address_document_url"
	FieldPaymentID          OnboardingField = "payment_id"
	FieldSignatureURL       OnboardingField = "signature_url"
)

// PaymentAttemptRepository defines payment attempt operations
type PaymentAttemptRepository interface {
	Create(ctx context.Context, attempt *entities.PaymentAttempt) error
	GetByPaymentID(ctx context.Context, paymentID string) (*entities.PaymentAttempt, error)
	GetLatestByIdentity(ctx context.Context, identityID uuid.UUID) (*entities.PaymentAttempt, error)
	// UpdateStatus only changes non-terminal attempts and reports whether a row moved.
	UpdateStatus(ctx context.Context, paymentID string, status entities.PaymentStatus) (bool, error)
	SetDisplayAsset(ctx context.Context, paymentID, asset string) error
	ListByStatus(ctx context.Context, status entities.PaymentStatus) ([]*entities.PaymentAttempt, error)
	DeleteByIdentity(ctx context.Context, identityID uuid.UUID) error
}

// MembershipCardRepository defines membership card operations
type MembershipCardRepository interface {
	// CreateIfAbsent reports whether a new card was inserted.
	CreateIfAbsent(ctx context.Context, card *entities.MembershipCard) (bool, error)
	GetByIdentity(ctx context.Context, identityID uuid.UUID) (*entities.MembershipCard, error)
	Update(ctx context.Context, card *entities.MembershipCard) error
	DeleteByIdentity(ctx context.Context, identityID uuid.UUID) error
}
