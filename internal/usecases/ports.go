package usecases

import (
	"context"
	"time"

	"github.com/google/uuid"
	"memberhub.backend/internal/domain/entities"
	"memberhub.backend/pkg/redis"
)

// PaymentGateway is the subset of the gateway client the payment stage uses.
type PaymentGateway interface {
	EnsureCustomer(ctx context.Context, customer entities.PaymentCustomer) (string, error)
	Initiate(ctx context.Context, charge entities.PaymentCharge) (*entities.PaymentInitiation, error)
	GetStatus(ctx context.Context, paymentID string) (entities.PaymentStatus, error)
	PixPayload(ctx context.Context, paymentID string) (string, error)
	CancelCharge(ctx context.Context, paymentID string) error
	RefundCharge(ctx context.Context, paymentID string) error
}

// PaymentStartLock lets one payment initiation per identity run at a time.
// Acquire never blocks; a false result means another start holds the lock.
type PaymentStartLock interface {
	Acquire(ctx context.Context, identityID uuid.UUID) (release func(), acquired bool, err error)
}

// BlobStorage stores uploaded and generated files and returns their public url.
type BlobStorage interface {
	Store(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// IdentityDirectory lists identities known to the identity service.
type IdentityDirectory interface {
	ListIdentities(ctx context.Context) ([]entities.Identity, error)
	GetIdentity(ctx context.Context, id uuid.UUID) (*entities.Identity, error)
	CanList() bool
}

// ApplicationRenderer composes the signed application document.
type ApplicationRenderer interface {
	Render(ctx context.Context, doc entities.ApplicationDocument) ([]byte, error)
}

// PaymentPoller runs the status loops of asynchronous payments.
type PaymentPoller interface {
	Start(ctx context.Context, attempt *entities.PaymentAttempt, sessionID string) (bool, error)
	Cancel(ctx context.Context, paymentID string) bool
	CancelSession(ctx context.Context, sessionID string) int
	IsActive(paymentID string) bool
}

// SessionStore persists encrypted session payloads.
type SessionStore interface {
	CreateSession(ctx context.Context, sessionID string, data *redis.SessionData, expiration time.Duration) error
	GetSession(ctx context.Context, sessionID string) (*redis.SessionData, error)
	DeleteSession(ctx context.Context, sessionID string) error
}

// PollTracker records which session started a poll so closing it can stop the poll anywhere.
type PollTracker interface {
	TrackPoll(ctx context.Context, sessionID, paymentID string) error
}
