package usecases_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"memberhub.backend/internal/domain/entities"
	"memberhub.backend/internal/domain/repositories"
	"memberhub.backend/pkg/redis"
)

// Mock UnitOfWork
type MockUnitOfWork struct {
	mock.Mock
}

func (m *MockUnitOfWork) Do(ctx context.Context, fn func(context.Context) error) error {
	m.Called(ctx, fn)
	return fn(ctx)
}

// Mock MemberProfileRepository
type MockMemberProfileRepository struct {
	mock.Mock
}

func (m *MockMemberProfileRepository) Create(ctx context.Context, member *entities.MemberProfile) error {
	args := m.Called(ctx, member)
	return args.Error(0)
}

func (m *MockMemberProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.MemberProfile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.MemberProfile), args.Error(1)
}

func (m *MockMemberProfileRepository) Update(ctx context.Context, member *entities.MemberProfile) error {
	args := m.Called(ctx, member)
	return args.Error(0)
}

func (m *MockMemberProfileRepository) SetPaymentComplete(ctx context.Context, id uuid.UUID, complete bool) (bool, error) {
	args := m.Called(ctx, id, complete)
	return args.Bool(0), args.Error(1)
}

func (m *MockMemberProfileRepository) DisplayIDExists(ctx context.Context, displayID string) (bool, error) {
	args := m.Called(ctx, displayID)
	return args.Bool(0), args.Error(1)
}

func (m *MockMemberProfileRepository) ExistingIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]bool), args.Error(1)
}

func (m *MockMemberProfileRepository) List(ctx context.Context, filter entities.MemberListFilter) ([]*entities.MemberProfile, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*entities.MemberProfile), args.Get(1).(int64), args.Error(2)
}

func (m *MockMemberProfileRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// Mock OnboardingRecordRepository
type MockOnboardingRecordRepository struct {
	mock.Mock
}

func (m *MockOnboardingRecordRepository) Get(ctx context.Context, identityID uuid.UUID) (*entities.OnboardingRecord, error) {
	args := m.Called(ctx, identityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.OnboardingRecord), args.Error(1)
}

func (m *MockOnboardingRecordRepository) SetField(ctx context.Context, identityID uuid.UUID, field repositories.OnboardingField, value string) error {
	args := m.Called(ctx, identityID, field, value)
	return args.Error(0)
}

func (m *MockOnboardingRecordRepository) MarkCompleted(ctx context.Context, identityID uuid.UUID) error {
	args := m.Called(ctx, identityID)
	return args.Error(0)
}

func (m *MockOnboardingRecordRepository) Reset(ctx context.Context, identityID uuid.UUID) error {
	args := m.Called(ctx, identityID)
	return args.Error(0)
}

func (m *MockOnboardingRecordRepository) Delete(ctx context.Context, identityID uuid.UUID) error {
	args := m.Called(ctx, identityID)
	return args.Error(0)
}

// Mock PaymentAttemptRepository
type MockPaymentAttemptRepository struct {
	mock.Mock
}

func (m *MockPaymentAttemptRepository) Create(ctx context.Context, attempt *entities.PaymentAttempt) error {
	args := m.Called(ctx, attempt)
	return args.Error(0)
}

func (m *MockPaymentAttemptRepository) GetByPaymentID(ctx context.Context, paymentID string) (*entities.PaymentAttempt, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PaymentAttempt), args.Error(1)
}

func (m *MockPaymentAttemptRepository) GetLatestByIdentity(ctx context.Context, identityID uuid.UUID) (*entities.PaymentAttempt, error) {
	args := m.Called(ctx, identityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PaymentAttempt), args.Error(1)
}

func (m *MockPaymentAttemptRepository) UpdateStatus(ctx context.Context, paymentID string, status entities.PaymentStatus) (bool, error) {
	args := m.Called(ctx, paymentID, status)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentAttemptRepository) SetDisplayAsset(ctx context.Context, paymentID, asset string) error {
	args := m.Called(ctx, paymentID, asset)
	return args.Error(0)
}

func (m *MockPaymentAttemptRepository) ListByStatus(ctx context.Context, status entities.PaymentStatus) ([]*entities.PaymentAttempt, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.PaymentAttempt), args.Error(1)
}

func (m *MockPaymentAttemptRepository) DeleteByIdentity(ctx context.Context, identityID uuid.UUID) error {
	args := m.Called(ctx, identityID)
	return args.Error(0)
}

// Mock MembershipCardRepository
type MockMembershipCardRepository struct {
	mock.Mock
}

func (m *MockMembershipCardRepository) CreateIfAbsent(ctx context.Context, card *entities.MembershipCard) (bool, error) {
	args := m.Called(ctx, card)
	return args.Bool(0), args.Error(1)
}

func (m *MockMembershipCardRepository) GetByIdentity(ctx context.Context, identityID uuid.UUID) (*entities.MembershipCard, error) {
	args := m.Called(ctx, identityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.MembershipCard), args.Error(1)
}

func (m *MockMembershipCardRepository) Update(ctx context.Context, card *entities.MembershipCard) error {
	args := m.Called(ctx, card)
	return args.Error(0)
}

func (m *MockMembershipCardRepository) DeleteByIdentity(ctx context.Context, identityID uuid.UUID) error {
	args := m.Called(ctx, identityID)
	return args.Error(0)
}

// Mock PaymentGateway
type MockPaymentGateway struct {
	mock.Mock
}

func (m *MockPaymentGateway) EnsureCustomer(ctx context.Context, customer entities.PaymentCustomer) (string, error) {
	args := m.Called(ctx, customer)
	return args.String(0), args.Error(1)
}

func (m *MockPaymentGateway) Initiate(ctx context.Context, charge entities.PaymentCharge) (*entities.PaymentInitiation, error) {
	args := m.Called(ctx, charge)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.PaymentInitiation), args.Error(1)
}

func (m *MockPaymentGateway) GetStatus(ctx context.Context, paymentID string) (entities.PaymentStatus, error) {
	args := m.Called(ctx, paymentID)
	return args.Get(0).(entities.PaymentStatus), args.Error(1)
}

func (m *MockPaymentGateway) PixPayload(ctx context.Context, paymentID string) (string, error) {
	args := m.Called(ctx, paymentID)
	return args.String(0), args.Error(1)
}

func (m *MockPaymentGateway) CancelCharge(ctx context.Context, paymentID string) error {
	args := m.Called(ctx, paymentID)
	return args.Error(0)
}

func (m *MockPaymentGateway) RefundCharge(ctx context.Context, paymentID string) error {
	args := m.Called(ctx, paymentID)
	return args.Error(0)
}

// Mock BlobStorage
type MockBlobStorage struct {
	mock.Mock
}

func (m *MockBlobStorage) Store(ctx context.Context, path string, contentType string, data []byte) (string, error) {
	args := m.Called(ctx, path, contentType, data)
	return args.String(0), args.Error(1)
}

// Mock IdentityDirectory
type MockIdentityDirectory struct {
	mock.Mock
}

func (m *MockIdentityDirectory) ListIdentities(ctx context.Context) ([]entities.Identity, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.Identity), args.Error(1)
}

func (m *MockIdentityDirectory) GetIdentity(ctx context.Context, id uuid.UUID) (*entities.Identity, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Identity), args.Error(1)
}

func (m *MockIdentityDirectory) CanList() bool {
	args := m.Called()
	return args.Bool(0)
}

// Mock ApplicationRenderer
type MockApplicationRenderer struct {
	mock.Mock
}

func (m *MockApplicationRenderer) Render(ctx context.Context, doc entities.ApplicationDocument) ([]byte, error) {
	args := m.Called(ctx, doc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

// Mock PaymentPoller
type MockPaymentPoller struct {
	mock.Mock
}

func (m *MockPaymentPoller) Start(ctx context.Context, attempt *entities.PaymentAttempt, sessionID string) (bool, error) {
	args := m.Called(ctx, attempt, sessionID)
	return args.Bool(0), args.Error(1)
}

func (m *MockPaymentPoller) Cancel(ctx context.Context, paymentID string) bool {
	args := m.Called(ctx, paymentID)
	return args.Bool(0)
}

func (m *MockPaymentPoller) CancelSession(ctx context.Context, sessionID string) int {
	args := m.Called(ctx, sessionID)
	return args.Int(0)
}

func (m *MockPaymentPoller) IsActive(paymentID string) bool {
	args := m.Called(paymentID)
	return args.Bool(0)
}

// Mock PollTracker
type MockPollTracker struct {
	mock.Mock
}

func (m *MockPollTracker) TrackPoll(ctx context.Context, sessionID, paymentID string) error {
	args := m.Called(ctx, sessionID, paymentID)
	return args.Error(0)
}

// Mock SessionStore
type MockSessionStore struct {
	mock.Mock
}

func (m *MockSessionStore) CreateSession(ctx context.Context, sessionID string, data *redis.SessionData, expiration time.Duration) error {
	args := m.Called(ctx, sessionID, data, expiration)
	return args.Error(0)
}

func (m *MockSessionStore) GetSession(ctx context.Context, sessionID string) (*redis.SessionData, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*redis.SessionData), args.Error(1)
}

func (m *MockSessionStore) DeleteSession(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}
