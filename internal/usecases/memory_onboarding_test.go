package usecases_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"memberhub.backend/internal/domain/entities"
	domainerrors "memberhub.backend/internal/domain/errors"
	"memberhub.backend/internal/domain/repositories"
)

type memoryRecords struct {
	mu        sync.Mutex
	rows      map[uuid.UUID]entities.OnboardingRecord
	setCalls  map[repositories.OnboardingField]int
	failField repositories.OnboardingField
}

func newMemoryRecords() *memoryRecords {
	return &memoryRecords{rows: map[uuid.UUID]entities.OnboardingRecord{}, setCalls: map[repositories.OnboardingField]int{}}
}

func (s *memoryRecords) Get(_ context.Context, id uuid.UUID) (*entities.OnboardingRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return entities.NewOnboardingRecord(id), nil
	}
	return &row, nil
}

func (s *memoryRecords) SetField(_ context.Context, id uuid.UUID, field repositories.OnboardingField, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if field == s.failField {
		return domainerrors.Persistence("save "+string(field), context.DeadlineExceeded)
	}
	s.setCalls[field]++
	row, ok := s.rows[id]
	if !ok {
		row = *entities.NewOnboardingRecord(id)
	}
	v := null.StringFrom(value)
	switch field {
	case repositories.FieldIDDocumentURL:
		row.IDDocumentURL = v
	case repositories.FieldAddressDocumentURL:
		row.AddressDocumentURL = v
	case repositories.FieldPaymentID:
		row.PaymentID = v
	case repositories.FieldSignatureURL:
		row.SignatureURL = v
	}
	row.UpdatedAt = time.Now()
	s.rows[id] = row
	return nil
}

func (s *memoryRecords) MarkCompleted(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if ok && !row.CompletedAt.Valid {
		row.CompletedAt = null.TimeFrom(time.Now())
		s.rows[id] = row
	}
	return nil
}

func (s *memoryRecords) Reset(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; ok {
		s.rows[id] = *entities.NewOnboardingRecord(id)
	}
	return nil
}

func (s *memoryRecords) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

func (s *memoryRecords) put(r *entities.OnboardingRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[r.IdentityID] = *r
}

func (s *memoryRecords) calls(field repositories.OnboardingField) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setCalls[field]
}

type memoryAttempts struct {
	mu        sync.Mutex
	rows      map[string]entities.PaymentAttempt
	seq       int
	createErr error
}

func newMemoryAttempts() *memoryAttempts {
	return &memoryAttempts{rows: map[string]entities.PaymentAttempt{}}
}

func (s *memoryAttempts) Create(_ context.Context, attempt *entities.PaymentAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	if _, ok := s.rows[attempt.PaymentID]; ok {
		return domainerrors.ErrAlreadyExists
	}
	s.seq++
	row := *attempt
	row.CreatedAt = time.Unix(int64(s.seq), 0)
	s.rows[attempt.PaymentID] = row
	return nil
}

func (s *memoryAttempts) GetByPaymentID(_ context.Context, paymentID string) (*entities.PaymentAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[paymentID]
	if !ok {
		return nil, domainerrors.ErrNotFound
	}
	return &row, nil
}

func (s *memoryAttempts) GetLatestByIdentity(_ context.Context, identityID uuid.UUID) (*entities.PaymentAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *entities.PaymentAttempt
	for _, row := range s.rows {
		row := row
		if row.IdentityID == identityID && (latest == nil || row.CreatedAt.After(latest.CreatedAt)) {
			latest = &row
		}
	}
	if latest == nil {
		return nil, domainerrors.ErrNotFound
	}
	return latest, nil
}

func (s *memoryAttempts) UpdateStatus(_ context.Context, paymentID string, status entities.PaymentStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[paymentID]
	if !ok || row.Status.Terminal() {
		return false, nil
	}
	row.Status = status
	s.rows[paymentID] = row
	return true, nil
}

func (s *memoryAttempts) SetDisplayAsset(_ context.Context, paymentID, asset string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[paymentID]
	if !ok {
		return domainerrors.ErrNotFound
	}
	row.DisplayAsset = asset
	s.rows[paymentID] = row
	return nil
}

func (s *memoryAttempts) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func (s *memoryAttempts) ListByStatus(_ context.Context, status entities.PaymentStatus) ([]*entities.PaymentAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entities.PaymentAttempt
	for _, row := range s.rows {
		row := row
		if row.Status == status {
			out = append(out, &row)
		}
	}
	return out, nil
}

func (s *memoryAttempts) DeleteByIdentity(_ context.Context, identityID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, row := range s.rows {
		if row.IdentityID == identityID {
			delete(s.rows, id)
		}
	}
	return nil
}

func (s *memoryAttempts) status(paymentID string) entities.PaymentStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[paymentID].Status
}

type memoryCards struct {
	mu   sync.Mutex
	rows map[uuid.UUID]entities.MembershipCard
	err  error
}

func newMemoryCards() *memoryCards {
	return &memoryCards{rows: map[uuid.UUID]entities.MembershipCard{}}
}

func (s *memoryCards) CreateIfAbsent(_ context.Context, card *entities.MembershipCard) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	if _, ok := s.rows[card.IdentityID]; ok {
		return false, nil
	}
	s.rows[card.IdentityID] = *card
	return true, nil
}

func (s *memoryCards) GetByIdentity(_ context.Context, identityID uuid.UUID) (*entities.MembershipCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	row, ok := s.rows[identityID]
	if !ok {
		return nil, domainerrors.ErrNotFound
	}
	return &row, nil
}

func (s *memoryCards) Update(_ context.Context, card *entities.MembershipCard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[card.IdentityID]; !ok {
		return domainerrors.ErrNotFound
	}
	s.rows[card.IdentityID] = *card
	return nil
}

func (s *memoryCards) DeleteByIdentity(_ context.Context, identityID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	delete(s.rows, identityID)
	return nil
}

func (s *memoryCards) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

// txUnitOfWork runs fn inline and counts transactions.
type txUnitOfWork struct {
	mu    sync.Mutex
	calls int
}

func (u *txUnitOfWork) Do(ctx context.Context, fn func(context.Context) error) error {
	u.mu.Lock()
	u.calls++
	u.mu.Unlock()
	return fn(ctx)
}
