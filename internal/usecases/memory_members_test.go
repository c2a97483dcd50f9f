package usecases_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"memberhub.backend/internal/domain/entities"
	domainerrors "memberhub.backend/internal/domain/errors"
)

// memoryMembers enforces the same unique keys as member_profiles.
type memoryMembers struct {
	mu       sync.Mutex
	rows     map[uuid.UUID]entities.MemberProfile
	failFor  map[uuid.UUID]error
	creates  int
	getDelay time.Duration
}

func newMemoryMembers() *memoryMembers {
	return &memoryMembers{rows: map[uuid.UUID]entities.MemberProfile{}, failFor: map[uuid.UUID]error{}}
}

func (s *memoryMembers) Create(_ context.Context, member *entities.MemberProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creates++
	if err := s.failFor[member.ID]; err != nil {
		return err
	}
	if _, ok := s.rows[member.ID]; ok {
		return domainerrors.ErrAlreadyExists
	}
	for _, row := range s.rows {
		if row.NationalID == member.NationalID || row.DisplayID == member.DisplayID {
			return domainerrors.ErrAlreadyExists
		}
	}
	s.rows[member.ID] = *member
	return nil
}

func (s *memoryMembers) GetByID(_ context.Context, id uuid.UUID) (*entities.MemberProfile, error) {
	if s.getDelay > 0 {
		time.Sleep(s.getDelay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, domainerrors.ErrNotFound
	}
	return &row, nil
}

func (s *memoryMembers) Update(_ context.Context, member *entities.MemberProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[member.ID]; !ok {
		return domainerrors.ErrNotFound
	}
	s.rows[member.ID] = *member
	return nil
}

func (s *memoryMembers) SetPaymentComplete(_ context.Context, id uuid.UUID, complete bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return false, domainerrors.ErrNotFound
	}
	if row.PaymentComplete == complete {
		return false, nil
	}
	row.PaymentComplete = complete
	s.rows[id] = row
	return true, nil
}

func (s *memoryMembers) DisplayIDExists(_ context.Context, displayID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.DisplayID == displayID {
			return true, nil
		}
	}
	return false, nil
}

func (s *memoryMembers) ExistingIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[uuid.UUID]bool{}
	for _, id := range ids {
		if _, ok := s.rows[id]; ok {
			out[id] = true
		}
	}
	return out, nil
}

func (s *memoryMembers) List(_ context.Context, _ entities.MemberListFilter) ([]*entities.MemberProfile, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*entities.MemberProfile
	for _, row := range s.rows {
		row := row
		out = append(out, &row)
	}
	return out, int64(len(out)), nil
}

func (s *memoryMembers) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
	return nil
}

func (s *memoryMembers) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}
