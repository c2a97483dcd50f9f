package usecases

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"memberhub.backend/internal/domain/entities"
	domainerrors "memberhub.backend/internal/domain/errors"
	"memberhub.backend/internal/domain/repositories"
	"memberhub.backend/pkg/crypto"
	"memberhub.backend/pkg/logger"
	"memberhub.backend/pkg/redis"
)

// DefaultSessionTTL applies when no session ttl is configured.
const DefaultSessionTTL = 12 * time.Hour

var (
	trackSessionPoll  = redis.SAdd
	listSessionPolls  = redis.SMembers
	expireSessionPoll = redis.Expire
	dropSessionPolls  = redis.Del
	newSessionID      = crypto.GenerateSessionID
)

func sessionPollsKey(sessionID string) string {
	return "session:" + sessionID + ":polls"
}

// SessionService opens member sessions and tears down the work started inside them.
type SessionService struct {
	store          SessionStore
	reconciliation *ReconciliationUsecase
	records        repositories.OnboardingRecordRepository
	poller         PaymentPoller
	ttl            time.Duration
	now            func() time.Time
}

// NewSessionService creates a new session service
func NewSessionService(
	store SessionStore,
	reconciliation *ReconciliationUsecase,
	records repositories.OnboardingRecordRepository,
	poller PaymentPoller,
	ttl time.Duration,
) *SessionService {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionService{
		store:          store,
		reconciliation: reconciliation,
		records:        records,
		poller:         poller,
		ttl:            ttl,
		now:            time.Now,
	}
}

// Open bootstraps the member profile of identity and starts a session for it.
func (s *SessionService) Open(ctx context.Context, identity entities.Identity) (*entities.OpenSessionResult, error) {
	profile, created, err := s.reconciliation.Bootstrap(ctx, identity)
	if err != nil {
		return nil, err
	}

	record, err := s.records.Get(ctx, identity.ID)
	if err != nil {
		return nil, domainerrors.Persistence("load onboarding record", err)
	}

	sessionID, err := newSessionID()
	if err != nil {
		return nil, err
	}
	data := &redis.SessionData{
		IdentityID: identity.ID.String(),
		Email:      identity.Email,
		OpenedAt:   s.now().UTC(),
	}
	if err := s.store.CreateSession(ctx, sessionID, data, s.ttl); err != nil {
		return nil, domainerrors.Persistence("create session", err)
	}

	logger.Info(ctx, "Session opened",
		zap.String("identity_id", identity.ID.String()),
		zap.Bool("profile_created", created),
	)
	return &entities.OpenSessionResult{
		SessionID: sessionID,
		Member:    profile,
		Stage:     entities.DeriveStage(record),
	}, nil
}

// Get loads an open session.
func (s *SessionService) Get(ctx context.Context, sessionID string) (*entities.Session, error) {
	if sessionID == "" {
		return nil, domainerrors.ErrSessionNotFound
	}
	data, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		if redis.IsNil(err) {
			return nil, domainerrors.ErrSessionNotFound
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// undecryptable payloads are treated like a missing session
		logger.Warn(ctx, "Session lookup failed", zap.Error(err))
		return nil, domainerrors.ErrSessionNotFound
	}
	identityID, err := uuid.Parse(data.IdentityID)
	if err != nil {
		return nil, domainerrors.ErrSessionNotFound
	}
	return &entities.Session{
		ID:         sessionID,
		IdentityID: identityID,
		Email:      data.Email,
		OpenedAt:   data.OpenedAt,
	}, nil
}

// TrackPoll remembers that paymentID is polled on behalf of sessionID.
func (s *SessionService) TrackPoll(ctx context.Context, sessionID, paymentID string) error {
	if sessionID == "" {
		return nil
	}
	key := sessionPollsKey(sessionID)
	if err := trackSessionPoll(ctx, key, paymentID); err != nil {
		return err
	}
	return expireSessionPoll(ctx, key, s.ttl)
}

// Close stops every poll started in the session, here or on another instance,
// and drops the session.
func (s *SessionService) Close(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return domainerrors.ErrSessionNotFound
	}

	stopped := s.poller.CancelSession(ctx, sessionID)

	key := sessionPollsKey(sessionID)
	paymentIDs, err := listSessionPolls(ctx, key)
	if err != nil && !redis.IsNil(err) {
		logger.Warn(ctx, "Failed to list session polls", zap.Error(err))
	}
	for _, paymentID := range paymentIDs {
		if s.poller.Cancel(ctx, paymentID) {
			stopped++
		}
	}

	var errs []error
	if err := dropSessionPolls(ctx, key); err != nil {
		errs = append(errs, err)
	}
	if err := s.store.DeleteSession(ctx, sessionID); err != nil {
		errs = append(errs, err)
	}

	logger.Info(ctx, "Session closed", zap.Int("polls_stopped", stopped))
	if len(errs) > 0 {
		return domainerrors.Persistence("close session", errors.Join(errs...))
	}
	return nil
}
