package usecases_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"
	"memberhub.backend/internal/domain/entities"
	domainerrors "memberhub.backend/internal/domain/errors"
	"memberhub.backend/internal/usecases"
	"memberhub.backend/pkg/redis"
)

func setupRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	srv, err := miniredis.Run()
	if err != nil {
		t.Skipf("skip: miniredis unavailable in this environment: %v", err)
	}
	t.Cleanup(srv.Close)
	redis.SetClient(goredis.NewClient(&goredis.Options{Addr: srv.Addr()}))
	return srv
}

func TestSessionService_OpenBootstrapsAndStores(t *testing.T) {
	members := newMemoryMembers()
	records := new(MockOnboardingRecordRepository)
	store := new(MockSessionStore)
	poller := new(MockPaymentPoller)
	id := uuid.New()

	record := entities.NewOnboardingRecord(id)
	record.IDDocumentURL = null.StringFrom("https://cdn/id.pdf")
	record.AddressDocumentURL = null.StringFrom("https://cdn/address.pdf")
	records.On("Get", mock.Anything, id).Return(record, nil)
	store.On("CreateSession", mock.Anything, mock.AnythingOfType("string"), mock.MatchedBy(func(d *redis.SessionData) bool {
		return d.IdentityID == id.String() && d.Email == "ana@example.com"
	}), time.Hour).Return(nil)

	svc := usecases.NewSessionService(store, newReconciliation(members, nil), records, poller, time.Hour)
	result, err := svc.Open(context.Background(), entities.Identity{ID: id, Email: "ana@example.com"})

	require.NoError(t, err)
	assert.Len(t, result.SessionID, 32)
	assert.Equal(t, entities.StagePayment, result.Stage)
	assert.Equal(t, "Ana", result.Member.Name)
	assert.Equal(t, 1, members.count())
	store.AssertExpectations(t)
}

func TestSessionService_OpenStoreFailure(t *testing.T) {
	records := new(MockOnboardingRecordRepository)
	store := new(MockSessionStore)
	id := uuid.New()
	records.On("Get", mock.Anything, id).Return(entities.NewOnboardingRecord(id), nil)
	store.On("CreateSession", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("redis down"))

	svc := usecases.NewSessionService(store, newReconciliation(newMemoryMembers(), nil), records, new(MockPaymentPoller), 0)
	_, err := svc.Open(context.Background(), entities.Identity{ID: id})

	assert.True(t, domainerrors.IsRetryable(err))
}

func TestSessionService_Get(t *testing.T) {
	store := new(MockSessionStore)
	id := uuid.New()
	store.On("GetSession", mock.Anything, "live").Return(&redis.SessionData{IdentityID: id.String(), Email: "a@b.c"}, nil)
	store.On("GetSession", mock.Anything, "gone").Return(nil, goredis.Nil)
	store.On("GetSession", mock.Anything, "garbled").Return(nil, errors.New("square/go-jose: error in cryptographic primitive"))

	svc := usecases.NewSessionService(store, nil, nil, nil, time.Hour)

	session, err := svc.Get(context.Background(), "live")
	require.NoError(t, err)
	assert.Equal(t, id, session.IdentityID)
	assert.Equal(t, "live", session.ID)

	_, err = svc.Get(context.Background(), "gone")
	assert.ErrorIs(t, err, domainerrors.ErrSessionNotFound)
	_, err = svc.Get(context.Background(), "garbled")
	assert.ErrorIs(t, err, domainerrors.ErrSessionNotFound)
	_, err = svc.Get(context.Background(), "")
	assert.ErrorIs(t, err, domainerrors.ErrSessionNotFound)
}

func TestSessionService_CloseStopsTrackedPolls(t *testing.T) {
	srv := setupRedis(t)
	store := new(MockSessionStore)
	poller := new(MockPaymentPoller)
	svc := usecases.NewSessionService(store, nil, nil, poller, time.Hour)
	ctx := context.Background()

	require.NoError(t, svc.TrackPoll(ctx, "sess-1", "pay_local"))
	require.NoError(t, svc.TrackPoll(ctx, "sess-1", "pay_remote"))
	assert.Equal(t, time.Hour, srv.TTL("session:sess-1:polls"))

	poller.On("CancelSession", mock.Anything, "sess-1").Return(1)
	poller.On("Cancel", mock.Anything, "pay_local").Return(false)
	poller.On("Cancel", mock.Anything, "pay_remote").Return(false)
	store.On("DeleteSession", mock.Anything, "sess-1").Return(nil)

	require.NoError(t, svc.Close(ctx, "sess-1"))
	assert.False(t, srv.Exists("session:sess-1:polls"))
	poller.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestSessionService_CloseWithoutPolls(t *testing.T) {
	setupRedis(t)
	store := new(MockSessionStore)
	poller := new(MockPaymentPoller)
	poller.On("CancelSession", mock.Anything, "sess-2").Return(0)
	store.On("DeleteSession", mock.Anything, "sess-2").Return(nil)

	svc := usecases.NewSessionService(store, nil, nil, poller, time.Hour)
	require.NoError(t, svc.Close(context.Background(), "sess-2"))
	poller.AssertNotCalled(t, "Cancel", mock.Anything, mock.Anything)

	assert.ErrorIs(t, svc.Close(context.Background(), ""), domainerrors.ErrSessionNotFound)
}

func TestSessionService_TrackPollIgnoresAnonymous(t *testing.T) {
	svc := usecases.NewSessionService(nil, nil, nil, nil, time.Hour)
	assert.NoError(t, svc.TrackPoll(context.Background(), "", "pay_1"))
}
