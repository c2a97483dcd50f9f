package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"memberhub.backend/pkg/crypto"
	"memberhub.backend/pkg/logger"
)

// DefaultStartLockTTL bounds how long a crashed start can block the next one.
const DefaultStartLockTTL = time.Minute

// StartKey is the cross-instance lock key of a payment initiation.
func StartKey(identityID uuid.UUID) string {
	return "payment:start:" + identityID.String()
}

// RedisStartLock lets one payment initiation per identity run across instances.
type RedisStartLock struct {
	ttl time.Duration
}

// NewRedisStartLock creates a start lock. A zero ttl uses DefaultStartLockTTL.
func NewRedisStartLock(ttl time.Duration) *RedisStartLock {
	if ttl <= 0 {
		ttl = DefaultStartLockTTL
	}
	return &RedisStartLock{ttl: ttl}
}

// Acquire takes the lock of identityID without waiting. Each holder gets its own
// token, so a release after expiry never drops a newer holder's lock.
func (l *RedisStartLock) Acquire(ctx context.Context, identityID uuid.UUID) (func(), bool, error) {
	token, err := crypto.GenerateRandomToken(16)
	if err != nil {
		return nil, false, err
	}
	key := StartKey(identityID)
	ok, err := lockSetNX(ctx, key, token, l.ttl)
	if err != nil || !ok {
		return nil, false, err
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if _, err := lockCompareAndDelete(releaseCtx, key, token); err != nil {
			logger.Warn(releaseCtx, "Failed to release payment start lock", zap.String("identity_id", identityID.String()), zap.Error(err))
		}
	}
	return release, true, nil
}
