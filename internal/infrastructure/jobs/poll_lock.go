package jobs

import (
	"context"
	"errors"
	"time"

	"memberhub.backend/pkg/crypto"
	"memberhub.backend/pkg/redis"
)

// ErrLockLost is returned by Refresh when another owner or a teardown took the lock.
var ErrLockLost = errors.New("poll lock lost")

// PollKey is the cross-instance lock key of a payment poll.
func PollKey(paymentID string) string {
	return "poll:" + paymentID
}

// PollLock guarantees one poll loop per payment across instances.
type PollLock interface {
	Acquire(ctx context.Context, paymentID string, ttl time.Duration) (bool, error)
	Refresh(ctx context.Context, paymentID string, ttl time.Duration) error
	Release(ctx context.Context, paymentID string) error
	// Revoke drops the lock whoever holds it, making the owner's next refresh fail.
	Revoke(ctx context.Context, paymentID string) error
}

var (
	lockSetNX            = redis.SetNX
	lockCompareAndExpire = redis.CompareAndExpire
	lockCompareAndDelete = redis.CompareAndDelete
	lockDel              = redis.Del
)

// RedisPollLock implements PollLock with SETNX and owner checked scripts.
type RedisPollLock struct {
	owner string
}

// NewRedisPollLock creates a lock owned by this process.
func NewRedisPollLock() (*RedisPollLock, error) {
	owner, err := crypto.GenerateRandomToken(16)
	if err != nil {
		return nil, err
	}
	return &RedisPollLock{owner: owner}, nil
}

func (l *RedisPollLock) Acquire(ctx context.Context, paymentID string, ttl time.Duration) (bool, error) {
	return lockSetNX(ctx, PollKey(paymentID), l.owner, ttl)
}

func (l *RedisPollLock) Refresh(ctx context.Context, paymentID string, ttl time.Duration) error {
	ok, err := lockCompareAndExpire(ctx, PollKey(paymentID), l.owner, ttl)
	if err != nil {
		return err
	}
	if !ok {
		return ErrLockLost
	}
	return nil
}

func (l *RedisPollLock) Release(ctx context.Context, paymentID string) error {
	_, err := lockCompareAndDelete(ctx, PollKey(paymentID), l.owner)
	return err
}

func (l *RedisPollLock) Revoke(ctx context.Context, paymentID string) error {
	return lockDel(ctx, PollKey(paymentID))
}
