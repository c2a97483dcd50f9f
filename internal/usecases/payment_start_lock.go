package usecases

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// localStartLock serializes payment starts inside one process. Deployments with
// more than one instance wire a shared lock instead.
type localStartLock struct {
	mu   sync.Mutex
	held map[uuid.UUID]struct{}
}

func newLocalStartLock() *localStartLock {
	return &localStartLock{held: make(map[uuid.UUID]struct{})}
}

func (l *localStartLock) Acquire(_ context.Context, identityID uuid.UUID) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[identityID]; ok {
		return nil, false, nil
	}
	l.held[identityID] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, identityID)
			l.mu.Unlock()
		})
	}, true, nil
}
