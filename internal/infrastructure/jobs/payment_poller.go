package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"memberhub.backend/internal/domain/entities"
	"memberhub.backend/pkg/logger"
	"memberhub.backend/pkg/metrics"
)

const (
	DefaultPollInterval = 10 * time.Second
	lockTTLFactor       = 3
	releaseTimeout      = 2 * time.Second
)

// ErrPollerStopped is returned by Start after Shutdown.
var ErrPollerStopped = errors.New("payment poller stopped")

// StatusFetcher reads a payment status from the gateway.
type StatusFetcher interface {
	GetStatus(ctx context.Context, paymentID string) (entities.PaymentStatus, error)
}

// Settler applies a terminal status. It is called at most once per successful settle.
type Settler interface {
	SettlePayment(ctx context.Context, attempt *entities.PaymentAttempt, status entities.PaymentStatus) error
}

// Ticker abstracts time.Ticker so tests can drive poll rounds.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// NewRealTicker wraps time.NewTicker.
func NewRealTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

type pollTask struct {
	paymentID string
	sessionID string
	cancel    context.CancelFunc
	done      chan struct{}
}

// PaymentPoller runs one cancellable poll loop per asynchronous payment.
type PaymentPoller struct {
	fetcher   StatusFetcher
	lock      PollLock
	interval  time.Duration
	metrics   *metrics.Metrics
	newTicker func(time.Duration) Ticker

	mu      sync.Mutex
	settler Settler
	active  map[string]*pollTask
	base    context.Context
	stopAll context.CancelFunc
	stopped bool
	wg      sync.WaitGroup
}

// NewPaymentPoller creates a poller. A zero interval uses DefaultPollInterval.
func NewPaymentPoller(fetcher StatusFetcher, lock PollLock, interval time.Duration, m *metrics.Metrics) *PaymentPoller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	base, cancel := context.WithCancel(context.Background())
	return &PaymentPoller{
		fetcher:   fetcher,
		lock:      lock,
		interval:  interval,
		metrics:   m,
		newTicker: NewRealTicker,
		active:    make(map[string]*pollTask),
		base:      base,
		stopAll:   cancel,
	}
}

// SetTicker replaces the ticker factory. Used by tests.
func (p *PaymentPoller) SetTicker(f func(time.Duration) Ticker) {
	p.newTicker = f
}

// SetSettler wires the component that applies terminal statuses.
func (p *PaymentPoller) SetSettler(s Settler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.settler = s
}

// Start begins polling attempt unless a loop for it already runs here or in
// another instance. It reports whether a new loop was started. The cross-instance
// lock is taken without holding the registry mutex; the registry entry reserves
// the payment id meanwhile.
func (p *PaymentPoller) Start(ctx context.Context, attempt *entities.PaymentAttempt, sessionID string) (bool, error) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return false, ErrPollerStopped
	}
	if _, ok := p.active[attempt.PaymentID]; ok {
		p.mu.Unlock()
		return false, nil
	}
	loopCtx, cancel := context.WithCancel(p.base)
	task := &pollTask{
		paymentID: attempt.PaymentID,
		sessionID: sessionID,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	p.active[attempt.PaymentID] = task
	p.mu.Unlock()

	acquired, err := p.lock.Acquire(ctx, attempt.PaymentID, p.lockTTL())

	p.mu.Lock()
	// Cancel, CancelSession or Shutdown may have run while the lock was pending.
	if err != nil || !acquired || p.stopped || loopCtx.Err() != nil {
		if current, ok := p.active[attempt.PaymentID]; ok && current == task {
			delete(p.active, attempt.PaymentID)
		}
		stopped := p.stopped
		p.mu.Unlock()

		if acquired {
			releaseCtx, cancelRelease := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
			if err := p.lock.Release(releaseCtx, attempt.PaymentID); err != nil {
				logger.Warn(releaseCtx, "Failed to release poll lock", zap.String("payment_id", attempt.PaymentID), zap.Error(err))
			}
			cancelRelease()
		}
		cancel()
		close(task.done)

		switch {
		case err != nil:
			return false, err
		case stopped:
			return false, ErrPollerStopped
		}
		return false, nil
	}
	p.wg.Add(1)
	p.mu.Unlock()

	p.metrics.PollStarted()
	loopCtx = context.WithValue(loopCtx, logger.RequestIDKey, logger.RequestID(ctx))
	snapshot := *attempt
	go p.run(loopCtx, task, &snapshot, p.newTicker(p.interval))

	logger.Info(ctx, "Payment poll started",
		zap.String("payment_id", attempt.PaymentID),
		zap.String("identity_id", attempt.IdentityID.String()),
		zap.Duration("interval", p.interval),
	)
	return true, nil
}

// Cancel stops the loop of paymentID and waits for it to exit. It also revokes
// the cross-instance lock so a loop owned by another instance stops on its next round.
func (p *PaymentPoller) Cancel(ctx context.Context, paymentID string) bool {
	p.mu.Lock()
	task, ok := p.active[paymentID]
	p.mu.Unlock()

	if !ok {
		if err := p.lock.Revoke(ctx, paymentID); err != nil {
			logger.Warn(ctx, "Failed to revoke poll lock", zap.String("payment_id", paymentID), zap.Error(err))
		}
		return false
	}
	task.cancel()
	<-task.done
	return true
}

// CancelSession stops every local loop started by sessionID.
func (p *PaymentPoller) CancelSession(ctx context.Context, sessionID string) int {
	p.mu.Lock()
	var tasks []*pollTask
	for _, task := range p.active {
		if sessionID != "" && task.sessionID == sessionID {
			tasks = append(tasks, task)
		}
	}
	p.mu.Unlock()

	for _, task := range tasks {
		task.cancel()
		<-task.done
	}
	return len(tasks)
}

// IsActive reports whether a local loop runs for paymentID.
func (p *PaymentPoller) IsActive(paymentID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.active[paymentID]
	return ok
}

// ActiveCount reports the number of local loops.
func (p *PaymentPoller) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

// Resume restarts loops for attempts left processing by a previous process.
func (p *PaymentPoller) Resume(ctx context.Context, attempts []*entities.PaymentAttempt) int {
	started := 0
	for _, attempt := range attempts {
		if !attempt.Method.Polled() || attempt.Status.Terminal() {
			continue
		}
		ok, err := p.Start(ctx, attempt, "")
		if err != nil {
			logger.Error(ctx, "Failed to resume payment poll", zap.String("payment_id", attempt.PaymentID), zap.Error(err))
			continue
		}
		if ok {
			started++
		}
	}
	return started
}

// Shutdown cancels every loop and waits until they exit or ctx expires.
func (p *PaymentPoller) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	p.stopAll()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *PaymentPoller) lockTTL() time.Duration {
	return p.interval * lockTTLFactor
}

func (p *PaymentPoller) currentSettler() Settler {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settler
}

func (p *PaymentPoller) run(ctx context.Context, task *pollTask, attempt *entities.PaymentAttempt, ticker Ticker) {
	defer p.finish(ctx, task)
	defer ticker.Stop()

	var terminal entities.PaymentStatus
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
		}
		// A tick and a cancellation can be ready together.
		if ctx.Err() != nil {
			return
		}

		if err := p.lock.Refresh(ctx, attempt.PaymentID, p.lockTTL()); err != nil {
			if errors.Is(err, ErrLockLost) {
				logger.Info(ctx, "Payment poll lock revoked, stopping", zap.String("payment_id", attempt.PaymentID))
				return
			}
			logger.Warn(ctx, "Failed to refresh poll lock", zap.String("payment_id", attempt.PaymentID), zap.Error(err))
		}

		if terminal == "" {
			status, err := p.fetcher.GetStatus(ctx, attempt.PaymentID)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				p.metrics.PaymentPolled("error")
				logger.Warn(ctx, "Payment status poll failed", zap.String("payment_id", attempt.PaymentID), zap.Error(err))
				continue
			}
			p.metrics.PaymentPolled(string(status))
			if !status.Terminal() {
				continue
			}
			terminal = status
			logger.Info(ctx, "Payment reached terminal status",
				zap.String("payment_id", attempt.PaymentID),
				zap.String("status", string(status)),
			)
		}

		// The gateway is not queried again once terminal; only the settle is retried.
		settler := p.currentSettler()
		if settler == nil {
			logger.Error(ctx, "No settler configured for payment poller", zap.String("payment_id", attempt.PaymentID))
			return
		}
		if err := settler.SettlePayment(ctx, attempt, terminal); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error(ctx, "Failed to settle payment, retrying next round", zap.String("payment_id", attempt.PaymentID), zap.Error(err))
			continue
		}
		return
	}
}

func (p *PaymentPoller) finish(ctx context.Context, task *pollTask) {
	p.mu.Lock()
	if current, ok := p.active[task.paymentID]; ok && current == task {
		delete(p.active, task.paymentID)
	}
	p.mu.Unlock()

	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()
	if err := p.lock.Release(releaseCtx, task.paymentID); err != nil {
		logger.Warn(releaseCtx, "Failed to release poll lock", zap.String("payment_id", task.paymentID), zap.Error(err))
	}

	p.metrics.PollStopped()
	task.cancel()
	close(task.done)
	p.wg.Done()
}
