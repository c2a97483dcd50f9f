package usecases

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"memberhub.backend/internal/domain/repositories"
	"memberhub.backend/pkg/crypto"
	"memberhub.backend/pkg/logger"
	"memberhub.backend/pkg/metrics"
)

const (
	// DisplayIDPrefix starts every member display id.
	DisplayIDPrefix = "MB-"

	// no 0 O 1 I L
	displayIDAlphabet    = "ABCDEFGHJKMNPQRSTUVWXYZ23456789"
	displayIDLength      = 6
	displayIDMaxAttempts = 8
)

// DisplayIDAllocator issues short human readable member codes.
type DisplayIDAllocator struct {
	members     repositories.MemberProfileRepository
	caps        repositories.SchemaCapabilities
	metrics     *metrics.Metrics
	maxAttempts int

	randomCode func(alphabet string, n int) (string, error)
	now        func() time.Time
}

// NewDisplayIDAllocator creates an allocator checking candidates against members.
func NewDisplayIDAllocator(
	members repositories.MemberProfileRepository,
	caps repositories.SchemaCapabilities,
	m *metrics.Metrics,
) *DisplayIDAllocator {
	return &DisplayIDAllocator{
		members:     members,
		caps:        caps,
		metrics:     m,
		maxAttempts: displayIDMaxAttempts,
		randomCode:  crypto.RandomString,
		now:         time.Now,
	}
}

// Allocate returns an unused display id. When uniqueness cannot be checked or
// every draw collides it returns the unverified timestamp code instead.
func (a *DisplayIDAllocator) Allocate(ctx context.Context) (string, error) {
	if !a.caps.DisplayIDColumn {
		return a.fallback(ctx, "display_id column unavailable"), nil
	}

	for attempt := 0; attempt < a.maxAttempts; attempt++ {
		code, err := a.randomCode(displayIDAlphabet, displayIDLength)
		if err != nil {
			logger.Warn(ctx, "Display id draw failed", zap.Error(err))
			return a.fallback(ctx, "random source failed"), nil
		}
		candidate := DisplayIDPrefix + code

		exists, err := a.members.DisplayIDExists(ctx, candidate)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", ctxErr
			}
			logger.Warn(ctx, "Display id uniqueness check failed", zap.Error(err))
			return a.fallback(ctx, "uniqueness check failed"), nil
		}
		if !exists {
			return candidate, nil
		}
	}
	return a.fallback(ctx, "attempts exhausted"), nil
}

func (a *DisplayIDAllocator) fallback(ctx context.Context, reason string) string {
	a.metrics.DisplayIDFallback()
	code := FallbackDisplayID(a.now())
	logger.Warn(ctx, "Issuing unverified display id", zap.String("reason", reason), zap.String("display_id", code))
	return code
}

// FallbackDisplayID derives a code from the last six base36 digits of the unix milliseconds.
func FallbackDisplayID(at time.Time) string {
	encoded := strings.ToUpper(strconv.FormatInt(at.UnixMilli(), 36))
	if len(encoded) > displayIDLength {
		encoded = encoded[len(encoded)-displayIDLength:]
	}
	return DisplayIDPrefix + encoded
}
