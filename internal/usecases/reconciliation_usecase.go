package usecases

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"memberhub.backend/internal/domain/entities"
	domainerrors "memberhub.backend/internal/domain/errors"
	"memberhub.backend/internal/domain/repositories"
	"memberhub.backend/pkg/logger"
	"memberhub.backend/pkg/metrics"
)

const (
	DefaultRepairConcurrency = 4
	defaultDisplayName       = "Member"

	bootstrapTimeout   = 15 * time.Second
	bootstrapMaxInsert = 3
)

// ReconciliationUsecase makes sure every authenticated identity has a member profile.
type ReconciliationUsecase struct {
	members     repositories.MemberProfileRepository
	directory   IdentityDirectory
	allocator   *DisplayIDAllocator
	metrics     *metrics.Metrics
	concurrency int
	now         func() time.Time

	inflight singleflight.Group
}

// NewReconciliationUsecase creates a new reconciliation usecase
func NewReconciliationUsecase(
	members repositories.MemberProfileRepository,
	directory IdentityDirectory,
	allocator *DisplayIDAllocator,
	m *metrics.Metrics,
) *ReconciliationUsecase {
	return &ReconciliationUsecase{
		members:     members,
		directory:   directory,
		allocator:   allocator,
		metrics:     m,
		concurrency: DefaultRepairConcurrency,
		now:         time.Now,
	}
}

// SetConcurrency bounds parallel bootstraps during repair.
func (u *ReconciliationUsecase) SetConcurrency(n int) {
	if n > 0 {
		u.concurrency = n
	}
}

type bootstrapOutcome struct {
	profile *entities.MemberProfile
	created bool
}

// Bootstrap returns the profile of identity, creating a placeholder one when absent.
// Concurrent calls for the same identity in this process share one store round trip;
// across processes the primary key decides and the loser adopts the stored row.
func (u *ReconciliationUsecase) Bootstrap(ctx context.Context, identity entities.Identity) (*entities.MemberProfile, bool, error) {
	if identity.ID == uuid.Nil {
		return nil, false, domainerrors.Invalid("identity", "missing id")
	}

	ch := u.inflight.DoChan(identity.ID.String(), func() (interface{}, error) {
		// shared by every waiter, so it must outlive the first caller's request
		workCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bootstrapTimeout)
		defer cancel()
		profile, created, err := u.bootstrap(workCtx, identity)
		if err != nil {
			return nil, err
		}
		return bootstrapOutcome{profile: profile, created: created}, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		outcome := res.Val.(bootstrapOutcome)
		profile := *outcome.profile
		return &profile, outcome.created && !res.Shared, nil
	}
}

func (u *ReconciliationUsecase) bootstrap(ctx context.Context, identity entities.Identity) (*entities.MemberProfile, bool, error) {
	existing, err := u.members.GetByID(ctx, identity.ID)
	if err == nil {
		u.metrics.Bootstrap("existing")
		return existing, false, nil
	}
	if !errors.Is(err, domainerrors.ErrNotFound) {
		u.metrics.Bootstrap("error")
		return nil, false, domainerrors.Persistence("fetch member profile", err)
	}

	var lastErr error
	for attempt := 0; attempt < bootstrapMaxInsert; attempt++ {
		displayID, err := u.allocator.Allocate(ctx)
		if err != nil {
			u.metrics.Bootstrap("error")
			return nil, false, err
		}

		now := u.now()
		profile := &entities.MemberProfile{
			ID:           identity.ID,
			DisplayID:    displayID,
			Name:         DisplayName(identity),
			NationalID:   entities.TempNationalID(identity.ID),
			Email:        identity.Email,
			Role:         entities.MemberRoleMember,
			RegisteredAt: now,
		}
		err = u.members.Create(ctx, profile)
		if err == nil {
			u.metrics.Bootstrap("created")
			logger.Info(ctx, "Member profile bootstrapped",
				zap.String("identity_id", identity.ID.String()),
				zap.String("display_id", profile.DisplayID),
			)
			return profile, true, nil
		}
		if !errors.Is(err, domainerrors.ErrAlreadyExists) {
			u.metrics.Bootstrap("error")
			return nil, false, domainerrors.Persistence("create member profile", err)
		}

		lastErr = &domainerrors.ReconciliationConflict{IdentityID: identity.ID.String()}
		stored, getErr := u.members.GetByID(ctx, identity.ID)
		if getErr == nil {
			u.metrics.Bootstrap("conflict")
			logger.Info(ctx, "Member profile bootstrap lost the insert race, using stored row",
				zap.String("identity_id", identity.ID.String()),
			)
			return stored, false, nil
		}
		if !errors.Is(getErr, domainerrors.ErrNotFound) {
			u.metrics.Bootstrap("error")
			return nil, false, domainerrors.Persistence("fetch member profile", getErr)
		}
		// the conflict was on another unique column, usually an unverified display id
		logger.Warn(ctx, "Member profile insert conflicted on a secondary key, retrying",
			zap.String("identity_id", identity.ID.String()),
			zap.Int("attempt", attempt+1),
		)
	}
	u.metrics.Bootstrap("error")
	return nil, false, lastErr
}

// RepairAll bootstraps every identity that has no member profile.
func (u *ReconciliationUsecase) RepairAll(ctx context.Context) (*entities.RepairReport, error) {
	if u.directory == nil || !u.directory.CanList() {
		return nil, domainerrors.Forbidden("listing identities requires the identity service key")
	}

	identities, err := u.directory.ListIdentities(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(identities))
	for _, identity := range identities {
		ids = append(ids, identity.ID)
	}
	existing, err := u.members.ExistingIDs(ctx, ids)
	if err != nil {
		return nil, domainerrors.Persistence("list member profiles", err)
	}

	orphans := make([]entities.Identity, 0, len(identities))
	for _, identity := range identities {
		if !existing[identity.ID] {
			orphans = append(orphans, identity)
		}
	}
	logger.Info(ctx, "Repairing orphan identities",
		zap.Int("identities", len(identities)),
		zap.Int("orphans", len(orphans)),
	)
	return u.repair(ctx, orphans), nil
}

// RepairIDs bootstraps an explicit list of identities.
func (u *ReconciliationUsecase) RepairIDs(ctx context.Context, ids []uuid.UUID) (*entities.RepairReport, error) {
	if len(ids) == 0 {
		return nil, domainerrors.Invalid("ids", "at least one id is required")
	}

	seen := make(map[uuid.UUID]bool, len(ids))
	targets := make([]entities.Identity, 0, len(ids))
	var missing []entities.RepairResult
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		identity, err := u.lookup(ctx, id)
		if err != nil {
			missing = append(missing, entities.RepairResult{IdentityID: id.String(), Error: err.Error()})
			continue
		}
		targets = append(targets, identity)
	}

	report := u.repair(ctx, targets)
	report.Total += len(missing)
	report.Failed += len(missing)
	report.Results = append(report.Results, missing...)
	return report, nil
}

func (u *ReconciliationUsecase) lookup(ctx context.Context, id uuid.UUID) (entities.Identity, error) {
	minimal := entities.Identity{ID: id}
	if u.directory == nil || !u.directory.CanList() {
		return minimal, nil
	}
	identity, err := u.directory.GetIdentity(ctx, id)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return entities.Identity{}, domainerrors.NewError("identity not found", domainerrors.ErrNotFound)
		}
		logger.Warn(ctx, "Identity lookup failed, repairing with id only", zap.String("identity_id", id.String()), zap.Error(err))
		return minimal, nil
	}
	return *identity, nil
}

func (u *ReconciliationUsecase) repair(ctx context.Context, identities []entities.Identity) *entities.RepairReport {
	results := make([]entities.RepairResult, len(identities))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.concurrency)
	for i, identity := range identities {
		g.Go(func() error {
			result := entities.RepairResult{IdentityID: identity.ID.String()}
			profile, created, err := u.Bootstrap(gctx, identity)
			if err != nil {
				result.Error = err.Error()
				logger.Error(gctx, "Identity repair failed", zap.String("identity_id", identity.ID.String()), zap.Error(err))
			} else {
				result.Created = created
				result.DisplayID = profile.DisplayID
			}
			results[i] = result
			// failures are reported, never propagated, so one bad identity cannot cancel the rest
			return nil
		})
	}
	_ = g.Wait()

	report := &entities.RepairReport{Total: len(results), Results: results}
	for _, r := range results {
		if r.Error == "" {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}
	return report
}

// DisplayName picks the member name from identity metadata, then the email local part.
func DisplayName(identity entities.Identity) string {
	if name := identity.MetadataString("full_name"); name != "" {
		return name
	}
	if name := identity.MetadataString("name"); name != "" {
		return name
	}

	local, _, _ := strings.Cut(strings.TrimSpace(identity.Email), "@")
	local = strings.NewReplacer(".", " ", "_", " ", "-", " ", "+", " ").Replace(local)
	local = strings.Join(strings.Fields(local), " ")
	if local == "" {
		return defaultDisplayName
	}
	return cases.Title(language.BrazilianPortuguese).String(local)
}
