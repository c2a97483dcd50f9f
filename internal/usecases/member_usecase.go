package usecases

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oapi-codegen/nullable"
	"github.com/volatiletech/null/v8"
	"go.uber.org/zap"
	"memberhub.backend/internal/domain/entities"
	domainerrors "memberhub.backend/internal/domain/errors"
	"memberhub.backend/internal/domain/repositories"
	"memberhub.backend/pkg/logger"
	"memberhub.backend/pkg/utils"
)

const (
	birthDateLayout   = "2006-01-02"
	maxMemberPageSize = 100
)

// MemberUsecase handles member registration, self-service and admin management
type MemberUsecase struct {
	uow      repositories.UnitOfWork
	members  repositories.MemberProfileRepository
	records  repositories.OnboardingRecordRepository
	payments repositories.PaymentAttemptRepository
	cards    repositories.MembershipCardRepository
	poller   PaymentPoller
	now      func() time.Time
}

// NewMemberUsecase creates a new member usecase
func NewMemberUsecase(
	uow repositories.UnitOfWork,
	members repositories.MemberProfileRepository,
	records repositories.OnboardingRecordRepository,
	payments repositories.PaymentAttemptRepository,
	cards repositories.MembershipCardRepository,
	poller PaymentPoller,
) *MemberUsecase {
	return &MemberUsecase{
		uow:      uow,
		members:  members,
		records:  records,
		payments: payments,
		cards:    cards,
		poller:   poller,
		now:      time.Now,
	}
}

// GetMember returns a member profile
func (u *MemberUsecase) GetMember(ctx context.Context, id uuid.UUID) (*entities.MemberProfile, error) {
	member, err := u.members.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.NotFound("member not found")
		}
		return nil, domainerrors.Persistence("load member profile", err)
	}
	return member, nil
}

// Register replaces the bootstrap placeholders with the registration form.
func (u *MemberUsecase) Register(ctx context.Context, id uuid.UUID, input *entities.RegisterMemberInput) (*entities.MemberProfile, error) {
	member, err := u.GetMember(ctx, id)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, domainerrors.Invalid("name", "is required")
	}
	if !entities.ValidNationalID(input.NationalID) {
		return nil, domainerrors.Invalid("nationalId", "is not a valid CPF")
	}
	birthDate, err := parseBirthDate(input.BirthDate, u.now())
	if err != nil {
		return nil, err
	}

	member.Name = name
	member.NationalID = entities.NormalizeNationalID(input.NationalID)
	member.Phone = strings.TrimSpace(input.Phone)
	member.BirthDate = birthDate
	member.Profession = strings.TrimSpace(input.Profession)
	member.RegisteredAt = u.now()

	if err := u.save(ctx, member); err != nil {
		return nil, err
	}
	logger.Info(ctx, "Member registered", zap.String("identity_id", id.String()))
	return member, nil
}

// UpdateSelf applies a member's own patch.
func (u *MemberUsecase) UpdateSelf(ctx context.Context, id uuid.UUID, input *entities.UpdateMemberInput) (*entities.MemberProfile, error) {
	member, err := u.GetMember(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := u.applyPatch(member, input); err != nil {
		return nil, err
	}
	if err := u.save(ctx, member); err != nil {
		return nil, err
	}
	return member, nil
}

// ListMembers returns a page of members
func (u *MemberUsecase) ListMembers(ctx context.Context, search string, pagination utils.PaginationParams) ([]*entities.MemberProfile, utils.PaginationMeta, error) {
	pagination = pagination.Normalize(maxMemberPageSize)
	members, total, err := u.members.List(ctx, entities.MemberListFilter{
		Search: strings.TrimSpace(search),
		Offset: pagination.Offset(),
		Limit:  pagination.Limit,
	})
	if err != nil {
		return nil, utils.PaginationMeta{}, domainerrors.Persistence("list member profiles", err)
	}
	return members, pagination.Meta(total), nil
}

// AdminUpdate applies an admin patch, including role, national id and payment flag.
func (u *MemberUsecase) AdminUpdate(ctx context.Context, id uuid.UUID, input *entities.AdminUpdateMemberInput) (*entities.MemberProfile, error) {
	member, err := u.GetMember(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := u.applyPatch(member, &input.UpdateMemberInput); err != nil {
		return nil, err
	}

	if input.NationalID.IsSpecified() {
		value, err := input.NationalID.Get()
		if err != nil || !entities.ValidNationalID(value) {
			return nil, domainerrors.Invalid("nationalId", "is not a valid CPF")
		}
		member.NationalID = entities.NormalizeNationalID(value)
	}
	if input.Role.IsSpecified() {
		value, err := input.Role.Get()
		role := entities.MemberRole(value)
		if err != nil || (role != entities.MemberRoleMember && role != entities.MemberRoleAdmin) {
			return nil, domainerrors.Invalid("role", "must be member or admin")
		}
		member.Role = role
	}
	if input.PaymentComplete.IsSpecified() {
		value, err := input.PaymentComplete.Get()
		if err != nil {
			return nil, domainerrors.Invalid("paymentComplete", "cannot be null")
		}
		member.PaymentComplete = value
	}

	if err := u.save(ctx, member); err != nil {
		return nil, err
	}
	logger.Info(ctx, "Member updated by admin", zap.String("identity_id", id.String()))
	return member, nil
}

// DeleteMember removes the member and everything hanging off it in one transaction.
func (u *MemberUsecase) DeleteMember(ctx context.Context, id uuid.UUID) error {
	if _, err := u.GetMember(ctx, id); err != nil {
		return err
	}
	if err := u.stopProcessingPayment(ctx, id, false); err != nil {
		return err
	}

	err := u.uow.Do(ctx, func(txCtx context.Context) error {
		if err := u.cards.DeleteByIdentity(txCtx, id); err != nil && !isSchemaDrift(err) {
			return domainerrors.Persistence("delete membership card", err)
		}
		if err := u.payments.DeleteByIdentity(txCtx, id); err != nil {
			return domainerrors.Persistence("delete payment attempts", err)
		}
		if err := u.records.Delete(txCtx, id); err != nil {
			return domainerrors.Persistence("delete onboarding record", err)
		}
		if err := u.members.Delete(txCtx, id); err != nil {
			return domainerrors.Persistence("delete member profile", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info(ctx, "Member deleted", zap.String("identity_id", id.String()))
	return nil
}

// ResetOnboarding clears onboarding progress so the member starts over.
func (u *MemberUsecase) ResetOnboarding(ctx context.Context, id uuid.UUID) error {
	if _, err := u.GetMember(ctx, id); err != nil {
		return err
	}

	err := u.uow.Do(ctx, func(txCtx context.Context) error {
		if err := u.stopProcessingPayment(txCtx, id, true); err != nil {
			return err
		}
		if err := u.records.Reset(txCtx, id); err != nil {
			return domainerrors.Persistence("reset onboarding record", err)
		}
		if _, err := u.members.SetPaymentComplete(txCtx, id, false); err != nil {
			return domainerrors.Persistence("deactivate member", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger.Info(ctx, "Onboarding reset by admin", zap.String("identity_id", id.String()))
	return nil
}

// GetCard returns the membership card of a member
func (u *MemberUsecase) GetCard(ctx context.Context, id uuid.UUID) (*entities.MembershipCard, error) {
	card, err := u.cards.GetByIdentity(ctx, id)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil, domainerrors.NotFound("membership card not found")
		}
		if isSchemaDrift(err) {
			return nil, domainerrors.NotFound("membership cards are not available")
		}
		return nil, domainerrors.Persistence("load membership card", err)
	}
	return card, nil
}

// UpdateCard changes the card status and delivery date
func (u *MemberUsecase) UpdateCard(ctx context.Context, id uuid.UUID, input *entities.UpdateCardInput) (*entities.MembershipCard, error) {
	if !input.Status.Valid() {
		return nil, domainerrors.Invalid("status", "is not a card status")
	}
	card, err := u.GetCard(ctx, id)
	if err != nil {
		return nil, err
	}
	card.Status = input.Status
	if input.DeliveryDate != nil {
		card.DeliveryDate = null.TimeFrom(*input.DeliveryDate)
	}
	if err := u.cards.Update(ctx, card); err != nil {
		return nil, domainerrors.Persistence("update membership card", err)
	}
	return card, nil
}

func (u *MemberUsecase) save(ctx context.Context, member *entities.MemberProfile) error {
	err := u.members.Update(ctx, member)
	if err == nil {
		return nil
	}
	if errors.Is(err, domainerrors.ErrAlreadyExists) {
		return domainerrors.Conflict("national id is already registered to another member")
	}
	if errors.Is(err, domainerrors.ErrNotFound) {
		return domainerrors.NotFound("member not found")
	}
	return domainerrors.Persistence("update member profile", err)
}

// stopProcessingPayment ends the poll of an open attempt. When mark is set the
// attempt is cancelled so a late confirmation cannot advance the reset record.
func (u *MemberUsecase) stopProcessingPayment(ctx context.Context, id uuid.UUID, mark bool) error {
	attempt, err := u.payments.GetLatestByIdentity(ctx, id)
	if err != nil {
		if errors.Is(err, domainerrors.ErrNotFound) {
			return nil
		}
		return domainerrors.Persistence("load payment attempt", err)
	}
	if attempt.Status.Terminal() {
		return nil
	}
	u.poller.Cancel(ctx, attempt.PaymentID)
	// the gateway charge itself is not deleted here and stays payable
	logger.Warn(ctx, "Stopped polling an open payment, gateway charge left open",
		zap.String("identity_id", id.String()),
		zap.String("payment_id", attempt.PaymentID),
	)
	if !mark {
		return nil
	}
	if _, err := u.payments.UpdateStatus(ctx, attempt.PaymentID, entities.PaymentStatusCancelled); err != nil {
		return domainerrors.Persistence("cancel payment attempt", err)
	}
	return nil
}

func (u *MemberUsecase) applyPatch(member *entities.MemberProfile, input *entities.UpdateMemberInput) error {
	if input.Name.IsSpecified() {
		value, err := input.Name.Get()
		value = strings.TrimSpace(value)
		if err != nil || value == "" {
			return domainerrors.Invalid("name", "cannot be empty")
		}
		member.Name = value
	}
	if input.Phone.IsSpecified() {
		member.Phone = strings.TrimSpace(valueOrEmpty(input.Phone))
	}
	if input.Profession.IsSpecified() {
		member.Profession = strings.TrimSpace(valueOrEmpty(input.Profession))
	}
	if input.BirthDate.IsSpecified() {
		if input.BirthDate.IsNull() {
			member.BirthDate = null.Time{}
		} else {
			birthDate, err := parseBirthDate(valueOrEmpty(input.BirthDate), u.now())
			if err != nil {
				return err
			}
			member.BirthDate = birthDate
		}
	}
	return nil
}

func valueOrEmpty(v nullable.Nullable[string]) string {
	if v.IsNull() {
		return ""
	}
	value, err := v.Get()
	if err != nil {
		return ""
	}
	return value
}

func parseBirthDate(raw string, now time.Time) (null.Time, error) {
	t, err := time.Parse(birthDateLayout, strings.TrimSpace(raw))
	if err != nil {
		return null.Time{}, domainerrors.Invalid("birthDate", "must be formatted as YYYY-MM-DD")
	}
	if !t.Before(now) {
		return null.Time{}, domainerrors.Invalid("birthDate", "must be in the past")
	}
	return null.TimeFrom(t), nil
}

func isSchemaDrift(err error) bool {
	var drift *domainerrors.SchemaDriftError
	return errors.As(err, &drift)
}
