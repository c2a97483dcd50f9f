package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"memberhub.backend/internal/domain/entities"
	domainerrors "memberhub.backend/internal/domain/errors"
	domainRepos "memberhub.backend/internal/domain/repositories"
	"memberhub.backend/internal/infrastructure/models"
)

const featureMembershipCards = "membership_cards"

// MembershipCardRepository implements membership card operations
type MembershipCardRepository struct {
	db   *gorm.DB
	caps domainRepos.SchemaCapabilities
}

// NewMembershipCardRepository creates a new membership card repository
func NewMembershipCardRepository(db *gorm.DB, caps domainRepos.SchemaCapabilities) *MembershipCardRepository {
	return &MembershipCardRepository{db: db, caps: caps}
}

func (r *MembershipCardRepository) unavailable() error {
	if r.caps.MembershipCardsTable {
		return nil
	}
	return &domainerrors.SchemaDriftError{Feature: featureMembershipCards}
}

// CreateIfAbsent inserts the card unless the member already has one
func (r *MembershipCardRepository) CreateIfAbsent(ctx context.Context, card *entities.MembershipCard) (bool, error) {
	if err := r.unavailable(); err != nil {
		return false, err
	}
	now := time.Now()
	card.CreatedAt, card.UpdatedAt = now, now
	if card.Status == "" {
		card.Status = entities.CardStatusPending
	}
	m := &models.MembershipCard{
		IdentityID:   card.IdentityID,
		CardNumber:   card.CardNumber,
		DeliveryDate: card.DeliveryDate.Ptr(),
		Status:       string(card.Status),
		CreatedAt:    card.CreatedAt,
		UpdatedAt:    card.UpdatedAt,
	}
	result := GetDB(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "identity_id"}},
		DoNothing: true,
	}).Create(m)
	if result.Error != nil {
		return false, translate(result.Error, featureMembershipCards)
	}
	return result.RowsAffected > 0, nil
}

// GetByIdentity fetches the member's card
func (r *MembershipCardRepository) GetByIdentity(ctx context.Context, identityID uuid.UUID) (*entities.MembershipCard, error) {
	if err := r.unavailable(); err != nil {
		return nil, err
	}
	var m models.MembershipCard
	if err := GetDB(ctx, r.db).Where("identity_id = ?", identityID).First(&m).Error; err != nil {
		return nil, translate(err, featureMembershipCards)
	}
	return &entities.MembershipCard{
		IdentityID:   m.IdentityID,
		CardNumber:   m.CardNumber,
		DeliveryDate: null.TimeFromPtr(m.DeliveryDate),
		Status:       entities.CardStatus(m.Status),
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}, nil
}

// Update writes status and delivery date
func (r *MembershipCardRepository) Update(ctx context.Context, card *entities.MembershipCard) error {
	if err := r.unavailable(); err != nil {
		return err
	}
	result := GetDB(ctx, r.db).Model(&models.MembershipCard{}).
		Where("identity_id = ?", card.IdentityID).
		Updates(map[string]interface{}{
			"status":        string(card.Status),
			"delivery_date": card.DeliveryDate.Ptr(),
			"updated_at":    time.Now(),
		})
	if result.Error != nil {
		return translate(result.Error, featureMembershipCards)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// DeleteByIdentity removes the member's card
func (r *MembershipCardRepository) DeleteByIdentity(ctx context.Context, identityID uuid.UUID) error {
	if !r.caps.MembershipCardsTable {
		return nil
	}
	return translate(GetDB(ctx, r.db).Delete(&models.MembershipCard{}, "identity_id = ?", identityID).Error, featureMembershipCards)
}
