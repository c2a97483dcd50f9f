package repositories

import (
	"context"
	"errors"
	"fmt"
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

var writableOnboardingFields = map[domainRepos.OnboardingField]bool{
	domainRepos.FieldIDDocumentURL:      true,
	domainRepos.FieldAddressDocumentURL: true,
	domainRepos.FieldPaymentID:          true,
	domainRepos.FieldSignatureURL:       true,
}

// OnboardingRecordRepository implements onboarding progress operations
type OnboardingRecordRepository struct {
	db *gorm.DB
}

// NewOnboardingRecordRepository creates a new onboarding record repository
func NewOnboardingRecordRepository(db *gorm.DB) *OnboardingRecordRepository {
	return &OnboardingRecordRepository{db: db}
}

// Get loads the record, returning an empty one when nothing is stored yet
func (r *OnboardingRecordRepository) Get(ctx context.Context, identityID uuid.UUID) (*entities.OnboardingRecord, error) {
	var m models.OnboardingRecord
	err := GetDB(ctx, r.db).Where("identity_id = ?", identityID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return entities.NewOnboardingRecord(identityID), nil
	}
	if err != nil {
		return nil, domainerrors.Persistence("load onboarding record", translate(err, ""))
	}
	return toOnboardingEntity(&m), nil
}

// SetField upserts one optional field, leaving the others untouched
func (r *OnboardingRecordRepository) SetField(ctx context.Context, identityID uuid.UUID, field domainRepos.OnboardingField, value string) error {
	if !writableOnboardingFields[field] {
		return fmt.Errorf("unknown onboarding field %q", field)
	}
	now := time.Now()
	row := map[string]interface{}{
		"identity_id": identityID,
		string(field): value,
		"updated_at":  now,
	}
	err := GetDB(ctx, r.db).Model(&models.OnboardingRecord{}).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "identity_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{string(field): value, "updated_at": now}),
	}).Create(row).Error
	if err != nil {
		return domainerrors.Persistence("save "+string(field), translate(err, ""))
	}
	return nil
}

// MarkCompleted sets completed_at once
func (r *OnboardingRecordRepository) MarkCompleted(ctx context.Context, identityID uuid.UUID) error {
	result := GetDB(ctx, r.db).Model(&models.OnboardingRecord{}).
		Where("identity_id = ? AND completed_at IS NULL", identityID).
		Updates(map[string]interface{}{"completed_at": time.Now(), "updated_at": time.Now()})
	if result.Error != nil {
		return domainerrors.Persistence("mark onboarding completed", translate(result.Error, ""))
	}
	return nil
}

// Reset clears every progress field
func (r *OnboardingRecordRepository) Reset(ctx context.Context, identityID uuid.UUID) error {
	result := GetDB(ctx, r.db).Model(&models.OnboardingRecord{}).
		Where("identity_id = ?", identityID).
		Updates(map[string]interface{}{
			"id_document_url":      gorm.Expr("NULL"),
			"address_document_url": gorm.Expr("NULL"),
			"payment_id":           gorm.Expr("NULL"),
			"signature_url":        gorm.Expr("NULL"),
			"completed_at":         gorm.Expr("NULL"),
			"updated_at":           time.Now(),
		})
	if result.Error != nil {
		return domainerrors.Persistence("reset onboarding record", translate(result.Error, ""))
	}
	return nil
}

// Delete removes the record
func (r *OnboardingRecordRepository) Delete(ctx context.Context, identityID uuid.UUID) error {
	if err := GetDB(ctx, r.db).Delete(&models.OnboardingRecord{}, "identity_id = ?", identityID).Error; err != nil {
		return domainerrors.Persistence("delete onboarding record", translate(err, ""))
	}
	return nil
}

func toOnboardingEntity(m *models.OnboardingRecord) *entities.OnboardingRecord {
	return &entities.OnboardingRecord{
		IdentityID:         m.IdentityID,
		IDDocumentURL:      null.StringFromPtr(m.IDDocumentURL),
		AddressDocumentURL: null.StringFromPtr(m.AddressDocumentURL),
		PaymentID:          null.StringFromPtr(m.PaymentID),
		SignatureURL:       null.StringFromPtr(m.SignatureURL),
		CompletedAt:        null.TimeFromPtr(m.CompletedAt),
		UpdatedAt:          m.UpdatedAt,
	}
}
