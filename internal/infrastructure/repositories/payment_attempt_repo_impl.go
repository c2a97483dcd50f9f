package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"memberhub.backend/internal/domain/entities"
	domainerrors "memberhub.backend/internal/domain/errors"
	"memberhub.backend/internal/infrastructure/models"
)

var openPaymentStatuses = []string{
	string(entities.PaymentStatusPending),
	string(entities.PaymentStatusProcessing),
}

// PaymentAttemptRepository implements payment attempt operations
type PaymentAttemptRepository struct {
	db *gorm.DB
}

// NewPaymentAttemptRepository creates a new payment attempt repository
func NewPaymentAttemptRepository(db *gorm.DB) *PaymentAttemptRepository {
	return &PaymentAttemptRepository{db: db}
}

// Create stores a new attempt
func (r *PaymentAttemptRepository) Create(ctx context.Context, attempt *entities.PaymentAttempt) error {
	now := time.Now()
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = now
	}
	attempt.UpdatedAt = now
	m := &models.PaymentAttempt{
		PaymentID:    attempt.PaymentID,
		IdentityID:   attempt.IdentityID,
		Method:       string(attempt.Method),
		Status:       string(attempt.Status),
		Amount:       attempt.Amount,
		DisplayAsset: attempt.DisplayAsset,
		CreatedAt:    attempt.CreatedAt,
		UpdatedAt:    attempt.UpdatedAt,
	}
	if err := GetDB(ctx, r.db).Create(m).Error; err != nil {
		return domainerrors.Persistence("save payment attempt", translate(err, ""))
	}
	return nil
}

// GetByPaymentID fetches an attempt by gateway id
func (r *PaymentAttemptRepository) GetByPaymentID(ctx context.Context, paymentID string) (*entities.PaymentAttempt, error) {
	var m models.PaymentAttempt
	if err := GetDB(ctx, r.db).Where("payment_id = ?", paymentID).First(&m).Error; err != nil {
		return nil, domainerrors.Persistence("load payment attempt", translate(err, ""))
	}
	return toAttemptEntity(&m), nil
}

// GetLatestByIdentity returns the most recent attempt of a member
func (r *PaymentAttemptRepository) GetLatestByIdentity(ctx context.Context, identityID uuid.UUID) (*entities.PaymentAttempt, error) {
	var m models.PaymentAttempt
	err := GetDB(ctx, r.db).Where("identity_id = ?", identityID).Order("created_at DESC").First(&m).Error
	if err != nil {
		return nil, domainerrors.Persistence("load latest payment attempt", translate(err, ""))
	}
	return toAttemptEntity(&m), nil
}

// UpdateStatus moves an open attempt to status. Terminal attempts are never rewritten.
func (r *PaymentAttemptRepository) UpdateStatus(ctx context.Context, paymentID string, status entities.PaymentStatus) (bool, error) {
	result := GetDB(ctx, r.db).Model(&models.PaymentAttempt{}).
		Where("payment_id = ? AND status IN ?", paymentID, openPaymentStatuses).
		Updates(map[string]interface{}{"status": string(status), "updated_at": time.Now()})
	if result.Error != nil {
		return false, domainerrors.Persistence("update payment status", translate(result.Error, ""))
	}
	return result.RowsAffected > 0, nil
}

// SetDisplayAsset stores the pix payload or bank slip url of an attempt
func (r *PaymentAttemptRepository) SetDisplayAsset(ctx context.Context, paymentID, asset string) error {
	result := GetDB(ctx, r.db).Model(&models.PaymentAttempt{}).
		Where("payment_id = ?", paymentID).
		Updates(map[string]interface{}{"display_asset": asset, "updated_at": time.Now()})
	if result.Error != nil {
		return domainerrors.Persistence("save payment display asset", translate(result.Error, ""))
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// ListByStatus lists attempts in status, oldest first
func (r *PaymentAttemptRepository) ListByStatus(ctx context.Context, status entities.PaymentStatus) ([]*entities.PaymentAttempt, error) {
	var rows []models.PaymentAttempt
	if err := GetDB(ctx, r.db).Where("status = ?", string(status)).Order("created_at ASC").Find(&rows).Error; err != nil {
		return nil, domainerrors.Persistence("list payment attempts", translate(err, ""))
	}
	out := make([]*entities.PaymentAttempt, 0, len(rows))
	for i := range rows {
		out = append(out, toAttemptEntity(&rows[i]))
	}
	return out, nil
}

// DeleteByIdentity removes every attempt of a member
func (r *PaymentAttemptRepository) DeleteByIdentity(ctx context.Context, identityID uuid.UUID) error {
	if err := GetDB(ctx, r.db).Delete(&models.PaymentAttempt{}, "identity_id = ?", identityID).Error; err != nil {
		return domainerrors.Persistence("delete payment attempts", translate(err, ""))
	}
	return nil
}

func toAttemptEntity(m *models.PaymentAttempt) *entities.PaymentAttempt {
	return &entities.PaymentAttempt{
		PaymentID:    m.PaymentID,
		IdentityID:   m.IdentityID,
		Method:       entities.PaymentMethod(m.Method),
		Status:       entities.PaymentStatus(m.Status),
		Amount:       m.Amount,
		DisplayAsset: m.DisplayAsset,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}
