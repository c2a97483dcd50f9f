package repositories

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/volatiletech/null/v8"
	"gorm.io/gorm"
	"memberhub.backend/internal/domain/entities"
	domainerrors "memberhub.backend/internal/domain/errors"
	domainRepos "memberhub.backend/internal/domain/repositories"
	"memberhub.backend/internal/infrastructure/models"
)

const featureDisplayID = "member_profiles.display_id"

// MemberProfileRepository implements member profile data operations
type MemberProfileRepository struct {
	db   *gorm.DB
	caps domainRepos.SchemaCapabilities
}

// NewMemberProfileRepository creates a new member profile repository
func NewMemberProfileRepository(db *gorm.DB, caps domainRepos.SchemaCapabilities) *MemberProfileRepository {
	return &MemberProfileRepository{db: db, caps: caps}
}

// Create inserts a new profile
func (r *MemberProfileRepository) Create(ctx context.Context, member *entities.MemberProfile) error {
	now := time.Now()
	if member.CreatedAt.IsZero() {
		member.CreatedAt = now
	}
	if member.RegisteredAt.IsZero() {
		member.RegisteredAt = now
	}
	member.UpdatedAt = now
	if member.Role == "" {
		member.Role = entities.MemberRoleMember
	}

	m := toMemberModel(member)
	q := GetDB(ctx, r.db)
	if !r.caps.DisplayIDColumn {
		q = q.Omit("display_id")
	}
	return translate(q.Create(m).Error, featureDisplayID)
}

// GetByID gets a profile by identity id
func (r *MemberProfileRepository) GetByID(ctx context.Context, id uuid.UUID) (*entities.MemberProfile, error) {
	var m models.MemberProfile
	q := GetDB(ctx, r.db)
	if !r.caps.DisplayIDColumn {
		q = q.Omit("display_id")
	}
	if err := q.Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translate(err, featureDisplayID)
	}
	return toMemberEntity(&m), nil
}

// Update writes the mutable profile fields
func (r *MemberProfileRepository) Update(ctx context.Context, member *entities.MemberProfile) error {
	updates := map[string]interface{}{
		"name":             member.Name,
		"national_id":      member.NationalID,
		"email":            member.Email,
		"phone":            member.Phone,
		"birth_date":       member.BirthDate.Ptr(),
		"profession":       member.Profession,
		"payment_complete": member.PaymentComplete,
		"role":             string(member.Role),
		"updated_at":       time.Now(),
	}
	if r.caps.DisplayIDColumn && member.DisplayID != "" {
		updates["display_id"] = member.DisplayID
	}

	result := GetDB(ctx, r.db).Model(&models.MemberProfile{}).Where("id = ?", member.ID).Updates(updates)
	if result.Error != nil {
		return translate(result.Error, featureDisplayID)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

// SetPaymentComplete flips the flag when it differs from the stored value and
// reports whether the row changed.
func (r *MemberProfileRepository) SetPaymentComplete(ctx context.Context, id uuid.UUID, complete bool) (bool, error) {
	db := GetDB(ctx, r.db)
	result := db.Model(&models.MemberProfile{}).
		Where("id = ? AND payment_complete <> ?", id, complete).
		Updates(map[string]interface{}{"payment_complete": complete, "updated_at": time.Now()})
	if result.Error != nil {
		return false, translate(result.Error, "")
	}
	if result.RowsAffected > 0 {
		return true, nil
	}

	var count int64
	if err := db.Model(&models.MemberProfile{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, translate(err, "")
	}
	if count == 0 {
		return false, domainerrors.ErrNotFound
	}
	return false, nil
}

// DisplayIDExists checks a candidate display id
func (r *MemberProfileRepository) DisplayIDExists(ctx context.Context, displayID string) (bool, error) {
	if !r.caps.DisplayIDColumn {
		return false, &domainerrors.SchemaDriftError{Feature: featureDisplayID}
	}
	var count int64
	err := GetDB(ctx, r.db).Model(&models.MemberProfile{}).Where("display_id = ?", displayID).Count(&count).Error
	if err != nil {
		return false, translate(err, featureDisplayID)
	}
	return count > 0, nil
}

// ExistingIDs reports which of ids already have a profile
func (r *MemberProfileRepository) ExistingIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]bool, error) {
	out := make(map[uuid.UUID]bool, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var found []uuid.UUID
	if err := GetDB(ctx, r.db).Model(&models.MemberProfile{}).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return nil, translate(err, "")
	}
	for _, id := range found {
		out[id] = true
	}
	return out, nil
}

// List lists profiles with optional search and pagination
func (r *MemberProfileRepository) List(ctx context.Context, filter entities.MemberListFilter) ([]*entities.MemberProfile, int64, error) {
	query := GetDB(ctx, r.db).Model(&models.MemberProfile{})
	if !r.caps.DisplayIDColumn {
		query = query.Omit("display_id")
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		term := "%" + strings.ToLower(search) + "%"
		if r.caps.DisplayIDColumn {
			query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR LOWER(display_id) LIKE ?", term, term, term)
		} else {
			query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", term, term)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translate(err, featureDisplayID)
	}

	var rows []models.MemberProfile
	q := query.Order("created_at DESC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit).Offset(filter.Offset)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, translate(err, featureDisplayID)
	}

	members := make([]*entities.MemberProfile, 0, len(rows))
	for i := range rows {
		members = append(members, toMemberEntity(&rows[i]))
	}
	return members, total, nil
}

// Delete removes a profile
func (r *MemberProfileRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := GetDB(ctx, r.db).Delete(&models.MemberProfile{}, "id = ?", id)
	if result.Error != nil {
		return translate(result.Error, "")
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

func toMemberModel(e *entities.MemberProfile) *models.MemberProfile {
	return &models.MemberProfile{
		ID:              e.ID,
		DisplayID:       e.DisplayID,
		Name:            e.Name,
		NationalID:      e.NationalID,
		Email:           e.Email,
		Phone:           e.Phone,
		BirthDate:       e.BirthDate.Ptr(),
		Profession:      e.Profession,
		PaymentComplete: e.PaymentComplete,
		RegisteredAt:    e.RegisteredAt,
		Role:            string(e.Role),
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}

func toMemberEntity(m *models.MemberProfile) *entities.MemberProfile {
	return &entities.MemberProfile{
		ID:              m.ID,
		DisplayID:       m.DisplayID,
		Name:            m.Name,
		NationalID:      m.NationalID,
		Email:           m.Email,
		Phone:           m.Phone,
		BirthDate:       null.TimeFromPtr(m.BirthDate),
		Profession:      m.Profession,
		PaymentComplete: m.PaymentComplete,
		RegisteredAt:    m.RegisteredAt,
		Role:            entities.MemberRole(m.Role),
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}
