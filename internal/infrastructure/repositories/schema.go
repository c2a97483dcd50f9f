package repositories

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	domainRepos "memberhub.backend/internal/domain/repositories"
	"memberhub.backend/internal/infrastructure/models"
)

// DetectSchemaCapabilities inspects the live schema once so callers do not
// have to discover missing optional columns per request.
func DetectSchemaCapabilities(ctx context.Context, db *gorm.DB) domainRepos.SchemaCapabilities {
	m := db.WithContext(ctx).Migrator()
	return domainRepos.SchemaCapabilities{
		DisplayIDColumn:      m.HasTable(&models.MemberProfile{}) && m.HasColumn(&models.MemberProfile{}, "display_id"),
		MembershipCardsTable: m.HasTable(&models.MembershipCard{}),
	}
}

// AutoMigrate creates or extends the onboarding tables.
func AutoMigrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(
		&models.MemberProfile{},
		&models.OnboardingRecord{},
		&models.PaymentAttempt{},
		&models.MembershipCard{},
	); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}
