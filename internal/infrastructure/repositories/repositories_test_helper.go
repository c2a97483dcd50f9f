package repositories

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", t.Name(), time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err, "open sqlite")
	return db
}

func mustExec(t *testing.T, db *gorm.DB, q string, args ...interface{}) {
	t.Helper()
	require.NoError(t, db.Exec(q, args...).Error, "exec failed: query=%s", q)
}

func createMemberTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE member_profiles (
		id TEXT PRIMARY KEY,
		display_id TEXT UNIQUE,
		name TEXT NOT NULL,
		national_id TEXT NOT NULL UNIQUE,
		email TEXT,
		phone TEXT,
		birth_date DATETIME,
		profession TEXT,
		payment_complete BOOLEAN NOT NULL DEFAULT 0,
		registered_at DATETIME,
		role TEXT NOT NULL DEFAULT 'member',
		created_at DATETIME,
		updated_at DATETIME
	);`)
}

// createLegacyMemberTable builds member_profiles without the display_id column.
func createLegacyMemberTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE member_profiles (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		national_id TEXT NOT NULL UNIQUE,
		email TEXT,
		phone TEXT,
		birth_date DATETIME,
		profession TEXT,
		payment_complete BOOLEAN NOT NULL DEFAULT 0,
		registered_at DATETIME,
		role TEXT NOT NULL DEFAULT 'member',
		created_at DATETIME,
		updated_at DATETIME
	);`)
}

func createOnboardingTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE onboarding_records (
		identity_id TEXT PRIMARY KEY,
		id_document_url TEXT,
		address_document_url TEXT,
		payment_id TEXT,
		signature_url TEXT,
		completed_at DATETIME,
		updated_at DATETIME
	);`)
}

func createPaymentAttemptTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE payment_attempts (
		payment_id TEXT PRIMARY KEY,
		identity_id TEXT NOT NULL,
		method TEXT NOT NULL,
		status TEXT NOT NULL,
		amount TEXT NOT NULL,
		display_asset TEXT,
		created_at DATETIME,
		updated_at DATETIME
	);`)
}

func createCardTable(t *testing.T, db *gorm.DB) {
	mustExec(t, db, `CREATE TABLE membership_cards (
		identity_id TEXT PRIMARY KEY,
		card_number TEXT NOT NULL UNIQUE,
		delivery_date DATETIME,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at DATETIME,
		updated_at DATETIME
	);`)
}

func createAllTables(t *testing.T, db *gorm.DB) {
	createMemberTable(t, db)
	createOnboardingTable(t, db)
	createPaymentAttemptTable(t, db)
	createCardTable(t, db)
}
