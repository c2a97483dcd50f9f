package entities

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oapi-codegen/nullable"
	"github.com/volatiletech/null/v8"
)

// MemberRole represents member roles
type MemberRole string

const (
	MemberRoleMember MemberRole = "member"
	MemberRoleAdmin  MemberRole = "admin"
)

// TempNationalIDPrefix marks a placeholder national id issued during bootstrap.
const TempNationalIDPrefix = "TEMP-"

// MemberProfile represents a member profile entity. ID is the identity id owned by the identity service.
type MemberProfile struct {
	ID              uuid.UUID  `json:"id"`
	DisplayID       string     `json:"displayId"`
	Name            string     `json:"name"`
	NationalID      string     `json:"nationalId"`
	Email           string     `json:"email"`
	Phone           string     `json:"phone"`
	BirthDate       null.Time  `json:"birthDate"`
	Profession      string     `json:"profession"`
	PaymentComplete bool       `json:"paymentComplete"`
	RegisteredAt    time.Time  `json:"registeredAt"`
	Role            MemberRole `json:"role"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// IsAdmin reports whether the member has the admin role.
func (m *MemberProfile) IsAdmin() bool {
	return m != nil && m.Role == MemberRoleAdmin
}

// HasPlaceholderNationalID reports whether the national id is still the bootstrap placeholder.
func (m *MemberProfile) HasPlaceholderNationalID() bool {
	return IsPlaceholderNationalID(m.NationalID)
}

// TempNationalID builds the deterministic placeholder national id for an identity.
func TempNationalID(identityID uuid.UUID) string {
	return TempNationalIDPrefix + strings.ToUpper(identityID.String()[:8])
}

// IsPlaceholderNationalID reports whether value was produced by TempNationalID.
func IsPlaceholderNationalID(value string) bool {
	return strings.HasPrefix(value, TempNationalIDPrefix)
}

// NormalizeNationalID keeps only the digits of a CPF.
func NormalizeNationalID(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidNationalID checks an 11 digit CPF including both check digits.
func ValidNationalID(value string) bool {
	digits := NormalizeNationalID(value)
	if len(digits) != 11 {
		return false
	}
	allSame := true
	for i := 1; i < len(digits); i++ {
		if digits[i] != digits[0] {
			allSame = false
			break
		}
	}
	if allSame {
		return false
	}
	check := func(n int) byte {
		sum := 0
		for i := 0; i < n; i++ {
			sum += int(digits[i]-'0') * (n + 1 - i)
		}
		rem := (sum * 10) % 11
		if rem == 10 {
			rem = 0
		}
		return byte('0' + rem)
	}
	return check(9) == digits[9] && check(10) == digits[10]
}

// RegisterMemberInput represents the full registration form
type RegisterMemberInput struct {
	Name       string `json:"name" binding:"required,min=2,max=120"`
	NationalID string `json:"nationalId" binding:"required"`
	Phone      string `json:"phone" binding:"required"`
	BirthDate  string `json:"birthDate" binding:"required"`
	Profession string `json:"profession" binding:"required,max=120"`
}

// UpdateMemberInput is a self-service patch. Absent fields are left untouched, null clears.
type UpdateMemberInput struct {
	Name       nullable.Nullable[string] `json:"name"`
	Phone      nullable.Nullable[string] `json:"phone"`
	BirthDate  nullable.Nullable[string] `json:"birthDate"`
	Profession nullable.Nullable[string] `json:"profession"`
}

// AdminUpdateMemberInput extends the self-service patch with admin-only fields.
type AdminUpdateMemberInput struct {
	UpdateMemberInput
	NationalID      nullable.Nullable[string] `json:"nationalId"`
	Role            nullable.Nullable[string] `json:"role"`
	PaymentComplete nullable.Nullable[bool]   `json:"paymentComplete"`
}

// MemberListFilter controls admin listing
type MemberListFilter struct {
	Search string
	Offset int
	Limit  int
}
