package entities

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Identity is an authenticated principal known to the identity service.
type Identity struct {
	ID        uuid.UUID      `json:"id"`
	Email     string         `json:"email"`
	Metadata  map[string]any `json:"user_metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// MetadataString returns a trimmed string metadata value.
func (i Identity) MetadataString(key string) string {
	if i.Metadata == nil {
		return ""
	}
	v, ok := i.Metadata[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

// Session is an open member session. Polls started inside it are torn down on close.
type Session struct {
	ID         string    `json:"sessionId"`
	IdentityID uuid.UUID `json:"identityId"`
	Email      string    `json:"email"`
	OpenedAt   time.Time `json:"openedAt"`
}

// OpenSessionResult is returned on successful authentication.
type OpenSessionResult struct {
	SessionID string          `json:"sessionId"`
	Member    *MemberProfile  `json:"member"`
	Stage     OnboardingStage `json:"stage"`
}

// RepairResult is the outcome for one identity in a repair batch.
type RepairResult struct {
	IdentityID string `json:"identityId"`
	Created    bool   `json:"created"`
	DisplayID  string `json:"displayId,omitempty"`
	Error      string `json:"error,omitempty"`
}

// RepairReport aggregates a repair batch.
type RepairReport struct {
	Total     int            `json:"total"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Results   []RepairResult `json:"results"`
}
