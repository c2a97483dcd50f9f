package utils

import (
	"strings"

	"github.com/google/uuid"
)

var newUUIDv7 = uuid.NewV7

// GenerateUUIDv7 generates a new UUID v7
func GenerateUUIDv7() uuid.UUID {
	id, err := newUUIDv7()
	if err != nil {
		return uuid.New()
	}
	return id
}

// ParseUUIDs parses raw ids, returning the valid ones (deduplicated, input order)
// and the raw values that failed to parse.
func ParseUUIDs(raw []string) ([]uuid.UUID, []string) {
	seen := make(map[uuid.UUID]struct{}, len(raw))
	var ids []uuid.UUID
	var invalid []string
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		id, err := uuid.Parse(r)
		if err != nil {
			invalid = append(invalid, r)
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, invalid
}
