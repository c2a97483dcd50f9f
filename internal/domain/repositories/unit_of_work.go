package repositories

import (
	"context"
)

// UnitOfWork defines the interface for atomic operations
type UnitOfWork interface {
	// Do executes the given function within a transaction scope
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// SchemaCapabilities describes optional store features, detected once at startup.
type SchemaCapabilities struct {
	DisplayIDColumn      bool `json:"displayIdColumn"`
	MembershipCardsTable bool `json:"membershipCardsTable"`
}

// FullSchema reports every optional feature as present.
func FullSchema() SchemaCapabilities {
	return SchemaCapabilities{DisplayIDColumn: true, MembershipCardsTable: true}
}
