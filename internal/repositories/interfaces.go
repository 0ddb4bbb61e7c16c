package repositories

import (
	"context"

	domain "github.com/netproxy/storefront/internal/domain"
)

// CartRepository persists the full cart state for one storefront identity.
// Implementations own the wire shape, including migration of legacy layouts;
// callers only ever see the current domain model.
type CartRepository interface {
	// Load reads the persisted cart. The boolean reports whether a stored
	// cart existed; a missing cart is not an error.
	Load(ctx context.Context) (domain.CartState, bool, error)
	// Save writes the complete cart state, replacing any previous value.
	Save(ctx context.Context, state domain.CartState) error
	// Clear removes the persisted cart entirely.
	Clear(ctx context.Context) error
}

// RepositoryError wraps low-level persistence failures with categorisation
// used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}
