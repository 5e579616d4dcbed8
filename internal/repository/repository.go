package repository

import (
	"context"

	"github.com/elfernagomez/doya-management/internal/domain"
)

// DraftRepository defines the interface for draft persistence operations.
type DraftRepository interface {
	// Get retrieves a draft by its order ID.
	Get(ctx context.Context, orderID string) (*domain.Draft, error)

	// Save persists a draft to the store, overwriting any existing draft
	// for the order and bumping its version.
	Save(ctx context.Context, draft *domain.Draft) error

	// SaveIfVersion persists a draft only when the stored version still
	// matches expectedVersion. It returns false on a version mismatch.
	SaveIfVersion(ctx context.Context, draft *domain.Draft, expectedVersion int) (bool, error)

	// Delete removes a draft from the store by the order ID.
	Delete(ctx context.Context, orderID string) error
}
