package driving

import (
	"context"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
)

// SpaceService manages spaces.
type SpaceService interface {
	// Create makes a new space for a user.
	Create(ctx context.Context, userID, name, description string) (*domain.Space, error)

	// List returns a user's spaces, newest first.
	List(ctx context.Context, userID string) ([]domain.Space, error)

	// Get retrieves a space by ID.
	Get(ctx context.Context, spaceID string) (*domain.Space, error)

	// Update changes the name and/or description. Nil means unchanged.
	Update(ctx context.Context, spaceID string, name, description *string) (*domain.Space, error)

	// Delete removes a space and cascades to its items, stored files,
	// index entries, and query history.
	Delete(ctx context.Context, spaceID string) error
}
