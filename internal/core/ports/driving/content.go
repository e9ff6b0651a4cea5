package driving

import (
	"context"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
)

// ContentService manages items and their ingestion into the vector
// index. Ingestion is synchronous: a save call returns only after the
// item is indexed (or its failure is recorded).
type ContentService interface {
	// SaveMessage ingests a text message into a space.
	SaveMessage(ctx context.Context, spaceID, text, notes string) (*domain.Item, error)

	// SaveFile ingests an uploaded file into a space. originalName
	// selects the MIME family by extension.
	SaveFile(ctx context.Context, spaceID string, data []byte, originalName, notes string) (*domain.Item, error)

	// ListItems returns items in a space, newest first.
	ListItems(ctx context.Context, spaceID string, limit, offset int) ([]domain.Item, error)

	// DeleteItem removes an item, its vector, and its stored bytes.
	DeleteItem(ctx context.Context, spaceID, itemID string) error

	// SearchInSpace returns items in a space similar to the text.
	SearchInSpace(ctx context.Context, spaceID, text string, k int) ([]domain.ItemHit, error)

	// GlobalSearch returns items across all of a user's spaces
	// similar to the text.
	GlobalSearch(ctx context.Context, userID, text string, k int) ([]domain.ItemHit, error)

	// Reindex re-embeds every ready item and rebuilds the vector
	// index. Administrative; required after an embedding model change.
	Reindex(ctx context.Context, userID string) (int, error)
}
