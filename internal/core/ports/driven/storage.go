package driven

import (
	"context"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
)

// SpaceStore persists spaces.
// Backed by SQLite for metadata storage.
type SpaceStore interface {
	// SaveSpace stores a new space.
	SaveSpace(ctx context.Context, space *domain.Space) error

	// GetSpace retrieves a space by ID, with its derived item count.
	GetSpace(ctx context.Context, id string) (*domain.Space, error)

	// ListSpaces returns all spaces owned by a user, newest first.
	ListSpaces(ctx context.Context, userID string) ([]domain.Space, error)

	// UpdateSpace persists name/description changes.
	UpdateSpace(ctx context.Context, space *domain.Space) error

	// DeleteSpace removes a space. Item and query rows cascade.
	DeleteSpace(ctx context.Context, id string) error
}

// ItemStore persists items and their ingestion state. Single-row
// updates and deletes are atomic with respect to concurrent readers;
// cross-row consistency is not required by the pipeline.
type ItemStore interface {
	// SaveItem inserts an item, normally with status pending.
	SaveItem(ctx context.Context, item *domain.Item) error

	// GetItem retrieves an item by ID.
	GetItem(ctx context.Context, id string) (*domain.Item, error)

	// ListItems returns items in a space, newest first.
	ListItems(ctx context.Context, spaceID string, limit, offset int) ([]domain.Item, error)

	// ListUserItems returns all items across a user's spaces, for
	// global search hydration.
	ListUserItems(ctx context.Context, userID string) ([]domain.Item, error)

	// CountReadyItems returns the number of ready items in a space.
	CountReadyItems(ctx context.Context, spaceID string) (int, error)

	// MarkReady flips an item to ready, recording its vector ref and
	// (for files) the extracted-text preview.
	MarkReady(ctx context.Context, id string, vectorRef uint64, extractedText string) error

	// MarkFailed flips an item to failed with a reason. The item keeps
	// no vector ref and no extracted text.
	MarkFailed(ctx context.Context, id string, reason string) error

	// UpdateVectorRef rewrites an item's vector ref after index
	// compaction reassigns internal ids.
	UpdateVectorRef(ctx context.Context, id string, vectorRef uint64) error

	// DeleteItem removes an item row.
	DeleteItem(ctx context.Context, id string) error
}

// QueryStore persists query history, append-only.
type QueryStore interface {
	// SaveQuery appends a query record.
	SaveQuery(ctx context.Context, query *domain.Query) error

	// ListQueries returns queries for a space, newest first.
	ListQueries(ctx context.Context, spaceID string, limit, offset int) ([]domain.Query, error)
}

// MetadataStore bundles the three record stores a single backend
// provides.
type MetadataStore interface {
	SpaceStore
	ItemStore
	QueryStore

	// Close releases the backend.
	Close() error
}
