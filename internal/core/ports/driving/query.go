package driving

import (
	"context"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
)

// QueryService answers questions grounded in a space's content and
// keeps the query history.
type QueryService interface {
	// Ask answers a question from a space's content. k selects how
	// many items to retrieve; 0 means the configured default.
	Ask(ctx context.Context, spaceID, question string, k int) (*domain.Query, error)

	// History returns past queries for a space, newest first.
	History(ctx context.Context, spaceID string, limit, offset int) ([]domain.Query, error)
}
