package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
	"github.com/custodia-labs/recall-cli/internal/core/ports/driven"
	"github.com/custodia-labs/recall-cli/internal/core/ports/driving"
	"github.com/custodia-labs/recall-cli/internal/logger"
)

// Ensure SpaceService implements the interface.
var _ driving.SpaceService = (*SpaceService)(nil)

// SpaceService manages spaces and their cascading deletion.
type SpaceService struct {
	meta  driven.MetadataStore
	index driven.VectorIndex
	files driven.FileStore
}

// NewSpaceService creates a new space service.
func NewSpaceService(meta driven.MetadataStore, index driven.VectorIndex, files driven.FileStore) *SpaceService {
	return &SpaceService{
		meta:  meta,
		index: index,
		files: files,
	}
}

// Create makes a new space for a user.
func (s *SpaceService) Create(ctx context.Context, userID, name, description string) (*domain.Space, error) {
	space := &domain.Space{
		ID:          uuid.New().String(),
		UserID:      userID,
		Name:        strings.TrimSpace(name),
		Description: description,
	}
	if err := space.Validate(); err != nil {
		return nil, err
	}
	if err := s.meta.SaveSpace(ctx, space); err != nil {
		return nil, fmt.Errorf("create space: %w", err)
	}
	logger.Info("Created space %s (%q)", space.ID, space.Name)
	return space, nil
}

// List returns a user's spaces, newest first.
func (s *SpaceService) List(ctx context.Context, userID string) ([]domain.Space, error) {
	return s.meta.ListSpaces(ctx, userID)
}

// Get retrieves a space by ID.
func (s *SpaceService) Get(ctx context.Context, spaceID string) (*domain.Space, error) {
	return s.meta.GetSpace(ctx, spaceID)
}

// Update changes the name and/or description. Nil means unchanged.
func (s *SpaceService) Update(ctx context.Context, spaceID string, name, description *string) (*domain.Space, error) {
	space, err := s.meta.GetSpace(ctx, spaceID)
	if err != nil {
		return nil, err
	}
	if name != nil {
		space.Name = strings.TrimSpace(*name)
	}
	if description != nil {
		space.Description = *description
	}
	if err := space.Validate(); err != nil {
		return nil, err
	}
	if err := s.meta.UpdateSpace(ctx, space); err != nil {
		return nil, fmt.Errorf("update space: %w", err)
	}
	return space, nil
}

// Delete removes a space, cascading to its items, their vectors,
// their stored files, and the space's query history. Index entries go
// first so a crash mid-delete never leaves a live vector without
// reachable metadata.
func (s *SpaceService) Delete(ctx context.Context, spaceID string) error {
	if _, err := s.meta.GetSpace(ctx, spaceID); err != nil {
		return err
	}

	// Drop every vector for the space before touching metadata.
	const page = 500
	for offset := 0; ; offset += page {
		items, err := s.meta.ListItems(ctx, spaceID, page, offset)
		if err != nil {
			return fmt.Errorf("listing items for delete: %w", err)
		}
		for _, item := range items {
			s.index.Delete(item.ID)
		}
		if len(items) < page {
			break
		}
	}

	// Item and query rows cascade with the space row.
	if err := s.meta.DeleteSpace(ctx, spaceID); err != nil {
		return fmt.Errorf("delete space: %w", err)
	}
	if err := s.files.DeleteSpace(ctx, spaceID); err != nil {
		return fmt.Errorf("delete space files: %w", err)
	}

	rebuilt, err := s.index.Compact()
	if err != nil {
		return fmt.Errorf("compact after space delete: %w", err)
	}
	if rebuilt {
		if err := syncVectorRefs(ctx, s.meta, s.index); err != nil {
			return err
		}
	}
	if err := s.index.Persist(); err != nil {
		return fmt.Errorf("persist after space delete: %w", err)
	}
	logger.Info("Deleted space %s", spaceID)
	return nil
}
