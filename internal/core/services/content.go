package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
	"github.com/custodia-labs/recall-cli/internal/core/ports/driven"
	"github.com/custodia-labs/recall-cli/internal/core/ports/driving"
	"github.com/custodia-labs/recall-cli/internal/logger"
)

// Ensure ContentService implements the interface.
var _ driving.ContentService = (*ContentService)(nil)

// reindexBatch is how many items are embedded per batch on reindex.
const reindexBatch = 16

// ContentService ingests items into the vector index and serves
// similarity search.
//
// Ingestion order within a call: metadata insert (pending), extract,
// embed, index add, metadata flip to ready. The vector is written last
// among persistent state apart from the cheap status flip, so a crash
// mid-call never leaves a live vector without a matching item. On
// failure after the insert, compensation removes the partial work:
// intrinsic input failures leave the item recorded as failed with no
// vector and no extracted text; transient failures remove the item
// entirely so the caller can retry.
type ContentService struct {
	meta      driven.MetadataStore
	index     driven.VectorIndex
	files     driven.FileStore
	embedder  driven.EmbeddingService
	extractor driven.ExtractorRegistry
}

// NewContentService creates a new content service.
func NewContentService(
	meta driven.MetadataStore,
	index driven.VectorIndex,
	files driven.FileStore,
	embedder driven.EmbeddingService,
	extractor driven.ExtractorRegistry,
) *ContentService {
	return &ContentService{
		meta:      meta,
		index:     index,
		files:     files,
		embedder:  embedder,
		extractor: extractor,
	}
}

// SaveMessage ingests a text message into a space.
func (s *ContentService) SaveMessage(ctx context.Context, spaceID, text, notes string) (*domain.Item, error) {
	if err := domain.ValidateMessage(text); err != nil {
		return nil, err
	}
	if _, err := s.meta.GetSpace(ctx, spaceID); err != nil {
		return nil, err
	}

	item := &domain.Item{
		ID:      uuid.New().String(),
		SpaceID: spaceID,
		Kind:    domain.KindMessage,
		Content: text,
		Notes:   notes,
		Status:  domain.StatusPending,
	}
	if err := s.meta.SaveItem(ctx, item); err != nil {
		return nil, fmt.Errorf("save message: %w", err)
	}

	if err := s.indexItem(ctx, item, ""); err != nil {
		return nil, err
	}
	logger.Debug("Message %s indexed in space %s", item.ID, spaceID)
	return item, nil
}

// SaveFile ingests an uploaded file into a space. The original name's
// extension selects the MIME family. Oversized or unknown-extension
// uploads are rejected before anything is written.
//
// When extraction fails on the input itself, the item is recorded with
// status failed and returned along with the extraction error; the
// stored bytes are kept so the failure can be inspected.
func (s *ContentService) SaveFile(ctx context.Context, spaceID string, data []byte, originalName, notes string) (*domain.Item, error) {
	if strings.TrimSpace(originalName) == "" {
		return nil, fmt.Errorf("%w: file name is required", domain.ErrInvalidInput)
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(originalName), "."))
	if _, ok := domain.AllowedExtensions[ext]; !ok {
		return nil, fmt.Errorf("%w: file type %q not allowed", domain.ErrInvalidInput, ext)
	}
	if len(data) > domain.MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", domain.ErrTooLarge, len(data), domain.MaxFileSize)
	}
	if _, err := s.meta.GetSpace(ctx, spaceID); err != nil {
		return nil, err
	}

	itemID := uuid.New().String()
	family := domain.FamilyForExtension(ext)

	path, err := s.files.Save(ctx, spaceID, itemID, ext, data)
	if err != nil {
		return nil, fmt.Errorf("store file: %w", err)
	}

	item := &domain.Item{
		ID:      itemID,
		SpaceID: spaceID,
		Kind:    domain.KindFile,
		Content: filepath.Base(path),
		Notes:   notes,
		Status:  domain.StatusPending,
		File: &domain.FileInfo{
			OriginalName: originalName,
			SizeBytes:    int64(len(data)),
			Family:       family,
			OCR:          family == domain.FamilyImage,
			StoragePath:  path,
		},
	}
	if err := s.meta.SaveItem(ctx, item); err != nil {
		s.files.Delete(ctx, path)
		return nil, fmt.Errorf("save file item: %w", err)
	}

	text, err := s.extractor.Extract(ctx, family, data)
	if err != nil {
		if domain.IsIntrinsic(err) {
			item.Status = domain.StatusFailed
			item.FailureReason = err.Error()
			if markErr := s.meta.MarkFailed(ctx, itemID, err.Error()); markErr != nil {
				logger.Warn("Recording extraction failure for %s: %v", itemID, markErr)
			}
			return item, err
		}
		s.removeItem(ctx, item)
		return nil, fmt.Errorf("extract %s: %w", originalName, err)
	}

	item.File.ExtractedText = domain.Truncate(text, domain.MaxExtractedPreview)
	if err := s.indexItem(ctx, item, item.File.ExtractedText); err != nil {
		return nil, err
	}
	logger.Debug("File %s (%s) indexed in space %s", item.ID, originalName, spaceID)
	return item, nil
}

// indexItem embeds an item, adds it to the vector index, and flips it
// to ready. Any failure undoes the partial work and removes the item.
func (s *ContentService) indexItem(ctx context.Context, item *domain.Item, extractedText string) error {
	vec, err := s.embedder.Embed(ctx, item.EmbeddingText())
	if err != nil {
		s.removeItem(ctx, item)
		return fmt.Errorf("embed item: %w", err)
	}

	ref, err := s.index.Add(item.ID, vec, item.SpaceID)
	if err != nil {
		s.removeItem(ctx, item)
		return fmt.Errorf("index item: %w", err)
	}

	if err := s.meta.MarkReady(ctx, item.ID, ref, extractedText); err != nil {
		s.index.Delete(item.ID)
		s.removeItem(ctx, item)
		return fmt.Errorf("mark item ready: %w", err)
	}

	if err := s.index.Persist(); err != nil {
		// The vector is live and the item is ready; losing the
		// snapshot only costs durability until the next persist.
		logger.Warn("Persisting vector index: %v", err)
	}

	item.Status = domain.StatusReady
	item.VectorRef = &ref
	return nil
}

// removeItem undoes a pending insert: the vector (if any), the stored
// bytes (if any), and the metadata row.
func (s *ContentService) removeItem(ctx context.Context, item *domain.Item) {
	s.index.Delete(item.ID)
	if item.File != nil && item.File.StoragePath != "" {
		if err := s.files.Delete(ctx, item.File.StoragePath); err != nil {
			logger.Warn("Removing stored file for %s: %v", item.ID, err)
		}
	}
	if err := s.meta.DeleteItem(ctx, item.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		logger.Warn("Removing item %s: %v", item.ID, err)
	}
}

// ListItems returns items in a space, newest first.
func (s *ContentService) ListItems(ctx context.Context, spaceID string, limit, offset int) ([]domain.Item, error) {
	if _, err := s.meta.GetSpace(ctx, spaceID); err != nil {
		return nil, err
	}
	return s.meta.ListItems(ctx, spaceID, limit, offset)
}

// DeleteItem removes an item, its vector, and its stored bytes. The
// index entry goes first, then the file, then the metadata row; a
// crash between the steps leaves nothing user-visible because items
// without metadata are unreachable.
func (s *ContentService) DeleteItem(ctx context.Context, spaceID, itemID string) error {
	item, err := s.meta.GetItem(ctx, itemID)
	if err != nil {
		return err
	}
	if item.SpaceID != spaceID {
		return fmt.Errorf("%w: item %s not in space %s", domain.ErrNotFound, itemID, spaceID)
	}

	s.index.Delete(itemID)
	if item.File != nil && item.File.StoragePath != "" {
		if err := s.files.Delete(ctx, item.File.StoragePath); err != nil {
			return fmt.Errorf("delete stored file: %w", err)
		}
	}
	if err := s.meta.DeleteItem(ctx, itemID); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}

	rebuilt, err := s.index.Compact()
	if err != nil {
		return fmt.Errorf("compact after delete: %w", err)
	}
	if rebuilt {
		if err := syncVectorRefs(ctx, s.meta, s.index); err != nil {
			return err
		}
	}
	if err := s.index.Persist(); err != nil {
		return fmt.Errorf("persist after delete: %w", err)
	}
	return nil
}

// syncVectorRefs rewrites stored vector refs from the index's live
// mapping after a compaction reassigned internal ids. An item deleted
// in the meantime is skipped.
func syncVectorRefs(ctx context.Context, meta driven.MetadataStore, index driven.VectorIndex) error {
	for itemID, ref := range index.Refs() {
		if err := meta.UpdateVectorRef(ctx, itemID, ref); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("syncing vector ref for %s: %w", itemID, err)
		}
	}
	return nil
}

// SearchInSpace returns items in a space similar to the text.
func (s *ContentService) SearchInSpace(ctx context.Context, spaceID, text string, k int) ([]domain.ItemHit, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: search text is required", domain.ErrInvalidInput)
	}
	if _, err := s.meta.GetSpace(ctx, spaceID); err != nil {
		return nil, err
	}
	if k <= 0 {
		k = domain.DefaultRetrieveK
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed search text: %w", err)
	}
	hits, err := s.index.Search(vec, spaceID, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return s.hydrate(ctx, hits), nil
}

// GlobalSearch returns items across all of a user's spaces similar to
// the text. The index is per-user, so no ownership filter is needed
// beyond hydration.
func (s *ContentService) GlobalSearch(ctx context.Context, userID, text string, k int) ([]domain.ItemHit, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: search text is required", domain.ErrInvalidInput)
	}
	if k <= 0 {
		k = domain.DefaultRetrieveK
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed search text: %w", err)
	}
	hits, err := s.index.GlobalSearch(vec, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	return s.hydrate(ctx, hits), nil
}

// hydrate resolves vector hits against the metadata store. An item
// deleted between search and hydrate is dropped, not an error.
func (s *ContentService) hydrate(ctx context.Context, hits []driven.VectorHit) []domain.ItemHit {
	results := make([]domain.ItemHit, 0, len(hits))
	for _, hit := range hits {
		item, err := s.meta.GetItem(ctx, hit.ItemID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			logger.Warn("Hydrating item %s: %v", hit.ItemID, err)
			continue
		}
		results = append(results, domain.ItemHit{Item: *item, Score: hit.Score})
	}
	return results
}

// Reindex re-embeds every ready item owned by the user and rebuilds
// the index. Required after an embedding model change.
func (s *ContentService) Reindex(ctx context.Context, userID string) (int, error) {
	items, err := s.meta.ListUserItems(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("listing items for reindex: %w", err)
	}

	ready := make([]domain.Item, 0, len(items))
	for _, item := range items {
		if item.Status == domain.StatusReady {
			ready = append(ready, item)
		}
	}
	if len(ready) == 0 {
		return 0, nil
	}

	// Retire every current vector, then re-add from fresh embeddings.
	for _, item := range ready {
		s.index.Delete(item.ID)
	}

	count := 0
	for start := 0; start < len(ready); start += reindexBatch {
		end := start + reindexBatch
		if end > len(ready) {
			end = len(ready)
		}
		batch := ready[start:end]

		texts := make([]string, len(batch))
		for i, item := range batch {
			texts[i] = item.EmbeddingText()
		}
		vecs, err := s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return count, fmt.Errorf("re-embedding batch: %w", err)
		}

		for i, item := range batch {
			ref, err := s.index.Add(item.ID, vecs[i], item.SpaceID)
			if err != nil {
				return count, fmt.Errorf("re-indexing item %s: %w", item.ID, err)
			}
			extracted := ""
			if item.File != nil {
				extracted = item.File.ExtractedText
			}
			if err := s.meta.MarkReady(ctx, item.ID, ref, extracted); err != nil {
				return count, fmt.Errorf("updating vector ref for %s: %w", item.ID, err)
			}
			count++
		}
	}

	rebuilt, err := s.index.Compact()
	if err != nil {
		return count, fmt.Errorf("compact after reindex: %w", err)
	}
	if rebuilt {
		if err := syncVectorRefs(ctx, s.meta, s.index); err != nil {
			return count, err
		}
	}
	if err := s.index.Persist(); err != nil {
		return count, fmt.Errorf("persist after reindex: %w", err)
	}
	logger.Info("Reindexed %d items for user %s", count, userID)
	return count, nil
}
