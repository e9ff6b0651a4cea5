package services

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall-cli/internal/adapters/driven/vector/flat"
	"github.com/custodia-labs/recall-cli/internal/core/domain"
)

func TestSaveMessage(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	space := e.mustSpace(t, "Trip")

	item, err := e.content.SaveMessage(ctx, space.ID, "Flight arrives 2pm", "terminal 2")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReady, item.Status)
	require.NotNil(t, item.VectorRef)

	// Persisted state matches.
	stored, err := e.meta.GetItem(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReady, stored.Status)
	require.NotNil(t, stored.VectorRef)
	assert.Equal(t, *item.VectorRef, *stored.VectorRef)

	assert.Equal(t, 1, e.index.Stats().Live)

	// The ingestion persisted a snapshot.
	_, statErr := os.Stat(filepath.Join(e.dir, "index.bin"))
	assert.NoError(t, statErr)
}

func TestSaveMessage_Validation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	space := e.mustSpace(t, "Trip")

	_, err := e.content.SaveMessage(ctx, space.ID, "   ", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = e.content.SaveMessage(ctx, space.ID, strings.Repeat("a", domain.MaxMessageLength+1), "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = e.content.SaveMessage(ctx, "no-such-space", "hello", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSaveMessage_EmbedderFailureLeavesNoTrace(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	space := e.mustSpace(t, "Trip")

	e.embedder.err = errors.New("upstream down")
	_, err := e.content.SaveMessage(ctx, space.ID, "hello", "")
	require.Error(t, err)

	items, err := e.meta.ListItems(ctx, space.ID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, 0, e.index.Stats().Live)
}

func TestSaveFile_PlainText(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	space := e.mustSpace(t, "Trip")

	item, err := e.content.SaveFile(ctx, space.ID, []byte("Day 1: arrive in Goa"), "itinerary.txt", "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReady, item.Status)
	require.NotNil(t, item.File)
	assert.Equal(t, domain.FamilyPlain, item.File.Family)
	assert.Equal(t, "Day 1: arrive in Goa", item.File.ExtractedText)
	assert.False(t, item.File.OCR)

	// Bytes are on disk at the storage path.
	data, err := os.ReadFile(item.File.StoragePath)
	require.NoError(t, err)
	assert.Equal(t, []byte("Day 1: arrive in Goa"), data)
}

func TestSaveFile_ExtensionNotAllowed(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	space := e.mustSpace(t, "Trip")

	_, err := e.content.SaveFile(ctx, space.ID, []byte("x"), "tool.exe", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	items, err := e.meta.ListItems(ctx, space.ID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestSaveFile_TooLargeRejectedBeforeAnyWrite(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	space := e.mustSpace(t, "Trip")

	big := bytes.Repeat([]byte("a"), domain.MaxFileSize+1)
	_, err := e.content.SaveFile(ctx, space.ID, big, "huge.pdf", "")
	assert.ErrorIs(t, err, domain.ErrTooLarge)

	// No item inserted and no bytes on disk.
	items, err := e.meta.ListItems(ctx, space.ID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, items)

	spaceFiles, _ := os.ReadDir(filepath.Join(e.dir, "files", space.ID))
	assert.Empty(t, spaceFiles)
}

func TestSaveFile_CorruptPDFRecordedAsFailed(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	space := e.mustSpace(t, "Trip")

	e.runner.err = errors.New("Syntax Error: Couldn't read xref table")
	item, err := e.content.SaveFile(ctx, space.ID, []byte("not a pdf"), "broken.pdf", "")
	assert.ErrorIs(t, err, domain.ErrCorrupt)
	require.NotNil(t, item)

	stored, getErr := e.meta.GetItem(ctx, item.ID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.StatusFailed, stored.Status)
	assert.NotEmpty(t, stored.FailureReason)
	assert.Nil(t, stored.VectorRef)
	assert.Empty(t, stored.File.ExtractedText)
	assert.Equal(t, 0, e.index.Stats().Live)
}

func TestSaveFile_EmptyOCRRecordedAsFailed(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	space := e.mustSpace(t, "Trip")

	e.runner.output = []byte("   ")
	item, err := e.content.SaveFile(ctx, space.ID, []byte("png bytes"), "photo.png", "")
	assert.ErrorIs(t, err, domain.ErrEmptyContent)
	require.NotNil(t, item)

	stored, getErr := e.meta.GetItem(ctx, item.ID)
	require.NoError(t, getErr)
	assert.Equal(t, domain.StatusFailed, stored.Status)
}

func TestSaveFile_ImageSetsOCRFlag(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	space := e.mustSpace(t, "Trip")

	e.runner.output = []byte("Receipt total 18,500")
	item, err := e.content.SaveFile(ctx, space.ID, []byte("png bytes"), "receipt.png", "")
	require.NoError(t, err)
	assert.True(t, item.File.OCR)
	assert.Equal(t, "Receipt total 18,500", item.File.ExtractedText)
}

func TestSaveFile_PreviewCapped(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	space := e.mustSpace(t, "Trip")

	long := strings.Repeat("a", domain.MaxExtractedPreview+500)
	item, err := e.content.SaveFile(ctx, space.ID, []byte(long), "long.txt", "")
	require.NoError(t, err)
	assert.Len(t, item.File.ExtractedText, domain.MaxExtractedPreview)
}

func TestDeleteItem(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	space := e.mustSpace(t, "Trip")

	e.embedder.Set("The Airbnb cost 18,500", axis(0))
	item := e.mustMessage(t, space.ID, "The Airbnb cost 18,500")

	e.embedder.Set("airbnb price", axis(0))
	hits, err := e.content.SearchInSpace(ctx, space.ID, "airbnb price", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)

	require.NoError(t, e.content.DeleteItem(ctx, space.ID, item.ID))

	// The item no longer surfaces, with no error.
	hits, err = e.content.SearchInSpace(ctx, space.ID, "airbnb price", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	// Deleting again reports not found.
	err = e.content.DeleteItem(ctx, space.ID, item.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteItem_WrongSpace(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	spaceA := e.mustSpace(t, "A")
	spaceB := e.mustSpace(t, "B")

	item := e.mustMessage(t, spaceA.ID, "hello")

	err := e.content.DeleteItem(ctx, spaceB.ID, item.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// The item is untouched.
	_, err = e.meta.GetItem(ctx, item.ID)
	assert.NoError(t, err)
}

func TestDeleteItem_RemovesStoredFile(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	space := e.mustSpace(t, "Trip")

	item, err := e.content.SaveFile(ctx, space.ID, []byte("contents"), "note.txt", "")
	require.NoError(t, err)

	require.NoError(t, e.content.DeleteItem(ctx, space.ID, item.ID))
	_, statErr := os.Stat(item.File.StoragePath)
	assert.True(t, os.IsNotExist(statErr))
}

func TestDeleteItem_CompactionKeepsRefsInSync(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	space := e.mustSpace(t, "Trip")

	items := make([]*domain.Item, 0, 4)
	for i := 0; i < 4; i++ {
		text := "note " + string(rune('a'+i))
		e.embedder.Set(text, blend(0, 1, float32(i+1)*0.05))
		items = append(items, e.mustMessage(t, space.ID, text))
	}

	// One delete out of four reaches the compaction threshold.
	require.NoError(t, e.content.DeleteItem(ctx, space.ID, items[0].ID))
	require.Equal(t, 0, e.index.Stats().Tombstones)

	refs := e.index.Refs()
	for _, item := range items[1:] {
		stored, err := e.meta.GetItem(ctx, item.ID)
		require.NoError(t, err)
		require.NotNil(t, stored.VectorRef)
		assert.Equal(t, refs[item.ID], *stored.VectorRef)
	}
}

func TestSearchInSpace_ScopeIsolation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	spaceA := e.mustSpace(t, "A")
	spaceB := e.mustSpace(t, "B")

	e.embedder.Set("in a", axis(0))
	e.embedder.Set("in b", axis(0))
	e.mustMessage(t, spaceA.ID, "in a")
	e.mustMessage(t, spaceB.ID, "in b")

	e.embedder.Set("probe", axis(0))
	hits, err := e.content.SearchInSpace(ctx, spaceA.ID, "probe", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, spaceA.ID, hits[0].Item.SpaceID)
}

func TestGlobalSearch_SpansSpaces(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	spaceA := e.mustSpace(t, "A")
	spaceB := e.mustSpace(t, "B")

	e.embedder.Set("in a", axis(1))
	e.embedder.Set("in b", axis(1))
	e.mustMessage(t, spaceA.ID, "in a")
	e.mustMessage(t, spaceB.ID, "in b")

	e.embedder.Set("probe", axis(1))
	hits, err := e.content.GlobalSearch(ctx, "u1", "probe", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestSearch_DropsItemDeletedAfterIndexing(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	space := e.mustSpace(t, "Trip")

	e.embedder.Set("orphan", axis(2))
	item := e.mustMessage(t, space.ID, "orphan")

	// Simulate a deletion that beat hydration: the metadata row is
	// gone but the vector is still live.
	require.NoError(t, e.meta.DeleteItem(ctx, item.ID))

	e.embedder.Set("probe", axis(2))
	hits, err := e.content.SearchInSpace(ctx, space.ID, "probe", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestReindex(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	space := e.mustSpace(t, "Trip")

	e.embedder.Set("first", axis(0))
	e.embedder.Set("second", axis(1))
	first := e.mustMessage(t, space.ID, "first")
	second := e.mustMessage(t, space.ID, "second")

	// The model changed: both texts now embed along axis 3.
	e.embedder.Set("first", blend(3, 0, 0.1))
	e.embedder.Set("second", blend(3, 1, 0.1))

	count, err := e.content.Reindex(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	stats := e.index.Stats()
	assert.Equal(t, 2, stats.Live)
	assert.Equal(t, 0, stats.Tombstones)

	// Vector refs were reassigned and stay in sync with the index.
	refs := e.index.Refs()
	gotFirst, err := e.meta.GetItem(ctx, first.ID)
	require.NoError(t, err)
	require.NotNil(t, gotFirst.VectorRef)
	assert.Equal(t, refs[first.ID], *gotFirst.VectorRef)
	gotSecond, err := e.meta.GetItem(ctx, second.ID)
	require.NoError(t, err)
	require.NotNil(t, gotSecond.VectorRef)
	assert.Equal(t, refs[second.ID], *gotSecond.VectorRef)
	assert.NotEqual(t, *gotFirst.VectorRef, *gotSecond.VectorRef)

	// Retrieval reflects the new embedding geometry.
	e.embedder.Set("probe", axis(3))
	hits, err := e.content.SearchInSpace(ctx, space.ID, "probe", 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestPersistSurvivesRestart(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	space := e.mustSpace(t, "Trip")

	e.embedder.Set("The Airbnb cost 18,500", blend(0, 1, 0.2))
	e.embedder.Set("Flight arrives 2pm", axis(1))
	target := e.mustMessage(t, space.ID, "The Airbnb cost 18,500")
	e.mustMessage(t, space.ID, "Flight arrives 2pm")

	e.embedder.Set("probe", axis(0))
	before, err := e.content.SearchInSpace(ctx, space.ID, "probe", 1)
	require.NoError(t, err)
	require.Len(t, before, 1)
	require.Equal(t, target.ID, before[0].Item.ID)

	// "Restart": reopen the index from its snapshot and rebuild the
	// service around it.
	reloaded, err := flat.New(filepath.Join(e.dir, "index.bin"), testDims)
	require.NoError(t, err)
	content := NewContentService(e.meta, reloaded, e.files, e.embedder, nil)

	after, err := content.SearchInSpace(ctx, space.ID, "probe", 1)
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, before[0].Item.ID, after[0].Item.ID)
	assert.InDelta(t, before[0].Score, after[0].Score, 1e-9)
}
