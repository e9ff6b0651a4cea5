package services

import (
	"context"
	"hash/fnv"
	"math"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall-cli/internal/adapters/driven/storage/files"
	"github.com/custodia-labs/recall-cli/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/recall-cli/internal/adapters/driven/vector/flat"
	"github.com/custodia-labs/recall-cli/internal/core/domain"
	"github.com/custodia-labs/recall-cli/internal/core/ports/driven"
	"github.com/custodia-labs/recall-cli/internal/extractors"
)

const testDims = 4

// stubEmbedder produces deterministic unit vectors. Tests that assert
// retrieval order register vectors for exact texts; everything else
// gets a stable hash-derived vector.
type stubEmbedder struct {
	mu     sync.Mutex
	byText map[string][]float32
	err    error
	calls  int
}

func newStubEmbedder() *stubEmbedder {
	return &stubEmbedder{byText: make(map[string][]float32)}
}

// Set pins the vector returned for an exact text, normalized.
func (e *stubEmbedder) Set(text string, vec []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.byText[text] = normalize(vec)
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (e *stubEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	err := e.err
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		e.mu.Lock()
		vec, ok := e.byText[text]
		e.mu.Unlock()
		if ok {
			out[i] = vec
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(text))
		seed := h.Sum32()
		vec = make([]float32, testDims)
		for j := range vec {
			seed = seed*1664525 + 1013904223
			vec[j] = float32(seed%1000) + 1
		}
		out[i] = normalize(vec)
	}
	return out, nil
}

func (e *stubEmbedder) Dimensions() int   { return testDims }
func (e *stubEmbedder) ModelName() string { return "stub-model" }

func normalize(vec []float32) []float32 {
	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	n := math.Sqrt(sum)
	out := make([]float32, len(vec))
	for i, x := range vec {
		out[i] = float32(float64(x) / n)
	}
	return out
}

// stubLLM returns a scripted answer and records the prompt it saw.
type stubLLM struct {
	answer     string
	err        error
	lastSystem string
	lastUser   string
	calls      int
}

func (l *stubLLM) Generate(_ context.Context, system, user string, _ driven.GenerateOptions) (string, error) {
	l.calls++
	l.lastSystem = system
	l.lastUser = user
	if l.err != nil {
		return "", l.err
	}
	return l.answer, nil
}

func (l *stubLLM) ModelName() string { return "stub-llm" }

// stubRunner backs the extractor registry in tests.
type stubRunner struct {
	output []byte
	err    error
}

func (r *stubRunner) Run(_ context.Context, _ string, _ ...string) ([]byte, error) {
	return r.output, r.err
}

// env wires real adapters (sqlite, flat index, file store, extractor
// registry) around stub embedding and LLM backends.
type env struct {
	dir      string
	meta     *sqlite.Store
	index    *flat.Index
	files    *files.Store
	embedder *stubEmbedder
	runner   *stubRunner

	spaces  *SpaceService
	content *ContentService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()

	meta, err := sqlite.NewStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() { meta.Close() })

	index, err := flat.New(filepath.Join(dir, "index.bin"), testDims)
	require.NoError(t, err)

	fileStore, err := files.NewStore(dir)
	require.NoError(t, err)

	embedder := newStubEmbedder()
	runner := &stubRunner{output: []byte("extracted text")}

	e := &env{
		dir:      dir,
		meta:     meta,
		index:    index,
		files:    fileStore,
		embedder: embedder,
		runner:   runner,
	}
	e.spaces = NewSpaceService(meta, index, fileStore)
	e.content = NewContentService(meta, index, fileStore, embedder, extractors.Defaults(runner))
	return e
}

// mustSpace creates a space and fails the test on error.
func (e *env) mustSpace(t *testing.T, name string) *domain.Space {
	t.Helper()
	space, err := e.spaces.Create(context.Background(), "u1", name, "")
	require.NoError(t, err)
	return space
}

// mustMessage saves a message and fails the test on error.
func (e *env) mustMessage(t *testing.T, spaceID, text string) *domain.Item {
	t.Helper()
	item, err := e.content.SaveMessage(context.Background(), spaceID, text, "")
	require.NoError(t, err)
	return item
}

// axis returns the unit vector along one of the test dimensions.
func axis(i int) []float32 {
	vec := make([]float32, testDims)
	vec[i%testDims] = 1
	return vec
}

// blend mixes two axes so similarity ordering is controllable.
func blend(main, minor int, eps float32) []float32 {
	vec := make([]float32, testDims)
	vec[main%testDims] = 1
	vec[minor%testDims] = eps
	return vec
}
