package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/recall-cli/internal/core/domain"
	"github.com/custodia-labs/recall-cli/internal/core/ports/driven"
	"github.com/custodia-labs/recall-cli/internal/core/ports/driving"
	"github.com/custodia-labs/recall-cli/internal/logger"
)

// Ensure QueryService implements the interface.
var _ driving.QueryService = (*QueryService)(nil)

// Per-space query limit: 10 per minute.
const (
	queryRatePerMinute = 10
	contextSeparator   = "\n\n---\n\n"
)

const answerInstruction = `You are a helpful assistant that answers questions based on the user's saved content.
Answer only from the provided sources. If the sources do not contain enough information, say so clearly.
Be concise and direct. Cite source indices like [source 1] when appropriate.`

const answerSystemPrompt = "You answer questions based on the user's saved content. Be accurate, helpful, and cite your sources."

// QueryConfig tunes retrieval and context assembly.
type QueryConfig struct {
	// DefaultK is the number of items retrieved when the caller does
	// not choose one.
	DefaultK int

	// ContextBudget is the character budget for assembled context.
	ContextBudget int

	// SnippetLength is the per-source snippet length in characters.
	SnippetLength int
}

func (c *QueryConfig) applyDefaults() {
	if c.DefaultK <= 0 {
		c.DefaultK = domain.DefaultRetrieveK
	}
	if c.ContextBudget <= 0 {
		c.ContextBudget = 8_000
	}
	if c.SnippetLength <= 0 {
		c.SnippetLength = 1_500
	}
}

// QueryService answers questions grounded in a space's content.
// The llm may be nil; answers then degrade to a deterministic context
// summary.
type QueryService struct {
	meta     driven.MetadataStore
	index    driven.VectorIndex
	embedder driven.EmbeddingService
	llm      driven.LLMService
	cfg      QueryConfig

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewQueryService creates a new query service.
func NewQueryService(
	meta driven.MetadataStore,
	index driven.VectorIndex,
	embedder driven.EmbeddingService,
	llm driven.LLMService,
	cfg QueryConfig,
) *QueryService {
	cfg.applyDefaults()
	return &QueryService{
		meta:     meta,
		index:    index,
		embedder: embedder,
		llm:      llm,
		cfg:      cfg,
		limiters: make(map[string]*rate.Limiter),
	}
}

// Ask answers a question from a space's content and persists the
// resulting query record. Nothing is persisted when any step fails.
func (s *QueryService) Ask(ctx context.Context, spaceID, question string, k int) (*domain.Query, error) {
	if err := domain.ValidateQuestion(question); err != nil {
		return nil, err
	}
	switch {
	case k == 0:
		k = s.cfg.DefaultK
	case k < domain.MinRetrieveK || k > domain.MaxRetrieveK:
		return nil, fmt.Errorf("%w: k must be between %d and %d",
			domain.ErrInvalidInput, domain.MinRetrieveK, domain.MaxRetrieveK)
	}

	if _, err := s.meta.GetSpace(ctx, spaceID); err != nil {
		return nil, err
	}
	if !s.limiter(spaceID).Allow() {
		return nil, fmt.Errorf("%w: wait a moment before asking another question", domain.ErrRateLimited)
	}

	ready, err := s.meta.CountReadyItems(ctx, spaceID)
	if err != nil {
		return nil, fmt.Errorf("counting ready items: %w", err)
	}
	if ready == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrEmptySpace, spaceID)
	}

	logger.Section("Query")
	logger.Debug("Question: %q (k=%d)", question, k)

	qvec, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	hits, err := s.index.Search(qvec, spaceID, k)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	logger.Debug("Retrieved %d hits", len(hits))

	contextText, sources := s.assembleContext(ctx, hits)

	answer, err := s.generateAnswer(ctx, question, contextText)
	if err != nil {
		return nil, err
	}

	query := &domain.Query{
		ID:       uuid.New().String(),
		SpaceID:  spaceID,
		Question: question,
		Answer:   answer,
		Sources:  sources,
	}
	if err := s.meta.SaveQuery(ctx, query); err != nil {
		return nil, fmt.Errorf("save query: %w", err)
	}
	return query, nil
}

// History returns past queries for a space, newest first.
func (s *QueryService) History(ctx context.Context, spaceID string, limit, offset int) ([]domain.Query, error) {
	if _, err := s.meta.GetSpace(ctx, spaceID); err != nil {
		return nil, err
	}
	return s.meta.ListQueries(ctx, spaceID, limit, offset)
}

// assembleContext walks hits in score order, hydrates each against
// the metadata store (dropping items deleted since the search), and
// appends labelled snippet blocks until the character budget would be
// exceeded. The kept hits become the query's source list.
func (s *QueryService) assembleContext(ctx context.Context, hits []driven.VectorHit) (string, []domain.QuerySource) {
	var blocks []string
	var sources []domain.QuerySource
	used := 0

	for _, hit := range hits {
		item, err := s.meta.GetItem(ctx, hit.ItemID)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				logger.Warn("Hydrating item %s: %v", hit.ItemID, err)
			}
			continue
		}

		snippet := domain.SnippetAt(item.DisplayText(), s.cfg.SnippetLength)
		block := fmt.Sprintf("[source %d] %s", len(sources)+1, snippet)
		cost := utf8.RuneCountInString(block)
		if len(blocks) > 0 {
			cost += utf8.RuneCountInString(contextSeparator)
		}
		if used+cost > s.cfg.ContextBudget {
			break
		}
		used += cost

		blocks = append(blocks, block)
		sources = append(sources, domain.QuerySource{
			ItemID:  item.ID,
			Kind:    item.Kind,
			Snippet: domain.Truncate(snippet, domain.MaxSourceSnippet),
			Score:   hit.Score,
		})
	}

	if len(blocks) == 0 {
		return "No relevant content found in this space.", sources
	}
	return strings.Join(blocks, contextSeparator), sources
}

// generateAnswer sends the grounded prompt to the LLM. Without a
// configured LLM the answer is a deterministic summary of the
// retrieved context.
func (s *QueryService) generateAnswer(ctx context.Context, question, contextText string) (string, error) {
	if s.llm == nil {
		return "LLM not configured. The most relevant content from this space:\n\n" + contextText, nil
	}

	user := fmt.Sprintf("%s\n\nContext from the space:\n%s\n\nQuestion: %s\n\nAnswer:",
		answerInstruction, contextText, question)

	answer, err := s.llm.Generate(ctx, answerSystemPrompt, user, driven.GenerateOptions{
		Temperature: 0.3,
		MaxTokens:   1000,
	})
	if err != nil {
		return "", fmt.Errorf("generate answer: %w", err)
	}
	return answer, nil
}

// limiter returns the per-space rate limiter, creating it on first
// use.
func (s *QueryService) limiter(spaceID string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.limiters[spaceID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(queryRatePerMinute)/60, queryRatePerMinute)
		s.limiters[spaceID] = l
	}
	return l
}
