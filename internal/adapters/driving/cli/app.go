package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/recall-cli/internal/adapters/driven/command"
	configfile "github.com/custodia-labs/recall-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/recall-cli/internal/adapters/driven/embedding"
	embedollama "github.com/custodia-labs/recall-cli/internal/adapters/driven/embedding/ollama"
	embedopenai "github.com/custodia-labs/recall-cli/internal/adapters/driven/embedding/openai"
	llmopenai "github.com/custodia-labs/recall-cli/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/recall-cli/internal/adapters/driven/storage/files"
	"github.com/custodia-labs/recall-cli/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/recall-cli/internal/adapters/driven/vector/flat"
	"github.com/custodia-labs/recall-cli/internal/core/ports/driven"
	"github.com/custodia-labs/recall-cli/internal/core/services"
	"github.com/custodia-labs/recall-cli/internal/extractors"
)

// App owns the wired services and their backing stores for one data
// root.
type App struct {
	Cfg   *configfile.Config
	Meta  *sqlite.Store
	Index *flat.Index

	Spaces  *services.SpaceService
	Content *services.ContentService
	Queries *services.QueryService
}

// NewApp loads configuration and wires every adapter and service.
func NewApp(dataRoot string) (*App, error) {
	if dataRoot == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataRoot = filepath.Join(home, ".recall")
	}

	cfg, err := configfile.Load(dataRoot)
	if err != nil {
		return nil, err
	}

	meta, err := sqlite.NewStore(cfg.DataRoot)
	if err != nil {
		return nil, err
	}

	fileStore, err := files.NewStore(cfg.DataRoot)
	if err != nil {
		meta.Close()
		return nil, err
	}

	embedder := buildEmbedder(cfg)
	index, err := flat.New(filepath.Join(cfg.DataRoot, "index.bin"), embedder.Dimensions())
	if err != nil {
		meta.Close()
		return nil, err
	}

	var llm driven.LLMService
	if cfg.LLM.Configured() {
		llm = llmopenai.NewLLMService(llmopenai.Config{
			BaseURL: cfg.LLM.BaseURL,
			APIKey:  cfg.LLM.APIKey(),
			Model:   cfg.LLM.Model,
		})
	}

	registry := extractors.Defaults(command.New())

	app := &App{
		Cfg:   cfg,
		Meta:  meta,
		Index: index,
	}
	app.Spaces = services.NewSpaceService(meta, index, fileStore)
	app.Content = services.NewContentService(meta, index, fileStore, embedder, registry)
	app.Queries = services.NewQueryService(meta, index, embedder, llm, services.QueryConfig{
		DefaultK:      cfg.Retrieval.K,
		ContextBudget: cfg.Retrieval.ContextBudget,
		SnippetLength: cfg.Retrieval.SnippetLength,
	})
	return app, nil
}

// buildEmbedder selects the configured embedding backend and fronts
// it with retries and optional client-side throttling.
func buildEmbedder(cfg *configfile.Config) driven.EmbeddingService {
	var inner driven.EmbeddingService
	switch cfg.Embedding.Provider {
	case "openai":
		inner = embedopenai.NewEmbeddingService(embedopenai.Config{
			BaseURL:    cfg.Embedding.BaseURL,
			APIKey:     cfg.Embedding.APIKey(),
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
		})
	default:
		inner = embedollama.NewEmbeddingService(embedollama.Config{
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
		})
	}

	var limiter *rate.Limiter
	if cfg.Embedding.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Embedding.RequestsPerSecond), 1)
	}
	return embedding.NewRetrying(inner, limiter)
}

// Close releases the app's backing stores.
func (a *App) Close() error {
	return a.Meta.Close()
}
