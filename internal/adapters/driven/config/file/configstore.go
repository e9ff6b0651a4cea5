// Package file provides the TOML-backed application configuration.
package file

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Default configuration values.
const (
	DefaultUserID        = "local"
	DefaultProvider      = "ollama"
	DefaultRetrieveK     = 5
	DefaultContextBudget = 8_000
	DefaultSnippetLength = 1_500
)

// Config is the application configuration, stored as TOML in the data
// root.
type Config struct {
	// DataRoot is the directory holding the metadata database, the
	// vector index snapshot, and uploaded files.
	DataRoot string `toml:"data_root"`

	// UserID identifies the owner of this data root.
	UserID string `toml:"user_id"`

	Embedding EmbeddingConfig `toml:"embedding"`
	LLM       LLMConfig       `toml:"llm"`
	Retrieval RetrievalConfig `toml:"retrieval"`
}

// EmbeddingConfig selects and tunes the embedding backend.
type EmbeddingConfig struct {
	// Provider is "ollama" or "openai".
	Provider string `toml:"provider"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `toml:"base_url"`

	// Model is the embedding model identity. Fixed once an index
	// exists; changing it requires a full reindex.
	Model string `toml:"model"`

	// Dimensions is the vector size the model produces.
	Dimensions int `toml:"dimensions"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `toml:"api_key_env"`

	// RequestsPerSecond throttles remote embedding calls. Zero
	// disables client-side throttling.
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// LLMConfig selects the answer-generation backend. An empty BaseURL
// and APIKeyEnv leaves the LLM unconfigured; queries then fall back
// to a context summary.
type LLMConfig struct {
	BaseURL   string `toml:"base_url"`
	Model     string `toml:"model"`
	APIKeyEnv string `toml:"api_key_env"`
}

// RetrievalConfig tunes the query engine.
type RetrievalConfig struct {
	// K is the default number of items retrieved per question.
	K int `toml:"k"`

	// ContextBudget is the character budget for assembled context.
	ContextBudget int `toml:"context_budget"`

	// SnippetLength is the per-source snippet length in characters.
	SnippetLength int `toml:"snippet_length"`
}

// Path returns the config file location inside a data root.
func Path(dataRoot string) string {
	return filepath.Join(dataRoot, "config.toml")
}

// Load reads the configuration from the data root, applying defaults
// for anything unset. A missing file yields the defaults.
func Load(dataRoot string) (*Config, error) {
	cfg := &Config{DataRoot: dataRoot}

	data, err := os.ReadFile(Path(dataRoot))
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err == nil {
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	}

	cfg.applyDefaults(dataRoot)
	return cfg, nil
}

// Save writes the configuration to the data root.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.DataRoot, 0700); err != nil {
		return fmt.Errorf("creating data root: %w", err)
	}
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(Path(c.DataRoot), data, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// APIKey resolves the embedding API key from the environment.
func (e EmbeddingConfig) APIKey() string {
	if e.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(e.APIKeyEnv)
}

// APIKey resolves the LLM API key from the environment.
func (l LLMConfig) APIKey() string {
	if l.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(l.APIKeyEnv)
}

// Configured reports whether an LLM endpoint is usable.
func (l LLMConfig) Configured() bool {
	return l.BaseURL != "" || l.APIKey() != ""
}

func (c *Config) applyDefaults(dataRoot string) {
	if c.DataRoot == "" {
		c.DataRoot = dataRoot
	}
	if c.UserID == "" {
		c.UserID = DefaultUserID
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = DefaultProvider
	}
	if c.Retrieval.K == 0 {
		c.Retrieval.K = DefaultRetrieveK
	}
	if c.Retrieval.ContextBudget == 0 {
		c.Retrieval.ContextBudget = DefaultContextBudget
	}
	if c.Retrieval.SnippetLength == 0 {
		c.Retrieval.SnippetLength = DefaultSnippetLength
	}
}
