// Package config loads and validates the TOML configuration file.
// Every setting has a default; a missing file yields a fully working
// configuration, and an invalid one fails fast at startup.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/copilot-core/internal/core/domain"
)

// Config is the root configuration.
type Config struct {
	Chunking  Chunking  `toml:"chunking"`
	Retrieval Retrieval `toml:"retrieval"`
	Embedding Embedding `toml:"embedding"`
	LLM       LLM       `toml:"llm"`
	Prompts   Prompts   `toml:"prompts"`
	Costs     Costs     `toml:"costs"`
	Storage   Storage   `toml:"storage"`
}

// Chunking controls document splitting.
type Chunking struct {
	// ChunkSize is the chunk budget in characters.
	ChunkSize int `toml:"chunk_size"`

	// Overlap is the sentence-aligned overlap between neighbours.
	Overlap int `toml:"overlap"`
}

// Retrieval controls search and outcome routing.
type Retrieval struct {
	// TopK is how many matches to retrieve per query.
	TopK int `toml:"top_k"`

	// ConfidenceThreshold routes to clarify below it.
	ConfidenceThreshold float64 `toml:"confidence_threshold"`

	// ContextCeiling is the character budget before summarisation.
	ContextCeiling int `toml:"context_ceiling"`

	// Aggregator names the confidence aggregator ("max", "mean_top3").
	Aggregator string `toml:"aggregator"`

	// ScoreFloor drops matches below this similarity outright.
	ScoreFloor float64 `toml:"score_floor"`
}

// Embedding selects and configures the embedding provider.
type Embedding struct {
	// Provider is "openai" or "ollama".
	Provider string `toml:"provider"`

	// Model overrides the provider default.
	Model string `toml:"model"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `toml:"base_url"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `toml:"api_key_env"`

	// BatchSize caps how many texts go into one embedding request.
	// Zero uses the provider default.
	BatchSize int `toml:"batch_size"`
}

// LLM selects and configures the completion provider.
type LLM struct {
	// Provider is "anthropic" or "openai".
	Provider string `toml:"provider"`

	// Model overrides the provider default.
	Model string `toml:"model"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `toml:"base_url"`

	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `toml:"api_key_env"`
}

// Prompts controls prompt composition.
type Prompts struct {
	// TemplateVersion selects the prompt template.
	TemplateVersion string `toml:"template_version"`

	// HistoryLimit is how many recent turns are retained.
	HistoryLimit int `toml:"history_limit"`

	// InstructionDir holds user-editable instruction files.
	InstructionDir string `toml:"instruction_dir"`
}

// Costs controls accounting.
type Costs struct {
	// LogPath is the JSONL cost log. Empty disables the file log.
	LogPath string `toml:"log_path"`

	// Pricing overrides or extends the built-in per-1K-token rates.
	Pricing map[string]ModelPricing `toml:"pricing"`
}

// ModelPricing is a per-model rate override, in dollars per 1K tokens.
type ModelPricing struct {
	InputPer1K  string `toml:"input_per_1k"`
	OutputPer1K string `toml:"output_per_1k"`
}

// Storage controls persistence.
type Storage struct {
	// DataDir holds the SQLite database. Empty means ~/.copilot.
	DataDir string `toml:"data_dir"`

	// InMemory skips SQLite entirely; nothing survives the process.
	InMemory bool `toml:"in_memory"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Chunking: Chunking{
			ChunkSize: 500,
			Overlap:   50,
		},
		Retrieval: Retrieval{
			TopK:                5,
			ConfidenceThreshold: 0.7,
			ContextCeiling:      4000,
			Aggregator:          "max",
		},
		Embedding: Embedding{
			Provider:  "openai",
			APIKeyEnv: "OPENAI_API_KEY",
		},
		LLM: LLM{
			Provider:  "anthropic",
			APIKeyEnv: "ANTHROPIC_API_KEY",
		},
		Prompts: Prompts{
			TemplateVersion: "v1.2.0",
			HistoryLimit:    6,
		},
	}
}

// Load reads the configuration from path, falling back to defaults for
// a missing file. If path is empty, ~/.copilot/config.toml is used.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return cfg, fmt.Errorf("get home directory: %w", err)
		}
		path = filepath.Join(home, ".copilot", "config.toml")
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for contradictions. Called at
// startup so bad settings fail before any request is served.
func (c *Config) Validate() error {
	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive", domain.ErrInvalidConfig)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("%w: overlap must be in [0, chunk_size)", domain.ErrInvalidConfig)
	}
	if c.Retrieval.TopK < 1 {
		return fmt.Errorf("%w: top_k must be positive", domain.ErrInvalidConfig)
	}
	if c.Retrieval.ConfidenceThreshold < 0 || c.Retrieval.ConfidenceThreshold > 1 {
		return fmt.Errorf("%w: confidence_threshold outside [0, 1]", domain.ErrInvalidConfig)
	}
	if c.Retrieval.ScoreFloor < 0 || c.Retrieval.ScoreFloor > 1 {
		return fmt.Errorf("%w: score_floor outside [0, 1]", domain.ErrInvalidConfig)
	}
	if c.Retrieval.ContextCeiling <= 0 {
		return fmt.Errorf("%w: context_ceiling must be positive", domain.ErrInvalidConfig)
	}
	if c.Prompts.HistoryLimit < 0 {
		return fmt.Errorf("%w: history_limit must not be negative", domain.ErrInvalidConfig)
	}

	if c.Embedding.BatchSize < 0 {
		return fmt.Errorf("%w: batch_size must not be negative", domain.ErrInvalidConfig)
	}
	switch c.Embedding.Provider {
	case "openai", "ollama":
	default:
		return fmt.Errorf("%w: unknown embedding provider %q", domain.ErrInvalidConfig, c.Embedding.Provider)
	}
	switch c.LLM.Provider {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("%w: unknown llm provider %q", domain.ErrInvalidConfig, c.LLM.Provider)
	}

	return nil
}

// APIKey resolves the provider API key from the configured environment
// variable.
func (e Embedding) APIKey() string {
	return os.Getenv(e.APIKeyEnv)
}

// APIKey resolves the provider API key from the configured environment
// variable.
func (l LLM) APIKey() string {
	return os.Getenv(l.APIKeyEnv)
}
