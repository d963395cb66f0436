// Package cli implements the command-line interface. Commands talk to
// the core services through the driving ports; all wiring of adapters
// happens here.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/copilot-core/internal/adapters/driven/costlog"
	embollama "github.com/custodia-labs/copilot-core/internal/adapters/driven/embedding/ollama"
	embopenai "github.com/custodia-labs/copilot-core/internal/adapters/driven/embedding/openai"
	llmanthropic "github.com/custodia-labs/copilot-core/internal/adapters/driven/llm/anthropic"
	llmopenai "github.com/custodia-labs/copilot-core/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/copilot-core/internal/adapters/driven/resilience"
	storagemem "github.com/custodia-labs/copilot-core/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/copilot-core/internal/adapters/driven/storage/sqlite"
	templatefile "github.com/custodia-labs/copilot-core/internal/adapters/driven/templates/file"
	vectormem "github.com/custodia-labs/copilot-core/internal/adapters/driven/vector/memory"
	"github.com/custodia-labs/copilot-core/internal/chunker"
	"github.com/custodia-labs/copilot-core/internal/composer"
	"github.com/custodia-labs/copilot-core/internal/config"
	"github.com/custodia-labs/copilot-core/internal/core/ports/driven"
	"github.com/custodia-labs/copilot-core/internal/core/ports/driving"
	"github.com/custodia-labs/copilot-core/internal/core/services"
	"github.com/custodia-labs/copilot-core/internal/costs"
	"github.com/custodia-labs/copilot-core/internal/extractors"
	"github.com/custodia-labs/copilot-core/internal/logger"
	"github.com/custodia-labs/copilot-core/internal/tokens"
)

// version is set at build time via -ldflags.
var version = "dev"

// Services wired by initServices and used by the commands.
var (
	ingestService driving.IngestService
	answerService driving.AnswerService
	statsService  driving.StatsService

	// cleanups run after every command, newest first.
	cleanups []func()
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "copilot",
	Short: "Knowledge copilot over your own documents",
	Long: `Copilot indexes your documents and answers questions about them,
with citations, confidence-based routing and per-request cost tracking.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(verbose)
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}
		// Offline log analysis reads a file and needs no adapters.
		if cmd.Name() == "stats" && statsLogPath != "" {
			return nil
		}
		// Tests pre-wire mock services; only build the real stack when
		// nothing is wired yet.
		if ingestService != nil || answerService != nil {
			return nil
		}
		return initServices()
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
		cleanups = nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.copilot/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging to stderr")
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initServices builds the full adapter stack from configuration.
func initServices() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	ch, err := chunker.New(cfg.Chunking.ChunkSize, cfg.Chunking.Overlap)
	if err != nil {
		return err
	}

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}
	cleanups = append(cleanups, func() { embedder.Close() })

	completion, err := buildCompletion(cfg)
	if err != nil {
		return err
	}
	cleanups = append(cleanups, func() { completion.Close() })

	index := vectormem.New(vectormem.WithScoreFloor(cfg.Retrieval.ScoreFloor))

	var docStore driven.DocumentStore
	var costSink driven.CostSink
	if cfg.Storage.InMemory {
		docStore = storagemem.NewDocumentStore()
	} else {
		store, err := sqlite.NewStore(dbPath(cfg))
		if err != nil {
			return err
		}
		cleanups = append(cleanups, func() { store.Close() })
		docStore = store.DocumentStore()
		costSink = store.CostSink()

		// Rebuild the vector index from persisted embeddings.
		entries, err := store.LoadIndexEntries(context.Background())
		if err != nil {
			return err
		}
		if len(entries) > 0 {
			if err := index.Add(context.Background(), entries); err != nil {
				return err
			}
			logger.Debug("rebuilt index with %d entries", len(entries))
		}
	}

	if cfg.Costs.LogPath != "" {
		sink, err := costlog.NewJSONLSink(cfg.Costs.LogPath)
		if err != nil {
			return err
		}
		cleanups = append(cleanups, func() { sink.Close() })
		costSink = sink
	}

	pricing, err := buildPricing(cfg)
	if err != nil {
		return err
	}

	var ledgerOpts []costs.Option
	if costSink != nil {
		ledgerOpts = append(ledgerOpts, costs.WithSink(costSink))
	}
	ledger := costs.NewLedger(pricing, ledgerOpts...)

	templates, err := templatefile.NewTemplateStore(cfg.Prompts.InstructionDir)
	if err != nil {
		return err
	}

	// Reload instruction texts when the user edits them on disk.
	watchCtx, stopWatch := context.WithCancel(context.Background())
	go func() {
		if err := templates.Watch(watchCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Warn("instruction watcher stopped: %v", err)
		}
	}()
	cleanups = append(cleanups, stopWatch)

	comp := composer.New(
		composer.WithVersion(cfg.Prompts.TemplateVersion),
		composer.WithHistoryLimit(cfg.Prompts.HistoryLimit),
		composer.WithTemplateStore(templates),
	)
	if err := comp.Validate(comp.Version()); err != nil {
		return err
	}

	counter := tokens.NewCounter(cfg.LLM.Model)

	retriever, err := services.NewRetriever(embedder, index, services.RetrieverConfig{
		TopK:                cfg.Retrieval.TopK,
		ConfidenceThreshold: cfg.Retrieval.ConfidenceThreshold,
		ContextCeiling:      cfg.Retrieval.ContextCeiling,
		Aggregator:          cfg.Retrieval.Aggregator,
	})
	if err != nil {
		return err
	}

	ingestService = services.NewIngest(ch, embedder, docStore, index, extractors.NewDefaultRegistry(), counter)
	answerer := services.NewAnswerer(retriever, completion, comp, ledger, docStore, counter, cfg.Retrieval.ContextCeiling)
	answerService = answerer
	statsService = answerer

	return nil
}

func buildEmbedder(cfg config.Config) (driven.EmbeddingService, error) {
	var inner driven.EmbeddingService
	switch cfg.Embedding.Provider {
	case "openai":
		svc, err := embopenai.NewEmbeddingService(embopenai.Config{
			APIKey:    cfg.Embedding.APIKey(),
			BaseURL:   cfg.Embedding.BaseURL,
			Model:     cfg.Embedding.Model,
			BatchSize: cfg.Embedding.BatchSize,
		})
		if err != nil {
			return nil, err
		}
		inner = svc
	case "ollama":
		inner = embollama.NewEmbeddingService(embollama.Config{
			BaseURL: cfg.Embedding.BaseURL,
			Model:   cfg.Embedding.Model,
		})
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}
	return resilience.NewEmbedding(inner, resilience.Policy{}), nil
}

func buildCompletion(cfg config.Config) (driven.CompletionService, error) {
	var inner driven.CompletionService
	switch cfg.LLM.Provider {
	case "anthropic":
		svc, err := llmanthropic.NewCompletionService(llmanthropic.Config{
			APIKey:  cfg.LLM.APIKey(),
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
		})
		if err != nil {
			return nil, err
		}
		inner = svc
	case "openai":
		svc, err := llmopenai.NewCompletionService(llmopenai.Config{
			APIKey:  cfg.LLM.APIKey(),
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
		})
		if err != nil {
			return nil, err
		}
		inner = svc
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
	return resilience.NewCompletion(inner, resilience.Policy{}), nil
}

// buildPricing merges configured per-model rates over the defaults.
func buildPricing(cfg config.Config) (costs.PricingTable, error) {
	pricing := costs.DefaultPricing()
	for model, rates := range cfg.Costs.Pricing {
		in, err := decimal.NewFromString(rates.InputPer1K)
		if err != nil {
			return nil, fmt.Errorf("pricing for %q: input_per_1k: %w", model, err)
		}
		out, err := decimal.NewFromString(rates.OutputPer1K)
		if err != nil {
			return nil, fmt.Errorf("pricing for %q: output_per_1k: %w", model, err)
		}
		pricing[model] = costs.Pricing{InputPer1K: in, OutputPer1K: out}
	}
	return pricing, nil
}

func dbPath(cfg config.Config) string {
	dir := cfg.Storage.DataDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			dir = filepath.Join(home, ".copilot")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "copilot.db")
}
