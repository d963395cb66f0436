package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/copilot-core/internal/core/domain"
	"github.com/custodia-labs/copilot-core/internal/core/ports/driven"
	"github.com/custodia-labs/copilot-core/internal/logger"
)

// Default retrieval parameters.
const (
	DefaultTopK                = 5
	DefaultConfidenceThreshold = 0.7
	DefaultContextCeiling      = 4000
	DefaultAggregator          = "max"
)

// Aggregator reduces match scores to a single confidence value in
// [0, 1]. Called with a non-empty, descending-sorted score slice.
type Aggregator func(scores []float64) float64

// aggregators is the registry of named confidence aggregators.
var aggregators = map[string]Aggregator{
	"max":       aggregateMax,
	"mean_top3": aggregateMeanTop3,
}

func aggregateMax(scores []float64) float64 {
	return scores[0]
}

func aggregateMeanTop3(scores []float64) float64 {
	n := len(scores)
	if n > 3 {
		n = 3
	}
	sum := 0.0
	for _, s := range scores[:n] {
		sum += s
	}
	return sum / float64(n)
}

// RetrieverConfig holds the routing thresholds.
type RetrieverConfig struct {
	// TopK is how many matches to retrieve (default: 5).
	TopK int

	// ConfidenceThreshold routes to clarify below it (default: 0.7).
	ConfidenceThreshold float64

	// ContextCeiling is the character budget for retrieved context;
	// above it the outcome is summarize-then-answer (default: 4000).
	ContextCeiling int

	// Aggregator names the confidence aggregator (default: "max").
	Aggregator string
}

func (c RetrieverConfig) withDefaults() RetrieverConfig {
	if c.TopK == 0 {
		c.TopK = DefaultTopK
	}
	if c.ConfidenceThreshold == 0 {
		c.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if c.ContextCeiling == 0 {
		c.ContextCeiling = DefaultContextCeiling
	}
	if c.Aggregator == "" {
		c.Aggregator = DefaultAggregator
	}
	return c
}

// Retriever embeds queries, searches the index and routes the result to
// an outcome based on aggregate confidence and context size.
type Retriever struct {
	embedder  driven.EmbeddingService
	index     driven.VectorIndex
	aggregate Aggregator
	cfg       RetrieverConfig
}

// NewRetriever creates the retrieval service. Fails on an unknown
// aggregator name or thresholds outside [0, 1].
func NewRetriever(embedder driven.EmbeddingService, index driven.VectorIndex, cfg RetrieverConfig) (*Retriever, error) {
	cfg = cfg.withDefaults()

	if cfg.ConfidenceThreshold < 0 || cfg.ConfidenceThreshold > 1 {
		return nil, fmt.Errorf("%w: confidence threshold %v outside [0, 1]",
			domain.ErrInvalidConfig, cfg.ConfidenceThreshold)
	}
	if cfg.TopK < 1 {
		return nil, fmt.Errorf("%w: top_k must be positive", domain.ErrInvalidConfig)
	}

	aggregate, ok := aggregators[cfg.Aggregator]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownAggregator, cfg.Aggregator)
	}

	return &Retriever{
		embedder:  embedder,
		index:     index,
		aggregate: aggregate,
		cfg:       cfg,
	}, nil
}

// Retrieve embeds the query, searches the index and decides the
// outcome. The index is only touched for the search itself; no lock is
// held across the embedding call.
func (r *Retriever) Retrieve(ctx context.Context, query string) (*domain.RetrievalResult, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("retrieve: embedding query: %w", err)
	}

	matches, err := r.index.Search(ctx, vec, r.cfg.TopK, nil)
	if err != nil {
		return nil, fmt.Errorf("retrieve: searching index: %w", err)
	}

	result := &domain.RetrievalResult{Matches: matches}

	if len(matches) == 0 {
		result.Outcome = domain.OutcomeClarify
		logger.Debug("retrieve: no matches, routing to clarify")
		return result, nil
	}

	scores := make([]float64, len(matches))
	for i := range matches {
		scores[i] = matches[i].Score
	}
	result.Confidence = r.aggregate(scores)

	switch {
	case result.Confidence < r.cfg.ConfidenceThreshold:
		result.Outcome = domain.OutcomeClarify
	case result.ContextLength() > r.cfg.ContextCeiling:
		result.Outcome = domain.OutcomeSummarize
	default:
		result.Outcome = domain.OutcomeDirect
	}

	logger.Debug("retrieve: %d matches, confidence %.3f, outcome %s",
		len(matches), result.Confidence, result.Outcome)
	return result, nil
}

// Config returns the effective configuration.
func (r *Retriever) Config() RetrieverConfig {
	return r.cfg
}

// KnownAggregator reports whether name is a registered aggregator.
// Used by config validation.
func KnownAggregator(name string) bool {
	_, ok := aggregators[name]
	return ok
}
