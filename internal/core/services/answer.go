package services

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/copilot-core/internal/composer"
	"github.com/custodia-labs/copilot-core/internal/core/domain"
	"github.com/custodia-labs/copilot-core/internal/core/ports/driven"
	"github.com/custodia-labs/copilot-core/internal/core/ports/driving"
	"github.com/custodia-labs/copilot-core/internal/costs"
	"github.com/custodia-labs/copilot-core/internal/logger"
	"github.com/custodia-labs/copilot-core/internal/tokens"
)

// Retrieval is the slice of the retriever the answerer depends on.
// Satisfied by *Retriever.
type Retrieval interface {
	Retrieve(ctx context.Context, query string) (*domain.RetrievalResult, error)
}

var _ Retrieval = (*Retriever)(nil)

// Ensure Answerer implements the interfaces.
var (
	_ driving.AnswerService = (*Answerer)(nil)
	_ driving.StatsService  = (*Answerer)(nil)
)

// Answerer runs the full answer pipeline: retrieve, route, compose,
// complete and account for cost.
type Answerer struct {
	retrieval  Retrieval
	completion driven.CompletionService
	composer   *composer.Composer
	ledger     *costs.Ledger
	store      driven.DocumentStore
	counter    *tokens.Counter

	// summaryTarget is the character budget handed to Summarize on the
	// summarize-then-answer path.
	summaryTarget int
}

// NewAnswerer creates the answer service. summaryTarget <= 0 uses the
// default context ceiling.
func NewAnswerer(
	retrieval Retrieval,
	completion driven.CompletionService,
	comp *composer.Composer,
	ledger *costs.Ledger,
	store driven.DocumentStore,
	counter *tokens.Counter,
	summaryTarget int,
) *Answerer {
	if summaryTarget <= 0 {
		summaryTarget = DefaultContextCeiling
	}
	return &Answerer{
		retrieval:     retrieval,
		completion:    completion,
		composer:      comp,
		ledger:        ledger,
		store:         store,
		counter:       counter,
		summaryTarget: summaryTarget,
	}
}

// Answer runs the pipeline for one query and returns the completed
// answer with its cost record attached.
func (a *Answerer) Answer(ctx context.Context, query string, history []domain.ConversationTurn, model string) (*domain.Answer, error) {
	start := time.Now()

	prompt, result, modelUsed, err := a.prepare(ctx, query, history, model)
	if err != nil {
		return nil, err
	}

	completion, err := a.completion.Complete(ctx, prompt.Text, driven.CompleteOptions{Model: model})
	if err != nil {
		a.recordFailure(ctx, modelUsed, prompt.Text, time.Since(start))
		return nil, fmt.Errorf("answer: %w", err)
	}

	inTokens := completion.InputTokens
	if inTokens == 0 {
		inTokens = a.counter.Count(prompt.Text)
	}
	outTokens := completion.OutputTokens
	if outTokens == 0 {
		outTokens = a.counter.Count(completion.Text)
	}

	rec := a.record(ctx, modelUsed, inTokens, outTokens, time.Since(start), true)

	return &domain.Answer{
		Text:            completion.Text,
		Sources:         result.Sources(),
		Confidence:      result.Confidence,
		Outcome:         result.Outcome,
		TemplateVersion: prompt.Version,
		Cost:            rec,
	}, nil
}

// AnswerStream runs the pipeline with a streaming completion. The cost
// of tokens produced so far is recorded even when the stream is
// cancelled or breaks mid-flight.
func (a *Answerer) AnswerStream(ctx context.Context, query string, history []domain.ConversationTurn, model string) (driving.AnswerStream, error) {
	start := time.Now()

	prompt, result, modelUsed, err := a.prepare(ctx, query, history, model)
	if err != nil {
		return nil, err
	}

	stream, err := a.completion.StreamComplete(ctx, prompt.Text, driven.CompleteOptions{Model: model})
	if err != nil {
		a.recordFailure(ctx, modelUsed, prompt.Text, time.Since(start))
		return nil, fmt.Errorf("answer: %w", err)
	}

	return &answerStream{
		inner:    stream,
		answerer: a,
		ctx:      ctx,
		model:    modelUsed,
		prompt:   prompt.Text,
		started:  start,
		meta: &domain.Answer{
			Sources:         result.Sources(),
			Confidence:      result.Confidence,
			Outcome:         result.Outcome,
			TemplateVersion: prompt.Version,
		},
	}, nil
}

// Stats returns the ledger's aggregate usage snapshot.
func (a *Answerer) Stats() domain.UsageStats {
	return a.ledger.Stats()
}

// prepare retrieves context, resolves the summarize and clarify paths
// and composes the prompt.
func (a *Answerer) prepare(ctx context.Context, query string, history []domain.ConversationTurn, model string) (*composer.Prompt, *domain.RetrievalResult, string, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil, "", fmt.Errorf("answer: query is empty")
	}

	result, err := a.retrieval.Retrieve(ctx, query)
	if err != nil {
		return nil, nil, "", fmt.Errorf("answer: %w", err)
	}

	in := composer.Input{
		Outcome: result.Outcome,
		Matches: result.Matches,
		History: history,
		Query:   query,
	}

	if result.Outcome == domain.OutcomeSummarize {
		in.Summary = a.summarize(ctx, result)
	}

	if result.Outcome == domain.OutcomeClarify {
		in.AvailableDocuments = a.availableDocuments(ctx)
	}

	prompt, err := a.composer.Compose("", in)
	if err != nil {
		return nil, nil, "", fmt.Errorf("answer: %w", err)
	}

	modelUsed := model
	if modelUsed == "" {
		modelUsed = a.completion.ModelName()
	}

	return prompt, result, modelUsed, nil
}

// summarize condenses the retrieved context to the summary target.
// Falls back to plain truncation if the model call fails, so an
// oversized context degrades rather than erroring out.
func (a *Answerer) summarize(ctx context.Context, result *domain.RetrievalResult) string {
	parts := make([]string, len(result.Matches))
	for i := range result.Matches {
		parts[i] = result.Matches[i].Content
	}
	joined := strings.Join(parts, "\n\n")

	summary, err := a.completion.Summarize(ctx, joined, a.summaryTarget)
	if err != nil {
		logger.Warn("summarize failed, truncating context: %v", err)
		return truncate(joined, a.summaryTarget)
	}
	return summary
}

// availableDocuments lists indexed filenames for the clarify prompt.
func (a *Answerer) availableDocuments(ctx context.Context) []string {
	docs, err := a.store.ListDocuments(ctx)
	if err != nil {
		logger.Warn("listing documents for clarify prompt: %v", err)
		return nil
	}
	seen := make(map[string]bool, len(docs))
	var names []string
	for i := range docs {
		if f := docs[i].Filename; f != "" && !seen[f] {
			seen[f] = true
			names = append(names, f)
		}
	}
	return names
}

// record books a request into the ledger. Ledger failures are logged,
// never propagated: accounting must not break answering.
func (a *Answerer) record(ctx context.Context, model string, inTokens, outTokens int, latency time.Duration, success bool) *domain.CostRecord {
	rec, err := a.ledger.Record(ctx, model, inTokens, outTokens, latency, success)
	if err != nil {
		logger.Warn("recording cost for %s: %v", model, err)
	}
	return rec
}

func (a *Answerer) recordFailure(ctx context.Context, model, prompt string, latency time.Duration) {
	a.record(ctx, model, a.counter.Count(prompt), 0, latency, false)
}

// truncate cuts s to at most max runes.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

// answerStream wraps a token stream with cost finalisation.
type answerStream struct {
	inner    driven.TokenStream
	answerer *Answerer
	ctx      context.Context
	model    string
	prompt   string
	started  time.Time
	meta     *domain.Answer

	mu     sync.Mutex
	once   sync.Once
	text   strings.Builder
	closed bool
}

// Recv returns the next fragment. On io.EOF the full cost is recorded;
// on a mid-stream error the partial cost is recorded as a failure.
func (s *answerStream) Recv() (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", domain.ErrStreamCancelled
	}
	s.mu.Unlock()

	frag, err := s.inner.Recv()
	if err == nil {
		s.mu.Lock()
		s.text.WriteString(frag)
		s.mu.Unlock()
		return frag, nil
	}

	if err == io.EOF {
		s.finalize(true)
		return "", io.EOF
	}

	s.finalize(false)
	return "", err
}

// Meta returns the answer metadata. The cost record is populated once
// the stream has finished or been cancelled.
func (s *answerStream) Meta() *domain.Answer {
	return s.meta
}

// Close cancels the stream and records the cost of tokens produced so
// far. Safe to call after exhaustion.
func (s *answerStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.finalize(false)
	return s.inner.Close()
}

// finalize records the stream's cost exactly once.
func (s *answerStream) finalize(success bool) {
	s.once.Do(func() {
		s.mu.Lock()
		text := s.text.String()
		s.mu.Unlock()

		s.meta.Text = text
		inTokens := s.answerer.counter.Count(s.prompt)
		outTokens := 0
		if text != "" {
			outTokens = s.answerer.counter.Count(text)
		}
		s.meta.Cost = s.answerer.record(s.ctx, s.model, inTokens, outTokens, time.Since(s.started), success)
	})
}
