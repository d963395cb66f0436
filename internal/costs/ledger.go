// Package costs meters token usage and latency per request, converts
// them to monetary cost via a per-model pricing table, and maintains
// running aggregates so stat reads are O(1).
package costs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/custodia-labs/copilot-core/internal/core/domain"
	"github.com/custodia-labs/copilot-core/internal/core/ports/driven"
)

// latencyWindow bounds the ring used for the p95 estimate. Aggregates
// proper are exact and incremental; only the percentile is windowed.
const latencyWindow = 256

// Ledger is the explicit accumulator for request costs. It is created
// at process start, passed by handle into whichever component records
// cost, and closed at shutdown with a guaranteed sink flush.
type Ledger struct {
	mu      sync.Mutex
	pricing PricingTable
	sink    driven.CostSink

	totalRequests int
	failed        int
	totalTokens   int
	totalCost     decimal.Decimal
	totalLatency  time.Duration
	minLatency    time.Duration
	maxLatency    time.Duration

	latencies [latencyWindow]time.Duration
	latCount  int
	latNext   int

	byModel map[string]*modelAgg
}

type modelAgg struct {
	requests     int
	cost         decimal.Decimal
	tokens       int
	totalLatency time.Duration
}

// Option configures the ledger.
type Option func(*Ledger)

// WithSink attaches a durable destination for cost records.
func WithSink(sink driven.CostSink) Option {
	return func(l *Ledger) {
		l.sink = sink
	}
}

// NewLedger creates a ledger over the given pricing table.
// A nil table uses the default rate card.
func NewLedger(pricing PricingTable, opts ...Option) *Ledger {
	if pricing == nil {
		pricing = DefaultPricing()
	}
	l := &Ledger{
		pricing:   pricing,
		totalCost: decimal.Zero,
		byModel:   make(map[string]*modelAgg),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Record meters one request: computes its cost, folds it into the
// running aggregates and appends it to the sink. Unknown models fail
// with domain.ErrPricingUnavailable before any state changes.
func (l *Ledger) Record(
	ctx context.Context,
	model string,
	inputTokens, outputTokens int,
	latency time.Duration,
	success bool,
) (*domain.CostRecord, error) {
	inCost, outCost, total, err := l.pricing.Cost(model, inputTokens, outputTokens)
	if err != nil {
		return nil, err
	}

	record := &domain.CostRecord{
		RequestID:    uuid.New().String(),
		Timestamp:    time.Now().UTC(),
		Model:        model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		InputCost:    inCost,
		OutputCost:   outCost,
		TotalCost:    total,
		Latency:      latency,
		Success:      success,
	}

	l.mu.Lock()
	l.fold(record)
	l.mu.Unlock()

	if l.sink != nil {
		if err := l.sink.Append(ctx, record); err != nil {
			return record, fmt.Errorf("append cost record: %w", err)
		}
	}

	return record, nil
}

// fold applies one record to the running aggregates. Caller holds mu.
func (l *Ledger) fold(r *domain.CostRecord) {
	l.totalRequests++
	if !r.Success {
		l.failed++
	}
	l.totalTokens += r.TotalTokens()
	l.totalCost = l.totalCost.Add(r.TotalCost)
	l.totalLatency += r.Latency

	if l.totalRequests == 1 || r.Latency < l.minLatency {
		l.minLatency = r.Latency
	}
	if r.Latency > l.maxLatency {
		l.maxLatency = r.Latency
	}

	l.latencies[l.latNext] = r.Latency
	l.latNext = (l.latNext + 1) % latencyWindow
	if l.latCount < latencyWindow {
		l.latCount++
	}

	agg, ok := l.byModel[r.Model]
	if !ok {
		agg = &modelAgg{cost: decimal.Zero}
		l.byModel[r.Model] = agg
	}
	agg.requests++
	agg.cost = agg.cost.Add(r.TotalCost)
	agg.tokens += r.TotalTokens()
	agg.totalLatency += r.Latency
}

// Stats returns a snapshot of the running aggregates. The snapshot is
// assembled from accumulators; recorded history is never rescanned.
func (l *Ledger) Stats() domain.UsageStats {
	l.mu.Lock()
	defer l.mu.Unlock()

	stats := domain.UsageStats{
		TotalRequests:  l.totalRequests,
		FailedRequests: l.failed,
		TotalCost:      l.totalCost,
		TotalTokens:    l.totalTokens,
		MinLatency:     l.minLatency,
		MaxLatency:     l.maxLatency,
		P95Latency:     l.p95(),
		ByModel:        make(map[string]domain.ModelStats, len(l.byModel)),
	}

	if l.totalRequests > 0 {
		stats.AvgLatency = l.totalLatency / time.Duration(l.totalRequests)
		stats.ErrorRate = float64(l.failed) / float64(l.totalRequests)
	}

	for model, agg := range l.byModel {
		ms := domain.ModelStats{
			Requests: agg.requests,
			Cost:     agg.cost,
			Tokens:   agg.tokens,
		}
		if agg.requests > 0 {
			ms.AvgLatency = agg.totalLatency / time.Duration(agg.requests)
		}
		stats.ByModel[model] = ms
	}

	return stats
}

// p95 estimates the 95th percentile over the latency window.
// Caller holds mu.
func (l *Ledger) p95() time.Duration {
	if l.latCount == 0 {
		return 0
	}
	window := make([]time.Duration, l.latCount)
	copy(window, l.latencies[:l.latCount])
	sort.Slice(window, func(i, j int) bool { return window[i] < window[j] })

	idx := l.latCount * 95 / 100
	if idx >= l.latCount {
		idx = l.latCount - 1
	}
	return window[idx]
}

// Pricing returns the ledger's pricing table.
func (l *Ledger) Pricing() PricingTable {
	return l.pricing
}

// Close flushes the sink. The ledger itself holds no pending state:
// aggregates are folded at record time.
func (l *Ledger) Close() error {
	if l.sink == nil {
		return nil
	}
	return l.sink.Close()
}
