package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CostRecord is an append-only accounting entry for one request.
// Monetary amounts use decimals so aggregates never accumulate
// floating-point drift.
type CostRecord struct {
	// RequestID is the unique identifier for the request.
	RequestID string

	// Timestamp is when the request completed.
	Timestamp time.Time

	// Model is the model name the request was billed against.
	Model string

	// InputTokens and OutputTokens are the metered token counts.
	InputTokens  int
	OutputTokens int

	// InputCost, OutputCost and TotalCost are the computed amounts in USD.
	InputCost  decimal.Decimal
	OutputCost decimal.Decimal
	TotalCost  decimal.Decimal

	// Latency is the wall-clock duration of the request.
	Latency time.Duration

	// Success is false for failed or cancelled requests. Cancelled
	// streaming requests still record the tokens produced so far.
	Success bool
}

// TotalTokens returns the combined input and output token count.
func (r *CostRecord) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// UsageStats is a snapshot of the cost ledger's running aggregates.
// Every field is maintained incrementally; producing a snapshot never
// rescans recorded history.
type UsageStats struct {
	// TotalRequests counts all recorded requests.
	TotalRequests int

	// FailedRequests counts requests recorded with Success == false.
	FailedRequests int

	// TotalCost is the summed cost of all requests in USD.
	TotalCost decimal.Decimal

	// TotalTokens is the summed token count of all requests.
	TotalTokens int

	// AvgLatency is the mean request latency.
	AvgLatency time.Duration

	// MinLatency and MaxLatency bound the observed latencies.
	MinLatency time.Duration
	MaxLatency time.Duration

	// P95Latency approximates the 95th percentile latency over the most
	// recent requests.
	P95Latency time.Duration

	// ErrorRate is FailedRequests / TotalRequests, 0 when empty.
	ErrorRate float64

	// ByModel breaks aggregates down per model name.
	ByModel map[string]ModelStats
}

// ModelStats holds per-model running aggregates.
type ModelStats struct {
	// Requests counts requests billed against the model.
	Requests int

	// Cost is the summed cost in USD.
	Cost decimal.Decimal

	// Tokens is the summed token count.
	Tokens int

	// AvgLatency is the mean request latency for the model.
	AvgLatency time.Duration
}
