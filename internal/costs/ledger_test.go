package costs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/copilot-core/internal/core/domain"
)

func TestPricingTable_Cost(t *testing.T) {
	table := DefaultPricing()

	in, out, total, err := table.Cost("claude-sonnet-4", 2000, 500)
	require.NoError(t, err)

	assert.True(t, in.Equal(decimal.RequireFromString("0.006")), "input cost %s", in)
	assert.True(t, out.Equal(decimal.RequireFromString("0.0075")), "output cost %s", out)
	assert.True(t, total.Equal(decimal.RequireFromString("0.0135")), "total cost %s", total)
}

func TestPricingTable_UnknownModel(t *testing.T) {
	table := DefaultPricing()

	_, _, _, err := table.Cost("mystery-model", 100, 100)
	assert.ErrorIs(t, err, domain.ErrPricingUnavailable)
}

func TestLedger_Record(t *testing.T) {
	ledger := NewLedger(nil)

	record, err := ledger.Record(context.Background(), "claude-sonnet-4", 2000, 500, 1200*time.Millisecond, true)
	require.NoError(t, err)

	assert.NotEmpty(t, record.RequestID)
	assert.Equal(t, 2500, record.TotalTokens())
	assert.True(t, record.TotalCost.Equal(decimal.RequireFromString("0.0135")))
	assert.True(t, record.Success)
}

func TestLedger_RecordUnknownModel(t *testing.T) {
	ledger := NewLedger(nil)

	_, err := ledger.Record(context.Background(), "mystery-model", 100, 100, time.Second, true)
	assert.ErrorIs(t, err, domain.ErrPricingUnavailable)

	// Failed records must not touch the aggregates.
	assert.Equal(t, 0, ledger.Stats().TotalRequests)
}

func TestLedger_Aggregation(t *testing.T) {
	ledger := NewLedger(nil)
	ctx := context.Background()

	_, err := ledger.Record(ctx, "claude-sonnet-4", 2000, 500, time.Second, true)
	require.NoError(t, err)
	_, err = ledger.Record(ctx, "claude-sonnet-4", 1000, 200, 3*time.Second, true)
	require.NoError(t, err)

	stats := ledger.Stats()
	assert.Equal(t, 2, stats.TotalRequests)
	assert.True(t, stats.TotalCost.Equal(decimal.RequireFromString("0.0195")), "total cost %s", stats.TotalCost)
	assert.Equal(t, 3700, stats.TotalTokens)
	assert.Equal(t, 2*time.Second, stats.AvgLatency)
	assert.Equal(t, time.Second, stats.MinLatency)
	assert.Equal(t, 3*time.Second, stats.MaxLatency)
	assert.Zero(t, stats.ErrorRate)
}

func TestLedger_ErrorRate(t *testing.T) {
	ledger := NewLedger(nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := ledger.Record(ctx, "gpt-4", 100, 100, time.Second, true)
		require.NoError(t, err)
	}
	_, err := ledger.Record(ctx, "gpt-4", 100, 0, time.Second, false)
	require.NoError(t, err)

	stats := ledger.Stats()
	assert.Equal(t, 4, stats.TotalRequests)
	assert.Equal(t, 1, stats.FailedRequests)
	assert.InDelta(t, 0.25, stats.ErrorRate, 1e-9)
}

func TestLedger_PerModelBreakdown(t *testing.T) {
	ledger := NewLedger(nil)
	ctx := context.Background()

	_, err := ledger.Record(ctx, "claude-sonnet-4", 1000, 0, time.Second, true)
	require.NoError(t, err)
	_, err = ledger.Record(ctx, "claude-opus-4", 1000, 0, 2*time.Second, true)
	require.NoError(t, err)

	stats := ledger.Stats()
	require.Len(t, stats.ByModel, 2)

	sonnet := stats.ByModel["claude-sonnet-4"]
	assert.Equal(t, 1, sonnet.Requests)
	assert.True(t, sonnet.Cost.Equal(decimal.RequireFromString("0.003")))

	opus := stats.ByModel["claude-opus-4"]
	assert.True(t, opus.Cost.Equal(decimal.RequireFromString("0.015")))
}

func TestLedger_P95Latency(t *testing.T) {
	ledger := NewLedger(nil)
	ctx := context.Background()

	for i := 1; i <= 100; i++ {
		_, err := ledger.Record(ctx, "gpt-4", 10, 10, time.Duration(i)*time.Millisecond, true)
		require.NoError(t, err)
	}

	stats := ledger.Stats()
	assert.Equal(t, 96*time.Millisecond, stats.P95Latency)
}

// failingSink always errors on append.
type failingSink struct{}

func (failingSink) Append(_ context.Context, _ *domain.CostRecord) error {
	return errors.New("disk full")
}

func (failingSink) Close() error { return nil }

func TestLedger_SinkFailureStillReturnsRecord(t *testing.T) {
	ledger := NewLedger(nil, WithSink(failingSink{}))

	record, err := ledger.Record(context.Background(), "gpt-4", 100, 100, time.Second, true)
	assert.Error(t, err)
	assert.NotNil(t, record, "record is still produced when the sink fails")
	assert.Equal(t, 1, ledger.Stats().TotalRequests)
}

// captureSink remembers appended records.
type captureSink struct {
	records []*domain.CostRecord
	closed  bool
}

func (s *captureSink) Append(_ context.Context, r *domain.CostRecord) error {
	s.records = append(s.records, r)
	return nil
}

func (s *captureSink) Close() error {
	s.closed = true
	return nil
}

func TestLedger_SinkAndClose(t *testing.T) {
	sink := &captureSink{}
	ledger := NewLedger(nil, WithSink(sink))

	_, err := ledger.Record(context.Background(), "gpt-4", 100, 100, time.Second, true)
	require.NoError(t, err)

	require.Len(t, sink.records, 1)
	require.NoError(t, ledger.Close())
	assert.True(t, sink.closed)
}
