package costs

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/copilot-core/internal/core/domain"
)

func TestSummarize_FoldsPerModel(t *testing.T) {
	records := []domain.CostRecord{
		{Model: "claude-sonnet-4", InputTokens: 1000, OutputTokens: 500,
			TotalCost: decimal.RequireFromString("0.0105"), Latency: time.Second, Success: true},
		{Model: "claude-sonnet-4", InputTokens: 2000, OutputTokens: 1000,
			TotalCost: decimal.RequireFromString("0.021"), Latency: 3 * time.Second, Success: true},
		{Model: "gpt-4", InputTokens: 100, OutputTokens: 50,
			TotalCost: decimal.RequireFromString("0.006"), Latency: 2 * time.Second, Success: false},
	}

	byModel := Summarize(records)
	require.Len(t, byModel, 2)

	sonnet := byModel["claude-sonnet-4"]
	assert.Equal(t, 2, sonnet.Requests)
	assert.Equal(t, 4500, sonnet.Tokens)
	assert.True(t, sonnet.Cost.Equal(decimal.RequireFromString("0.0315")),
		"got %s", sonnet.Cost)
	assert.Equal(t, 2*time.Second, sonnet.AvgLatency)

	gpt := byModel["gpt-4"]
	assert.Equal(t, 1, gpt.Requests)
	assert.Equal(t, 150, gpt.Tokens)
	assert.True(t, gpt.Cost.Equal(decimal.RequireFromString("0.006")))
}

func TestSummarize_Empty(t *testing.T) {
	assert.Empty(t, Summarize(nil))
}
