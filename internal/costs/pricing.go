package costs

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/custodia-labs/copilot-core/internal/core/domain"
)

// Pricing holds a model's per-1K-token rates in USD.
type Pricing struct {
	// InputPer1K is the cost per 1000 input tokens.
	InputPer1K decimal.Decimal

	// OutputPer1K is the cost per 1000 output tokens.
	OutputPer1K decimal.Decimal
}

// PricingTable maps model names to their rates.
type PricingTable map[string]Pricing

var perThousand = decimal.NewFromInt(1000)

// DefaultPricing returns the built-in rate card. Deployments extend or
// replace entries via configuration.
func DefaultPricing() PricingTable {
	return PricingTable{
		"claude-sonnet-4": {
			InputPer1K:  decimal.RequireFromString("0.003"),
			OutputPer1K: decimal.RequireFromString("0.015"),
		},
		"claude-opus-4": {
			InputPer1K:  decimal.RequireFromString("0.015"),
			OutputPer1K: decimal.RequireFromString("0.075"),
		},
		"gpt-4": {
			InputPer1K:  decimal.RequireFromString("0.03"),
			OutputPer1K: decimal.RequireFromString("0.06"),
		},
		"text-embedding-ada-002": {
			InputPer1K:  decimal.RequireFromString("0.0001"),
			OutputPer1K: decimal.Zero,
		},
	}
}

// Cost computes the input, output and total cost for a request.
// Unknown models fail with domain.ErrPricingUnavailable: a silent zero
// cost would corrupt the ledger's aggregates.
func (t PricingTable) Cost(model string, inputTokens, outputTokens int) (input, output, total decimal.Decimal, err error) {
	p, ok := t[model]
	if !ok {
		return decimal.Zero, decimal.Zero, decimal.Zero,
			fmt.Errorf("%w: %q", domain.ErrPricingUnavailable, model)
	}

	input = p.InputPer1K.Mul(decimal.NewFromInt(int64(inputTokens))).Div(perThousand)
	output = p.OutputPer1K.Mul(decimal.NewFromInt(int64(outputTokens))).Div(perThousand)
	return input, output, input.Add(output), nil
}

// Has reports whether the table prices the given model.
func (t PricingTable) Has(model string) bool {
	_, ok := t[model]
	return ok
}
