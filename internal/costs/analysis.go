package costs

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/custodia-labs/copilot-core/internal/core/domain"
)

// Summarize folds a slice of persisted cost records into per-model
// totals. It works on records read back from any sink, so historic
// logs can be analysed offline without a live ledger.
func Summarize(records []domain.CostRecord) map[string]domain.ModelStats {
	type agg struct {
		requests     int
		cost         decimal.Decimal
		tokens       int
		totalLatency time.Duration
	}

	byModel := make(map[string]*agg)
	for i := range records {
		r := &records[i]
		a, ok := byModel[r.Model]
		if !ok {
			a = &agg{cost: decimal.Zero}
			byModel[r.Model] = a
		}
		a.requests++
		a.cost = a.cost.Add(r.TotalCost)
		a.tokens += r.TotalTokens()
		a.totalLatency += r.Latency
	}

	out := make(map[string]domain.ModelStats, len(byModel))
	for model, a := range byModel {
		ms := domain.ModelStats{
			Requests: a.requests,
			Cost:     a.cost,
			Tokens:   a.tokens,
		}
		if a.requests > 0 {
			ms.AvgLatency = a.totalLatency / time.Duration(a.requests)
		}
		out[model] = ms
	}
	return out
}
