package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/copilot-core/internal/adapters/driven/costlog"
	"github.com/custodia-labs/copilot-core/internal/core/domain"
	"github.com/custodia-labs/copilot-core/internal/costs"
)

var (
	statsJSON    bool
	statsLogPath string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show usage and cost statistics for this session",
	Long: `Shows usage and cost statistics for the current session. With --log,
analyses a persisted JSONL cost log instead and reports per-model totals.`,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output as JSON")
	statsCmd.Flags().StringVar(&statsLogPath, "log", "", "analyse a persisted cost log file instead of session stats")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	if statsLogPath != "" {
		return runLogStats(cmd, statsLogPath)
	}

	if statsService == nil {
		return errors.New("stats service not configured")
	}

	stats := statsService.Stats()

	if statsJSON {
		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal stats: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if stats.TotalRequests == 0 {
		cmd.Println("No requests recorded yet.")
		return nil
	}

	cmd.Printf("Requests:    %d (%d failed, %.1f%% error rate)\n",
		stats.TotalRequests, stats.FailedRequests, stats.ErrorRate*100)
	cmd.Printf("Tokens:      %d\n", stats.TotalTokens)
	cmd.Printf("Total cost:  $%s\n", stats.TotalCost.String())
	cmd.Printf("Latency:     avg %s, min %s, max %s, p95 %s\n",
		stats.AvgLatency.Round(time.Millisecond),
		stats.MinLatency.Round(time.Millisecond),
		stats.MaxLatency.Round(time.Millisecond),
		stats.P95Latency.Round(time.Millisecond))

	if len(stats.ByModel) > 0 {
		cmd.Println("\nBy model:")
		printModelBreakdown(cmd, stats.ByModel)
	}
	return nil
}

// runLogStats folds a persisted cost log into per-model totals.
func runLogStats(cmd *cobra.Command, path string) error {
	records, err := costlog.ReadRecords(path)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		cmd.Println("Cost log is empty.")
		return nil
	}

	byModel := costs.Summarize(records)

	if statsJSON {
		data, err := json.MarshalIndent(byModel, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal log stats: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("Records:     %d\n\nBy model:\n", len(records))
	printModelBreakdown(cmd, byModel)
	return nil
}

func printModelBreakdown(cmd *cobra.Command, byModel map[string]domain.ModelStats) {
	models := make([]string, 0, len(byModel))
	for model := range byModel {
		models = append(models, model)
	}
	sort.Strings(models)
	for _, model := range models {
		m := byModel[model]
		cmd.Printf("  %-24s %4d requests  $%-10s %d tokens  avg %s\n",
			model, m.Requests, m.Cost.String(), m.Tokens,
			m.AvgLatency.Round(time.Millisecond))
	}
}
