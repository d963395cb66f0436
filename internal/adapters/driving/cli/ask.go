package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/copilot-core/internal/core/domain"
)

var (
	askModel    string
	askNoStream bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about your documents",
	Long: `Retrieves the most relevant chunks, routes by confidence and
generates an answer with citations. Low-confidence retrievals produce a
clarifying question instead of a guessed answer.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askModel, "model", "", "model override for this question")
	askCmd.Flags().BoolVar(&askNoStream, "no-stream", false, "wait for the full answer instead of streaming")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if answerService == nil {
		return errors.New("answer service not configured")
	}

	ctx := context.Background()
	query := args[0]

	if askNoStream {
		ans, err := answerService.Answer(ctx, query, nil, askModel)
		if err != nil {
			return fmt.Errorf("answer failed: %w", err)
		}
		cmd.Println(ans.Text)
		printAnswerMeta(cmd, ans)
		return nil
	}

	stream, err := answerService.AnswerStream(ctx, query, nil, askModel)
	if err != nil {
		return fmt.Errorf("answer failed: %w", err)
	}
	defer stream.Close()

	for {
		frag, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("stream failed: %w", err)
		}
		cmd.Print(frag)
	}
	cmd.Println()

	printAnswerMeta(cmd, stream.Meta())
	return nil
}

// printAnswerMeta prints the metadata trailer shown after every answer.
func printAnswerMeta(cmd *cobra.Command, ans *domain.Answer) {
	cmd.Println()
	if len(ans.Sources) > 0 {
		cmd.Printf("Sources:    %s\n", strings.Join(ans.Sources, ", "))
	}
	cmd.Printf("Confidence: %.2f (%s)\n", ans.Confidence, ans.Outcome)
	cmd.Printf("Template:   %s\n", ans.TemplateVersion)
	if ans.Cost != nil {
		cmd.Printf("Cost:       $%s (%d tokens, %s)\n",
			ans.Cost.TotalCost.String(), ans.Cost.TotalTokens(), ans.Cost.Latency.Round(time.Millisecond))
	}
}
