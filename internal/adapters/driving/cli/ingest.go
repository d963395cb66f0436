package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file...]",
	Short: "Ingest documents into the index",
	Long: `Reads the given files, extracts their text, splits them into
sentence-aware chunks, embeds the chunks and adds them to the index.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

// mimeByExtension maps file extensions to the extractor MIME types.
var mimeByExtension = map[string]string{
	".txt":  "text/plain",
	".md":   "text/markdown",
	".csv":  "text/csv",
	".yaml": "text/yaml",
	".yml":  "text/yaml",
	".toml": "text/toml",
	".json": "application/json",
	".sh":   "text/x-shellscript",
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errors.New("ingest service not configured")
	}

	ctx := context.Background()
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		mimeType, ok := mimeByExtension[filepath.Ext(path)]
		if !ok {
			mimeType = "text/plain"
		}

		docID, chunks, err := ingestService.IngestFile(ctx, filepath.Base(path), data, mimeType)
		if err != nil {
			return fmt.Errorf("ingest %s: %w", path, err)
		}

		cmd.Printf("Ingested %s: %s (%d chunks)\n", filepath.Base(path), docID, chunks)
	}
	return nil
}
