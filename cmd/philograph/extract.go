package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agenthands/philograph/internal/app"
)

func newExtractCmd(st *cliState) *cobra.Command {
	var documentID string

	cmd := &cobra.Command{
		Use:   "extract <file>",
		Short: "Extract a knowledge graph from a text file",
		Long: `Extract entities and relationships from a plain text file and persist them
to the configured repository. The extraction summary is printed as JSON.

The command exits non-zero when the summary reports errors.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
			if documentID == "" {
				documentID = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}

			ctx := cmd.Context()
			a, err := app.New(ctx, st.cfg, st.logger)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			result := a.Knowledge.ExtractKnowledgeGraph(ctx, string(text), documentID, a.ExtractOptions())

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(result.Summary()); err != nil {
				return err
			}
			if !result.Success() {
				return fmt.Errorf("extraction finished with %d errors", len(result.Errors))
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&documentID, "document-id", "", "document id (defaults to the file name without extension)")
	flags.Int("chunk-size", 0, "split the text into chunks of this many bytes (0 disables chunking)")
	flags.Float64("min-confidence", 0.6, "minimum triple confidence")
	flags.Bool("batching", true, "persist entities and triples with batch repository calls")
	_ = st.viper.BindPFlag("extraction.chunk_size", flags.Lookup("chunk-size"))
	_ = st.viper.BindPFlag("extraction.min_confidence", flags.Lookup("min-confidence"))
	_ = st.viper.BindPFlag("extraction.enable_batching", flags.Lookup("batching"))
	return cmd
}
