package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/agenthands/philograph/internal/app"
)

func newValidationsCmd(st *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validations",
		Short: "Inspect the expert validation registry",
	}

	export := &cobra.Command{
		Use:   "export",
		Short: "Print the full validation registry as JSON",
		Long: `Print every validation item, expert assignment, the aggregate statistics and
the active thresholds. Only meaningful with a persistent store
(validation.store = "sqlite").`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := app.New(ctx, st.cfg, st.logger)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			data, err := a.Validation.ExportValidationData(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(data)
		},
	}
	cmd.AddCommand(export)
	return cmd
}
