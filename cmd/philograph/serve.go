package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agenthands/philograph/internal/app"
	"github.com/agenthands/philograph/internal/server"
)

func newServeCmd(st *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := app.New(ctx, st.cfg, st.logger)
			if err != nil {
				return err
			}
			defer a.Close(context.Background())

			srv := server.NewServer(a.Knowledge, a.Validation, a.ExtractOptions(), st.logger)
			return srv.Run(ctx, ":"+st.cfg.Server.Port)
		},
	}
	cmd.Flags().String("port", "8080", "listen port")
	_ = st.viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	return cmd
}
