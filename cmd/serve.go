// File: cmd/serve.go
package cmd

import (
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/couchwatch/couchwatch/internal/observability"
	"github.com/couchwatch/couchwatch/internal/server"
)

// newServeCmd creates and configures the `serve` command.
func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Runs the HTTP trigger surface and the scheduled batch",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := viper.BindPFlag("server.listen", cmd.Flags().Lookup("listen")); err != nil {
				return err
			}
			return viper.BindPFlag("server.batch_interval", cmd.Flags().Lookup("batch-interval"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			cfg.Server.Listen = viper.GetString("server.listen")
			cfg.Server.BatchInterval = viper.GetDuration("server.batch_interval")

			components, err := initializeComponents(ctx, cfg, logger)
			if err != nil {
				if components != nil {
					components.Shutdown()
				}
				return err
			}
			defer components.Shutdown()

			srv := server.New(
				cfg.Server,
				components.Runner,
				components.Batch,
				components.Registry,
				components.Store,
				components.Store,
				cfg.EnabledPlatforms(),
				logger,
			)
			return srv.Run(ctx)
		},
	}

	serveCmd.Flags().String("listen", ":8080", "Address for the HTTP server. (Overrides config/env)")
	serveCmd.Flags().Duration("batch-interval", time.Hour, "Interval between scheduled batches; 0 disables the schedule. (Overrides config/env)")
	return serveCmd
}

func init() {
	rootCmd.AddCommand(newServeCmd())
}
