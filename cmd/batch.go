// File: cmd/batch.go
package cmd

import (
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/couchwatch/couchwatch/api/schemas"
	"github.com/couchwatch/couchwatch/internal/observability"
	"github.com/couchwatch/couchwatch/internal/scrape"
)

// newBatchCmd creates and configures the `batch` command.
func newBatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "batch [platforms...]",
		Short: "Scrapes every enabled platform sequentially",
		Long: `Runs the continue-watching scrape for each listed platform in order,
or for every platform enabled in the configuration when none are listed.
One platform failing does not stop the batch.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			targets := cfg.EnabledPlatforms()
			if len(args) > 0 {
				targets = targets[:0]
				for _, name := range args {
					p, err := schemas.ParsePlatform(name)
					if err != nil {
						return err
					}
					targets = append(targets, p)
				}
			}

			components, err := initializeComponents(ctx, cfg, logger)
			if err != nil {
				if components != nil {
					components.Shutdown()
				}
				return err
			}
			defer components.Shutdown()

			summary, err := components.Batch.RunAll(ctx, targets)
			var batchErr *scrape.BatchError
			if err != nil && !errors.As(err, &batchErr) {
				return err
			}

			logger.Info("Batch finished",
				zap.Int("succeeded", summary.Succeeded),
				zap.Int("failed", summary.Failed),
				zap.Duration("duration", summary.Duration),
			)
			// Partial failure still exits non-zero so schedulers notice.
			return err
		},
	}
}

func init() {
	rootCmd.AddCommand(newBatchCmd())
}
