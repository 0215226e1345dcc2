// File: cmd/scrape.go
package cmd

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/couchwatch/couchwatch/api/schemas"
	"github.com/couchwatch/couchwatch/internal/observability"
)

// newScrapeCmd creates and configures the `scrape` command.
func newScrapeCmd() *cobra.Command {
	scrapeCmd := &cobra.Command{
		Use:   "scrape <platform>",
		Short: "Scrapes the continue-watching rail of a single platform",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			// Bind flags so command-line values override config file and env.
			return viper.BindPFlag("scrape.profile_name", cmd.Flags().Lookup("profile"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			platform, err := schemas.ParsePlatform(args[0])
			if err != nil {
				return err
			}
			cfg.Scrape.ProfileName = viper.GetString("scrape.profile_name")

			components, err := initializeComponents(ctx, cfg, logger)
			if err != nil {
				if components != nil {
					components.Shutdown()
				}
				return err
			}
			defer components.Shutdown()

			adapter, err := components.Registry.Resolve(platform)
			if err != nil {
				return err
			}

			result, err := components.Runner.Run(ctx, adapter)
			if err != nil {
				logger.Error("Scrape failed", zap.String("platform", platform.String()), zap.Error(err))
				return err
			}

			if err := components.Store.SaveResumeData(ctx, platform, result.Data); err != nil {
				return err
			}

			enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(result.Data); err != nil {
				return fmt.Errorf("failed to print result: %w", err)
			}
			return nil
		},
	}

	scrapeCmd.Flags().String("profile", "", "Profile name to select on platforms with a profiles gate. (Overrides config/env)")
	return scrapeCmd
}

func init() {
	rootCmd.AddCommand(newScrapeCmd())
}
