// File: cmd/creds.go
package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/couchwatch/couchwatch/api/schemas"
	"github.com/couchwatch/couchwatch/internal/observability"
)

// newCredsCmd creates the `creds` command group for managing stored logins.
func newCredsCmd() *cobra.Command {
	credsCmd := &cobra.Command{
		Use:   "creds",
		Short: "Manages stored platform credentials",
	}
	credsCmd.AddCommand(newCredsSetCmd())
	credsCmd.AddCommand(newCredsShowCmd())
	return credsCmd
}

func newCredsSetCmd() *cobra.Command {
	setCmd := &cobra.Command{
		Use:   "set <platform>",
		Short: "Stores login credentials for a platform, encrypted at rest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			platform, err := schemas.ParsePlatform(args[0])
			if err != nil {
				return err
			}

			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			if email == "" {
				return fmt.Errorf("--email is required")
			}
			if password == "" {
				// Read from stdin so the password stays out of shell history.
				fmt.Fprint(os.Stderr, "Password: ")
				line, err := bufio.NewReader(os.Stdin).ReadString('\n')
				if err != nil {
					return fmt.Errorf("failed to read password: %w", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}
			if password == "" {
				return fmt.Errorf("password must not be empty")
			}

			components, err := initializeComponents(ctx, cfg, logger)
			if err != nil {
				if components != nil {
					components.Shutdown()
				}
				return err
			}
			defer components.Shutdown()

			if err := components.Store.SaveCredentials(ctx, platform, email, password); err != nil {
				return err
			}
			logger.Info("Credentials stored", zap.String("platform", platform.String()))
			return nil
		},
	}

	setCmd.Flags().String("email", "", "Account email for the platform.")
	setCmd.Flags().String("password", "", "Account password; prompted on stdin when omitted.")
	return setCmd
}

func newCredsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <platform>",
		Short: "Shows the stored account email for a platform",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			platform, err := schemas.ParsePlatform(args[0])
			if err != nil {
				return err
			}

			components, err := initializeComponents(ctx, cfg, logger)
			if err != nil {
				if components != nil {
					components.Shutdown()
				}
				return err
			}
			defer components.Shutdown()

			creds, err := components.Store.LoadCredentials(ctx, platform)
			if err != nil {
				return err
			}
			if creds == nil {
				return fmt.Errorf("no credentials stored for %s", platform)
			}
			// The password never leaves the database unmasked here.
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", platform, creds.Email)
			return nil
		},
	}
}

func init() {
	rootCmd.AddCommand(newCredsCmd())
}
