package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/merchantops/merchantops/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:           "merchantops",
	Short:         "Merchant, business profile and connector account administration.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		structured := commandUsesStructuredLogging(cmd)
		setCommandExecutionContext(commandExecutionContext{
			CommandPath:       cmd.CommandPath(),
			UsesStructuredLog: structured,
		})
		if !structured {
			return nil
		}
		_, err := logging.BootstrapFromEnv(logging.BootstrapOptions{
			Command: cmd.CommandPath(),
			Writer:  os.Stderr,
		})
		return err
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, kvCmd, connectorsCmd, keysCmd)
}
