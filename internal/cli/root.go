// Package cli implements the veritasctl command line tool.
package cli

import (
	"os"

	"github.com/RishiKendai/veritas/internal/configs/env"
	"github.com/RishiKendai/veritas/internal/logger"
	"github.com/spf13/cobra"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:          "veritasctl",
	Short:        "veritasctl checks documents for plagiarism and feeds the Veritas corpus",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.Init(logLevel, "console")
		return env.LoadEnv()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newIngestCmd())
}
