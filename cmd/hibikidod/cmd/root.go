// Package cmd provides the CLI commands for hibikidod.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jpdrecourt/hibikido-go/pkg/version"
)

var (
	configPath string
	logLevel   string
)

// NewRootCmd creates the root command for the hibikidod CLI. Running it
// with no subcommand starts the daemon, matching spec.md §6's CLI
// ("serve is the default action").
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "hibikidod",
		Short:   "Hibikidō semantic sound invocation daemon",
		Long:    `hibikidod listens for /invoke and ingest commands over its control transport and manifests matching sounds as admission allows.`,
		Version: version.Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd)
		},
	}
	cmd.SetVersionTemplate("hibikidod version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (defaults applied if omitted)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (overrides config)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newDumpLogCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
