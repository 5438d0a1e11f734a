package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpdrecourt/hibikido-go/internal/config"
	"github.com/jpdrecourt/hibikido-go/internal/docstore"
)

// newDumpLogCmd prints the invocation log (spec.md §3's "peripheral to
// the core" performance log): one header line per performance session,
// followed by one indented line per logged invocation. It is a debug aid,
// not part of the control protocol.
func newDumpLogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump-log",
		Short: "Print the recorded invocation log",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			store, err := docstore.Open(cfg.MongoDB.URI)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer store.Close()

			ids, err := store.ListPerformances()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, id := range ids {
				perf, err := store.GetPerformance(id)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s  %s\n", perf.ID, perf.Date.Format("2006-01-02T15:04:05Z07:00"))
				for _, inv := range perf.Invocations {
					fmt.Fprintf(out, "  %-40q -> segment=%s\n", inv.RawText, inv.MatchedSegmentID)
				}
			}
			return nil
		},
	}
}
