package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dhcgn/maildir-import/pack"
	"github.com/dhcgn/maildir-import/progress"
	"github.com/dhcgn/maildir-import/stats"
)

// NewPackCommand returns the command that packs the month buckets of an
// imported tree into packed/<bucket>.tar.xz.
func NewPackCommand() *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "pack <dest>",
		Short: "Pack each month bucket into a compressed tar archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.Default()

			p, err := pack.New(args[0], logger)
			if err != nil {
				return err
			}
			reporter := stats.NewReporter(p, logger)

			if !quiet {
				total, err := p.Count()
				if err != nil {
					return err
				}
				p.SubscribeStats("progress-bar", progress.New("Packing", total, true))
			}

			if err := p.Run(cmd.Context()); err != nil {
				return fmt.Errorf("pack %s: %w", args[0], err)
			}

			summary := reporter.Summary()
			if summary.Mismatched > 0 {
				logger.Warn("messages left in place", "count", summary.Mismatched)
			}
			if !quiet {
				fmt.Fprintf(cmd.OutOrStdout(), "%d messages archived, %d already archived, %d left in place\n",
					summary.Archived, summary.Verified, summary.Mismatched)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress progress output")

	return cmd
}
