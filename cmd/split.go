package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dhcgn/maildir-import/filter"
	"github.com/dhcgn/maildir-import/mbox"
	"github.com/dhcgn/maildir-import/stats"
)

// NewSplitCommand returns the command that bursts an mbox archive into a
// directory of message files ready for import.
func NewSplitCommand() *cobra.Command {
	var opts filter.Options

	cmd := &cobra.Command{
		Use:   "split <mbox> <out-dir>",
		Short: "Burst an mbox archive into one file per message",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.Default()

			total, err := mbox.CountMessages(args[0])
			if err != nil {
				return err
			}
			logger.Info("splitting mbox", "mbox", args[0], "messages", total, "out", args[1], "filtered", opts.Active())

			result, err := mbox.Split(cmd.Context(), mbox.Options{Path: args[0], Filter: opts}, args[1], logger)
			if err != nil {
				return fmt.Errorf("split %s: %w", args[0], err)
			}

			logger.Info("split completed", "written", result.Written, "skipped", result.Skipped)
			for _, c := range stats.SortedCounts(result.Hits) {
				logger.Info("filter pattern", "pattern", c.Key, "hits", c.Value)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVar(&opts.IncludeHeader, "include-header", nil, "Regex allow-list applied to message headers (mutually exclusive with exclude flags)")
	flags.StringArrayVar(&opts.IncludeBody, "include-body", nil, "Regex allow-list applied to message bodies (mutually exclusive with exclude flags)")
	flags.StringArrayVar(&opts.ExcludeHeader, "exclude-header", nil, "Regex block-list applied to message headers (mutually exclusive with include flags)")
	flags.StringArrayVar(&opts.ExcludeBody, "exclude-body", nil, "Regex block-list applied to message bodies (mutually exclusive with include flags)")

	return cmd
}
