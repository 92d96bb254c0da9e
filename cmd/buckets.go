package cmd

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dhcgn/maildir-import/importer"
	"github.com/dhcgn/maildir-import/stats"
)

const bucketReportName = "report_buckets.csv"

// NewBucketsCommand returns the command that previews how a source tree would
// be distributed over month buckets, without copying anything.
func NewBucketsCommand() *cobra.Command {
	var (
		reportDir string
		topN      int
	)

	cmd := &cobra.Command{
		Use:   "buckets <source>",
		Short: "Count messages per month bucket without importing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			counts, err := importer.Survey(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("survey %s: %w", args[0], err)
			}

			total := 0
			for _, n := range counts {
				total += n
			}

			fmt.Printf("%d messages in %d buckets\n\n", total, len(counts))
			fmt.Printf("Top %d buckets:\n", topN)
			stats.PrettyPrintTop(counts, topN)

			if reportDir == "" {
				return nil
			}
			path, err := saveBucketReport(counts, reportDir)
			if err != nil {
				return fmt.Errorf("error saving CSV report: %w", err)
			}
			fmt.Printf("\nReport saved to: %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&reportDir, "output", "o", ".", "Output directory for the CSV report (empty to skip)")
	cmd.Flags().IntVarP(&topN, "top", "t", 10, "Number of buckets to display")

	return cmd
}

// saveBucketReport writes one row per bucket, largest first.
func saveBucketReport(counts map[string]int, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	path := filepath.Join(dir, bucketReportName)
	file, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"Bucket", "Count"}); err != nil {
		return "", err
	}
	for _, c := range stats.SortedCounts(counts) {
		if err := writer.Write([]string{c.Key, strconv.Itoa(c.Value)}); err != nil {
			return "", err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", err
	}
	return path, file.Close()
}
