// Package mbox bursts an mbox archive into one file per message, producing a
// source tree the importer can walk.
package mbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/creachadair/atomicfile"
	mboxlib "github.com/emersion/go-mbox"

	"github.com/dhcgn/maildir-import/filter"
)

type Options struct {
	Path   string
	Filter filter.Options
}

// SplitResult summarises a Split call.
type SplitResult struct {
	Written int
	Skipped int
	Hits    map[string]int
}

// MessageName is the file name of the index-th message (1-based) in the
// output directory.
func MessageName(index int) string {
	return fmt.Sprintf("%06d.eml", index)
}

// Split writes every message of the archive accepted by the filter to
// outDir. Files are numbered by position in the archive, so filtered
// messages leave gaps and repeated runs overwrite the same names.
func Split(ctx context.Context, opts Options, outDir string, logger *slog.Logger) (SplitResult, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	path := strings.TrimSpace(opts.Path)
	if path == "" {
		return SplitResult{}, fmt.Errorf("mbox path is empty")
	}
	f, err := filter.New(opts.Filter)
	if err != nil {
		return SplitResult{}, err
	}

	file, err := os.Open(path)
	if err != nil {
		return SplitResult{}, fmt.Errorf("open mbox: %w", err)
	}
	defer file.Close()

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return SplitResult{}, fmt.Errorf("create output directory: %w", err)
	}

	var result SplitResult
	reader := mboxlib.NewReader(file)
	for idx := 1; ; idx++ {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		msgReader, err := reader.NextMessage()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return result, fmt.Errorf("message %d: %w", idx, err)
		}

		raw, err := io.ReadAll(msgReader)
		if err != nil {
			return result, fmt.Errorf("message %d read: %w", idx, err)
		}

		if !f.AllowsMessage(raw) {
			result.Skipped++
			logger.Debug("message filtered out", "index", idx)
			continue
		}

		target := filepath.Join(outDir, MessageName(idx))
		if err := atomicfile.WriteData(target, raw, 0o644); err != nil {
			return result, fmt.Errorf("message %d write: %w", idx, err)
		}
		result.Written++
		logger.Debug("message written", "index", idx, "path", target, "bytes", len(raw))
	}

	result.Hits = f.Hits()
	return result, nil
}

// CountMessages counts the total number of messages in an mbox file.
func CountMessages(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open mbox: %w", err)
	}
	defer file.Close()

	reader := mboxlib.NewReader(file)
	count := 0
	for {
		msgReader, err := reader.NextMessage()
		if errors.Is(err, io.EOF) {
			return count, nil
		}
		if err != nil {
			return count, err
		}

		// A message that fails mid-read still counts.
		_, _ = io.Copy(io.Discard, msgReader)
		count++
	}
}
