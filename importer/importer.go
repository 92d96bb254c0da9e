// Package importer copies a tree of message files into a destination tree
// bucketed by send month, naming each copy after a hash of its source path.
package importer

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/creachadair/atomicfile"
	"github.com/emersion/go-message/textproto"

	"github.com/dhcgn/maildir-import/maildate"
	"github.com/dhcgn/maildir-import/model"
	"github.com/dhcgn/maildir-import/stats"
)

const (
	dirMode  = 0o755
	fileMode = 0o644

	envelopePrefix = "From "
)

// ErrNoTimestamp wraps every reason a message yields no send date.
var ErrNoTimestamp = errors.New("message has no usable date")

type Options struct {
	SourceDir string
	DestDir   string
	DryRun    bool
}

// EventSink receives progress events. It is called synchronously.
type EventSink func(stats.Event)

type Importer struct {
	opts   Options
	logger *slog.Logger
	sink   EventSink
}

func New(opts Options, logger *slog.Logger, sink EventSink) (*Importer, error) {
	opts.SourceDir = strings.TrimSpace(opts.SourceDir)
	opts.DestDir = strings.TrimSpace(opts.DestDir)
	if opts.SourceDir == "" {
		return nil, fmt.Errorf("source directory is empty")
	}
	if opts.DestDir == "" {
		return nil, fmt.Errorf("destination directory is empty")
	}

	info, err := os.Stat(opts.SourceDir)
	if err != nil {
		return nil, fmt.Errorf("stat source: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source %s is not a directory", opts.SourceDir)
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if sink == nil {
		sink = func(stats.Event) {}
	}

	return &Importer{opts: opts, logger: logger, sink: sink}, nil
}

// Run imports the whole source tree. The first I/O failure aborts the run;
// files copied before it stay in place.
func (i *Importer) Run(ctx context.Context) error {
	if !i.opts.DryRun {
		if err := os.MkdirAll(i.opts.DestDir, dirMode); err != nil {
			return fmt.Errorf("create destination: %w", err)
		}
	}

	return Walk(ctx, i.opts.SourceDir, Visitor{
		File: i.importFile,
		Hidden: func(rel string) {
			i.logger.Debug("skipping hidden entry", "path", rel)
			i.sink(stats.Event{Type: stats.EventTypeHidden, Path: rel})
		},
	})
}

// Count returns the number of files Run would copy.
func (i *Importer) Count(ctx context.Context) (int, error) {
	count := 0
	err := Walk(ctx, i.opts.SourceDir, Visitor{File: func(File) error {
		count++
		return nil
	}})
	return count, err
}

func (i *Importer) importFile(f File) error {
	i.sink(stats.Event{Type: stats.EventTypeScanned, Path: f.RelPath})

	p := Place(f)
	if !p.Dated {
		i.logger.Debug("no usable date, using unknown bucket", "path", f.RelPath)
		i.sink(stats.Event{Type: stats.EventTypeUndated, Path: f.RelPath, Bucket: p.Bucket})
	}

	target := p.Target(i.opts.DestDir)
	if i.opts.DryRun {
		i.logger.Debug("would copy message", "path", f.RelPath, "target", target)
		i.sink(stats.Event{Type: stats.EventTypeDryRunCopied, Path: f.RelPath, Bucket: p.Bucket})
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(target), dirMode); err != nil {
		err = fmt.Errorf("create bucket %s: %w", p.Bucket, err)
		i.sink(stats.Event{Type: stats.EventTypeError, Path: f.RelPath, Err: err})
		return err
	}

	written, err := copyFile(p.Source, target)
	if err != nil {
		err = fmt.Errorf("copy %s: %w", f.RelPath, err)
		i.sink(stats.Event{Type: stats.EventTypeError, Path: f.RelPath, Err: err})
		return err
	}

	i.logger.Debug("copied message", "path", f.RelPath, "bucket", p.Bucket, "name", p.Name, "bytes", written)
	i.sink(stats.Event{Type: stats.EventTypeCopied, Path: f.RelPath, Bucket: p.Bucket, Written: written})
	return nil
}

// Place decides the bucket and file name of f.
func Place(f File) model.Placement {
	bucket, dated := Classify(f.Path)
	return model.Placement{
		Source:  f.Path,
		RelPath: f.RelPath,
		Bucket:  bucket,
		Name:    DeriveFilename(f.RelPath),
		Dated:   dated,
	}
}

// Classify returns the year-month bucket of the message at path, or
// maildate.Unknown when it has no usable date.
func Classify(path string) (bucket string, dated bool) {
	ts, err := DetermineTimestamp(path)
	if err != nil {
		return maildate.Unknown, false
	}
	return maildate.Bucket(ts), true
}

// DetermineTimestamp reads the Date header of the message at path. Failing to
// open the file counts as a missing date here; the copy step reports it.
func DetermineTimestamp(path string) (time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrNoTimestamp, err)
	}
	defer f.Close()

	header, err := readHeader(bufio.NewReader(f))
	value := header.Get("Date")
	if value == "" {
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: read header: %v", ErrNoTimestamp, err)
		}
		return time.Time{}, fmt.Errorf("%w: no Date header", ErrNoTimestamp)
	}

	ts, err := maildate.Parse(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrNoTimestamp, err)
	}
	return ts, nil
}

// readHeader reads the header section leniently. A leading mbox envelope
// line is skipped, and the section ends at the first line that is not a
// header field; the fields before it are kept.
func readHeader(r *bufio.Reader) (textproto.Header, error) {
	if prefix, err := r.Peek(len(envelopePrefix)); err == nil && string(prefix) == envelopePrefix {
		if _, err := r.ReadString('\n'); err != nil {
			return textproto.Header{}, err
		}
	}
	return textproto.ReadHeader(r)
}

// DeriveFilename maps a slash-separated relative path to its destination
// name: the unpadded base64url SHA-256 of the path bytes.
func DeriveFilename(rel string) string {
	sum := sha256.Sum256([]byte(filepath.ToSlash(rel)))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// copyFile replaces dst with the contents of src. The new file only appears
// under its name once fully written.
func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := atomicfile.New(dst, fileMode)
	if err != nil {
		return 0, err
	}

	written, err := io.Copy(out, in)
	if err != nil {
		out.Cancel()
		return written, err
	}
	if err := out.Close(); err != nil {
		return written, err
	}
	return written, nil
}
