// Package pack folds the month buckets of an imported tree into one
// xz-compressed tar archive per bucket.
package pack

import (
	"archive/tar"
	"bufio"
	"bytes"
	"context"
	"crypto/sha512"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/creachadair/atomicfile"
	"github.com/ulikunitz/xz"

	"github.com/dhcgn/maildir-import/importer"
	"github.com/dhcgn/maildir-import/maildate"
	"github.com/dhcgn/maildir-import/stats"
)

const (
	// PackedDir is the directory below the root that holds the archives.
	PackedDir = "packed"

	archiveSuffix = ".tar.xz"
	backupSuffix  = ".bak"
	archiveMode   = 0o600
	entryMode     = 0o644
)

// entryTime is the modification time of every archived message.
var entryTime = time.Unix(1153704088, 0)

const mismatchDetail = "content differs from archived copy"

// Bucket is one month directory waiting to be packed.
type Bucket struct {
	Name  string
	Dir   string
	Files []string
}

type subscription struct {
	name string
	sub  stats.Subscriber
}

// Packer packs the buckets below a root directory. Everything happens on the
// calling goroutine.
type Packer struct {
	root      string
	packedDir string
	logger    *slog.Logger

	subscribers []subscription
}

func New(root string, logger *slog.Logger) (*Packer, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("pack directory is empty")
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat pack directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Packer{
		root:      root,
		packedDir: filepath.Join(root, PackedDir),
		logger:    logger,
	}, nil
}

// ArchivePath returns where the archive of bucket lives below root.
func ArchivePath(root, bucket string) string {
	return filepath.Join(root, PackedDir, bucket+archiveSuffix)
}

func (p *Packer) SubscribeStats(name string, sub stats.Subscriber) {
	p.subscribers = append(p.subscribers, subscription{name: name, sub: sub})
	p.logger.Debug("stats subscriber registered", "name", name)
}

// Buckets lists the bucket directories below the root that hold at least one
// message. Other directories, hidden entries and loose files are ignored.
func (p *Packer) Buckets() ([]Bucket, error) {
	entries, err := os.ReadDir(p.root)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p.root, err)
	}

	var buckets []Bucket
	for _, entry := range entries {
		name := entry.Name()
		if importer.IsHidden(name) || !entry.IsDir() {
			continue
		}
		if !maildate.IsBucket(name) {
			p.logger.Debug("skipping non-bucket directory", "name", name)
			continue
		}

		dir := filepath.Join(p.root, name)
		files, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("read bucket %s: %w", name, err)
		}
		b := Bucket{Name: name, Dir: dir}
		for _, f := range files {
			if importer.IsHidden(f.Name()) || f.IsDir() {
				continue
			}
			b.Files = append(b.Files, f.Name())
		}
		if len(b.Files) > 0 {
			buckets = append(buckets, b)
		}
	}
	return buckets, nil
}

// Count returns the number of messages Run would look at.
func (p *Packer) Count() (int, error) {
	buckets, err := p.Buckets()
	if err != nil {
		return 0, err
	}
	total := 0
	for _, b := range buckets {
		total += len(b.Files)
	}
	return total, nil
}

// Run packs every bucket. Messages that made it into an archive are removed
// from their bucket; messages that differ from an archived copy of the same
// name stay where they are.
func (p *Packer) Run(ctx context.Context) error {
	err := p.run(ctx)
	for _, s := range p.subscribers {
		s.sub.Finish(err)
	}
	if err != nil {
		p.logger.Error("pack failed", "root", p.root, "err", err)
		return err
	}
	p.logger.Info("pack completed", "root", p.root)
	return nil
}

func (p *Packer) run(ctx context.Context) error {
	buckets, err := p.Buckets()
	if err != nil {
		return err
	}
	if len(buckets) == 0 {
		return nil
	}
	if err := os.MkdirAll(p.packedDir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", p.packedDir, err)
	}

	for _, b := range buckets {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.packBucket(b); err != nil {
			err = fmt.Errorf("pack %s: %w", b.Name, err)
			p.emit(stats.Event{Type: stats.EventTypeError, Bucket: b.Name, Err: err})
			return err
		}
	}
	return nil
}

func (p *Packer) packBucket(b Bucket) error {
	archivePath := ArchivePath(p.root, b.Name)
	backupPath := archivePath + backupSuffix

	var (
		packed   []string
		backedUp bool
	)
	err := atomicfile.Tx(archivePath, archiveMode, func(out *atomicfile.File) error {
		xw, err := xz.NewWriter(out)
		if err != nil {
			return err
		}
		tw := tar.NewWriter(xw)

		archived, existed, err := copyArchive(archivePath, tw)
		if err != nil {
			return fmt.Errorf("merge %s: %w", archivePath, err)
		}
		if existed {
			if err := os.Rename(archivePath, backupPath); err != nil {
				return fmt.Errorf("back up archive: %w", err)
			}
			backedUp = true
		}

		for _, name := range b.Files {
			full := filepath.Join(b.Dir, name)
			rel := path.Join(b.Name, name)
			p.emit(stats.Event{Type: stats.EventTypeScanned, Path: rel, Bucket: b.Name})

			if want, ok := archived[name]; ok {
				got, err := hashFile(full)
				if err != nil {
					return fmt.Errorf("hash %s: %w", rel, err)
				}
				if !bytes.Equal(want, got) {
					p.logger.Warn("message differs from its archived copy, leaving it in place", "path", rel, "archive", archivePath)
					p.emit(stats.Event{Type: stats.EventTypeMismatch, Path: rel, Bucket: b.Name, Detail: mismatchDetail})
					continue
				}
				p.emit(stats.Event{Type: stats.EventTypeVerified, Path: rel, Bucket: b.Name})
				packed = append(packed, full)
				continue
			}

			written, err := appendFile(tw, full, name)
			if err != nil {
				return fmt.Errorf("add %s: %w", rel, err)
			}
			p.logger.Debug("message archived", "path", rel, "bytes", written)
			p.emit(stats.Event{Type: stats.EventTypeArchived, Path: rel, Bucket: b.Name, Written: written})
			packed = append(packed, full)
		}

		if err := tw.Close(); err != nil {
			return err
		}
		return xw.Close()
	})
	if err != nil {
		if backedUp {
			if rerr := os.Rename(backupPath, archivePath); rerr != nil {
				p.logger.Error("restoring archive backup failed", "backup", backupPath, "err", rerr)
			}
		}
		return err
	}

	for _, full := range packed {
		if err := os.Remove(full); err != nil {
			return fmt.Errorf("remove archived message: %w", err)
		}
	}
	return nil
}

// copyArchive copies every entry of the archive at archivePath into tw and
// returns the SHA-512 of each entry by base name. A missing archive is not
// an error.
func copyArchive(archivePath string, tw *tar.Writer) (map[string][]byte, bool, error) {
	f, err := os.Open(archivePath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	defer f.Close()

	xr, err := xz.NewReader(bufio.NewReader(f))
	if err != nil {
		return nil, true, err
	}
	tr := tar.NewReader(xr)

	sums := make(map[string][]byte)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return sums, true, nil
		}
		if err != nil {
			return nil, true, err
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, true, err
		}
		h := sha512.New()
		if _, err := io.Copy(tw, io.TeeReader(tr, h)); err != nil {
			return nil, true, err
		}
		sums[path.Base(hdr.Name)] = h.Sum(nil)
	}
}

func appendFile(tw *tar.Writer, full, name string) (int64, error) {
	f, err := os.Open(full)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Mode:     entryMode,
		Size:     info.Size(),
		ModTime:  entryTime,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return 0, err
	}
	return io.Copy(tw, f)
}

func hashFile(full string) ([]byte, error) {
	f, err := os.Open(full)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h := sha512.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

func (p *Packer) emit(evt stats.Event) {
	for _, s := range p.subscribers {
		s.sub.Handle(evt)
	}
}
