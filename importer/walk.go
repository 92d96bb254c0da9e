package importer

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
)

// File is a leaf entry found below the source root.
type File struct {
	Path    string
	RelPath string // slash-separated, relative to the walk root
}

// pending is a directory waiting on the walk stack, together with the
// resolved paths of the directories above it.
type pending struct {
	File
	ancestors []string
}

// Visitor receives the entries of a walk. Hidden may be nil.
type Visitor struct {
	File   func(File) error
	Hidden func(rel string)
}

// IsHidden reports whether an entry name is excluded from the walk.
func IsHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// Walk visits every non-hidden file below root. Pending directories are kept
// on an explicit stack, so tree depth does not grow the call stack. Hidden
// entries are reported but never descended into. Symlinks are followed, so a
// directory reachable under several names is walked under each of them. A
// link back to one of its own ancestors is not followed.
func Walk(ctx context.Context, root string, v Visitor) error {
	stack := []pending{{File: File{Path: root}}}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		resolved, err := filepath.EvalSymlinks(dir.Path)
		if err != nil {
			return fmt.Errorf("resolve directory %s: %w", dir.Path, err)
		}
		if slices.Contains(dir.ancestors, resolved) {
			continue
		}
		chain := append(slices.Clip(dir.ancestors), resolved)

		entries, err := os.ReadDir(dir.Path)
		if err != nil {
			return fmt.Errorf("read directory %s: %w", dir.Path, err)
		}

		var subdirs []pending
		for _, entry := range entries {
			name := entry.Name()
			rel := path.Join(dir.RelPath, name)
			if IsHidden(name) {
				if v.Hidden != nil {
					v.Hidden(rel)
				}
				continue
			}

			full := filepath.Join(dir.Path, name)
			if isDir(full, entry) {
				subdirs = append(subdirs, pending{File: File{Path: full, RelPath: rel}, ancestors: chain})
				continue
			}

			if err := ctx.Err(); err != nil {
				return err
			}
			if err := v.File(File{Path: full, RelPath: rel}); err != nil {
				return err
			}
		}

		for i := len(subdirs) - 1; i >= 0; i-- {
			stack = append(stack, subdirs[i])
		}
	}

	return nil
}

// isDir follows symlinks. A dangling link counts as a file and fails later,
// when it is copied.
func isDir(full string, entry fs.DirEntry) bool {
	if entry.Type()&fs.ModeSymlink == 0 {
		return entry.IsDir()
	}
	info, err := os.Stat(full)
	if err != nil {
		return false
	}
	return info.IsDir()
}
