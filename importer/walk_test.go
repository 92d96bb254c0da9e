package importer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, root string) []string {
	t.Helper()
	var got []string
	err := Walk(context.Background(), root, Visitor{File: func(f File) error {
		got = append(got, f.RelPath)
		return nil
	}})
	require.NoError(t, err)
	sort.Strings(got)
	return got
}

func TestWalkRelativePaths(t *testing.T) {
	root := t.TempDir()
	writeMessage(t, root, "top", "")
	writeMessage(t, root, "a/one", "")
	writeMessage(t, root, "a/b/c/two", "")
	writeMessage(t, root, "a/.skip/three", "")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))

	assert.Equal(t, []string{"a/b/c/two", "a/one", "top"}, collect(t, root))
}

func TestWalkDeepTree(t *testing.T) {
	root := t.TempDir()
	rel := strings.Repeat("d/", 200) + "leaf"
	writeMessage(t, root, rel, "")

	assert.Equal(t, []string{rel}, collect(t, root))
}

func TestWalkFollowsSymlinks(t *testing.T) {
	root := t.TempDir()
	writeMessage(t, root, "a/one", "")
	writeMessage(t, root, "other/two", "")

	if err := os.Symlink(filepath.Join(root, "a"), filepath.Join(root, "a", "loop")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	require.NoError(t, os.Symlink(filepath.Join(root, "other"), filepath.Join(root, "a", "link")))

	assert.Equal(t, []string{"a/link/two", "a/one", "other/two"}, collect(t, root))
}

func TestWalkStopsOnlyOnCycles(t *testing.T) {
	root := t.TempDir()
	writeMessage(t, root, "a/m.eml", "")
	writeMessage(t, root, "a/sub/n.eml", "")

	if err := os.Symlink(filepath.Join(root, "a"), filepath.Join(root, "b")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	require.NoError(t, os.Symlink(root, filepath.Join(root, "a", "sub", "up")))

	assert.Equal(t, []string{"a/m.eml", "a/sub/n.eml", "b/m.eml", "b/sub/n.eml"}, collect(t, root))
}

func TestWalkStopsOnVisitorError(t *testing.T) {
	root := t.TempDir()
	writeMessage(t, root, "a/one", "")
	writeMessage(t, root, "b/two", "")

	boom := errors.New("boom")
	calls := 0
	err := Walk(context.Background(), root, Visitor{File: func(File) error {
		calls++
		return boom
	}})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestWalkMissingRoot(t *testing.T) {
	err := Walk(context.Background(), filepath.Join(t.TempDir(), "missing"), Visitor{File: func(File) error {
		return nil
	}})
	assert.Error(t, err)
}

func TestIsHidden(t *testing.T) {
	assert.True(t, IsHidden(".git"))
	assert.True(t, IsHidden("."))
	assert.False(t, IsHidden("mail.eml"))
	assert.False(t, IsHidden("a.b"))
}

func TestSurvey(t *testing.T) {
	root := t.TempDir()
	writeMessage(t, root, "a/msg1.eml", decemberMessage)
	writeMessage(t, root, "a/msg2.eml", decemberMessage)
	writeMessage(t, root, "b/msg3.eml", offsetMessage)
	writeMessage(t, root, "b/msg4.eml", badDateMessage)
	writeMessage(t, root, ".hidden/msg5.eml", offsetMessage)

	got, err := Survey(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"2022-12": 2, "2023-01": 1, "unknown": 1}, got)
}
