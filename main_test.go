package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dhcgn/maildir-import/config"
)

func TestSetupLoggerWritesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	logger, cleanup, err := setupLogger(config.Logging{Level: "debug", Dir: dir})
	require.NoError(t, err)
	logger.Debug("hello from test")
	require.NoError(t, cleanup())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from test")
}

func TestRunImportsTree(t *testing.T) {
	src := t.TempDir()
	dest := filepath.Join(t.TempDir(), "dest")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "a"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "a", "msg1.eml"), []byte("Date: Thu, 15 Dec 2022 09:30:00 +0000\n\nhi\n"), 0o644))

	logger, cleanup, err := setupLogger(config.Logging{Level: "error"})
	require.NoError(t, err)
	defer cleanup()

	require.NoError(t, run(context.Background(), config.Config{SourceDir: src, DestDir: dest}, logger))

	entries, err := os.ReadDir(filepath.Join(dest, "2022-12"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
