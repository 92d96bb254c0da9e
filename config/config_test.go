package config

import (
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parsedCommand(t *testing.T, flags ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "maildir-import"}
	require.NoError(t, RegisterFlags(cmd))
	require.NoError(t, cmd.ParseFlags(flags))
	return cmd
}

func TestLoadConfigDefaults(t *testing.T) {
	cmd := parsedCommand(t)

	cfg, err := LoadConfig(cmd, []string{"mail/src/", "out"})
	require.NoError(t, err)

	assert.Equal(t, filepath.Clean("mail/src"), cfg.SourceDir)
	assert.Equal(t, "out", cfg.DestDir)
	assert.False(t, cfg.DryRun)
	assert.False(t, cfg.Progress)
	assert.Equal(t, "warn", cfg.Level)
	assert.Empty(t, cfg.Dir)
}

func TestLoadConfigFlags(t *testing.T) {
	cmd := parsedCommand(t, "--dry-run", "--progress", "--log-level", "WARNING", "--log-dir", "logs")

	cfg, err := LoadConfig(cmd, []string{"src", "dst"})
	require.NoError(t, err)

	assert.True(t, cfg.DryRun)
	assert.True(t, cfg.Progress)
	assert.Equal(t, "warn", cfg.Level)
	assert.Equal(t, "logs", cfg.Dir)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name  string
		flags []string
		args  []string
	}{
		{name: "missing dest", args: []string{"src"}},
		{name: "too many args", args: []string{"a", "b", "c"}},
		{name: "empty source", args: []string{" ", "dst"}},
		{name: "empty dest", args: []string{"src", ""}},
		{name: "same directory", args: []string{"mail", "mail/"}},
		{name: "bad log level", flags: []string{"--log-level", "verbose"}, args: []string{"src", "dst"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := parsedCommand(t, tt.flags...)
			_, err := LoadConfig(cmd, tt.args)
			assert.Error(t, err)
		})
	}
}

func TestLoadLoggingFromSubcommand(t *testing.T) {
	root := &cobra.Command{Use: "maildir-import"}
	require.NoError(t, RegisterFlags(root))
	child := &cobra.Command{Use: "split"}
	root.AddCommand(child)

	require.NoError(t, child.ParseFlags([]string{"--log-level", "debug"}))

	logging, err := LoadLogging(child)
	require.NoError(t, err)
	assert.Equal(t, "debug", logging.Level)
}
