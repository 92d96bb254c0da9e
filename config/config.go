package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// Logging holds the options shared by every subcommand.
type Logging struct {
	Level string
	Dir   string
}

// Config captures everything needed to run an import.
type Config struct {
	SourceDir string
	DestDir   string
	DryRun    bool
	Progress  bool
	Logging
}

// RegisterFlags attaches all CLI flags to the root command. Logging flags are
// persistent so subcommands inherit them.
func RegisterFlags(cmd *cobra.Command) error {
	persistent := cmd.PersistentFlags()
	persistent.String("log-level", "warn", "Logging level: debug, info, warn, error")
	persistent.String("log-dir", "", "Also write logs to a timestamped file in this directory")

	flags := cmd.Flags()
	flags.Bool("dry-run", false, "Classify messages and report where they would go without copying")
	flags.Bool("progress", false, "Show a progress bar while importing")

	return nil
}

// LoadLogging reads the logging flags of cmd or any of its parents.
func LoadLogging(cmd *cobra.Command) (Logging, error) {
	flags := cmd.Flags()

	level, err := flags.GetString("log-level")
	if err != nil {
		return Logging{}, err
	}
	dir, err := flags.GetString("log-dir")
	if err != nil {
		return Logging{}, err
	}

	level = strings.ToLower(strings.TrimSpace(level))
	if level == "warning" {
		level = "warn"
	}

	logging := Logging{Level: level, Dir: strings.TrimSpace(dir)}
	if err := validateLogging(logging); err != nil {
		return Logging{}, err
	}
	return logging, nil
}

// LoadConfig converts the parsed Cobra flags and the two positional
// arguments into a Config with validation.
func LoadConfig(cmd *cobra.Command, args []string) (Config, error) {
	if len(args) != 2 {
		return Config{}, fmt.Errorf("expected <source> and <dest>, got %d argument(s)", len(args))
	}

	logging, err := LoadLogging(cmd)
	if err != nil {
		return Config{}, err
	}

	flags := cmd.Flags()
	dryRun, err := flags.GetBool("dry-run")
	if err != nil {
		return Config{}, err
	}
	progress, err := flags.GetBool("progress")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		SourceDir: strings.TrimSpace(args[0]),
		DestDir:   strings.TrimSpace(args[1]),
		DryRun:    dryRun,
		Progress:  progress,
		Logging:   logging,
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	cfg.SourceDir = filepath.Clean(cfg.SourceDir)
	cfg.DestDir = filepath.Clean(cfg.DestDir)
	return cfg, nil
}

func validateConfig(cfg Config) error {
	if cfg.SourceDir == "" {
		return fmt.Errorf("source directory is required")
	}
	if cfg.DestDir == "" {
		return fmt.Errorf("destination directory is required")
	}
	if filepath.Clean(cfg.SourceDir) == filepath.Clean(cfg.DestDir) {
		return fmt.Errorf("source and destination must differ")
	}
	return validateLogging(cfg.Logging)
}

func validateLogging(l Logging) error {
	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid --log-level: %s", l.Level)
	}
	return nil
}
