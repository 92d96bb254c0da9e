package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dhcgn/maildir-import/config"
	"github.com/dhcgn/maildir-import/importer"
	"github.com/dhcgn/maildir-import/stats"
)

type subscription struct {
	name string
	sub  stats.Subscriber
}

// Runner drives a single import and fans its events out to subscribers.
// Everything happens on the calling goroutine.
type Runner struct {
	cfg    config.Config
	logger *slog.Logger

	importer    *importer.Importer
	subscribers []subscription
	since       time.Time
}

func New(cfg config.Config, logger *slog.Logger) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		cfg:    cfg,
		logger: logger,
	}

	imp, err := importer.New(importer.Options{
		SourceDir: cfg.SourceDir,
		DestDir:   cfg.DestDir,
		DryRun:    cfg.DryRun,
	}, logger, r.dispatch)
	if err != nil {
		return nil, fmt.Errorf("importer: %w", err)
	}
	r.importer = imp

	return r, nil
}

func (r *Runner) Logger() *slog.Logger {
	return r.logger
}

func (r *Runner) Importer() *importer.Importer {
	return r.importer
}

func (r *Runner) SubscribeStats(name string, sub stats.Subscriber) {
	r.subscribers = append(r.subscribers, subscription{name: name, sub: sub})
	r.logger.Debug("stats subscriber registered", "name", name)
}

func (r *Runner) Start(ctx context.Context) error {
	r.since = time.Now()

	err := r.importer.Run(ctx)
	for _, s := range r.subscribers {
		s.sub.Finish(err)
	}

	duration := time.Since(r.since)
	if err != nil {
		r.logger.Error("import failed", "source", r.cfg.SourceDir, "duration", duration, "err", err)
		return err
	}

	r.logger.Info("import completed", "source", r.cfg.SourceDir, "dest", r.cfg.DestDir, "duration", duration)
	return nil
}

func (r *Runner) dispatch(evt stats.Event) {
	for _, s := range r.subscribers {
		s.sub.Handle(evt)
	}
}
