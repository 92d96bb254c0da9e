package progress

import (
	"github.com/pterm/pterm"

	"github.com/dhcgn/maildir-import/stats"
)

// Bar shows progress on the terminal. A disabled Bar ignores all events so
// callers need not check. Events arrive on a single goroutine.
type Bar struct {
	pb      *pterm.ProgressbarPrinter
	title   string
	total   int
	done    int
	undated int
	enabled bool
}

// New creates a progress bar over total messages.
func New(title string, total int, enabled bool) *Bar {
	bar := &Bar{
		title:   title,
		total:   total,
		enabled: enabled && total > 0,
	}

	if bar.enabled {
		pb, err := pterm.DefaultProgressbar.
			WithTotal(total).
			WithTitle(title).
			Start()
		if err != nil {
			bar.enabled = false
			return bar
		}
		bar.pb = pb
	}

	return bar
}

// Handle advances the bar on each scanned message.
func (b *Bar) Handle(evt stats.Event) {
	if !b.enabled || b.pb == nil {
		return
	}

	switch evt.Type {
	case stats.EventTypeScanned:
		b.pb.Increment()
		if evt.Path != "" {
			display := evt.Path
			if len(display) > 40 {
				display = "..." + display[len(display)-37:]
			}
			b.pb.UpdateTitle(b.title + ": " + display)
		}
	case stats.EventTypeCopied, stats.EventTypeDryRunCopied, stats.EventTypeArchived, stats.EventTypeVerified:
		b.done++
	case stats.EventTypeUndated:
		b.undated++
	case stats.EventTypeMismatch:
		pterm.Warning.Printf("%s: %s\n", evt.Path, evt.Detail)
	case stats.EventTypeError:
		if evt.Err != nil {
			pterm.Error.Printf("Error: %v\n", evt.Err)
		}
	}
}

// Finish stops the bar and prints a one-line outcome.
func (b *Bar) Finish(err error) {
	if !b.enabled || b.pb == nil {
		return
	}

	if _, stopErr := b.pb.Stop(); stopErr != nil {
		return
	}
	if err != nil {
		pterm.Error.Printf("%s aborted after %d of %d messages\n", b.title, b.done, b.total)
		return
	}
	if b.undated > 0 {
		pterm.Success.Printf("%s: %d messages done (%d without a usable date)\n", b.title, b.done, b.undated)
		return
	}
	pterm.Success.Printf("%s: %d messages done\n", b.title, b.done)
}
