package stats

import (
	"fmt"
	"log/slog"
	"sort"
	"time"
)

type EventType string

const (
	EventTypeScanned      EventType = "scanned"
	EventTypeCopied       EventType = "copied"
	EventTypeDryRunCopied EventType = "dry_run_copied"
	EventTypeUndated      EventType = "undated"
	EventTypeHidden       EventType = "hidden"
	EventTypeError        EventType = "error"

	EventTypeArchived EventType = "archived"
	EventTypeVerified EventType = "verified"
	EventTypeMismatch EventType = "mismatch"
)

type Event struct {
	Type    EventType
	Path    string
	Bucket  string
	Err     error
	Detail  string
	Written int64
}

type Summary struct {
	Scanned      int
	Copied       int
	DryRunCopied int
	Undated      int
	Hidden       int
	Errors       int
	Archived     int
	Verified     int
	Mismatched   int
	Bytes        int64
	Buckets      map[string]int
	LastError    error
}

func (s Summary) LogAttrs() []any {
	attrs := []any{
		"scanned", s.Scanned,
		"copied", s.Copied,
		"dryRunCopied", s.DryRunCopied,
		"undated", s.Undated,
		"hidden", s.Hidden,
		"errors", s.Errors,
		"archived", s.Archived,
		"verified", s.Verified,
		"mismatched", s.Mismatched,
		"bytes", s.Bytes,
		"buckets", len(s.Buckets),
	}
	if s.LastError != nil {
		attrs = append(attrs, "lastError", s.LastError.Error())
	}
	return attrs
}

// Collector is fed from a single goroutine and is not safe for concurrent
// use.
type Collector struct {
	summary Summary
}

func NewCollector() *Collector {
	return &Collector{summary: Summary{Buckets: make(map[string]int)}}
}

// Apply folds a single event into the running summary.
func (c *Collector) Apply(evt Event) {
	switch evt.Type {
	case EventTypeScanned:
		c.summary.Scanned++
	case EventTypeCopied:
		c.summary.Copied++
		c.summary.Bytes += evt.Written
		c.summary.Buckets[evt.Bucket]++
	case EventTypeDryRunCopied:
		c.summary.DryRunCopied++
		c.summary.Buckets[evt.Bucket]++
	case EventTypeUndated:
		c.summary.Undated++
	case EventTypeHidden:
		c.summary.Hidden++
	case EventTypeError:
		c.summary.Errors++
		if evt.Err != nil {
			c.summary.LastError = evt.Err
		}
	case EventTypeArchived:
		c.summary.Archived++
		c.summary.Bytes += evt.Written
		c.summary.Buckets[evt.Bucket]++
	case EventTypeVerified:
		c.summary.Verified++
	case EventTypeMismatch:
		c.summary.Mismatched++
	}
}

func (c *Collector) Snapshot() Summary {
	summary := c.summary
	summary.Buckets = make(map[string]int, len(c.summary.Buckets))
	for k, v := range c.summary.Buckets {
		summary.Buckets[k] = v
	}
	return summary
}

// Subscriber receives every event of a run, then the run's final error.
type Subscriber interface {
	Handle(evt Event)
	Finish(err error)
}

type EventStream interface {
	SubscribeStats(name string, sub Subscriber)
}

type Reporter struct {
	collector *Collector
	logger    *slog.Logger
	started   time.Time
}

func NewReporter(stream EventStream, logger *slog.Logger) *Reporter {
	reporter := &Reporter{
		collector: NewCollector(),
		logger:    logger,
		started:   time.Now(),
	}
	stream.SubscribeStats("stats-reporter", reporter)
	return reporter
}

func (r *Reporter) Handle(evt Event) {
	r.collector.Apply(evt)
}

func (r *Reporter) Finish(err error) {
	if r.logger == nil {
		return
	}
	attrs := append(r.collector.Snapshot().LogAttrs(), "duration", time.Since(r.started))
	if err != nil {
		r.logger.Debug("stats collection stopped", append(attrs, "err", err)...)
		return
	}
	r.logger.Info("stats summary", attrs...)
}

func (r *Reporter) Summary() Summary {
	return r.collector.Snapshot()
}

// Count is one entry of a frequency table.
type Count struct {
	Key   string
	Value int
}

// SortedCounts orders the entries of m by count descending, then by key.
func SortedCounts(m map[string]int) []Count {
	pairs := make([]Count, 0, len(m))
	for k, v := range m {
		pairs = append(pairs, Count{k, v})
	}

	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Value != pairs[j].Value {
			return pairs[i].Value > pairs[j].Value
		}
		return pairs[i].Key < pairs[j].Key
	})
	return pairs
}

// PrettyPrintTop prints the top N most frequent items in a map.
func PrettyPrintTop(m map[string]int, limit int) {
	pairs := SortedCounts(m)
	for i := 0; i < limit && i < len(pairs); i++ {
		fmt.Printf("%d. %s (%d)\n", i+1, pairs[i].Key, pairs[i].Value)
	}
}
