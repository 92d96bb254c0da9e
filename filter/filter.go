// Package filter selects messages by regular expressions over their header
// and body text.
package filter

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var ErrModeConflict = errors.New("include and exclude filters are mutually exclusive")

// Options captures the filtering configuration.
type Options struct {
	IncludeHeader []string
	IncludeBody   []string
	ExcludeHeader []string
	ExcludeBody   []string
}

// Active reports whether any pattern is configured.
func (o Options) Active() bool {
	return len(o.IncludeHeader)+len(o.IncludeBody)+len(o.ExcludeHeader)+len(o.ExcludeBody) > 0
}

type rule struct {
	pattern string
	re      *regexp.Regexp
	hits    int
}

type ruleSet []*rule

func (rs ruleSet) match(text string) bool {
	for _, r := range rs {
		if r.re.MatchString(text) {
			r.hits++
			return true
		}
	}
	return false
}

// Filter holds compiled patterns. Include and exclude modes never mix. A
// Filter counts hits and is not safe for concurrent use.
type Filter struct {
	includeHeader ruleSet
	includeBody   ruleSet
	excludeHeader ruleSet
	excludeBody   ruleSet
}

// New creates a new Filter from the provided options.
func New(opts Options) (*Filter, error) {
	var (
		f   Filter
		err error
	)
	if f.includeHeader, err = compile(opts.IncludeHeader); err != nil {
		return nil, fmt.Errorf("compile include-header pattern: %w", err)
	}
	if f.includeBody, err = compile(opts.IncludeBody); err != nil {
		return nil, fmt.Errorf("compile include-body pattern: %w", err)
	}
	if f.excludeHeader, err = compile(opts.ExcludeHeader); err != nil {
		return nil, fmt.Errorf("compile exclude-header pattern: %w", err)
	}
	if f.excludeBody, err = compile(opts.ExcludeBody); err != nil {
		return nil, fmt.Errorf("compile exclude-body pattern: %w", err)
	}

	if f.includeMode() && f.excludeMode() {
		return nil, ErrModeConflict
	}
	return &f, nil
}

func (f *Filter) includeMode() bool {
	return len(f.includeHeader) > 0 || len(f.includeBody) > 0
}

func (f *Filter) excludeMode() bool {
	return len(f.excludeHeader) > 0 || len(f.excludeBody) > 0
}

// Allows returns true if the message passes the filter criteria.
func (f *Filter) Allows(header, body []byte) bool {
	switch {
	case f.includeMode():
		return f.includeHeader.match(string(header)) || f.includeBody.match(string(body))
	case f.excludeMode():
		return !(f.excludeHeader.match(string(header)) || f.excludeBody.match(string(body)))
	default:
		return true
	}
}

// AllowsMessage splits raw and applies Allows.
func (f *Filter) AllowsMessage(raw []byte) bool {
	header, body := SplitRawMessage(raw)
	return f.Allows(header, body)
}

// Hits returns the number of messages each pattern matched, keyed by pattern.
func (f *Filter) Hits() map[string]int {
	hits := make(map[string]int)
	for _, rs := range []ruleSet{f.includeHeader, f.includeBody, f.excludeHeader, f.excludeBody} {
		for _, r := range rs {
			hits[r.pattern] += r.hits
		}
	}
	return hits
}

// SplitRawMessage splits a raw email message into header and body parts.
func SplitRawMessage(raw []byte) (header, body []byte) {
	if len(raw) == 0 {
		return nil, nil
	}

	if idx := bytes.Index(raw, []byte("\r\n\r\n")); idx >= 0 {
		return raw[:idx], raw[idx+4:]
	}
	if idx := bytes.Index(raw, []byte("\n\n")); idx >= 0 {
		return raw[:idx], raw[idx+2:]
	}

	return raw, nil
}

func compile(patterns []string) (ruleSet, error) {
	rules := make(ruleSet, 0, len(patterns))
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", pattern, err)
		}
		rules = append(rules, &rule{pattern: pattern, re: re})
	}
	return rules, nil
}
