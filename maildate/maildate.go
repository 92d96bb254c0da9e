// Package maildate parses Internet Message Format date headers and maps
// them onto the year-month buckets used by the destination tree.
package maildate

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
)

// Unknown is the bucket for messages without a usable date.
const Unknown = "unknown"

const bucketLayout = "2006-01"

var ErrEmpty = errors.New("date header is empty")

// obsoleteZones are the zone names with a defined offset. Any other
// alphabetic zone is read as UTC, never as whatever time.Local calls it.
var obsoleteZones = map[string]string{
	"UT":  "+0000",
	"UTC": "+0000",
	"GMT": "+0000",
	"Z":   "+0000",
	"AST": "-0400",
	"ADT": "-0300",
	"EST": "-0500",
	"EDT": "-0400",
	"CST": "-0600",
	"CDT": "-0500",
	"MST": "-0700",
	"MDT": "-0600",
	"PST": "-0800",
	"PDT": "-0700",
}

// zonelessLayouts cover dates that carry no offset or zone name. Those are
// read as UTC.
var zonelessLayouts = buildZonelessLayouts()

func buildZonelessLayouts() []string {
	days := []string{"2", "02"}
	years := []string{"2006", "06"}
	clocks := []string{"15:04:05", "15:04"}

	layouts := make([]string, 0, len(days)*len(years)*len(clocks))
	for _, day := range days {
		for _, year := range years {
			for _, clock := range clocks {
				layouts = append(layouts, day+" Jan "+year+" "+clock)
			}
		}
	}
	return layouts
}

var dayNames = map[string]bool{
	"mon": true, "tue": true, "wed": true, "thu": true,
	"fri": true, "sat": true, "sun": true,
}

// Parse reads a Date header value. A leading day name and a trailing comment
// are dropped, zone names are turned into offsets, and a value with no zone
// at all is taken to be UTC.
func Parse(value string) (time.Time, error) {
	value = collapseSpace(value)
	if value == "" {
		return time.Time{}, ErrEmpty
	}

	bare := numericZone(stripDayName(stripComment(value)))
	if bare == "" {
		return time.Time{}, ErrEmpty
	}

	t, err := mail.ParseDate(bare)
	if err == nil {
		return t, nil
	}

	for _, layout := range zonelessLayouts {
		if zt, zerr := time.Parse(layout, bare); zerr == nil {
			return zt, nil
		}
	}

	return time.Time{}, fmt.Errorf("parse date %q: %w", value, err)
}

// Bucket formats t as the UTC year-month directory label.
func Bucket(t time.Time) string {
	return t.UTC().Format(bucketLayout)
}

// IsBucket reports whether name is a label Bucket can produce, or Unknown.
func IsBucket(name string) bool {
	if name == Unknown {
		return true
	}
	_, err := time.Parse(bucketLayout, name)
	return err == nil && len(name) == len(bucketLayout)
}

func collapseSpace(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

func stripComment(value string) string {
	if strings.HasSuffix(value, ")") {
		if idx := strings.LastIndex(value, "("); idx >= 0 {
			value = value[:idx]
		}
	}
	return strings.TrimSpace(value)
}

// stripDayName drops a first token that ends in a comma or names a weekday.
// The weekday is redundant and may be spelled out in full.
func stripDayName(value string) string {
	first, rest, ok := strings.Cut(value, " ")
	if !ok {
		return value
	}
	if strings.HasSuffix(first, ",") || dayNames[strings.ToLower(first)] {
		return rest
	}
	return value
}

func numericZone(value string) string {
	idx := strings.LastIndexByte(value, ' ')
	if idx < 0 {
		return value
	}
	zone := strings.ToUpper(value[idx+1:])
	if offset, ok := obsoleteZones[zone]; ok {
		return value[:idx+1] + offset
	}
	if isAlpha(zone) {
		return value[:idx+1] + "+0000"
	}
	return value
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return false
		}
	}
	return true
}
