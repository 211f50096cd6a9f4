// Package trcutil contains small helpers shared by the trc packages.
package trcutil

import (
	"fmt"
	"strings"
	"time"
)

// durationPrecision maps a duration magnitude to the unit it's truncated to.
// Entries are ordered from largest to smallest.
var durationPrecision = []struct {
	atLeast time.Duration
	unit    time.Duration
}{
	{10 * 24 * time.Hour, 24 * time.Hour},
	{24 * time.Hour, time.Hour},
	{time.Hour, time.Minute},
	{time.Minute, time.Second},
	{time.Second, 100 * time.Millisecond},
	{10 * time.Millisecond, time.Millisecond},
	{time.Millisecond, 100 * time.Microsecond},
	{time.Microsecond, time.Microsecond},
}

// TruncateDuration drops precision that isn't meaningful at the magnitude of
// d, e.g. a duration over 1s is truncated to 100ms, and a duration over 1m to
// 1s.
func TruncateDuration(d time.Duration) time.Duration {
	for _, p := range durationPrecision {
		if d >= p.atLeast {
			return d.Truncate(p.unit)
		}
	}
	return d
}

// HumanizeDuration returns a short string form of the truncated duration.
// Durations of an hour or more omit a zero seconds suffix, e.g. "2h3m".
func HumanizeDuration(d time.Duration) string {
	d = TruncateDuration(d)
	s := d.String()
	if d >= time.Hour {
		s = strings.TrimSuffix(s, "0s")
	}
	return s
}

// HumanizeBytes returns a short string form of n bytes, using KB for 1024
// bytes and MB for 1048576 bytes. Larger units aren't used.
func HumanizeBytes(n int) string {
	const (
		kb = 1024.0
		mb = 1024.0 * kb
	)
	f := float64(n)
	switch {
	case f < kb:
		return fmt.Sprintf("%0.1fB", f)
	case f < 100*kb:
		return fmt.Sprintf("%.1fKB", f/kb)
	case f < mb:
		return fmt.Sprintf("%.0fKB", f/kb)
	case f < 100*mb:
		return fmt.Sprintf("%.1fMB", f/mb)
	default:
		return fmt.Sprintf("%.0fMB", f/mb)
	}
}
