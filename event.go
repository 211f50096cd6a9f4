package trc

import (
	"path/filepath"
	"strings"
	"time"
)

// Event is a snapshot of a single trace event. Events are immutable once
// returned from a trace.
type Event struct {
	When    time.Time `json:"when"`
	What    string    `json:"what"`
	Stack   []Frame   `json:"stack,omitempty"`
	IsError bool      `json:"is_error,omitempty"`
}

// Frame is a single call in an event stack.
type Frame struct {
	Function string `json:"function"`
	FileLine string `json:"fileline"`
}

// CompactFunction returns the function name without its package path prefix,
// e.g. "trc.(*coreTrace).Tracef".
func (fr Frame) CompactFunction() string {
	if i := strings.LastIndex(fr.Function, "/"); i >= 0 {
		return fr.Function[i+1:]
	}
	return fr.Function
}

// CompactFileLine returns the file:line without the leading directories, e.g.
// "trace_core.go:123".
func (fr Frame) CompactFileLine() string {
	return filepath.Base(fr.FileLine)
}
