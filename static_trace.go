package trc

import (
	"encoding/json"
	"strings"
	"time"
)

// StaticTrace is a "snapshot" of a trace which can be sent over the wire. It
// implements Trace, but the methods which would normally mutate the trace are
// no-ops.
type StaticTrace struct {
	TraceSource   string         `json:"source"`
	TraceID       string         `json:"id"`
	TraceCategory string         `json:"category"`
	TraceUser     string         `json:"user"`
	TraceStarted  time.Time      `json:"started"`
	TraceDuration DurationString `json:"duration"`
	TraceFinished bool           `json:"finished,omitempty"`
	TraceErrored  bool           `json:"errored,omitempty"`
	TraceEvents   []Event        `json:"events,omitempty"`
}

var _ Trace = (*StaticTrace)(nil) // needs to be passed to Filter.Allow

// NewStaticTrace produces a static copy of the given trace, including all of
// its current events. If stackDepth is positive, event stacks are trimmed to at
// most that many frames; if it's negative, stacks are removed entirely.
func NewStaticTrace(tr Trace, stackDepth int) *StaticTrace {
	if st, ok := tr.(*StaticTrace); ok && stackDepth == 0 {
		return st
	}

	events := append([]Event(nil), tr.Events()...)
	for i := range events {
		switch {
		case stackDepth < 0:
			events[i].Stack = nil
		case stackDepth > 0 && len(events[i].Stack) > stackDepth:
			events[i].Stack = events[i].Stack[:stackDepth]
		}
	}

	return &StaticTrace{
		TraceSource:   tr.Source(),
		TraceID:       tr.ID(),
		TraceCategory: tr.Category(),
		TraceUser:     tr.User(),
		TraceStarted:  tr.Started(),
		TraceDuration: DurationString(tr.Duration()),
		TraceFinished: tr.Finished(),
		TraceErrored:  tr.Errored(),
		TraceEvents:   events,
	}
}

func (st *StaticTrace) ID() string              { return st.TraceID }
func (st *StaticTrace) Source() string          { return st.TraceSource }
func (st *StaticTrace) Category() string        { return st.TraceCategory }
func (st *StaticTrace) Started() time.Time      { return st.TraceStarted }
func (st *StaticTrace) Duration() time.Duration { return time.Duration(st.TraceDuration) }
func (st *StaticTrace) User() string            { return st.TraceUser }
func (st *StaticTrace) Finished() bool          { return st.TraceFinished }
func (st *StaticTrace) Errored() bool           { return st.TraceErrored }
func (st *StaticTrace) Events() []Event         { return st.TraceEvents }

func (st *StaticTrace) Tracef(format string, args ...any)     { /* no-op */ }
func (st *StaticTrace) LazyTracef(format string, args ...any) { /* no-op */ }
func (st *StaticTrace) Errorf(format string, args ...any)     { /* no-op */ }
func (st *StaticTrace) LazyErrorf(format string, args ...any) { /* no-op */ }
func (st *StaticTrace) SetUser(user string) bool              { return false }
func (st *StaticTrace) Finish()                               { /* no-op */ }

//
//
//

// DurationString is a [time.Duration] that JSON marshals as a string rather
// than int64 nanoseconds.
type DurationString time.Duration

// MarshalJSON implements [json.Marshaler].
func (d DurationString) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements [json.Unmarshaler].
func (d *DurationString) UnmarshalJSON(data []byte) error {
	if dur, err := time.ParseDuration(strings.Trim(string(data), `"`)); err == nil {
		*d = DurationString(dur)
		return nil
	}
	return json.Unmarshal(data, (*time.Duration)(d))
}
