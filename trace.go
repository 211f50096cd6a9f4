package trc

import (
	"context"
	"time"
)

// Trace records what happened during one operation in a program, usually a
// single request. A trace has a header (ID, source, category, start time, and
// user) and an ordered list of events. Traces are meant to be short-lived, and
// are usually carried in a context.
//
// Implementations must be safe for concurrent use. Once Finish is called, a
// trace is frozen: event and user methods become no-ops.
type Trace interface {
	// ID is unique per trace.
	ID() string

	// Source is usually the name of the program or instance.
	Source() string

	// Category groups similar traces, e.g. by HTTP route.
	Category() string

	// Started is when the trace was created, in UTC.
	Started() time.Time

	// Duration is the time since Started for an active trace, and the total
	// lifetime of a finished trace.
	Duration() time.Duration

	// Tracef adds an event, formatting its text immediately.
	Tracef(format string, args ...any)

	// LazyTracef adds an event, formatting its text only when it's read. The
	// args must remain safe to read after the call.
	LazyTracef(format string, args ...any)

	// Errorf is Tracef for errors. It also marks the trace as errored.
	Errorf(format string, args ...any)

	// LazyErrorf is LazyTracef for errors. It also marks the trace as errored.
	LazyErrorf(format string, args ...any)

	// User is the user recorded in the header, or empty.
	User() string

	// SetUser records the header user. Only the first call has an effect and
	// returns true, even if user is empty. Later calls, and calls after Finish,
	// return false.
	SetUser(user string) bool

	// Finish freezes the trace. Repeated calls are no-ops.
	Finish()

	// Finished reports whether Finish has been called.
	Finished() bool

	// Errored reports whether an error event was ever added.
	Errored() bool

	// Events returns a new slice of the events so far. Events are immutable.
	Events() []Event
}

// NewTraceFunc describes a function which creates a new trace with the given
// source and category, and injects it into the given context.
type NewTraceFunc func(ctx context.Context, source, category string) (context.Context, Trace)

// Traces is an ordered collection of traces, newest first.
type Traces []Trace

func (trs Traces) Less(i, j int) bool {
	ti, tj := trs[i].Started(), trs[j].Started()
	if ti.Equal(tj) {
		return trs[i].ID() > trs[j].ID() // ULIDs sort by time
	}
	return ti.After(tj)
}

func (trs Traces) Swap(i, j int) { trs[i], trs[j] = trs[j], trs[i] }
func (trs Traces) Len() int      { return len(trs) }
