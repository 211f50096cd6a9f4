package trc

import (
	"context"
	"crypto/rand"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	traceMaxEventsMin     = 10
	traceMaxEventsDefault = 1000
	traceMaxEventsMax     = 10000
)

var (
	traceMaxEvents atomic.Int32
	traceNoStacks  atomic.Bool
)

func init() {
	traceMaxEvents.Store(traceMaxEventsDefault)
}

func clampMaxEvents(n int) int {
	switch {
	case n < traceMaxEventsMin:
		return traceMaxEventsMin
	case n > traceMaxEventsMax:
		return traceMaxEventsMax
	default:
		return n
	}
}

// SetTraceMaxEvents sets the max number of events stored in a core trace. Once
// a trace is full, further events only increment a counter, which is reported
// as a single final "truncated" event. The default is 1000, the minimum is 10,
// and the maximum is 10000.
//
// Traces that already exist are unaffected.
func SetTraceMaxEvents(n int) {
	traceMaxEvents.Store(int32(clampMaxEvents(n)))
}

// SetTraceStacks enables or disables stack capture for trace events. Stacks
// are enabled by default. Capturing them is the most expensive part of adding
// an event.
//
// Traces that already exist are unaffected.
func SetTraceStacks(enable bool) {
	traceNoStacks.Store(!enable)
}

var traceIDs = struct {
	sync.Mutex
	entropy *ulid.MonotonicEntropy
}{
	entropy: ulid.Monotonic(rand.Reader, 0),
}

func newTraceID(now time.Time) ulid.ULID {
	traceIDs.Lock()
	defer traceIDs.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), traceIDs.entropy)
}

// coreTrace is the default, mutable trace. IDs are monotonic ULIDs. The header
// user is written at most once.
type coreTrace struct {
	id       ulid.ULID
	source   string
	category string
	start    time.Time
	nostack  bool

	mtx       sync.Mutex
	user      string
	userSet   bool
	errored   bool
	finished  bool
	duration  time.Duration
	events    []*coreEvent
	maxEvents int
	truncated int
}

var _ Trace = (*coreTrace)(nil)

// New creates a core trace with the given source and category, applies the
// decorators in order, and puts the result in the context.
func New(ctx context.Context, source, category string, decorators ...DecoratorFunc) (context.Context, Trace) {
	var tr Trace = newCoreTrace(source, category)
	for _, decorate := range decorators {
		tr = decorate(tr)
	}
	return Put(ctx, tr)
}

func newCoreTrace(source, category string) *coreTrace {
	now := time.Now().UTC()
	return &coreTrace{
		id:        newTraceID(now),
		source:    source,
		category:  category,
		start:     now,
		nostack:   traceNoStacks.Load(),
		maxEvents: int(traceMaxEvents.Load()),
	}
}

func (tr *coreTrace) ID() string         { return tr.id.String() }
func (tr *coreTrace) Source() string     { return tr.source }
func (tr *coreTrace) Category() string   { return tr.category }
func (tr *coreTrace) Started() time.Time { return tr.start }

func (tr *coreTrace) Duration() time.Duration {
	tr.mtx.Lock()
	defer tr.mtx.Unlock()

	if !tr.finished {
		return time.Since(tr.start)
	}
	return tr.duration
}

func (tr *coreTrace) Tracef(format string, args ...any) {
	tr.add(newEventText(format, args), false)
}

func (tr *coreTrace) LazyTracef(format string, args ...any) {
	tr.add(newLazyEventText(format, args), false)
}

func (tr *coreTrace) Errorf(format string, args ...any) {
	tr.add(newEventText(format, args), true)
}

func (tr *coreTrace) LazyErrorf(format string, args ...any) {
	tr.add(newLazyEventText(format, args), true)
}

func (tr *coreTrace) add(what *eventText, iserr bool) {
	ev := &coreEvent{when: time.Now().UTC(), what: what, iserr: iserr}
	if !tr.nostack {
		ev.pcn = runtime.Callers(3, ev.pcs[:])
	}

	tr.mtx.Lock()
	defer tr.mtx.Unlock()

	if tr.finished {
		return
	}

	tr.errored = tr.errored || iserr

	if len(tr.events) >= tr.maxEvents {
		tr.truncated++
		return
	}

	tr.events = append(tr.events, ev)
}

func (tr *coreTrace) User() string {
	tr.mtx.Lock()
	defer tr.mtx.Unlock()

	return tr.user
}

func (tr *coreTrace) SetUser(user string) bool {
	tr.mtx.Lock()
	defer tr.mtx.Unlock()

	if tr.userSet || tr.finished {
		return false
	}

	tr.user, tr.userSet = user, true
	return true
}

func (tr *coreTrace) Finish() {
	tr.mtx.Lock()
	defer tr.mtx.Unlock()

	if !tr.finished {
		tr.finished = true
		tr.duration = time.Since(tr.start)
	}
}

func (tr *coreTrace) Finished() bool {
	tr.mtx.Lock()
	defer tr.mtx.Unlock()

	return tr.finished
}

func (tr *coreTrace) Errored() bool {
	tr.mtx.Lock()
	defer tr.mtx.Unlock()

	return tr.errored
}

func (tr *coreTrace) Events() []Event {
	tr.mtx.Lock()
	defer tr.mtx.Unlock()

	events := make([]Event, len(tr.events), len(tr.events)+1)
	for i, ev := range tr.events {
		events[i] = ev.snapshot()
	}

	if tr.truncated > 0 {
		events = append(events, Event{
			When: time.Now().UTC(),
			What: fmt.Sprintf("(truncated event count %d)", tr.truncated),
		})
	}

	return events
}

// SetMaxEvents overrides the max events for this trace, within the same bounds
// as [SetTraceMaxEvents].
func (tr *coreTrace) SetMaxEvents(n int) {
	tr.mtx.Lock()
	defer tr.mtx.Unlock()

	tr.maxEvents = clampMaxEvents(n)
}

//
//
//

// coreEvent is guarded by the mutex of its trace.
type coreEvent struct {
	when  time.Time
	what  *eventText
	iserr bool
	pcs   [8]uintptr
	pcn   int
	stack []Frame // resolved lazily from pcs
}

func (ev *coreEvent) snapshot() Event {
	if ev.stack == nil && ev.pcn > 0 {
		ev.stack = resolveFrames(ev.pcs[:ev.pcn])
	}
	return Event{
		When:    ev.when,
		What:    ev.what.String(),
		Stack:   ev.stack,
		IsError: ev.iserr,
	}
}

func resolveFrames(pcs []uintptr) []Frame {
	var (
		frames = runtime.CallersFrames(pcs)
		stack  = make([]Frame, 0, len(pcs))
	)
	for {
		fr, more := frames.Next()
		if fr.Function != "" && !hideFrame(fr.Function) {
			stack = append(stack, Frame{
				Function: fr.Function,
				FileLine: fr.File + ":" + strconv.Itoa(fr.Line),
			})
		}
		if !more {
			return stack
		}
	}
}

// hideFrame reports whether a function belongs to the tracing machinery,
// rather than the code which added the event.
func hideFrame(function string) bool {
	const module = "github.com/sessiontrace/trc"
	if !strings.HasPrefix(function, module) {
		return false
	}
	switch {
	case strings.HasSuffix(function, "Tracef"), strings.HasSuffix(function, "Errorf"):
		return true
	case strings.HasPrefix(function, module+".Region"):
		return true
	case strings.HasPrefix(function, module+"/eztrc."):
		return true
	default:
		return false
	}
}

//
//
//

// eventText is the formatted text of an event, computed at most once.
type eventText struct {
	once sync.Once
	tmpl string
	args []any
	text string
}

func newEventText(format string, args []any) *eventText {
	t := newLazyEventText(format, args)
	t.format()
	return t
}

func newLazyEventText(format string, args []any) *eventText {
	return &eventText{tmpl: format, args: args}
}

func (t *eventText) format() {
	t.once.Do(func() {
		t.text = fmt.Sprintf(t.tmpl, t.args...)
		t.args = nil
	})
}

func (t *eventText) String() string {
	t.format()
	return t.text
}
