package trc

import (
	"context"
	"fmt"
	"runtime/trace"
	"strings"
	"time"
)

// Prefix returns a context with a view of its trace that prefixes the text of
// every event with format and args. The prefix args are evaluated along with
// the args of each event, not when Prefix is called.
func Prefix(ctx context.Context, format string, args ...any) (context.Context, Trace) {
	tr := Get(ctx)

	format = strings.TrimSpace(format)
	if format == "" {
		return ctx, tr
	}

	return Put(ctx, &prefixTrace{Trace: tr, format: format + " ", args: args})
}

type prefixTrace struct {
	Trace

	format string
	args   []any
}

func (ptr *prefixTrace) Unwrap() Trace { return ptr.Trace }

func (ptr *prefixTrace) prefixed(format string, args []any) (string, []any) {
	all := make([]any, 0, len(ptr.args)+len(args))
	all = append(append(all, ptr.args...), args...)
	return ptr.format + format, all
}

func (ptr *prefixTrace) Tracef(format string, args ...any) {
	format, args = ptr.prefixed(format, args)
	ptr.Trace.Tracef(format, args...)
}

func (ptr *prefixTrace) LazyTracef(format string, args ...any) {
	format, args = ptr.prefixed(format, args)
	ptr.Trace.LazyTracef(format, args...)
}

func (ptr *prefixTrace) Errorf(format string, args ...any) {
	format, args = ptr.prefixed(format, args)
	ptr.Trace.Errorf(format, args...)
}

func (ptr *prefixTrace) LazyErrorf(format string, args ...any) {
	format, args = ptr.prefixed(format, args)
	ptr.Trace.LazyErrorf(format, args...)
}

// Region marks a region of code, usually a function, in the trace in the
// context. It adds an event when the region begins, and another when the
// returned finish function is called, which includes the elapsed time. Events
// added via the returned context or trace within the region are indented. A
// [runtime/trace.Region] with the same name is also created.
//
//	func foo(ctx context.Context, id int) {
//	    ctx, tr, finish := trc.Region(ctx, "foo %d", id)
//	    defer finish()
//	    ...
//	}
//
// This produces events like the following.
//
//	→ foo 42
//	· trace event in foo
//	· → bar
//	· · something in bar
//	· ← bar [1.23ms]
//	← foo 42 [2.34ms]
func Region(ctx context.Context, format string, args ...any) (context.Context, Trace, func()) {
	var (
		begin  = time.Now()
		outer  = Get(ctx)
		region = trace.StartRegion(ctx, fmt.Sprintf(format, args...))
	)

	outer.LazyTracef("→ "+format, args...)
	ctx, inner := Prefix(ctx, "·")

	finish := func() {
		region.End()
		outer.LazyTracef("← "+format+" [%s]", append(args[:len(args):len(args)], time.Since(begin).String())...)
	}

	return ctx, inner, finish
}

// SetMaxEvents calls SetMaxEvents on the trace, or on the first trace it
// wraps which has that method, and reports whether it did. Core traces have it,
// and decorated and prefixed traces unwrap to them.
func SetMaxEvents(tr Trace, maxEvents int) (Trace, bool) {
	for t := tr; t != nil; {
		if m, ok := t.(interface{ SetMaxEvents(int) }); ok {
			m.SetMaxEvents(maxEvents)
			return tr, true
		}
		u, ok := t.(interface{ Unwrap() Trace })
		if !ok {
			break
		}
		t = u.Unwrap()
	}
	return tr, false
}
