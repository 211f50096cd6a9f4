package trc

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// DecoratorFunc is a function that decorates a trace in some way. It's similar
// to an HTTP middleware.
type DecoratorFunc func(Trace) Trace

// hookTrace calls its hooks after each change to the wrapped trace. Nil hooks
// are skipped.
type hookTrace struct {
	Trace

	onEvent  func(iserr bool, format string, args []any)
	onUser   func(user string)
	onFinish func()
}

func (htr *hookTrace) Unwrap() Trace { return htr.Trace }

func (htr *hookTrace) Tracef(format string, args ...any) {
	htr.Trace.Tracef(format, args...)
	htr.event(false, format, args)
}

func (htr *hookTrace) LazyTracef(format string, args ...any) {
	htr.Trace.LazyTracef(format, args...)
	htr.event(false, format, args)
}

func (htr *hookTrace) Errorf(format string, args ...any) {
	htr.Trace.Errorf(format, args...)
	htr.event(true, format, args)
}

func (htr *hookTrace) LazyErrorf(format string, args ...any) {
	htr.Trace.LazyErrorf(format, args...)
	htr.event(true, format, args)
}

func (htr *hookTrace) SetUser(user string) bool {
	ok := htr.Trace.SetUser(user)
	if ok && htr.onUser != nil {
		htr.onUser(user)
	}
	return ok
}

func (htr *hookTrace) Finish() {
	htr.Trace.Finish()
	if htr.onFinish != nil {
		htr.onFinish()
	}
}

func (htr *hookTrace) event(iserr bool, format string, args []any) {
	if htr.onEvent != nil {
		htr.onEvent(iserr, format, args)
	}
}

//
//
//

// LogDecorator mirrors trace events, and the header user when it's recorded,
// to dst, one line per event, prefixed with the trace ID. Lines from all
// traces decorated by the returned function are written to dst one at a time.
func LogDecorator(dst io.Writer) DecoratorFunc {
	var mtx sync.Mutex
	writeLine := func(id, kind, format string, args []any) {
		line := fmt.Sprintf(id+" "+kind+" "+strings.TrimSuffix(format, "\n")+"\n", args...)
		mtx.Lock()
		defer mtx.Unlock()
		io.WriteString(dst, line)
	}

	return func(tr Trace) Trace {
		id := tr.ID()
		return &hookTrace{
			Trace: tr,
			onEvent: func(iserr bool, format string, args []any) {
				kind := "TRC"
				if iserr {
					kind = "ERR"
				}
				writeLine(id, kind, format, args)
			},
			onUser: func(user string) {
				writeLine(id, "USR", "%q", []any{user})
			},
		}
	}
}

//
//
//

// Publisher receives traces as they change.
type Publisher interface {
	Publish(ctx context.Context, tr Trace)
}

// PublishDecorator publishes the trace to the given publisher whenever an
// event is added, the header user is recorded, or the trace is finished.
func PublishDecorator(p Publisher) DecoratorFunc {
	return func(tr Trace) Trace {
		publish := func() { p.Publish(context.Background(), tr) }
		return &hookTrace{
			Trace:    tr,
			onEvent:  func(bool, string, []any) { publish() },
			onUser:   func(string) { publish() },
			onFinish: publish,
		}
	}
}
