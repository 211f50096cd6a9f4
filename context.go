package trc

import "context"

type traceContextKey struct{}

// Put the trace in the context, shadowing any trace already there. It returns
// the new context and the trace.
func Put(ctx context.Context, tr Trace) (context.Context, Trace) {
	return context.WithValue(ctx, traceContextKey{}, tr), tr
}

// Get returns the trace in the context. If there is none, Get returns a new
// "orphan" trace, which isn't put in the context or retained anywhere. Orphan
// traces usually indicate a bug.
func Get(ctx context.Context) Trace {
	tr, ok := MaybeGet(ctx)
	if !ok {
		tr = newCoreTrace("", "(orphan)")
	}
	return tr
}

// MaybeGet returns the trace in the context and true, or nil and false if
// there is none.
func MaybeGet(ctx context.Context) (Trace, bool) {
	tr, ok := ctx.Value(traceContextKey{}).(Trace)
	return tr, ok && tr != nil
}
