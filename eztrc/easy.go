// Package eztrc provides an easy-to-use API for common tracing use cases,
// backed by a single global collector.
package eztrc

import (
	"context"
	"net/http"

	"github.com/sessiontrace/trc"
	"github.com/sessiontrace/trc/trchttp"
)

var (
	Region = trc.Region
	Prefix = trc.Prefix
)

var collector = trc.NewDefaultCollector()

// Collector returns the global collector.
func Collector() *trc.Collector {
	return collector
}

// Handler returns an HTTP handler serving search and stream requests over the
// global collector.
func Handler() http.Handler {
	return trchttp.NewServer(collector)
}

// Middleware returns the HTTP middleware described by cfg. If cfg has no
// tracer, traces are created in the global collector.
func Middleware(cfg trchttp.MiddlewareConfig) func(http.Handler) http.Handler {
	if cfg.Tracer == nil {
		cfg.Tracer = collector
	}
	return trchttp.Middleware(cfg)
}

// New creates a new trace in the global collector.
func New(ctx context.Context, category string) (context.Context, trc.Trace) {
	return collector.NewTrace(ctx, category)
}

// Get is really GetOrCreate: if a trace exists in the context, Get adds an
// event reflecting the provided category and returns the context and the trace
// directly. Otherwise, Get creates a new trace in the context via [New].
func Get(ctx context.Context, category string) (context.Context, trc.Trace) {
	if tr, ok := trc.MaybeGet(ctx); ok {
		tr.Tracef("(+ %s)", category)
		return ctx, tr
	}
	return New(ctx, category)
}

// Tracef adds a new event to the trace in the context.
// Arguments are evaluated immediately.
func Tracef(ctx context.Context, format string, args ...any) {
	trc.Get(ctx).Tracef(format, args...)
}

// LazyTracef adds a new event to the trace in the context.
// Arguments are evaluated lazily.
func LazyTracef(ctx context.Context, format string, args ...any) {
	trc.Get(ctx).LazyTracef(format, args...)
}

// Errorf adds a new event to the trace in the context.
// Arguments are evaluated immediately.
func Errorf(ctx context.Context, format string, args ...any) {
	trc.Get(ctx).Errorf(format, args...)
}

// LazyErrorf adds a new event to the trace in the context.
// Arguments are evaluated lazily.
func LazyErrorf(ctx context.Context, format string, args ...any) {
	trc.Get(ctx).LazyErrorf(format, args...)
}
