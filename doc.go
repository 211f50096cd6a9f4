// Package trc provides in-process request tracing, an efficient alternative to
// logging. The package is inspired by https://golang.org/x/net/trace, much
// gratitude to those authors.
//
// The basic idea is to "log" to a value in the context, known as a [Trace],
// rather than a destination like stdout or a file on disk. Traces are created,
// assigned a category, and injected to the context for each e.g. request served
// by the application, making them available to user code.
//
// Every trace has a header, which carries metadata about the operation as a
// whole. Besides the source, category, and timing, the header records the user
// on whose behalf the operation ran. The header user is written at most once,
// typically by middleware when the request completes, and can be searched and
// aggregated like any other header field. See package
// [github.com/sessiontrace/trc/trcuser] for how the user is determined.
//
// The most recent traces are maintained in-memory by a [Collector], grouped
// into per-category ring buffers. The complete set of traces, across all ring
// buffers, is exposed via an HTTP interface, see package
// [github.com/sessiontrace/trc/trchttp]. Operators access the application
// "logs" by querying that interface, selecting traces by category, user,
// minimum duration, successful vs. errored, and so on.
//
// There are a few caveats. This approach is only suitable for applications that
// do their work in the context of a trace-related operation, and which reliably
// have access to a context value. Only the most recent traces are maintained,
// so long term historical data is not available. And, because traces are
// maintained in memory, if a process crashes or restarts, all previous data is
// lost.
//
// Most applications should not import this package directly, and should instead
// use [github.com/sessiontrace/trc/eztrc], which provides an easy-to-use API
// for common use cases.
package trc
