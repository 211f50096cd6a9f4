// Package trcsession provides server-side HTTP sessions whose attribute writes
// can be observed, for use with [github.com/sessiontrace/trc/trcuser].
//
// Sessions are identified by a cookie, and their attributes are kept in a
// [Store]. A [Manager] binds a [Handle] to each request. Reading through a
// handle never creates a session; only writing an attribute does. Every write
// is reported to the observer given to [Manager.Bind], after the store has
// been updated.
package trcsession
