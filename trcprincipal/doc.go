// Package trcprincipal provides application-side principal sources, which
// determine the authenticated identity of a request. They're the kind of
// source [github.com/sessiontrace/trc/trcuser.Gate] wraps.
package trcprincipal
