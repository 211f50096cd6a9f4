// Package trcuser decides the user label recorded in the header of each
// request trace.
//
// The user is derived from a [Policy], configured as a single string: empty
// disables the feature, "::id" selects the session identifier, and anything
// else is a dotted attribute path like "account.login", evaluated against the
// request's session. The first path segment names a session attribute, and
// each further segment names a field of the previous value, reached through
// the [Accessor] capability.
//
// During a request, two channels feed a per-request [Register]: writes to the
// session attribute named by the policy's root segment, observed via
// [Capture.AttributeSet], and reads of the current principal that the
// application itself performs through [CurrentPrincipal]. The tracing layer
// never looks up the principal on its own, as doing so may fail or have side
// effects the application didn't ask for. At request completion,
// [Capture.Finalize] picks the register value if there is one, otherwise
// evaluates the policy against the session as it exists at that point, and
// otherwise yields the empty string.
//
// A disabled policy turns off both channels. Principals the application reads
// through [CurrentPrincipal] are passed through untouched and are not recorded,
// so the user is always empty.
//
// Nothing in this package returns an error to, or panics into, request
// processing. Absence at any level simply resolves to the empty string.
package trcuser
