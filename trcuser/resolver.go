package trcuser

import (
	"fmt"
	"sync"
)

// Resolver produces per-request captures for a single policy. It's safe for
// concurrent use.
type Resolver struct {
	policy Policy
}

// NewResolver returns a resolver for the given policy.
func NewResolver(p Policy) *Resolver {
	return &Resolver{policy: p}
}

// Policy returns the policy of the resolver.
func (r *Resolver) Policy() Policy {
	return r.policy
}

// Begin should be called at the start of each request, and returns a new
// capture in the Idle state.
func (r *Resolver) Begin() *Capture {
	c := &Capture{policy: r.policy}
	c.observer = NewObserver(r.policy, &c.register)
	return c
}

// State of a capture.
type State int

const (
	// StateIdle is the state of a new capture, before any observation.
	StateIdle State = iota

	// StateObserving is the state once either channel has been observed.
	StateObserving

	// StateFinalized is the terminal state after Finalize.
	StateFinalized

	// StateAborted is the terminal state after Abort.
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateObserving:
		return "observing"
	case StateFinalized:
		return "finalized"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Source describes where a finalized user came from.
type Source string

const (
	SourceDisabled Source = "disabled" // the policy is disabled
	SourceRegister Source = "register" // an observed write or principal read
	SourceSession  Source = "session"  // the session as it exists at completion
	SourceEmpty    Source = "empty"    // nothing was found
)

// Capture is the per-request state of user resolution. Both observation
// channels feed a single register, which is read once by Finalize.
//
// A capture belongs to one request. It's nevertheless safe for concurrent use,
// so handlers which fan out work to other goroutines can't corrupt it.
type Capture struct {
	mtx      sync.Mutex
	policy   Policy
	state    State
	register Register
	observer *Observer
	source   Source
}

// State returns the current state of the capture.
func (c *Capture) State() State {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	return c.state
}

// Policy returns the policy of the capture.
func (c *Capture) Policy() Policy {
	return c.policy
}

// AttributeSet observes a write of a session attribute, see
// [Observer.AttributeSet]. It's a no-op if the policy is disabled, or the
// capture is finalized or aborted.
func (c *Capture) AttributeSet(sess Session, name string, value any) {
	if !c.policy.Enabled() {
		return
	}

	c.mtx.Lock()
	defer c.mtx.Unlock()

	if !c.observing() {
		return
	}

	c.observer.AttributeSet(sess, name, value)
}

// Gate wraps the application's principal source, see [Gate]. The name of the
// first principal successfully returned during the request is stored in the
// register, unless a user is already recorded. If the policy is disabled, the
// source is returned unwrapped.
func (c *Capture) Gate(src PrincipalSource) PrincipalSource {
	if !c.policy.Enabled() || src == nil {
		return src
	}

	return Gate(src, func(name string) {
		c.mtx.Lock()
		defer c.mtx.Unlock()

		if !c.observing() {
			return
		}

		c.register.StoreIfUnset(name)
	})
}

// observing transitions Idle to Observing, and reports whether observations
// are still accepted. The mutex must be held.
func (c *Capture) observing() bool {
	switch c.state {
	case StateIdle:
		c.state = StateObserving
		return true
	case StateObserving:
		return true
	default:
		return false
	}
}

// Finalize should be called once at request completion. It returns the user
// to record in the trace header, which may be empty, and true. The user is, in
// order of preference, the register value, the result of resolving the policy
// against the session as it exists now, or the empty string.
//
// If the capture was already finalized or aborted, Finalize returns false, and
// nothing should be recorded.
func (c *Capture) Finalize(sess Session) (string, bool) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if c.state == StateFinalized || c.state == StateAborted {
		return "", false
	}

	defer c.register.Reset()
	c.state = StateFinalized

	if !c.policy.Enabled() {
		c.source = SourceDisabled
		return "", true
	}

	if user, ok := c.register.Value(); ok && user != "" {
		c.source = SourceRegister
		return user, true
	}

	if user, ok := Resolve(sess, c.policy); ok {
		c.source = SourceSession
		return user, true
	}

	c.source = SourceEmpty
	return "", true
}

// Abort should be called instead of Finalize when the request doesn't
// complete. Observed state is discarded, and nothing should be recorded.
func (c *Capture) Abort() {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if c.state == StateFinalized {
		return
	}

	c.state = StateAborted
	c.register.Reset()
}

// Source returns where the finalized user came from, or the empty string if
// the capture hasn't been finalized.
func (c *Capture) Source() Source {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	return c.source
}
