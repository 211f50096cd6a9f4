package trcuser

// Observer reacts to session attribute writes made during a request, and keeps
// the register up to date with the user they imply.
type Observer struct {
	policy   Policy
	register *Register
}

// NewObserver returns an observer feeding the given register.
func NewObserver(p Policy, r *Register) *Observer {
	return &Observer{policy: p, register: r}
}

// AttributeSet should be called synchronously after every write of a session
// attribute during the request, including writes made transitively by code the
// request handler calls. A nil value represents removal.
//
// Only writes of the policy's root attribute are considered. The entire path is
// then evaluated against the session as modified by the write, since the
// written attribute may be the root of a longer nested path. A non-empty result
// is stored in the register; an empty result, e.g. from writing nil, leaves
// any previously recorded user in place. AttributeSet returns true if the
// register changed.
func (o *Observer) AttributeSet(sess Session, name string, value any) bool {
	if o.policy.mode != ModeAttributePath || name != o.policy.path[0] {
		return false
	}

	user, ok := Resolve(writtenSession{Session: sess, name: name, value: value}, o.policy)
	if !ok {
		return false
	}

	return o.register.Store(user)
}

// writtenSession overlays a just-written attribute onto the session, so that a
// concurrent write to the same session by another request can't hide the write
// being observed.
type writtenSession struct {
	Session
	name  string
	value any
}

func (s writtenSession) ID() (string, bool) {
	if s.Session == nil {
		return "", false
	}
	return s.Session.ID()
}

func (s writtenSession) Attribute(name string) (any, bool) {
	if name == s.name {
		return s.value, !isNil(s.value)
	}
	if s.Session == nil {
		return nil, false
	}
	return s.Session.Attribute(name)
}
