package trcuser

// Session is the narrow view of a request's session that resolution needs.
// The session itself is owned elsewhere, and may be shared with other
// in-flight requests.
//
// Neither method may create a session as a side effect. If the request has no
// session, both should return false.
type Session interface {
	// ID returns the identifier of the existing session.
	ID() (string, bool)

	// Attribute returns the named attribute of the existing session.
	Attribute(name string) (any, bool)
}

// Resolve evaluates the policy against the session, and returns the resulting
// user and true, or the empty string and false if there is no user. Absence at
// any level, including a nil session, is a normal outcome. Resolve never
// panics: a fault in a value's accessor or string conversion is treated the
// same as absence.
func Resolve(sess Session, p Policy) (user string, ok bool) {
	if sess == nil || !p.Enabled() {
		return "", false
	}

	defer func() {
		if recover() != nil {
			user, ok = "", false
		}
	}()

	switch p.mode {
	case ModeSessionID:
		id, found := sess.ID()
		if !found || id == "" {
			return "", false
		}
		return id, true

	case ModeAttributePath:
		root, found := sess.Attribute(p.path[0])
		if !found {
			return "", false
		}
		return resolvePath(root, p.path[1:])

	default:
		return "", false
	}
}

// resolvePath walks the remaining path segments from v, and converts the leaf
// value to its text form.
func resolvePath(v any, path []string) (string, bool) {
	for _, name := range path {
		if isNil(v) {
			return "", false
		}
		next, ok := field(v, name)
		if !ok {
			return "", false
		}
		v = next
	}
	return Text(v)
}
