package trcuser

import (
	"strings"
	"unicode"
)

// Mode is the strategy a policy uses to derive the user.
type Mode int

const (
	// ModeDisabled means no user is ever resolved.
	ModeDisabled Mode = iota

	// ModeSessionID uses the identifier of the existing session.
	ModeSessionID

	// ModeAttributePath evaluates a dotted path against session attributes.
	ModeAttributePath
)

func (m Mode) String() string {
	switch m {
	case ModeDisabled:
		return "disabled"
	case ModeSessionID:
		return "session-id"
	case ModeAttributePath:
		return "attribute-path"
	default:
		return "unknown"
	}
}

// SessionIDToken is the policy string selecting ModeSessionID.
const SessionIDToken = "::id"

// Policy is an immutable, parsed attribute path policy. The zero value is a
// disabled policy.
type Policy struct {
	mode    Mode
	raw     string
	path    []string
	invalid bool
}

// ParsePolicy parses the configured policy string. Surrounding whitespace is
// ignored. The empty string yields a disabled policy, SessionIDToken yields a
// session ID policy, and any other string is treated as a dotted attribute
// path.
//
// Strings which can't be a valid path, such as those with empty segments,
// whitespace within segments, or an unrecognized "::" token, yield a disabled
// policy for which Invalid returns true. They are never fatal.
func ParsePolicy(s string) Policy {
	s = strings.TrimSpace(s)

	switch {
	case s == "":
		return Policy{}
	case s == SessionIDToken:
		return Policy{mode: ModeSessionID, raw: s}
	case strings.HasPrefix(s, "::"):
		return Policy{raw: s, invalid: true}
	}

	path := strings.Split(s, ".")
	for _, segment := range path {
		if segment == "" || strings.IndexFunc(segment, unicode.IsSpace) >= 0 {
			return Policy{raw: s, invalid: true}
		}
	}

	return Policy{mode: ModeAttributePath, raw: s, path: path}
}

// Mode returns the mode of the policy.
func (p Policy) Mode() Mode { return p.mode }

// Enabled returns true unless the policy is disabled.
func (p Policy) Enabled() bool { return p.mode != ModeDisabled }

// Invalid returns true if the policy was parsed from a string that couldn't be
// interpreted, and was therefore disabled.
func (p Policy) Invalid() bool { return p.invalid }

// Root returns the name of the session attribute at the root of the path, or
// the empty string if the policy isn't an attribute path.
func (p Policy) Root() string {
	if p.mode != ModeAttributePath {
		return ""
	}
	return p.path[0]
}

// Path returns a copy of the segments of the attribute path, or nil if the
// policy isn't an attribute path.
func (p Policy) Path() []string {
	if p.mode != ModeAttributePath {
		return nil
	}
	return append([]string(nil), p.path...)
}

// String returns the policy string that was parsed.
func (p Policy) String() string {
	return p.raw
}
