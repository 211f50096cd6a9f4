package trcuser

// Register is a sticky holder for the user resolved during a single request.
// Once it holds a non-empty value, it can only be overwritten by another
// non-empty value: writes of the empty string are no-ops, so the register
// never regresses to unset.
//
// A register belongs to exactly one request, and isn't safe for concurrent
// use on its own.
type Register struct {
	value string
	set   bool
}

// Store records s if it's non-empty, overwriting any previous value. It
// returns true if the register changed.
func (r *Register) Store(s string) bool {
	if s == "" || (r.set && r.value == s) {
		return false
	}
	r.value, r.set = s, true
	return true
}

// StoreIfUnset records s only if it's non-empty and the register doesn't
// already hold a value. It returns true if the register changed.
func (r *Register) StoreIfUnset(s string) bool {
	if s == "" || r.set {
		return false
	}
	r.value, r.set = s, true
	return true
}

// Value returns the recorded value and true, or the empty string and false if
// nothing has been recorded.
func (r *Register) Value() (string, bool) {
	return r.value, r.set
}

// Reset discards the recorded value.
func (r *Register) Reset() {
	r.value, r.set = "", false
}
