package trcuser_test

import (
	"sync"
)

// testSession is a session view backed by a map. A nil attrs map models a
// request without a session.
type testSession struct {
	mtx   sync.Mutex
	id    string
	attrs map[string]any
}

func newTestSession(id string) *testSession {
	return &testSession{id: id, attrs: map[string]any{}}
}

func (s *testSession) ID() (string, bool) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.attrs == nil {
		return "", false
	}
	return s.id, true
}

func (s *testSession) Attribute(name string) (any, bool) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	v, ok := s.attrs[name]
	return v, ok && v != nil
}

// set writes the attribute, and notifies the observer function, like a
// session manager would.
func (s *testSession) set(name string, value any, notify func(name string, value any)) {
	s.mtx.Lock()
	switch value {
	case nil:
		delete(s.attrs, name)
	default:
		s.attrs[name] = value
	}
	s.mtx.Unlock()

	if notify != nil {
		notify(name, value)
	}
}

// nestedTwo exposes a single field named "two".
type nestedTwo struct {
	two string
}

func (n nestedTwo) Field(name string) (any, bool) {
	if name == "two" {
		return n.two, true
	}
	return nil, false
}
