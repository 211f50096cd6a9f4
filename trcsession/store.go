package trcsession

import (
	"context"
	"errors"
)

// ErrNoSession is returned by store operations on sessions that don't exist.
var ErrNoSession = errors.New("no such session")

// Store persists session attributes.
type Store interface {
	// Create a new, empty session with the given ID.
	Create(ctx context.Context, id string) error

	// Exists returns true if a session with the given ID exists.
	Exists(ctx context.Context, id string) (bool, error)

	// Get returns the named attribute of the session. If the session exists
	// but has no such attribute, Get returns false and no error.
	Get(ctx context.Context, id, name string) (any, bool, error)

	// Set the named attribute of the session. A nil value removes the
	// attribute. Set returns ErrNoSession if the session doesn't exist.
	Set(ctx context.Context, id, name string, value any) error

	// Delete the session and all of its attributes. Deleting a session which
	// doesn't exist is not an error.
	Delete(ctx context.Context, id string) error
}
