package trcprincipal

import (
	"context"
	"errors"

	"github.com/sessiontrace/trc/trcuser"
)

// ErrUnauthenticated is returned by principal sources when the request has no
// authenticated identity.
var ErrUnauthenticated = errors.New("unauthenticated")

// Static returns a source which always returns a principal with the given
// name. If the name is empty, the source always returns ErrUnauthenticated.
func Static(name string) trcuser.PrincipalSource {
	return trcuser.PrincipalFunc(func(ctx context.Context) (trcuser.Principal, error) {
		if name == "" {
			return nil, ErrUnauthenticated
		}
		return trcuser.Name(name), nil
	})
}
