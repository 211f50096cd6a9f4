package trcuser

import (
	"context"
	"errors"
)

// Principal is the authenticated identity of the current request, as
// determined by the application.
type Principal interface {
	Name() string
}

// PrincipalSource is the application's accessor for the current principal.
// It's allowed to be expensive, and to fail, e.g. by performing lazy
// authentication.
type PrincipalSource interface {
	Principal(ctx context.Context) (Principal, error)
}

// PrincipalFunc adapts a function to a PrincipalSource.
type PrincipalFunc func(ctx context.Context) (Principal, error)

// Principal implements PrincipalSource.
func (f PrincipalFunc) Principal(ctx context.Context) (Principal, error) { return f(ctx) }

// Name is a trivial Principal.
type Name string

// Name implements Principal.
func (n Name) Name() string { return string(n) }

// Gate wraps the application's principal source, so that the names of
// principals it successfully returns are passed to observe. The wrapped source
// is only called when the application calls the returned source; Gate never
// calls it on its own. Results, including errors and panics, are returned to
// the caller unchanged.
func Gate(src PrincipalSource, observe func(name string)) PrincipalSource {
	return PrincipalFunc(func(ctx context.Context) (Principal, error) {
		p, err := src.Principal(ctx)
		if err == nil && !isNil(p) {
			observeName(p, observe)
		}
		return p, err
	})
}

// observeName reads the principal name on behalf of the tracing layer, so a
// faulty Name implementation is contained here.
func observeName(p Principal, observe func(name string)) {
	defer func() { recover() }()
	if name := p.Name(); name != "" {
		observe(name)
	}
}

//
//
//

// ErrNoPrincipalSource is returned by CurrentPrincipal when the context
// doesn't carry a principal source.
var ErrNoPrincipalSource = errors.New("no principal source in context")

type principalSourceKey struct{}

// WithPrincipalSource returns a context carrying the given principal source,
// typically a source returned by Gate.
func WithPrincipalSource(ctx context.Context, src PrincipalSource) context.Context {
	return context.WithValue(ctx, principalSourceKey{}, src)
}

// CurrentPrincipal is the accessor applications use to get the principal for
// the current request. It calls the principal source in the context, and
// returns its results unchanged.
func CurrentPrincipal(ctx context.Context) (Principal, error) {
	src, ok := ctx.Value(principalSourceKey{}).(PrincipalSource)
	if !ok || src == nil {
		return nil, ErrNoPrincipalSource
	}
	return src.Principal(ctx)
}
