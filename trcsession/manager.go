package trcsession

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sessiontrace/trc"
	"github.com/sessiontrace/trc/trcuser"
)

// Manager binds sessions to requests.
type Manager struct {
	store  Store
	cookie http.Cookie
	newID  func() string
}

// ManagerConfig captures the configuration parameters for a manager.
type ManagerConfig struct {
	// Store is required.
	Store Store

	// CookieName is the name of the session cookie. If not provided, the
	// DefaultCookieName is used.
	CookieName string

	// CookiePath is the path of the session cookie. If not provided, "/" is
	// used.
	CookiePath string

	// CookieMaxAge is the max age of the session cookie. Zero means a session
	// cookie, which expires when the browser is closed.
	CookieMaxAge time.Duration

	// Secure sets the Secure attribute of the session cookie.
	Secure bool

	// NewID generates session IDs. If not provided, random UUIDs are used.
	NewID func() string
}

// DefaultCookieName is the session cookie name used when none is provided.
const DefaultCookieName = "trcsession"

// NewManager returns a manager with the given config. It panics if the store
// is nil.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Store == nil {
		panic("trcsession: nil store")
	}
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.CookiePath == "" {
		cfg.CookiePath = "/"
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}

	return &Manager{
		store: cfg.Store,
		cookie: http.Cookie{
			Name:     cfg.CookieName,
			Path:     cfg.CookiePath,
			MaxAge:   int(cfg.CookieMaxAge / time.Second),
			Secure:   cfg.Secure,
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		},
		newID: cfg.NewID,
	}
}

// Bind a handle for the request's session, if any, to the request. The
// returned request carries the handle in its context, see [FromContext]. The
// handle is also returned as a [trcuser.Session] view.
//
// Every attribute write made through the handle is passed to observe, after
// the write has been applied. Observe may be nil.
func (m *Manager) Bind(w http.ResponseWriter, r *http.Request, observe func(name string, value any)) (*http.Request, trcuser.Session) {
	h := &Handle{
		ctx:     r.Context(),
		manager: m,
		w:       w,
		observe: observe,
	}

	if c, err := r.Cookie(m.cookie.Name); err == nil && c.Value != "" {
		h.cookieID = c.Value
	}

	r = r.WithContext(context.WithValue(r.Context(), handleContextKey{}, h))
	h.ctx = r.Context()

	return r, h
}

// Handler is an HTTP middleware which binds sessions to requests without
// observing writes.
func (m *Manager) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r, _ = m.Bind(w, r, nil)
		next.ServeHTTP(w, r)
	})
}

func (m *Manager) setCookie(w http.ResponseWriter, id string) {
	c := m.cookie
	c.Value = id
	http.SetCookie(w, &c)
}

func (m *Manager) clearCookie(w http.ResponseWriter) {
	c := m.cookie
	c.Value = ""
	c.MaxAge = -1
	http.SetCookie(w, &c)
}

type handleContextKey struct{}

// FromContext returns the session handle bound to the request context. If no
// handle was bound, it returns nil and false.
func FromContext(ctx context.Context) (*Handle, bool) {
	h, ok := ctx.Value(handleContextKey{}).(*Handle)
	return h, ok && h != nil
}

// traceErrorf records store errors in the request trace, if there is one.
func traceErrorf(ctx context.Context, format string, args ...any) {
	if tr, ok := trc.MaybeGet(ctx); ok {
		tr.LazyErrorf(format, args...)
	}
}
