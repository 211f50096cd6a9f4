package trcsession

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/sessiontrace/trc/trcuser"
)

// Handle is the request-scoped view of a session. A request without a session
// still has a handle; the session is created on the first attribute write.
//
// Handles are safe for concurrent use, but belong to a single request.
type Handle struct {
	ctx     context.Context
	manager *Manager
	w       http.ResponseWriter
	observe func(name string, value any)

	mtx      sync.Mutex
	cookieID string // from the request, unverified
	id       string // verified, or created by this request
	checked  bool
	gone     bool // invalidated by this request
}

var _ trcuser.Session = (*Handle)(nil)

// ID returns the ID of the existing session. It never creates a session.
func (h *Handle) ID() (string, bool) {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	id := h.resolveID()
	return id, id != ""
}

// resolveID verifies the cookie ID against the store at most once. The mutex
// must be held.
func (h *Handle) resolveID() string {
	if h.gone {
		return ""
	}

	if h.id != "" || h.checked {
		return h.id
	}

	h.checked = true

	if h.cookieID == "" {
		return ""
	}

	exists, err := h.manager.store.Exists(h.ctx, h.cookieID)
	if err != nil {
		traceErrorf(h.ctx, "session: check %s: %v", h.cookieID, err)
		return ""
	}

	if exists {
		h.id = h.cookieID
	}

	return h.id
}

// Attribute returns the named attribute of the existing session. It never
// creates a session. Store errors are treated as absence.
func (h *Handle) Attribute(name string) (any, bool) {
	h.mtx.Lock()
	id := h.resolveID()
	h.mtx.Unlock()

	if id == "" {
		return nil, false
	}

	v, ok, err := h.manager.store.Get(h.ctx, id, name)
	if err != nil {
		if !errors.Is(err, ErrNoSession) {
			traceErrorf(h.ctx, "session: get %s: %v", name, err)
		}
		return nil, false
	}

	return v, ok && v != nil
}

// SetAttribute writes the named attribute, creating the session if necessary.
// A nil value removes the attribute. Once the store has been updated, the
// write is passed to the handle's observer.
func (h *Handle) SetAttribute(ctx context.Context, name string, value any) error {
	id, err := h.idForWrite(ctx, value == nil)
	if err != nil {
		return err
	}

	if id != "" {
		if err := h.manager.store.Set(ctx, id, name, value); err != nil {
			return fmt.Errorf("set %s: %w", name, err)
		}
	}

	if h.observe != nil {
		h.observe(name, value)
	}

	return nil
}

// RemoveAttribute is equivalent to SetAttribute with a nil value.
func (h *Handle) RemoveAttribute(ctx context.Context, name string) error {
	return h.SetAttribute(ctx, name, nil)
}

// idForWrite returns the session ID to write to, creating a session unless
// the write is a removal. Removals from a request without a session return
// the empty ID.
func (h *Handle) idForWrite(ctx context.Context, removal bool) (string, error) {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if id := h.resolveID(); id != "" || removal {
		return id, nil
	}

	id := h.manager.newID()
	if err := h.manager.store.Create(ctx, id); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	h.id, h.checked, h.gone = id, true, false
	h.manager.setCookie(h.w, id)

	return id, nil
}

// Invalidate deletes the session, if there is one, and clears the cookie. A
// later write through the same handle creates a new session.
func (h *Handle) Invalidate(ctx context.Context) error {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	id := h.resolveID()
	if id == "" {
		return nil
	}

	if err := h.manager.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("invalidate: %w", err)
	}

	h.id, h.cookieID, h.gone = "", "", true
	h.manager.clearCookie(h.w)

	return nil
}
