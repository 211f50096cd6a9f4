package trchttp

import (
	"context"
	"net/http"
	"time"

	"github.com/sessiontrace/trc"
	"github.com/sessiontrace/trc/internal/trcutil"
	"github.com/sessiontrace/trc/trcuser"
)

// NewTracer creates traces, typically a [trc.Collector].
type NewTracer interface {
	NewTrace(ctx context.Context, category string) (context.Context, trc.Trace)
}

// SessionBinder binds the session of a request, if any, to that request. The
// returned request is what the handler is served with, and the returned
// session is what the user is resolved against. Every session attribute write
// made during the request must be passed to observe, synchronously, after it's
// been applied. Binding must not create a session.
type SessionBinder interface {
	Bind(w http.ResponseWriter, r *http.Request, observe func(name string, value any)) (*http.Request, trcuser.Session)
}

// MiddlewareConfig captures the configuration parameters for the middleware.
type MiddlewareConfig struct {
	// Tracer creates a trace for each request, and is required.
	Tracer NewTracer

	// Category returns the trace category for a request. If not provided, the
	// request path is used.
	Category func(*http.Request) string

	// Resolver determines the user recorded in each trace header. If not
	// provided, user resolution is disabled, and traces record no user.
	Resolver *trcuser.Resolver

	// Sessions binds sessions to requests. If not provided, requests have no
	// session.
	Sessions SessionBinder

	// Principals returns the application's principal source for a request.
	// The middleware wraps it, and injects it into the request context, where
	// handlers get it via [trcuser.CurrentPrincipal]. Optional.
	Principals func(*http.Request) trcuser.PrincipalSource

	// Metrics are updated for each request, if provided.
	Metrics *Metrics

	// RequestHeaders records every request header in the trace.
	RequestHeaders bool
}

// Middleware decorates an HTTP handler and creates a trace for each incoming
// request. Basic request metadata, like method, path, duration, and response
// code, is recorded in the trace.
//
// The user is resolved for each request that completes, and recorded in the
// trace header once, after the handler returns. Requests which don't complete,
// because the handler panicked or the client went away, are aborted: they
// record no user.
func Middleware(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	if cfg.Tracer == nil {
		panic("trchttp: nil tracer")
	}
	if cfg.Category == nil {
		cfg.Category = func(r *http.Request) string { return r.URL.Path }
	}
	if cfg.Resolver == nil {
		cfg.Resolver = trcuser.NewResolver(trcuser.Policy{})
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, tr := cfg.Tracer.NewTrace(r.Context(), cfg.Category(r))
			defer tr.Finish()

			tr.Tracef("%s %s %s", r.RemoteAddr, r.Method, r.URL.Path)

			if cfg.RequestHeaders {
				for k, vs := range r.Header {
					for _, v := range vs {
						tr.Tracef("> %s: %v", k, v)
					}
				}
			}

			var (
				capture = cfg.Resolver.Begin()
				sess    trcuser.Session
				iw      = newInterceptor(w)
			)

			r = r.WithContext(ctx)

			if cfg.Sessions != nil {
				r, sess = cfg.Sessions.Bind(iw, r, func(name string, value any) {
					capture.AttributeSet(sess, name, value)
				})
			}

			if cfg.Principals != nil {
				if src := cfg.Principals(r); src != nil {
					r = r.WithContext(trcuser.WithPrincipalSource(r.Context(), capture.Gate(src)))
				}
			}

			completed := false
			defer func(begin time.Time) {
				took := time.Since(begin)

				outcome := finishUser(r.Context(), tr, capture, sess, completed)
				if cfg.Metrics != nil {
					cfg.Metrics.observe(outcome, iw.Code(), took)
				}

				tr.Tracef("HTTP %d, %s, %s", iw.Code(), trcutil.HumanizeBytes(iw.Written()), trcutil.HumanizeDuration(took))
			}(time.Now())

			next.ServeHTTP(iw, r)
			completed = true
		})
	}
}

// finishUser finalizes or aborts the capture, records the user in the trace
// header if appropriate, and returns the outcome for metrics.
func finishUser(ctx context.Context, tr trc.Trace, capture *trcuser.Capture, sess trcuser.Session, completed bool) string {
	switch {
	case !completed:
		capture.Abort()
		tr.Errorf("request aborted: handler panicked")
		return outcomeAborted

	case ctx.Err() != nil:
		capture.Abort()
		tr.Errorf("request aborted: %v", context.Cause(ctx))
		return outcomeAborted
	}

	user, ok := capture.Finalize(sess)
	if !ok {
		return outcomeAborted
	}

	if p := capture.Policy(); p.Enabled() {
		tr.LazyTracef("user %q from %s (%s)", user, capture.Source(), p)
	}

	tr.SetUser(user)

	return string(capture.Source())
}

//
//
//

type interceptor struct {
	http.ResponseWriter

	code int
	n    int
}

func newInterceptor(w http.ResponseWriter) *interceptor {
	return &interceptor{ResponseWriter: w}
}

func (i *interceptor) WriteHeader(code int) {
	if i.code == 0 {
		i.code = code
	}
	i.ResponseWriter.WriteHeader(code)
}

func (i *interceptor) Write(p []byte) (int, error) {
	if i.code == 0 {
		i.code = http.StatusOK
	}
	n, err := i.ResponseWriter.Write(p)
	i.n += n
	return n, err
}

// Flush implements [http.Flusher], if the wrapped writer does.
func (i *interceptor) Flush() {
	if f, ok := i.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap supports [http.ResponseController].
func (i *interceptor) Unwrap() http.ResponseWriter {
	return i.ResponseWriter
}

func (i *interceptor) Code() int {
	if i.code == 0 {
		return http.StatusOK
	}
	return i.code
}

func (i *interceptor) Written() int {
	return i.n
}
