// Package trcecho adapts the trchttp middleware to echo.
package trcecho

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sessiontrace/trc"
	"github.com/sessiontrace/trc/trchttp"
)

type routeContextKey struct{}

// Middleware returns an echo middleware equivalent to [trchttp.Middleware].
// It should be installed with Echo.Use, so that routes are known. If cfg has no
// category function, traces are categorized by method and route, e.g.
// "GET /users/:id".
//
// Handler errors are recorded in the trace, and passed to the echo error
// handler before the request is finalized, so the trace reflects the response
// that was actually sent.
func Middleware(cfg trchttp.MiddlewareConfig) echo.MiddlewareFunc {
	if cfg.Category == nil {
		cfg.Category = func(r *http.Request) string {
			if route, ok := r.Context().Value(routeContextKey{}).(string); ok && route != "" {
				return route
			}
			return r.URL.Path
		}
	}

	wrapped := echo.WrapMiddleware(trchttp.Middleware(cfg))

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		inner := wrapped(func(c echo.Context) error {
			if err := next(c); err != nil {
				trc.Get(c.Request().Context()).Errorf("handler error: %v", err)
				c.Error(err)
			}
			return nil
		})

		return func(c echo.Context) error {
			r := c.Request()
			route := r.Method + " " + c.Path()
			c.SetRequest(r.WithContext(context.WithValue(r.Context(), routeContextKey{}, route)))
			return inner(c)
		}
	}
}
