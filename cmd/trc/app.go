package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sessiontrace/trc"
	"github.com/sessiontrace/trc/trcecho"
	"github.com/sessiontrace/trc/trchttp"
	"github.com/sessiontrace/trc/trcprincipal"
	"github.com/sessiontrace/trc/trcsession"
	"github.com/sessiontrace/trc/trcuser"
)

// loginAttribute is the session attribute written by the login route. Its
// value is an object with a "name" field, so the policy "login.name" selects
// the logged-in user.
const loginAttribute = "login"

type appConfig struct {
	Collector      *trc.Collector
	Policy         trcuser.Policy
	Store          trcsession.Store
	Principals     *trcprincipal.JWTSource
	Registry       *prometheus.Registry
	Logger         *zap.Logger
	TokenTTL       time.Duration
	RequestHeaders bool
}

type app struct {
	principals *trcprincipal.JWTSource
	logger     *zap.Logger
	tokenTTL   time.Duration
}

// newApp returns the demo application. Routes under /app are traced, and
// their trace users are resolved per the configured policy. Traces are served
// at /traces, and metrics at /metrics.
func newApp(cfg appConfig) http.Handler {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = time.Hour
	}

	a := &app{
		principals: cfg.Principals,
		logger:     cfg.Logger,
		tokenTTL:   cfg.TokenTTL,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.GET("/traces", echo.WrapHandler(trchttp.NewServer(cfg.Collector)))
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{})))

	g := e.Group("/app", trcecho.Middleware(trchttp.MiddlewareConfig{
		Tracer:         cfg.Collector,
		Resolver:       trcuser.NewResolver(cfg.Policy),
		Sessions:       trcsession.NewManager(trcsession.ManagerConfig{Store: cfg.Store}),
		Principals:     cfg.Principals.ForRequest,
		Metrics:        trchttp.NewMetrics(cfg.Registry),
		RequestHeaders: cfg.RequestHeaders,
	}))
	g.POST("/login", a.login)
	g.POST("/logout", a.logout)
	g.GET("/whoami", a.whoami)
	g.GET("/session/:name", a.getAttribute)
	g.PUT("/session/:name", a.setAttribute)
	g.DELETE("/session/:name", a.removeAttribute)

	return e
}

func session(c echo.Context) (*trcsession.Handle, error) {
	h, ok := trcsession.FromContext(c.Request().Context())
	if !ok {
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "no session")
	}
	return h, nil
}

func (a *app) login(c echo.Context) error {
	ctx := c.Request().Context()

	name := c.FormValue("name")
	if name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}

	h, err := session(c)
	if err != nil {
		return err
	}

	if err := h.SetAttribute(ctx, loginAttribute, map[string]any{
		"name":  name,
		"since": time.Now().UTC().Format(time.RFC3339),
	}); err != nil {
		return err
	}

	token, err := a.principals.Sign(name, a.tokenTTL)
	if err != nil {
		return err
	}

	trc.Get(ctx).Tracef("logged in %q", name)
	a.logger.Info("login", zap.String("name", name))

	return c.JSON(http.StatusOK, map[string]string{"token": token})
}

func (a *app) logout(c echo.Context) error {
	h, err := session(c)
	if err != nil {
		return err
	}

	if err := h.Invalidate(c.Request().Context()); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

func (a *app) whoami(c echo.Context) error {
	p, err := trcuser.CurrentPrincipal(c.Request().Context())
	switch {
	case errors.Is(err, trcprincipal.ErrUnauthenticated):
		return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	case err != nil:
		return err
	}

	return c.JSON(http.StatusOK, map[string]string{"name": p.Name()})
}

func (a *app) getAttribute(c echo.Context) error {
	h, err := session(c)
	if err != nil {
		return err
	}

	v, ok := h.Attribute(c.Param("name"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "no such attribute")
	}

	return c.JSON(http.StatusOK, map[string]any{"value": v})
}

func (a *app) setAttribute(c echo.Context) error {
	h, err := session(c)
	if err != nil {
		return err
	}

	if err := h.SetAttribute(c.Request().Context(), c.Param("name"), c.FormValue("value")); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

func (a *app) removeAttribute(c echo.Context) error {
	h, err := session(c)
	if err != nil {
		return err
	}

	if err := h.RemoveAttribute(c.Request().Context(), c.Param("name")); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}
