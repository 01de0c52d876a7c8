// Package router wires handlers and middleware onto an Echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/ims-api/internal/handler"
	"github.com/iliyamo/ims-api/internal/metrics"
	"github.com/iliyamo/ims-api/internal/middleware"
)

// New returns an Echo instance with the envelope error handler, request
// validation and the global middleware chain installed.
func New(m *metrics.Registry) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler
	e.Validator = handler.NewValidator()

	e.Use(middleware.RequestID())
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger())
	if m != nil {
		e.Use(middleware.Metrics(m))
	}
	e.Use(echomw.BodyLimit("1M"))
	return e
}

// RegisterRoutes registers the unauthenticated operational endpoints.
func RegisterRoutes(e *echo.Echo, db handler.Pinger, m *metrics.Registry) {
	e.GET("/healthz", handler.Health)
	if db != nil {
		e.GET("/readyz", handler.Ready(db))
	}
	if m != nil {
		e.GET("/metrics", echo.WrapHandler(m.Handler()))
	}
}

// RegisterAuth registers login, logout and the session endpoints under
// base/auth.  Login is wrapped by the rate limiter.
func RegisterAuth(api *echo.Group, a *handler.AuthHandler, sessions middleware.SessionValidator, limiter echo.MiddlewareFunc) {
	g := api.Group("/auth")
	g.POST("/login", a.Login, limiter)
	g.POST("/logout", a.Logout)

	session := middleware.RequireSession(sessions)
	g.POST("/logout-all", a.LogoutAll, session)
	g.GET("/me", a.Me, session)
	g.GET("/sessions", a.Sessions, session)
}
