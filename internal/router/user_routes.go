package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ims-api/internal/auth"
	"github.com/iliyamo/ims-api/internal/handler"
	"github.com/iliyamo/ims-api/internal/middleware"
)

// RegisterUsers registers user and role management.  Every route needs a
// session plus the permission named next to it.
func RegisterUsers(api *echo.Group, u *handler.UserHandler, r *handler.RoleHandler, sessions middleware.SessionValidator) {
	session := middleware.RequireSession(sessions)
	need := middleware.RequirePermission

	api.GET("/users", u.List, session, need(auth.UsersRead))
	api.POST("/users", u.Create, session, need(auth.UsersCreate))
	api.GET("/users/:id", u.Get, session, need(auth.UsersRead))
	api.PUT("/users/:id", u.Update, session, need(auth.UsersUpdate))
	api.DELETE("/users/:id", u.Delete, session, need(auth.UsersDelete))

	api.GET("/roles", r.List, session, need(auth.UsersManageRoles))
}
