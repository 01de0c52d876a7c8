package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ims-api/internal/apierror"
	"github.com/iliyamo/ims-api/internal/auth"
)

// RoleHandler lists roles.  Roles are managed in the database directly.
type RoleHandler struct {
	Roles RoleStore
}

func NewRoleHandler(roles RoleStore) *RoleHandler {
	if roles == nil {
		panic("nil store passed to NewRoleHandler")
	}
	return &RoleHandler{Roles: roles}
}

type roleView struct {
	ID          uint64            `json:"id"`
	Name        string            `json:"name"`
	DisplayName string            `json:"displayName"`
	Status      string            `json:"status"`
	Permissions []auth.Permission `json:"permissions"`
}

// List: GET /roles.  Unregistered permission strings are left out.
func (h *RoleHandler) List(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	roles, err := h.Roles.List(ctx)
	if err != nil {
		return apierror.Storage("db_error", err)
	}
	out := make([]roleView, 0, len(roles))
	for _, r := range roles {
		perms := []auth.Permission{}
		for _, raw := range r.Permissions {
			if p, ok := auth.ParsePermission(raw); ok {
				perms = append(perms, p)
			}
		}
		out = append(out, roleView{ID: r.ID, Name: r.Name, DisplayName: r.DisplayName, Status: r.Status, Permissions: perms})
	}
	return respond(c, http.StatusOK, out)
}
