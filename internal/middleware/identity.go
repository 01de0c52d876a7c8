package middleware

import "github.com/labstack/echo/v4"

// ContextUserID is the Echo context key holding the authenticated user id
// as a decimal string.
const ContextUserID = "user_id"

// currentUserID returns the id stored by RequireSession, or "anon" on
// public routes.
func currentUserID(c echo.Context) string {
	if s, ok := c.Get(ContextUserID).(string); ok && s != "" {
		return s
	}
	return "anon"
}
