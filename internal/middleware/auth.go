package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ims-api/internal/apierror"
	"github.com/iliyamo/ims-api/internal/auth"
)

// ErrForbidden is returned when an authenticated user lacks a capability.
var ErrForbidden = apierror.Forbidden("forbidden", "insufficient permissions")

// SessionValidator resolves a raw bearer token to its principal.
type SessionValidator interface {
	ValidateSession(ctx context.Context, raw string) (*auth.Principal, error)
}

// BearerToken returns the token of an "Authorization: Bearer <token>"
// header.  The scheme is matched case-insensitively; anything else yields "".
func BearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get(echo.HeaderAuthorization))
	scheme, tok, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(tok)
}

// RequireSession validates the bearer token and stores the principal in the
// request context.  The user id is also set as "user_id" on the Echo
// context, which the rate limiter uses for per-user keys.
func RequireSession(v SessionValidator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := BearerToken(c.Request())
			if raw == "" {
				return auth.ErrUnauthenticated
			}
			req := c.Request()
			p, err := v.ValidateSession(req.Context(), raw)
			if err != nil {
				return err
			}
			c.SetRequest(req.WithContext(auth.WithPrincipal(req.Context(), p)))
			c.Set(ContextUserID, strconv.FormatUint(p.User.ID, 10))
			return next(c)
		}
	}
}

// RequirePermission rejects requests whose user does not hold perm.  It
// must run after RequireSession; without a principal the request is 401.
func RequirePermission(perm auth.Permission) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p := auth.CurrentUser(c.Request().Context())
			if p == nil {
				return auth.ErrUnauthenticated
			}
			if !p.Permissions.Has(perm) {
				return ErrForbidden
			}
			return next(c)
		}
	}
}

// OptionalSession resolves the principal when a valid bearer token is
// present and otherwise lets the request through anonymously.
func OptionalSession(v SessionValidator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := BearerToken(c.Request())
			if raw == "" {
				return next(c)
			}
			req := c.Request()
			if p, err := v.ValidateSession(req.Context(), raw); err == nil {
				c.SetRequest(req.WithContext(auth.WithPrincipal(req.Context(), p)))
				c.Set(ContextUserID, strconv.FormatUint(p.User.ID, 10))
			}
			return next(c)
		}
	}
}
