package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/iliyamo/ims-api/internal/apierror"
	"github.com/iliyamo/ims-api/internal/auth"
	"github.com/iliyamo/ims-api/internal/middleware"
	"github.com/iliyamo/ims-api/internal/model"
	"github.com/iliyamo/ims-api/internal/queue"
)

// AuthService is implemented by *auth.Service.
type AuthService interface {
	Login(ctx context.Context, username, password string, dev model.Device) (*auth.LoginResult, error)
	Logout(ctx context.Context, raw string) error
	LogoutAll(ctx context.Context) error
	ValidateSession(ctx context.Context, raw string) (*auth.Principal, error)
	Sessions(ctx context.Context) ([]auth.SessionInfo, error)
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Auth   AuthService
	Audit  *Auditor
	Logins *prometheus.CounterVec // optional, labelled by result
}

func NewAuthHandler(svc AuthService, audit *Auditor, logins *prometheus.CounterVec) *AuthHandler {
	if svc == nil {
		panic("nil service passed to NewAuthHandler")
	}
	return &AuthHandler{Auth: svc, Audit: audit, Logins: logins}
}

type loginReq struct {
	Username   string `json:"username" validate:"required"`
	Password   string `json:"password" validate:"required"`
	DeviceType string `json:"deviceType" validate:"max=32"`
	DeviceName string `json:"deviceName" validate:"max=128"`
	DeviceID   string `json:"deviceId" validate:"max=128"`
}

var errMissingCredentials = apierror.Validation("missing_credentials", "username and password are required")

func (h *AuthHandler) countLogin(result string) {
	if h.Logins != nil {
		h.Logins.WithLabelValues(result).Inc()
	}
}

// Login: POST /auth/login
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return errMissingCredentials
	}
	req.Username = strings.TrimSpace(req.Username)
	if err := c.Validate(&req); err != nil {
		if field, _, ok := validationFailed(err); ok && strings.HasPrefix(field, "Device") {
			return apierror.Validation("invalid_params", "device metadata too long")
		}
		return errMissingCredentials
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	res, err := h.Auth.Login(ctx, req.Username, req.Password, model.Device{
		Type: strings.TrimSpace(req.DeviceType),
		Name: strings.TrimSpace(req.DeviceName),
		ID:   strings.TrimSpace(req.DeviceID),
	})
	if err != nil {
		if apierror.Is(err, apierror.KindStorage) {
			h.countLogin("error")
		} else {
			h.countLogin("failure")
		}
		return err
	}
	h.countLogin("success")
	h.Audit.record(c, queue.AuditEvent{
		Action:     queue.ActionLogin,
		ActorID:    res.User.ID,
		Actor:      res.User.Username,
		TargetType: "user",
		TargetID:   res.User.ID,
		Details:    map[string]any{"device_type": req.DeviceType},
	})
	return respond(c, http.StatusOK, res)
}

// Logout: POST /auth/logout.  Always 200 unless storage fails.
func (h *AuthHandler) Logout(c echo.Context) error {
	raw := middleware.BearerToken(c.Request())
	ctx, cancel := withTimeout(c)
	defer cancel()

	var p *auth.Principal
	if raw != "" {
		p, _ = h.Auth.ValidateSession(ctx, raw)
	}
	if err := h.Auth.Logout(ctx, raw); err != nil {
		return err
	}
	if p != nil {
		h.Audit.record(c, queue.AuditEvent{
			Action:     queue.ActionLogout,
			ActorID:    p.User.ID,
			Actor:      p.User.Username,
			TargetType: "user",
			TargetID:   p.User.ID,
		})
	}
	return respond(c, http.StatusOK, echo.Map{"message": "logged out"})
}

// LogoutAll: POST /auth/logout-all
func (h *AuthHandler) LogoutAll(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.Auth.LogoutAll(ctx); err != nil {
		return err
	}
	p := auth.CurrentUser(ctx)
	h.Audit.record(c, queue.AuditEvent{
		Action:     queue.ActionLogout,
		TargetType: "user",
		TargetID:   p.User.ID,
		Details:    map[string]any{"all_sessions": true},
	})
	return respond(c, http.StatusOK, echo.Map{"message": "all sessions revoked"})
}

// Me: GET /auth/me
func (h *AuthHandler) Me(c echo.Context) error {
	p := auth.CurrentUser(c.Request().Context())
	if p == nil {
		return auth.ErrUnauthenticated
	}
	return respond(c, http.StatusOK, p.Profile())
}

// Sessions: GET /auth/sessions
func (h *AuthHandler) Sessions(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	list, err := h.Auth.Sessions(ctx)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, list)
}
