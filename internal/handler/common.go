// Package handler holds the Echo HTTP handlers.  Every response, success or
// failure, is wrapped in the JSON envelope defined by package apierror.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/ims-api/internal/apierror"
)

// requestTimeout bounds the storage calls of one request.
var requestTimeout = 5 * time.Second

// SetRequestTimeout overrides the per-request storage timeout.  Non-positive
// values are ignored.
func SetRequestTimeout(d time.Duration) {
	if d > 0 {
		requestTimeout = d
	}
}

func withTimeout(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// respond writes data inside a success envelope.
func respond(c echo.Context, status int, data any) error {
	return c.JSON(status, apierror.OK(data))
}

// parseID reads a positive integer path parameter.
func parseID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(c.Param(name)), 10, 64)
	if err != nil || id == 0 {
		return 0, apierror.Validation("invalid_id", "invalid "+name)
	}
	return id, nil
}

// ErrorHandler renders any error returned by a handler or middleware as a
// failure envelope.  Storage causes are logged and replaced by a generic
// message.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	ae := toAPIError(err)
	if ae.Kind == apierror.KindStorage {
		log.Error().Err(err).
			Str("code", ae.Code).
			Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
			Str("route", c.Path()).
			Msg("request failed")
	}
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(ae.Status())
	} else {
		err = c.JSON(ae.Status(), ae.Body())
	}
	if err != nil {
		log.Error().Err(err).Msg("write error response")
	}
}

func toAPIError(err error) *apierror.Error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok && m != "" {
			msg = m
		}
		switch he.Code {
		case http.StatusNotFound:
			return apierror.NotFound("not_found", msg)
		case http.StatusMethodNotAllowed:
			return &apierror.Error{Kind: apierror.KindValidation, Code: "method_not_allowed", Message: msg, HTTPStatus: he.Code}
		case http.StatusUnauthorized:
			return apierror.Unauthenticated("unauthorized", msg)
		case http.StatusForbidden:
			return apierror.Forbidden("forbidden", msg)
		case http.StatusTooManyRequests:
			return apierror.TooManyRequests("too_many_requests", msg)
		}
		if he.Code >= 400 && he.Code < 500 {
			return apierror.Validation("bad_request", msg)
		}
		return apierror.Storage("internal_error", err)
	}
	return apierror.From(err)
}

// Validator adapts go-playground/validator to echo.Validator.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{v: validator.New(validator.WithRequiredStructEnabled())}
}

func (v *Validator) Validate(i any) error { return v.v.Struct(i) }

// validationFailed returns the name of the first failing field and tag.
func validationFailed(err error) (field, tag string, ok bool) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return verrs[0].Field(), verrs[0].Tag(), true
	}
	return "", "", false
}

// missingRequired reports whether any field failed its "required" rule.
func missingRequired(err error) bool {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return false
	}
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			return true
		}
	}
	return false
}
