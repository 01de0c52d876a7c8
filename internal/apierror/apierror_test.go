package apierror

import (
	"database/sql"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusByKind(t *testing.T) {
	cases := []struct {
		err  *Error
		want int
	}{
		{Validation("no_data", "x"), http.StatusBadRequest},
		{NotFound("no_customer", "x"), http.StatusNotFound},
		{Unauthenticated("unauthorized", "x"), http.StatusUnauthorized},
		{Forbidden("forbidden", "x"), http.StatusForbidden},
		{Conflict("user_exists", "x"), http.StatusConflict},
		{Storage("db_error", sql.ErrConnDone), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.err.Status(), tc.err.Code)
	}
}

func TestFrom_WrapsUnknownAndKeepsKnown(t *testing.T) {
	known := Validation("invalid_id", "bad id")
	assert.Same(t, known, From(fmt.Errorf("handler: %w", known)))

	e := From(sql.ErrConnDone)
	require.Equal(t, KindStorage, e.Kind)
	assert.ErrorIs(t, e, sql.ErrConnDone)
	assert.NotContains(t, e.Body().Error.Message, "connection")
}

func TestIs(t *testing.T) {
	assert.True(t, Is(fmt.Errorf("wrap: %w", Forbidden("f", "m")), KindAuthorization))
	assert.False(t, Is(sql.ErrNoRows, KindNotFound))
}

func TestBody(t *testing.T) {
	b := NotFound("no_customer", "customer not found").Body()
	assert.False(t, b.Success)
	assert.Equal(t, Detail{Code: "no_customer", Message: "customer not found", Status: 404}, b.Error)
}
