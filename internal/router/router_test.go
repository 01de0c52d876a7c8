package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ims-api/internal/auth"
	"github.com/iliyamo/ims-api/internal/handler"
	"github.com/iliyamo/ims-api/internal/metrics"
	"github.com/iliyamo/ims-api/internal/model"
)

const base = "/wp-json/ims/v1"

type tokens map[string]*auth.Principal

func (t tokens) ValidateSession(_ context.Context, raw string) (*auth.Principal, error) {
	if p, ok := t[raw]; ok {
		return p, nil
	}
	return nil, auth.ErrUnauthenticated
}

type emptyUsers struct{}

func (emptyUsers) ListWithRoles(context.Context) ([]model.UserWithRoles, error) {
	return []model.UserWithRoles{}, nil
}
func (emptyUsers) GetWithRoles(context.Context, uint64) (*model.UserWithRoles, error) {
	return &model.UserWithRoles{}, nil
}
func (emptyUsers) Create(context.Context, *model.User, *uint64) (uint64, error) { return 1, nil }
func (emptyUsers) Update(context.Context, uint64, model.UserPatch) error        { return nil }
func (emptyUsers) SoftDelete(context.Context, uint64, time.Time) error          { return nil }
func (emptyUsers) List(context.Context) ([]model.Role, error)                   { return []model.Role{}, nil }
func (emptyUsers) GetByName(context.Context, string) (*model.Role, error) {
	return &model.Role{ID: 1}, nil
}
func (emptyUsers) RevokeAllForUser(context.Context, uint64) error { return nil }

func newTestServer() http.Handler {
	m := metrics.NewRegistry()
	e := New(m)
	RegisterRoutes(e, nil, m)

	sessions := tokens{
		"reader": {User: model.User{ID: 1}, Permissions: auth.PermissionSet{auth.UsersRead: {}}},
		"nobody": {User: model.User{ID: 2}, Permissions: auth.PermissionSet{}},
	}
	api := e.Group(base)
	users := handler.NewUserHandler(emptyUsers{}, emptyUsers{}, emptyUsers{}, nil, 4)
	RegisterUsers(api, users, handler.NewRoleHandler(emptyUsers{}), sessions)
	return e
}

func get(t *testing.T, srv http.Handler, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	assert.False(t, body.Success)
	return body.Error.Code
}

func TestPermissionGate(t *testing.T) {
	srv := newTestServer()

	rec := get(t, srv, base+"/users", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", errorCode(t, rec))

	rec = get(t, srv, base+"/users", "forged")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = get(t, srv, base+"/users", "nobody")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", errorCode(t, rec))

	rec = get(t, srv, base+"/users", "reader")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, srv, base+"/roles", "reader")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer()

	rec := get(t, srv, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	_ = get(t, srv, base+"/users", "reader")
	rec = get(t, srv, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "ims_http_requests_total"))
}

func TestUnknownRouteUsesEnvelope(t *testing.T) {
	rec := get(t, newTestServer(), "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", errorCode(t, rec))
}
