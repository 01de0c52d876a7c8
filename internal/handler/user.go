package handler

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/ims-api/internal/apierror"
	"github.com/iliyamo/ims-api/internal/auth"
	"github.com/iliyamo/ims-api/internal/model"
	"github.com/iliyamo/ims-api/internal/queue"
	"github.com/iliyamo/ims-api/internal/repository"
	"github.com/iliyamo/ims-api/internal/utils"
)

// UserStore is implemented by repository.UserRepo.
type UserStore interface {
	ListWithRoles(ctx context.Context) ([]model.UserWithRoles, error)
	GetWithRoles(ctx context.Context, id uint64) (*model.UserWithRoles, error)
	Create(ctx context.Context, u *model.User, roleID *uint64) (uint64, error)
	Update(ctx context.Context, id uint64, patch model.UserPatch) error
	SoftDelete(ctx context.Context, id uint64, at time.Time) error
}

// RoleStore is implemented by repository.RoleRepo.
type RoleStore interface {
	List(ctx context.Context) ([]model.Role, error)
	GetByName(ctx context.Context, name string) (*model.Role, error)
}

// SessionRevoker is implemented by repository.SessionRepo.
type SessionRevoker interface {
	RevokeAllForUser(ctx context.Context, userID uint64) error
}

// UserHandler serves the user management endpoints.
type UserHandler struct {
	Users      UserStore
	Roles      RoleStore
	Sessions   SessionRevoker
	Audit      *Auditor
	BcryptCost int
	Now        func() time.Time
}

func NewUserHandler(users UserStore, roles RoleStore, sessions SessionRevoker, audit *Auditor, bcryptCost int) *UserHandler {
	if users == nil || roles == nil || sessions == nil {
		panic("nil store passed to NewUserHandler")
	}
	return &UserHandler{Users: users, Roles: roles, Sessions: sessions, Audit: audit, BcryptCost: bcryptCost, Now: time.Now}
}

type userView struct {
	ID        uint64          `json:"id"`
	Username  string          `json:"username"`
	Email     string          `json:"email"`
	FirstName string          `json:"firstName"`
	LastName  string          `json:"lastName"`
	Status    string          `json:"status"`
	LastLogin *time.Time      `json:"lastLogin"`
	CreatedAt time.Time       `json:"createdAt"`
	Roles     []model.RoleRef `json:"roles"`
}

func newUserView(u *model.UserWithRoles) userView {
	roles := u.Roles
	if roles == nil {
		roles = []model.RoleRef{}
	}
	return userView{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Status:    u.Status,
		LastLogin: u.LastLogin,
		CreatedAt: u.CreatedAt,
		Roles:     roles,
	}
}

var (
	errNoUser      = apierror.NotFound("no_user", "user not found")
	errUserExists  = apierror.Conflict("user_exists", "username or email already exists")
	errInvalidRole = apierror.Validation("invalid_role", "unknown role")
)

// List: GET /users
func (h *UserHandler) List(c echo.Context) error {
	ctx, cancel := withTimeout(c)
	defer cancel()

	list, err := h.Users.ListWithRoles(ctx)
	if err != nil {
		return apierror.Storage("db_error", err)
	}
	out := make([]userView, 0, len(list))
	for i := range list {
		out = append(out, newUserView(&list[i]))
	}
	return respond(c, http.StatusOK, out)
}

// Get: GET /users/:id
func (h *UserHandler) Get(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	ctx, cancel := withTimeout(c)
	defer cancel()

	u, err := h.Users.GetWithRoles(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return errNoUser
		}
		return apierror.Storage("db_error", err)
	}
	return respond(c, http.StatusOK, newUserView(u))
}

type createUserReq struct {
	Username  string `json:"username" validate:"required,max=60"`
	Email     string `json:"email" validate:"required,email,max=100"`
	Password  string `json:"password" validate:"required,max=72"`
	FirstName string `json:"firstName" validate:"max=50"`
	LastName  string `json:"lastName" validate:"max=50"`
	Role      string `json:"role" validate:"max=50"`
}

// resolveRole maps a role name to its id.  An empty name means no role.
func (h *UserHandler) resolveRole(ctx context.Context, name string) (*uint64, error) {
	if name == "" {
		return nil, nil
	}
	r, err := h.Roles.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrRoleNotFound) {
			return nil, errInvalidRole
		}
		return nil, apierror.Storage("db_error", err)
	}
	return &r.ID, nil
}

// Create: POST /users
func (h *UserHandler) Create(c echo.Context) error {
	var req createUserReq
	if err := c.Bind(&req); err != nil {
		return apierror.Validation("invalid_params", "malformed request body")
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Role = strings.TrimSpace(req.Role)
	if err := c.Validate(&req); err != nil {
		if missingRequired(err) {
			return apierror.Validation("missing_params", "username, email and password are required")
		}
		return apierror.Validation("invalid_params", "invalid user parameters")
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	roleID, err := h.resolveRole(ctx, req.Role)
	if err != nil {
		return err
	}
	hash, err := utils.HashPassword(req.Password, h.BcryptCost)
	if err != nil {
		return apierror.Storage("hash_failed", err)
	}
	u := &model.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Status:       model.UserActive,
	}
	id, err := h.Users.Create(ctx, u, roleID)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return errUserExists
		}
		return apierror.Storage("db_error", err)
	}
	h.Audit.record(c, queue.AuditEvent{
		Action:     queue.ActionUserCreated,
		TargetType: "user",
		TargetID:   id,
		Details:    map[string]any{"username": u.Username, "role": req.Role},
	})
	return respond(c, http.StatusCreated, echo.Map{"id": id})
}

type updateUserReq struct {
	Email     *string `json:"email" validate:"omitnil,email,max=100"`
	FirstName *string `json:"firstName" validate:"omitnil,max=50"`
	LastName  *string `json:"lastName" validate:"omitnil,max=50"`
	Status    *string `json:"status" validate:"omitnil,oneof=active inactive"`
	Password  *string `json:"password" validate:"omitnil,min=1,max=72"`
	Role      *string `json:"role" validate:"omitnil,min=1,max=50"`
}

func trimPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

// Update: PUT /users/:id
func (h *UserHandler) Update(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req updateUserReq
	if err := c.Bind(&req); err != nil {
		return apierror.Validation("invalid_params", "malformed request body")
	}
	req.Email, req.FirstName, req.LastName = trimPtr(req.Email), trimPtr(req.FirstName), trimPtr(req.LastName)
	req.Status, req.Role = trimPtr(req.Status), trimPtr(req.Role)
	if req.Email != nil {
		lower := strings.ToLower(*req.Email)
		req.Email = &lower
	}
	if req.Email == nil && req.FirstName == nil && req.LastName == nil &&
		req.Status == nil && req.Password == nil && req.Role == nil {
		return apierror.Validation("no_data", "no data provided")
	}
	if err := c.Validate(&req); err != nil {
		return apierror.Validation("invalid_params", "invalid user parameters")
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	patch := model.UserPatch{Email: req.Email, FirstName: req.FirstName, LastName: req.LastName, Status: req.Status}
	if req.Role != nil {
		if patch.RoleID, err = h.resolveRole(ctx, *req.Role); err != nil {
			return err
		}
	}
	if req.Password != nil {
		hash, err := utils.HashPassword(*req.Password, h.BcryptCost)
		if err != nil {
			return apierror.Storage("hash_failed", err)
		}
		patch.PasswordHash = &hash
	}

	if err := h.Users.Update(ctx, id, patch); err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			return errNoUser
		case errors.Is(err, repository.ErrDuplicate):
			return errUserExists
		}
		return apierror.Storage("db_error", err)
	}
	if patch.Status != nil && *patch.Status == model.UserInactive {
		h.revokeSessions(ctx, id)
	}

	h.Audit.record(c, queue.AuditEvent{
		Action:     queue.ActionUserUpdated,
		TargetType: "user",
		TargetID:   id,
		Details:    map[string]any{"fields": changedFields(req)},
	})

	u, err := h.Users.GetWithRoles(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return errNoUser
		}
		return apierror.Storage("db_error", err)
	}
	return respond(c, http.StatusOK, newUserView(u))
}

func changedFields(req updateUserReq) string {
	var f []string
	for name, set := range map[string]bool{
		"email": req.Email != nil, "firstName": req.FirstName != nil, "lastName": req.LastName != nil,
		"status": req.Status != nil, "password": req.Password != nil, "role": req.Role != nil,
	} {
		if set {
			f = append(f, name)
		}
	}
	sort.Strings(f)
	return strings.Join(f, ",")
}

// revokeSessions logs instead of failing: an inactive or deleted user can no
// longer validate a session anyway.
func (h *UserHandler) revokeSessions(ctx context.Context, id uint64) {
	if err := h.Sessions.RevokeAllForUser(ctx, id); err != nil {
		log.Warn().Err(err).Uint64("user_id", id).Msg("revoke sessions failed")
	}
}

// Delete: DELETE /users/:id.  Soft delete; the row stays.
func (h *UserHandler) Delete(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if p := auth.CurrentUser(c.Request().Context()); p != nil && p.User.ID == id {
		return apierror.Validation("cannot_delete_self", "you cannot delete your own account")
	}

	ctx, cancel := withTimeout(c)
	defer cancel()

	if err := h.Users.SoftDelete(ctx, id, h.Now().UTC()); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return errNoUser
		}
		return apierror.Storage("db_error", err)
	}
	h.revokeSessions(ctx, id)
	h.Audit.record(c, queue.AuditEvent{Action: queue.ActionUserDeleted, TargetType: "user", TargetID: id})
	return respond(c, http.StatusOK, echo.Map{"id": id, "deleted": true})
}
