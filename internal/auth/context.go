package auth

import (
	"context"
	"time"

	"github.com/iliyamo/ims-api/internal/model"
)

type principalKey struct{}

// Principal is the authenticated caller of one request.
type Principal struct {
	User        model.User
	Roles       []model.Role
	Permissions PermissionSet
	SessionHash string
}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// CurrentUser returns the principal resolved by the last successful session
// validation of this request, or nil.
func CurrentUser(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}

// HasPermission reports whether the current user holds perm.  Without an
// authenticated user the answer is always false.
func HasPermission(ctx context.Context, perm Permission) bool {
	p := CurrentUser(ctx)
	return p != nil && p.Permissions.Has(perm)
}

// Profile is the user representation returned by login and /auth/me.
type Profile struct {
	ID          uint64          `json:"id"`
	Username    string          `json:"username"`
	Email       string          `json:"email"`
	FirstName   string          `json:"firstName"`
	LastName    string          `json:"lastName"`
	Status      string          `json:"status"`
	LastLogin   *time.Time      `json:"lastLogin"`
	Roles       []model.RoleRef `json:"roles"`
	Permissions map[string]bool `json:"permissions"`
}

// Profile builds the client-facing profile of p.
func (p *Principal) Profile() Profile {
	return newProfile(&p.User, p.Roles, p.Permissions)
}

func newProfile(u *model.User, roles []model.Role, perms PermissionSet) Profile {
	refs := make([]model.RoleRef, 0, len(roles))
	for _, r := range roles {
		refs = append(refs, model.RoleRef{Name: r.Name, DisplayName: r.DisplayName})
	}
	return Profile{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		Status:      u.Status,
		LastLogin:   u.LastLogin,
		Roles:       refs,
		Permissions: perms.Flags(),
	}
}
