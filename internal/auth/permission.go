package auth

import (
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/ims-api/internal/model"
)

// Permission is a named capability granted through role assignment.  The set
// of valid permissions is closed: only the constants below exist.
type Permission string

const (
	UsersRead        Permission = "users.read"
	UsersCreate      Permission = "users.create"
	UsersUpdate      Permission = "users.update"
	UsersDelete      Permission = "users.delete"
	UsersManageRoles Permission = "users.manage_roles"
)

var allPermissions = []Permission{UsersRead, UsersCreate, UsersUpdate, UsersDelete, UsersManageRoles}

var registry = func() map[Permission]struct{} {
	m := make(map[Permission]struct{}, len(allPermissions))
	for _, p := range allPermissions {
		m[p] = struct{}{}
	}
	return m
}()

// AllPermissions returns every registered permission in a stable order.
func AllPermissions() []Permission {
	out := make([]Permission, len(allPermissions))
	copy(out, allPermissions)
	return out
}

// ParsePermission validates s against the registry.
func ParsePermission(s string) (Permission, bool) {
	p := Permission(s)
	_, ok := registry[p]
	return p, ok
}

// PermissionSet is the effective permission set of a user.
type PermissionSet map[Permission]struct{}

// Has reports whether p is in the set.  A nil set holds nothing.
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Flags returns one boolean per registered permission, keyed by name.
func (s PermissionSet) Flags() map[string]bool {
	out := make(map[string]bool, len(allPermissions))
	for _, p := range allPermissions {
		out[string(p)] = s.Has(p)
	}
	return out
}

// Sorted lists the held permissions in registry order.
func (s PermissionSet) Sorted() []Permission {
	out := make([]Permission, 0, len(s))
	for _, p := range allPermissions {
		if s.Has(p) {
			out = append(out, p)
		}
	}
	return out
}

// ResolvePermissions unions the permissions of all active roles.  Strings
// that are not registered permissions are dropped.
func ResolvePermissions(roles []model.Role) PermissionSet {
	set := PermissionSet{}
	for _, r := range roles {
		if r.Status != "" && r.Status != "active" {
			continue
		}
		for _, raw := range r.Permissions {
			p, ok := ParsePermission(raw)
			if !ok {
				log.Warn().Str("role", r.Name).Str("permission", raw).Msg("ignoring unknown permission")
				continue
			}
			set[p] = struct{}{}
		}
	}
	return set
}
