package model

import "time"

// User statuses stored in ims_users.status.
const (
	UserActive   = "active"
	UserInactive = "inactive"
	UserDeleted  = "deleted"
)

// User represents a row in the `ims_users` table.  Users are never
// physically removed: DeletedAt is set and Status becomes "deleted".
type User struct {
	ID           uint64     // ims_users.id
	Username     string     // ims_users.username
	Email        string     // ims_users.email
	PasswordHash string     // ims_users.password_hash (bcrypt)
	FirstName    string     // ims_users.first_name
	LastName     string     // ims_users.last_name
	Status       string     // ims_users.status
	LastLogin    *time.Time // ims_users.last_login (nullable)
	DeletedAt    *time.Time // ims_users.deleted_at (nullable)
	CreatedAt    time.Time  // ims_users.created_at
	UpdatedAt    time.Time  // ims_users.updated_at
}

// Live reports whether the user may hold a session.
func (u *User) Live() bool {
	return u != nil && u.DeletedAt == nil && u.Status == UserActive
}

// Role represents a row in `ims_roles` together with the capability strings
// granted through `ims_role_permissions`.
type Role struct {
	ID          uint64
	Name        string // machine name, e.g. "manager"
	DisplayName string // e.g. "Manager"
	Status      string
	Permissions []string
}

// RoleRef is the short role form embedded in user listings and profiles.
type RoleRef struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

// UserWithRoles pairs a user with its assigned roles.
type UserWithRoles struct {
	User
	Roles []RoleRef
}

// UserPatch lists the optional fields of a user update.  Nil means "leave
// unchanged".
type UserPatch struct {
	Email        *string
	FirstName    *string
	LastName     *string
	Status       *string
	PasswordHash *string
	RoleID       *uint64
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return p.Email == nil && p.FirstName == nil && p.LastName == nil &&
		p.Status == nil && p.PasswordHash == nil && p.RoleID == nil
}
