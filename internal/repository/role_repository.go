package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/ims-api/internal/model"
)

// RoleRepo reads roles and their permission grants.  Roles are reference
// data and are not modified through the API.
type RoleRepo struct {
	db *sql.DB
	t  Tables
}

func NewRoleRepo(db *sql.DB, t Tables) *RoleRepo { return &RoleRepo{db: db, t: t} }

// List returns all roles with their permissions.
func (r *RoleRepo) List(ctx context.Context) ([]model.Role, error) {
	q := fmt.Sprintf(`SELECT r.id, r.name, r.display_name, r.status, rp.permission
		FROM %s r
		LEFT JOIN %s rp ON rp.role_id = r.id
		ORDER BY r.id, rp.permission`, r.t.Roles, r.t.RolePermissions)
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRoles(rows)
}

// GetByName looks a role up by machine name.
func (r *RoleRepo) GetByName(ctx context.Context, name string) (*model.Role, error) {
	q := fmt.Sprintf("SELECT id, name, display_name, status FROM %s WHERE name = ? LIMIT 1", r.t.Roles)
	var role model.Role
	if err := r.db.QueryRowContext(ctx, q, name).Scan(&role.ID, &role.Name, &role.DisplayName, &role.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoleNotFound
		}
		return nil, err
	}
	return &role, nil
}

// collectRoles folds (role, permission) rows ordered by role id into roles.
func collectRoles(rows *sql.Rows) ([]model.Role, error) {
	out := []model.Role{}
	for rows.Next() {
		var (
			role model.Role
			perm sql.NullString
		)
		if err := rows.Scan(&role.ID, &role.Name, &role.DisplayName, &role.Status, &perm); err != nil {
			return nil, err
		}
		if n := len(out); n == 0 || out[n-1].ID != role.ID {
			role.Permissions = []string{}
			out = append(out, role)
		}
		if perm.Valid {
			cur := &out[len(out)-1]
			cur.Permissions = append(cur.Permissions, perm.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
