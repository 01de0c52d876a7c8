package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/ims-api/internal/model"
)

const userCols = "id, username, email, password_hash, first_name, last_name, status, last_login, deleted_at, created_at, updated_at"

// UserRepo persists users and their role assignments.
type UserRepo struct {
	db *sql.DB
	t  Tables
}

func NewUserRepo(db *sql.DB, t Tables) *UserRepo { return &UserRepo{db: db, t: t} }

func scanUser(row scanner, u *model.User) error {
	var lastLogin, deletedAt sql.NullTime
	var first, last sql.NullString
	if err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &first, &last,
		&u.Status, &lastLogin, &deletedAt, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return err
	}
	u.FirstName, u.LastName = first.String, last.String
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	if deletedAt.Valid {
		t := deletedAt.Time
		u.DeletedAt = &t
	}
	return nil
}

func (r *UserRepo) getOne(ctx context.Context, where string, arg any) (*model.User, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s AND deleted_at IS NULL LIMIT 1", userCols, r.t.Users, where)
	var u model.User
	if err := scanUser(r.db.QueryRowContext(ctx, q, arg), &u); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// GetByUsername fetches a live or inactive (but not deleted) user.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return r.getOne(ctx, "username = ?", username)
}

// GetByID fetches a user that has not been soft deleted.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	return r.getOne(ctx, "id = ?", id)
}

// TouchLastLogin records the time of a successful login.
func (r *UserRepo) TouchLastLogin(ctx context.Context, id uint64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, fmt.Sprintf("UPDATE %s SET last_login = ? WHERE id = ?", r.t.Users), at, id)
	return err
}

// RolesFor returns the roles assigned to a user with their permissions.
func (r *UserRepo) RolesFor(ctx context.Context, userID uint64) ([]model.Role, error) {
	q := fmt.Sprintf(`SELECT r.id, r.name, r.display_name, r.status, rp.permission
		FROM %s ur
		JOIN %s r ON r.id = ur.role_id
		LEFT JOIN %s rp ON rp.role_id = r.id
		WHERE ur.user_id = ?
		ORDER BY r.id, rp.permission`, r.t.UserRoles, r.t.Roles, r.t.RolePermissions)
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRoles(rows)
}

// ListWithRoles returns every non-deleted user with its roles in one query.
func (r *UserRepo) ListWithRoles(ctx context.Context) ([]model.UserWithRoles, error) {
	return r.listWithRoles(ctx, "", nil)
}

// GetWithRoles returns a single non-deleted user with its roles.
func (r *UserRepo) GetWithRoles(ctx context.Context, id uint64) (*model.UserWithRoles, error) {
	list, err := r.listWithRoles(ctx, " AND u.id = ?", []any{id})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrUserNotFound
	}
	return &list[0], nil
}

func (r *UserRepo) listWithRoles(ctx context.Context, extra string, args []any) ([]model.UserWithRoles, error) {
	cols := "u." + strings.ReplaceAll(userCols, ", ", ", u.")
	q := fmt.Sprintf(`SELECT %s, r.name, r.display_name
		FROM %s u
		LEFT JOIN %s ur ON ur.user_id = u.id
		LEFT JOIN %s r ON r.id = ur.role_id
		WHERE u.deleted_at IS NULL%s
		ORDER BY u.id, r.id`, cols, r.t.Users, r.t.UserRoles, r.t.Roles, extra)
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.UserWithRoles
	for rows.Next() {
		var (
			u                 model.User
			lastLogin, delAt  sql.NullTime
			first, last       sql.NullString
			roleName, display sql.NullString
		)
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &first, &last,
			&u.Status, &lastLogin, &delAt, &u.CreatedAt, &u.UpdatedAt, &roleName, &display); err != nil {
			return nil, err
		}
		if n := len(out); n == 0 || out[n-1].ID != u.ID {
			u.FirstName, u.LastName = first.String, last.String
			if lastLogin.Valid {
				t := lastLogin.Time
				u.LastLogin = &t
			}
			out = append(out, model.UserWithRoles{User: u, Roles: []model.RoleRef{}})
		}
		if roleName.Valid {
			cur := &out[len(out)-1]
			cur.Roles = append(cur.Roles, model.RoleRef{Name: roleName.String, DisplayName: display.String})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Create inserts a user and, when roleID is set, its role assignment in one
// transaction.  A unique key violation yields ErrDuplicate.
func (r *UserRepo) Create(ctx context.Context, u *model.User, roleID *uint64) (uint64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	q := fmt.Sprintf(`INSERT INTO %s (username, email, password_hash, first_name, last_name, status)
		VALUES (?, ?, ?, ?, ?, ?)`, r.t.Users)
	res, err := tx.ExecContext(ctx, q, u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Status)
	if err != nil {
		return 0, mapDuplicate(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if roleID != nil {
		if err := r.assignRoleTx(ctx, tx, uint64(id), *roleID); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	u.ID = uint64(id)
	return u.ID, nil
}

func (r *UserRepo) assignRoleTx(ctx context.Context, tx *sql.Tx, userID, roleID uint64) error {
	_, err := tx.ExecContext(ctx,
		fmt.Sprintf("INSERT INTO %s (user_id, role_id) VALUES (?, ?)", r.t.UserRoles), userID, roleID)
	return err
}

// Update applies patch to the user.  A role in the patch replaces all
// current assignments.  Returns ErrUserNotFound for unknown or deleted users.
func (r *UserRepo) Update(ctx context.Context, id uint64, patch model.UserPatch) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var exists uint64
	err = tx.QueryRowContext(ctx,
		fmt.Sprintf("SELECT id FROM %s WHERE id = ? AND deleted_at IS NULL FOR UPDATE", r.t.Users), id).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrUserNotFound
		}
		return err
	}

	sets := []string{}
	args := []any{}
	add := func(col string, v *string) {
		if v != nil {
			sets = append(sets, col+" = ?")
			args = append(args, *v)
		}
	}
	add("email", patch.Email)
	add("first_name", patch.FirstName)
	add("last_name", patch.LastName)
	add("status", patch.Status)
	add("password_hash", patch.PasswordHash)
	if len(sets) > 0 {
		q := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", r.t.Users, strings.Join(sets, ", "))
		if _, err := tx.ExecContext(ctx, q, append(args, id)...); err != nil {
			return mapDuplicate(err)
		}
	}
	if patch.RoleID != nil {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE user_id = ?", r.t.UserRoles), id); err != nil {
			return err
		}
		if err := r.assignRoleTx(ctx, tx, id, *patch.RoleID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SoftDelete marks the user deleted.  The row is kept.
func (r *UserRepo) SoftDelete(ctx context.Context, id uint64, at time.Time) error {
	q := fmt.Sprintf("UPDATE %s SET status = ?, deleted_at = ? WHERE id = ? AND deleted_at IS NULL", r.t.Users)
	res, err := r.db.ExecContext(ctx, q, model.UserDeleted, at, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}
