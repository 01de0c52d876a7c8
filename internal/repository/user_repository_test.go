package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ims-api/internal/model"
)

var testTables = NewTables("wp_")

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

var userColumns = []string{"id", "username", "email", "password_hash", "first_name", "last_name",
	"status", "last_login", "deleted_at", "created_at", "updated_at"}

func TestNewTablesPrefixesNames(t *testing.T) {
	tb := NewTables("wp2_")
	assert.Equal(t, "wp2_ims_users", tb.Users)
	assert.Equal(t, "wp2_ims_sale_items", tb.SaleItems)
}

func TestUserRepoGetByUsername(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db, testTables)
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM wp_ims_users WHERE username = ? AND deleted_at IS NULL")).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows(userColumns).
			AddRow(7, "alice", "a@example.com", "hash", "Alice", nil, "active", now, nil, now, now))

	u, err := repo.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), u.ID)
	assert.Equal(t, "Alice", u.FirstName)
	assert.Empty(t, u.LastName)
	require.NotNil(t, u.LastLogin)
	assert.Nil(t, u.DeletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepoGetByIDNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db, testTables)

	mock.ExpectQuery("FROM wp_ims_users WHERE id = ").WithArgs(uint64(9)).
		WillReturnRows(sqlmock.NewRows(userColumns))

	_, err := repo.GetByID(context.Background(), 9)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepoListWithRolesGroupsRows(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db, testTables)
	now := time.Now().UTC()

	cols := append(append([]string{}, userColumns...), "name", "display_name")
	mock.ExpectQuery("LEFT JOIN wp_ims_user_roles ur").
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(1, "admin", "ad@x", "h", "Ad", "Min", "active", nil, nil, now, now, "administrator", "Administrator").
			AddRow(1, "admin", "ad@x", "h", "Ad", "Min", "active", nil, nil, now, now, "manager", "Manager").
			AddRow(2, "bob", "b@x", "h", nil, nil, "inactive", nil, nil, now, now, nil, nil))

	list, err := repo.ListWithRoles(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, []model.RoleRef{
		{Name: "administrator", DisplayName: "Administrator"},
		{Name: "manager", DisplayName: "Manager"},
	}, list[0].Roles)
	assert.Equal(t, "bob", list[1].Username)
	assert.Empty(t, list[1].Roles)
	assert.NotNil(t, list[1].Roles)
}

func TestUserRepoCreateAssignsRoleInTransaction(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db, testTables)
	role := uint64(3)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO wp_ims_users").
		WithArgs("carol", "c@x", "hash", "Carol", "", "active").
		WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectExec("INSERT INTO wp_ims_user_roles").
		WithArgs(uint64(42), role).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	u := &model.User{Username: "carol", Email: "c@x", PasswordHash: "hash", FirstName: "Carol", Status: model.UserActive}
	id, err := repo.Create(context.Background(), u, &role)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)
	assert.Equal(t, uint64(42), u.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepoCreateRollsBackOnRoleFailure(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db, testTables)
	role := uint64(3)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO wp_ims_users").WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectExec("INSERT INTO wp_ims_user_roles").WillReturnError(errors.New("fk violation"))
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), &model.User{Username: "x"}, &role)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepoCreateDuplicate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db, testTables)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO wp_ims_users").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), &model.User{Username: "dup"}, nil)
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestUserRepoUpdateReplacesRole(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db, testTables)
	email := "new@x"
	role := uint64(2)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM wp_ims_users WHERE id = .* FOR UPDATE").
		WithArgs(uint64(5)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(5))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE wp_ims_users SET email = ? WHERE id = ?")).
		WithArgs("new@x", uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM wp_ims_user_roles").WithArgs(uint64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO wp_ims_user_roles").WithArgs(uint64(5), role).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.Update(context.Background(), 5, model.UserPatch{Email: &email, RoleID: &role})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepoUpdateUnknownUser(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db, testTables)
	name := "x"

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id FROM wp_ims_users").WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := repo.Update(context.Background(), 5, model.UserPatch{FirstName: &name})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUserRepoSoftDelete(t *testing.T) {
	db, mock := newMock(t)
	repo := NewUserRepo(db, testTables)
	at := time.Now().UTC()

	mock.ExpectExec("UPDATE wp_ims_users SET status = .*, deleted_at = ").
		WithArgs(model.UserDeleted, at, uint64(4)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.SoftDelete(context.Background(), 4, at))

	mock.ExpectExec("UPDATE wp_ims_users SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.SoftDelete(context.Background(), 4, at), ErrUserNotFound)
}
