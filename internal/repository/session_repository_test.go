package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/ims-api/internal/model"
)

var sessionColumns = []string{"id", "user_id", "token_hash", "device_type", "device_name", "device_id",
	"created_at", "expires_at", "revoked_at"}

func TestSessionRepoCreateSetsID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSessionRepo(db, testTables)
	now := time.Now().UTC()

	mock.ExpectExec("INSERT INTO wp_ims_sessions").
		WithArgs(uint64(1), "abc", "web", "", "", now, now.Add(time.Hour)).
		WillReturnResult(sqlmock.NewResult(11, 1))

	s := &model.Session{UserID: 1, TokenHash: "abc", DeviceType: "web", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, repo.Create(context.Background(), s))
	assert.Equal(t, uint64(11), s.ID)
}

func TestSessionRepoGetByHash(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSessionRepo(db, testTables)
	now := time.Now().UTC()

	mock.ExpectQuery("FROM wp_ims_sessions WHERE token_hash = ").WithArgs("abc").
		WillReturnRows(sqlmock.NewRows(sessionColumns).
			AddRow(3, 1, "abc", nil, "Laptop", nil, now, now.Add(time.Hour), now))

	s, err := repo.GetByHash(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "Laptop", s.DeviceName)
	require.NotNil(t, s.RevokedAt)
	assert.False(t, s.ActiveAt(now))

	mock.ExpectQuery("FROM wp_ims_sessions").WithArgs("nope").
		WillReturnRows(sqlmock.NewRows(sessionColumns))
	_, err = repo.GetByHash(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionRepoRevokeAllForUser(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSessionRepo(db, testTables)

	mock.ExpectExec("UPDATE wp_ims_sessions SET revoked_at = UTC_TIMESTAMP\\(\\) WHERE user_id = ").
		WithArgs(uint64(8)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	require.NoError(t, repo.RevokeAllForUser(context.Background(), 8))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionRepoDeleteStale(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSessionRepo(db, testTables)
	cutoff := time.Now().UTC().Add(-24 * time.Hour)

	mock.ExpectExec("DELETE FROM wp_ims_sessions WHERE expires_at < .* OR revoked_at < ").
		WithArgs(cutoff, cutoff).
		WillReturnResult(sqlmock.NewResult(0, 5))

	n, err := repo.DeleteStale(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}
