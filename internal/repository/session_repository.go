package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/ims-api/internal/model"
)

const sessionCols = "id, user_id, token_hash, device_type, device_name, device_id, created_at, expires_at, revoked_at"

// SessionRepo persists login sessions (single 'token_hash' column).
type SessionRepo struct {
	db *sql.DB
	t  Tables
}

func NewSessionRepo(db *sql.DB, t Tables) *SessionRepo { return &SessionRepo{db: db, t: t} }

func scanSession(row scanner, s *model.Session) error {
	var devType, devName, devID sql.NullString
	var revokedAt sql.NullTime
	if err := row.Scan(&s.ID, &s.UserID, &s.TokenHash, &devType, &devName, &devID,
		&s.CreatedAt, &s.ExpiresAt, &revokedAt); err != nil {
		return err
	}
	s.DeviceType, s.DeviceName, s.DeviceID = devType.String, devName.String, devID.String
	if revokedAt.Valid {
		t := revokedAt.Time
		s.RevokedAt = &t
	}
	return nil
}

// Create inserts a session row and sets its ID.
func (r *SessionRepo) Create(ctx context.Context, s *model.Session) error {
	q := fmt.Sprintf(`INSERT INTO %s (user_id, token_hash, device_type, device_name, device_id, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, r.t.Sessions)
	res, err := r.db.ExecContext(ctx, q, s.UserID, s.TokenHash, s.DeviceType, s.DeviceName, s.DeviceID, s.CreatedAt, s.ExpiresAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}

// GetByHash returns the session regardless of its state; callers decide
// whether it is still usable.
func (r *SessionRepo) GetByHash(ctx context.Context, hash string) (*model.Session, error) {
	q := fmt.Sprintf("SELECT %s FROM %s WHERE token_hash = ? LIMIT 1", sessionCols, r.t.Sessions)
	var s model.Session
	if err := scanSession(r.db.QueryRowContext(ctx, q, hash), &s); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &s, nil
}

// RevokeByHash marks a session as revoked.  Already revoked or unknown
// hashes are left untouched.
func (r *SessionRepo) RevokeByHash(ctx context.Context, hash string) error {
	_, err := r.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET revoked_at = UTC_TIMESTAMP() WHERE token_hash = ? AND revoked_at IS NULL", r.t.Sessions),
		hash)
	return err
}

// RevokeAllForUser revokes all of the user's active sessions.
func (r *SessionRepo) RevokeAllForUser(ctx context.Context, userID uint64) error {
	_, err := r.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE %s SET revoked_at = UTC_TIMESTAMP() WHERE user_id = ? AND revoked_at IS NULL", r.t.Sessions),
		userID)
	return err
}

// ListActiveByUser returns unrevoked, unexpired sessions, newest first.
func (r *SessionRepo) ListActiveByUser(ctx context.Context, userID uint64, now time.Time) ([]model.Session, error) {
	q := fmt.Sprintf(`SELECT %s FROM %s
		WHERE user_id = ? AND revoked_at IS NULL AND expires_at > ?
		ORDER BY created_at DESC`, sessionCols, r.t.Sessions)
	rows, err := r.db.QueryContext(ctx, q, userID, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Session{}
	for rows.Next() {
		var s model.Session
		if err := scanSession(rows, &s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteStale removes sessions that expired or were revoked before cutoff.
func (r *SessionRepo) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE expires_at < ? OR revoked_at < ?", r.t.Sessions),
		cutoff, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
