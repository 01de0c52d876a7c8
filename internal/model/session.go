package model

import "time"

// Session models an entry in the `ims_sessions` table: one authenticated
// device login.  Only the SHA-256 hash of the session id is stored.
type Session struct {
	ID         uint64     // ims_sessions.id
	UserID     uint64     // ims_sessions.user_id
	TokenHash  string     // ims_sessions.token_hash
	DeviceType string     // ims_sessions.device_type
	DeviceName string     // ims_sessions.device_name
	DeviceID   string     // ims_sessions.device_id
	CreatedAt  time.Time  // ims_sessions.created_at
	ExpiresAt  time.Time  // ims_sessions.expires_at
	RevokedAt  *time.Time // ims_sessions.revoked_at (null while active)
}

// ActiveAt reports whether the session is neither revoked nor expired at t.
func (s *Session) ActiveAt(t time.Time) bool {
	return s.RevokedAt == nil && t.Before(s.ExpiresAt)
}

// Device carries the optional device metadata supplied at login.
type Device struct {
	Type string
	Name string
	ID   string
}
