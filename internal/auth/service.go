// Package auth is the session core: it issues, validates and revokes bearer
// sessions and resolves a session to a user and its permission set.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/ims-api/internal/apierror"
	"github.com/iliyamo/ims-api/internal/model"
	"github.com/iliyamo/ims-api/internal/repository"
	"github.com/iliyamo/ims-api/internal/utils"
)

var (
	ErrInvalidCredentials = apierror.Unauthenticated("invalid_credentials", "invalid username or password")
	ErrAccountInactive    = apierror.Forbidden("account_inactive", "account is not active")
	ErrUnauthenticated    = apierror.Unauthenticated("unauthorized", "authentication required")
)

// UserStore is the subset of the user repository the auth core needs.
type UserStore interface {
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	TouchLastLogin(ctx context.Context, id uint64, at time.Time) error
	RolesFor(ctx context.Context, userID uint64) ([]model.Role, error)
}

// SessionStore persists sessions.
type SessionStore interface {
	Create(ctx context.Context, s *model.Session) error
	GetByHash(ctx context.Context, hash string) (*model.Session, error)
	RevokeByHash(ctx context.Context, hash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
	ListActiveByUser(ctx context.Context, userID uint64, now time.Time) ([]model.Session, error)
}

// Options configures a Service.
type Options struct {
	Secret string
	TTL    time.Duration
	Now    func() time.Time // defaults to time.Now
}

// Service implements login, logout and session validation.
type Service struct {
	users    UserStore
	sessions SessionStore
	secret   string
	ttl      time.Duration
	now      func() time.Time
}

func NewService(users UserStore, sessions SessionStore, opts Options) *Service {
	if users == nil || sessions == nil {
		panic("nil store passed to auth.NewService")
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{users: users, sessions: sessions, secret: opts.Secret, ttl: ttl, now: now}
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      Profile   `json:"user"`
}

// Login verifies the credentials, opens a new session for the device and
// records the login time.  Every call creates a new session.
func (s *Service) Login(ctx context.Context, username, password string, dev model.Device) (*LoginResult, error) {
	u, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			utils.BurnPasswordCheck(password)
			return nil, ErrInvalidCredentials
		}
		return nil, apierror.Storage("db_error", err)
	}
	if !utils.VerifyPassword(u.PasswordHash, password) || u.DeletedAt != nil {
		return nil, ErrInvalidCredentials
	}
	if u.Status != model.UserActive {
		return nil, ErrAccountInactive
	}

	now := s.now().UTC()
	tok, err := utils.NewSessionToken(s.secret, u.ID, now, s.ttl)
	if err != nil {
		return nil, apierror.Storage("token_failed", err)
	}
	sess := &model.Session{
		UserID:     u.ID,
		TokenHash:  tok.Hash,
		DeviceType: dev.Type,
		DeviceName: dev.Name,
		DeviceID:   dev.ID,
		CreatedAt:  now,
		ExpiresAt:  tok.Exp,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, apierror.Storage("session_failed", err)
	}
	if err := s.users.TouchLastLogin(ctx, u.ID, now); err != nil {
		return nil, apierror.Storage("db_error", err)
	}
	u.LastLogin = &now

	roles, err := s.users.RolesFor(ctx, u.ID)
	if err != nil {
		return nil, apierror.Storage("db_error", err)
	}
	return &LoginResult{
		Token:     tok.Raw,
		ExpiresAt: tok.Exp,
		User:      newProfile(u, roles, ResolvePermissions(roles)),
	}, nil
}

// Logout revokes the session behind raw.  Unknown, malformed, expired or
// already revoked tokens are accepted silently.
func (s *Service) Logout(ctx context.Context, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	hash, err := utils.ParseSessionToken(s.secret, raw, s.now, false)
	if err != nil {
		return nil
	}
	if err := s.sessions.RevokeByHash(ctx, hash); err != nil {
		return apierror.Storage("logout_failed", err)
	}
	return nil
}

// LogoutAll revokes every session of the current user.
func (s *Service) LogoutAll(ctx context.Context) error {
	p := CurrentUser(ctx)
	if p == nil {
		return ErrUnauthenticated
	}
	if err := s.sessions.RevokeAllForUser(ctx, p.User.ID); err != nil {
		return apierror.Storage("logout_failed", err)
	}
	return nil
}

// ValidateSession resolves raw to its user.  Missing, forged, unknown,
// revoked and expired tokens all yield ErrUnauthenticated, as does a session
// whose user is no longer active.
func (s *Service) ValidateSession(ctx context.Context, raw string) (*Principal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrUnauthenticated
	}
	hash, err := utils.ParseSessionToken(s.secret, raw, s.now, true)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	sess, err := s.sessions.GetByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, apierror.Storage("db_error", err)
	}
	if !sess.ActiveAt(s.now()) {
		return nil, ErrUnauthenticated
	}
	u, err := s.users.GetByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, apierror.Storage("db_error", err)
	}
	if !u.Live() {
		return nil, ErrUnauthenticated
	}
	roles, err := s.users.RolesFor(ctx, u.ID)
	if err != nil {
		return nil, apierror.Storage("db_error", err)
	}
	return &Principal{
		User:        *u,
		Roles:       roles,
		Permissions: ResolvePermissions(roles),
		SessionHash: hash,
	}, nil
}

// SessionInfo describes one active session of the current user.
type SessionInfo struct {
	ID         uint64    `json:"id"`
	DeviceType string    `json:"deviceType"`
	DeviceName string    `json:"deviceName"`
	DeviceID   string    `json:"deviceId"`
	CreatedAt  time.Time `json:"createdAt"`
	ExpiresAt  time.Time `json:"expiresAt"`
	Current    bool      `json:"current"`
}

// Sessions lists the active sessions of the current user.
func (s *Service) Sessions(ctx context.Context) ([]SessionInfo, error) {
	p := CurrentUser(ctx)
	if p == nil {
		return nil, ErrUnauthenticated
	}
	list, err := s.sessions.ListActiveByUser(ctx, p.User.ID, s.now().UTC())
	if err != nil {
		return nil, apierror.Storage("db_error", err)
	}
	out := make([]SessionInfo, 0, len(list))
	for _, sess := range list {
		out = append(out, SessionInfo{
			ID:         sess.ID,
			DeviceType: sess.DeviceType,
			DeviceName: sess.DeviceName,
			DeviceID:   sess.DeviceID,
			CreatedAt:  sess.CreatedAt,
			ExpiresAt:  sess.ExpiresAt,
			Current:    sess.TokenHash == p.SessionHash,
		})
	}
	return out, nil
}
