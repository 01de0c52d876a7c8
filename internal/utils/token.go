package utils // package utils provides helper functions for token creation and hashing

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// sessionIDBytes is the amount of entropy behind every session.
const sessionIDBytes = 32

// ErrMalformedToken is returned when a bearer token cannot be parsed or its
// signature does not verify.
var ErrMalformedToken = errors.New("malformed session token")

// SessionToken is a freshly issued bearer token.  Raw is handed to the
// client; only Hash (of the embedded session id) is persisted.
type SessionToken struct {
	Raw  string
	Hash string
	Exp  time.Time
}

// sessionClaims are the claims carried by a session token.  The session id
// is random; the signature only saves a database round trip for forged
// tokens, the session row stays authoritative.
type sessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// NewSessionToken generates a random session id and wraps it in an HS256 JWT
// for userID that expires after ttl.
func NewSessionToken(secret string, userID uint64, now time.Time, ttl time.Duration) (SessionToken, error) {
	sid, err := randomHex(sessionIDBytes)
	if err != nil {
		return SessionToken{}, err
	}
	exp := now.UTC().Add(ttl)
	claims := sessionClaims{
		SessionID: sid,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now.UTC()),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return SessionToken{}, err
	}
	return SessionToken{Raw: signed, Hash: HashSessionID(sid), Exp: exp}, nil
}

// ParseSessionToken verifies the signature of raw and returns the hash of
// its session id.  When verifyExpiry is false an expired token is still
// accepted, which logout relies on.
func ParseSessionToken(secret, raw string, now func() time.Time, verifyExpiry bool) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(now),
	}
	if !verifyExpiry {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}
	var claims sessionClaims
	tok, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, opts...)
	if err != nil || !tok.Valid || claims.SessionID == "" {
		return "", ErrMalformedToken
	}
	return HashSessionID(claims.SessionID), nil
}

// HashSessionID returns the SHA-256 hex digest stored in ims_sessions.
func HashSessionID(sid string) string {
	sum := sha256.Sum256([]byte(sid))
	return hex.EncodeToString(sum[:])
}

// randomHex returns a hex string built from n bytes of crypto/rand output.
func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
