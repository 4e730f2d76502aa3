package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/pkg/errors"
	"github.com/velotype/velotype/config/params"
	"github.com/velotype/velotype/crypto/hash"
)

var (
	// ErrTokenRevoked is returned for a token present in the revocation set.
	ErrTokenRevoked = errors.New("token has been revoked")
	// ErrInvalidToken is returned for malformed, mis-signed or expired
	// tokens.
	ErrInvalidToken = errors.New("invalid token")
)

// Identity is the authenticated principal carried by a valid token.
type Identity struct {
	ID       string
	Username string
}

// Claims is the session token payload.
type Claims struct {
	Username string `json:"username"`
	Remember bool   `json:"remember,omitempty"`
	jwt.RegisteredClaims
}

// Issue signs a fresh session token. Remember stretches the TTL for
// keep-me-signed-in sessions.
func (s *Service) Issue(userID, username string, remember bool) (string, time.Time, error) {
	cfg := params.VeloTypeConfig()
	ttl := time.Duration(cfg.TokenTTLHours) * time.Hour
	if remember {
		ttl = time.Duration(cfg.TokenRememberTTLHours) * time.Hour
	}
	now := time.Now()
	expires := now.Add(ttl)
	claims := &Claims{
		Username: username,
		Remember: remember,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.TokenSecret)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "could not sign token")
	}
	return token, expires, nil
}

// Verify authenticates a session token. The revocation set is consulted
// before any signature work so a revoked token is rejected even when its
// signature and expiry would still hold.
func (s *Service) Verify(token string) (*Identity, error) {
	if s.revoked.isRevoked(hash.HashHex([]byte(token))) {
		return nil, ErrTokenRevoked
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.cfg.TokenSecret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &Identity{ID: claims.Subject, Username: claims.Username}, nil
}

// Revoke adds a token to the revocation set until its natural expiry and
// rewrites the pruned on-disk snapshot. Already-expired tokens are a no-op.
func (s *Service) Revoke(token string) error {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return ErrInvalidToken
	}
	until := time.Time{}
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	return s.revoked.revoke(hash.HashHex([]byte(token)), until)
}
