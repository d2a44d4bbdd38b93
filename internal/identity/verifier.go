package identity

import (
	"crypto/subtle"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/starford/notely/internal/apperr"
)

// Verifier resolves a bearer credential to a stable owner id.
type Verifier interface {
	Verify(token string) (owner string, err error)
}

// JWTVerifier accepts HS256 access tokens signed with the provider's JWT
// secret. The subject claim is the owner id.
type JWTVerifier struct {
	secret   []byte
	audience string
}

// NewJWTVerifier creates a verifier for tokens signed with secret. When
// audience is non-empty the aud claim must contain it.
func NewJWTVerifier(secret, audience string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), audience: audience}
}

// Verify validates signature, expiry and audience and returns the subject.
func (v *JWTVerifier) Verify(raw string) (string, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &jwt.RegisteredClaims{}
	if _, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...); err != nil {
		return "", fmt.Errorf("%w: %w", apperr.ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: token has no subject", apperr.ErrUnauthenticated)
	}
	return claims.Subject, nil
}

// StaticToken accepts a single shared token and maps it to a fixed owner.
type StaticToken struct {
	Token string
	Owner string
}

// Verify compares token against the configured one in constant time.
func (s StaticToken) Verify(token string) (string, error) {
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.Token)) != 1 {
		return "", apperr.ErrUnauthenticated
	}
	return s.Owner, nil
}

// FixedOwner authenticates every request as Owner. It backs the disabled
// auth mode used for local development.
type FixedOwner struct {
	Owner string
}

// Verify ignores the token.
func (f FixedOwner) Verify(string) (string, error) {
	return f.Owner, nil
}
