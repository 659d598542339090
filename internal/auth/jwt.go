package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"messaging-service/internal/models"
)

// ErrUnauthorized is returned for missing, malformed, invalid or expired tokens.
var ErrUnauthorized = errors.New("unauthorized")

// TokenVerifier turns a bearer token into the caller's user id.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// Claims is the access token payload issued by the auth service.
type Claims struct {
	ID string `json:"id"`
	jwt.RegisteredClaims
}

// JWTVerifier checks HS256 access tokens.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier constructs a verifier for tokens signed with secret.
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

// Verify validates signature and expiry and returns the user id claim.
func (v *JWTVerifier) Verify(token string) (string, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if !parsed.Valid || !models.ValidID(claims.ID) {
		return "", fmt.Errorf("%w: bad claims", ErrUnauthorized)
	}
	return claims.ID, nil
}

// Issue signs an access token for userID. Used by tooling and tests; the
// auth service issues production tokens.
func (v *JWTVerifier) Issue(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		ID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return token.SignedString(v.secret)
}
