// Package auth issues and verifies the HS256 bearer tokens that identify a
// user to the API. The token subject is the user key under which the user's
// document is stored.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "dialin"

// Token errors.
var (
	ErrEmptySecret  = errors.New("signing secret is empty")
	ErrEmptySubject = errors.New("token subject is empty")
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Claims are the registered claims carried by a token.
type Claims struct {
	jwt.RegisteredClaims
}

// Issue signs a token for user that expires after ttl.
func Issue(secret, user string, ttl time.Duration, now time.Time) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}
	if user == "" {
		return "", ErrEmptySubject
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   user,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of tokenString and returns its
// subject.
func Verify(secret, tokenString string) (string, error) {
	if secret == "" {
		return "", ErrEmptySecret
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, ErrEmptySubject)
	}
	return claims.Subject, nil
}
