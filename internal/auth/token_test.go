package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestIssueAndVerify(t *testing.T) {
	token, err := Issue(testSecret, "alice@example.com", time.Hour, time.Now())
	require.NoError(t, err)

	user, err := Verify(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user)
}

func TestIssue_Validation(t *testing.T) {
	_, err := Issue("", "alice", time.Hour, time.Now())
	assert.ErrorIs(t, err, ErrEmptySecret)

	_, err = Issue(testSecret, "", time.Hour, time.Now())
	assert.ErrorIs(t, err, ErrEmptySubject)
}

func TestVerify_Rejects(t *testing.T) {
	expired, err := Issue(testSecret, "alice", time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)

	otherSecret, err := Issue("another-secret-of-enough-length", "alice", time.Hour, time.Now())
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   "alice",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	wrongIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			Subject:   "alice",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: issuer, Subject: "alice"},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"expired", expired},
		{"wrong secret", otherSecret},
		{"none algorithm", noneAlg},
		{"wrong issuer", wrongIssuer},
		{"missing expiry", noExpiry},
		{"garbage", "not.a.token"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Verify(testSecret, tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestVerify_EmptySecret(t *testing.T) {
	_, err := Verify("", "x")
	assert.ErrorIs(t, err, ErrEmptySecret)
}
