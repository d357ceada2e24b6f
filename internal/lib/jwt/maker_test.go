package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test_secret_key_1234567890"

func TestMaker_GenerateAndParse(t *testing.T) {
	ttl := 15 * time.Minute
	maker := NewJWTMaker(testSecret, ttl)

	tests := []struct {
		name   string
		userID string
		email  string
		role   string
	}{
		{name: "teacher", userID: "u1", email: "asha@school.in", role: "teacher"},
		{name: "admin", userID: "a1", email: "admin@questgen.in", role: "admin"},
		{name: "legacy user without id", email: "old@school.in", role: "teacher"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := maker.GenerateToken(tt.userID, tt.email, tt.role)
			require.NoError(t, err)
			assert.NotEmpty(t, token)

			claims, err := maker.ParseToken(token)
			require.NoError(t, err)
			assert.Equal(t, tt.userID, claims.UserID)
			assert.Equal(t, tt.email, claims.Email)
			assert.Equal(t, tt.role, claims.Role)
			assert.WithinDuration(t, time.Now().Add(ttl), claims.ExpiresAt.Time, time.Second)
		})
	}
}

func TestMaker_ParseInvalid(t *testing.T) {
	maker := NewJWTMaker(testSecret, 15*time.Minute)
	valid, err := maker.GenerateToken("u1", "asha@school.in", "teacher")
	require.NoError(t, err)

	expired, err := NewJWTMaker(testSecret, -time.Hour).GenerateToken("u1", "asha@school.in", "teacher")
	require.NoError(t, err)

	foreign, err := NewJWTMaker("wrong_secret", time.Hour).GenerateToken("u1", "asha@school.in", "teacher")
	require.NoError(t, err)

	noEmail, err := maker.GenerateToken("u1", "", "teacher")
	require.NoError(t, err)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Email: "asha@school.in"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "malformed", token: "invalid.token.here"},
		{name: "expired", token: expired},
		{name: "wrong secret", token: foreign},
		{name: "tampered", token: valid + "x"},
		{name: "no email", token: noEmail},
		{name: "alg none", token: none},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := maker.ParseToken(tt.token)
			assert.Error(t, err)
			assert.Nil(t, claims)
		})
	}
}
