package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestTokenManager(t *testing.T, clock *MockClocker) *TokenManager {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	config := &AuthConfig{
		Enable:      true,
		Secret:      "unit-test-secret",
		Issuer:      "library-platform",
		HeaderName:  "Authorization",
		TokenPrefix: "Bearer ",
		TokenTTL:    time.Hour,
		Users:       map[string]string{"admin": string(hash)},
	}
	return NewTokenManager(config, clock)
}

func TestTokenManagerAuthenticate(t *testing.T) {
	clock := NewMockClocker()
	tm := newTestTokenManager(t, clock)

	_, err := tm.Authenticate("admin", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = tm.Authenticate("nobody", "s3cret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	token, err := tm.Authenticate("admin", "s3cret")
	require.NoError(t, err)
	assert.Equal(t, TokenType, token.Type)
	assert.Equal(t, "2023-07-02T01:00:00Z", token.ExpiresAt)

	claims, err := tm.Validate(token.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin", claims.Subject)
	assert.Equal(t, "library-platform", claims.Issuer)
}

func TestTokenManagerValidate(t *testing.T) {
	clock := NewMockClocker()
	tm := newTestTokenManager(t, clock)
	token, err := tm.Issue("admin")
	require.NoError(t, err)

	t.Run("expired", func(t *testing.T) {
		clock.MockNow = clock.MockNow.Add(2 * time.Hour)
		defer func() { clock.MockNow = clock.MockNow.Add(-2 * time.Hour) }()
		_, err := tm.Validate(token.Token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		other := newTestTokenManager(t, clock)
		other.config.Issuer = "someone-else"
		foreign, err := other.Issue("admin")
		require.NoError(t, err)
		_, err = tm.Validate(foreign.Token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := newTestTokenManager(t, clock)
		other.secret = []byte("another-secret")
		forged, err := other.Issue("admin")
		require.NoError(t, err)
		_, err = tm.Validate(forged.Token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("unsigned token", func(t *testing.T) {
		claims := jwt.RegisteredClaims{Subject: "admin", Issuer: "library-platform", ExpiresAt: jwt.NewNumericDate(clock.Now().Add(time.Hour))}
		none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = tm.Validate(none)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := tm.Validate("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestTokenFromRequest(t *testing.T) {
	tm := newTestTokenManager(t, NewMockClocker())
	testCases := []struct {
		name   string
		header string
		token  string
		err    error
	}{
		{"missing header", "", "", ErrMissingToken},
		{"bearer token", "Bearer abc.def.ghi", "abc.def.ghi", nil},
		{"lower case prefix", "bearer abc", "abc", nil},
		{"wrong scheme", "Basic YWRtaW46cw==", "", ErrInvalidToken},
		{"prefix only", "Bearer ", "", ErrMissingToken},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				r.Header.Set("Authorization", tc.header)
			}
			token, err := tm.TokenFromRequest(r)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.token, token)
		})
	}
}
