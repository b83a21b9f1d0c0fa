package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// TokenType is the type reported to clients alongside issued tokens.
const TokenType = "Bearer"

// AuthToken is returned on successful authentication.
type AuthToken struct {
	Token     string `json:"token"`
	Type      string `json:"type"`
	ExpiresAt string `json:"expiresAt"`
}

type AuthServiceProvider interface {
	Authenticate(username, password string) (AuthToken, error)
	Validate(tokenString string) (*jwt.RegisteredClaims, error)
	TokenFromRequest(r *http.Request) (string, error)
}

// TokenManager issues and validates HS256 signed tokens for the configured users.
type TokenManager struct {
	config *AuthConfig
	clock  Clocker
	secret []byte
}

func NewTokenManager(config *AuthConfig, clock Clocker) *TokenManager {
	return &TokenManager{
		config: config,
		clock:  clock,
		secret: []byte(config.Secret),
	}
}

// Authenticate checks the credentials against the bcrypt hash of the user
// and issues a token on success.
func (tm *TokenManager) Authenticate(username, password string) (AuthToken, error) {
	hash, ok := tm.config.Users[username]
	if !ok {
		return AuthToken{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return AuthToken{}, ErrInvalidCredentials
	}
	return tm.Issue(username)
}

// Issue signs a token for the subject.
func (tm *TokenManager) Issue(subject string) (AuthToken, error) {
	now := tm.clock.Now().UTC()
	expires := now.Add(tm.config.TokenTTL)
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    tm.config.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.secret)
	if err != nil {
		return AuthToken{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return AuthToken{Token: signed, Type: TokenType, ExpiresAt: expires.Format(time.RFC3339)}, nil
}

// Validate parses the token and checks its signature, issuer and validity window.
func (tm *TokenManager) Validate(tokenString string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			return tm.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tm.config.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// TokenFromRequest extracts the raw token from the configured header after
// removal of the configured prefix.
func (tm *TokenManager) TokenFromRequest(r *http.Request) (string, error) {
	value := strings.TrimSpace(r.Header.Get(tm.config.HeaderName))
	if value == "" {
		return "", ErrMissingToken
	}
	prefix := strings.TrimSpace(tm.config.TokenPrefix)
	if prefix != "" {
		if len(value) < len(prefix) || !strings.EqualFold(value[:len(prefix)], prefix) {
			return "", ErrInvalidToken
		}
		value = strings.TrimSpace(value[len(prefix):])
	}
	if value == "" {
		return "", ErrMissingToken
	}
	return value, nil
}

