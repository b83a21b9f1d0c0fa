package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// This file contains the shared test helpers and unit tests of the core api handlers.

// testConfig returns a valid configuration filled with the default values.
func testConfig() *Config {
	config := &Config{
		Server: ServerConfig{Host: "localhost", Port: "8080"},
		Redis:  RedisConfig{Host: "localhost", Port: "6379"},
	}
	setDefaults(config)
	return config
}

// newTestAPI builds an api handler with a fixed clock and ids always valid.
func newTestAPI(services APIServices) *APIHandler {
	clock := NewMockClocker()
	return NewAPIHandler(zap.NewNop(), testConfig(), &Statistics{started: clock.Now()}, clock, NewMockUIDHandler("0001", true), services)
}

// readEnvelope decodes the json body of the response into a generic map.
func readEnvelope(t *testing.T, res *http.Response) map[string]interface{} {
	t.Helper()
	data, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	m := make(map[string]interface{})
	require.NoError(t, json.Unmarshal(data, &m), string(data))
	return m
}

// TestStatusHandler ensures api handler can provides its status.
func TestStatusHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	api := newTestAPI(APIServices{})
	api.Status(w, req, httprouter.Params{})
	res := w.Result()
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "application/json; charset=UTF-8", res.Header.Get("Content-Type"))
	m := readEnvelope(t, res)

	_, ok := m["requestid"]
	assert.True(t, ok)

	v, ok := m["status"]
	assert.True(t, ok)
	assert.Equal(t, "up & running since 0 mins", v)

	v, ok = m["message"]
	assert.True(t, ok)
	assert.Equal(t, "Hello. Library platform api is available. Enjoy :)", v)
}

func TestIndexHandler(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	newTestAPI(APIServices{}).Index(w, req, httprouter.Params{})
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/status", w.Header().Get("Location"))
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	api := newTestAPI(APIServices{})

	t.Run("not found", func(t *testing.T) {
		w := httptest.NewRecorder()
		api.NotFound(w, httptest.NewRequest(http.MethodGet, "/v1/unknown", nil))
		res := w.Result()
		defer res.Body.Close()
		assert.Equal(t, http.StatusNotFound, res.StatusCode)
		m := readEnvelope(t, res)
		assert.Equal(t, "resource not found", m["message"])
		assert.Equal(t, "/v1/unknown", m["data"])
	})

	t.Run("method not allowed", func(t *testing.T) {
		w := httptest.NewRecorder()
		api.MethodNotAllowed(w, httptest.NewRequest(http.MethodPatch, "/v1/books", nil))
		res := w.Result()
		defer res.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, res.StatusCode)
		m := readEnvelope(t, res)
		assert.Equal(t, "PATCH", m["data"])
	})
}

func TestAuthenticateHandler(t *testing.T) {
	auth := &MockAuthService{
		AuthenticateFunc: func(username, password string) (AuthToken, error) {
			if username == "admin" && password == "secret" {
				return AuthToken{Token: "signed.token.value", Type: TokenType, ExpiresAt: "2023-07-02T01:00:00Z"}, nil
			}
			return AuthToken{}, ErrInvalidCredentials
		},
	}
	api := newTestAPI(APIServices{Auth: auth})

	testCases := []struct {
		name    string
		payload string
		status  int
	}{
		{"valid credentials", `{"username":"admin","password":"secret"}`, http.StatusOK},
		{"wrong password", `{"username":"admin","password":"nope"}`, http.StatusUnauthorized},
		{"missing password", `{"username":"admin"}`, http.StatusBadRequest},
		{"empty body", ``, http.StatusBadRequest},
		{"unknown field", `{"user":"admin","password":"secret"}`, http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/auth", strings.NewReader(tc.payload))
			w := httptest.NewRecorder()
			api.Authenticate(w, req, httprouter.Params{})
			res := w.Result()
			defer res.Body.Close()
			assert.Equal(t, tc.status, res.StatusCode)
			m := readEnvelope(t, res)
			if tc.status != http.StatusOK {
				return
			}
			data, ok := m["data"].(map[string]interface{})
			require.True(t, ok)
			assert.Equal(t, "signed.token.value", data["token"])
			assert.Equal(t, "Bearer", data["type"])
		})
	}
}
