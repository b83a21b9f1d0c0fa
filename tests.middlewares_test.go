package main

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMiddlewaresStacks ensures we get public, protected and ops middlewares
// stacks with exact number of elements in those stacks.
func TestMiddlewaresStacks(t *testing.T) {
	api := newTestAPI(APIServices{})
	pub, protected, ops := api.MiddlewaresStacks()
	assert.Equal(t, 9, len(*pub))
	assert.Equal(t, 10, len(*protected))
	assert.Equal(t, 6, len(*ops))
}

// TestChain ensures each middleware in the stack is called as well the handler.
func TestChain(t *testing.T) {
	var ca, cb, cc, ch bool
	queue := make(chan int, 4)

	middlewareA := func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			queue <- 1
			ca = true
			next(w, r, ps)
		}
	}
	middlewareB := func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			queue <- 2
			cb = true
			next(w, r, ps)
		}
	}
	middlewareC := func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			queue <- 3
			cc = true
			next(w, r, ps)
		}
	}
	middlewares := Middlewares{
		middlewareA,
		middlewareB,
		middlewareC,
	}

	handler := func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		queue <- 4
		ch = true
	}

	chained := (&middlewares).Chain(handler)
	req := httptest.NewRequest("GET", "/v1/books", nil)
	w := httptest.NewRecorder()
	chained(w, req, nil)

	t.Run("check calling", func(t *testing.T) {
		assert.Equal(t, true, ca)
		assert.Equal(t, true, cb)
		assert.Equal(t, true, cc)
		assert.Equal(t, true, ch)
	})

	t.Run("check ordering", func(t *testing.T) {
		assert.Equal(t, 1, <-queue)
		assert.Equal(t, 2, <-queue)
		assert.Equal(t, 3, <-queue)
		assert.Equal(t, 4, <-queue)
	})
}

// TestRequestsCounterMiddleware ensures the request counter increment.
func TestRequestsCounterMiddleware(t *testing.T) {
	api := newTestAPI(APIServices{})
	req := httptest.NewRequest("GET", "/v1/books", nil)
	w := httptest.NewRecorder()
	var num uint64
	handler := func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		num = GetRequestNumberFromContext(req.Context())
	}
	wrapped := api.RequestsCounterMiddleware(handler)
	wrapped(w, req, nil)
	assert.Equal(t, uint64(1), num)
	assert.Equal(t, uint64(1), api.stats.called)
}

func TestRequestIDMiddleware(t *testing.T) {
	api := newTestAPI(APIServices{})
	var id string
	handler := func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		id = GetValueFromContext(req.Context(), RequestIDContextKey)
	}
	w := httptest.NewRecorder()
	api.RequestIDMiddleware(handler)(w, httptest.NewRequest("GET", "/", nil), nil)
	assert.Equal(t, "r:0001", id)
	assert.Equal(t, "r:0001", w.Header().Get(RequestIDHeader))
}

func TestStatsMiddleware(t *testing.T) {
	api := newTestAPI(APIServices{})
	handler := func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		w.WriteHeader(http.StatusTeapot)
	}
	wrapped := api.StatsMiddleware(handler)
	for i := 0; i < 2; i++ {
		wrapped(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil), nil)
	}
	assert.Equal(t, uint64(2), api.stats.status[http.StatusTeapot])
}

func TestPanicRecoveryMiddleware(t *testing.T) {
	api := newTestAPI(APIServices{})
	handler := func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		panic("boom")
	}
	w := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		api.PanicRecoveryMiddleware(handler)(w, httptest.NewRequest("GET", "/", nil), nil)
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"requestid":"", "status":500, "message":"failed to process the request.", "data":{}}`, w.Body.String())
}

func TestTimeoutMiddleware(t *testing.T) {
	api := newTestAPI(APIServices{})
	api.config.Server.RequestTimeout = 50 * time.Millisecond
	var deadline time.Time
	var ok bool
	handler := func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		deadline, ok = req.Context().Deadline()
	}
	api.TimeoutMiddleware(handler)(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil), nil)
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(50*time.Millisecond), deadline, 50*time.Millisecond)
}

func TestMaintenanceModeMiddleware(t *testing.T) {
	api := newTestAPI(APIServices{})
	called := false
	handler := func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		called = true
	}
	wrapped := api.MaintenanceModeMiddleware(handler)

	w := httptest.NewRecorder()
	api.Maintenance(w, httptest.NewRequest("GET", "/ops/maintenance?status=enable&msg=upgrade", nil), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	wrapped(w, httptest.NewRequest("GET", "/v1/books", nil), nil)
	assert.False(t, called)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "upgrade")

	w = httptest.NewRecorder()
	api.Maintenance(w, httptest.NewRequest("GET", "/ops/maintenance?status=disable", nil), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	wrapped(w, httptest.NewRequest("GET", "/v1/books", nil), nil)
	assert.True(t, called)

	w = httptest.NewRecorder()
	api.Maintenance(w, httptest.NewRequest("GET", "/ops/maintenance?status=maybe", nil), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthMiddleware(t *testing.T) {
	auth := &MockAuthService{
		TokenFromRequestFunc: func(r *http.Request) (string, error) {
			v := r.Header.Get("Authorization")
			if v == "" {
				return "", ErrMissingToken
			}
			return v[len("Bearer "):], nil
		},
		ValidateFunc: func(token string) (*jwt.RegisteredClaims, error) {
			if token != "good" {
				return nil, errors.Join(ErrInvalidToken, errors.New("signature is invalid"))
			}
			return &jwt.RegisteredClaims{Subject: "admin"}, nil
		},
	}
	api := newTestAPI(APIServices{Auth: auth})
	api.config.Auth.Enable = true

	var user string
	handler := func(w http.ResponseWriter, req *http.Request, ps httprouter.Params) {
		user = GetValueFromContext(req.Context(), RequestUserContextKey)
	}
	wrapped := api.AuthMiddleware(handler)

	testCases := []struct {
		name   string
		header string
		status int
		user   string
	}{
		{"missing token", "", http.StatusUnauthorized, ""},
		{"invalid token", "Bearer bad", http.StatusUnauthorized, ""},
		{"valid token", "Bearer good", http.StatusOK, "admin"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			user = ""
			req := httptest.NewRequest(http.MethodPost, "/v1/books", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			wrapped(w, req, nil)
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.user, user)
			if tc.status == http.StatusUnauthorized {
				assert.Equal(t, TokenType, w.Header().Get("WWW-Authenticate"))
			}
		})
	}

	t.Run("disabled auth", func(t *testing.T) {
		api.config.Auth.Enable = false
		defer func() { api.config.Auth.Enable = true }()
		w := httptest.NewRecorder()
		wrapped(w, httptest.NewRequest(http.MethodPost, "/v1/books", nil), nil)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRoutePattern(t *testing.T) {
	testCases := []struct {
		path   string
		params httprouter.Params
		want   string
	}{
		{"/v1/books", nil, "/v1/books"},
		{"/v1/books/b:1", httprouter.Params{{Key: "id", Value: "b:1"}}, "/v1/books/:id"},
		{"/v1/books/books", httprouter.Params{{Key: "id", Value: "books"}}, "/v1/books/:id"},
		{"/v1/reviews/p:9", httprouter.Params{{Key: "productId", Value: "p:9"}}, "/v1/reviews/:productId"},
		{"/swagger/index.html", httprouter.Params{{Key: "any", Value: "/index.html"}}, "/swagger/*any"},
		{"/library/v1/books/b:1/x", httprouter.Params{{Key: "path", Value: "/b:1/x"}}, "/library/v1/books/*path"},
		{"/library/v1/books/", httprouter.Params{{Key: "path", Value: "/"}}, "/library/v1/books/*path"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, routePattern(tc.path, tc.params), tc.path)
	}
}

func TestMetricsMiddlewareLabelsRoutePattern(t *testing.T) {
	api := newTestAPI(APIServices{})
	router := httprouter.New()
	router.GET("/v1/widgets/:id", api.MetricsMiddleware(func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.WriteHeader(http.StatusTeapot)
	}))

	counter := httpRequestsTotal.WithLabelValues("api", http.MethodGet, "/v1/widgets/:id", "418")
	before := testutil.ToFloat64(counter)
	for _, id := range []string{"a", "b", "c"} {
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/widgets/"+id, nil))
	}
	assert.Equal(t, before+3, testutil.ToFloat64(counter))
}
