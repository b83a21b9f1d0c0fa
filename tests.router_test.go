package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// reached replaces every registered handler so that only the routing
// table gets exercised.
func reached(httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		w.WriteHeader(http.StatusOK)
	}
}

func newRoutingTestRouter(opsEnable, profilerEnable bool) *httprouter.Router {
	api := newTestAPI(APIServices{})
	api.config.OpsEndpointsEnable = opsEnable
	api.config.ProfilerEndpointsEnable = profilerEnable
	api.WithLogLevel(zap.NewAtomicLevel())
	m := &MiddlewareMap{public: reached, protected: reached, ops: reached}
	return api.SetupRoutes(httprouter.New(), m)
}

type routeCase struct {
	name        string
	method      string
	path        string
	implemented bool
}

func checkRoutes(t *testing.T, router *httprouter.Router, testCases []routeCase) {
	t.Helper()
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
			if tc.implemented {
				assert.NotEqual(t, http.StatusNotFound, w.Code)
				assert.NotEqual(t, http.StatusMethodNotAllowed, w.Code)
			} else {
				assert.Contains(t, []int{http.StatusNotFound, http.StatusMethodNotAllowed}, w.Code)
			}
		})
	}
}

// TestSetupBookRoutes ensures all expected book endpoints are implemented.
func TestSetupBookRoutes(t *testing.T) {
	checkRoutes(t, newRoutingTestRouter(false, false), []routeCase{
		{"index endpoint", http.MethodGet, "/", true},
		{"status endpoint", http.MethodGet, "/status", true},
		{"create book endpoint", http.MethodPost, "/v1/books", true},
		{"fetch all books endpoint", http.MethodGet, "/v1/books", true},
		{"fetch all books endpoint with slash", http.MethodGet, "/v1/books/", true},
		{"search books endpoint", http.MethodGet, "/v1/books/search?title=go", true},
		{"fetch single book endpoint", http.MethodGet, "/v1/books/b:cb8f2136-fae4-4200-85d9-3533c7f8c70d", true},
		{"update book endpoint", http.MethodPut, "/v1/books/b:cb8f2136-fae4-4200-85d9-3533c7f8c70d", true},
		{"delete book endpoint", http.MethodDelete, "/v1/books/b:cb8f2136-fae4-4200-85d9-3533c7f8c70d", true},
		{"patch book endpoint", http.MethodPatch, "/v1/books/b:1", false},
		{"invalid api endpoint", http.MethodGet, "/v1", false},
		{"invalid books endpoint", http.MethodGet, "/books", false},
	})
}

func TestSetupCatalogRoutes(t *testing.T) {
	checkRoutes(t, newRoutingTestRouter(false, false), []routeCase{
		{"create category", http.MethodPost, "/v1/categories", true},
		{"list categories", http.MethodGet, "/v1/categories", true},
		{"fetch category", http.MethodGet, "/v1/categories/c:1", true},
		{"delete category", http.MethodDelete, "/v1/categories/c:1", false},
		{"create product", http.MethodPost, "/v1/products", true},
		{"list products", http.MethodGet, "/v1/products", true},
		{"search products", http.MethodGet, "/v1/products/search?name=pen", true},
		{"fetch product", http.MethodGet, "/v1/products/p:1", true},
		{"update product", http.MethodPut, "/v1/products/p:1", true},
		{"delete product", http.MethodDelete, "/v1/products/p:1", true},
		{"create review", http.MethodPost, "/v1/reviews", true},
		{"product reviews", http.MethodGet, "/v1/reviews/p:1", true},
		{"list all reviews", http.MethodGet, "/v1/reviews", false},
	})
}

func TestSetupNotificationAndAuthRoutes(t *testing.T) {
	checkRoutes(t, newRoutingTestRouter(false, false), []routeCase{
		{"notify", http.MethodPost, "/notify", true},
		{"notify with get", http.MethodGet, "/notify", false},
		{"notification health", http.MethodGet, "/healthNotification", true},
		{"list notifications", http.MethodGet, "/v1/notifications", true},
		{"fetch notification", http.MethodGet, "/v1/notifications/n:1", true},
		{"authenticate", http.MethodPost, "/api/auth", true},
		{"authenticate with get", http.MethodGet, "/api/auth", false},
		{"swagger docs", http.MethodGet, "/swagger/index.html", true},
	})
}

func TestSetupOpsRoutes(t *testing.T) {
	opsCases := []routeCase{
		{"configs", http.MethodGet, "/ops/configs", true},
		{"stats", http.MethodGet, "/ops/stats", true},
		{"maintenance", http.MethodGet, "/ops/maintenance", true},
		{"metrics", http.MethodGet, "/ops/metrics", true},
		{"debug vars", http.MethodGet, "/ops/debug/vars", true},
		{"gc", http.MethodGet, "/ops/debug/gc", true},
		{"free os memory", http.MethodGet, "/ops/debug/fos", true},
		{"log level", http.MethodGet, "/ops/loglevel", true},
		{"change log level", http.MethodPut, "/ops/loglevel", true},
	}

	t.Run("ops disabled", func(t *testing.T) {
		disabled := make([]routeCase, 0, len(opsCases))
		for _, tc := range opsCases {
			tc.implemented = false
			disabled = append(disabled, tc)
		}
		checkRoutes(t, newRoutingTestRouter(false, true), disabled)
	})

	t.Run("ops enabled without profiler", func(t *testing.T) {
		checkRoutes(t, newRoutingTestRouter(true, false), append(opsCases,
			routeCase{"pprof heap", http.MethodGet, "/ops/debug/pprof/heap", false},
			routeCase{"pprof profile", http.MethodGet, "/ops/debug/pprof/profile", false},
		))
	})

	t.Run("ops enabled with profiler", func(t *testing.T) {
		checkRoutes(t, newRoutingTestRouter(true, true), []routeCase{
			{"pprof index", http.MethodGet, "/ops/debug/pprof/", true},
			{"pprof heap", http.MethodGet, "/ops/debug/pprof/heap", true},
			{"pprof goroutine", http.MethodGet, "/ops/debug/pprof/goroutine", true},
			{"pprof symbol", http.MethodGet, "/ops/debug/pprof/symbol", true},
			{"pprof trace", http.MethodGet, "/ops/debug/pprof/trace", true},
			{"pprof mutex", http.MethodGet, "/ops/debug/pprof/mutex", true},
		})
	})
}
