package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// Statistics holds app stats for ops.
type Statistics struct {
	version   string
	container bool
	runtime   string
	platform  string
	called    uint64
	started   time.Time
	status    map[int]uint64
	mu        *sync.RWMutex
}

// Maintenance holds app maintenance mode infos.
type Maintenance struct {
	enabled atomic.Bool
	mu      sync.RWMutex
	message string
	started time.Time
}

// APIServices groups the domain services exposed by the api.
type APIServices struct {
	Books         BookServiceProvider
	Catalog       CatalogServiceProvider
	Reviews       ReviewServiceProvider
	Notifications NotificationServiceProvider
	Auth          AuthServiceProvider
}

// APIHandler defines the API handler.
type APIHandler struct {
	logger              *zap.Logger
	config              *Config
	stats               *Statistics
	mode                *Maintenance
	clock               Clocker
	idsHandler          UIDHandler
	bookService         BookServiceProvider
	catalogService      CatalogServiceProvider
	reviewService       ReviewServiceProvider
	notificationService NotificationServiceProvider
	authService         AuthServiceProvider
	relay               *OutboxRelay
	queue               Queuer
	logLevel            *zap.AtomicLevel
}

// NewAPIHandler provides a new instance of APIHandler.
func NewAPIHandler(logger *zap.Logger, config *Config, stats *Statistics, clock Clocker, idsHandler UIDHandler, services APIServices) *APIHandler {
	m := &Maintenance{}
	m.enabled.Store(false)
	stats.status = make(map[int]uint64)
	stats.mu = &sync.RWMutex{}
	return &APIHandler{
		logger:              logger,
		config:              config,
		stats:               stats,
		mode:                m,
		clock:               clock,
		idsHandler:          idsHandler,
		bookService:         services.Books,
		catalogService:      services.Catalog,
		reviewService:       services.Reviews,
		notificationService: services.Notifications,
		authService:         services.Auth,
	}
}

// WithWorkers attaches the background components reported by the ops statistics.
func (api *APIHandler) WithWorkers(relay *OutboxRelay, queue Queuer) *APIHandler {
	api.relay = relay
	api.queue = queue
	return api
}

// WithLogLevel exposes the runtime log level on the ops endpoints.
func (api *APIHandler) WithLogLevel(level zap.AtomicLevel) *APIHandler {
	api.logLevel = &level
	return api
}

// sendError maps err to its http status, logs it and sends the error envelope.
// Internal failures never leak their details to the client.
func (api *APIHandler) sendError(ctx context.Context, w http.ResponseWriter, message string, err error, fields ...zap.Field) {
	requestID := GetValueFromContext(ctx, RequestIDContextKey)
	status := StatusFromError(err)
	fields = append(fields, zap.String("request.id", requestID), zap.Int("response.status", status), zap.Error(err))
	logger := api.GetLoggerFromContext(ctx)
	if status >= http.StatusInternalServerError {
		logger.Error(message, fields...)
	} else {
		logger.Warn(message, fields...)
	}
	if werr := WriteEnvelope(ctx, w, NewEnvelope(requestID, status, message, ErrorData(err))); werr != nil {
		api.logger.Error("failed to send error response", zap.String("request.id", requestID), zap.Error(werr))
	}
}

// sendResponse sends the success envelope.
func (api *APIHandler) sendResponse(ctx context.Context, w http.ResponseWriter, status int, message string, total *int, data interface{}) {
	requestID := GetValueFromContext(ctx, RequestIDContextKey)
	resp := NewEnvelope(requestID, status, message, data)
	resp.Total = total
	if err := WriteEnvelope(ctx, w, resp); err != nil {
		api.logger.Error("failed to send response", zap.String("request.id", requestID), zap.Error(err))
	}
}

// sendNoContent answers 204 without a body, or records 499/504 when the
// request context already ended.
func (api *APIHandler) sendNoContent(ctx context.Context, w http.ResponseWriter) {
	if err := ctx.Err(); err != nil {
		status := 499
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		w.WriteHeader(status)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeAndValidate reads the json body into v then runs its validation rules.
func decodeAndValidate(r *http.Request, v interface{ Validate() error }) error {
	if err := DecodeRequestBody(r, v); err != nil {
		return err
	}
	return v.Validate()
}

// Index provides same details like `Status` handler by redirecting the request.
func (api *APIHandler) Index(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	http.Redirect(w, r, "/status", http.StatusSeeOther)
}

// Status provides basics details about the application to the public users.
func (api *APIHandler) Status(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	if err := json.NewEncoder(w).Encode(
		StatusResponse{
			RequestID: requestID,
			Status:    fmt.Sprintf("up & running since %.0f mins", api.clock.Now().Sub(api.stats.started).Minutes()),
			Message:   "Hello. Library platform api is available. Enjoy :)",
		},
	); err != nil {
		api.logger.Error("failed to send status response", zap.String("request.id", requestID), zap.Error(err))
	}
}

// NotFound answers unknown routes with the json error envelope.
func (api *APIHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	errResp := NewEnvelope(requestID, http.StatusNotFound, "resource not found", r.URL.Path)
	if err := WriteEnvelope(r.Context(), w, errResp); err != nil {
		api.logger.Error("failed to send not found response", zap.String("request.id", requestID), zap.Error(err))
	}
}

// MethodNotAllowed answers known routes called with an unsupported method.
func (api *APIHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	errResp := NewEnvelope(requestID, http.StatusMethodNotAllowed, "method not allowed", r.Method)
	if err := WriteEnvelope(r.Context(), w, errResp); err != nil {
		api.logger.Error("failed to send method not allowed response", zap.String("request.id", requestID), zap.Error(err))
	}
}
