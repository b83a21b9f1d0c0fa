package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

const (
	// gatewayPrefix is stripped from the path before calling the upstream.
	gatewayPrefix     = "/library"
	fallbackRoute     = "/fallback/book-service"
	gatewayHealthPath = "/gateway/health"
)

// Gateway fronts the book service. Each call goes through rate limiting,
// token validation and a bulkhead before reaching the resilient client.
type Gateway struct {
	logger   *zap.Logger
	config   *Config
	clock    TickerClocker
	ids      UIDHandler
	tokens   AuthServiceProvider
	limiter  *RateLimiter
	bulkhead *Bulkhead
	client   *ResilientClient
}

// NewGateway builds the gateway from its configuration. The http client may be nil.
func NewGateway(logger *zap.Logger, config *Config, clock TickerClocker, ids UIDHandler, tokens AuthServiceProvider, recorder RateLimitRecorder, hc *http.Client) (*Gateway, error) {
	rc, err := NewResilientClient(logger, &config.Gateway, hc)
	if err != nil {
		return nil, err
	}
	return &Gateway{
		logger:   logger,
		config:   config,
		clock:    clock,
		ids:      ids,
		tokens:   tokens,
		limiter:  NewRateLimiter(logger, &config.Gateway.RateLimit, clock, recorder),
		bulkhead: NewBulkhead(&config.Gateway.Bulkhead),
		client:   rc,
	}, nil
}

// Limiter exposes the rate limiter so its janitor can be scheduled.
func (gw *Gateway) Limiter() *RateLimiter {
	return gw.limiter
}

// Stacks returns the middlewares of the edge routes and of the proxied routes.
func (gw *Gateway) Stacks() (edge, full *Middlewares) {
	edge = &Middlewares{
		gw.PanicRecoveryMiddleware,
		gw.RequestIDMiddleware,
		gw.MetricsMiddleware,
	}
	full = &Middlewares{
		gw.PanicRecoveryMiddleware,
		gw.RequestIDMiddleware,
		gw.MetricsMiddleware,
		gw.RateLimitMiddleware,
		gw.JWTMiddleware,
		gw.BulkheadMiddleware,
	}
	return edge, full
}

// Handler returns the router serving the gateway routes.
func (gw *Gateway) Handler() http.Handler {
	router := httprouter.New()
	router.RedirectTrailingSlash = false
	router.NotFound = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gw.sendError(w, r, http.StatusNotFound, "route not found")
	})

	edge, full := gw.Stacks()
	router.GET(gatewayHealthPath, edge.Chain(gw.Health))
	router.GET(fallbackRoute, edge.Chain(gw.Fallback))

	proxy := full.Chain(gw.Forward)
	for _, method := range []string{
		http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions,
	} {
		router.Handle(method, gatewayPrefix+"/v1/books", proxy)
		router.Handle(method, gatewayPrefix+"/v1/books/*path", proxy)
	}
	return router
}

// Forward sends the request to the upstream and copies back its answer.
// Failed calls are answered by the fallback.
func (gw *Gateway) Forward(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var body []byte
	if r.Body != nil && r.Body != http.NoBody {
		data, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize+1))
		if err != nil {
			gw.sendError(w, r, http.StatusBadRequest, "failed to read request body")
			return
		}
		if len(data) > maxBodySize {
			gw.sendError(w, r, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		body = data
	}

	path := strings.TrimPrefix(r.URL.Path, gatewayPrefix)
	resp, err := gw.client.Do(r, path, body)
	if err != nil {
		if errors.Is(err, ErrCallerGone) {
			status := 499
			if errors.Is(err, context.DeadlineExceeded) {
				status = http.StatusGatewayTimeout
			}
			gw.logger.Info("gateway: caller left before the upstream answered",
				zap.String("request.id", GetValueFromContext(r.Context(), RequestIDContextKey)),
				zap.String("request.path", r.URL.Path),
				zap.Int("response.status", status),
				zap.Error(err),
			)
			w.WriteHeader(status)
			return
		}
		reason := fallbackReason(err)
		fallbacksServed.WithLabelValues(reason).Inc()
		gw.logger.Warn("gateway: serving fallback",
			zap.String("request.id", GetValueFromContext(r.Context(), RequestIDContextKey)),
			zap.String("request.method", r.Method),
			zap.String("request.path", r.URL.Path),
			zap.String("fallback.reason", reason),
			zap.Error(err),
		)
		gw.Fallback(w, r, ps)
		return
	}

	for k, values := range resp.header {
		for _, v := range values {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.status)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := w.Write(resp.body); err != nil {
		gw.logger.Debug("gateway: failed to write upstream response", zap.Error(err))
	}
}

// Fallback answers when the book service cannot be reached.
func (gw *Gateway) Fallback(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
	errResp := NewEnvelope(
		requestID,
		http.StatusServiceUnavailable,
		"book service is temporarily unavailable, please retry later.",
		map[string]string{"service": gw.config.Gateway.Breaker.Name},
	)
	gw.write(w, r, errResp.Status, errResp)
}

// Health reports the gateway liveness and the breaker state.
func (gw *Gateway) Health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	gw.write(w, r, http.StatusOK, map[string]string{
		"status":  "UP",
		"breaker": gw.client.State().String(),
	})
}

func (gw *Gateway) sendError(w http.ResponseWriter, r *http.Request, status int, message string) {
	errResp := NewEnvelope(GetValueFromContext(r.Context(), RequestIDContextKey), status, message, nil)
	gw.write(w, r, status, errResp)
}

func (gw *Gateway) write(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		gw.logger.Error("gateway: failed to send response",
			zap.String("request.id", GetValueFromContext(r.Context(), RequestIDContextKey)),
			zap.Error(err),
		)
	}
}

// RequestIDMiddleware keeps the caller request id or generates a new one.
func (gw *Gateway) RequestIDMiddleware(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" || len(requestID) > 128 {
			requestID = gw.ids.Generate(RequestIDPrefix)
		}
		w.Header().Set(RequestIDHeader, requestID)
		ctx := context.WithValue(r.Context(), RequestIDContextKey, requestID)
		next(w, r.WithContext(ctx), ps)
	}
}

func (gw *Gateway) MetricsMiddleware(next httprouter.Handle) httprouter.Handle {
	return instrument("gateway", next)
}

// PanicRecoveryMiddleware turns a panic into a 500 response.
func (gw *Gateway) PanicRecoveryMiddleware(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		defer func() {
			if err := recover(); err != nil {
				panicRecoveries.WithLabelValues("gateway").Inc()
				gw.logger.Error("gateway: panic occurred",
					zap.String("request.id", GetValueFromContext(r.Context(), RequestIDContextKey)),
					zap.String("error", fmt.Sprint(err)),
					zap.Stack("stack"),
				)
				gw.sendError(w, r, http.StatusInternalServerError, "failed to process the request.")
			}
		}()
		next(w, r, ps)
	}
}
