package main

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// RequestIDHeader carries the request id back to the client.
const RequestIDHeader = "X-Request-ID"

// MiddlewareFunc is a custom type for ease of use.
type MiddlewareFunc func(httprouter.Handle) httprouter.Handle

// Middlewares is a custom type to represent a stack of
// middleware functions used to build a single chain.
type Middlewares []MiddlewareFunc

// Chain wraps a given httprouter.Handle with a list of middlewares.
// It does by starting from the last middleware from the list.
func (m *Middlewares) Chain(h httprouter.Handle) httprouter.Handle {
	if len(*m) == 0 {
		return h
	}
	lg := len(*m)
	handle := (*m)[lg-1](h)

	for i := lg - 2; i >= 0; i-- {
		handle = (*m)[i](handle)
	}

	return handle
}

// MiddlewaresStacks builds the stacks used by public, protected and ops routes.
// Protected routes run the public stack followed by the authentication check.
func (api *APIHandler) MiddlewaresStacks() (public, protected, ops *Middlewares) {
	public = &Middlewares{
		api.RequestIDMiddleware,
		api.RequestsCounterMiddleware,
		api.StatsMiddleware,
		api.MetricsMiddleware,
		api.CoreMiddleware,
		api.PanicRecoveryMiddleware,
		CORSMiddleware,
		api.MaintenanceModeMiddleware,
		api.TimeoutMiddleware,
	}

	p := make(Middlewares, 0, len(*public)+1)
	p = append(p, *public...)
	p = append(p, api.AuthMiddleware)
	protected = &p

	ops = &Middlewares{
		api.RequestIDMiddleware,
		api.RequestsCounterMiddleware,
		api.StatsMiddleware,
		api.MetricsMiddleware,
		api.CoreMiddleware,
		api.PanicRecoveryMiddleware,
	}
	return public, protected, ops
}

// CoreMiddleware setup the duration measurement for each request and logs its result.
func (api *APIHandler) CoreMiddleware(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		start := time.Now()
		requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
		logger := api.logger.With(zap.String("request.id", requestID))
		r = r.WithContext(context.WithValue(r.Context(), LoggerContextKey, logger))

		logger.Info(
			"request",
			zap.Uint64("request.num", GetRequestNumberFromContext(r.Context())),
			zap.String("request.method", r.Method),
			zap.String("request.path", r.URL.Path),
			zap.String("request.ip", GetRequestSourceIP(r)),
			zap.String("request.agent", r.UserAgent()),
			zap.String("request.referer", r.Referer()),
		)

		next(w, r, ps)

		fields := []zap.Field{
			zap.String("request.method", r.Method),
			zap.String("request.path", r.URL.Path),
			zap.Duration("request.duration", time.Since(start)),
		}
		if cw, ok := w.(*CustomResponseWriter); ok {
			fields = append(fields, zap.Int("response.status", cw.Status()), zap.Int("response.bytes", cw.Bytes()))
		}
		logger.Info("response", fields...)
	}
}

// RequestsCounterMiddleware increments the number of received requests statistics and add this
// new value to the request context to be used during logging as `request.num` field.
func (api *APIHandler) RequestsCounterMiddleware(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		ctx := context.WithValue(r.Context(), RequestNumberContextKey, atomic.AddUint64(&api.stats.called, 1))
		r = r.WithContext(ctx)
		next(w, r, ps)
	}
}

// RequestIDMiddleware generates and add a unique id to the request context
// and to the response headers.
func (api *APIHandler) RequestIDMiddleware(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		requestID := api.idsHandler.Generate(RequestIDPrefix)
		w.Header().Set(RequestIDHeader, requestID)
		ctx := context.WithValue(r.Context(), RequestIDContextKey, requestID)
		r = r.WithContext(ctx)
		next(w, r, ps)
	}
}

// StatsMiddleware wraps the response writer to record the status code of
// each response into the statistics.
func (api *APIHandler) StatsMiddleware(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		cw := NewCustomResponseWriter(w, GetConnFromContext(r.Context()))
		next(cw, r, ps)
		api.stats.mu.Lock()
		api.stats.status[cw.Status()]++
		api.stats.mu.Unlock()
	}
}

// MetricsMiddleware instruments requests with prometheus metrics. Routes are
// labelled with their pattern to keep the cardinality bounded.
func (api *APIHandler) MetricsMiddleware(next httprouter.Handle) httprouter.Handle {
	return instrument("api", next)
}

func instrument(server string, next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		start := time.Now()
		httpRequestsInFlight.WithLabelValues(server).Inc()
		defer httpRequestsInFlight.WithLabelValues(server).Dec()

		cw, ok := w.(*CustomResponseWriter)
		if !ok {
			cw = NewCustomResponseWriter(w, GetConnFromContext(r.Context()))
		}
		next(cw, r, ps)

		route := routePattern(r.URL.Path, ps)
		httpRequestsTotal.WithLabelValues(server, r.Method, route, strconv.Itoa(cw.Status())).Inc()
		httpRequestDuration.WithLabelValues(server, r.Method, route).Observe(time.Since(start).Seconds())
	}
}

// routePattern rebuilds the registered pattern of the matched route from the
// request path and its params, so that metrics labels stay bounded. Params
// are resolved from the end of the path where httprouter places them.
func routePattern(path string, ps httprouter.Params) string {
	if len(ps) == 0 {
		return path
	}
	segments := strings.Split(path, "/")
	end := len(segments)
	for i := len(ps) - 1; i >= 0; i-- {
		p := ps[i]
		if strings.HasPrefix(p.Value, "/") {
			// catch-all: the value holds the rest of the path.
			n := strings.Count(p.Value, "/")
			if n >= end {
				return path
			}
			segments = append(segments[:end-n], "*"+p.Key)
			end = len(segments) - 1
			continue
		}
		for j := end - 1; j > 0; j-- {
			if segments[j] == p.Value {
				segments[j] = ":" + p.Key
				end = j
				break
			}
		}
	}
	return strings.Join(segments, "/")
}

// CORSMiddleware intercepts each incoming HTTP calls then apply cors headers on it.
func CORSMiddleware(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH, HEAD")
		w.Header().Set("Access-Control-Allow-Headers", "Origin, Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-API-Key, X-Request-ID, User-Agent, Cache-Control")
		next(w, r, ps)
	}
}

// PanicRecoveryMiddleware catches any panic during the request lifecycle and produces
// an error log for further analysis. It sends a failure response to the client with 500.
func (api *APIHandler) PanicRecoveryMiddleware(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		defer func() {
			if err := recover(); err != nil {
				panicRecoveries.WithLabelValues("api").Inc()
				requestID := GetValueFromContext(r.Context(), RequestIDContextKey)
				api.logger.Error("panic occurred", zap.String("request.id", requestID), zap.Any("error", err), zap.Stack("stack"))
				errResp := NewEnvelope(requestID, http.StatusInternalServerError, "failed to process the request.", nil)
				if err := WriteEnvelope(r.Context(), w, errResp); err != nil {
					api.logger.Error("failed to send error response", zap.String("request.id", requestID), zap.Error(err))
				}
			}
		}()
		next(w, r, ps)
	}
}

// MaintenanceModeMiddleware answers every request with the maintenance
// message while the mode is enabled.
func (api *APIHandler) MaintenanceModeMiddleware(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if api.mode.enabled.Load() {
			api.Maintenance(w, r, httprouter.Params{{Key: "status", Value: "show"}})
			return
		}
		next(w, r, ps)
	}
}

// TimeoutMiddleware bounds the processing time of the request. Handlers
// observing the expired context answer with 504.
func (api *APIHandler) TimeoutMiddleware(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		ctx, cancel := context.WithTimeout(r.Context(), api.config.Server.RequestTimeout)
		defer cancel()
		next(w, r.WithContext(ctx), ps)
	}
}

// AuthMiddleware requires a valid token on the configured header when
// authentication is enabled. The token subject is saved into the context.
func (api *APIHandler) AuthMiddleware(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if !api.config.Auth.Enable {
			next(w, r, ps)
			return
		}
		token, err := api.authService.TokenFromRequest(r)
		if err != nil {
			w.Header().Set("WWW-Authenticate", TokenType)
			api.sendError(r.Context(), w, "authentication required", err)
			return
		}
		claims, err := api.authService.Validate(token)
		if err != nil {
			w.Header().Set("WWW-Authenticate", TokenType)
			api.sendError(r.Context(), w, "authentication required", err)
			return
		}
		ctx := context.WithValue(r.Context(), RequestUserContextKey, claims.Subject)
		next(w, r.WithContext(ctx), ps)
	}
}
