package main

import (
	"context"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// isPublicPath reports whether the path starts with one of the configured public prefixes.
func (gw *Gateway) isPublicPath(path string) bool {
	for _, prefix := range gw.config.Gateway.PublicPaths {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// JWTMiddleware validates the bearer token with the same secret as the api.
// The token is forwarded untouched to the upstream.
func (gw *Gateway) JWTMiddleware(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if !gw.config.Auth.Enable || gw.isPublicPath(r.URL.Path) {
			next(w, r, ps)
			return
		}
		token, err := gw.tokens.TokenFromRequest(r)
		if err == nil {
			claims, verr := gw.tokens.Validate(token)
			if verr == nil {
				ctx := context.WithValue(r.Context(), RequestUserContextKey, claims.Subject)
				next(w, r.WithContext(ctx), ps)
				return
			}
			err = verr
		}
		gw.logger.Info("gateway: request rejected by jwt filter",
			zap.String("request.id", GetValueFromContext(r.Context(), RequestIDContextKey)),
			zap.String("request.path", r.URL.Path),
			zap.Error(err),
		)
		w.Header().Set("WWW-Authenticate", TokenType)
		gw.sendError(w, r, http.StatusUnauthorized, "authentication required")
	}
}
