package main

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// Authenticate exchanges valid credentials for a signed token.
func (api *APIHandler) Authenticate(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req AuthRequest
	if err := decodeAndValidate(r, &req); err != nil {
		api.sendError(r.Context(), w, "failed to authenticate", err)
		return
	}
	token, err := api.authService.Authenticate(req.Username, req.Password)
	if err != nil {
		api.sendError(r.Context(), w, "failed to authenticate", err, zap.String("auth.user", req.Username))
		return
	}
	api.logger.Info("token issued", zap.String("auth.user", req.Username), zap.String("request.id", GetValueFromContext(r.Context(), RequestIDContextKey)))
	api.sendResponse(r.Context(), w, http.StatusOK, "Authentication succeeded.", nil, token)
}
