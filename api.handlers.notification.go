package main

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

// Notify accepts a notification for asynchronous delivery and answers 202
// without waiting for the outcome.
func (api *APIHandler) Notify(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var n Notification
	if err := DecodeRequestBody(r, &n); err != nil {
		api.sendError(r.Context(), w, "failed to accept the notification", err)
		return
	}
	if n.Channel == "" {
		n.Channel = ChannelLog
	}
	if err := n.Validate(); err != nil {
		api.sendError(r.Context(), w, "failed to accept the notification", err)
		return
	}
	n, err := api.notificationService.Submit(r.Context(), n)
	if err != nil {
		api.sendError(r.Context(), w, "failed to accept the notification", err)
		return
	}
	api.logger.Info("notification queued", zap.String("notification.id", n.ID), zap.String("request.id", GetValueFromContext(r.Context(), RequestIDContextKey)))
	api.sendResponse(r.Context(), w, http.StatusAccepted, "Notification accepted.", nil, n)
}

// HealthNotification reports the availability of the notification intake.
func (api *APIHandler) HealthNotification(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	if err := json.NewEncoder(w).Encode(map[string]string{"status": "UP"}); err != nil {
		api.logger.Error("failed to send health response", zap.String("request.id", GetValueFromContext(r.Context(), RequestIDContextKey)), zap.Error(err))
	}
}

func (api *APIHandler) GetAllNotifications(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	list, err := api.notificationService.GetAll(r.Context())
	if err != nil {
		api.sendError(r.Context(), w, "failed to get all notifications", err)
		return
	}
	total := len(list)
	api.sendResponse(r.Context(), w, http.StatusOK, "All notifications fetched successfully.", &total, list)
}

func (api *APIHandler) GetOneNotification(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if ok := api.idsHandler.IsValid(id, NotificationIDPrefix); !ok {
		api.sendError(r.Context(), w, "notification id provided is not valid", ErrInvalidID, zap.String("notification.id", id))
		return
	}
	n, err := api.notificationService.GetOne(r.Context(), id)
	if err != nil {
		api.sendError(r.Context(), w, "failed to get the notification", err, zap.String("notification.id", id))
		return
	}
	api.sendResponse(r.Context(), w, http.StatusOK, "Notification fetched successfully.", nil, n)
}
