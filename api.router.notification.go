package main

import (
	"github.com/julienschmidt/httprouter"
)

// SetupNotificationRoutes injects the notification intake and archive endpoints.
func (api *APIHandler) SetupNotificationRoutes(router *httprouter.Router, m *MiddlewareMap) *httprouter.Router {
	router.POST("/notify", m.public(api.Notify))
	router.GET("/healthNotification", m.public(api.HealthNotification))
	router.GET("/v1/notifications", m.protected(api.GetAllNotifications))
	router.GET("/v1/notifications/:id", m.protected(api.GetOneNotification))
	return router
}
