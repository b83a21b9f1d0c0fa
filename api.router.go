package main

import (
	"net/http"

	_ "github.com/jeamon/library-platform/docs"
	"github.com/julienschmidt/httprouter"
	httpswagger "github.com/swaggo/http-swagger/v2"
)

// MiddlewareMap contains middlwares chain to use for public-facing,
// authenticated and ops requests.
type MiddlewareMap struct {
	public    func(httprouter.Handle) httprouter.Handle
	protected func(httprouter.Handle) httprouter.Handle
	ops       func(httprouter.Handle) httprouter.Handle
}

// SetupRoutes injects all domain endpoints and the ops ones if required.
func (api *APIHandler) SetupRoutes(router *httprouter.Router, m *MiddlewareMap) *httprouter.Router {
	router.RedirectTrailingSlash = true
	router.NotFound = http.HandlerFunc(api.NotFound)
	router.MethodNotAllowed = http.HandlerFunc(api.MethodNotAllowed)

	router.GET("/", m.public(api.Index))
	router.GET("/status", m.public(api.Status))

	api.SetupBookRoutes(router, m)
	api.SetupCatalogRoutes(router, m)
	api.SetupNotificationRoutes(router, m)
	router.POST("/api/auth", m.public(api.Authenticate))

	if api.config.OpsEndpointsEnable {
		api.SetupOpsRoutes(router, m)
	}
	router.GET("/swagger/*any", m.public(api.OpsHandlerWrapper(httpswagger.WrapHandler)))
	return router
}
