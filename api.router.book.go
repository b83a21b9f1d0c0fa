package main

import (
	"github.com/julienschmidt/httprouter"
)

// SetupBookRoutes injects book related the api endpoints. The search
// endpoint shares the `:id` segment and is dispatched by GetOneBook.
func (api *APIHandler) SetupBookRoutes(router *httprouter.Router, m *MiddlewareMap) *httprouter.Router {
	router.POST("/v1/books", m.protected(api.CreateBook))
	router.GET("/v1/books", m.public(api.GetAllBooks))
	router.GET("/v1/books/:id", m.public(api.GetOneBook))
	router.PUT("/v1/books/:id", m.protected(api.UpdateBook))
	router.DELETE("/v1/books/:id", m.protected(api.DeleteOneBook))
	return router
}
