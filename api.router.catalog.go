package main

import (
	"github.com/julienschmidt/httprouter"
)

// SetupCatalogRoutes injects categories, products and reviews endpoints.
func (api *APIHandler) SetupCatalogRoutes(router *httprouter.Router, m *MiddlewareMap) *httprouter.Router {
	router.POST("/v1/categories", m.protected(api.CreateCategory))
	router.GET("/v1/categories", m.public(api.GetAllCategories))
	router.GET("/v1/categories/:id", m.public(api.GetOneCategory))

	router.POST("/v1/products", m.protected(api.CreateProduct))
	router.GET("/v1/products", m.public(api.GetAllProducts))
	router.GET("/v1/products/:id", m.public(api.GetOneProduct))
	router.PUT("/v1/products/:id", m.protected(api.UpdateProduct))
	router.DELETE("/v1/products/:id", m.protected(api.DeleteOneProduct))

	router.POST("/v1/reviews", m.protected(api.CreateReview))
	router.GET("/v1/reviews/:productId", m.public(api.GetProductReviews))
	return router
}
