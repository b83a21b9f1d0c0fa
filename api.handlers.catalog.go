package main

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

func (api *APIHandler) CreateCategory(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var category Category
	if err := decodeAndValidate(r, &category); err != nil {
		api.sendError(r.Context(), w, "failed to create the category", err)
		return
	}
	category, err := api.catalogService.AddCategory(r.Context(), category)
	if err != nil {
		api.sendError(r.Context(), w, "failed to create the category", err, zap.String("category.name", category.Name))
		return
	}
	api.sendResponse(r.Context(), w, http.StatusCreated, "Category created successfully.", nil, category)
}

func (api *APIHandler) GetAllCategories(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	categories, err := api.catalogService.GetAllCategories(r.Context())
	if err != nil {
		api.sendError(r.Context(), w, "failed to get all categories", err)
		return
	}
	total := len(categories)
	api.sendResponse(r.Context(), w, http.StatusOK, "All categories fetched successfully.", &total, categories)
}

func (api *APIHandler) GetOneCategory(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if ok := api.idsHandler.IsValid(id, CategoryIDPrefix); !ok {
		api.sendError(r.Context(), w, "category id provided is not valid", ErrInvalidID, zap.String("category.id", id))
		return
	}
	category, err := api.catalogService.GetCategory(r.Context(), id)
	if err != nil {
		api.sendError(r.Context(), w, "failed to get the category", err, zap.String("category.id", id))
		return
	}
	api.sendResponse(r.Context(), w, http.StatusOK, "Category fetched successfully.", nil, category)
}

func (api *APIHandler) CreateProduct(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var product Product
	if err := decodeAndValidate(r, &product); err != nil {
		api.sendError(r.Context(), w, "failed to create the product", err)
		return
	}
	product, err := api.catalogService.AddProduct(r.Context(), product)
	if err != nil {
		api.sendError(r.Context(), w, "failed to create the product", err, zap.String("category.id", product.CategoryID))
		return
	}
	api.logger.Info("success to create product", zap.String("product.id", product.ID), zap.String("request.id", GetValueFromContext(r.Context(), RequestIDContextKey)))
	api.sendResponse(r.Context(), w, http.StatusCreated, "Product created successfully.", nil, product)
}

// GetAllProducts lists every product with its category.
func (api *APIHandler) GetAllProducts(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	products, err := api.catalogService.SearchProducts(r.Context(), ProductFilter{})
	if err != nil {
		api.sendError(r.Context(), w, "failed to get all products", err)
		return
	}
	total := len(products)
	api.sendResponse(r.Context(), w, http.StatusOK, "All products fetched successfully.", &total, products)
}

// SearchProducts lists products filtered by the `name` and `category` query parameters.
func (api *APIHandler) SearchProducts(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	q := r.URL.Query()
	filter := ProductFilter{
		Name:       q.Get("name"),
		CategoryID: q.Get("category"),
	}
	products, err := api.catalogService.SearchProducts(r.Context(), filter)
	if err != nil {
		api.sendError(r.Context(), w, "failed to search products", err)
		return
	}
	total := len(products)
	api.sendResponse(r.Context(), w, http.StatusOK, "Products searched successfully.", &total, products)
}

// GetOneProduct serves a single product. The `search` segment is routed to SearchProducts.
func (api *APIHandler) GetOneProduct(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if id == searchSegment {
		api.SearchProducts(w, r, ps)
		return
	}
	if ok := api.idsHandler.IsValid(id, ProductIDPrefix); !ok {
		api.sendError(r.Context(), w, "product id provided is not valid", ErrInvalidID, zap.String("product.id", id))
		return
	}
	product, err := api.catalogService.GetProduct(r.Context(), id)
	if err != nil {
		api.sendError(r.Context(), w, "failed to get the product", err, zap.String("product.id", id))
		return
	}
	api.sendResponse(r.Context(), w, http.StatusOK, "Product fetched successfully.", nil, product)
}

func (api *APIHandler) UpdateProduct(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if ok := api.idsHandler.IsValid(id, ProductIDPrefix); !ok {
		api.sendError(r.Context(), w, "product id provided is not valid", ErrInvalidID, zap.String("product.id", id))
		return
	}
	var product Product
	if err := decodeAndValidate(r, &product); err != nil {
		api.sendError(r.Context(), w, "failed to update the product", err, zap.String("product.id", id))
		return
	}
	product, err := api.catalogService.UpdateProduct(r.Context(), id, product)
	if err != nil {
		api.sendError(r.Context(), w, "failed to update the product", err, zap.String("product.id", id))
		return
	}
	api.logger.Info("success to update product", zap.String("product.id", id), zap.String("request.id", GetValueFromContext(r.Context(), RequestIDContextKey)))
	api.sendResponse(r.Context(), w, http.StatusOK, "Product updated successfully.", nil, product)
}

func (api *APIHandler) DeleteOneProduct(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if ok := api.idsHandler.IsValid(id, ProductIDPrefix); !ok {
		api.sendError(r.Context(), w, "product id provided is not valid", ErrInvalidID, zap.String("product.id", id))
		return
	}
	if _, err := api.catalogService.DeleteProduct(r.Context(), id); err != nil {
		api.sendError(r.Context(), w, "failed to delete the product", err, zap.String("product.id", id))
		return
	}
	api.logger.Info("success to delete product", zap.String("product.id", id), zap.String("request.id", GetValueFromContext(r.Context(), RequestIDContextKey)))
	api.sendNoContent(r.Context(), w)
}
