package main

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"
)

func (api *APIHandler) CreateReview(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var review Review
	if err := decodeAndValidate(r, &review); err != nil {
		api.sendError(r.Context(), w, "failed to create the review", err)
		return
	}
	review, err := api.reviewService.AddReview(r.Context(), review)
	if err != nil {
		api.sendError(r.Context(), w, "failed to create the review", err, zap.String("product.id", review.ProductID))
		return
	}
	api.sendResponse(r.Context(), w, http.StatusCreated, "Review created successfully.", nil, review)
}

// GetProductReviews lists the reviews of the product given in the path.
func (api *APIHandler) GetProductReviews(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	productID := ps.ByName("productId")
	if ok := api.idsHandler.IsValid(productID, ProductIDPrefix); !ok {
		api.sendError(r.Context(), w, "product id provided is not valid", ErrInvalidID, zap.String("product.id", productID))
		return
	}
	reviews, err := api.reviewService.GetReviews(r.Context(), productID)
	if err != nil {
		api.sendError(r.Context(), w, "failed to get the reviews", err, zap.String("product.id", productID))
		return
	}
	total := len(reviews)
	api.sendResponse(r.Context(), w, http.StatusOK, "Reviews fetched successfully.", &total, reviews)
}
