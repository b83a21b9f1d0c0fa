package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newCatalogTestAPI(catalog CatalogStorage, reviews ReviewStorage, cache ReviewCache) *APIHandler {
	clock := NewMockClocker()
	ids := NewMockUIDHandler("0001", true)
	return newTestAPI(APIServices{
		Catalog: NewCatalogService(zap.NewNop(), clock, ids, catalog),
		Reviews: NewReviewService(zap.NewNop(), testConfig(), clock, ids, reviews, cache),
	})
}

func TestCreateCategoryHandler(t *testing.T) {
	var event OutboxEvent
	storage := &MockCatalogStorage{
		AddCategoryFunc: func(ctx context.Context, category Category, e OutboxEvent) error {
			if category.Name == "Fiction" {
				return ErrDuplicateCategory
			}
			event = e
			return nil
		},
	}
	api := newCatalogTestAPI(storage, nil, nil)

	t.Run("new category", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/categories", bytes.NewBufferString(`{"name":"Science","description":"Hard science"}`))
		api.CreateCategory(w, req, httprouter.Params{})
		res := w.Result()
		defer res.Body.Close()
		assert.Equal(t, http.StatusCreated, res.StatusCode)
		m := readEnvelope(t, res)
		data := m["data"].(map[string]interface{})
		assert.Equal(t, "c:0001", data["id"])
		assert.Equal(t, "Science", data["name"])

		assert.Equal(t, "category.created", event.Name())
		assert.Equal(t, "c:0001", event.AggregateID)
		assert.Contains(t, event.Payload, `"name":"Science"`)
	})

	t.Run("duplicate name", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/categories", bytes.NewBufferString(`{"name":"Fiction"}`))
		api.CreateCategory(w, req, httprouter.Params{})
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("missing name", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/categories", bytes.NewBufferString(`{"description":"no name"}`))
		api.CreateCategory(w, req, httprouter.Params{})
		res := w.Result()
		defer res.Body.Close()
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
		m := readEnvelope(t, res)
		assert.Equal(t, map[string]interface{}{"name": "cannot be blank"}, m["data"])
	})
}

func TestGetCategoryHandlers(t *testing.T) {
	storage := &MockCatalogStorage{
		GetCategoryFunc: func(ctx context.Context, id string) (Category, error) {
			if id == "c:0001" {
				return Category{ID: id, Name: "Science"}, nil
			}
			return Category{}, ErrCategoryNotFound
		},
		GetAllCategoriesFunc: func(ctx context.Context) ([]Category, error) {
			return []Category{{ID: "c:0001", Name: "Science"}, {ID: "c:0002", Name: "Travel"}}, nil
		},
	}
	api := newCatalogTestAPI(storage, nil, nil)

	w := httptest.NewRecorder()
	api.GetAllCategories(w, httptest.NewRequest(http.MethodGet, "/v1/categories", nil), httprouter.Params{})
	res := w.Result()
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, float64(2), readEnvelope(t, res)["total"])

	w = httptest.NewRecorder()
	api.GetOneCategory(w, httptest.NewRequest(http.MethodGet, "/v1/categories/c:0001", nil), httprouter.Params{{Key: "id", Value: "c:0001"}})
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	api.GetOneCategory(w, httptest.NewRequest(http.MethodGet, "/v1/categories/c:0404", nil), httprouter.Params{{Key: "id", Value: "c:0404"}})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateProductHandler(t *testing.T) {
	products := map[string]Product{}
	storage := &MockCatalogStorage{
		AddProductFunc: func(ctx context.Context, p Product, e OutboxEvent) error {
			if p.CategoryID != "c:0001" {
				return ErrCategoryNotFound
			}
			products[p.ID] = p
			return nil
		},
		GetProductFunc: func(ctx context.Context, id string) (Product, error) {
			p, ok := products[id]
			if !ok {
				return p, ErrProductNotFound
			}
			p.Category = &Category{ID: p.CategoryID, Name: "Science"}
			return p, nil
		},
	}
	api := newCatalogTestAPI(storage, nil, nil)

	t.Run("known category", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/products", bytes.NewBufferString(`{"name":"Telescope","price":199.5,"categoryId":"c:0001"}`))
		api.CreateProduct(w, req, httprouter.Params{})
		res := w.Result()
		defer res.Body.Close()
		assert.Equal(t, http.StatusCreated, res.StatusCode)
		data := readEnvelope(t, res)["data"].(map[string]interface{})
		assert.Equal(t, "p:0001", data["id"])
		category, ok := data["category"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "Science", category["name"])
	})

	t.Run("unknown category", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/products", bytes.NewBufferString(`{"name":"Telescope","price":199.5,"categoryId":"c:0404"}`))
		api.CreateProduct(w, req, httprouter.Params{})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("negative price", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/products", bytes.NewBufferString(`{"name":"Telescope","price":-1,"categoryId":"c:0001"}`))
		api.CreateProduct(w, req, httprouter.Params{})
		res := w.Result()
		defer res.Body.Close()
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
		data := readEnvelope(t, res)["data"].(map[string]interface{})
		assert.Contains(t, data, "price")
	})
}

func TestProductReadAndMutationHandlers(t *testing.T) {
	var filter ProductFilter
	deleted := ""
	storage := &MockCatalogStorage{
		GetProductFunc: func(ctx context.Context, id string) (Product, error) {
			if id != "p:0001" {
				return Product{}, ErrProductNotFound
			}
			return Product{ID: id, Name: "Telescope", CategoryID: "c:0001"}, nil
		},
		SearchProductsFunc: func(ctx context.Context, f ProductFilter) ([]Product, error) {
			filter = f
			return []Product{{ID: "p:0001", Name: "Telescope"}}, nil
		},
		UpdateProductFunc: func(ctx context.Context, p Product, e OutboxEvent) (Product, error) {
			if p.ID != "p:0001" {
				return Product{}, ErrProductNotFound
			}
			return p, nil
		},
		DeleteProductFunc: func(ctx context.Context, id string, e OutboxEvent) error {
			deleted = id
			return nil
		},
	}
	api := newCatalogTestAPI(storage, nil, nil)

	t.Run("search through the id segment", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/v1/products/search?name=tele&category=c:0001", nil)
		api.GetOneProduct(w, req, httprouter.Params{{Key: "id", Value: searchSegment}})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, ProductFilter{Name: "tele", CategoryID: "c:0001"}, filter)
	})

	t.Run("list all", func(t *testing.T) {
		w := httptest.NewRecorder()
		api.GetAllProducts(w, httptest.NewRequest(http.MethodGet, "/v1/products", nil), httprouter.Params{})
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, ProductFilter{}, filter)
	})

	t.Run("get unknown", func(t *testing.T) {
		w := httptest.NewRecorder()
		api.GetOneProduct(w, httptest.NewRequest(http.MethodGet, "/v1/products/p:0404", nil), httprouter.Params{{Key: "id", Value: "p:0404"}})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("update", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, "/v1/products/p:0001", bytes.NewBufferString(`{"name":"Big telescope","price":299,"categoryId":"c:0001"}`))
		api.UpdateProduct(w, req, httprouter.Params{{Key: "id", Value: "p:0001"}})
		res := w.Result()
		defer res.Body.Close()
		assert.Equal(t, http.StatusOK, res.StatusCode)
		data := readEnvelope(t, res)["data"].(map[string]interface{})
		assert.Equal(t, "Big telescope", data["name"])
		assert.Equal(t, "2023-07-02T00:00:00Z", data["updatedAt"])
	})

	t.Run("delete", func(t *testing.T) {
		w := httptest.NewRecorder()
		api.DeleteOneProduct(w, httptest.NewRequest(http.MethodDelete, "/v1/products/p:0001", nil), httprouter.Params{{Key: "id", Value: "p:0001"}})
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
		assert.Equal(t, "p:0001", deleted)
	})

	t.Run("delete unknown", func(t *testing.T) {
		w := httptest.NewRecorder()
		api.DeleteOneProduct(w, httptest.NewRequest(http.MethodDelete, "/v1/products/p:0404", nil), httprouter.Params{{Key: "id", Value: "p:0404"}})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestReviewHandlers(t *testing.T) {
	stored := []Review{}
	loads := 0
	reviews := &MockReviewStorage{
		AddReviewFunc: func(ctx context.Context, r Review, e OutboxEvent) error {
			if r.ProductID != "p:0001" {
				return ErrProductNotFound
			}
			stored = append(stored, r)
			return nil
		},
		GetReviewsByProductFunc: func(ctx context.Context, productID string) ([]Review, error) {
			loads++
			var found []Review
			for _, r := range stored {
				if r.ProductID == productID {
					found = append(found, r)
				}
			}
			return found, nil
		},
	}
	cache := NewMockReviewCache()
	api := newCatalogTestAPI(nil, reviews, cache)

	get := func(t *testing.T) map[string]interface{} {
		w := httptest.NewRecorder()
		api.GetProductReviews(w, httptest.NewRequest(http.MethodGet, "/v1/reviews/p:0001", nil), httprouter.Params{{Key: "productId", Value: "p:0001"}})
		res := w.Result()
		defer res.Body.Close()
		require.Equal(t, http.StatusOK, res.StatusCode)
		return readEnvelope(t, res)
	}

	// empty product is cached as well.
	m := get(t)
	assert.Equal(t, float64(0), m["total"])
	assert.Equal(t, []interface{}{}, m["data"])
	get(t)
	assert.Equal(t, 1, loads)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/reviews", bytes.NewBufferString(`{"productId":"p:0001","author":"ana","rating":5,"comment":"great"}`))
	api.CreateReview(w, req, httprouter.Params{})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, []string{"p:0001"}, cache.Invalidated)

	m = get(t)
	assert.Equal(t, float64(1), m["total"])
	assert.Equal(t, 2, loads)

	t.Run("unknown product", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/reviews", bytes.NewBufferString(`{"productId":"p:0404","author":"ana","rating":4}`))
		api.CreateReview(w, req, httprouter.Params{})
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("rating out of range", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/reviews", bytes.NewBufferString(`{"productId":"p:0001","author":"ana","rating":6}`))
		api.CreateReview(w, req, httprouter.Params{})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestReviewServiceFallsBackWhenCacheFails(t *testing.T) {
	reviews := &MockReviewStorage{
		GetReviewsByProductFunc: func(ctx context.Context, productID string) ([]Review, error) {
			return []Review{{ID: "rv:1", ProductID: productID}}, nil
		},
	}
	cache := NewMockReviewCache()
	cache.GetErr = errors.New("redis down")
	rs := NewReviewService(zap.NewNop(), testConfig(), NewMockClocker(), NewMockUIDHandler("1", true), reviews, cache)
	got, err := rs.GetReviews(context.Background(), "p:1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestReviewServiceDropsListStaledByConcurrentAdd(t *testing.T) {
	var stored []Review
	var rs ReviewServiceProvider
	added := false
	reviews := &MockReviewStorage{
		AddReviewFunc: func(ctx context.Context, r Review, e OutboxEvent) error {
			stored = append(stored, r)
			return nil
		},
		GetReviewsByProductFunc: func(ctx context.Context, productID string) ([]Review, error) {
			snapshot := append([]Review{}, stored...)
			if !added {
				// a review commits after the read but before the list is cached.
				added = true
				_, err := rs.AddReview(ctx, Review{ProductID: productID, Author: "ana", Rating: 5})
				require.NoError(t, err)
			}
			return snapshot, nil
		},
	}
	cache := NewMockReviewCache()
	rs = NewReviewService(zap.NewNop(), testConfig(), NewMockClocker(), NewMockUIDHandler("1", true), reviews, cache)
	ctx := context.Background()

	got, err := rs.GetReviews(ctx, "p:1")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, []string{"p:1", "p:1"}, cache.Invalidated)

	got, err = rs.GetReviews(ctx, "p:1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
