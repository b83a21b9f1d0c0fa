package main

import "context"

// Category groups products of the catalog. Its name is unique.
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedAt   string `json:"createdAt"`
}

// Product represents an item of the catalog attached to a category.
type Product struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	CategoryID  string    `json:"categoryId"`
	Category    *Category `json:"category,omitempty"`
	CreatedAt   string    `json:"createdAt"`
	UpdatedAt   string    `json:"updatedAt"`
}

// ProductFilter holds the optional criteria of a product search.
type ProductFilter struct {
	Name       string
	CategoryID string
}

// CatalogStorage defines possible operations on products and categories.
// Every mutation records an outbox event within the same transaction.
type CatalogStorage interface {
	AddCategory(ctx context.Context, category Category, event OutboxEvent) error
	GetCategory(ctx context.Context, id string) (Category, error)
	GetAllCategories(ctx context.Context) ([]Category, error)

	AddProduct(ctx context.Context, product Product, event OutboxEvent) error
	GetProduct(ctx context.Context, id string) (Product, error)
	UpdateProduct(ctx context.Context, product Product, event OutboxEvent) (Product, error)
	DeleteProduct(ctx context.Context, id string, event OutboxEvent) error
	SearchProducts(ctx context.Context, filter ProductFilter) ([]Product, error)
}
