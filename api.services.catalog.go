package main

import (
	"context"

	"go.uber.org/zap"
)

type CatalogServiceProvider interface {
	AddCategory(ctx context.Context, category Category) (Category, error)
	GetCategory(ctx context.Context, id string) (Category, error)
	GetAllCategories(ctx context.Context) ([]Category, error)
	AddProduct(ctx context.Context, product Product) (Product, error)
	GetProduct(ctx context.Context, id string) (Product, error)
	UpdateProduct(ctx context.Context, id string, product Product) (Product, error)
	DeleteProduct(ctx context.Context, id string) (Product, error)
	SearchProducts(ctx context.Context, filter ProductFilter) ([]Product, error)
}

type CatalogService struct {
	logger  *zap.Logger
	clock   Clocker
	ids     UIDHandler
	storage CatalogStorage
}

func NewCatalogService(logger *zap.Logger, clock Clocker, ids UIDHandler, storage CatalogStorage) CatalogServiceProvider {
	return &CatalogService{
		logger:  logger,
		clock:   clock,
		ids:     ids,
		storage: storage,
	}
}

func (cs *CatalogService) AddCategory(ctx context.Context, c Category) (Category, error) {
	c.ID = cs.ids.Generate(CategoryIDPrefix)
	c.CreatedAt = timestamp(cs.clock)
	event := NewOutboxEvent(cs.ids, cs.clock, AggregateCategory, c.ID, EventCreated, c)
	if err := cs.storage.AddCategory(ctx, c, event); err != nil {
		return c, err
	}
	return c, nil
}

func (cs *CatalogService) GetCategory(ctx context.Context, id string) (Category, error) {
	return cs.storage.GetCategory(ctx, id)
}

func (cs *CatalogService) GetAllCategories(ctx context.Context) ([]Category, error) {
	return cs.storage.GetAllCategories(ctx)
}

// AddProduct stores a new product. Its category must exist.
func (cs *CatalogService) AddProduct(ctx context.Context, p Product) (Product, error) {
	p.ID = cs.ids.Generate(ProductIDPrefix)
	p.CreatedAt = timestamp(cs.clock)
	p.UpdatedAt = p.CreatedAt
	p.Category = nil
	event := NewOutboxEvent(cs.ids, cs.clock, AggregateProduct, p.ID, EventCreated, p)
	if err := cs.storage.AddProduct(ctx, p, event); err != nil {
		return p, err
	}
	return cs.storage.GetProduct(ctx, p.ID)
}

func (cs *CatalogService) GetProduct(ctx context.Context, id string) (Product, error) {
	return cs.storage.GetProduct(ctx, id)
}

// UpdateProduct replaces the product identified by id.
func (cs *CatalogService) UpdateProduct(ctx context.Context, id string, p Product) (Product, error) {
	p.ID = id
	p.UpdatedAt = timestamp(cs.clock)
	p.Category = nil
	event := NewOutboxEvent(cs.ids, cs.clock, AggregateProduct, id, EventUpdated, p)
	return cs.storage.UpdateProduct(ctx, p, event)
}

// DeleteProduct removes the product with its reviews and returns its last state.
func (cs *CatalogService) DeleteProduct(ctx context.Context, id string) (Product, error) {
	p, err := cs.storage.GetProduct(ctx, id)
	if err != nil {
		return p, err
	}
	event := NewOutboxEvent(cs.ids, cs.clock, AggregateProduct, id, EventDeleted, p)
	if err = cs.storage.DeleteProduct(ctx, id, event); err != nil {
		return p, err
	}
	return p, nil
}

func (cs *CatalogService) SearchProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	return cs.storage.SearchProducts(ctx, filter)
}
