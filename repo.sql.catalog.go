package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

type sqlCatalogStorage struct {
	sqlStore
	logger *zap.Logger
}

// NewSQLCatalogStorage provides an instance of sql-based products and categories storage.
func NewSQLCatalogStorage(logger *zap.Logger, db *sql.DB, driver string) CatalogStorage {
	return &sqlCatalogStorage{
		sqlStore: sqlStore{db: db, driver: driver},
		logger:   logger,
	}
}

// AddCategory inserts a new category. Names are unique regardless of their case.
func (cs *sqlCatalogStorage) AddCategory(ctx context.Context, c Category, event OutboxEvent) error {
	return cs.withTx(ctx, func(tx *sql.Tx) error {
		var count int
		err := tx.QueryRowContext(ctx, cs.q(`SELECT COUNT(*) FROM categories WHERE LOWER(name) = LOWER(?)`), c.Name).Scan(&count)
		if err != nil {
			return fmt.Errorf("sql: check category name: %w", err)
		}
		if count > 0 {
			return ErrDuplicateCategory
		}
		_, err = tx.ExecContext(ctx, cs.q(`INSERT INTO categories (id, name, description, created_at) VALUES (?, ?, ?, ?)`),
			c.ID, c.Name, c.Description, c.CreatedAt)
		if isUniqueViolation(err) {
			return ErrDuplicateCategory
		}
		if err != nil {
			return fmt.Errorf("sql: insert category: %w", err)
		}
		return cs.insertOutboxEvent(ctx, tx, event)
	})
}

// GetCategory retrieves a category by its ID.
func (cs *sqlCatalogStorage) GetCategory(ctx context.Context, id string) (Category, error) {
	var c Category
	err := cs.db.QueryRowContext(ctx, cs.q(`SELECT id, name, description, created_at FROM categories WHERE id = ?`), id).
		Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return c, ErrCategoryNotFound
	}
	return c, err
}

// GetAllCategories lists categories ordered by name.
func (cs *sqlCatalogStorage) GetAllCategories(ctx context.Context) ([]Category, error) {
	rows, err := cs.db.QueryContext(ctx, `SELECT id, name, description, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []Category{}
	for rows.Next() {
		var c Category
		if err = rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// categoryExists reports whether the category is known within the transaction.
func (cs *sqlCatalogStorage) categoryExists(ctx context.Context, tx *sql.Tx, id string) error {
	var count int
	err := tx.QueryRowContext(ctx, cs.q(`SELECT COUNT(*) FROM categories WHERE id = ?`), id).Scan(&count)
	if err != nil {
		return fmt.Errorf("sql: check category: %w", err)
	}
	if count == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

// AddProduct inserts a new product attached to an existing category.
func (cs *sqlCatalogStorage) AddProduct(ctx context.Context, p Product, event OutboxEvent) error {
	return cs.withTx(ctx, func(tx *sql.Tx) error {
		if err := cs.categoryExists(ctx, tx, p.CategoryID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, cs.q(`INSERT INTO products
			(id, name, description, price, category_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`),
			p.ID, p.Name, p.Description, p.Price, p.CategoryID, p.CreatedAt, p.UpdatedAt)
		if err != nil {
			return fmt.Errorf("sql: insert product: %w", err)
		}
		return cs.insertOutboxEvent(ctx, tx, event)
	})
}

const productColumns = `p.id, p.name, p.description, p.price, p.category_id, p.created_at, p.updated_at,
	c.id, c.name, c.description, c.created_at`

const productFrom = ` FROM products p JOIN categories c ON c.id = p.category_id`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (Product, error) {
	var p Product
	var c Category
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Price, &p.CategoryID, &p.CreatedAt, &p.UpdatedAt,
		&c.ID, &c.Name, &c.Description, &c.CreatedAt)
	if err != nil {
		return p, err
	}
	p.Category = &c
	return p, nil
}

// GetProduct retrieves a product and its category.
func (cs *sqlCatalogStorage) GetProduct(ctx context.Context, id string) (Product, error) {
	row := cs.db.QueryRowContext(ctx, cs.q(`SELECT `+productColumns+productFrom+` WHERE p.id = ?`), id)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrProductNotFound
	}
	return p, err
}

// UpdateProduct replaces the mutable fields of an existing product.
// The creation date is preserved.
func (cs *sqlCatalogStorage) UpdateProduct(ctx context.Context, p Product, event OutboxEvent) (Product, error) {
	err := cs.withTx(ctx, func(tx *sql.Tx) error {
		if err := cs.categoryExists(ctx, tx, p.CategoryID); err != nil {
			return err
		}
		// mysql reports matched rows as unaffected when no value changes,
		// so the existence is checked apart from the update result.
		var count int
		err := tx.QueryRowContext(ctx, cs.q(`SELECT COUNT(*) FROM products WHERE id = ?`), p.ID).Scan(&count)
		if err != nil {
			return fmt.Errorf("sql: check product: %w", err)
		}
		if count == 0 {
			return ErrProductNotFound
		}
		_, err = tx.ExecContext(ctx, cs.q(`UPDATE products
			SET name = ?, description = ?, price = ?, category_id = ?, updated_at = ?
			WHERE id = ?`),
			p.Name, p.Description, p.Price, p.CategoryID, p.UpdatedAt, p.ID)
		if err != nil {
			return fmt.Errorf("sql: update product: %w", err)
		}
		return cs.insertOutboxEvent(ctx, tx, event)
	})
	if err != nil {
		return p, err
	}
	return cs.GetProduct(ctx, p.ID)
}

// DeleteProduct removes a product together with its reviews.
func (cs *sqlCatalogStorage) DeleteProduct(ctx context.Context, id string, event OutboxEvent) error {
	return cs.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, cs.q(`DELETE FROM reviews WHERE product_id = ?`), id); err != nil {
			return fmt.Errorf("sql: delete product reviews: %w", err)
		}
		res, err := tx.ExecContext(ctx, cs.q(`DELETE FROM products WHERE id = ?`), id)
		if err != nil {
			return fmt.Errorf("sql: delete product: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrProductNotFound
		}
		return cs.insertOutboxEvent(ctx, tx, event)
	})
}

// likeEscaper makes LIKE wildcards match literally. The escape character is
// '!' since a backslash is itself an escape in mysql string literals.
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// SearchProducts lists products matching the filter. The name is matched
// case-insensitively on substrings. An empty filter lists every product.
func (cs *sqlCatalogStorage) SearchProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	var conds []string
	var args []interface{}
	if name := strings.TrimSpace(filter.Name); name != "" {
		conds = append(conds, `LOWER(p.name) LIKE ? ESCAPE '!'`)
		args = append(args, "%"+escapeLike(strings.ToLower(name))+"%")
	}
	if filter.CategoryID != "" {
		conds = append(conds, `p.category_id = ?`)
		args = append(args, filter.CategoryID)
	}

	query := `SELECT ` + productColumns + productFrom
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY p.name`

	rows, err := cs.db.QueryContext(ctx, cs.q(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}
