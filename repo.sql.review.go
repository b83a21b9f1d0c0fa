package main

import (
	"context"
	"database/sql"
	"fmt"
)

type sqlReviewStorage struct {
	sqlStore
}

// NewSQLReviewStorage provides an instance of sql-based review storage.
func NewSQLReviewStorage(db *sql.DB, driver string) ReviewStorage {
	return &sqlReviewStorage{sqlStore{db: db, driver: driver}}
}

// AddReview inserts a review of an existing product.
func (rs *sqlReviewStorage) AddReview(ctx context.Context, r Review, event OutboxEvent) error {
	return rs.withTx(ctx, func(tx *sql.Tx) error {
		var count int
		err := tx.QueryRowContext(ctx, rs.q(`SELECT COUNT(*) FROM products WHERE id = ?`), r.ProductID).Scan(&count)
		if err != nil {
			return fmt.Errorf("sql: check product: %w", err)
		}
		if count == 0 {
			return ErrProductNotFound
		}
		_, err = tx.ExecContext(ctx, rs.q(`INSERT INTO reviews
			(id, product_id, author, rating, comment, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`),
			r.ID, r.ProductID, r.Author, r.Rating, r.Comment, r.CreatedAt)
		if err != nil {
			return fmt.Errorf("sql: insert review: %w", err)
		}
		return rs.insertOutboxEvent(ctx, tx, event)
	})
}

// GetReviewsByProduct lists the reviews of a product, oldest first.
// An unknown product yields an empty list.
func (rs *sqlReviewStorage) GetReviewsByProduct(ctx context.Context, productID string) ([]Review, error) {
	rows, err := rs.db.QueryContext(ctx, rs.q(`SELECT id, product_id, author, rating, comment, created_at
		FROM reviews WHERE product_id = ? ORDER BY created_at, id`), productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	reviews := []Review{}
	for rows.Next() {
		var r Review
		if err = rows.Scan(&r.ID, &r.ProductID, &r.Author, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			return nil, err
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}
