package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"auto-order/internal/apperr"
	"auto-order/internal/models"
)

// GetProduct retrieves a product by ID
func (s *Store) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound.New("product %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &product, nil
}

// ListActiveProducts returns the catalog, newest first
func (s *Store) ListActiveProducts(ctx context.Context, limit int) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products,
		"SELECT * FROM products WHERE active = TRUE ORDER BY id DESC LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// ListProducts returns every product including inactive ones
func (s *Store) ListProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := s.db.SelectContext(ctx, &products, "SELECT * FROM products ORDER BY id DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return products, nil
}

// CreateProduct inserts a product
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (name, price, active, note, requires_account_info)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	if err := s.db.GetContext(ctx, p, query, p.Name, p.Price, p.Active, p.Note, p.RequiresAccountInfo); err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

// UpdateProduct overwrites the editable fields of a product
func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE products SET name = $1, price = $2, active = $3, note = $4, requires_account_info = $5 WHERE id = $6",
		p.Name, p.Price, p.Active, p.Note, p.RequiresAccountInfo, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}
	return expectRow(res, apperr.NotFound.New("product %d not found", p.ID))
}

// DeleteProduct removes a product. Orders keep their product snapshot.
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return expectRow(res, apperr.NotFound.New("product %d not found", id))
}

func expectRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
