package store

import (
	"context"

	"inventory-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// GetProduct retrieves a product by ID
func (s *Store) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := sqlx.GetContext(ctx, s.q, &product, "SELECT * FROM products WHERE id = $1", id)
	if err != nil {
		return nil, notFound(err)
	}
	return &product, nil
}

// FindProductByName looks a product up by trimmed, case-insensitive name
func (s *Store) FindProductByName(ctx context.Context, storeID int64, name string) (*models.Product, error) {
	var product models.Product
	err := sqlx.GetContext(ctx, s.q, &product, `
		SELECT * FROM products
		WHERE store_id = $1 AND lower(btrim(name)) = lower(btrim($2))
		ORDER BY id
		LIMIT 1`, storeID, name)
	if err != nil {
		return nil, notFound(err)
	}
	return &product, nil
}

// ListProducts retrieves all products of a store
func (s *Store) ListProducts(ctx context.Context, storeID int64) ([]models.Product, error) {
	var products []models.Product
	err := sqlx.SelectContext(ctx, s.q, &products,
		"SELECT * FROM products WHERE store_id = $1 ORDER BY name, id", storeID)
	return products, err
}

// CreateProduct inserts a product
func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	query := `
		INSERT INTO products (store_id, name, description, purchase_price, selling_price, supplier_name, uniquely_tracked)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	return sqlx.GetContext(ctx, s.q, product, query,
		product.StoreID, product.Name, product.Description, product.PurchasePrice,
		product.SellingPrice, product.SupplierName, product.UniquelyTracked)
}

// UpdateProduct updates the descriptive attributes of a product
func (s *Store) UpdateProduct(ctx context.Context, product *models.Product) error {
	query := `
		UPDATE products
		SET name = $1, description = $2, purchase_price = $3, selling_price = $4,
		    supplier_name = $5, uniquely_tracked = $6, updated_at = NOW()
		WHERE id = $7
		RETURNING updated_at`

	err := sqlx.GetContext(ctx, s.q, &product.UpdatedAt, query,
		product.Name, product.Description, product.PurchasePrice, product.SellingPrice,
		product.SupplierName, product.UniquelyTracked, product.ID)
	return notFound(err)
}

// DeleteProduct deletes a product; inventory and devices cascade
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.q.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
