package store

import (
	"context"
	"database/sql"
	"errors"

	"inventory-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// GetInventory retrieves an inventory record by ID
func (s *Store) GetInventory(ctx context.Context, id int64) (*models.InventoryRecord, error) {
	var inv models.InventoryRecord
	err := sqlx.GetContext(ctx, s.q, &inv, "SELECT * FROM inventory WHERE id = $1", id)
	if err != nil {
		return nil, notFound(err)
	}
	return &inv, nil
}

// GetInventoryByProduct retrieves the inventory of a product in a store
func (s *Store) GetInventoryByProduct(ctx context.Context, productID, storeID int64) (*models.InventoryRecord, error) {
	var inv models.InventoryRecord
	err := sqlx.GetContext(ctx, s.q, &inv,
		"SELECT * FROM inventory WHERE product_id = $1 AND store_id = $2", productID, storeID)
	if err != nil {
		return nil, notFound(err)
	}
	return &inv, nil
}

// UpsertInventory creates or overwrites the inventory row of (product, store)
func (s *Store) UpsertInventory(ctx context.Context, inv *models.InventoryRecord) error {
	query := `
		INSERT INTO inventory (product_id, store_id, available_qty, quantity_sold)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (product_id, store_id)
		DO UPDATE SET
			available_qty = EXCLUDED.available_qty,
			version = inventory.version + 1,
			updated_at = NOW()
		RETURNING id, quantity_sold, version, updated_at`

	return sqlx.GetContext(ctx, s.q, inv, query,
		inv.ProductID, inv.StoreID, inv.AvailableQty, inv.QuantitySold)
}

// UpdateInventory writes quantities guarded by the row version
func (s *Store) UpdateInventory(ctx context.Context, inv *models.InventoryRecord) error {
	query := `
		UPDATE inventory
		SET available_qty = $1, quantity_sold = $2, version = version + 1, updated_at = NOW()
		WHERE id = $3 AND version = $4
		RETURNING version, updated_at`

	err := sqlx.GetContext(ctx, s.q, inv, query,
		inv.AvailableQty, inv.QuantitySold, inv.ID, inv.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrVersionConflict
	}
	return err
}

// ListLowStock lists inventory rows at or below the threshold
func (s *Store) ListLowStock(ctx context.Context, storeID int64, threshold int) ([]models.InventoryRecord, error) {
	var items []models.InventoryRecord
	err := sqlx.SelectContext(ctx, s.q, &items, `
		SELECT * FROM inventory
		WHERE store_id = $1 AND available_qty <= $2
		ORDER BY available_qty, id`, storeID, threshold)
	return items, err
}
