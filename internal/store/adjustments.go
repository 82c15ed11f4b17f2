package store

import (
	"context"

	"inventory-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// InsertAdjustment appends an adjustment log entry
func (s *Store) InsertAdjustment(ctx context.Context, entry *models.AdjustmentLogEntry) error {
	query := `
		INSERT INTO inventory_adjustments (
			inventory_record_id, product_id, store_id, old_quantity, new_quantity,
			reason, performed_by, actor_email, source, product_name
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at`

	return sqlx.GetContext(ctx, s.q, entry, query,
		entry.InventoryRecordID, entry.ProductID, entry.StoreID, entry.OldQuantity,
		entry.NewQuantity, entry.Reason, entry.PerformedBy, entry.ActorEmail, entry.Source, entry.ProductName)
}

// ListAdjustments lists the history of a store, newest first. A zero
// productID lists every product.
func (s *Store) ListAdjustments(ctx context.Context, storeID, productID int64) ([]models.AdjustmentLogEntry, error) {
	var entries []models.AdjustmentLogEntry
	err := sqlx.SelectContext(ctx, s.q, &entries, `
		SELECT * FROM inventory_adjustments
		WHERE store_id = $1 AND ($2::bigint = 0 OR product_id = $2::bigint)
		ORDER BY created_at DESC, id DESC`, storeID, productID)
	return entries, err
}

// DeleteAdjustments clears the history of a store
func (s *Store) DeleteAdjustments(ctx context.Context, storeID int64) (int64, error) {
	res, err := s.q.ExecContext(ctx, "DELETE FROM inventory_adjustments WHERE store_id = $1", storeID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
