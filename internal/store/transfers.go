package store

import (
	"context"
	"database/sql"
	"errors"

	"inventory-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const transferColumns = `
	id, source_store_id, destination_store_id, product_id, destination_product_id,
	quantity, worth, status, COALESCE(idempotency_key, '') AS idempotency_key,
	requested_by, requested_at`

// InsertTransfer records a completed transfer
func (s *Store) InsertTransfer(ctx context.Context, transfer *models.TransferRecord) error {
	query := `
		INSERT INTO stock_transfers (
			source_store_id, destination_store_id, product_id, destination_product_id,
			quantity, worth, status, idempotency_key, requested_by
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9)
		RETURNING id, requested_at`

	return sqlx.GetContext(ctx, s.q, transfer, query,
		transfer.SourceStoreID, transfer.DestinationStoreID, transfer.ProductID,
		transfer.DestinationProductID, transfer.Quantity, transfer.Worth, transfer.Status,
		transfer.IdempotencyKey, transfer.RequestedBy)
}

// GetTransferByIdempotencyKey retrieves a transfer by idempotency key
func (s *Store) GetTransferByIdempotencyKey(ctx context.Context, key string) (*models.TransferRecord, error) {
	var transfer models.TransferRecord
	err := sqlx.GetContext(ctx, s.q, &transfer,
		"SELECT "+transferColumns+" FROM stock_transfers WHERE idempotency_key = $1", key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &transfer, nil
}

// ListTransfers lists transfers leaving or entering a store, newest first
func (s *Store) ListTransfers(ctx context.Context, storeID int64) ([]models.TransferRecord, error) {
	var transfers []models.TransferRecord
	err := sqlx.SelectContext(ctx, s.q, &transfers,
		"SELECT "+transferColumns+` FROM stock_transfers
		WHERE source_store_id = $1 OR destination_store_id = $1
		ORDER BY requested_at DESC, id DESC`, storeID)
	return transfers, err
}
