package store

import (
	"context"
	"strings"

	"inventory-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// ListDevices retrieves the device records of a product in insertion order
func (s *Store) ListDevices(ctx context.Context, productID int64) ([]models.DeviceRecord, error) {
	var devices []models.DeviceRecord
	err := sqlx.SelectContext(ctx, s.q, &devices,
		"SELECT * FROM device_records WHERE product_id = $1 ORDER BY id", productID)
	return devices, err
}

// AddDevices inserts device records in one statement
func (s *Store) AddDevices(ctx context.Context, devices []models.DeviceRecord) error {
	if len(devices) == 0 {
		return nil
	}

	query := `
		INSERT INTO device_records (product_id, store_id, external_id, size)
		VALUES (:product_id, :store_id, :external_id, :size)`

	if _, err := sqlx.NamedExecContext(ctx, s.q, query, devices); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateDeviceID
		}
		return err
	}
	return nil
}

// RemoveDevices deletes the given ids from a product, case-insensitively
func (s *Store) RemoveDevices(ctx context.Context, productID int64, externalIDs []string) error {
	if len(externalIDs) == 0 {
		return nil
	}

	query, args, err := sqlx.In(
		"DELETE FROM device_records WHERE product_id = ? AND lower(external_id) IN (?)",
		productID, lowerAll(externalIDs))
	if err != nil {
		return err
	}

	_, err = s.q.ExecContext(ctx, s.q.Rebind(query), args...)
	return err
}

// FindDeviceConflicts finds ids already recorded against other products of the store
func (s *Store) FindDeviceConflicts(ctx context.Context, storeID int64, externalIDs []string, excludeProductID int64) ([]string, error) {
	if len(externalIDs) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`
		SELECT external_id FROM device_records
		WHERE store_id = ? AND lower(external_id) IN (?) AND product_id <> ?
		ORDER BY id`,
		storeID, lowerAll(externalIDs), excludeProductID)
	if err != nil {
		return nil, err
	}

	var conflicts []string
	err = sqlx.SelectContext(ctx, s.q, &conflicts, s.q.Rebind(query), args...)
	return conflicts, err
}

func lowerAll(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = strings.ToLower(strings.TrimSpace(id))
	}
	return out
}
