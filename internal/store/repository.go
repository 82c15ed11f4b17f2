package store

import (
	"context"
	"errors"

	"inventory-service/internal/models"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrVersionConflict   = errors.New("inventory record was modified concurrently")
	ErrDuplicateDeviceID = errors.New("device id already recorded in this store")
)

// Repository is the persistent store the inventory ledger runs against.
// Lookups of a single row return ErrNotFound when nothing matches.
type Repository interface {
	// WithinTx runs fn against a repository bound to one transaction. The
	// transaction commits when fn returns nil and rolls back otherwise.
	WithinTx(ctx context.Context, fn func(repo Repository) error) error

	GetStore(ctx context.Context, id int64) (*models.Store, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	FindProductByName(ctx context.Context, storeID int64, name string) (*models.Product, error)
	ListProducts(ctx context.Context, storeID int64) ([]models.Product, error)
	CreateProduct(ctx context.Context, product *models.Product) error
	UpdateProduct(ctx context.Context, product *models.Product) error
	// DeleteProduct removes the product together with its inventory row and devices
	DeleteProduct(ctx context.Context, id int64) error

	GetInventory(ctx context.Context, id int64) (*models.InventoryRecord, error)
	GetInventoryByProduct(ctx context.Context, productID, storeID int64) (*models.InventoryRecord, error)
	// UpsertInventory creates the row keyed by (product, store) or overwrites its quantity
	UpsertInventory(ctx context.Context, inv *models.InventoryRecord) error
	// UpdateInventory writes quantities only if inv.Version is still current,
	// otherwise it returns ErrVersionConflict. On success inv.Version is bumped.
	UpdateInventory(ctx context.Context, inv *models.InventoryRecord) error
	ListLowStock(ctx context.Context, storeID int64, threshold int) ([]models.InventoryRecord, error)

	ListDevices(ctx context.Context, productID int64) ([]models.DeviceRecord, error)
	// AddDevices returns ErrDuplicateDeviceID when an id already exists in the store
	AddDevices(ctx context.Context, devices []models.DeviceRecord) error
	RemoveDevices(ctx context.Context, productID int64, externalIDs []string) error
	// FindDeviceConflicts returns the stored ids of other products in the store
	// that match any of externalIDs case-insensitively.
	FindDeviceConflicts(ctx context.Context, storeID int64, externalIDs []string, excludeProductID int64) ([]string, error)

	InsertAdjustment(ctx context.Context, entry *models.AdjustmentLogEntry) error
	ListAdjustments(ctx context.Context, storeID, productID int64) ([]models.AdjustmentLogEntry, error)
	DeleteAdjustments(ctx context.Context, storeID int64) (int64, error)

	InsertTransfer(ctx context.Context, transfer *models.TransferRecord) error
	// GetTransferByIdempotencyKey returns nil, nil when no transfer uses the key
	GetTransferByIdempotencyKey(ctx context.Context, key string) (*models.TransferRecord, error)
	ListTransfers(ctx context.Context, storeID int64) ([]models.TransferRecord, error)
}
