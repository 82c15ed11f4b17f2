package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Store is a retail location; its owner is the only user allowed to delete
// products or clear the adjustment history.
type Store struct {
	ID        int64     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	OwnerID   int64     `db:"owner_id" json:"owner_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// User is resolved from the acting email so audit entries carry a stable id
type User struct {
	ID    int64  `db:"id" json:"id"`
	Email string `db:"email" json:"email"`
	Name  string `db:"name" json:"name"`
}

// Product represents a catalog entry owned by a single store
type Product struct {
	ID              int64           `db:"id" json:"id"`
	StoreID         int64           `db:"store_id" json:"store_id"`
	Name            string          `db:"name" json:"name"`
	Description     string          `db:"description" json:"description"`
	PurchasePrice   decimal.Decimal `db:"purchase_price" json:"purchase_price"`
	SellingPrice    decimal.Decimal `db:"selling_price" json:"selling_price"`
	SupplierName    string          `db:"supplier_name" json:"supplier_name"`
	UniquelyTracked bool            `db:"uniquely_tracked" json:"uniquely_tracked"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// InventoryRecord holds the stock counters of a product in a store
type InventoryRecord struct {
	ID           int64     `db:"id" json:"id"`
	ProductID    int64     `db:"product_id" json:"product_id"`
	StoreID      int64     `db:"store_id" json:"store_id"`
	AvailableQty int       `db:"available_qty" json:"available_qty"`
	QuantitySold int       `db:"quantity_sold" json:"quantity_sold"`
	Version      int64     `db:"version" json:"version"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// DeviceRecord is one uniquely identified unit (IMEI, serial) of a product
type DeviceRecord struct {
	ID         int64  `db:"id" json:"id"`
	ProductID  int64  `db:"product_id" json:"product_id"`
	StoreID    int64  `db:"store_id" json:"store_id"`
	ExternalID string `db:"external_id" json:"external_id"`
	Size       string `db:"size" json:"size,omitempty"`
}

// AdjustmentLogEntry is an immutable record of one committed quantity change
type AdjustmentLogEntry struct {
	ID                int64     `db:"id" json:"id"`
	InventoryRecordID int64     `db:"inventory_record_id" json:"inventory_record_id"`
	ProductID         int64     `db:"product_id" json:"product_id"`
	StoreID           int64     `db:"store_id" json:"store_id"`
	OldQuantity       int       `db:"old_quantity" json:"old_quantity"`
	NewQuantity       int       `db:"new_quantity" json:"new_quantity"`
	Reason            string    `db:"reason" json:"reason"`
	PerformedBy       *int64    `db:"performed_by" json:"performed_by"`
	ActorEmail        string    `db:"actor_email" json:"actor_email"`
	Source            string    `db:"source" json:"source"`
	ProductName       string    `db:"product_name" json:"product_name"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// TransferRecord represents a completed movement of stock between two stores
type TransferRecord struct {
	ID                   int64           `db:"id" json:"id"`
	SourceStoreID        int64           `db:"source_store_id" json:"source_store_id"`
	DestinationStoreID   int64           `db:"destination_store_id" json:"destination_store_id"`
	ProductID            int64           `db:"product_id" json:"product_id"`
	DestinationProductID int64           `db:"destination_product_id" json:"destination_product_id"`
	Quantity             int             `db:"quantity" json:"quantity"`
	Worth                decimal.Decimal `db:"worth" json:"worth"`
	Status               string          `db:"status" json:"status"`
	IdempotencyKey       string          `db:"idempotency_key" json:"idempotency_key,omitempty"`
	RequestedBy          int64           `db:"requested_by" json:"requested_by"`
	RequestedAt          time.Time       `db:"requested_at" json:"requested_at"`
}

// Transfer statuses
const (
	TransferStatusCompleted = "completed"
)

// Adjustment directions
const (
	DirectionAdd    = "add"
	DirectionReduce = "reduce"
)

// Audit sources
const (
	SourceInventoryPage = "inventory"
	SourceProductForm   = "product_form"
	SourceTransfer      = "transfer"
	SourceSale          = "sale"
)

// SplitDeviceList decodes the legacy comma-joined device list encoding.
// Blank entries are dropped.
func SplitDeviceList(joined string) []string {
	if strings.TrimSpace(joined) == "" {
		return nil
	}
	parts := strings.Split(joined, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// JoinDeviceList encodes device ids in the legacy comma-joined form
func JoinDeviceList(ids []string) string {
	return strings.Join(ids, ",")
}

// ExternalIDs returns the identifiers of the given device records in order
func ExternalIDs(devices []DeviceRecord) []string {
	ids := make([]string, len(devices))
	for i, d := range devices {
		ids[i] = d.ExternalID
	}
	return ids
}
