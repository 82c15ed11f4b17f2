package models

import "time"

// Event types
const (
	EventTypeProductSaved     = "PRODUCT_SAVED"
	EventTypeStockAdjusted    = "STOCK_ADJUSTED"
	EventTypeStockTransferred = "STOCK_TRANSFERRED"
	EventTypeSaleRecorded     = "SALE_RECORDED"
	EventTypeSaleCompleted    = "SALE_COMPLETED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// ProductSavedEvent published when a product is created or edited
type ProductSavedEvent struct {
	BaseEvent
	ProductID    int64 `json:"product_id"`
	StoreID      int64 `json:"store_id"`
	Created      bool  `json:"created"`
	AvailableQty int   `json:"available_qty"`
	Delta        int   `json:"delta"`
}

// StockAdjustedEvent published after a manual add/reduce
type StockAdjustedEvent struct {
	BaseEvent
	InventoryRecordID int64  `json:"inventory_record_id"`
	ProductID         int64  `json:"product_id"`
	StoreID           int64  `json:"store_id"`
	Direction         string `json:"direction"`
	OldQty            int    `json:"old_qty"`
	NewQty            int    `json:"new_qty"`
	Reason            string `json:"reason"`
}

// StockTransferredEvent published after a committed transfer
type StockTransferredEvent struct {
	BaseEvent
	TransferID           int64  `json:"transfer_id"`
	ProductID            int64  `json:"product_id"`
	DestinationProductID int64  `json:"destination_product_id"`
	SourceStoreID        int64  `json:"source_store_id"`
	DestinationStoreID   int64  `json:"destination_store_id"`
	Quantity             int    `json:"quantity"`
	Worth                string `json:"worth"`
}

// SaleRecordedEvent published after stock leaves through a sale
type SaleRecordedEvent struct {
	BaseEvent
	ProductID    int64    `json:"product_id"`
	StoreID      int64    `json:"store_id"`
	Quantity     int      `json:"quantity"`
	DeviceIDs    []string `json:"device_ids,omitempty"`
	AvailableQty int      `json:"available_qty"`
}

// SaleCompletedEvent is consumed from the point-of-sale topic
type SaleCompletedEvent struct {
	BaseEvent
	SaleID  string         `json:"sale_id"`
	StoreID int64          `json:"store_id"`
	Cashier string         `json:"cashier"`
	Items   []SaleItemData `json:"items"`
}

// SaleItemData represents a sold line in a sale event
type SaleItemData struct {
	ProductID int64    `json:"product_id"`
	Quantity  int      `json:"quantity"`
	DeviceIDs []string `json:"device_ids,omitempty"`
}
