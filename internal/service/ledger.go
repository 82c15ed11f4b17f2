package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/store"
	"inventory-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultEditReason     = "Product edited"
	defaultCreateReason   = "Initial stock"
	defaultSaleReason     = "Sale"
	defaultLockTTL        = 10 * time.Second
	logWarningMessageStem = "stock was updated but the adjustment log could not be written"
)

// LedgerConfig carries the settings the ledger needs from configuration
type LedgerConfig struct {
	Preferences util.Preferences
	LockTTL     time.Duration
}

// Ledger owns every change to product stock: creation and edits, manual
// adjustments, sales and cross-store transfers.
type Ledger struct {
	repo      store.Repository
	validator *DeviceValidator
	audit     *AuditLog
	locker    Locker
	events    EventPublisher
	cfg       LedgerConfig
	logger    *zap.Logger
}

// NewLedger creates a new ledger. events may be nil, in which case nothing is
// published.
func NewLedger(
	repo store.Repository,
	validator *DeviceValidator,
	audit *AuditLog,
	locker Locker,
	events EventPublisher,
	cfg LedgerConfig,
) *Ledger {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = defaultLockTTL
	}
	return &Ledger{
		repo:      repo,
		validator: validator,
		audit:     audit,
		locker:    locker,
		events:    events,
		cfg:       cfg,
		logger:    util.GetLogger(),
	}
}

// SaveProductInput is a product form submission. ProductID zero creates a
// product. On edit a nil DeviceIDs keeps the current device set while an
// empty slice clears it, and Quantity is a restock amount added on top of
// the current stock.
type SaveProductInput struct {
	ProductID     int64
	StoreID       int64
	Name          string
	Description   string
	PurchasePrice decimal.Decimal
	SellingPrice  decimal.Decimal
	SupplierName  string
	DeviceIDs     []string
	Sizes         []string
	Quantity      int
	Reason        string
	Actor         string
}

// ProductView is a product together with its stock in its store
type ProductView struct {
	models.Product
	InventoryRecordID int64    `json:"inventory_record_id"`
	AvailableQty      int      `json:"available_qty"`
	QuantitySold      int      `json:"quantity_sold"`
	DeviceIDs         []string `json:"device_ids"`
	DeviceList        string   `json:"device_list"`
	StockValue        string   `json:"stock_value"`
	Delta             int      `json:"delta,omitempty"`
	LogWarning        string   `json:"log_warning,omitempty"`
}

// SaveProduct creates or edits a product and derives its stock
func (l *Ledger) SaveProduct(ctx context.Context, in SaveProductInput) (view *ProductView, err error) {
	ctx, span := util.StartSpan(ctx, "Ledger.SaveProduct")
	defer func() { util.EndSpan(span, err) }()

	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, reject("missing_name", "product name is required")
	}
	if in.PurchasePrice.IsNegative() || in.SellingPrice.IsNegative() {
		return nil, reject("invalid_price", "prices must not be negative")
	}
	if in.Quantity < 0 {
		return nil, reject("invalid_amount", "quantity must not be negative")
	}

	if in.ProductID == 0 {
		return l.createProduct(ctx, in)
	}
	return l.editProduct(ctx, in)
}

func (l *Ledger) createProduct(ctx context.Context, in SaveProductInput) (*ProductView, error) {
	if _, err := l.repo.GetStore(ctx, in.StoreID); err != nil {
		return nil, err
	}

	ids := NormalizeDeviceIDs(in.DeviceIDs)
	qty, tracked, err := DeriveInitialQuantity(ids, in.Quantity)
	if err != nil {
		return nil, err
	}

	result, err := l.validator.Validate(ctx, in.StoreID, ids, 0)
	if err != nil {
		return nil, err
	}
	if err := result.Err(); err != nil {
		return nil, err
	}

	product := &models.Product{
		StoreID:         in.StoreID,
		Name:            in.Name,
		Description:     in.Description,
		PurchasePrice:   in.PurchasePrice,
		SellingPrice:    in.SellingPrice,
		SupplierName:    in.SupplierName,
		UniquelyTracked: tracked,
	}
	inv := &models.InventoryRecord{StoreID: in.StoreID, AvailableQty: qty}

	release, err := acquireLocks(ctx, l.locker, l.cfg.LockTTL, l.logger, productNameLockKey(in.StoreID, in.Name))
	if err != nil {
		return nil, err
	}
	defer release()

	err = l.repo.WithinTx(ctx, func(tx store.Repository) error {
		if err := checkNameFree(ctx, tx, in.StoreID, in.Name, 0); err != nil {
			return err
		}
		// Another submission may have claimed one of the ids since the pre-check.
		recheck, err := validateDevices(ctx, tx, in.StoreID, ids, 0)
		if err != nil {
			return err
		}
		if err := recheck.Err(); err != nil {
			return err
		}

		if err := tx.CreateProduct(ctx, product); err != nil {
			return writeFailure("create product", err)
		}
		inv.ProductID = product.ID
		if err := tx.UpsertInventory(ctx, inv); err != nil {
			return writeFailure("create inventory record", err)
		}
		if err := tx.AddDevices(ctx, deviceRecords(product.ID, in.StoreID, ids, sizeIndex(in.DeviceIDs, in.Sizes))); err != nil {
			return writeFailure("add device ids", err)
		}
		return nil
	})
	if err != nil {
		return nil, l.duplicateDevicesError(ctx, in.StoreID, ids, 0, err)
	}

	util.ProductsSavedTotal.WithLabelValues("create").Inc()
	l.logger.Info("Product created",
		zap.Int64("product_id", product.ID),
		zap.Int64("store_id", product.StoreID),
		zap.Int("available_qty", qty),
		zap.Bool("uniquely_tracked", tracked))

	view := l.view(product, inv, ids)
	view.Delta = qty
	if qty > 0 {
		view.LogWarning = l.recordChange(ctx, LogEntryInput{
			InventoryRecordID: inv.ID,
			ProductID:         product.ID,
			StoreID:           product.StoreID,
			ProductName:       product.Name,
			OldQuantity:       0,
			NewQuantity:       qty,
			Reason:            firstNonBlank(in.Reason, defaultCreateReason),
			Actor:             in.Actor,
			Source:            models.SourceProductForm,
		})
	}

	l.publishProductSaved(ctx, product, inv, true, qty)
	return view, nil
}

func (l *Ledger) editProduct(ctx context.Context, in SaveProductInput) (*ProductView, error) {
	product, err := l.repo.GetProduct(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	if in.StoreID != 0 && product.StoreID != in.StoreID {
		return nil, store.ErrNotFound
	}

	keepDevices := in.DeviceIDs == nil
	submitted := NormalizeDeviceIDs(in.DeviceIDs)
	if !keepDevices {
		result, err := l.validator.Validate(ctx, product.StoreID, submitted, product.ID)
		if err != nil {
			return nil, err
		}
		if err := result.Err(); err != nil {
			return nil, err
		}
	}

	keys := []string{inventoryLockKey(product.ID, product.StoreID)}
	if normalizeKey(in.Name) != normalizeKey(product.Name) {
		keys = append(keys, productNameLockKey(product.StoreID, in.Name))
	}
	release, err := acquireLocks(ctx, l.locker, l.cfg.LockTTL, l.logger, keys...)
	if err != nil {
		return nil, err
	}
	defer release()

	var (
		change EditQuantity
		oldQty int
		inv    *models.InventoryRecord
	)
	err = l.repo.WithinTx(ctx, func(tx store.Repository) error {
		current, err := tx.GetProduct(ctx, product.ID)
		if err != nil {
			return err
		}

		inv, err = tx.GetInventoryByProduct(ctx, current.ID, current.StoreID)
		if errors.Is(err, store.ErrNotFound) {
			inv, err = &models.InventoryRecord{ProductID: current.ID, StoreID: current.StoreID}, nil
		}
		if err != nil {
			return err
		}

		devices, err := tx.ListDevices(ctx, current.ID)
		if err != nil {
			return err
		}
		original := models.ExternalIDs(devices)
		if keepDevices {
			submitted = original
		}

		if len(submitted) > 0 && inv.AvailableQty != len(original) {
			return reject("untracked_stock",
				"%q has %d units in stock but %d device IDs; reduce the untracked stock before assigning device IDs",
				current.Name, inv.AvailableQty, len(original))
		}
		if !keepDevices {
			recheck, err := validateDevices(ctx, tx, current.StoreID, submitted, current.ID)
			if err != nil {
				return err
			}
			if err := recheck.Err(); err != nil {
				return err
			}
		}

		if err := checkNameFree(ctx, tx, current.StoreID, in.Name, current.ID); err != nil {
			return err
		}

		oldQty = inv.AvailableQty
		change = DeriveEditQuantity(inv.AvailableQty, original, submitted, in.Quantity)

		current.Name = in.Name
		current.Description = in.Description
		current.PurchasePrice = in.PurchasePrice
		current.SellingPrice = in.SellingPrice
		current.SupplierName = in.SupplierName
		current.UniquelyTracked = len(submitted) > 0
		if err := tx.UpdateProduct(ctx, current); err != nil {
			return writeFailure("update product", err)
		}

		if err := tx.RemoveDevices(ctx, current.ID, change.Removed); err != nil {
			return writeFailure("remove device ids", err)
		}
		added := deviceRecords(current.ID, current.StoreID, change.Added, sizeIndex(in.DeviceIDs, in.Sizes))
		if err := tx.AddDevices(ctx, added); err != nil {
			return writeFailure("add device ids", err)
		}

		inv.AvailableQty = change.Committed
		if inv.ID == 0 {
			err = tx.UpsertInventory(ctx, inv)
		} else {
			err = tx.UpdateInventory(ctx, inv)
		}
		if err != nil {
			return writeFailure("update inventory record", err)
		}

		product = current
		return nil
	})
	if err != nil {
		return nil, l.duplicateDevicesError(ctx, product.StoreID, submitted, product.ID, err)
	}

	util.ProductsSavedTotal.WithLabelValues("edit").Inc()
	l.logger.Info("Product edited",
		zap.Int64("product_id", product.ID),
		zap.Int("old_qty", oldQty),
		zap.Int("new_qty", change.Committed),
		zap.Int("added_devices", len(change.Added)),
		zap.Int("removed_devices", len(change.Removed)))

	view := l.view(product, inv, submitted)
	view.Delta = change.Committed - oldQty
	if change.Committed != oldQty {
		view.LogWarning = l.recordChange(ctx, LogEntryInput{
			InventoryRecordID: inv.ID,
			ProductID:         product.ID,
			StoreID:           product.StoreID,
			ProductName:       product.Name,
			OldQuantity:       oldQty,
			NewQuantity:       change.Committed,
			Reason:            firstNonBlank(in.Reason, defaultEditReason),
			Actor:             in.Actor,
			Source:            models.SourceProductForm,
		})
	}

	l.publishProductSaved(ctx, product, inv, false, view.Delta)
	return view, nil
}

// AdjustInput is a manual add or reduce of a bulk product's stock
type AdjustInput struct {
	InventoryRecordID int64
	Direction         string
	Amount            int
	Reason            string
	Actor             string
	Source            string
}

// AdjustResult reports the committed change. LogWarning is set when the
// quantity was written but the adjustment log was not.
type AdjustResult struct {
	InventoryRecordID int64  `json:"inventory_record_id"`
	OldQty            int    `json:"old_qty"`
	NewQty            int    `json:"new_qty"`
	LogWarning        string `json:"log_warning,omitempty"`
}

// AdjustStock adds or removes units with a mandatory reason. Every check runs
// before anything is written; stock never goes below zero.
func (l *Ledger) AdjustStock(ctx context.Context, in AdjustInput) (result *AdjustResult, err error) {
	ctx, span := util.StartSpan(ctx, "Ledger.AdjustStock")
	defer func() { util.EndSpan(span, err) }()

	if in.Direction != models.DirectionAdd && in.Direction != models.DirectionReduce {
		return nil, reject("invalid_direction", "direction must be %q or %q", models.DirectionAdd, models.DirectionReduce)
	}
	if in.Amount <= 0 {
		return nil, reject("invalid_amount", "amount must be a positive whole number")
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		return nil, reject("missing_reason", "a reason is required for every stock adjustment")
	}

	inv, err := l.repo.GetInventory(ctx, in.InventoryRecordID)
	if err != nil {
		return nil, err
	}
	product, err := l.repo.GetProduct(ctx, inv.ProductID)
	if err != nil {
		return nil, err
	}
	if product.UniquelyTracked {
		return nil, reject("tracked_product", "%q is tracked by device ID; edit its device list instead", product.Name)
	}

	release, err := acquireLocks(ctx, l.locker, l.cfg.LockTTL, l.logger, inventoryLockKey(inv.ProductID, inv.StoreID))
	if err != nil {
		return nil, err
	}
	defer release()

	// Re-read under the lock: an edit may have assigned device ids or moved
	// stock since the checks above.
	var oldQty, newQty int
	err = l.repo.WithinTx(ctx, func(tx store.Repository) error {
		current, err := tx.GetProduct(ctx, product.ID)
		if err != nil {
			return err
		}
		if current.UniquelyTracked {
			return reject("tracked_product", "%q is tracked by device ID; edit its device list instead", current.Name)
		}

		inv, err = tx.GetInventory(ctx, in.InventoryRecordID)
		if err != nil {
			return err
		}

		oldQty = inv.AvailableQty
		newQty = oldQty + in.Amount
		if in.Direction == models.DirectionReduce {
			newQty = oldQty - in.Amount
		}
		if newQty < 0 {
			return reject("insufficient_stock", "cannot reduce %q by %d: only %d in stock", current.Name, in.Amount, oldQty)
		}

		inv.AvailableQty = newQty
		if err := tx.UpdateInventory(ctx, inv); err != nil {
			return writeFailure("update inventory record", err)
		}
		product = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	util.StockAdjustmentsTotal.WithLabelValues(in.Direction).Inc()
	l.logger.Info("Stock adjusted",
		zap.Int64("inventory_record_id", inv.ID),
		zap.String("direction", in.Direction),
		zap.Int("old_qty", oldQty),
		zap.Int("new_qty", newQty),
		zap.String("actor", in.Actor))

	result = &AdjustResult{InventoryRecordID: inv.ID, OldQty: oldQty, NewQty: newQty}
	result.LogWarning = l.recordChange(ctx, LogEntryInput{
		InventoryRecordID: inv.ID,
		ProductID:         product.ID,
		StoreID:           inv.StoreID,
		ProductName:       product.Name,
		OldQuantity:       oldQty,
		NewQuantity:       newQty,
		Reason:            reason,
		Actor:             in.Actor,
		Source:            firstNonBlank(in.Source, models.SourceInventoryPage),
	})

	l.publish(ctx, models.EventTypeStockAdjusted, func() error {
		return l.events.PublishStockAdjusted(ctx, &models.StockAdjustedEvent{
			BaseEvent:         newBaseEvent(models.EventTypeStockAdjusted),
			InventoryRecordID: inv.ID,
			ProductID:         product.ID,
			StoreID:           inv.StoreID,
			Direction:         in.Direction,
			OldQty:            oldQty,
			NewQty:            newQty,
			Reason:            reason,
		})
	})

	return result, nil
}

// SaleInput is one sold line. Uniquely tracked products must name the sold
// device IDs; Quantity defaults to their count.
type SaleInput struct {
	ProductID int64
	StoreID   int64
	Quantity  int
	DeviceIDs []string
	Actor     string
	Reference string
}

// SaleResult is the inventory after a sale
type SaleResult struct {
	Inventory  models.InventoryRecord `json:"inventory"`
	LogWarning string                 `json:"log_warning,omitempty"`
}

// RecordSale moves units from available to sold
func (l *Ledger) RecordSale(ctx context.Context, in SaleInput) (result *SaleResult, err error) {
	ctx, span := util.StartSpan(ctx, "Ledger.RecordSale")
	defer func() { util.EndSpan(span, err) }()

	ids := NormalizeDeviceIDs(in.DeviceIDs)
	qty := in.Quantity
	if qty == 0 {
		qty = len(ids)
	}
	if qty <= 0 {
		return nil, reject("invalid_amount", "sale quantity must be a positive whole number")
	}

	product, err := l.repo.GetProduct(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	if in.StoreID != 0 && product.StoreID != in.StoreID {
		return nil, store.ErrNotFound
	}
	if err := checkSelectedDevices(product, ids, qty); err != nil {
		return nil, err
	}

	release, err := acquireLocks(ctx, l.locker, l.cfg.LockTTL, l.logger, inventoryLockKey(product.ID, product.StoreID))
	if err != nil {
		return nil, err
	}
	defer release()

	var (
		inv    *models.InventoryRecord
		oldQty int
	)
	err = l.repo.WithinTx(ctx, func(tx store.Repository) error {
		inv, err = tx.GetInventoryByProduct(ctx, product.ID, product.StoreID)
		if err != nil {
			return err
		}
		if qty > inv.AvailableQty {
			return reject("insufficient_stock", "cannot sell %d of %q: only %d in stock", qty, product.Name, inv.AvailableQty)
		}
		if err := checkOwnedDevices(ctx, tx, product, ids); err != nil {
			return err
		}

		if err := tx.RemoveDevices(ctx, product.ID, ids); err != nil {
			return writeFailure("remove sold device ids", err)
		}
		oldQty = inv.AvailableQty
		inv.AvailableQty -= qty
		inv.QuantitySold += qty
		if err := tx.UpdateInventory(ctx, inv); err != nil {
			return writeFailure("update inventory record", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	util.SalesRecordedTotal.Inc()
	l.logger.Info("Sale recorded",
		zap.Int64("product_id", product.ID),
		zap.Int("quantity", qty),
		zap.String("reference", in.Reference))

	reason := defaultSaleReason
	if in.Reference != "" {
		reason = fmt.Sprintf("%s %s", defaultSaleReason, in.Reference)
	}
	result = &SaleResult{Inventory: *inv}
	result.LogWarning = l.recordChange(ctx, LogEntryInput{
		InventoryRecordID: inv.ID,
		ProductID:         product.ID,
		StoreID:           product.StoreID,
		ProductName:       product.Name,
		OldQuantity:       oldQty,
		NewQuantity:       inv.AvailableQty,
		Reason:            reason,
		Actor:             in.Actor,
		Source:            models.SourceSale,
	})

	l.publish(ctx, models.EventTypeSaleRecorded, func() error {
		return l.events.PublishSaleRecorded(ctx, &models.SaleRecordedEvent{
			BaseEvent:    newBaseEvent(models.EventTypeSaleRecorded),
			ProductID:    product.ID,
			StoreID:      product.StoreID,
			Quantity:     qty,
			DeviceIDs:    ids,
			AvailableQty: inv.AvailableQty,
		})
	})

	return result, nil
}

// DeleteProduct removes a product with its stock and devices. The adjustment
// history is kept.
func (l *Ledger) DeleteProduct(ctx context.Context, storeID, productID int64, actor string) (err error) {
	ctx, span := util.StartSpan(ctx, "Ledger.DeleteProduct")
	defer func() { util.EndSpan(span, err) }()

	product, err := l.repo.GetProduct(ctx, productID)
	if err != nil {
		return err
	}
	if storeID != 0 && product.StoreID != storeID {
		return store.ErrNotFound
	}
	if err := requireOwner(ctx, l.repo, product.StoreID, actor); err != nil {
		return err
	}

	release, err := acquireLocks(ctx, l.locker, l.cfg.LockTTL, l.logger, inventoryLockKey(product.ID, product.StoreID))
	if err != nil {
		return err
	}
	defer release()

	err = l.repo.WithinTx(ctx, func(tx store.Repository) error {
		if err := tx.DeleteProduct(ctx, product.ID); err != nil {
			return writeFailure("delete product", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	l.logger.Info("Product deleted",
		zap.Int64("product_id", product.ID),
		zap.Int64("store_id", product.StoreID),
		zap.String("actor", actor))
	return nil
}

// ListProducts returns every product of a store with its stock
func (l *Ledger) ListProducts(ctx context.Context, storeID int64) ([]ProductView, error) {
	if _, err := l.repo.GetStore(ctx, storeID); err != nil {
		return nil, err
	}

	products, err := l.repo.ListProducts(ctx, storeID)
	if err != nil {
		return nil, err
	}

	views := make([]ProductView, 0, len(products))
	for i := range products {
		inv, err := l.repo.GetInventoryByProduct(ctx, products[i].ID, storeID)
		if errors.Is(err, store.ErrNotFound) {
			inv, err = &models.InventoryRecord{ProductID: products[i].ID, StoreID: storeID}, nil
		}
		if err != nil {
			return nil, err
		}

		devices, err := l.repo.ListDevices(ctx, products[i].ID)
		if err != nil {
			return nil, err
		}
		views = append(views, *l.view(&products[i], inv, models.ExternalIDs(devices)))
	}
	return views, nil
}

// LowStockItem is a product at or below the low-stock threshold
type LowStockItem struct {
	InventoryRecordID int64  `json:"inventory_record_id"`
	ProductID         int64  `json:"product_id"`
	ProductName       string `json:"product_name"`
	AvailableQty      int    `json:"available_qty"`
	Threshold         int    `json:"threshold"`
}

// LowStock lists the store's products whose stock is at or below the
// configured threshold, lowest first.
func (l *Ledger) LowStock(ctx context.Context, storeID int64) ([]LowStockItem, error) {
	if _, err := l.repo.GetStore(ctx, storeID); err != nil {
		return nil, err
	}

	threshold := l.cfg.Preferences.LowStockThreshold
	records, err := l.repo.ListLowStock(ctx, storeID, threshold)
	if err != nil {
		return nil, err
	}

	items := make([]LowStockItem, 0, len(records))
	for _, inv := range records {
		product, err := l.repo.GetProduct(ctx, inv.ProductID)
		if err != nil {
			return nil, err
		}
		items = append(items, LowStockItem{
			InventoryRecordID: inv.ID,
			ProductID:         inv.ProductID,
			ProductName:       product.Name,
			AvailableQty:      inv.AvailableQty,
			Threshold:         threshold,
		})
	}
	return items, nil
}

// recordChange writes the audit entry of a committed change. A failure never
// undoes the change; it comes back as a warning for the caller.
func (l *Ledger) recordChange(ctx context.Context, in LogEntryInput) string {
	if err := l.audit.LogAdjustment(ctx, in); err != nil {
		util.AuditLogFailuresTotal.Inc()
		l.logger.Warn("Adjustment log write failed after quantity change",
			zap.Int64("inventory_record_id", in.InventoryRecordID),
			zap.Int("old_quantity", in.OldQuantity),
			zap.Int("new_quantity", in.NewQuantity),
			zap.Error(err))
		return fmt.Sprintf("%s: %v", logWarningMessageStem, err)
	}
	return ""
}

func (l *Ledger) publish(ctx context.Context, eventType string, send func() error) {
	if l.events == nil {
		return
	}
	if err := send(); err != nil {
		l.logger.Error("Failed to publish event", zap.String("event_type", eventType), zap.Error(err))
	}
}

func (l *Ledger) publishProductSaved(ctx context.Context, product *models.Product, inv *models.InventoryRecord, created bool, delta int) {
	l.publish(ctx, models.EventTypeProductSaved, func() error {
		return l.events.PublishProductSaved(ctx, &models.ProductSavedEvent{
			BaseEvent:    newBaseEvent(models.EventTypeProductSaved),
			ProductID:    product.ID,
			StoreID:      product.StoreID,
			Created:      created,
			AvailableQty: inv.AvailableQty,
			Delta:        delta,
		})
	})
}

// duplicateDevicesError turns a storage-level uniqueness violation into the
// same error the validator would have produced.
func (l *Ledger) duplicateDevicesError(ctx context.Context, storeID int64, ids []string, excludeProductID int64, err error) error {
	if !errors.Is(err, store.ErrDuplicateDeviceID) {
		return err
	}
	util.ValidationRejectionsTotal.WithLabelValues("duplicate_device_id").Inc()

	result, verr := l.validator.Validate(ctx, storeID, ids, excludeProductID)
	if verr == nil && !result.Valid {
		return &DuplicateDeviceIDsError{IDs: result.Duplicates}
	}
	return &DuplicateDeviceIDsError{IDs: ids}
}

func (l *Ledger) view(product *models.Product, inv *models.InventoryRecord, deviceIDs []string) *ProductView {
	if deviceIDs == nil {
		deviceIDs = []string{}
	}
	worth := product.PurchasePrice.Mul(decimal.NewFromInt(int64(inv.AvailableQty)))
	return &ProductView{
		Product:           *product,
		InventoryRecordID: inv.ID,
		AvailableQty:      inv.AvailableQty,
		QuantitySold:      inv.QuantitySold,
		DeviceIDs:         deviceIDs,
		DeviceList:        models.JoinDeviceList(deviceIDs),
		StockValue:        util.FormatMoney(l.cfg.Preferences, worth),
	}
}

// checkNameFree rejects a name already used by another product of the store.
// Transfers match destination products by name, so names must stay unique.
func checkNameFree(ctx context.Context, repo store.Repository, storeID int64, name string, productID int64) error {
	existing, err := repo.FindProductByName(ctx, storeID, name)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID != productID {
		return reject("duplicate_name", "a product named %q already exists in this store", existing.Name)
	}
	return nil
}

// checkSelectedDevices validates the device ids picked for units leaving a
// product, before any lock is taken.
func checkSelectedDevices(product *models.Product, ids []string, qty int) error {
	if !product.UniquelyTracked {
		if len(ids) > 0 {
			return reject("device_mismatch", "%q is not tracked by device ID", product.Name)
		}
		return nil
	}
	if len(ids) != qty {
		return reject("device_mismatch", "%d units of %q need exactly %d device IDs, got %d", qty, product.Name, qty, len(ids))
	}
	if len(keySet(ids)) != len(ids) {
		return reject("duplicate_device_id", "the same device ID was selected twice")
	}
	return nil
}

// checkOwnedDevices confirms every id is currently recorded on the product
func checkOwnedDevices(ctx context.Context, repo store.Repository, product *models.Product, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	devices, err := repo.ListDevices(ctx, product.ID)
	if err != nil {
		return err
	}
	owned := keySet(models.ExternalIDs(devices))

	var missing []string
	for _, id := range ids {
		if !owned[normalizeKey(id)] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return reject("unknown_device", "device IDs not in stock for %q: %s", product.Name, strings.Join(missing, ", "))
	}
	return nil
}

func deviceRecords(productID, storeID int64, ids []string, sizes map[string]string) []models.DeviceRecord {
	records := make([]models.DeviceRecord, 0, len(ids))
	for _, id := range ids {
		records = append(records, models.DeviceRecord{
			ProductID:  productID,
			StoreID:    storeID,
			ExternalID: id,
			Size:       sizes[normalizeKey(id)],
		})
	}
	return records
}

// sizeIndex pairs the raw submitted ids with their parallel size list
func sizeIndex(rawIDs, sizes []string) map[string]string {
	index := make(map[string]string)
	for i, id := range rawIDs {
		if i >= len(sizes) {
			break
		}
		if k := normalizeKey(id); k != "" {
			index[k] = strings.TrimSpace(sizes[i])
		}
	}
	return index
}

func newBaseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
