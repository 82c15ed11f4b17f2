package service

import (
	"context"
	"errors"
	"fmt"

	"inventory-service/internal/models"
	"inventory-service/internal/store"
	"inventory-service/internal/util"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TransferInput moves Quantity units of a product to another store. Uniquely
// tracked products must name exactly Quantity of their device IDs.
type TransferInput struct {
	ProductID          int64
	SourceStoreID      int64
	DestinationStoreID int64
	Quantity           int
	DeviceIDs          []string
	Actor              string
	IdempotencyKey     string
}

// TransferResult is the completed transfer record
type TransferResult struct {
	models.TransferRecord
	WorthDisplay string   `json:"worth_display"`
	Replayed     bool     `json:"replayed,omitempty"`
	LogWarnings  []string `json:"log_warnings,omitempty"`
}

// TransferStock debits the source store and credits the product of the same
// name in the destination store, creating it there when missing. All writes
// happen in one transaction.
func (l *Ledger) TransferStock(ctx context.Context, in TransferInput) (result *TransferResult, err error) {
	ctx, span := util.StartSpan(ctx, "Ledger.TransferStock")
	defer func() { util.EndSpan(span, err) }()

	if in.IdempotencyKey != "" {
		existing, err := l.repo.GetTransferByIdempotencyKey(ctx, in.IdempotencyKey)
		if err != nil {
			return nil, fmt.Errorf("failed to check idempotency: %w", err)
		}
		if existing != nil {
			l.logger.Info("Duplicate transfer request detected",
				zap.String("idempotency_key", in.IdempotencyKey),
				zap.Int64("transfer_id", existing.ID))
			return l.transferResult(existing, true), nil
		}
	}

	if in.DestinationStoreID == 0 {
		return nil, reject("missing_destination", "select a destination store")
	}

	product, err := l.repo.GetProduct(ctx, in.ProductID)
	if err != nil {
		return nil, err
	}
	if product.StoreID != in.SourceStoreID {
		return nil, store.ErrNotFound
	}
	source, err := l.repo.GetInventoryByProduct(ctx, product.ID, product.StoreID)
	if err != nil {
		return nil, err
	}
	if in.Quantity <= 0 || in.Quantity > source.AvailableQty {
		return nil, reject("invalid_amount", "quantity must be between 1 and %d", source.AvailableQty)
	}
	if in.DestinationStoreID == in.SourceStoreID {
		return nil, reject("same_store", "source and destination store must differ")
	}

	sourceStore, err := l.repo.GetStore(ctx, in.SourceStoreID)
	if err != nil {
		return nil, err
	}
	destStore, err := l.repo.GetStore(ctx, in.DestinationStoreID)
	if err != nil {
		return nil, err
	}

	ids := NormalizeDeviceIDs(in.DeviceIDs)
	if err := checkSelectedDevices(product, ids, in.Quantity); err != nil {
		return nil, err
	}

	release, err := acquireLocks(ctx, l.locker, l.cfg.LockTTL, l.logger,
		inventoryLockKey(product.ID, product.StoreID),
		productNameLockKey(in.DestinationStoreID, product.Name))
	if err != nil {
		return nil, err
	}
	defer release()

	var requestedBy int64
	if user, err := l.repo.GetUserByEmail(ctx, in.Actor); err == nil {
		requestedBy = user.ID
	}

	var (
		transfer        *models.TransferRecord
		srcOld, dstOld  int
		srcInv, dstInv  *models.InventoryRecord
		destProductName string
	)
	err = l.repo.WithinTx(ctx, func(tx store.Repository) error {
		srcInv, err = tx.GetInventoryByProduct(ctx, product.ID, product.StoreID)
		if err != nil {
			return err
		}
		if in.Quantity > srcInv.AvailableQty {
			return reject("insufficient_stock", "cannot transfer %d of %q: only %d in stock", in.Quantity, product.Name, srcInv.AvailableQty)
		}
		if err := checkOwnedDevices(ctx, tx, product, ids); err != nil {
			return err
		}

		srcOld = srcInv.AvailableQty
		srcInv.AvailableQty -= in.Quantity
		if err := tx.UpdateInventory(ctx, srcInv); err != nil {
			return writeFailure("debit source inventory", err)
		}

		var sizes map[string]string
		if len(ids) > 0 {
			devices, err := tx.ListDevices(ctx, product.ID)
			if err != nil {
				return err
			}
			sizes = make(map[string]string, len(devices))
			for _, d := range devices {
				sizes[normalizeKey(d.ExternalID)] = d.Size
			}
			if err := tx.RemoveDevices(ctx, product.ID, ids); err != nil {
				return writeFailure("remove transferred device ids", err)
			}
		}

		dest, err := l.creditDestination(ctx, tx, product, in, ids)
		if err != nil {
			return err
		}
		dstInv, dstOld, destProductName = dest.inv, dest.oldQty, dest.product.Name

		if err := tx.AddDevices(ctx, deviceRecords(dest.product.ID, in.DestinationStoreID, ids, sizes)); err != nil {
			return writeFailure("add transferred device ids", err)
		}

		transfer = &models.TransferRecord{
			SourceStoreID:        in.SourceStoreID,
			DestinationStoreID:   in.DestinationStoreID,
			ProductID:            product.ID,
			DestinationProductID: dest.product.ID,
			Quantity:             in.Quantity,
			Worth:                product.PurchasePrice.Mul(decimal.NewFromInt(int64(in.Quantity))),
			Status:               models.TransferStatusCompleted,
			IdempotencyKey:       in.IdempotencyKey,
			RequestedBy:          requestedBy,
		}
		if err := tx.InsertTransfer(ctx, transfer); err != nil {
			return writeFailure("record transfer", err)
		}
		return nil
	})
	if err != nil {
		if replay := l.replayedTransfer(ctx, in.IdempotencyKey, err); replay != nil {
			return replay, nil
		}
		return nil, l.duplicateDevicesError(ctx, in.DestinationStoreID, ids, 0, err)
	}

	util.StockTransfersTotal.Inc()
	l.logger.Info("Stock transferred",
		zap.Int64("transfer_id", transfer.ID),
		zap.Int64("product_id", product.ID),
		zap.Int64("source_store_id", in.SourceStoreID),
		zap.Int64("destination_store_id", in.DestinationStoreID),
		zap.Int("quantity", in.Quantity))

	result = l.transferResult(transfer, false)
	for _, entry := range []LogEntryInput{
		{
			InventoryRecordID: srcInv.ID,
			ProductID:         product.ID,
			StoreID:           in.SourceStoreID,
			ProductName:       product.Name,
			OldQuantity:       srcOld,
			NewQuantity:       srcInv.AvailableQty,
			Reason:            fmt.Sprintf("Transferred %d to %s", in.Quantity, destStore.Name),
		},
		{
			InventoryRecordID: dstInv.ID,
			ProductID:         transfer.DestinationProductID,
			StoreID:           in.DestinationStoreID,
			ProductName:       destProductName,
			OldQuantity:       dstOld,
			NewQuantity:       dstInv.AvailableQty,
			Reason:            fmt.Sprintf("Received %d from %s", in.Quantity, sourceStore.Name),
		},
	} {
		entry.Actor = in.Actor
		entry.Source = models.SourceTransfer
		if warning := l.recordChange(ctx, entry); warning != "" {
			result.LogWarnings = append(result.LogWarnings, warning)
		}
	}

	l.publish(ctx, models.EventTypeStockTransferred, func() error {
		return l.events.PublishStockTransferred(ctx, &models.StockTransferredEvent{
			BaseEvent:            newBaseEvent(models.EventTypeStockTransferred),
			TransferID:           transfer.ID,
			ProductID:            transfer.ProductID,
			DestinationProductID: transfer.DestinationProductID,
			SourceStoreID:        transfer.SourceStoreID,
			DestinationStoreID:   transfer.DestinationStoreID,
			Quantity:             transfer.Quantity,
			Worth:                transfer.Worth.StringFixed(2),
		})
	})

	return result, nil
}

type creditedDestination struct {
	product *models.Product
	inv     *models.InventoryRecord
	oldQty  int
}

// creditDestination adds the units to the same-named product of the
// destination store, or creates that product from the source's attributes.
func (l *Ledger) creditDestination(ctx context.Context, tx store.Repository, source *models.Product, in TransferInput, ids []string) (*creditedDestination, error) {
	destProduct, err := tx.FindProductByName(ctx, in.DestinationStoreID, source.Name)
	if errors.Is(err, store.ErrNotFound) {
		return l.createDestination(ctx, tx, source, in, ids)
	}
	if err != nil {
		return nil, err
	}

	inv, err := tx.GetInventoryByProduct(ctx, destProduct.ID, in.DestinationStoreID)
	if errors.Is(err, store.ErrNotFound) {
		inv, err = &models.InventoryRecord{ProductID: destProduct.ID, StoreID: in.DestinationStoreID}, nil
	}
	if err != nil {
		return nil, err
	}

	if len(ids) > 0 {
		if !destProduct.UniquelyTracked && inv.AvailableQty > 0 {
			return nil, reject("untracked_stock",
				"%q in the destination store holds %d units without device IDs", destProduct.Name, inv.AvailableQty)
		}
		result, err := validateDevices(ctx, tx, in.DestinationStoreID, ids, destProduct.ID)
		if err != nil {
			return nil, err
		}
		if err := result.Err(); err != nil {
			return nil, err
		}
		if !destProduct.UniquelyTracked {
			destProduct.UniquelyTracked = true
			if err := tx.UpdateProduct(ctx, destProduct); err != nil {
				return nil, writeFailure("update destination product", err)
			}
		}
	} else if destProduct.UniquelyTracked {
		return nil, reject("device_mismatch",
			"%q is tracked by device ID in the destination store", destProduct.Name)
	}

	oldQty := inv.AvailableQty
	inv.AvailableQty += in.Quantity
	if inv.ID == 0 {
		err = tx.UpsertInventory(ctx, inv)
	} else {
		err = tx.UpdateInventory(ctx, inv)
	}
	if err != nil {
		return nil, writeFailure("credit destination inventory", err)
	}

	return &creditedDestination{product: destProduct, inv: inv, oldQty: oldQty}, nil
}

func (l *Ledger) createDestination(ctx context.Context, tx store.Repository, source *models.Product, in TransferInput, ids []string) (*creditedDestination, error) {
	if len(ids) > 0 {
		result, err := validateDevices(ctx, tx, in.DestinationStoreID, ids, 0)
		if err != nil {
			return nil, err
		}
		if err := result.Err(); err != nil {
			return nil, err
		}
	}

	product := &models.Product{
		StoreID:         in.DestinationStoreID,
		Name:            source.Name,
		Description:     source.Description,
		PurchasePrice:   source.PurchasePrice,
		SellingPrice:    source.SellingPrice,
		SupplierName:    source.SupplierName,
		UniquelyTracked: len(ids) > 0,
	}
	if err := tx.CreateProduct(ctx, product); err != nil {
		return nil, writeFailure("create destination product", err)
	}

	inv := &models.InventoryRecord{
		ProductID:    product.ID,
		StoreID:      in.DestinationStoreID,
		AvailableQty: in.Quantity,
	}
	if err := tx.UpsertInventory(ctx, inv); err != nil {
		return nil, writeFailure("create destination inventory", err)
	}

	return &creditedDestination{product: product, inv: inv}, nil
}

// replayedTransfer returns the winner of a race on the same idempotency key
func (l *Ledger) replayedTransfer(ctx context.Context, key string, cause error) *TransferResult {
	if key == "" || IsValidation(cause) {
		return nil
	}
	existing, err := l.repo.GetTransferByIdempotencyKey(ctx, key)
	if err != nil || existing == nil {
		return nil
	}
	return l.transferResult(existing, true)
}

func (l *Ledger) transferResult(t *models.TransferRecord, replayed bool) *TransferResult {
	return &TransferResult{
		TransferRecord: *t,
		WorthDisplay:   util.FormatMoney(l.cfg.Preferences, t.Worth),
		Replayed:       replayed,
	}
}

// ListTransfers lists transfers into or out of a store, newest first
func (l *Ledger) ListTransfers(ctx context.Context, storeID int64) ([]TransferResult, error) {
	if _, err := l.repo.GetStore(ctx, storeID); err != nil {
		return nil, err
	}

	transfers, err := l.repo.ListTransfers(ctx, storeID)
	if err != nil {
		return nil, err
	}

	results := make([]TransferResult, 0, len(transfers))
	for i := range transfers {
		results = append(results, *l.transferResult(&transfers[i], false))
	}
	return results, nil
}
