package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/store"
	"inventory-service/internal/store/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateProductDerivesQuantityFromDeviceIDs(t *testing.T) {
	f := newFixture(t)

	view := f.createTracked(t, f.main.ID, "Pixel 8", " IMEI-1 ", "IMEI-2", "")

	assert.True(t, view.UniquelyTracked)
	assert.Equal(t, 2, view.AvailableQty)
	assert.Equal(t, []string{"IMEI-1", "IMEI-2"}, view.DeviceIDs)
	assert.Equal(t, "IMEI-1,IMEI-2", view.DeviceList)
	assert.Equal(t, "$600.00", view.StockValue)
	assert.Equal(t, []string{"IMEI-1", "IMEI-2"}, f.deviceIDs(t, view.ID))

	entries := f.history(t, f.main.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, 0, entries[0].OldQuantity)
	assert.Equal(t, 2, entries[0].NewQuantity)
	assert.Equal(t, "Initial stock", entries[0].Reason)
	require.NotNil(t, entries[0].PerformedBy)
	assert.Equal(t, f.clerk.ID, *entries[0].PerformedBy)

	require.Len(t, f.events.saved, 1)
	assert.True(t, f.events.saved[0].Created)
}

func TestCreateBulkProductSetsQuantityAbsolutely(t *testing.T) {
	f := newFixture(t)

	view := f.createBulk(t, f.main.ID, "Cable", 20)

	assert.False(t, view.UniquelyTracked)
	assert.Equal(t, 20, view.AvailableQty)
	assert.Empty(t, view.DeviceIDs)
}

func TestCreateProductNeedsDeviceIDsOrQuantity(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.SaveProduct(context.Background(), SaveProductInput{
		StoreID:   f.main.ID,
		Name:      "Empty",
		DeviceIDs: []string{" ", ""},
	})
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	products, err := f.repo.ListProducts(context.Background(), f.main.ID)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestCreateProductRejectsBlankName(t *testing.T) {
	f := newFixture(t)

	_, err := f.ledger.SaveProduct(context.Background(), SaveProductInput{StoreID: f.main.ID, Name: "  ", Quantity: 3})
	assert.True(t, IsValidation(err))
}

func TestCreateProductReportsEveryDuplicate(t *testing.T) {
	f := newFixture(t)
	f.createTracked(t, f.main.ID, "iPhone 13", "IMEI-1", "IMEI-2")

	_, err := f.ledger.SaveProduct(context.Background(), SaveProductInput{
		StoreID:   f.main.ID,
		Name:      "iPhone 14",
		DeviceIDs: []string{"imei-1", "NEW-1", "new-1", "imei-2"},
	})

	var dup *DuplicateDeviceIDsError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, []string{"imei-1", "NEW-1", "imei-2"}, dup.IDs)
}

func TestProductNamesAreUniquePerStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cable := f.createBulk(t, f.main.ID, "USB Cable", 5)
	adapter := f.createBulk(t, f.main.ID, "Adapter", 5)

	_, err := f.ledger.SaveProduct(ctx, SaveProductInput{StoreID: f.main.ID, Name: "  usb cable ", Quantity: 2})
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	_, err = f.ledger.SaveProduct(ctx, SaveProductInput{ProductID: adapter.ID, StoreID: f.main.ID, Name: "USB CABLE"})
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	products, err := f.repo.ListProducts(ctx, f.main.ID)
	require.NoError(t, err)
	assert.Len(t, products, 2)

	// Renaming a product to a new spelling of its own name is fine.
	_, err = f.ledger.SaveProduct(ctx, SaveProductInput{ProductID: cable.ID, StoreID: f.main.ID, Name: "usb cable"})
	require.NoError(t, err)

	// Another store may use the name.
	f.createBulk(t, f.branch.ID, "USB Cable", 1)
}

func TestDeviceIDsAreUniqueAcrossProducts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.createTracked(t, f.main.ID, "Phone A", "A1", "A2")
	b := f.createTracked(t, f.main.ID, "Phone B", "B1")

	_, err := f.ledger.SaveProduct(ctx, SaveProductInput{
		ProductID: b.ID,
		StoreID:   f.main.ID,
		Name:      "Phone B",
		DeviceIDs: []string{"B1", "a2"},
	})
	var dup *DuplicateDeviceIDsError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, []string{"a2"}, dup.IDs)

	// A product may keep its own ids when edited.
	_, err = f.ledger.SaveProduct(ctx, SaveProductInput{
		ProductID: a.ID,
		StoreID:   f.main.ID,
		Name:      "Phone A (renamed)",
		DeviceIDs: []string{"A1", "A2", "A3"},
	})
	require.NoError(t, err)

	seen := make(map[string]int64)
	for _, p := range []int64{a.ID, b.ID} {
		for _, id := range f.deviceIDs(t, p) {
			owner, ok := seen[strings.ToLower(id)]
			assert.False(t, ok, "device %s on products %d and %d", id, owner, p)
			seen[strings.ToLower(id)] = p
		}
	}

	// The same id is fine in a different store.
	f.createTracked(t, f.branch.ID, "Phone A", "A1")
}

func TestEditTrackedProductAppliesDelta(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createTracked(t, f.main.ID, "Galaxy S23", "A", "B", "C")

	view, err := f.ledger.SaveProduct(ctx, SaveProductInput{
		ProductID: p.ID,
		StoreID:   f.main.ID,
		Name:      "Galaxy S23",
		DeviceIDs: []string{"B", "C", "D", "E"},
		Actor:     clerkEmail,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, view.Delta)
	assert.Equal(t, 4, view.AvailableQty)
	assert.Equal(t, 4, f.available(t, p.ID, f.main.ID))
	assert.ElementsMatch(t, []string{"B", "C", "D", "E"}, f.deviceIDs(t, p.ID))
	assert.Equal(t, len(f.deviceIDs(t, p.ID)), f.available(t, p.ID, f.main.ID))

	entries := f.history(t, f.main.ID)
	require.Len(t, entries, 2)
	assert.Equal(t, "Product edited", entries[0].Reason)
	assert.Equal(t, 3, entries[0].OldQuantity)
	assert.Equal(t, 4, entries[0].NewQuantity)
}

func TestEditBulkProductRestockIsAdditive(t *testing.T) {
	f := newFixture(t)
	p := f.createBulk(t, f.main.ID, "Screen protector", 20)

	view, err := f.ledger.SaveProduct(context.Background(), SaveProductInput{
		ProductID: p.ID,
		StoreID:   f.main.ID,
		Name:      "Screen protector",
		Quantity:  15,
		Reason:    "Supplier delivery",
		Actor:     clerkEmail,
	})
	require.NoError(t, err)

	assert.Equal(t, 35, view.AvailableQty)
	assert.Equal(t, 35, f.available(t, p.ID, f.main.ID))
	assert.Equal(t, "Supplier delivery", f.history(t, f.main.ID)[0].Reason)
}

func TestEditWithoutDeviceIDsKeepsDeviceSet(t *testing.T) {
	f := newFixture(t)
	p := f.createTracked(t, f.main.ID, "Watch", "W1", "W2")

	view, err := f.ledger.SaveProduct(context.Background(), SaveProductInput{
		ProductID:   p.ID,
		StoreID:     f.main.ID,
		Name:        "Watch",
		Description: "Series 9",
		Quantity:    10,
	})
	require.NoError(t, err)

	assert.Equal(t, 2, view.AvailableQty)
	assert.Equal(t, "Series 9", view.Description)
	assert.Equal(t, []string{"W1", "W2"}, f.deviceIDs(t, p.ID))
	assert.Len(t, f.history(t, f.main.ID), 1)
}

func TestEditClearingDeviceIDsEmptiesStock(t *testing.T) {
	f := newFixture(t)
	p := f.createTracked(t, f.main.ID, "Tablet", "T1", "T2")

	view, err := f.ledger.SaveProduct(context.Background(), SaveProductInput{
		ProductID: p.ID,
		StoreID:   f.main.ID,
		Name:      "Tablet",
		DeviceIDs: []string{},
	})
	require.NoError(t, err)

	assert.Equal(t, 0, view.AvailableQty)
	assert.False(t, view.UniquelyTracked)
	assert.Empty(t, f.deviceIDs(t, p.ID))
}

func TestEditRejectsDeviceIDsOnUntrackedStock(t *testing.T) {
	f := newFixture(t)
	p := f.createBulk(t, f.main.ID, "Earbuds", 4)

	_, err := f.ledger.SaveProduct(context.Background(), SaveProductInput{
		ProductID: p.ID,
		StoreID:   f.main.ID,
		Name:      "Earbuds",
		DeviceIDs: []string{"E1"},
	})
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Equal(t, 4, f.available(t, p.ID, f.main.ID))
	assert.Empty(t, f.deviceIDs(t, p.ID))
}

func TestEditOnlyDescriptiveFieldsOfEmptyProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createBulk(t, f.main.ID, "Charger", 2)

	_, err := f.ledger.AdjustStock(ctx, AdjustInput{
		InventoryRecordID: p.InventoryRecordID, Direction: models.DirectionReduce, Amount: 2, Reason: "Sold out", Actor: clerkEmail,
	})
	require.NoError(t, err)

	view, err := f.ledger.SaveProduct(ctx, SaveProductInput{
		ProductID:    p.ID,
		StoreID:      f.main.ID,
		Name:         "Charger 20W",
		SellingPrice: decimal.NewFromInt(9),
	})
	require.NoError(t, err)
	assert.Equal(t, "Charger 20W", view.Name)
	assert.Equal(t, 0, view.AvailableQty)
}

func TestEditProductOfAnotherStoreNotFound(t *testing.T) {
	f := newFixture(t)
	p := f.createBulk(t, f.main.ID, "Case", 1)

	_, err := f.ledger.SaveProduct(context.Background(), SaveProductInput{
		ProductID: p.ID,
		StoreID:   f.branch.ID,
		Name:      "Case",
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAdjustStockRequiresReason(t *testing.T) {
	f := newFixture(t)
	p := f.createBulk(t, f.main.ID, "Cable", 5)
	before := len(f.history(t, f.main.ID))

	var messages []string
	for _, reason := range []string{"", "   "} {
		_, err := f.ledger.AdjustStock(context.Background(), AdjustInput{
			InventoryRecordID: p.InventoryRecordID,
			Direction:         models.DirectionAdd,
			Amount:            3,
			Reason:            reason,
			Actor:             clerkEmail,
		})
		require.Error(t, err)
		assert.True(t, IsValidation(err))
		messages = append(messages, err.Error())
	}

	assert.Equal(t, messages[0], messages[1])
	assert.Equal(t, 5, f.available(t, p.ID, f.main.ID))
	assert.Len(t, f.history(t, f.main.ID), before)
}

func TestAdjustStockReduceBelowZeroHasNoSideEffects(t *testing.T) {
	f := newFixture(t)
	p := f.createBulk(t, f.main.ID, "Cable", 5)
	before := len(f.history(t, f.main.ID))

	_, err := f.ledger.AdjustStock(context.Background(), AdjustInput{
		InventoryRecordID: p.InventoryRecordID,
		Direction:         models.DirectionReduce,
		Amount:            8,
		Reason:            "damaged",
		Actor:             clerkEmail,
	})
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	assert.Equal(t, 5, f.available(t, p.ID, f.main.ID))
	assert.Len(t, f.history(t, f.main.ID), before)
	assert.Empty(t, f.events.adjusted)
}

func TestAdjustStockRejectsNonPositiveAmount(t *testing.T) {
	f := newFixture(t)
	p := f.createBulk(t, f.main.ID, "Cable", 5)

	for _, amount := range []int{0, -3} {
		_, err := f.ledger.AdjustStock(context.Background(), AdjustInput{
			InventoryRecordID: p.InventoryRecordID,
			Direction:         models.DirectionAdd,
			Amount:            amount,
			Reason:            "count",
		})
		assert.True(t, IsValidation(err))
	}

	_, err := f.ledger.AdjustStock(context.Background(), AdjustInput{
		InventoryRecordID: p.InventoryRecordID,
		Direction:         "set",
		Amount:            1,
		Reason:            "count",
	})
	assert.True(t, IsValidation(err))
}

func TestAdjustStockCommitsAndLogs(t *testing.T) {
	f := newFixture(t)
	p := f.createBulk(t, f.main.ID, "Cable", 5)

	result, err := f.ledger.AdjustStock(context.Background(), AdjustInput{
		InventoryRecordID: p.InventoryRecordID,
		Direction:         models.DirectionReduce,
		Amount:            2,
		Reason:            " water damage ",
		Actor:             clerkEmail,
	})
	require.NoError(t, err)

	assert.Equal(t, 5, result.OldQty)
	assert.Equal(t, 3, result.NewQty)
	assert.Empty(t, result.LogWarning)
	assert.Equal(t, 3, f.available(t, p.ID, f.main.ID))

	entry := f.history(t, f.main.ID)[0]
	assert.Equal(t, p.InventoryRecordID, entry.InventoryRecordID)
	assert.Equal(t, 5, entry.OldQuantity)
	assert.Equal(t, 3, entry.NewQuantity)
	assert.Equal(t, "water damage", entry.Reason)
	require.NotNil(t, entry.PerformedBy)
	assert.Equal(t, f.clerk.ID, *entry.PerformedBy)
	assert.Equal(t, models.SourceInventoryPage, entry.Source)
	assert.Equal(t, "Cable", entry.ProductName)

	require.Len(t, f.events.adjusted, 1)
	assert.Equal(t, models.DirectionReduce, f.events.adjusted[0].Direction)
}

func TestAdjustStockRejectsTrackedProduct(t *testing.T) {
	f := newFixture(t)
	p := f.createTracked(t, f.main.ID, "Phone", "P1")

	_, err := f.ledger.AdjustStock(context.Background(), AdjustInput{
		InventoryRecordID: p.InventoryRecordID,
		Direction:         models.DirectionAdd,
		Amount:            1,
		Reason:            "found one",
	})
	assert.True(t, IsValidation(err))
	assert.Equal(t, 1, f.available(t, p.ID, f.main.ID))
}

func TestAdjustStockRechecksTrackingUnderLock(t *testing.T) {
	var repo *hookRepo
	f := newFixtureWith(t, func(m *memory.Store) store.Repository {
		repo = &hookRepo{Store: m}
		return repo
	})
	ctx := context.Background()
	p := f.createBulk(t, f.main.ID, "Headset", 2)

	_, err := f.ledger.AdjustStock(ctx, AdjustInput{
		InventoryRecordID: p.InventoryRecordID, Direction: models.DirectionReduce, Amount: 2, Reason: "sold out", Actor: clerkEmail,
	})
	require.NoError(t, err)

	// An edit assigning device ids lands between the adjust's first read and its lock.
	repo.afterGetProduct = func() {
		_, err := f.otherLedger().SaveProduct(ctx, SaveProductInput{
			ProductID: p.ID,
			StoreID:   f.main.ID,
			Name:      "Headset",
			DeviceIDs: []string{"IMEI-1", "IMEI-2"},
			Actor:     clerkEmail,
		})
		require.NoError(t, err)
	}

	_, err = f.ledger.AdjustStock(ctx, AdjustInput{
		InventoryRecordID: p.InventoryRecordID, Direction: models.DirectionAdd, Amount: 3, Reason: "recount", Actor: clerkEmail,
	})
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	assert.Equal(t, 2, f.available(t, p.ID, f.main.ID))
	assert.Equal(t, []string{"IMEI-1", "IMEI-2"}, f.deviceIDs(t, p.ID))
}

func TestAdjustStockLogFailureIsOnlyAWarning(t *testing.T) {
	f := newFixtureWith(t, func(m *memory.Store) store.Repository { return failingLogRepo{m} })
	p := f.createBulk(t, f.main.ID, "Cable", 5)
	assert.NotEmpty(t, p.LogWarning)

	result, err := f.ledger.AdjustStock(context.Background(), AdjustInput{
		InventoryRecordID: p.InventoryRecordID,
		Direction:         models.DirectionAdd,
		Amount:            4,
		Reason:            "recount",
		Actor:             clerkEmail,
	})
	require.NoError(t, err)

	assert.Equal(t, 9, result.NewQty)
	assert.Contains(t, result.LogWarning, "adjustment log could not be written")
	assert.Equal(t, 9, f.available(t, p.ID, f.main.ID))
	assert.Empty(t, f.history(t, f.main.ID))
}

func TestAdjustStockUnknownActorIsStillLogged(t *testing.T) {
	f := newFixture(t)
	p := f.createBulk(t, f.main.ID, "Cable", 5)
	before := len(f.history(t, f.main.ID))

	result, err := f.ledger.AdjustStock(context.Background(), AdjustInput{
		InventoryRecordID: p.InventoryRecordID,
		Direction:         models.DirectionAdd,
		Amount:            1,
		Reason:            "recount",
		Actor:             "stranger@elsewhere.test",
	})
	require.NoError(t, err)
	assert.Empty(t, result.LogWarning)
	assert.Equal(t, 6, f.available(t, p.ID, f.main.ID))

	entries := f.history(t, f.main.ID)
	require.Len(t, entries, before+1)
	assert.Equal(t, 5, entries[0].OldQuantity)
	assert.Equal(t, 6, entries[0].NewQuantity)
	assert.Nil(t, entries[0].PerformedBy)
	assert.Equal(t, "stranger@elsewhere.test", entries[0].ActorEmail)
}

func TestAdjustStockWaitsForLock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createBulk(t, f.main.ID, "Cable", 5)

	_, ok, err := f.locker.AcquireLock(ctx, inventoryLockKey(p.ID, f.main.ID), time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = f.ledger.AdjustStock(ctx, AdjustInput{
		InventoryRecordID: p.InventoryRecordID,
		Direction:         models.DirectionAdd,
		Amount:            1,
		Reason:            "recount",
	})
	assert.ErrorIs(t, err, ErrLockUnavailable)
	assert.Equal(t, 5, f.available(t, p.ID, f.main.ID))
}

func TestRecordSaleBulk(t *testing.T) {
	f := newFixture(t)
	p := f.createBulk(t, f.main.ID, "Cable", 5)

	result, err := f.ledger.RecordSale(context.Background(), SaleInput{
		ProductID: p.ID,
		StoreID:   f.main.ID,
		Quantity:  2,
		Actor:     clerkEmail,
		Reference: "S-100",
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Inventory.AvailableQty)
	assert.Equal(t, 2, result.Inventory.QuantitySold)
	assert.Equal(t, "Sale S-100", f.history(t, f.main.ID)[0].Reason)
	assert.Equal(t, models.SourceSale, f.history(t, f.main.ID)[0].Source)
	require.Len(t, f.events.sales, 1)

	_, err = f.ledger.RecordSale(context.Background(), SaleInput{ProductID: p.ID, StoreID: f.main.ID, Quantity: 4})
	assert.True(t, IsValidation(err))
}

func TestRecordSaleTrackedRemovesDevices(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createTracked(t, f.main.ID, "Phone", "P1", "P2", "P3")

	_, err := f.ledger.RecordSale(ctx, SaleInput{ProductID: p.ID, StoreID: f.main.ID, DeviceIDs: []string{"p2"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"P1", "P3"}, f.deviceIDs(t, p.ID))
	assert.Equal(t, 2, f.available(t, p.ID, f.main.ID))

	_, err = f.ledger.RecordSale(ctx, SaleInput{ProductID: p.ID, StoreID: f.main.ID, DeviceIDs: []string{"P2"}})
	assert.True(t, IsValidation(err))

	_, err = f.ledger.RecordSale(ctx, SaleInput{ProductID: p.ID, StoreID: f.main.ID, Quantity: 1})
	assert.True(t, IsValidation(err))
}

func TestDeleteProductIsOwnerOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createTracked(t, f.main.ID, "Phone", "P1")

	err := f.ledger.DeleteProduct(ctx, f.main.ID, p.ID, clerkEmail)
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, f.ledger.DeleteProduct(ctx, f.main.ID, p.ID, ownerEmail))

	_, err = f.repo.GetProduct(ctx, p.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = f.repo.GetInventory(ctx, p.InventoryRecordID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Len(t, f.history(t, f.main.ID), 1)

	// The id is free again once its product is gone.
	f.createTracked(t, f.main.ID, "Phone", "P1")
}

func TestListProductsAndLowStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.createBulk(t, f.main.ID, "Cable", 20)
	low := f.createBulk(t, f.main.ID, "Adapter", 3)
	f.createTracked(t, f.main.ID, "Phone", "P1")

	views, err := f.ledger.ListProducts(ctx, f.main.ID)
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, "Adapter", views[0].Name)
	assert.Equal(t, []string{"P1"}, views[2].DeviceIDs)

	items, err := f.ledger.LowStock(ctx, f.main.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Phone", items[0].ProductName)
	assert.Equal(t, low.ID, items[1].ProductID)
	assert.Equal(t, 5, items[1].Threshold)

	_, err = f.ledger.ListProducts(ctx, 9999)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
