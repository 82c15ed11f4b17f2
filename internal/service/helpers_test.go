package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"inventory-service/internal/models"
	"inventory-service/internal/store"
	"inventory-service/internal/store/memory"
	"inventory-service/internal/util"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const (
	ownerEmail = "owner@shop.test"
	clerkEmail = "clerk@shop.test"
)

type fakePublisher struct {
	mu          sync.Mutex
	saved       []*models.ProductSavedEvent
	adjusted    []*models.StockAdjustedEvent
	transferred []*models.StockTransferredEvent
	sales       []*models.SaleRecordedEvent
}

func (p *fakePublisher) PublishProductSaved(ctx context.Context, event *models.ProductSavedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saved = append(p.saved, event)
	return nil
}

func (p *fakePublisher) PublishStockAdjusted(ctx context.Context, event *models.StockAdjustedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.adjusted = append(p.adjusted, event)
	return nil
}

func (p *fakePublisher) PublishStockTransferred(ctx context.Context, event *models.StockTransferredEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transferred = append(p.transferred, event)
	return nil
}

func (p *fakePublisher) PublishSaleRecorded(ctx context.Context, event *models.SaleRecordedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sales = append(p.sales, event)
	return nil
}

// failingLogRepo makes every adjustment log write fail
type failingLogRepo struct {
	*memory.Store
}

func (r failingLogRepo) InsertAdjustment(ctx context.Context, entry *models.AdjustmentLogEntry) error {
	return errors.New("log table unavailable")
}

type fixture struct {
	repo   *memory.Store
	ledger *Ledger
	audit  *AuditLog
	locker *LocalLocker
	events *fakePublisher
	owner  models.User
	clerk  models.User
	main   models.Store
	branch models.Store
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWith(t, func(m *memory.Store) store.Repository { return m })
}

func newFixtureWith(t *testing.T, wrap func(*memory.Store) store.Repository) *fixture {
	t.Helper()

	f := &fixture{
		repo:   memory.New(),
		locker: NewLocalLocker(),
		events: &fakePublisher{},
	}
	f.owner = f.repo.AddUser(ownerEmail, "Owner")
	f.clerk = f.repo.AddUser(clerkEmail, "Clerk")
	f.main = f.repo.AddStore("Main Street", f.owner.ID)
	f.branch = f.repo.AddStore("Harbour Branch", f.owner.ID)

	repo := wrap(f.repo)
	f.audit = NewAuditLog(repo)
	f.ledger = NewLedger(repo, NewDeviceValidator(repo), f.audit, f.locker, f.events, LedgerConfig{
		Preferences: util.DefaultPreferences(),
	})
	return f
}

func (f *fixture) createTracked(t *testing.T, storeID int64, name string, ids ...string) *ProductView {
	t.Helper()
	view, err := f.ledger.SaveProduct(context.Background(), SaveProductInput{
		StoreID:       storeID,
		Name:          name,
		PurchasePrice: decimal.NewFromInt(300),
		SellingPrice:  decimal.NewFromInt(450),
		DeviceIDs:     ids,
		Actor:         clerkEmail,
	})
	require.NoError(t, err)
	return view
}

func (f *fixture) createBulk(t *testing.T, storeID int64, name string, qty int) *ProductView {
	t.Helper()
	view, err := f.ledger.SaveProduct(context.Background(), SaveProductInput{
		StoreID:       storeID,
		Name:          name,
		Description:   "USB-C, 1m",
		PurchasePrice: decimal.RequireFromString("2.50"),
		SellingPrice:  decimal.NewFromInt(5),
		SupplierName:  "Cables Ltd",
		Quantity:      qty,
		Actor:         clerkEmail,
	})
	require.NoError(t, err)
	return view
}

func (f *fixture) available(t *testing.T, productID, storeID int64) int {
	t.Helper()
	inv, err := f.repo.GetInventoryByProduct(context.Background(), productID, storeID)
	require.NoError(t, err)
	return inv.AvailableQty
}

func (f *fixture) deviceIDs(t *testing.T, productID int64) []string {
	t.Helper()
	devices, err := f.repo.ListDevices(context.Background(), productID)
	require.NoError(t, err)
	return models.ExternalIDs(devices)
}

func (f *fixture) history(t *testing.T, storeID int64) []models.AdjustmentLogEntry {
	t.Helper()
	entries, err := f.repo.ListAdjustments(context.Background(), storeID, 0)
	require.NoError(t, err)
	return entries
}

// hookRepo runs afterGetProduct once, right after the next product read
// outside a transaction.
type hookRepo struct {
	*memory.Store
	afterGetProduct func()
}

func (r *hookRepo) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	p, err := r.Store.GetProduct(ctx, id)
	if hook := r.afterGetProduct; hook != nil {
		r.afterGetProduct = nil
		hook()
	}
	return p, err
}

// otherLedger is a second ledger over the same data and locks, standing in
// for a concurrent request.
func (f *fixture) otherLedger() *Ledger {
	return NewLedger(f.repo, NewDeviceValidator(f.repo), NewAuditLog(f.repo), f.locker, nil, LedgerConfig{
		Preferences: util.DefaultPreferences(),
	})
}
