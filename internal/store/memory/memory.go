// Package memory is an in-process Repository used for local development when
// no DATABASE_URL is configured, and by the service tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"inventory-service/internal/models"
	"inventory-service/internal/store"
)

var (
	errBlankDevice      = errors.New("device id must not be blank")
	errNegativeQuantity = errors.New("available quantity must not be negative")
	errDuplicateKey     = errors.New("transfer idempotency key already used")
)

type state struct {
	nextID      int64
	stores      map[int64]models.Store
	users       map[int64]models.User
	products    map[int64]models.Product
	inventory   map[int64]models.InventoryRecord
	devices     map[int64]models.DeviceRecord
	adjustments []models.AdjustmentLogEntry
	transfers   []models.TransferRecord
}

type shared struct {
	mu   sync.Mutex
	txMu sync.Mutex
	data *state
}

type Store struct {
	s    *shared
	inTx bool
}

var _ store.Repository = (*Store)(nil)

func New() *Store {
	return &Store{s: &shared{data: &state{
		stores:    make(map[int64]models.Store),
		users:     make(map[int64]models.User),
		products:  make(map[int64]models.Product),
		inventory: make(map[int64]models.InventoryRecord),
		devices:   make(map[int64]models.DeviceRecord),
	}}}
}

// AddStore seeds a store
func (m *Store) AddStore(name string, ownerID int64) models.Store {
	defer m.lockWrite()()

	st := models.Store{ID: m.id(), Name: name, OwnerID: ownerID, CreatedAt: now()}
	m.s.data.stores[st.ID] = st
	return st
}

// AddUser seeds a user
func (m *Store) AddUser(email, name string) models.User {
	defer m.lockWrite()()

	u := models.User{ID: m.id(), Email: email, Name: name}
	m.s.data.users[u.ID] = u
	return u
}

// WithinTx serializes transactions and restores a snapshot when fn fails.
// Writes outside a transaction wait for the running one to finish, so a
// rollback never discards them.
func (m *Store) WithinTx(ctx context.Context, fn func(repo store.Repository) error) error {
	if m.inTx {
		return fn(m)
	}

	m.s.txMu.Lock()
	defer m.s.txMu.Unlock()

	m.s.mu.Lock()
	snapshot := m.s.data.clone()
	m.s.mu.Unlock()

	if err := fn(&Store{s: m.s, inTx: true}); err != nil {
		m.s.mu.Lock()
		m.s.data = snapshot
		m.s.mu.Unlock()
		return err
	}
	return nil
}

func (m *Store) GetStore(ctx context.Context, id int64) (*models.Store, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	st, ok := m.s.data.stores[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &st, nil
}

func (m *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for _, u := range m.s.data.users {
		if strings.EqualFold(u.Email, email) {
			u := u
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *Store) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	p, ok := m.s.data.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (m *Store) FindProductByName(ctx context.Context, storeID int64, name string) (*models.Product, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	key := normalizeName(name)
	var found *models.Product
	for _, p := range m.s.data.products {
		if p.StoreID != storeID || normalizeName(p.Name) != key {
			continue
		}
		if found == nil || p.ID < found.ID {
			p := p
			found = &p
		}
	}
	if found == nil {
		return nil, store.ErrNotFound
	}
	return found, nil
}

func (m *Store) ListProducts(ctx context.Context, storeID int64) ([]models.Product, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	var out []models.Product
	for _, p := range m.s.data.products {
		if p.StoreID == storeID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	defer m.lockWrite()()

	if _, ok := m.s.data.stores[product.StoreID]; !ok {
		return store.ErrNotFound
	}
	product.ID = m.id()
	product.CreatedAt = now()
	product.UpdatedAt = product.CreatedAt
	m.s.data.products[product.ID] = *product
	return nil
}

func (m *Store) UpdateProduct(ctx context.Context, product *models.Product) error {
	defer m.lockWrite()()

	existing, ok := m.s.data.products[product.ID]
	if !ok {
		return store.ErrNotFound
	}
	product.StoreID = existing.StoreID
	product.CreatedAt = existing.CreatedAt
	product.UpdatedAt = now()
	m.s.data.products[product.ID] = *product
	return nil
}

func (m *Store) DeleteProduct(ctx context.Context, id int64) error {
	defer m.lockWrite()()

	if _, ok := m.s.data.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.s.data.products, id)
	for invID, inv := range m.s.data.inventory {
		if inv.ProductID == id {
			delete(m.s.data.inventory, invID)
		}
	}
	for devID, d := range m.s.data.devices {
		if d.ProductID == id {
			delete(m.s.data.devices, devID)
		}
	}
	return nil
}

func (m *Store) GetInventory(ctx context.Context, id int64) (*models.InventoryRecord, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	inv, ok := m.s.data.inventory[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &inv, nil
}

func (m *Store) GetInventoryByProduct(ctx context.Context, productID, storeID int64) (*models.InventoryRecord, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if inv, ok := m.findInventory(productID, storeID); ok {
		return &inv, nil
	}
	return nil, store.ErrNotFound
}

func (m *Store) UpsertInventory(ctx context.Context, inv *models.InventoryRecord) error {
	defer m.lockWrite()()

	if inv.AvailableQty < 0 {
		return errNegativeQuantity
	}
	if existing, ok := m.findInventory(inv.ProductID, inv.StoreID); ok {
		existing.AvailableQty = inv.AvailableQty
		existing.Version++
		existing.UpdatedAt = now()
		m.s.data.inventory[existing.ID] = existing
		*inv = existing
		return nil
	}
	if _, ok := m.s.data.products[inv.ProductID]; !ok {
		return store.ErrNotFound
	}
	inv.ID = m.id()
	inv.Version = 1
	inv.UpdatedAt = now()
	m.s.data.inventory[inv.ID] = *inv
	return nil
}

func (m *Store) UpdateInventory(ctx context.Context, inv *models.InventoryRecord) error {
	defer m.lockWrite()()

	existing, ok := m.s.data.inventory[inv.ID]
	if !ok || existing.Version != inv.Version {
		return store.ErrVersionConflict
	}
	if inv.AvailableQty < 0 || inv.QuantitySold < 0 {
		return errNegativeQuantity
	}
	existing.AvailableQty = inv.AvailableQty
	existing.QuantitySold = inv.QuantitySold
	existing.Version++
	existing.UpdatedAt = now()
	m.s.data.inventory[inv.ID] = existing
	inv.Version = existing.Version
	inv.UpdatedAt = existing.UpdatedAt
	return nil
}

func (m *Store) ListLowStock(ctx context.Context, storeID int64, threshold int) ([]models.InventoryRecord, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	var out []models.InventoryRecord
	for _, inv := range m.s.data.inventory {
		if inv.StoreID == storeID && inv.AvailableQty <= threshold {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AvailableQty != out[j].AvailableQty {
			return out[i].AvailableQty < out[j].AvailableQty
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Store) ListDevices(ctx context.Context, productID int64) ([]models.DeviceRecord, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	var out []models.DeviceRecord
	for _, d := range m.s.data.devices {
		if d.ProductID == productID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Store) AddDevices(ctx context.Context, devices []models.DeviceRecord) error {
	defer m.lockWrite()()

	seen := make(map[string]bool)
	for _, d := range m.s.data.devices {
		seen[deviceKey(d.StoreID, d.ExternalID)] = true
	}
	for _, d := range devices {
		if strings.TrimSpace(d.ExternalID) == "" {
			return errBlankDevice
		}
		key := deviceKey(d.StoreID, d.ExternalID)
		if seen[key] {
			return store.ErrDuplicateDeviceID
		}
		seen[key] = true
	}
	for _, d := range devices {
		d.ID = m.id()
		m.s.data.devices[d.ID] = d
	}
	return nil
}

func (m *Store) RemoveDevices(ctx context.Context, productID int64, externalIDs []string) error {
	defer m.lockWrite()()

	remove := make(map[string]bool, len(externalIDs))
	for _, id := range externalIDs {
		remove[strings.ToLower(strings.TrimSpace(id))] = true
	}
	for devID, d := range m.s.data.devices {
		if d.ProductID == productID && remove[strings.ToLower(d.ExternalID)] {
			delete(m.s.data.devices, devID)
		}
	}
	return nil
}

func (m *Store) FindDeviceConflicts(ctx context.Context, storeID int64, externalIDs []string, excludeProductID int64) ([]string, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	wanted := make(map[string]bool, len(externalIDs))
	for _, id := range externalIDs {
		wanted[strings.ToLower(strings.TrimSpace(id))] = true
	}

	var matches []models.DeviceRecord
	for _, d := range m.s.data.devices {
		if d.StoreID == storeID && d.ProductID != excludeProductID && wanted[strings.ToLower(d.ExternalID)] {
			matches = append(matches, d)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	return models.ExternalIDs(matches), nil
}

func (m *Store) InsertAdjustment(ctx context.Context, entry *models.AdjustmentLogEntry) error {
	defer m.lockWrite()()

	entry.ID = m.id()
	entry.CreatedAt = now()
	m.s.data.adjustments = append(m.s.data.adjustments, *entry)
	return nil
}

func (m *Store) ListAdjustments(ctx context.Context, storeID, productID int64) ([]models.AdjustmentLogEntry, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	var out []models.AdjustmentLogEntry
	for i := len(m.s.data.adjustments) - 1; i >= 0; i-- {
		e := m.s.data.adjustments[i]
		if e.StoreID == storeID && (productID == 0 || e.ProductID == productID) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *Store) DeleteAdjustments(ctx context.Context, storeID int64) (int64, error) {
	defer m.lockWrite()()

	kept := m.s.data.adjustments[:0]
	var removed int64
	for _, e := range m.s.data.adjustments {
		if e.StoreID == storeID {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	m.s.data.adjustments = kept
	return removed, nil
}

func (m *Store) InsertTransfer(ctx context.Context, transfer *models.TransferRecord) error {
	defer m.lockWrite()()

	if transfer.IdempotencyKey != "" {
		for _, t := range m.s.data.transfers {
			if t.IdempotencyKey == transfer.IdempotencyKey {
				return errDuplicateKey
			}
		}
	}
	transfer.ID = m.id()
	transfer.RequestedAt = now()
	m.s.data.transfers = append(m.s.data.transfers, *transfer)
	return nil
}

func (m *Store) GetTransferByIdempotencyKey(ctx context.Context, key string) (*models.TransferRecord, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	for _, t := range m.s.data.transfers {
		if key != "" && t.IdempotencyKey == key {
			t := t
			return &t, nil
		}
	}
	return nil, nil
}

func (m *Store) ListTransfers(ctx context.Context, storeID int64) ([]models.TransferRecord, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	var out []models.TransferRecord
	for i := len(m.s.data.transfers) - 1; i >= 0; i-- {
		t := m.s.data.transfers[i]
		if t.SourceStoreID == storeID || t.DestinationStoreID == storeID {
			out = append(out, t)
		}
	}
	return out, nil
}

// lockWrite takes mu, and txMu as well when m is not bound to a transaction.
// The transaction-bound copy already holds txMu.
func (m *Store) lockWrite() func() {
	if !m.inTx {
		m.s.txMu.Lock()
	}
	m.s.mu.Lock()
	return func() {
		m.s.mu.Unlock()
		if !m.inTx {
			m.s.txMu.Unlock()
		}
	}
}

// id must be called with mu held
func (m *Store) id() int64 {
	m.s.data.nextID++
	return m.s.data.nextID
}

func (m *Store) findInventory(productID, storeID int64) (models.InventoryRecord, bool) {
	for _, inv := range m.s.data.inventory {
		if inv.ProductID == productID && inv.StoreID == storeID {
			return inv, true
		}
	}
	return models.InventoryRecord{}, false
}

func (d *state) clone() *state {
	c := &state{
		nextID:      d.nextID,
		stores:      make(map[int64]models.Store, len(d.stores)),
		users:       make(map[int64]models.User, len(d.users)),
		products:    make(map[int64]models.Product, len(d.products)),
		inventory:   make(map[int64]models.InventoryRecord, len(d.inventory)),
		devices:     make(map[int64]models.DeviceRecord, len(d.devices)),
		adjustments: append([]models.AdjustmentLogEntry(nil), d.adjustments...),
		transfers:   append([]models.TransferRecord(nil), d.transfers...),
	}
	for k, v := range d.stores {
		c.stores[k] = v
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.products {
		c.products[k] = v
	}
	for k, v := range d.inventory {
		c.inventory[k] = v
	}
	for k, v := range d.devices {
		c.devices[k] = v
	}
	return c
}

func deviceKey(storeID int64, externalID string) string {
	return fmt.Sprintf("%d:%s", storeID, strings.ToLower(strings.TrimSpace(externalID)))
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func now() time.Time {
	return time.Now().UTC()
}
