package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/example/ec-storefront/internal/domain/inventory"
	"github.com/example/ec-storefront/internal/domain/notification"
	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/infrastructure/store"
)

// Product is the slice of a catalog row the store mutates.
type Product struct {
	ID     int64
	Stock  int
	Status string
}

// PaymentUpdateCall records parameters passed to UpdatePaymentStatus
type PaymentUpdateCall struct {
	OrderID   int64
	Status    order.Status
	PaymentID string
}

// MemoryStore is an in-memory implementation of store.Store for testing.
//
// InTx holds the store lock for the whole transaction, which serializes
// transactions the way row locks do, and restores the previous state when fn
// fails. Recorded calls are not rolled back.
type MemoryStore struct {
	mu            sync.Mutex
	orders        map[int64]*order.Order
	items         map[int64][]order.Item
	products      map[int64]*Product
	notifications map[int64]*notification.Notification
	settings      map[string]string
	nextOrderID   int64
	nextItemID    int64
	nextNotifID   int64
	clock         time.Time

	// For tracking calls in tests
	LockUserCalls  []string
	DecreaseCalls  [][]inventory.Adjustment
	PaymentUpdates []PaymentUpdateCall
	TxCount        int
	Rollbacks      int

	// Errs makes the named operation fail, e.g. "Orders.Create" or
	// "Inventory.DecreaseStockBulk".
	Errs map[string]error
	// CreateCallback runs before Orders.Create and may return an error to
	// inject, e.g. a duplicate reference on the first attempt only.
	CreateCallback func(o *order.Order) error
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:        make(map[int64]*order.Order),
		items:         make(map[int64][]order.Item),
		products:      make(map[int64]*Product),
		notifications: make(map[int64]*notification.Notification),
		settings:      make(map[string]string),
		clock:         time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC),
		Errs:          make(map[string]error),
	}
}

var _ store.Store = (*MemoryStore)(nil)

// ============================================
// Seeding and inspection
// ============================================

// AddProduct seeds a product row.
func (m *MemoryStore) AddProduct(id int64, stock int, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[id] = &Product{ID: id, Stock: stock, Status: status}
}

// Product returns a copy of a seeded product.
func (m *MemoryStore) Product(id int64) (Product, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return Product{}, false
	}
	return *p, true
}

// PutOrder inserts an order as-is, assigning an ID and timestamp when unset.
func (m *MemoryStore) PutOrder(o *order.Order) *order.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.ID == 0 {
		m.nextOrderID++
		o.ID = m.nextOrderID
	} else if o.ID > m.nextOrderID {
		m.nextOrderID = o.ID
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = m.tick()
	}
	if o.ShippingStatus == "" {
		o.ShippingStatus = order.ShippingProcessing
	}
	m.replaceItems(o.ID, o.Items)
	o.Items = m.itemsOf(o.ID)
	m.orders[o.ID] = cloneOrder(o)
	return o
}

// Order returns a copy of a stored order with its items.
func (m *MemoryStore) Order(id int64) (*order.Order, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, false
	}
	out := cloneOrder(o)
	out.Items = m.itemsOf(id)
	return out, true
}

// AllOrders returns copies of every stored order ordered by ID.
func (m *MemoryStore) AllOrders() []*order.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*order.Order, 0, len(m.orders))
	for id, o := range m.orders {
		c := cloneOrder(o)
		c.Items = m.itemsOf(id)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AllNotifications returns copies of every stored notification ordered by ID.
func (m *MemoryStore) AllNotifications() []*notification.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*notification.Notification, 0, len(m.notifications))
	for _, n := range m.notifications {
		c := *n
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SetSetting stores a back-office setting.
func (m *MemoryStore) SetSetting(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
}

// ============================================
// store.Store
// ============================================

func (m *MemoryStore) Orders() store.OrderRepository {
	return &memOrders{m: m}
}

func (m *MemoryStore) Inventory() store.InventoryRepository {
	return &memInventory{m: m}
}

func (m *MemoryStore) Notifications() store.NotificationRepository {
	return &memNotifications{m: m}
}

func (m *MemoryStore) Settings() store.SettingsReader {
	return &memSettings{m: m}
}

func (m *MemoryStore) InTx(ctx context.Context, fn func(uow store.UnitOfWork) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.TxCount++
	if err := m.errFor("InTx"); err != nil {
		return err
	}

	snap := m.snapshot()
	if err := fn(&memUnit{m: m}); err != nil {
		m.restore(snap)
		m.Rollbacks++
		return err
	}
	if err := m.errFor("Commit"); err != nil {
		m.restore(snap)
		m.Rollbacks++
		return err
	}
	return nil
}

// memUnit hands out repositories that run under the lock InTx already holds.
type memUnit struct {
	m *MemoryStore
}

func (u *memUnit) Orders() store.OrderRepository {
	return &memOrders{m: u.m, inTx: true}
}

func (u *memUnit) Inventory() store.InventoryRepository {
	return &memInventory{m: u.m, inTx: true}
}

func (u *memUnit) Notifications() store.NotificationRepository {
	return &memNotifications{m: u.m, inTx: true}
}

// ============================================
// Internal state helpers (caller holds mu)
// ============================================

type memSnapshot struct {
	orders        map[int64]*order.Order
	items         map[int64][]order.Item
	products      map[int64]*Product
	notifications map[int64]*notification.Notification
	nextOrderID   int64
	nextItemID    int64
	nextNotifID   int64
}

func (m *MemoryStore) snapshot() memSnapshot {
	s := memSnapshot{
		orders:        make(map[int64]*order.Order, len(m.orders)),
		items:         make(map[int64][]order.Item, len(m.items)),
		products:      make(map[int64]*Product, len(m.products)),
		notifications: make(map[int64]*notification.Notification, len(m.notifications)),
		nextOrderID:   m.nextOrderID,
		nextItemID:    m.nextItemID,
		nextNotifID:   m.nextNotifID,
	}
	for id, o := range m.orders {
		s.orders[id] = cloneOrder(o)
	}
	for id, items := range m.items {
		s.items[id] = append([]order.Item(nil), items...)
	}
	for id, p := range m.products {
		c := *p
		s.products[id] = &c
	}
	for id, n := range m.notifications {
		c := *n
		s.notifications[id] = &c
	}
	return s
}

func (m *MemoryStore) restore(s memSnapshot) {
	m.orders = s.orders
	m.items = s.items
	m.products = s.products
	m.notifications = s.notifications
	m.nextOrderID = s.nextOrderID
	m.nextItemID = s.nextItemID
	m.nextNotifID = s.nextNotifID
}

func (m *MemoryStore) errFor(op string) error {
	return m.Errs[op]
}

// tick returns strictly increasing timestamps so "latest" is deterministic.
func (m *MemoryStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *MemoryStore) itemsOf(orderID int64) []order.Item {
	out := make([]order.Item, len(m.items[orderID]))
	copy(out, m.items[orderID])
	return out
}

func (m *MemoryStore) replaceItems(orderID int64, items []order.Item) {
	stored := make([]order.Item, len(items))
	for i := range items {
		m.nextItemID++
		items[i].ID = m.nextItemID
		items[i].OrderID = orderID
		stored[i] = items[i]
	}
	m.items[orderID] = stored
}

func (m *MemoryStore) referenceTaken(ref string, except int64) bool {
	for id, o := range m.orders {
		if id != except && o.ExternalReference == ref {
			return true
		}
	}
	return false
}

func cloneOrder(o *order.Order) *order.Order {
	c := *o
	c.Items = nil
	return &c
}

func strPtr(s string) *string { return &s }

// ============================================
// Orders
// ============================================

type memOrders struct {
	m    *MemoryStore
	inTx bool
}

func (r *memOrders) lock() func() {
	if r.inTx {
		return func() {}
	}
	r.m.mu.Lock()
	return r.m.mu.Unlock
}

func (r *memOrders) LockUser(ctx context.Context, userID string) error {
	defer r.lock()()
	r.m.LockUserCalls = append(r.m.LockUserCalls, userID)
	return r.m.errFor("Orders.LockUser")
}

func (r *memOrders) LatestPendingForUpdate(ctx context.Context, userID string) (*order.Order, error) {
	defer r.lock()()
	if err := r.m.errFor("Orders.LatestPendingForUpdate"); err != nil {
		return nil, err
	}
	var latest *order.Order
	for _, o := range r.m.orders {
		if o.UserID != userID || o.Status != order.StatusPending {
			continue
		}
		if latest == nil || o.CreatedAt.After(latest.CreatedAt) ||
			(o.CreatedAt.Equal(latest.CreatedAt) && o.ID > latest.ID) {
			latest = o
		}
	}
	if latest == nil {
		return nil, nil
	}
	return cloneOrder(latest), nil
}

func (r *memOrders) Create(ctx context.Context, o *order.Order) error {
	defer r.lock()()
	if r.m.CreateCallback != nil {
		if err := r.m.CreateCallback(o); err != nil {
			return err
		}
	}
	if err := r.m.errFor("Orders.Create"); err != nil {
		return err
	}
	if r.m.referenceTaken(o.ExternalReference, 0) {
		return order.ErrDuplicateExternalReference
	}
	r.m.nextOrderID++
	o.ID = r.m.nextOrderID
	o.ShippingStatus = order.ShippingProcessing
	o.CreatedAt = r.m.tick()
	r.m.orders[o.ID] = cloneOrder(o)
	return nil
}

func (r *memOrders) UpdatePending(ctx context.Context, o *order.Order) error {
	defer r.lock()()
	if err := r.m.errFor("Orders.UpdatePending"); err != nil {
		return err
	}
	stored, ok := r.m.orders[o.ID]
	if !ok || !stored.Reusable() {
		return order.ErrExternalReferenceLocked
	}
	if r.m.referenceTaken(o.ExternalReference, o.ID) {
		return order.ErrDuplicateExternalReference
	}
	stored.TotalAmount = o.TotalAmount
	stored.ShippingAddress = o.ShippingAddress
	stored.Phone = o.Phone
	stored.Comments = o.Comments
	stored.ShippingType = o.ShippingType
	stored.ShippingCost = o.ShippingCost
	stored.PreferenceID = nil
	stored.ExternalReference = o.ExternalReference
	o.PreferenceID = nil
	return nil
}

func (r *memOrders) ReplaceItems(ctx context.Context, orderID int64, items []order.Item) error {
	defer r.lock()()
	if err := r.m.errFor("Orders.ReplaceItems"); err != nil {
		return err
	}
	r.m.replaceItems(orderID, items)
	return nil
}

func (r *memOrders) SetPreferenceID(ctx context.Context, orderID int64, reference, preferenceID string) error {
	defer r.lock()()
	if err := r.m.errFor("Orders.SetPreferenceID"); err != nil {
		return err
	}
	o, ok := r.m.orders[orderID]
	if !ok || o.ExternalReference != reference {
		return order.ErrStaleExternalReference
	}
	o.PreferenceID = strPtr(preferenceID)
	return nil
}

func (r *memOrders) GetByExternalReferenceForUpdate(ctx context.Context, reference string) (*order.Order, error) {
	defer r.lock()()
	if err := r.m.errFor("Orders.GetByExternalReferenceForUpdate"); err != nil {
		return nil, err
	}
	for _, o := range r.m.orders {
		if o.ExternalReference == reference {
			return cloneOrder(o), nil
		}
	}
	return nil, order.ErrOrderNotFound
}

func (r *memOrders) UpdatePaymentStatus(ctx context.Context, orderID int64, status order.Status, paymentID string) error {
	defer r.lock()()
	r.m.PaymentUpdates = append(r.m.PaymentUpdates, PaymentUpdateCall{
		OrderID:   orderID,
		Status:    status,
		PaymentID: paymentID,
	})
	if err := r.m.errFor("Orders.UpdatePaymentStatus"); err != nil {
		return err
	}
	if o, ok := r.m.orders[orderID]; ok {
		o.Status = status
		o.PaymentID = strPtr(paymentID)
	}
	return nil
}

func (r *memOrders) Items(ctx context.Context, orderID int64) ([]order.Item, error) {
	defer r.lock()()
	if err := r.m.errFor("Orders.Items"); err != nil {
		return nil, err
	}
	return r.m.itemsOf(orderID), nil
}

func (r *memOrders) Get(ctx context.Context, orderID int64) (*order.Order, error) {
	defer r.lock()()
	return r.get(orderID)
}

func (r *memOrders) GetForUpdate(ctx context.Context, orderID int64) (*order.Order, error) {
	defer r.lock()()
	return r.get(orderID)
}

func (r *memOrders) get(orderID int64) (*order.Order, error) {
	if err := r.m.errFor("Orders.Get"); err != nil {
		return nil, err
	}
	o, ok := r.m.orders[orderID]
	if !ok {
		return nil, order.ErrOrderNotFound
	}
	out := cloneOrder(o)
	out.Items = r.m.itemsOf(orderID)
	return out, nil
}

func (r *memOrders) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*order.Order, int, error) {
	defer r.lock()()
	if err := r.m.errFor("Orders.ListByUser"); err != nil {
		return nil, 0, err
	}
	return r.page(func(o *order.Order) bool { return o.UserID == userID }, limit, offset)
}

func (r *memOrders) ListAll(ctx context.Context, limit, offset int) ([]*order.Order, int, error) {
	defer r.lock()()
	if err := r.m.errFor("Orders.ListAll"); err != nil {
		return nil, 0, err
	}
	return r.page(func(*order.Order) bool { return true }, limit, offset)
}

func (r *memOrders) page(keep func(*order.Order) bool, limit, offset int) ([]*order.Order, int, error) {
	var matched []*order.Order
	for id, o := range r.m.orders {
		if !keep(o) {
			continue
		}
		c := cloneOrder(o)
		c.Items = r.m.itemsOf(id)
		matched = append(matched, c)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := len(matched)
	if offset < 0 || offset >= total {
		return []*order.Order{}, total, nil
	}
	end := offset + limit
	if limit < 0 || end > total || end < offset {
		end = total
	}
	return matched[offset:end], total, nil
}

func (r *memOrders) Delete(ctx context.Context, orderID int64) error {
	defer r.lock()()
	if err := r.m.errFor("Orders.Delete"); err != nil {
		return err
	}
	o, ok := r.m.orders[orderID]
	if !ok || o.CanDelete() != nil {
		return order.ErrOrderNotFound
	}
	delete(r.m.orders, orderID)
	delete(r.m.items, orderID)
	return nil
}

func (r *memOrders) UpdateShipping(ctx context.Context, orderID int64, status order.ShippingStatus, trackingNumber *string) error {
	defer r.lock()()
	if err := r.m.errFor("Orders.UpdateShipping"); err != nil {
		return err
	}
	o, ok := r.m.orders[orderID]
	if !ok {
		return order.ErrOrderNotFound
	}
	o.ShippingStatus = status
	if trackingNumber != nil {
		o.TrackingNumber = strPtr(*trackingNumber)
	}
	return nil
}

// ============================================
// Inventory
// ============================================

type memInventory struct {
	m    *MemoryStore
	inTx bool
}

func (r *memInventory) DecreaseStockBulk(ctx context.Context, adjustments []inventory.Adjustment) error {
	if !r.inTx {
		r.m.mu.Lock()
		defer r.m.mu.Unlock()
	}
	r.m.DecreaseCalls = append(r.m.DecreaseCalls, append([]inventory.Adjustment(nil), adjustments...))
	if err := r.m.errFor("Inventory.DecreaseStockBulk"); err != nil {
		return err
	}

	// Validate first so a bad adjustment leaves every product untouched.
	for _, adj := range adjustments {
		if adj.Quantity <= 0 {
			return errors.Wrapf(inventory.ErrInvalidQuantity, "product %d", adj.ProductID)
		}
	}
	for _, adj := range adjustments {
		p, ok := r.m.products[adj.ProductID]
		if !ok {
			continue
		}
		stock, out := inventory.Decrease(p.Stock, adj.Quantity)
		p.Stock = stock
		if out {
			p.Status = inventory.ProductStatusOutOfStock
		}
	}
	return nil
}

// ============================================
// Notifications
// ============================================

type memNotifications struct {
	m    *MemoryStore
	inTx bool
}

func (r *memNotifications) lock() func() {
	if r.inTx {
		return func() {}
	}
	r.m.mu.Lock()
	return r.m.mu.Unlock
}

func (r *memNotifications) Create(ctx context.Context, n *notification.Notification) error {
	defer r.lock()()
	if err := r.m.errFor("Notifications.Create"); err != nil {
		return err
	}
	r.m.nextNotifID++
	n.ID = r.m.nextNotifID
	n.IsRead = false
	n.CreatedAt = r.m.tick()
	c := *n
	r.m.notifications[n.ID] = &c
	return nil
}

func (r *memNotifications) sorted(keep func(*notification.Notification) bool) []*notification.Notification {
	var out []*notification.Notification
	for _, n := range r.m.notifications {
		if keep(n) {
			c := *n
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (r *memNotifications) List(ctx context.Context, limit, offset int) ([]*notification.Notification, int, error) {
	defer r.lock()()
	if err := r.m.errFor("Notifications.List"); err != nil {
		return nil, 0, err
	}
	all := r.sorted(func(*notification.Notification) bool { return true })
	total := len(all)
	if offset < 0 || offset >= total {
		return []*notification.Notification{}, total, nil
	}
	end := offset + limit
	if limit < 0 || end > total || end < offset {
		end = total
	}
	return all[offset:end], total, nil
}

func (r *memNotifications) ListUnread(ctx context.Context, limit int) ([]*notification.Notification, error) {
	defer r.lock()()
	if err := r.m.errFor("Notifications.ListUnread"); err != nil {
		return nil, err
	}
	unread := r.sorted(func(n *notification.Notification) bool { return !n.IsRead })
	if len(unread) > limit {
		unread = unread[:limit]
	}
	return unread, nil
}

func (r *memNotifications) UnreadCount(ctx context.Context) (int, error) {
	defer r.lock()()
	if err := r.m.errFor("Notifications.UnreadCount"); err != nil {
		return 0, err
	}
	count := 0
	for _, n := range r.m.notifications {
		if !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r *memNotifications) MarkRead(ctx context.Context, id int64) error {
	defer r.lock()()
	if err := r.m.errFor("Notifications.MarkRead"); err != nil {
		return err
	}
	n, ok := r.m.notifications[id]
	if !ok {
		return notification.ErrNotFound
	}
	n.IsRead = true
	return nil
}

func (r *memNotifications) MarkAllRead(ctx context.Context) error {
	defer r.lock()()
	if err := r.m.errFor("Notifications.MarkAllRead"); err != nil {
		return err
	}
	for _, n := range r.m.notifications {
		n.IsRead = true
	}
	return nil
}

func (r *memNotifications) Delete(ctx context.Context, id int64) error {
	defer r.lock()()
	if err := r.m.errFor("Notifications.Delete"); err != nil {
		return err
	}
	if _, ok := r.m.notifications[id]; !ok {
		return notification.ErrNotFound
	}
	delete(r.m.notifications, id)
	return nil
}

// ============================================
// Settings
// ============================================

type memSettings struct {
	m *MemoryStore
}

func (r *memSettings) Setting(ctx context.Context, key string) (string, bool, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	if err := r.m.errFor("Settings.Setting"); err != nil {
		return "", false, err
	}
	v, ok := r.m.settings[key]
	return v, ok && v != "", nil
}
