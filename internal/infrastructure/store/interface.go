package store

import (
	"context"

	"github.com/example/ec-storefront/internal/domain/inventory"
	"github.com/example/ec-storefront/internal/domain/notification"
	"github.com/example/ec-storefront/internal/domain/order"
)

// OrderRepository persists orders and their line items.
type OrderRepository interface {
	// LockUser serializes checkouts of one user for the rest of the transaction.
	LockUser(ctx context.Context, userID string) error
	// LatestPendingForUpdate returns the user's most recent pending order, or
	// nil when there is none.
	LatestPendingForUpdate(ctx context.Context, userID string) (*order.Order, error)
	Create(ctx context.Context, o *order.Order) error
	UpdatePending(ctx context.Context, o *order.Order) error
	ReplaceItems(ctx context.Context, orderID int64, items []order.Item) error
	// SetPreferenceID records the preference opened for reference. It fails
	// with order.ErrStaleExternalReference once a later checkout re-minted
	// the order's reference.
	SetPreferenceID(ctx context.Context, orderID int64, reference, preferenceID string) error

	GetByExternalReferenceForUpdate(ctx context.Context, reference string) (*order.Order, error)
	UpdatePaymentStatus(ctx context.Context, orderID int64, status order.Status, paymentID string) error
	Items(ctx context.Context, orderID int64) ([]order.Item, error)

	Get(ctx context.Context, orderID int64) (*order.Order, error)
	GetForUpdate(ctx context.Context, orderID int64) (*order.Order, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*order.Order, int, error)
	ListAll(ctx context.Context, limit, offset int) ([]*order.Order, int, error)
	Delete(ctx context.Context, orderID int64) error
	UpdateShipping(ctx context.Context, orderID int64, status order.ShippingStatus, trackingNumber *string) error
}

// InventoryRepository adjusts product stock.
type InventoryRepository interface {
	// DecreaseStockBulk applies every adjustment or none of them.
	DecreaseStockBulk(ctx context.Context, adjustments []inventory.Adjustment) error
}

// NotificationRepository stores admin notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *notification.Notification) error
	List(ctx context.Context, limit, offset int) ([]*notification.Notification, int, error)
	ListUnread(ctx context.Context, limit int) ([]*notification.Notification, error)
	UnreadCount(ctx context.Context) (int, error)
	MarkRead(ctx context.Context, id int64) error
	MarkAllRead(ctx context.Context) error
	Delete(ctx context.Context, id int64) error
}

// SettingsReader reads key/value store settings managed by the back office.
type SettingsReader interface {
	Setting(ctx context.Context, key string) (string, bool, error)
}

// UnitOfWork groups the repositories that share one transaction.
type UnitOfWork interface {
	Orders() OrderRepository
	Inventory() InventoryRepository
	Notifications() NotificationRepository
}

// Store is the relational store. Repositories returned directly run on the
// pool; InTx runs fn against a single transaction and commits only when fn
// returns nil.
type Store interface {
	UnitOfWork
	InTx(ctx context.Context, fn func(uow UnitOfWork) error) error
}
