package query

import (
	"context"

	"github.com/pkg/errors"

	"github.com/example/ec-storefront/internal/domain/notification"
	"github.com/example/ec-storefront/internal/domain/order"
	"github.com/example/ec-storefront/internal/infrastructure/store"
)

type Handler struct {
	store store.Store
}

func NewHandler(st store.Store) *Handler {
	return &Handler{store: st}
}

// Orders

// ListUserOrders returns the user's orders, newest first.
func (h *Handler) ListUserOrders(ctx context.Context, userID string, page int) (*OrderPage, error) {
	page = normalizePage(page)
	orders, total, err := h.store.Orders().ListByUser(ctx, userID, UserOrdersPageSize, (page-1)*UserOrdersPageSize)
	if err != nil {
		return nil, errors.Wrapf(err, "list orders of user %s", userID)
	}
	return newOrderPage(orders, total, page, UserOrdersPageSize), nil
}

// ListAllOrders returns every order, newest first.
func (h *Handler) ListAllOrders(ctx context.Context, page int) (*OrderPage, error) {
	page = normalizePage(page)
	orders, total, err := h.store.Orders().ListAll(ctx, AdminOrdersPageSize, (page-1)*AdminOrdersPageSize)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return newOrderPage(orders, total, page, AdminOrdersPageSize), nil
}

func (h *Handler) GetOrder(ctx context.Context, id int64) (*order.Order, error) {
	return h.store.Orders().Get(ctx, id)
}

func newOrderPage(orders []*order.Order, total, page, limit int) *OrderPage {
	if orders == nil {
		orders = []*order.Order{}
	}
	return &OrderPage{
		Data:       orders,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages(total, limit),
	}
}

// Notifications

func (h *Handler) ListNotifications(ctx context.Context, page, limit int) (*notification.Page, error) {
	page = normalizePage(page)
	limit = notification.ClampLimit(limit, DefaultNotificationLimit)
	items, total, err := h.store.Notifications().List(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, errors.Wrap(err, "list notifications")
	}
	if items == nil {
		items = []*notification.Notification{}
	}
	return &notification.Page{
		Data:       items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages(total, limit),
	}, nil
}

func (h *Handler) UnreadNotifications(ctx context.Context, limit int) ([]*notification.Notification, error) {
	items, err := h.store.Notifications().ListUnread(ctx, notification.ClampLimit(limit, DefaultUnreadLimit))
	if err != nil {
		return nil, errors.Wrap(err, "list unread notifications")
	}
	if items == nil {
		items = []*notification.Notification{}
	}
	return items, nil
}

func (h *Handler) UnreadCount(ctx context.Context) (int, error) {
	count, err := h.store.Notifications().UnreadCount(ctx)
	return count, errors.Wrap(err, "count unread notifications")
}
