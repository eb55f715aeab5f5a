package query

import "github.com/example/ec-storefront/internal/domain/order"

const (
	UserOrdersPageSize  = 5
	AdminOrdersPageSize = 10

	DefaultNotificationLimit = 20
	DefaultUnreadLimit       = 10

	// MaxPage keeps (page-1)*limit well inside int range for any clamped
	// limit.
	MaxPage = 1_000_000
)

// OrderPage is a page of orders with their items.
type OrderPage struct {
	Data       []*order.Order `json:"data"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalPages int            `json:"totalPages"`
}

func totalPages(total, limit int) int {
	if limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

func normalizePage(page int) int {
	switch {
	case page < 1:
		return 1
	case page > MaxPage:
		return MaxPage
	}
	return page
}
