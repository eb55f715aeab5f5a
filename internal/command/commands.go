package command

import (
	"github.com/shopspring/decimal"

	"github.com/example/ec-storefront/internal/domain/order"
)

// Checkout Commands
type CheckoutItem struct {
	ProductID *int64          `json:"product_id" validate:"required"`
	Title     string          `json:"title" validate:"required,max=255"`
	Price     decimal.Decimal `json:"price" validate:"gte=0"`
	Quantity  int             `json:"quantity" validate:"gte=1"`
}

// StartCheckout places (or refreshes) the caller's pending order and opens a
// payment session for it. UserID and BuyerEmail come from the session, never
// from the request body.
type StartCheckout struct {
	UserID          string             `json:"-" validate:"required"`
	BuyerEmail      string             `json:"-" validate:"omitempty,email"`
	Items           []CheckoutItem     `json:"items" validate:"required,min=1,dive"`
	Total           decimal.Decimal    `json:"total" validate:"gt=0"`
	ShippingAddress string             `json:"shippingAddress" validate:"required_if=ShippingType delivery"`
	Phone           *string            `json:"phone" validate:"omitempty,max=50"`
	Comments        *string            `json:"comments"`
	ShippingType    order.ShippingType `json:"shippingType" validate:"required,oneof=pickup delivery"`
	ShippingCost    decimal.Decimal    `json:"shippingCost" validate:"gte=0"`
}

type CheckoutResult struct {
	OrderID           int64  `json:"orderId"`
	PreferenceID      string `json:"preferenceId"`
	InitPoint         string `json:"initPoint,omitempty"`
	ExternalReference string `json:"externalReference"`
	Reused            bool   `json:"reused"`
}

// Order Commands
type DeleteOrder struct {
	OrderID int64
	// UserID scopes the deletion to the owner. Empty means any order (admin).
	UserID string
}

type UpdateShipping struct {
	OrderID        int64   `json:"-"`
	ShippingStatus string  `json:"shipping_status"`
	TrackingNumber *string `json:"tracking_number"`
}
