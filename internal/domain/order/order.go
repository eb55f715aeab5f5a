package order

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
	StatusRefunded  Status = "refunded"
)

type ShippingType string

const (
	ShippingPickup   ShippingType = "pickup"
	ShippingDelivery ShippingType = "delivery"
)

type ShippingStatus string

const (
	ShippingProcessing ShippingStatus = "processing"
	ShippingShipped    ShippingStatus = "shipped"
	ShippingDelivered  ShippingStatus = "delivered"
)

var (
	ErrOrderNotFound              = errors.New("order not found")
	ErrOrderPaid                  = errors.New("paid orders cannot be deleted")
	ErrPaymentInProgress          = errors.New("orders with a payment in progress cannot be deleted")
	ErrDuplicateExternalReference = errors.New("external reference already in use")
	ErrInvalidShippingStatus      = errors.New("invalid shipping status")
	ErrExternalReferenceLocked    = errors.New("external reference cannot change after a payment attempt")
	ErrStaleExternalReference     = errors.New("order no longer carries this external reference")
)

type Order struct {
	ID                int64           `json:"id" db:"id"`
	UserID            string          `json:"user_id" db:"user_id"`
	TotalAmount       decimal.Decimal `json:"total_amount" db:"total_amount"`
	Status            Status          `json:"status" db:"status"`
	ShippingAddress   string          `json:"shipping_address" db:"shipping_address"`
	Phone             *string         `json:"phone,omitempty" db:"phone"`
	Comments          *string         `json:"comments,omitempty" db:"comments"`
	ShippingType      ShippingType    `json:"shipping_type" db:"shipping_type"`
	ShippingCost      decimal.Decimal `json:"shipping_cost" db:"shipping_cost"`
	ShippingStatus    ShippingStatus  `json:"shipping_status" db:"shipping_status"`
	TrackingNumber    *string         `json:"tracking_number,omitempty" db:"tracking_number"`
	PaymentID         *string         `json:"payment_id,omitempty" db:"payment_id"`
	PreferenceID      *string         `json:"preference_id,omitempty" db:"preference_id"`
	ExternalReference string          `json:"external_reference" db:"external_reference"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	Items             []Item          `json:"items" db:"-"`
}

// Item is a line of an order. Title and price are copied from the product at
// checkout time and never follow later product edits.
type Item struct {
	ID        int64           `json:"id" db:"id"`
	OrderID   int64           `json:"order_id" db:"order_id"`
	ProductID *int64          `json:"product_id" db:"product_id"`
	Title     string          `json:"title" db:"title"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Quantity  int             `json:"quantity" db:"quantity"`
}

func (i Item) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ItemsTotal sums price x quantity over items.
func ItemsTotal(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// HasPaymentAttempt reports whether the gateway ever confirmed a payment
// attempt against this order.
func (o *Order) HasPaymentAttempt() bool {
	return o.PaymentID != nil && *o.PaymentID != ""
}

// Reusable reports whether a later checkout by the same user may overwrite
// this order in place.
func (o *Order) Reusable() bool {
	return o.Status == StatusPending && !o.HasPaymentAttempt()
}

// CanDelete applies the deletion guard: only unsettled orders that never saw a
// payment attempt can be removed.
func (o *Order) CanDelete() error {
	if o.Status != StatusPending && o.Status != StatusCancelled {
		return ErrOrderPaid
	}
	if o.HasPaymentAttempt() {
		return ErrPaymentInProgress
	}
	return nil
}

// Rereference replaces the external reference. It fails once a payment
// attempt has been recorded.
func (o *Order) Rereference(ref string) error {
	if o.HasPaymentAttempt() {
		return ErrExternalReferenceLocked
	}
	o.ExternalReference = ref
	return nil
}

func ParseShippingStatus(s string) (ShippingStatus, error) {
	switch ShippingStatus(s) {
	case ShippingProcessing, ShippingShipped, ShippingDelivered:
		return ShippingStatus(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidShippingStatus, s)
}

// NewExternalReference mints the correlation token handed to the payment
// gateway. It is keyed by user and time with a random suffix; the storage
// layer enforces uniqueness.
func NewExternalReference(userID string, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return fmt.Sprintf("ORDER_%s_%d_%s", userID, now.UnixMilli(), suffix)
}
