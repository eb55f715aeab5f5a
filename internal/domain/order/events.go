package order

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced    = "OrderPlaced"
	EventOrderPaid      = "OrderPaid"
	EventOrderCancelled = "OrderCancelled"
)

// Event is published to the order event topic after a state change commits.
type Event struct {
	ID                string          `json:"id"`
	Type              string          `json:"type"`
	OrderID           int64           `json:"order_id"`
	UserID            string          `json:"user_id,omitempty"`
	ExternalReference string          `json:"external_reference"`
	PaymentID         string          `json:"payment_id,omitempty"`
	Amount            decimal.Decimal `json:"amount"`
	PayerEmail        string          `json:"payer_email,omitempty"`
	Items             []Item          `json:"items,omitempty"`
	OccurredAt        time.Time       `json:"occurred_at"`
}
