package notification

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Type string

const (
	TypePaymentApproved Type = "payment_approved"
	TypeNewOrder        Type = "new_order"
	TypeLowStock        Type = "low_stock"
	TypeSystem          Type = "system"
)

var ErrNotFound = errors.New("notification not found")

// Notification is an admin-facing event shown in the back office.
type Notification struct {
	ID        int64           `json:"id" db:"id"`
	Type      Type            `json:"type" db:"type"`
	Title     string          `json:"title" db:"title"`
	Message   string          `json:"message" db:"message"`
	Data      json.RawMessage `json:"data,omitempty" db:"data"`
	IsRead    bool            `json:"is_read" db:"is_read"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// PaymentApprovedData is the payload attached to a payment_approved notification.
type PaymentApprovedData struct {
	OrderReference string          `json:"order_reference"`
	PaymentID      string          `json:"payment_id"`
	Amount         decimal.Decimal `json:"amount"`
	PayerEmail     string          `json:"payer_email"`
}

const anonymousPayer = "Cliente"

// NewPaymentApproved builds the notification written when a payment settles
// an order.
func NewPaymentApproved(reference, paymentID string, amount decimal.Decimal, payerEmail string) (*Notification, error) {
	if payerEmail == "" {
		payerEmail = anonymousPayer
	}
	data, err := json.Marshal(PaymentApprovedData{
		OrderReference: reference,
		PaymentID:      paymentID,
		Amount:         amount,
		PayerEmail:     payerEmail,
	})
	if err != nil {
		return nil, err
	}
	return &Notification{
		Type:    TypePaymentApproved,
		Title:   "¡Nuevo pago aprobado!",
		Message: fmt.Sprintf("Se recibió un pago de $%s de %s", amount.StringFixed(2), payerEmail),
		Data:    data,
	}, nil
}

// Page is a paginated listing.
type Page struct {
	Data       []*Notification `json:"data"`
	Total      int             `json:"total"`
	Page       int             `json:"page"`
	Limit      int             `json:"limit"`
	TotalPages int             `json:"totalPages"`
}

// ClampLimit bounds listing sizes to 1..100, defaulting to def.
func ClampLimit(limit, def int) int {
	if limit <= 0 {
		limit = def
	}
	if limit > 100 {
		limit = 100
	}
	return limit
}
