package order

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestItemsTotal(t *testing.T) {
	items := []Item{
		{Title: "Filter", Price: decimal.RequireFromString("1500.50"), Quantity: 2},
		{Title: "Hose", Price: decimal.NewFromInt(200), Quantity: 1},
	}

	assert.Equal(t, "3201.00", ItemsTotal(items).StringFixed(2))
	assert.True(t, ItemsTotal(nil).IsZero())
}

func TestOrder_Reusable(t *testing.T) {
	tests := []struct {
		name      string
		status    Status
		paymentID *string
		want      bool
	}{
		{"pending without payment", StatusPending, nil, true},
		{"pending with empty payment id", StatusPending, strPtr(""), true},
		{"pending with payment attempt", StatusPending, strPtr("P1"), false},
		{"cancelled", StatusCancelled, nil, false},
		{"paid", StatusPaid, strPtr("P1"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &Order{Status: tt.status, PaymentID: tt.paymentID}
			assert.Equal(t, tt.want, o.Reusable())
		})
	}
}

func TestOrder_CanDelete(t *testing.T) {
	tests := []struct {
		name      string
		status    Status
		paymentID *string
		want      error
	}{
		{"pending", StatusPending, nil, nil},
		{"cancelled", StatusCancelled, nil, nil},
		{"paid", StatusPaid, strPtr("P1"), ErrOrderPaid},
		{"refunded", StatusRefunded, nil, ErrOrderPaid},
		{"pending with payment attempt", StatusPending, strPtr("P1"), ErrPaymentInProgress},
		{"cancelled with payment attempt", StatusCancelled, strPtr("P1"), ErrPaymentInProgress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &Order{Status: tt.status, PaymentID: tt.paymentID}
			err := o.CanDelete()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOrder_Rereference(t *testing.T) {
	o := &Order{Status: StatusPending, ExternalReference: "old"}
	require.NoError(t, o.Rereference("new"))
	assert.Equal(t, "new", o.ExternalReference)

	o.PaymentID = strPtr("P1")
	assert.ErrorIs(t, o.Rereference("newer"), ErrExternalReferenceLocked)
	assert.Equal(t, "new", o.ExternalReference)
}

func TestParseShippingStatus(t *testing.T) {
	for _, s := range []string{"processing", "shipped", "delivered"} {
		got, err := ParseShippingStatus(s)
		require.NoError(t, err)
		assert.Equal(t, ShippingStatus(s), got)
	}

	_, err := ParseShippingStatus("lost")
	assert.ErrorIs(t, err, ErrInvalidShippingStatus)
}

func TestNewExternalReference(t *testing.T) {
	now := time.UnixMilli(1700000000000)

	a := NewExternalReference("u1", now)
	b := NewExternalReference("u1", now)

	assert.Regexp(t, `^ORDER_u1_1700000000000_[0-9a-f]{8}$`, a)
	assert.NotEqual(t, a, b)
	assert.LessOrEqual(t, len(NewExternalReference("a-very-long-user-identifier-0123456789abcdef", now)), 150)
}
