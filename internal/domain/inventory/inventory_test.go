package inventory

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/example/ec-storefront/internal/domain/order"
)

func TestDecrease(t *testing.T) {
	tests := []struct {
		name       string
		stock      int
		quantity   int
		wantStock  int
		outOfStock bool
	}{
		{"plenty left", 10, 2, 8, false},
		{"exactly sold out", 2, 2, 0, true},
		{"oversold floors at zero", 1, 3, 0, true},
		{"already empty", 0, 1, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stock, out := Decrease(tt.stock, tt.quantity)
			assert.Equal(t, tt.wantStock, stock)
			assert.Equal(t, tt.outOfStock, out)
		})
	}
}

func TestFromOrderItems(t *testing.T) {
	p7, p9 := int64(7), int64(9)
	items := []order.Item{
		{ProductID: &p7, Title: "Filter", Price: decimal.NewFromInt(1500), Quantity: 2},
		{ProductID: nil, Title: "Deleted product", Price: decimal.NewFromInt(10), Quantity: 1},
		{ProductID: &p9, Title: "Hose", Price: decimal.NewFromInt(200), Quantity: 1},
	}

	assert.Equal(t, []Adjustment{
		{ProductID: 7, Quantity: 2},
		{ProductID: 9, Quantity: 1},
	}, FromOrderItems(items))
	assert.Empty(t, FromOrderItems(nil))
}
