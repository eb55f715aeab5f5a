package inventory

import (
	"errors"

	"github.com/example/ec-storefront/internal/domain/order"
)

// ProductStatusOutOfStock is forced onto a product whose stock reaches zero.
const ProductStatusOutOfStock = "out_of_stock"

var ErrInvalidQuantity = errors.New("quantity must be positive")

// Adjustment decrements one product's stock by Quantity.
type Adjustment struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// Decrease applies a stock decrement with a floor at zero. outOfStock is true
// when the resulting stock is zero; callers leave the product status untouched
// otherwise.
func Decrease(stock, quantity int) (newStock int, outOfStock bool) {
	newStock = stock - quantity
	if newStock < 0 {
		newStock = 0
	}
	return newStock, newStock <= 0
}

// FromOrderItems builds one adjustment per item that still references a
// product. Items whose product was deleted are skipped.
func FromOrderItems(items []order.Item) []Adjustment {
	adjustments := make([]Adjustment, 0, len(items))
	for _, item := range items {
		if item.ProductID == nil || item.Quantity <= 0 {
			continue
		}
		adjustments = append(adjustments, Adjustment{
			ProductID: *item.ProductID,
			Quantity:  item.Quantity,
		})
	}
	return adjustments
}
