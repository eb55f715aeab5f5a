package store

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/example/ec-storefront/internal/domain/inventory"
)

type postgresInventory struct {
	q dbtx
	// pool is set when the repository is not bound to a caller's transaction;
	// DecreaseStockBulk then opens its own.
	pool *sqlx.DB
}

func (r *postgresInventory) DecreaseStockBulk(ctx context.Context, adjustments []inventory.Adjustment) error {
	if len(adjustments) == 0 {
		return nil
	}
	if r.pool != nil {
		return withTx(ctx, r.pool, func(tx *sqlx.Tx) error {
			return decreaseStock(ctx, tx, adjustments)
		})
	}
	return decreaseStock(ctx, r.q, adjustments)
}

// decreaseStock floors stock at zero and forces out_of_stock exactly when the
// new stock is zero. Unknown products match no row and are skipped.
func decreaseStock(ctx context.Context, q dbtx, adjustments []inventory.Adjustment) error {
	for _, adj := range adjustments {
		if adj.Quantity <= 0 {
			return errors.Wrapf(inventory.ErrInvalidQuantity, "product %d", adj.ProductID)
		}
		_, err := q.ExecContext(ctx, `
			UPDATE products SET
				stock = GREATEST(stock - $1, 0),
				status = CASE WHEN stock - $1 <= 0 THEN $2 ELSE status END
			WHERE id = $3`,
			adj.Quantity, inventory.ProductStatusOutOfStock, adj.ProductID,
		)
		if err != nil {
			return errors.Wrapf(err, "decrease stock for product %d", adj.ProductID)
		}
	}
	return nil
}
