package store

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/example/ec-storefront/internal/domain/order"
)

const orderColumns = `id, user_id, total_amount, status, shipping_address, phone, comments,
	shipping_type, shipping_cost, shipping_status, tracking_number, payment_id,
	preference_id, external_reference, created_at`

type postgresOrders struct {
	q dbtx
}

func (r *postgresOrders) LockUser(ctx context.Context, userID string) error {
	_, err := r.q.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID)
	return errors.Wrap(err, "lock user checkout")
}

func (r *postgresOrders) LatestPendingForUpdate(ctx context.Context, userID string) (*order.Order, error) {
	var o order.Order
	err := r.q.GetContext(ctx, &o, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1 AND status = 'pending'
		ORDER BY created_at DESC, id DESC
		LIMIT 1
		FOR UPDATE`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "select latest pending order")
	}
	return &o, nil
}

func (r *postgresOrders) Create(ctx context.Context, o *order.Order) error {
	err := r.q.QueryRowxContext(ctx, `
		INSERT INTO orders (user_id, total_amount, status, shipping_address, phone, comments,
			shipping_type, shipping_cost, external_reference)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, shipping_status, created_at`,
		o.UserID, o.TotalAmount, o.Status, o.ShippingAddress, o.Phone, o.Comments,
		o.ShippingType, o.ShippingCost, o.ExternalReference,
	).Scan(&o.ID, &o.ShippingStatus, &o.CreatedAt)
	if isUniqueViolation(err) {
		return order.ErrDuplicateExternalReference
	}
	return errors.Wrap(err, "insert order")
}

func (r *postgresOrders) UpdatePending(ctx context.Context, o *order.Order) error {
	res, err := r.q.ExecContext(ctx, `
		UPDATE orders SET
			total_amount = $1,
			shipping_address = $2,
			phone = $3,
			comments = $4,
			shipping_type = $5,
			shipping_cost = $6,
			preference_id = NULL,
			external_reference = $7
		WHERE id = $8 AND status = 'pending' AND payment_id IS NULL`,
		o.TotalAmount, o.ShippingAddress, o.Phone, o.Comments,
		o.ShippingType, o.ShippingCost, o.ExternalReference, o.ID,
	)
	if isUniqueViolation(err) {
		return order.ErrDuplicateExternalReference
	}
	if err != nil {
		return errors.Wrap(err, "update pending order")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "update pending order")
	}
	if n == 0 {
		return order.ErrExternalReferenceLocked
	}
	o.PreferenceID = nil
	return nil
}

func (r *postgresOrders) ReplaceItems(ctx context.Context, orderID int64, items []order.Item) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM order_items WHERE order_id = $1`, orderID); err != nil {
		return errors.Wrap(err, "delete order items")
	}
	for i := range items {
		items[i].OrderID = orderID
		err := r.q.QueryRowxContext(ctx, `
			INSERT INTO order_items (order_id, product_id, title, price, quantity)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id`,
			orderID, items[i].ProductID, items[i].Title, items[i].Price, items[i].Quantity,
		).Scan(&items[i].ID)
		if err != nil {
			return errors.Wrapf(err, "insert order item %d", i)
		}
	}
	return nil
}

func (r *postgresOrders) SetPreferenceID(ctx context.Context, orderID int64, reference, preferenceID string) error {
	res, err := r.q.ExecContext(ctx,
		`UPDATE orders SET preference_id = $1 WHERE id = $2 AND external_reference = $3`,
		preferenceID, orderID, reference)
	return expectRow(res, err, order.ErrStaleExternalReference, "set preference id")
}

func (r *postgresOrders) GetByExternalReferenceForUpdate(ctx context.Context, reference string) (*order.Order, error) {
	var o order.Order
	err := r.q.GetContext(ctx, &o, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE external_reference = $1
		FOR UPDATE`, reference)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, order.ErrOrderNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select order by external reference")
	}
	return &o, nil
}

func (r *postgresOrders) UpdatePaymentStatus(ctx context.Context, orderID int64, status order.Status, paymentID string) error {
	_, err := r.q.ExecContext(ctx,
		`UPDATE orders SET status = $1, payment_id = $2 WHERE id = $3`,
		status, paymentID, orderID,
	)
	return errors.Wrap(err, "update payment status")
}

func (r *postgresOrders) Items(ctx context.Context, orderID int64) ([]order.Item, error) {
	var items []order.Item
	err := r.q.SelectContext(ctx, &items, `
		SELECT id, order_id, product_id, title, price, quantity
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "select order items")
	}
	return items, nil
}

func (r *postgresOrders) Get(ctx context.Context, orderID int64) (*order.Order, error) {
	return r.get(ctx, orderID, "")
}

func (r *postgresOrders) GetForUpdate(ctx context.Context, orderID int64) (*order.Order, error) {
	return r.get(ctx, orderID, "FOR UPDATE")
}

func (r *postgresOrders) get(ctx context.Context, orderID int64, lock string) (*order.Order, error) {
	var o order.Order
	err := r.q.GetContext(ctx, &o, `SELECT `+orderColumns+` FROM orders WHERE id = $1 `+lock, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, order.ErrOrderNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select order")
	}
	if o.Items, err = r.Items(ctx, o.ID); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *postgresOrders) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*order.Order, int, error) {
	var orders []*order.Order
	err := r.q.SelectContext(ctx, &orders, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list user orders")
	}

	var total int
	if err := r.q.GetContext(ctx, &total, `SELECT COUNT(*) FROM orders WHERE user_id = $1`, userID); err != nil {
		return nil, 0, errors.Wrap(err, "count user orders")
	}

	if err := r.attachItems(ctx, orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *postgresOrders) ListAll(ctx context.Context, limit, offset int) ([]*order.Order, int, error) {
	var orders []*order.Order
	err := r.q.SelectContext(ctx, &orders, `
		SELECT `+orderColumns+`
		FROM orders
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list orders")
	}

	var total int
	if err := r.q.GetContext(ctx, &total, `SELECT COUNT(*) FROM orders`); err != nil {
		return nil, 0, errors.Wrap(err, "count orders")
	}

	if err := r.attachItems(ctx, orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

// attachItems loads the items of all orders with a single query.
func (r *postgresOrders) attachItems(ctx context.Context, orders []*order.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, len(orders))
	byID := make(map[int64]*order.Order, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		o.Items = []order.Item{}
		byID[o.ID] = o
	}

	var items []order.Item
	err := r.q.SelectContext(ctx, &items, `
		SELECT id, order_id, product_id, title, price, quantity
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY id`, pq.Array(ids))
	if err != nil {
		return errors.Wrap(err, "select items for orders")
	}
	for _, item := range items {
		if o, ok := byID[item.OrderID]; ok {
			o.Items = append(o.Items, item)
		}
	}
	return nil
}

func (r *postgresOrders) Delete(ctx context.Context, orderID int64) error {
	res, err := r.q.ExecContext(ctx, `
		DELETE FROM orders
		WHERE id = $1 AND payment_id IS NULL AND status IN ('pending', 'cancelled')`, orderID)
	return expectRow(res, err, order.ErrOrderNotFound, "delete order")
}

func (r *postgresOrders) UpdateShipping(ctx context.Context, orderID int64, status order.ShippingStatus, trackingNumber *string) error {
	var (
		res sql.Result
		err error
	)
	if trackingNumber != nil {
		res, err = r.q.ExecContext(ctx,
			`UPDATE orders SET shipping_status = $1, tracking_number = $2 WHERE id = $3`,
			status, *trackingNumber, orderID)
	} else {
		res, err = r.q.ExecContext(ctx,
			`UPDATE orders SET shipping_status = $1 WHERE id = $2`,
			status, orderID)
	}
	return expectRow(res, err, order.ErrOrderNotFound, "update shipping status")
}
