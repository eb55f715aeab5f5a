package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/example/ec-storefront/internal/domain/notification"
)

const notificationColumns = `id, type, title, message, data::text AS data, is_read, created_at`

type notificationRow struct {
	ID        int64             `db:"id"`
	Type      notification.Type `db:"type"`
	Title     string            `db:"title"`
	Message   string            `db:"message"`
	Data      sql.NullString    `db:"data"`
	IsRead    bool              `db:"is_read"`
	CreatedAt time.Time         `db:"created_at"`
}

func (row notificationRow) toDomain() *notification.Notification {
	n := &notification.Notification{
		ID:        row.ID,
		Type:      row.Type,
		Title:     row.Title,
		Message:   row.Message,
		IsRead:    row.IsRead,
		CreatedAt: row.CreatedAt,
	}
	if row.Data.Valid {
		n.Data = json.RawMessage(row.Data.String)
	}
	return n
}

func toNotifications(rows []notificationRow) []*notification.Notification {
	out := make([]*notification.Notification, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out
}

type postgresNotifications struct {
	q dbtx
}

func (r *postgresNotifications) Create(ctx context.Context, n *notification.Notification) error {
	// lib/pq sends []byte as bytea, so the JSON payload goes over as text.
	var data *string
	if len(n.Data) > 0 {
		s := string(n.Data)
		data = &s
	}
	err := r.q.QueryRowxContext(ctx, `
		INSERT INTO admin_notifications (type, title, message, data)
		VALUES ($1, $2, $3, $4::jsonb)
		RETURNING id, is_read, created_at`,
		n.Type, n.Title, n.Message, data,
	).Scan(&n.ID, &n.IsRead, &n.CreatedAt)
	return errors.Wrap(err, "insert notification")
}

func (r *postgresNotifications) List(ctx context.Context, limit, offset int) ([]*notification.Notification, int, error) {
	var rows []notificationRow
	err := r.q.SelectContext(ctx, &rows, `
		SELECT `+notificationColumns+`
		FROM admin_notifications
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, errors.Wrap(err, "list notifications")
	}

	var total int
	if err := r.q.GetContext(ctx, &total, `SELECT COUNT(*) FROM admin_notifications`); err != nil {
		return nil, 0, errors.Wrap(err, "count notifications")
	}
	return toNotifications(rows), total, nil
}

func (r *postgresNotifications) ListUnread(ctx context.Context, limit int) ([]*notification.Notification, error) {
	var rows []notificationRow
	err := r.q.SelectContext(ctx, &rows, `
		SELECT `+notificationColumns+`
		FROM admin_notifications
		WHERE is_read = FALSE
		ORDER BY created_at DESC, id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list unread notifications")
	}
	return toNotifications(rows), nil
}

func (r *postgresNotifications) UnreadCount(ctx context.Context) (int, error) {
	var count int
	err := r.q.GetContext(ctx, &count, `SELECT COUNT(*) FROM admin_notifications WHERE is_read = FALSE`)
	return count, errors.Wrap(err, "count unread notifications")
}

func (r *postgresNotifications) MarkRead(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, `UPDATE admin_notifications SET is_read = TRUE WHERE id = $1`, id)
	return expectRow(res, err, notification.ErrNotFound, "mark notification read")
}

func (r *postgresNotifications) MarkAllRead(ctx context.Context) error {
	_, err := r.q.ExecContext(ctx, `UPDATE admin_notifications SET is_read = TRUE WHERE is_read = FALSE`)
	return errors.Wrap(err, "mark all notifications read")
}

func (r *postgresNotifications) Delete(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM admin_notifications WHERE id = $1`, id)
	return expectRow(res, err, notification.ErrNotFound, "delete notification")
}

func expectRow(res sql.Result, err error, notFound error, op string) error {
	if err != nil {
		return errors.Wrap(err, op)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, op)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
