package store

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
)

type postgresSettings struct {
	q dbtx
}

func (r *postgresSettings) Setting(ctx context.Context, key string) (string, bool, error) {
	var value sql.NullString
	err := r.q.GetContext(ctx, &value, `SELECT value FROM settings WHERE key = $1`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "select setting %s", key)
	}
	return value.String, value.Valid && value.String != "", nil
}
