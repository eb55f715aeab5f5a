package store

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const uniqueViolation = "23505"

// dbtx is satisfied by both *sqlx.DB and *sqlx.Tx.
type dbtx interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

// ConnectPostgres opens the pool and waits for the database to answer.
func ConnectPostgres(connStr string, log logrus.FieldLogger) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}

	ping := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			log.WithError(err).Warn("postgres not ready, retrying")
			return err
		}
		return nil
	}
	if err := backoff.Retry(ping, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 5)); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// PostgresStore implements Store on a shared connection pool.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Orders() OrderRepository {
	return &postgresOrders{q: s.db}
}

func (s *PostgresStore) Inventory() InventoryRepository {
	return &postgresInventory{q: s.db, pool: s.db}
}

func (s *PostgresStore) Notifications() NotificationRepository {
	return &postgresNotifications{q: s.db}
}

func (s *PostgresStore) Settings() SettingsReader {
	return &postgresSettings{q: s.db}
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(uow UnitOfWork) error) error {
	return withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return fn(&txUnit{tx: tx})
	})
}

type txUnit struct {
	tx *sqlx.Tx
}

func (u *txUnit) Orders() OrderRepository               { return &postgresOrders{q: u.tx} }
func (u *txUnit) Inventory() InventoryRepository         { return &postgresInventory{q: u.tx} }
func (u *txUnit) Notifications() NotificationRepository { return &postgresNotifications{q: u.tx} }

func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rollback failed: %v", rbErr)
		}
		return err
	}

	return errors.Wrap(tx.Commit(), "commit tx")
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
