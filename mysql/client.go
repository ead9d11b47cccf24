package mysql

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"

	_ "github.com/go-sql-driver/mysql"
)

// MysqlClient wraps a *sqlx.DB the SelectFrom/InsertFrom/UpdateFrom/
// DeleteFrom builders execute against.
type MysqlClient struct {
	db *sqlx.DB
}

// NewMysqlClient opens a connection pool against dsn (a go-sql-driver
// DSN, e.g. built from dconfig.MySQLConfig.DSN) and blocks until the
// first Ping succeeds or the retry budget in pingWithRetry is
// exhausted. sqlx.Open itself never dials, so without this a worker
// that starts before MySQL is
// reachable (a common race during a fleet rollout) would not notice
// until its first query. Connection pool sizing matches the defaults a
// single dispatcher worker needs: enough headroom for concurrent
// durable-store reads/writes without exhausting MySQL's
// max_connections under a fleet of workers.
func NewMysqlClient(dsn string) (*MysqlClient, error) {
	db, err := sqlx.Open("mysql", dsn)
	if err != nil {
		return nil, errors.Errorf("open mysql: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(10 * time.Minute)

	if err := pingWithRetry(db); err != nil {
		_ = db.Close()
		return nil, errors.Errorf("dial mysql: %w", err)
	}

	return &MysqlClient{db: db}, nil
}

// pingWithRetry retries db.Ping with bounded exponential backoff,
// covering the window between process start and MySQL accepting
// connections (e.g. both starting in the same compose/k8s rollout).
func pingWithRetry(db *sqlx.DB) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 200 * time.Millisecond
	eb.MaxInterval = 5 * time.Second
	eb.MaxElapsedTime = 30 * time.Second

	return backoff.Retry(db.Ping, eb)
}

// WrapDB builds a MysqlClient around an already-open *sqlx.DB, for
// callers that manage their own connection (tests against sqlmock, or
// a process wiring multiple consumers onto one pool).
func WrapDB(db *sqlx.DB) *MysqlClient {
	return &MysqlClient{db: db}
}

func (c *MysqlClient) DB() *sqlx.DB { return c.db }

func (c *MysqlClient) Close() error { return c.db.Close() }
