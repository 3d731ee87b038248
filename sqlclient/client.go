// Package sqlclient is the relational (PostgreSQL) client of the
// verdict family. Queries, statements and transaction scopes settle
// into classified tri-state results; SQLSTATE codes map onto a closed
// protocol-tier kind set.
package sqlclient

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/verdictlabs/verdict"
	"github.com/verdictlabs/verdict/metrics"
)

// Operation kinds used on relational results.
const (
	OpQuery = "sql:query"
	OpExec  = "sql:exec"
	OpTx    = "sql:tx"
)

// Config holds PostgreSQL connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// ExecInfo is the payload of a settled statement.
type ExecInfo struct {
	RowsAffected int64
}

// Client runs SQL operations against a pooled PostgreSQL connection.
// Pooling is delegated entirely to database/sql; the client itself
// takes no locks.
type Client struct {
	db *sqlx.DB

	closeOnce sync.Once
	closeErr  error
}

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, cfg Config) (*Client, error) {
	db, err := sqlx.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	} else {
		db.SetMaxOpenConns(10)
	}
	if cfg.MinConns > 0 {
		db.SetMaxIdleConns(cfg.MinConns)
	} else {
		db.SetMaxIdleConns(2)
	}
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Client{db: db}, nil
}

// NewWithDB wraps an existing database handle. Used by tests and by
// callers that manage the pool themselves.
func NewWithDB(db *sql.DB, driverName string) *Client {
	return &Client{db: sqlx.NewDb(db, driverName)}
}

// Close releases the connection pool. Idempotent: the underlying pool
// is closed once and later calls return the same outcome.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.db.Close()
	})
	return c.closeErr
}

// Query runs a row-returning statement and settles into Rows.
func (c *Client) Query(
	ctx context.Context,
	opts verdict.Options,
	query string,
	args ...any,
) (*verdict.Result[Rows], error) {
	payload, elapsed, err := verdict.Await(ctx, opts,
		func(ctx context.Context) (Rows, error) {
			return scanAll(ctx, c.db, query, args...)
		})

	res, verr := verdict.Settle(OpQuery, payload, err, elapsed, opts, Taxonomy)
	metrics.Observe(res.Kind, res.Err, res.Duration)
	return res, verr
}

// Exec runs a statement and settles into ExecInfo.
func (c *Client) Exec(
	ctx context.Context,
	opts verdict.Options,
	query string,
	args ...any,
) (*verdict.Result[ExecInfo], error) {
	payload, elapsed, err := verdict.Await(ctx, opts,
		func(ctx context.Context) (ExecInfo, error) {
			out, err := c.db.ExecContext(ctx, query, args...)
			if err != nil {
				return ExecInfo{}, err
			}
			affected, err := out.RowsAffected()
			if err != nil {
				return ExecInfo{}, err
			}
			return ExecInfo{RowsAffected: affected}, nil
		})

	res, verr := verdict.Settle(OpExec, payload, err, elapsed, opts, Taxonomy)
	metrics.Observe(res.Kind, res.Err, res.Duration)
	return res, verr
}

// queryer is satisfied by both *sqlx.DB and *sqlx.Tx.
type queryer interface {
	QueryxContext(ctx context.Context, query string, args ...any) (*sqlx.Rows, error)
}

func scanAll(ctx context.Context, q queryer, query string, args ...any) (Rows, error) {
	rows, err := q.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := Rows{}
	for rows.Next() {
		row := Row{}
		if err := rows.MapScan(row); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
