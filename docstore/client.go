// Package docstore is the document-store client of the verdict
// family: JSON documents in PostgreSQL JSONB, grouped into registered
// collections, settling into classified tri-state results.
package docstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/verdictlabs/verdict"
	"github.com/verdictlabs/verdict/metrics"
)

// Operation kinds used on document results.
const (
	OpCreateCollection = "doc:create-collection"
	OpPut              = "doc:put"
	OpGet              = "doc:get"
	OpFind             = "doc:find"
	OpRemove           = "doc:remove"
)

// Config holds document store configuration.
type Config struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
	MinConns int32  `yaml:"min_conns"`
}

// Document is one stored JSON document.
type Document struct {
	Collection string
	ID         string
	Data       []byte
	UpdatedAt  time.Time
}

// Pool is the subset of pgxpool.Pool the client uses. Tests supply
// stubs.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Client stores and retrieves JSON documents. Connection pooling is
// delegated to pgxpool; the client itself takes no locks.
type Client struct {
	pool Pool

	closeOnce sync.Once
}

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, cfg Config) (*Client, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pcfg.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewWithPool(pool), nil
}

// NewWithPool wraps an existing pool.
func NewWithPool(pool Pool) *Client {
	return &Client{pool: pool}
}

// Close releases the pool. Idempotent.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.pool.Close()
	})
	return nil
}

// CreateCollection registers a collection. Payload reports whether it
// was newly created.
func (c *Client) CreateCollection(ctx context.Context, opts verdict.Options, name string) (*verdict.Result[bool], error) {
	payload, elapsed, err := verdict.Await(ctx, opts,
		func(ctx context.Context) (bool, error) {
			tag, err := c.pool.Exec(ctx,
				`INSERT INTO collections (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`,
				name)
			if err != nil {
				return false, err
			}
			return tag.RowsAffected() > 0, nil
		})

	res, verr := verdict.Settle(OpCreateCollection, payload, err, elapsed, opts, Taxonomy)
	metrics.Observe(res.Kind, res.Err, res.Duration)
	return res, verr
}

// Put upserts a document. The data must be a JSON text; the server
// rejects unparsable payloads, which classify as malformed-document.
// Writing into an unregistered collection classifies as
// collection-not-found.
func (c *Client) Put(ctx context.Context, opts verdict.Options, collection, id string, data []byte) (*verdict.Result[*Document], error) {
	payload, elapsed, err := verdict.Await(ctx, opts,
		func(ctx context.Context) (*Document, error) {
			doc := &Document{Collection: collection, ID: id, Data: data}
			err := c.pool.QueryRow(ctx,
				`INSERT INTO documents (collection, id, data, updated_at)
				 VALUES ($1, $2, $3::jsonb, now())
				 ON CONFLICT (collection, id)
				 DO UPDATE SET data = EXCLUDED.data, updated_at = now()
				 RETURNING updated_at`,
				collection, id, string(data)).Scan(&doc.UpdatedAt)
			if err != nil {
				return nil, err
			}
			return doc, nil
		})

	res, verr := verdict.Settle(OpPut, payload, err, elapsed, opts, Taxonomy)
	metrics.Observe(res.Kind, res.Err, res.Duration)
	return res, verr
}

// Get retrieves one document by collection and id.
func (c *Client) Get(ctx context.Context, opts verdict.Options, collection, id string) (*verdict.Result[*Document], error) {
	payload, elapsed, err := verdict.Await(ctx, opts,
		func(ctx context.Context) (*Document, error) {
			doc := &Document{Collection: collection, ID: id}
			err := c.pool.QueryRow(ctx,
				`SELECT data, updated_at FROM documents WHERE collection = $1 AND id = $2`,
				collection, id).Scan(&doc.Data, &doc.UpdatedAt)
			if err == pgx.ErrNoRows {
				return nil, fmt.Errorf("%w: %s/%s", ErrDocumentNotFound, collection, id)
			}
			if err != nil {
				return nil, err
			}
			return doc, nil
		})

	res, verr := verdict.Settle(OpGet, payload, err, elapsed, opts, Taxonomy)
	metrics.Observe(res.Kind, res.Err, res.Duration)
	return res, verr
}

// Find returns the documents of a collection whose data contains the
// given JSON filter (JSONB containment). An empty match settles
// successfully with an empty list.
func (c *Client) Find(ctx context.Context, opts verdict.Options, collection string, filter []byte) (*verdict.Result[[]*Document], error) {
	payload, elapsed, err := verdict.Await(ctx, opts,
		func(ctx context.Context) ([]*Document, error) {
			rows, err := c.pool.Query(ctx,
				`SELECT id, data, updated_at FROM documents
				 WHERE collection = $1 AND data @> $2::jsonb
				 ORDER BY id`,
				collection, string(filter))
			if err != nil {
				return nil, err
			}
			defer rows.Close()

			docs := []*Document{}
			for rows.Next() {
				doc := &Document{Collection: collection}
				if err := rows.Scan(&doc.ID, &doc.Data, &doc.UpdatedAt); err != nil {
					return nil, err
				}
				docs = append(docs, doc)
			}
			if err := rows.Err(); err != nil {
				return nil, err
			}
			return docs, nil
		})

	res, verr := verdict.Settle(OpFind, payload, err, elapsed, opts, Taxonomy)
	metrics.Observe(res.Kind, res.Err, res.Duration)
	return res, verr
}

// Remove deletes one document.
func (c *Client) Remove(ctx context.Context, opts verdict.Options, collection, id string) (*verdict.Result[bool], error) {
	payload, elapsed, err := verdict.Await(ctx, opts,
		func(ctx context.Context) (bool, error) {
			tag, err := c.pool.Exec(ctx,
				`DELETE FROM documents WHERE collection = $1 AND id = $2`,
				collection, id)
			if err != nil {
				return false, err
			}
			if tag.RowsAffected() == 0 {
				return false, fmt.Errorf("%w: %s/%s", ErrDocumentNotFound, collection, id)
			}
			return true, nil
		})

	res, verr := verdict.Settle(OpRemove, payload, err, elapsed, opts, Taxonomy)
	metrics.Observe(res.Kind, res.Err, res.Duration)
	return res, verr
}
