package sqlclient

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/verdictlabs/verdict"
	"github.com/verdictlabs/verdict/metrics"
)

// Tx is the transactional handle passed to the caller's function
// inside WithinTx. Operations on it return raw driver errors;
// classification happens once, at the transaction boundary.
type Tx struct {
	tx *sqlx.Tx
}

// Exec runs a statement inside the transaction.
func (t *Tx) Exec(ctx context.Context, query string, args ...any) error {
	_, err := t.tx.ExecContext(ctx, query, args...)
	return err
}

// Query runs a row-returning statement inside the transaction.
func (t *Tx) Query(ctx context.Context, query string, args ...any) (Rows, error) {
	return scanAll(ctx, t.tx, query, args...)
}

// WithinTx demarcates one transaction: it begins, invokes fn with the
// transactional handle, commits on fn's nil return and rolls back on
// any error fn raises — including errors raised after a partial write.
// The handle is released back to the pool exactly once on every exit
// path: commit, rollback, or cancellation of the surrounding attempt
// (which fails fn and takes the rollback path).
func (c *Client) WithinTx(
	ctx context.Context,
	opts verdict.Options,
	fn func(ctx context.Context, tx *Tx) error,
) (*verdict.Result[struct{}], error) {
	payload, elapsed, err := verdict.Await(ctx, opts,
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, c.runTx(ctx, fn)
		})

	res, verr := verdict.Settle(OpTx, payload, err, elapsed, opts, Taxonomy)
	metrics.Observe(res.Kind, res.Err, res.Duration)
	return res, verr
}

func (c *Client) runTx(ctx context.Context, fn func(ctx context.Context, tx *Tx) error) error {
	tx, err := c.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(ctx, &Tx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
