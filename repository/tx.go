package repository

import (
	"context"
	"database/sql"

	"github.com/uptrace/bun"
)

type txKey struct{}

// Transactor runs functions inside a bun transaction carried by the context.
// Stores built on the same db pick the transaction up through idb.
type Transactor struct {
	db   *bun.DB
	opts *sql.TxOptions
}

func NewTransactor(db *bun.DB) *Transactor {
	return &Transactor{db: db}
}

// RunInTx joins the transaction already in ctx or starts a new one.
func (t *Transactor) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if _, ok := ctx.Value(txKey{}).(bun.Tx); ok {
		return fn(ctx)
	}

	return t.db.RunInTx(ctx, t.opts, func(ctx context.Context, tx bun.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// idb returns the transaction in ctx, falling back to db.
func idb(ctx context.Context, db *bun.DB) bun.IDB {
	if tx, ok := ctx.Value(txKey{}).(bun.Tx); ok {
		return tx
	}
	return db
}
