package database

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/educa/core"
)

type txRunner struct {
	db *sqlx.DB
}

var _ core.TxRunner = (*txRunner)(nil) // interface compliance check

func NewTxRunner(db *sqlx.DB) core.TxRunner {
	return &txRunner{db: db}
}

func (r *txRunner) InTx(ctx context.Context, fn func(exec core.DBExecutor) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rolling back transaction: %v", rbErr)
		}
		return err
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "committing transaction")
	}
	return nil
}
