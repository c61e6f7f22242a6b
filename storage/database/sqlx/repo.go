// Package sqlxrepos implements the repositories on PostgreSQL using sqlx.
package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/educa/core"
)

type baseRepo struct {
	exec core.DBExecutor
}

func (r baseRepo) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return r.exec
}

// selectAll scans every row returned by query into dest (a pointer to a slice of structs).
func (r baseRepo) selectAll(ctx context.Context, exec core.DBExecutor, dest interface{}, query string, args ...interface{}) error {
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return sqlx.StructScan(rows, dest) // closes rows
}

// rowsAffected returns sql.ErrNoRows when res did not touch any row.
func rowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
