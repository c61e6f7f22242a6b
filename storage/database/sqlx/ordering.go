package sqlxrepos

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/educa/core"
	"github.com/trezcool/educa/core/course"
	"github.com/trezcool/educa/core/ordering"
)

const lockScopeQuery = `SELECT pg_advisory_xact_lock(hashtext($1))`

type orderedTable struct {
	scopeFields []string
	// ownedBy restricts an UPDATE to the rows owned by the user bound to $3.
	ownedBy string
}

var orderedTables = map[string]orderedTable{
	course.EntityModule: {
		scopeFields: []string{course.ModuleScopeField},
		ownedBy:     `course_id IN (SELECT id FROM courses WHERE owner_id = $3)`,
	},
	course.EntityContent: {
		scopeFields: []string{course.ContentScopeField},
		ownedBy:     `module_id IN (SELECT m.id FROM modules m JOIN courses c ON c.id = m.course_id WHERE c.owner_id = $3)`,
	},
}

func orderedTableOf(entity string) (orderedTable, error) {
	tbl, ok := orderedTables[entity]
	if !ok {
		return orderedTable{}, errors.Errorf("unknown ordered entity %q", entity)
	}
	return tbl, nil
}

// maxOrderQuery builds the MAX(order) query of key; the values of its fields are the query args.
func maxOrderQuery(key ordering.ScopeKey) (string, []interface{}, error) {
	tbl, err := orderedTableOf(key.Entity)
	if err != nil {
		return "", nil, err
	}
	conds := make([]string, 0, len(key.Fields))
	args := make([]interface{}, 0, len(key.Fields))
	for _, name := range tbl.scopeFields {
		val, ok := key.Value(name)
		if !ok {
			return "", nil, errors.Errorf("scope %s misses field %q", key, name)
		}
		args = append(args, val)
		conds = append(conds, fmt.Sprintf("%s = $%d", name, len(args)))
	}
	return fmt.Sprintf(`SELECT MAX("order") FROM %s WHERE %s`, key.Entity, strings.Join(conds, " AND ")), args, nil
}

func updateOrderQuery(entity string) (string, error) {
	tbl, err := orderedTableOf(entity)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`UPDATE %s SET "order" = $2 WHERE id = $1 AND %s`, entity, tbl.ownedBy), nil
}

type orderStore struct {
	baseRepo
}

var _ ordering.Store = (*orderStore)(nil) // interface compliance check

func NewOrderStore(exec core.DBExecutor) *orderStore {
	return &orderStore{baseRepo{exec: exec}}
}

// LockScope takes a transaction-level advisory lock; outside of a transaction it is released right away.
func (s orderStore) LockScope(ctx context.Context, key ordering.ScopeKey, exec ...core.DBExecutor) error {
	if _, err := s.getExec(exec).ExecContext(ctx, lockScopeQuery, key.String()); err != nil {
		return errors.Wrap(err, "locking order scope")
	}
	return nil
}

func (s orderStore) MaxOrder(ctx context.Context, key ordering.ScopeKey, exec ...core.DBExecutor) (int, bool, error) {
	q, args, err := maxOrderQuery(key)
	if err != nil {
		return 0, false, err
	}
	var maxOrd null.Int
	if err = s.getExec(exec).QueryRowContext(ctx, q, args...).Scan(&maxOrd); err != nil {
		return 0, false, errors.Wrap(err, "getting max order")
	}
	return maxOrd.Int, maxOrd.Valid, nil
}

func (s orderStore) UpdateOrder(ctx context.Context, entity string, id int64, ownerID string, order int, exec ...core.DBExecutor) (bool, error) {
	q, err := updateOrderQuery(entity)
	if err != nil {
		return false, err
	}
	res, err := s.getExec(exec).ExecContext(ctx, q, id, order, ownerID)
	if err != nil {
		return false, errors.Wrapf(err, "updating %s order", entity)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrapf(err, "updating %s order", entity)
	}
	return n > 0, nil
}
