// Package ordering keeps sibling rows (modules of a course, contents of a module) sorted
// by an integer `order` that is assigned automatically on creation.
package ordering

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/educa/core"
)

type (
	// Field is one parent-identifying column of a ScopeKey.
	Field struct {
		Name  string
		Value int64
	}

	// ScopeKey identifies the sibling set among which order values are assigned.
	ScopeKey struct {
		Entity string
		Fields []Field // in the rule's ForFields order
	}

	// Entity is any row type carrying a self-assigned order.
	Entity interface {
		OrderEntity() string
		// ScopeValue returns the value of a parent-identifying field; false if unset.
		ScopeValue(field string) (int64, bool)
		OrderValue() *int
		SetOrder(order int)
	}

	// Store is the persistence side of ordered entities.
	Store interface {
		// LockScope serializes order assignment within key until the surrounding transaction ends.
		LockScope(ctx context.Context, key ScopeKey, exec ...core.DBExecutor) error
		// MaxOrder returns the greatest order among rows matching key; found is false for an empty scope.
		MaxOrder(ctx context.Context, key ScopeKey, exec ...core.DBExecutor) (max int, found bool, err error)
		// UpdateOrder sets the order of the row identified by id if it is (transitively) owned by ownerID.
		// applied is false when no row matched.
		UpdateOrder(ctx context.Context, entity string, id int64, ownerID string, order int, exec ...core.DBExecutor) (applied bool, err error)
	}
)

// Complete reports whether every scope field is set.
func (k ScopeKey) Complete() bool {
	if len(k.Fields) == 0 {
		return false
	}
	for _, f := range k.Fields {
		if f.Value == 0 {
			return false
		}
	}
	return true
}

// Value returns the value of the named field.
func (k ScopeKey) Value(name string) (int64, bool) {
	for _, f := range k.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return 0, false
}

func (k ScopeKey) String() string {
	parts := make([]string, 0, len(k.Fields))
	for _, f := range k.Fields {
		parts = append(parts, fmt.Sprintf("%s=%d", f.Name, f.Value))
	}
	return k.Entity + "(" + strings.Join(parts, ",") + ")"
}

// Rule assigns `max(order) + 1` within the entity's scope, or 0 when the scope is empty,
// to entities created without an explicit order.
type Rule struct {
	Entity    string
	ForFields []string
	store     Store
}

func NewRule(store Store, entity string, forFields ...string) *Rule {
	return &Rule{
		Entity:    entity,
		ForFields: forFields,
		store:     store,
	}
}

// Key derives the ScopeKey of e from the rule's ForFields.
func (r *Rule) Key(e Entity) ScopeKey {
	key := ScopeKey{Entity: r.Entity, Fields: make([]Field, 0, len(r.ForFields))}
	for _, name := range r.ForFields {
		val, _ := e.ScopeValue(name)
		key.Fields = append(key.Fields, Field{Name: name, Value: val})
	}
	return key
}

// Resolve runs right before e is persisted and returns its final order.
// An explicit order is kept as is. Otherwise the scope is locked (within exec's transaction)
// so that concurrent creations in the same scope get distinct values.
func (r *Rule) Resolve(ctx context.Context, e Entity, exec ...core.DBExecutor) (int, error) {
	if ord := e.OrderValue(); ord != nil {
		return *ord, nil
	}
	if e.OrderEntity() != r.Entity {
		return 0, errors.Errorf("ordering rule for %q applied to %q", r.Entity, e.OrderEntity())
	}

	key := r.Key(e)
	if !key.Complete() {
		e.SetOrder(0)
		return 0, nil
	}

	if err := r.store.LockScope(ctx, key, exec...); err != nil {
		return 0, errors.Wrapf(err, "locking scope %s", key)
	}
	max, found, err := r.store.MaxOrder(ctx, key, exec...)
	if err != nil {
		return 0, errors.Wrapf(err, "getting max order of %s", key)
	}

	var ord int
	if found {
		ord = max + 1
	}
	e.SetOrder(ord)
	return ord, nil
}
