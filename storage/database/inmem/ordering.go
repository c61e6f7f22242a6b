package inmemdb

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/educa/core"
	"github.com/trezcool/educa/core/course"
	"github.com/trezcool/educa/core/ordering"
)

type orderStore struct {
	db *DB
}

var _ ordering.Store = (*orderStore)(nil) // interface compliance check

func NewOrderStore(db *DB) *orderStore {
	return &orderStore{db: db}
}

// LockScope is a no-op: order assignment always runs within DB.InTx, which is exclusive.
func (s *orderStore) LockScope(context.Context, ordering.ScopeKey, ...core.DBExecutor) error {
	return nil
}

func (s *orderStore) MaxOrder(_ context.Context, key ordering.ScopeKey, _ ...core.DBExecutor) (int, bool, error) {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	var orders []*int
	switch key.Entity {
	case course.EntityModule:
		courseID, ok := key.Value(course.ModuleScopeField)
		if !ok {
			return 0, false, errors.Errorf("scope %s misses field %q", key, course.ModuleScopeField)
		}
		for _, mod := range s.db.modules {
			if mod.CourseID == courseID {
				orders = append(orders, mod.Order)
			}
		}
	case course.EntityContent:
		moduleID, ok := key.Value(course.ContentScopeField)
		if !ok {
			return 0, false, errors.Errorf("scope %s misses field %q", key, course.ContentScopeField)
		}
		for _, cnt := range s.db.contents {
			if cnt.ModuleID == moduleID {
				orders = append(orders, cnt.Order)
			}
		}
	default:
		return 0, false, errors.Errorf("unknown ordered entity %q", key.Entity)
	}

	var (
		max   int
		found bool
	)
	for _, ord := range orders {
		if ord == nil {
			continue
		}
		if !found || *ord > max {
			max = *ord
		}
		found = true
	}
	return max, found, nil
}

// ownsModule reports whether the course of module id belongs to ownerID; db.mu must be held.
func (s *orderStore) ownsModule(id int64, ownerID string) bool {
	mod, ok := s.db.modules[id]
	if !ok {
		return false
	}
	crs, ok := s.db.courses[mod.CourseID]
	return ok && crs.OwnerID == ownerID
}

func (s *orderStore) UpdateOrder(_ context.Context, entity string, id int64, ownerID string, order int, _ ...core.DBExecutor) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	switch entity {
	case course.EntityModule:
		if !s.ownsModule(id, ownerID) {
			return false, nil
		}
		s.db.modules[id].Order = &order
	case course.EntityContent:
		cnt, ok := s.db.contents[id]
		if !ok || !s.ownsModule(cnt.ModuleID, ownerID) {
			return false, nil
		}
		cnt.Order = &order
	default:
		return false, errors.Errorf("unknown ordered entity %q", entity)
	}
	return true, nil
}
