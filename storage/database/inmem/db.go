// Package inmemdb implements the repositories in memory; used in tests and when no database is configured.
package inmemdb

import (
	"context"
	"sync"

	"github.com/trezcool/educa/core"
	"github.com/trezcool/educa/core/course"
	"github.com/trezcool/educa/core/user"
)

type (
	DB struct {
		mu   sync.RWMutex // guards tables
		txMu sync.Mutex   // serializes transactions
		tables
	}

	tables struct {
		seq         int64
		users       map[string]*user.User
		subjects    map[int64]*course.Subject
		courses     map[int64]*course.Course
		modules     map[int64]*course.Module
		contents    map[int64]*course.Content
		items       map[int64]*course.Item // item ids are unique across kinds
		enrollments map[int64]map[string]bool
	}
)

var _ core.TxRunner = (*DB)(nil) // interface compliance check

func Open() *DB {
	return &DB{
		tables: tables{
			users:       make(map[string]*user.User),
			subjects:    make(map[int64]*course.Subject),
			courses:     make(map[int64]*course.Course),
			modules:     make(map[int64]*course.Module),
			contents:    make(map[int64]*course.Content),
			items:       make(map[int64]*course.Item),
			enrollments: make(map[int64]map[string]bool),
		},
	}
}

func (db *DB) nextID() int64 {
	db.seq++
	return db.seq
}

func (t tables) clone() tables {
	c := tables{
		seq:         t.seq,
		users:       make(map[string]*user.User, len(t.users)),
		subjects:    make(map[int64]*course.Subject, len(t.subjects)),
		courses:     make(map[int64]*course.Course, len(t.courses)),
		modules:     make(map[int64]*course.Module, len(t.modules)),
		contents:    make(map[int64]*course.Content, len(t.contents)),
		items:       make(map[int64]*course.Item, len(t.items)),
		enrollments: make(map[int64]map[string]bool, len(t.enrollments)),
	}
	for k, v := range t.users {
		u := *v
		c.users[k] = &u
	}
	for k, v := range t.subjects {
		s := *v
		c.subjects[k] = &s
	}
	for k, v := range t.courses {
		crs := *v
		c.courses[k] = &crs
	}
	for k, v := range t.modules {
		m := *v
		c.modules[k] = &m
	}
	for k, v := range t.contents {
		cnt := *v
		c.contents[k] = &cnt
	}
	for k, v := range t.items {
		it := *v
		c.items[k] = &it
	}
	for k, v := range t.enrollments {
		students := make(map[string]bool, len(v))
		for id := range v {
			students[id] = true
		}
		c.enrollments[k] = students
	}
	return c
}

// InTx runs fn with the DB locked against other transactions; tables are restored if fn fails.
// The executor passed to fn is nil: in-memory repositories ignore it.
func (db *DB) InTx(ctx context.Context, fn func(exec core.DBExecutor) error) error {
	db.txMu.Lock()
	defer db.txMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	db.mu.RLock()
	snapshot := db.tables.clone()
	db.mu.RUnlock()

	if err := fn(nil); err != nil {
		db.mu.Lock()
		db.tables = snapshot
		db.mu.Unlock()
		return err
	}
	return nil
}
