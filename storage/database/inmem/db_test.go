package inmemdb

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/educa/core"
	"github.com/trezcool/educa/core/course"
	"github.com/trezcool/educa/core/ordering"
)

func TestDB_InTx(t *testing.T) {
	ctx := context.Background()
	db := Open()
	repo := NewCourseRepository(db)

	subj, err := repo.CreateSubject(ctx, course.Subject{Title: "Programming", Slug: "programming"})
	require.NoError(t, err)

	errBoom := errors.New("boom")
	err = db.InTx(ctx, func(exec core.DBExecutor) error {
		if _, err := repo.CreateSubject(ctx, course.Subject{Title: "Maths", Slug: "maths"}, exec); err != nil {
			return err
		}
		return errBoom
	})
	assert.Equal(t, errBoom, err)

	subjects, err := repo.QuerySubjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []course.Subject{subj}, subjects)

	err = db.InTx(ctx, func(exec core.DBExecutor) error {
		_, err := repo.CreateSubject(ctx, course.Subject{Title: "Maths", Slug: "maths"}, exec)
		return err
	})
	require.NoError(t, err)
	subjects, err = repo.QuerySubjects(ctx)
	require.NoError(t, err)
	assert.Len(t, subjects, 2)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.Equal(t, context.Canceled, db.InTx(cancelled, func(core.DBExecutor) error { return nil }))
}

func TestOrderStore(t *testing.T) {
	ctx := context.Background()
	db := Open()
	repo := NewCourseRepository(db)
	store := NewOrderStore(db)

	subj, err := repo.CreateSubject(ctx, course.Subject{Title: "Programming", Slug: "programming"})
	require.NoError(t, err)
	crs, err := repo.CreateCourse(ctx, course.Course{OwnerID: "alice", SubjectID: subj.ID, Title: "Go", Slug: "go"})
	require.NoError(t, err)

	rule := ordering.NewRule(store, course.EntityModule, course.ModuleScopeField)
	key := rule.Key(&course.Module{CourseID: crs.ID})

	_, found, err := store.MaxOrder(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)

	two := 2
	mod, err := repo.CreateModule(ctx, course.Module{CourseID: crs.ID, Title: "Intro", Order: &two})
	require.NoError(t, err)
	max, found, err := store.MaxOrder(ctx, key)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 2, max)

	cnt, err := repo.CreateContent(ctx, course.Content{ModuleID: mod.ID, Kind: course.KindText, ObjectID: 1, Order: &two})
	require.NoError(t, err)

	tests := []struct {
		name    string
		entity  string
		id      int64
		ownerID string
		want    bool
	}{
		{"own module", course.EntityModule, mod.ID, "alice", true},
		{"foreign module", course.EntityModule, mod.ID, "mallory", false},
		{"missing module", course.EntityModule, 999, "alice", false},
		{"own content", course.EntityContent, cnt.ID, "alice", true},
		{"foreign content", course.EntityContent, cnt.ID, "mallory", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			applied, err := store.UpdateOrder(ctx, tt.entity, tt.id, tt.ownerID, 7)
			require.NoError(t, err)
			assert.Equal(t, tt.want, applied)
		})
	}

	got, err := repo.GetModule(ctx, mod.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, *got.Order)

	_, err = store.UpdateOrder(ctx, "subjects", subj.ID, "alice", 1)
	assert.Error(t, err)
	_, _, err = store.MaxOrder(ctx, ordering.ScopeKey{Entity: course.EntityModule})
	assert.Error(t, err)
}
