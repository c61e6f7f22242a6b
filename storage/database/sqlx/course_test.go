package sqlxrepos

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/educa/core"
	"github.com/trezcool/educa/core/course"
)

func newCourseRepo(t *testing.T) (*courseRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewCourseRepository(db), mock
}

func Test_coursesQuery(t *testing.T) {
	tests := []struct {
		name     string
		filter   course.CourseFilter
		ordering []core.DBOrdering
		wantQ    string
		wantArgs []interface{}
	}{
		{
			name:  "all",
			wantQ: queryCoursesQuery + " ORDER BY c.created_at DESC, c.id DESC",
		},
		{
			name:     "by subject",
			filter:   course.CourseFilter{SubjectID: 3},
			wantQ:    queryCoursesQuery + " WHERE c.subject_id = $1 ORDER BY c.created_at DESC, c.id DESC",
			wantArgs: []interface{}{int64(3)},
		},
		{
			name:     "owned, by title",
			filter:   course.CourseFilter{OwnerID: ownerID},
			ordering: []core.DBOrdering{{Field: "title", Ascending: true}, {Field: "owner_id; DROP TABLE courses"}},
			wantQ:    queryCoursesQuery + " WHERE c.owner_id = $1 ORDER BY c.title ASC, c.id DESC",
			wantArgs: []interface{}{ownerID},
		},
		{
			name:     "enrolled in subject",
			filter:   course.CourseFilter{SubjectID: 2, StudentID: ownerID},
			wantQ:    queryCoursesQuery + " WHERE c.subject_id = $1 AND c.id IN (SELECT course_id FROM course_students WHERE user_id = $2) ORDER BY c.created_at DESC, c.id DESC",
			wantArgs: []interface{}{int64(2), ownerID},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, args := coursesQuery(tt.filter, tt.ordering)
			assert.Equal(t, tt.wantQ, q)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

func Test_courseRepository_modules(t *testing.T) {
	repo, mock := newCourseRepo(t)
	ctx := context.Background()

	mock.ExpectQuery(insertModuleQuery).
		WithArgs(int64(1), "Basics", "", 0).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(10))
	mod, err := repo.CreateModule(ctx, course.Module{CourseID: 1, Title: "Basics"})
	require.NoError(t, err)
	assert.Equal(t, int64(10), mod.ID)
	require.NotNil(t, mod.Order)
	assert.Equal(t, 0, *mod.Order)

	mock.ExpectQuery(queryModulesQuery).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "course_id", "title", "description", "order"}).
			AddRow(10, 1, "Basics", "", 0).
			AddRow(11, 1, "Advanced", "hard", 4))
	mods, err := repo.QueryModules(ctx, 1)
	require.NoError(t, err)
	require.Len(t, mods, 2)
	assert.Equal(t, "Advanced", mods[1].Title)
	assert.Equal(t, 4, *mods[1].Order)

	mock.ExpectQuery(getModuleQuery).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "course_id", "title", "description", "order"}))
	_, err = repo.GetModule(ctx, 99)
	assert.Equal(t, course.ErrNotFound, err)

	mock.ExpectExec(updateModuleQuery).
		WithArgs(int64(99), "x", "").
		WillReturnResult(sqlmock.NewResult(0, 0))
	_, err = repo.UpdateModule(ctx, course.Module{ID: 99, Title: "x"})
	assert.Equal(t, course.ErrNotFound, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func Test_courseRepository_items(t *testing.T) {
	repo, mock := newCourseRepo(t)
	ctx := context.Background()
	now := time.Date(2020, 5, 17, 10, 0, 0, 0, time.UTC)

	insertQ, _, getQ, _, err := itemQueries(course.KindVideo)
	require.NoError(t, err)
	assert.Equal(t, `SELECT id, owner_id, title, url AS body, created_at, updated_at FROM videos WHERE id = $1`, getQ)

	mock.ExpectQuery(insertQ).
		WithArgs(ownerID, "Intro", "https://example.com/v", now, now).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	it, err := repo.CreateItem(ctx, course.Item{
		Kind: course.KindVideo, OwnerID: ownerID, Title: "Intro", URL: "https://example.com/v", CreatedAt: now, UpdatedAt: now,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), it.ID)

	mock.ExpectQuery(getQ).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "owner_id", "title", "body", "created_at", "updated_at"}).
			AddRow(3, ownerID, "Intro", "https://example.com/v", now, now))
	got, err := repo.GetItem(ctx, course.KindVideo, 3)
	require.NoError(t, err)
	assert.Equal(t, it, got)

	_, err = repo.GetItem(ctx, course.ItemKind("audio"), 3)
	assert.Equal(t, course.ErrItemKind, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func Test_courseRepository_enrollment(t *testing.T) {
	repo, mock := newCourseRepo(t)
	ctx := context.Background()

	mock.ExpectExec(enrollStudentQuery).
		WithArgs(int64(1), ownerID, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	added, err := repo.EnrollStudent(ctx, 1, ownerID)
	require.NoError(t, err)
	assert.True(t, added)

	mock.ExpectExec(enrollStudentQuery).
		WithArgs(int64(1), ownerID, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	added, err = repo.EnrollStudent(ctx, 1, ownerID)
	require.NoError(t, err)
	assert.False(t, added, "already enrolled")

	mock.ExpectQuery(isEnrolledQuery).
		WithArgs(int64(1), ownerID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	enrolled, err := repo.IsEnrolled(ctx, 1, ownerID)
	require.NoError(t, err)
	assert.True(t, enrolled)

	enrolled, err = repo.IsEnrolled(ctx, 1, "not-a-uuid")
	require.NoError(t, err)
	assert.False(t, enrolled)

	assert.NoError(t, mock.ExpectationsWereMet())
}
