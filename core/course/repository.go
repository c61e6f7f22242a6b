package course

import (
	"context"
	"errors"

	"github.com/trezcool/educa/core"
)

var (
	// errors
	ErrNotFound        = errors.New("not found")
	ErrSubjectNotFound = errors.New("subject not found")
	ErrSlugExists      = errors.New("a course with this slug already exists")
	ErrNotEnrolled     = errors.New("not enrolled in this course")
	ErrItemKind        = errors.New("unknown content type")
)

// Repository persists subjects, courses, modules, contents, items and enrollments.
// Every method returns ErrNotFound (or ErrSubjectNotFound) when the row does not exist.
type Repository interface {
	CreateSubject(ctx context.Context, subj Subject, exec ...core.DBExecutor) (Subject, error)
	// QuerySubjects lists subjects by title with their number of courses.
	QuerySubjects(ctx context.Context, exec ...core.DBExecutor) ([]Subject, error)
	GetSubject(ctx context.Context, id int64, exec ...core.DBExecutor) (Subject, error)
	GetSubjectBySlug(ctx context.Context, slug string, exec ...core.DBExecutor) (Subject, error)

	CreateCourse(ctx context.Context, crs Course, exec ...core.DBExecutor) (Course, error)
	UpdateCourse(ctx context.Context, crs Course, exec ...core.DBExecutor) (Course, error)
	DeleteCourse(ctx context.Context, id int64, exec ...core.DBExecutor) error
	GetCourse(ctx context.Context, id int64, exec ...core.DBExecutor) (Course, error)
	// QueryCourses lists courses (newest first unless ordering is given) with their number of modules.
	QueryCourses(ctx context.Context, filter CourseFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Course, error)
	CourseSlugExists(ctx context.Context, slug string, excludedID int64, exec ...core.DBExecutor) (bool, error)

	CreateModule(ctx context.Context, mod Module, exec ...core.DBExecutor) (Module, error)
	// UpdateModule only updates title & description.
	UpdateModule(ctx context.Context, mod Module, exec ...core.DBExecutor) (Module, error)
	DeleteModules(ctx context.Context, courseID int64, ids []int64, exec ...core.DBExecutor) error
	GetModule(ctx context.Context, id int64, exec ...core.DBExecutor) (Module, error)
	// QueryModules lists the modules of a course by order.
	QueryModules(ctx context.Context, courseID int64, exec ...core.DBExecutor) ([]Module, error)

	CreateContent(ctx context.Context, cnt Content, exec ...core.DBExecutor) (Content, error)
	GetContent(ctx context.Context, id int64, exec ...core.DBExecutor) (Content, error)
	// QueryContents lists the contents of a module by order.
	QueryContents(ctx context.Context, moduleID int64, exec ...core.DBExecutor) ([]Content, error)
	DeleteContent(ctx context.Context, id int64, exec ...core.DBExecutor) error

	CreateItem(ctx context.Context, it Item, exec ...core.DBExecutor) (Item, error)
	UpdateItem(ctx context.Context, it Item, exec ...core.DBExecutor) (Item, error)
	GetItem(ctx context.Context, kind ItemKind, id int64, exec ...core.DBExecutor) (Item, error)
	DeleteItem(ctx context.Context, kind ItemKind, id int64, exec ...core.DBExecutor) error

	// EnrollStudent adds userID to the course students; reports false if already enrolled.
	EnrollStudent(ctx context.Context, courseID int64, userID string, exec ...core.DBExecutor) (bool, error)
	IsEnrolled(ctx context.Context, courseID int64, userID string, exec ...core.DBExecutor) (bool, error)
}
