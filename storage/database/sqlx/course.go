package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/educa/core"
	"github.com/trezcool/educa/core/course"
)

const (
	insertSubjectQuery    = `INSERT INTO subjects (title, slug) VALUES ($1, $2) RETURNING id`
	querySubjectsQuery    = `SELECT s.id, s.title, s.slug, COUNT(c.id) AS total_courses FROM subjects s LEFT JOIN courses c ON c.subject_id = s.id GROUP BY s.id ORDER BY s.title, s.id`
	getSubjectQuery       = `SELECT id, title, slug FROM subjects WHERE id = $1`
	getSubjectBySlugQuery = `SELECT id, title, slug FROM subjects WHERE slug = $1`

	courseColumns        = `c.id, c.owner_id, c.subject_id, c.title, c.slug, c.overview, c.created_at, (SELECT COUNT(*) FROM modules m WHERE m.course_id = c.id) AS total_modules`
	insertCourseQuery    = `INSERT INTO courses (owner_id, subject_id, title, slug, overview, created_at) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`
	updateCourseQuery    = `UPDATE courses SET subject_id = $2, title = $3, slug = $4, overview = $5 WHERE id = $1`
	deleteCourseQuery    = `DELETE FROM courses WHERE id = $1`
	getCourseQuery       = `SELECT ` + courseColumns + ` FROM courses c WHERE c.id = $1`
	queryCoursesQuery    = `SELECT ` + courseColumns + ` FROM courses c`
	courseSlugExistQuery = `SELECT EXISTS (SELECT 1 FROM courses WHERE slug = $1 AND id <> $2)`

	moduleColumns      = `id, course_id, title, description, "order"`
	insertModuleQuery  = `INSERT INTO modules (course_id, title, description, "order") VALUES ($1, $2, $3, $4) RETURNING id`
	updateModuleQuery  = `UPDATE modules SET title = $2, description = $3 WHERE id = $1`
	deleteModulesQuery = `DELETE FROM modules WHERE course_id = $1 AND id = ANY($2)`
	getModuleQuery     = `SELECT ` + moduleColumns + ` FROM modules WHERE id = $1`
	queryModulesQuery  = `SELECT ` + moduleColumns + ` FROM modules WHERE course_id = $1 ORDER BY "order", id`

	contentColumns     = `id, module_id, content_type, object_id, "order"`
	insertContentQuery = `INSERT INTO contents (module_id, content_type, object_id, "order") VALUES ($1, $2, $3, $4) RETURNING id`
	getContentQuery    = `SELECT ` + contentColumns + ` FROM contents WHERE id = $1`
	queryContentsQuery = `SELECT ` + contentColumns + ` FROM contents WHERE module_id = $1 ORDER BY "order", id`
	deleteContentQuery = `DELETE FROM contents WHERE id = $1`
	enrollStudentQuery = `INSERT INTO course_students (course_id, user_id, enrolled_at) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`
	isEnrolledQuery    = `SELECT EXISTS (SELECT 1 FROM course_students WHERE course_id = $1 AND user_id = $2)`
)

// item tables: {kind: {table, kind specific column}}
var itemTables = map[course.ItemKind][2]string{
	course.KindText:  {"texts", "content"},
	course.KindVideo: {"videos", "url"},
	course.KindImage: {"images", "file"},
	course.KindFile:  {"files", "file"},
}

func itemQueries(kind course.ItemKind) (insert, update, get, del string, err error) {
	tbl, ok := itemTables[kind]
	if !ok {
		return "", "", "", "", course.ErrItemKind
	}
	table, col := tbl[0], tbl[1]
	insert = fmt.Sprintf(`INSERT INTO %s (owner_id, title, %s, created_at, updated_at) VALUES ($1, $2, $3, $4, $5) RETURNING id`, table, col)
	update = fmt.Sprintf(`UPDATE %s SET title = $2, %s = $3, updated_at = $4 WHERE id = $1`, table, col)
	get = fmt.Sprintf(`SELECT id, owner_id, title, %s AS body, created_at, updated_at FROM %s WHERE id = $1`, col, table)
	del = fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table)
	return insert, update, get, del, nil
}

// sortable course columns
var courseOrderingFields = map[string]bool{
	"created_at": true,
	"title":      true,
	"slug":       true,
	"id":         true,
}

type (
	subjectRow struct {
		ID           int64  `db:"id"`
		Title        string `db:"title"`
		Slug         string `db:"slug"`
		TotalCourses int    `db:"total_courses"`
	}

	courseRow struct {
		ID           int64     `db:"id"`
		OwnerID      string    `db:"owner_id"`
		SubjectID    int64     `db:"subject_id"`
		Title        string    `db:"title"`
		Slug         string    `db:"slug"`
		Overview     string    `db:"overview"`
		CreatedAt    time.Time `db:"created_at"`
		TotalModules int       `db:"total_modules"`
	}

	moduleRow struct {
		ID          int64  `db:"id"`
		CourseID    int64  `db:"course_id"`
		Title       string `db:"title"`
		Description string `db:"description"`
		Order       int    `db:"order"`
	}

	contentRow struct {
		ID       int64  `db:"id"`
		ModuleID int64  `db:"module_id"`
		Kind     string `db:"content_type"`
		ObjectID int64  `db:"object_id"`
		Order    int    `db:"order"`
	}

	itemRow struct {
		ID        int64       `db:"id"`
		OwnerID   string      `db:"owner_id"`
		Title     string      `db:"title"`
		Body      null.String `db:"body"`
		CreatedAt time.Time   `db:"created_at"`
		UpdatedAt time.Time   `db:"updated_at"`
	}
)

func (r subjectRow) subject() course.Subject {
	return course.Subject{ID: r.ID, Title: r.Title, Slug: r.Slug, TotalCourses: r.TotalCourses}
}

func (r courseRow) course() course.Course {
	return course.Course{
		ID:           r.ID,
		OwnerID:      r.OwnerID,
		SubjectID:    r.SubjectID,
		Title:        r.Title,
		Slug:         r.Slug,
		Overview:     r.Overview,
		CreatedAt:    r.CreatedAt.UTC(),
		TotalModules: r.TotalModules,
	}
}

func (r moduleRow) module() course.Module {
	ord := r.Order
	return course.Module{ID: r.ID, CourseID: r.CourseID, Title: r.Title, Description: r.Description, Order: &ord}
}

func (r contentRow) content() course.Content {
	ord := r.Order
	return course.Content{ID: r.ID, ModuleID: r.ModuleID, Kind: course.ItemKind(r.Kind), ObjectID: r.ObjectID, Order: &ord}
}

func (r itemRow) item(kind course.ItemKind) course.Item {
	it := course.Item{
		ID:        r.ID,
		Kind:      kind,
		OwnerID:   r.OwnerID,
		Title:     r.Title,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
	setItemBody(&it, r.Body.String)
	return it
}

func itemBody(it course.Item) string {
	switch it.Kind {
	case course.KindText:
		return it.Content
	case course.KindVideo:
		return it.URL
	default:
		return it.File
	}
}

func setItemBody(it *course.Item, body string) {
	switch it.Kind {
	case course.KindText:
		it.Content = body
	case course.KindVideo:
		it.URL = body
	default:
		it.File = body
	}
}

func orderOrZero(ord *int) int {
	if ord == nil {
		return 0
	}
	return *ord
}

type courseRepository struct {
	baseRepo
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(exec core.DBExecutor) *courseRepository {
	return &courseRepository{baseRepo{exec: exec}}
}

// trapNoRowsErr maps psql "no rows" err to notFound
func (repo courseRepository) trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// insert runs an `INSERT ... RETURNING id` query.
func (repo courseRepository) insert(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) (int64, error) {
	var id int64
	err := exec.QueryRowContext(ctx, query, args...).Scan(&id)
	return id, err
}

func (repo courseRepository) exists(ctx context.Context, exec core.DBExecutor, query string, args ...interface{}) (bool, error) {
	var found bool
	err := exec.QueryRowContext(ctx, query, args...).Scan(&found)
	return found, err
}

// Subjects

func (repo courseRepository) CreateSubject(ctx context.Context, subj course.Subject, exec ...core.DBExecutor) (course.Subject, error) {
	id, err := repo.insert(ctx, repo.getExec(exec), insertSubjectQuery, subj.Title, subj.Slug)
	if err != nil {
		return course.Subject{}, errors.Wrap(err, "inserting subject")
	}
	subj.ID = id
	return subj, nil
}

func (repo courseRepository) QuerySubjects(ctx context.Context, exec ...core.DBExecutor) ([]course.Subject, error) {
	var rows []subjectRow
	if err := repo.selectAll(ctx, repo.getExec(exec), &rows, querySubjectsQuery); err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	subjects := make([]course.Subject, 0, len(rows))
	for _, r := range rows {
		subjects = append(subjects, r.subject())
	}
	return subjects, nil
}

func (repo courseRepository) getSubject(ctx context.Context, exec []core.DBExecutor, query string, arg interface{}) (course.Subject, error) {
	var rows []subjectRow
	if err := repo.selectAll(ctx, repo.getExec(exec), &rows, query, arg); err != nil {
		return course.Subject{}, errors.Wrap(err, "finding subject")
	}
	if len(rows) == 0 {
		return course.Subject{}, course.ErrSubjectNotFound
	}
	return rows[0].subject(), nil
}

func (repo courseRepository) GetSubject(ctx context.Context, id int64, exec ...core.DBExecutor) (course.Subject, error) {
	return repo.getSubject(ctx, exec, getSubjectQuery, id)
}

func (repo courseRepository) GetSubjectBySlug(ctx context.Context, slug string, exec ...core.DBExecutor) (course.Subject, error) {
	return repo.getSubject(ctx, exec, getSubjectBySlugQuery, slug)
}

// Courses

func (repo courseRepository) CreateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	crs.CreatedAt = crs.CreatedAt.UTC()
	id, err := repo.insert(ctx, repo.getExec(exec), insertCourseQuery,
		crs.OwnerID, crs.SubjectID, crs.Title, crs.Slug, crs.Overview, crs.CreatedAt)
	if err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	crs.ID = id
	return crs, nil
}

func (repo courseRepository) UpdateCourse(ctx context.Context, crs course.Course, exec ...core.DBExecutor) (course.Course, error) {
	res, err := repo.getExec(exec).ExecContext(ctx, updateCourseQuery, crs.ID, crs.SubjectID, crs.Title, crs.Slug, crs.Overview)
	if err == nil {
		err = rowsAffected(res)
	}
	if err != nil {
		return course.Course{}, repo.trapNoRowsErr(err, course.ErrNotFound, "updating course")
	}
	return crs, nil
}

func (repo courseRepository) DeleteCourse(ctx context.Context, id int64, exec ...core.DBExecutor) error {
	res, err := repo.getExec(exec).ExecContext(ctx, deleteCourseQuery, id)
	if err == nil {
		err = rowsAffected(res)
	}
	if err != nil {
		return repo.trapNoRowsErr(err, course.ErrNotFound, "deleting course")
	}
	return nil
}

func (repo courseRepository) GetCourse(ctx context.Context, id int64, exec ...core.DBExecutor) (course.Course, error) {
	var rows []courseRow
	if err := repo.selectAll(ctx, repo.getExec(exec), &rows, getCourseQuery, id); err != nil {
		return course.Course{}, errors.Wrap(err, "finding course")
	}
	if len(rows) == 0 {
		return course.Course{}, course.ErrNotFound
	}
	return rows[0].course(), nil
}

// coursesQuery builds the course listing query of filter.
func coursesQuery(filter course.CourseFilter, ordering []core.DBOrdering) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.OwnerID != "" {
		args = append(args, filter.OwnerID)
		conds = append(conds, fmt.Sprintf("c.owner_id = $%d", len(args)))
	}
	if filter.SubjectID != 0 {
		args = append(args, filter.SubjectID)
		conds = append(conds, fmt.Sprintf("c.subject_id = $%d", len(args)))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conds = append(conds, fmt.Sprintf("c.id IN (SELECT course_id FROM course_students WHERE user_id = $%d)", len(args)))
	}

	q := queryCoursesQuery
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}

	orderList := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		if courseOrderingFields[ord.Field] {
			orderList = append(orderList, "c."+ord.String())
		}
	}
	if len(orderList) == 0 {
		orderList = append(orderList, "c.created_at DESC")
	}
	orderList = append(orderList, "c.id DESC")
	return q + " ORDER BY " + strings.Join(orderList, ", "), args
}

func (repo courseRepository) QueryCourses(ctx context.Context, filter course.CourseFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]course.Course, error) {
	for _, id := range []string{filter.OwnerID, filter.StudentID} {
		if id == "" {
			continue
		}
		if _, err := uuid.Parse(id); err != nil {
			return []course.Course{}, nil
		}
	}

	q, args := coursesQuery(filter, ordering)
	var rows []courseRow
	if err := repo.selectAll(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	courses := make([]course.Course, 0, len(rows))
	for _, r := range rows {
		courses = append(courses, r.course())
	}
	return courses, nil
}

func (repo courseRepository) CourseSlugExists(ctx context.Context, slug string, excludedID int64, exec ...core.DBExecutor) (bool, error) {
	found, err := repo.exists(ctx, repo.getExec(exec), courseSlugExistQuery, slug, excludedID)
	if err != nil {
		return false, errors.Wrap(err, "checking course slug")
	}
	return found, nil
}

// Modules

func (repo courseRepository) CreateModule(ctx context.Context, mod course.Module, exec ...core.DBExecutor) (course.Module, error) {
	ord := orderOrZero(mod.Order)
	id, err := repo.insert(ctx, repo.getExec(exec), insertModuleQuery, mod.CourseID, mod.Title, mod.Description, ord)
	if err != nil {
		return course.Module{}, errors.Wrap(err, "inserting module")
	}
	mod.ID = id
	mod.Order = &ord
	return mod, nil
}

func (repo courseRepository) UpdateModule(ctx context.Context, mod course.Module, exec ...core.DBExecutor) (course.Module, error) {
	res, err := repo.getExec(exec).ExecContext(ctx, updateModuleQuery, mod.ID, mod.Title, mod.Description)
	if err == nil {
		err = rowsAffected(res)
	}
	if err != nil {
		return course.Module{}, repo.trapNoRowsErr(err, course.ErrNotFound, "updating module")
	}
	return mod, nil
}

func (repo courseRepository) DeleteModules(ctx context.Context, courseID int64, ids []int64, exec ...core.DBExecutor) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := repo.getExec(exec).ExecContext(ctx, deleteModulesQuery, courseID, pq.Array(ids)); err != nil {
		return errors.Wrap(err, "deleting modules")
	}
	return nil
}

func (repo courseRepository) GetModule(ctx context.Context, id int64, exec ...core.DBExecutor) (course.Module, error) {
	var rows []moduleRow
	if err := repo.selectAll(ctx, repo.getExec(exec), &rows, getModuleQuery, id); err != nil {
		return course.Module{}, errors.Wrap(err, "finding module")
	}
	if len(rows) == 0 {
		return course.Module{}, course.ErrNotFound
	}
	return rows[0].module(), nil
}

func (repo courseRepository) QueryModules(ctx context.Context, courseID int64, exec ...core.DBExecutor) ([]course.Module, error) {
	var rows []moduleRow
	if err := repo.selectAll(ctx, repo.getExec(exec), &rows, queryModulesQuery, courseID); err != nil {
		return nil, errors.Wrap(err, "querying modules")
	}
	modules := make([]course.Module, 0, len(rows))
	for _, r := range rows {
		modules = append(modules, r.module())
	}
	return modules, nil
}

// Contents

func (repo courseRepository) CreateContent(ctx context.Context, cnt course.Content, exec ...core.DBExecutor) (course.Content, error) {
	ord := orderOrZero(cnt.Order)
	id, err := repo.insert(ctx, repo.getExec(exec), insertContentQuery, cnt.ModuleID, string(cnt.Kind), cnt.ObjectID, ord)
	if err != nil {
		return course.Content{}, errors.Wrap(err, "inserting content")
	}
	cnt.ID = id
	cnt.Order = &ord
	return cnt, nil
}

func (repo courseRepository) GetContent(ctx context.Context, id int64, exec ...core.DBExecutor) (course.Content, error) {
	var rows []contentRow
	if err := repo.selectAll(ctx, repo.getExec(exec), &rows, getContentQuery, id); err != nil {
		return course.Content{}, errors.Wrap(err, "finding content")
	}
	if len(rows) == 0 {
		return course.Content{}, course.ErrNotFound
	}
	return rows[0].content(), nil
}

func (repo courseRepository) QueryContents(ctx context.Context, moduleID int64, exec ...core.DBExecutor) ([]course.Content, error) {
	var rows []contentRow
	if err := repo.selectAll(ctx, repo.getExec(exec), &rows, queryContentsQuery, moduleID); err != nil {
		return nil, errors.Wrap(err, "querying contents")
	}
	contents := make([]course.Content, 0, len(rows))
	for _, r := range rows {
		contents = append(contents, r.content())
	}
	return contents, nil
}

func (repo courseRepository) DeleteContent(ctx context.Context, id int64, exec ...core.DBExecutor) error {
	res, err := repo.getExec(exec).ExecContext(ctx, deleteContentQuery, id)
	if err == nil {
		err = rowsAffected(res)
	}
	if err != nil {
		return repo.trapNoRowsErr(err, course.ErrNotFound, "deleting content")
	}
	return nil
}

// Items

func (repo courseRepository) CreateItem(ctx context.Context, it course.Item, exec ...core.DBExecutor) (course.Item, error) {
	insertQuery, _, _, _, err := itemQueries(it.Kind)
	if err != nil {
		return course.Item{}, err
	}
	it.CreatedAt = it.CreatedAt.UTC()
	it.UpdatedAt = it.UpdatedAt.UTC()
	id, err := repo.insert(ctx, repo.getExec(exec), insertQuery, it.OwnerID, it.Title, itemBody(it), it.CreatedAt, it.UpdatedAt)
	if err != nil {
		return course.Item{}, errors.Wrapf(err, "inserting %s", it.Kind)
	}
	it.ID = id
	return it, nil
}

func (repo courseRepository) UpdateItem(ctx context.Context, it course.Item, exec ...core.DBExecutor) (course.Item, error) {
	_, updateQuery, _, _, err := itemQueries(it.Kind)
	if err != nil {
		return course.Item{}, err
	}
	it.UpdatedAt = it.UpdatedAt.UTC()
	res, err := repo.getExec(exec).ExecContext(ctx, updateQuery, it.ID, it.Title, itemBody(it), it.UpdatedAt)
	if err == nil {
		err = rowsAffected(res)
	}
	if err != nil {
		return course.Item{}, repo.trapNoRowsErr(err, course.ErrNotFound, "updating "+string(it.Kind))
	}
	return it, nil
}

func (repo courseRepository) GetItem(ctx context.Context, kind course.ItemKind, id int64, exec ...core.DBExecutor) (course.Item, error) {
	_, _, getQuery, _, err := itemQueries(kind)
	if err != nil {
		return course.Item{}, err
	}
	var rows []itemRow
	if err = repo.selectAll(ctx, repo.getExec(exec), &rows, getQuery, id); err != nil {
		return course.Item{}, errors.Wrapf(err, "finding %s", kind)
	}
	if len(rows) == 0 {
		return course.Item{}, course.ErrNotFound
	}
	return rows[0].item(kind), nil
}

func (repo courseRepository) DeleteItem(ctx context.Context, kind course.ItemKind, id int64, exec ...core.DBExecutor) error {
	_, _, _, deleteQuery, err := itemQueries(kind)
	if err != nil {
		return err
	}
	if _, err = repo.getExec(exec).ExecContext(ctx, deleteQuery, id); err != nil {
		return errors.Wrapf(err, "deleting %s", kind)
	}
	return nil
}

// Enrollment

func (repo courseRepository) EnrollStudent(ctx context.Context, courseID int64, userID string, exec ...core.DBExecutor) (bool, error) {
	res, err := repo.getExec(exec).ExecContext(ctx, enrollStudentQuery, courseID, userID, time.Now().UTC())
	if err != nil {
		return false, errors.Wrap(err, "enrolling student")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "enrolling student")
	}
	return n > 0, nil
}

func (repo courseRepository) IsEnrolled(ctx context.Context, courseID int64, userID string, exec ...core.DBExecutor) (bool, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return false, nil
	}
	found, err := repo.exists(ctx, repo.getExec(exec), isEnrolledQuery, courseID, userID)
	if err != nil {
		return false, errors.Wrap(err, "checking enrollment")
	}
	return found, nil
}
