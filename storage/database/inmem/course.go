package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/trezcool/educa/core"
	"github.com/trezcool/educa/core/course"
)

type courseRepository struct {
	db *DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) *courseRepository {
	return &courseRepository{db: db}
}

// Subjects

func (repo *courseRepository) CreateSubject(_ context.Context, subj course.Subject, _ ...core.DBExecutor) (course.Subject, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	subj.ID = repo.db.nextID()
	subj.TotalCourses = 0
	repo.db.subjects[subj.ID] = &subj
	return subj, nil
}

func (repo *courseRepository) countCourses(subjectID int64) int {
	n := 0
	for _, crs := range repo.db.courses {
		if crs.SubjectID == subjectID {
			n++
		}
	}
	return n
}

func (repo *courseRepository) QuerySubjects(_ context.Context, _ ...core.DBExecutor) ([]course.Subject, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	subjects := make([]course.Subject, 0, len(repo.db.subjects))
	for _, s := range repo.db.subjects {
		subj := *s
		subj.TotalCourses = repo.countCourses(subj.ID)
		subjects = append(subjects, subj)
	}
	sort.Slice(subjects, func(i, j int) bool {
		if subjects[i].Title == subjects[j].Title {
			return subjects[i].ID < subjects[j].ID
		}
		return subjects[i].Title < subjects[j].Title
	})
	return subjects, nil
}

func (repo *courseRepository) GetSubject(_ context.Context, id int64, _ ...core.DBExecutor) (course.Subject, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if subj, ok := repo.db.subjects[id]; ok {
		return *subj, nil
	}
	return course.Subject{}, course.ErrSubjectNotFound
}

func (repo *courseRepository) GetSubjectBySlug(_ context.Context, slug string, _ ...core.DBExecutor) (course.Subject, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, subj := range repo.db.subjects {
		if subj.Slug == slug {
			return *subj, nil
		}
	}
	return course.Subject{}, course.ErrSubjectNotFound
}

// Courses

func (repo *courseRepository) countModules(courseID int64) int {
	n := 0
	for _, mod := range repo.db.modules {
		if mod.CourseID == courseID {
			n++
		}
	}
	return n
}

func (repo *courseRepository) CreateCourse(_ context.Context, crs course.Course, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	crs.ID = repo.db.nextID()
	crs.CreatedAt = crs.CreatedAt.UTC()
	crs.Modules = nil
	repo.db.courses[crs.ID] = &crs
	return crs, nil
}

func (repo *courseRepository) UpdateCourse(_ context.Context, crs course.Course, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.courses[crs.ID]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	orig.SubjectID = crs.SubjectID
	orig.Title = crs.Title
	orig.Slug = crs.Slug
	orig.Overview = crs.Overview
	return crs, nil
}

func (repo *courseRepository) DeleteCourse(_ context.Context, id int64, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.courses[id]; !ok {
		return course.ErrNotFound
	}
	delete(repo.db.courses, id)
	delete(repo.db.enrollments, id)
	for modID, mod := range repo.db.modules {
		if mod.CourseID == id {
			repo.deleteModule(modID)
		}
	}
	return nil
}

func (repo *courseRepository) GetCourse(_ context.Context, id int64, _ ...core.DBExecutor) (course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	crs, ok := repo.db.courses[id]
	if !ok {
		return course.Course{}, course.ErrNotFound
	}
	c := *crs
	c.TotalModules = repo.countModules(id)
	return c, nil
}

func courseLess(a, b course.Course, ord core.DBOrdering) (less, equal bool) {
	var cmp int
	switch ord.Field {
	case "title":
		cmp = strings.Compare(a.Title, b.Title)
	case "slug":
		cmp = strings.Compare(a.Slug, b.Slug)
	case "id":
		cmp = compareInt64(a.ID, b.ID)
	case "created_at":
		cmp = compareTime(a.CreatedAt, b.CreatedAt)
	default:
		return false, true
	}
	if cmp == 0 {
		return false, true
	}
	if ord.Ascending {
		return cmp < 0, false
	}
	return cmp > 0, false
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func (repo *courseRepository) QueryCourses(_ context.Context, filter course.CourseFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]course.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	courses := make([]course.Course, 0)
	for _, crs := range repo.db.courses {
		if filter.OwnerID != "" && crs.OwnerID != filter.OwnerID {
			continue
		}
		if filter.SubjectID != 0 && crs.SubjectID != filter.SubjectID {
			continue
		}
		if filter.StudentID != "" && !repo.db.enrollments[crs.ID][filter.StudentID] {
			continue
		}
		c := *crs
		c.TotalModules = repo.countModules(c.ID)
		courses = append(courses, c)
	}

	orderings := append(append([]core.DBOrdering{}, ordering...),
		core.DBOrdering{Field: "created_at"}, core.DBOrdering{Field: "id"})
	sort.SliceStable(courses, func(i, j int) bool {
		for _, ord := range orderings {
			if less, equal := courseLess(courses[i], courses[j], ord); !equal {
				return less
			}
		}
		return false
	})
	return courses, nil
}

func (repo *courseRepository) CourseSlugExists(_ context.Context, slug string, excludedID int64, _ ...core.DBExecutor) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, crs := range repo.db.courses {
		if crs.Slug == slug && crs.ID != excludedID {
			return true, nil
		}
	}
	return false, nil
}

// Modules

func (repo *courseRepository) CreateModule(_ context.Context, mod course.Module, _ ...core.DBExecutor) (course.Module, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.courses[mod.CourseID]; !ok {
		return course.Module{}, course.ErrNotFound
	}
	mod.ID = repo.db.nextID()
	ord := orderOf(mod.Order)
	mod.Order = &ord
	mod.Contents = nil
	repo.db.modules[mod.ID] = &mod
	return mod, nil
}

func (repo *courseRepository) UpdateModule(_ context.Context, mod course.Module, _ ...core.DBExecutor) (course.Module, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.modules[mod.ID]
	if !ok {
		return course.Module{}, course.ErrNotFound
	}
	orig.Title = mod.Title
	orig.Description = mod.Description
	return *orig, nil
}

// deleteModule removes a module and its contents; db.mu must be held.
func (repo *courseRepository) deleteModule(id int64) {
	delete(repo.db.modules, id)
	for cntID, cnt := range repo.db.contents {
		if cnt.ModuleID == id {
			delete(repo.db.contents, cntID)
		}
	}
}

func (repo *courseRepository) DeleteModules(_ context.Context, courseID int64, ids []int64, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, id := range ids {
		if mod, ok := repo.db.modules[id]; ok && mod.CourseID == courseID {
			repo.deleteModule(id)
		}
	}
	return nil
}

func (repo *courseRepository) GetModule(_ context.Context, id int64, _ ...core.DBExecutor) (course.Module, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if mod, ok := repo.db.modules[id]; ok {
		m := *mod
		m.Order = copyOrder(mod.Order)
		return m, nil
	}
	return course.Module{}, course.ErrNotFound
}

func (repo *courseRepository) QueryModules(_ context.Context, courseID int64, _ ...core.DBExecutor) ([]course.Module, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	modules := make([]course.Module, 0)
	for _, mod := range repo.db.modules {
		if mod.CourseID == courseID {
			m := *mod
			m.Order = copyOrder(mod.Order)
			modules = append(modules, m)
		}
	}
	sort.Slice(modules, func(i, j int) bool {
		return byOrder(modules[i].Order, modules[j].Order, modules[i].ID, modules[j].ID)
	})
	return modules, nil
}

// Contents

func (repo *courseRepository) CreateContent(_ context.Context, cnt course.Content, _ ...core.DBExecutor) (course.Content, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.modules[cnt.ModuleID]; !ok {
		return course.Content{}, course.ErrNotFound
	}
	cnt.ID = repo.db.nextID()
	ord := orderOf(cnt.Order)
	cnt.Order = &ord
	cnt.Item = nil
	repo.db.contents[cnt.ID] = &cnt
	return cnt, nil
}

func (repo *courseRepository) GetContent(_ context.Context, id int64, _ ...core.DBExecutor) (course.Content, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if cnt, ok := repo.db.contents[id]; ok {
		c := *cnt
		c.Order = copyOrder(cnt.Order)
		return c, nil
	}
	return course.Content{}, course.ErrNotFound
}

func (repo *courseRepository) QueryContents(_ context.Context, moduleID int64, _ ...core.DBExecutor) ([]course.Content, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	contents := make([]course.Content, 0)
	for _, cnt := range repo.db.contents {
		if cnt.ModuleID == moduleID {
			c := *cnt
			c.Order = copyOrder(cnt.Order)
			contents = append(contents, c)
		}
	}
	sort.Slice(contents, func(i, j int) bool {
		return byOrder(contents[i].Order, contents[j].Order, contents[i].ID, contents[j].ID)
	})
	return contents, nil
}

func (repo *courseRepository) DeleteContent(_ context.Context, id int64, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.contents[id]; !ok {
		return course.ErrNotFound
	}
	delete(repo.db.contents, id)
	return nil
}

// Items

func (repo *courseRepository) CreateItem(_ context.Context, it course.Item, _ ...core.DBExecutor) (course.Item, error) {
	if _, ok := course.ParseItemKind(string(it.Kind)); !ok {
		return course.Item{}, course.ErrItemKind
	}

	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	it.ID = repo.db.nextID()
	it.FileURL = ""
	repo.db.items[it.ID] = &it
	return it, nil
}

func (repo *courseRepository) UpdateItem(_ context.Context, it course.Item, _ ...core.DBExecutor) (course.Item, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.items[it.ID]
	if !ok || orig.Kind != it.Kind {
		return course.Item{}, course.ErrNotFound
	}
	it.OwnerID = orig.OwnerID
	it.CreatedAt = orig.CreatedAt
	it.FileURL = ""
	repo.db.items[it.ID] = &it
	return it, nil
}

func (repo *courseRepository) GetItem(_ context.Context, kind course.ItemKind, id int64, _ ...core.DBExecutor) (course.Item, error) {
	if _, ok := course.ParseItemKind(string(kind)); !ok {
		return course.Item{}, course.ErrItemKind
	}

	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if it, ok := repo.db.items[id]; ok && it.Kind == kind {
		return *it, nil
	}
	return course.Item{}, course.ErrNotFound
}

func (repo *courseRepository) DeleteItem(_ context.Context, kind course.ItemKind, id int64, _ ...core.DBExecutor) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if it, ok := repo.db.items[id]; ok && it.Kind == kind {
		delete(repo.db.items, id)
	}
	return nil
}

// Enrollment

func (repo *courseRepository) EnrollStudent(_ context.Context, courseID int64, userID string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.courses[courseID]; !ok {
		return false, course.ErrNotFound
	}
	students, ok := repo.db.enrollments[courseID]
	if !ok {
		students = make(map[string]bool)
		repo.db.enrollments[courseID] = students
	}
	if students[userID] {
		return false, nil
	}
	students[userID] = true
	return true, nil
}

func (repo *courseRepository) IsEnrolled(_ context.Context, courseID int64, userID string, _ ...core.DBExecutor) (bool, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.db.enrollments[courseID][userID], nil
}

func copyOrder(ord *int) *int {
	if ord == nil {
		return nil
	}
	o := *ord
	return &o
}

func orderOf(ord *int) int {
	if ord == nil {
		return 0
	}
	return *ord
}

func byOrder(a, b *int, idA, idB int64) bool {
	if orderOf(a) == orderOf(b) {
		return idA < idB
	}
	return orderOf(a) < orderOf(b)
}
