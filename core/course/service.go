package course

import (
	"context"
	"fmt"
	"io"
	"net/mail"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/educa/core"
	"github.com/trezcool/educa/core/ordering"
	"github.com/trezcool/educa/core/user"
)

var NowFunc = time.Now // mockable

// Upload is a file sent along an image or file item.
type Upload struct {
	Filename string
	Reader   io.Reader
}

type (
	Service interface {
		// CheckCourse validates the subject & slug of a new or updated course.
		CheckCourse(ctx context.Context, subjectID int64, slug string, excludedID ...int64) error

		CreateSubject(ctx context.Context, ns NewSubject) (Subject, error)
		QuerySubjects(ctx context.Context) ([]Subject, error)
		GetSubject(ctx context.Context, id int64) (Subject, error)
		GetSubjectBySlug(ctx context.Context, slug string) (Subject, error)

		// QueryCourses lists all courses, or the courses of a subject if subjectID != 0.
		QueryCourses(ctx context.Context, subjectID int64) ([]Course, error)
		// GetCourse returns a course along with its modules.
		GetCourse(ctx context.Context, id int64) (Course, error)
		QueryOwnCourses(ctx context.Context, ownerID string, ordering []core.DBOrdering) ([]Course, error)
		CreateCourse(ctx context.Context, ownerID string, nc NewCourse) (Course, error)
		UpdateCourse(ctx context.Context, crs Course, nc NewCourse) (Course, error)
		DeleteCourse(ctx context.Context, crs Course) error

		QueryModules(ctx context.Context, courseID int64) ([]Module, error)
		CreateModule(ctx context.Context, courseID int64, nm NewModule) (Module, error)
		// SaveModules applies a formset to the modules of a course and returns them all.
		SaveModules(ctx context.Context, courseID int64, fs ModuleFormset) ([]Module, error)
		GetModule(ctx context.Context, id int64) (Module, error)
		// GetModuleContents returns mod along with its contents & their items.
		GetModuleContents(ctx context.Context, mod Module) (Module, error)

		// CreateItem creates an item and appends it to the contents of mod.
		CreateItem(ctx context.Context, ownerID string, mod Module, kind ItemKind, form ItemForm, upload *Upload) (Content, error)
		UpdateItem(ctx context.Context, it Item, form ItemForm, upload *Upload) (Item, error)
		GetItem(ctx context.Context, kind ItemKind, id int64) (Item, error)
		GetContent(ctx context.Context, id int64) (Content, error)
		// DeleteContent deletes cnt along with its item.
		DeleteContent(ctx context.Context, cnt Content) error

		ReorderModules(ctx context.Context, ownerID string, assignments []ordering.Assignment) (int, error)
		ReorderContents(ctx context.Context, ownerID string, assignments []ordering.Assignment) (int, error)

		Enroll(ctx context.Context, crs Course, student user.User) error
		QueryEnrolledCourses(ctx context.Context, studentID string) ([]Course, error)
		// GetStudentCourse returns an enrolled course with the given module (the first one if moduleID == 0).
		GetStudentCourse(ctx context.Context, studentID string, courseID, moduleID int64) (StudentCourse, error)
		GetChatRoom(ctx context.Context, studentID string, courseID int64) (ChatRoom, error)
	}

	service struct {
		repo         Repository
		orderStore   ordering.Store
		moduleOrder  *ordering.Rule
		contentOrder *ordering.Rule
		tx           core.TxRunner
		cache        core.Cache
		files        core.FileStore
		mailSvc      core.EmailService
		logger       core.Logger
		conf         *core.Config
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(
	repo Repository,
	orderStore ordering.Store,
	tx core.TxRunner,
	cache core.Cache,
	files core.FileStore,
	mailSvc core.EmailService,
	logger core.Logger,
	conf *core.Config,
) Service {
	return &service{
		repo:         repo,
		orderStore:   orderStore,
		moduleOrder:  ordering.NewRule(orderStore, EntityModule, ModuleScopeField),
		contentOrder: ordering.NewRule(orderStore, EntityContent, ContentScopeField),
		tx:           tx,
		cache:        cache,
		files:        files,
		mailSvc:      mailSvc,
		logger:       logger,
		conf:         conf,
	}
}

// Cache

func (svc *service) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	found, err := svc.cache.Get(ctx, key, dest)
	if err != nil {
		svc.logger.Warn("reading cache key "+key, err)
		return false
	}
	return found
}

func (svc *service) cacheSet(ctx context.Context, key string, val interface{}) {
	if err := svc.cache.Set(ctx, key, val, svc.conf.Cache.ListingTTL); err != nil {
		svc.logger.Warn("writing cache key "+key, err)
	}
}

// invalidateListings drops the cached listings affected by a change to the courses of subjectIDs.
func (svc *service) invalidateListings(ctx context.Context, subjectIDs ...int64) {
	keys := []string{SubjectsKey(), CoursesKey(0)}
	for _, id := range subjectIDs {
		keys = append(keys, CoursesKey(id))
	}
	if err := svc.cache.Delete(ctx, keys...); err != nil {
		svc.logger.Warn("invalidating course listings", err)
	}
}

// Subjects

func (svc *service) CreateSubject(ctx context.Context, ns NewSubject) (Subject, error) {
	if _, err := svc.repo.GetSubjectBySlug(ctx, ns.Slug); err == nil {
		return Subject{}, core.NewValidationError(nil, core.FieldError{Field: "slug", Error: "a subject with this slug already exists"})
	} else if errors.Cause(err) != ErrSubjectNotFound {
		return Subject{}, errors.Wrap(err, "checking subject slug")
	}

	subj, err := svc.repo.CreateSubject(ctx, Subject{Title: ns.Title, Slug: ns.Slug})
	if err != nil {
		return Subject{}, errors.Wrap(err, "creating subject")
	}
	svc.invalidateListings(ctx)
	return subj, nil
}

func (svc *service) QuerySubjects(ctx context.Context) ([]Subject, error) {
	var subjects []Subject
	if svc.cacheGet(ctx, SubjectsKey(), &subjects) {
		return subjects, nil
	}

	subjects, err := svc.repo.QuerySubjects(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	svc.cacheSet(ctx, SubjectsKey(), subjects)
	return subjects, nil
}

func (svc *service) GetSubject(ctx context.Context, id int64) (Subject, error) {
	return svc.repo.GetSubject(ctx, id)
}

func (svc *service) GetSubjectBySlug(ctx context.Context, slug string) (Subject, error) {
	return svc.repo.GetSubjectBySlug(ctx, core.CleanString(slug, true /* lower */))
}

// Courses

func (svc *service) CheckCourse(ctx context.Context, subjectID int64, slug string, excludedID ...int64) error {
	if _, err := svc.repo.GetSubject(ctx, subjectID); err != nil {
		if errors.Cause(err) == ErrSubjectNotFound {
			return core.NewValidationError(err, core.FieldError{Field: "subject_id", Error: err.Error()})
		}
		return errors.Wrap(err, "finding subject")
	}

	var exclID int64
	if len(excludedID) > 0 {
		exclID = excludedID[0]
	}
	exists, err := svc.repo.CourseSlugExists(ctx, slug, exclID)
	if err != nil {
		return errors.Wrap(err, "checking course slug")
	}
	if exists {
		return core.NewValidationError(ErrSlugExists, core.FieldError{Field: "slug", Error: ErrSlugExists.Error()})
	}
	return nil
}

func (svc *service) QueryCourses(ctx context.Context, subjectID int64) ([]Course, error) {
	key := CoursesKey(subjectID)
	var courses []Course
	if svc.cacheGet(ctx, key, &courses) {
		return courses, nil
	}

	courses, err := svc.repo.QueryCourses(ctx, CourseFilter{SubjectID: subjectID}, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	svc.cacheSet(ctx, key, courses)
	return courses, nil
}

func (svc *service) GetCourse(ctx context.Context, id int64) (Course, error) {
	crs, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if crs.Modules, err = svc.repo.QueryModules(ctx, id); err != nil {
		return Course{}, errors.Wrap(err, "querying modules")
	}
	crs.TotalModules = len(crs.Modules)
	return crs, nil
}

func (svc *service) QueryOwnCourses(ctx context.Context, ownerID string, ordering []core.DBOrdering) ([]Course, error) {
	return svc.repo.QueryCourses(ctx, CourseFilter{OwnerID: ownerID}, ordering)
}

func (svc *service) CreateCourse(ctx context.Context, ownerID string, nc NewCourse) (Course, error) {
	crs, err := svc.repo.CreateCourse(ctx, Course{
		OwnerID:   ownerID,
		SubjectID: nc.SubjectID,
		Title:     nc.Title,
		Slug:      nc.Slug,
		Overview:  nc.Overview,
		CreatedAt: NowFunc().UTC(),
	})
	if err != nil {
		return Course{}, errors.Wrap(err, "creating course")
	}
	svc.invalidateListings(ctx, crs.SubjectID)
	return crs, nil
}

func (svc *service) UpdateCourse(ctx context.Context, crs Course, nc NewCourse) (Course, error) {
	oldSubjectID := crs.SubjectID
	crs.SubjectID = nc.SubjectID
	crs.Title = nc.Title
	crs.Slug = nc.Slug
	crs.Overview = nc.Overview

	updated, err := svc.repo.UpdateCourse(ctx, crs)
	if err != nil {
		return Course{}, errors.Wrap(err, "updating course")
	}
	svc.invalidateListings(ctx, oldSubjectID, updated.SubjectID)
	return updated, nil
}

func (svc *service) DeleteCourse(ctx context.Context, crs Course) error {
	if err := svc.repo.DeleteCourse(ctx, crs.ID); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	svc.invalidateListings(ctx, crs.SubjectID)
	return nil
}

// Modules

func (svc *service) QueryModules(ctx context.Context, courseID int64) ([]Module, error) {
	return svc.repo.QueryModules(ctx, courseID)
}

// createModule resolves the order of mod then inserts it; exec must be a transaction.
func (svc *service) createModule(ctx context.Context, mod Module, exec core.DBExecutor) (Module, error) {
	if _, err := svc.moduleOrder.Resolve(ctx, &mod, exec); err != nil {
		return Module{}, errors.Wrap(err, "resolving module order")
	}
	return svc.repo.CreateModule(ctx, mod, exec)
}

func (svc *service) CreateModule(ctx context.Context, courseID int64, nm NewModule) (Module, error) {
	var mod Module
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		mod, err = svc.createModule(ctx, Module{
			CourseID:    courseID,
			Title:       nm.Title,
			Description: nm.Description,
			Order:       nm.Order,
		}, exec)
		return err
	})
	if err != nil {
		return Module{}, errors.Wrap(err, "creating module")
	}
	svc.invalidateListings(ctx)
	return mod, nil
}

func (svc *service) SaveModules(ctx context.Context, courseID int64, fs ModuleFormset) ([]Module, error) {
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var toDelete []int64
		for i, form := range fs.Modules {
			if form.ID != 0 {
				mod, err := svc.repo.GetModule(ctx, form.ID, exec)
				if err != nil || mod.CourseID != courseID {
					if err == nil || errors.Cause(err) == ErrNotFound {
						return core.NewValidationError(nil, core.FieldError{
							Field: fmt.Sprintf("modules[%d].id", i),
							Error: "module not found",
						})
					}
					return errors.Wrap(err, "finding module")
				}
				if form.Delete {
					toDelete = append(toDelete, form.ID)
					continue
				}
				mod.Title = form.Title
				mod.Description = form.Description
				if _, err = svc.repo.UpdateModule(ctx, mod, exec); err != nil {
					return errors.Wrap(err, "updating module")
				}
				continue
			}
			if form.Delete {
				continue
			}
			if _, err := svc.createModule(ctx, Module{CourseID: courseID, Title: form.Title, Description: form.Description}, exec); err != nil {
				return err
			}
		}
		if len(toDelete) > 0 {
			if err := svc.repo.DeleteModules(ctx, courseID, toDelete, exec); err != nil {
				return errors.Wrap(err, "deleting modules")
			}
		}
		return nil
	})
	if err != nil {
		if core.IsValidationError(err) {
			return nil, err
		}
		return nil, errors.Wrap(err, "saving modules")
	}
	svc.invalidateListings(ctx)
	return svc.repo.QueryModules(ctx, courseID)
}

func (svc *service) GetModule(ctx context.Context, id int64) (Module, error) {
	return svc.repo.GetModule(ctx, id)
}

func (svc *service) GetModuleContents(ctx context.Context, mod Module) (Module, error) {
	contents, err := svc.repo.QueryContents(ctx, mod.ID)
	if err != nil {
		return Module{}, errors.Wrap(err, "querying contents")
	}
	for i := range contents {
		it, err := svc.repo.GetItem(ctx, contents[i].Kind, contents[i].ObjectID)
		if err != nil {
			if errors.Cause(err) == ErrNotFound {
				continue // dangling content
			}
			return Module{}, errors.Wrap(err, "resolving content item")
		}
		svc.setFileURL(&it)
		contents[i].Item = &it
	}
	mod.Contents = contents
	return mod, nil
}

// Contents & Items

func (svc *service) setFileURL(it *Item) {
	if it.File != "" {
		it.FileURL = svc.files.URL(it.File)
	}
}

// storeUpload saves upload under a unique name in the kind's folder and returns that name.
func (svc *service) storeUpload(ctx context.Context, kind ItemKind, upload *Upload) (string, error) {
	base := path.Base(strings.ReplaceAll(upload.Filename, "\\", "/"))
	if base == "." || base == "/" {
		base = "upload"
	}
	name := fmt.Sprintf("%ss/%s-%s", kind, uuid.New().String(), base)
	if err := svc.files.Save(ctx, name, upload.Reader); err != nil {
		return "", errors.Wrap(err, "saving upload")
	}
	return name, nil
}

func (svc *service) deleteFile(ctx context.Context, name string) {
	if err := svc.files.Delete(ctx, name); err != nil {
		svc.logger.Warn("deleting file "+name, err)
	}
}

func (svc *service) CreateItem(ctx context.Context, ownerID string, mod Module, kind ItemKind, form ItemForm, upload *Upload) (Content, error) {
	now := NowFunc().UTC()
	it := Item{
		Kind:      kind,
		OwnerID:   ownerID,
		Title:     form.Title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	switch kind {
	case KindText:
		it.Content = form.Content
	case KindVideo:
		it.URL = form.URL
	case KindImage, KindFile:
		if upload == nil {
			return Content{}, core.NewValidationError(nil, core.FieldError{Field: "file", Error: "this field is required"})
		}
		name, err := svc.storeUpload(ctx, kind, upload)
		if err != nil {
			return Content{}, err
		}
		it.File = name
	default:
		return Content{}, ErrItemKind
	}

	var cnt Content
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if it, err = svc.repo.CreateItem(ctx, it, exec); err != nil {
			return errors.Wrap(err, "creating item")
		}
		cnt = Content{ModuleID: mod.ID, Kind: kind, ObjectID: it.ID}
		if _, err = svc.contentOrder.Resolve(ctx, &cnt, exec); err != nil {
			return errors.Wrap(err, "resolving content order")
		}
		if cnt, err = svc.repo.CreateContent(ctx, cnt, exec); err != nil {
			return errors.Wrap(err, "creating content")
		}
		return nil
	})
	if err != nil {
		if it.File != "" {
			svc.deleteFile(ctx, it.File)
		}
		return Content{}, err
	}
	svc.setFileURL(&it)
	cnt.Item = &it
	return cnt, nil
}

func (svc *service) UpdateItem(ctx context.Context, it Item, form ItemForm, upload *Upload) (Item, error) {
	it.Title = form.Title
	it.UpdatedAt = NowFunc().UTC()
	oldFile := it.File
	switch it.Kind {
	case KindText:
		it.Content = form.Content
	case KindVideo:
		it.URL = form.URL
	case KindImage, KindFile:
		if upload != nil {
			name, err := svc.storeUpload(ctx, it.Kind, upload)
			if err != nil {
				return Item{}, err
			}
			it.File = name
		}
	default:
		return Item{}, ErrItemKind
	}

	updated, err := svc.repo.UpdateItem(ctx, it)
	if err != nil {
		if it.File != oldFile {
			svc.deleteFile(ctx, it.File)
		}
		return Item{}, errors.Wrap(err, "updating item")
	}
	if oldFile != "" && updated.File != oldFile {
		svc.deleteFile(ctx, oldFile)
	}
	svc.setFileURL(&updated)
	return updated, nil
}

func (svc *service) GetItem(ctx context.Context, kind ItemKind, id int64) (Item, error) {
	it, err := svc.repo.GetItem(ctx, kind, id)
	if err != nil {
		return Item{}, err
	}
	svc.setFileURL(&it)
	return it, nil
}

func (svc *service) GetContent(ctx context.Context, id int64) (Content, error) {
	return svc.repo.GetContent(ctx, id)
}

func (svc *service) DeleteContent(ctx context.Context, cnt Content) error {
	it, err := svc.repo.GetItem(ctx, cnt.Kind, cnt.ObjectID)
	if err != nil && errors.Cause(err) != ErrNotFound {
		return errors.Wrap(err, "finding content item")
	}
	found := err == nil

	err = svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		if found {
			if err := svc.repo.DeleteItem(ctx, cnt.Kind, cnt.ObjectID, exec); err != nil {
				return errors.Wrap(err, "deleting item")
			}
		}
		if err := svc.repo.DeleteContent(ctx, cnt.ID, exec); err != nil {
			return errors.Wrap(err, "deleting content")
		}
		return nil
	})
	if err != nil {
		return err
	}
	if found && it.File != "" {
		svc.deleteFile(ctx, it.File)
	}
	return nil
}

// Ordering

func (svc *service) ReorderModules(ctx context.Context, ownerID string, assignments []ordering.Assignment) (int, error) {
	return ordering.Reorder(ctx, svc.orderStore, EntityModule, ownerID, assignments)
}

func (svc *service) ReorderContents(ctx context.Context, ownerID string, assignments []ordering.Assignment) (int, error) {
	return ordering.Reorder(ctx, svc.orderStore, EntityContent, ownerID, assignments)
}

// Students

func (svc *service) Enroll(ctx context.Context, crs Course, student user.User) error {
	added, err := svc.repo.EnrollStudent(ctx, crs.ID, student.ID)
	if err != nil {
		return errors.Wrap(err, "enrolling student")
	}
	if added && student.Email != "" {
		svc.sendEnrollmentMail(crs, student)
	}
	return nil
}

func (svc *service) sendEnrollmentMail(crs Course, student user.User) {
	name := student.Name
	if name == "" {
		name = student.Username
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: name, Address: student.Email}},
		Subject:      "You enrolled in " + crs.Title,
		TemplateName: "course_enrolled",
		TemplateData: map[string]interface{}{
			"Name":       name,
			"Course":     crs.Title,
			"CoursePath": fmt.Sprintf("/students/courses/%d", crs.ID),
		},
	})
}

func (svc *service) QueryEnrolledCourses(ctx context.Context, studentID string) ([]Course, error) {
	return svc.repo.QueryCourses(ctx, CourseFilter{StudentID: studentID}, nil)
}

func (svc *service) checkEnrolled(ctx context.Context, studentID string, courseID int64) error {
	enrolled, err := svc.repo.IsEnrolled(ctx, courseID, studentID)
	if err != nil {
		return errors.Wrap(err, "checking enrollment")
	}
	if !enrolled {
		return ErrNotEnrolled
	}
	return nil
}

func (svc *service) GetStudentCourse(ctx context.Context, studentID string, courseID, moduleID int64) (StudentCourse, error) {
	if err := svc.checkEnrolled(ctx, studentID, courseID); err != nil {
		return StudentCourse{}, err
	}
	crs, err := svc.GetCourse(ctx, courseID)
	if err != nil {
		return StudentCourse{}, err
	}

	sc := StudentCourse{Course: crs}
	var mod *Module
	for i := range crs.Modules {
		if moduleID == 0 || crs.Modules[i].ID == moduleID {
			mod = &crs.Modules[i]
			break
		}
	}
	if mod == nil {
		if moduleID != 0 {
			return StudentCourse{}, ErrNotFound
		}
		return sc, nil // no modules yet
	}

	withContents, err := svc.GetModuleContents(ctx, *mod)
	if err != nil {
		return StudentCourse{}, err
	}
	sc.Module = &withContents
	return sc, nil
}

func (svc *service) GetChatRoom(ctx context.Context, studentID string, courseID int64) (ChatRoom, error) {
	crs, err := svc.repo.GetCourse(ctx, courseID)
	if err != nil {
		return ChatRoom{}, err
	}
	if err = svc.checkEnrolled(ctx, studentID, courseID); err != nil {
		return ChatRoom{}, err
	}
	return ChatRoom{Course: crs, URL: fmt.Sprintf("/ws/chat/rooms/%d", crs.ID)}, nil
}
