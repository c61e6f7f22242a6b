package course

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/educa/core"
)

// ordered entities
const (
	EntityModule  = "modules"
	EntityContent = "contents"

	ModuleScopeField  = "course_id"
	ContentScopeField = "module_id"
)

type Subject struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	Slug         string `json:"slug"`
	TotalCourses int    `json:"total_courses"`
}

type Course struct {
	ID           int64     `json:"id"`
	OwnerID      string    `json:"owner_id"`
	SubjectID    int64     `json:"subject_id"`
	Title        string    `json:"title"`
	Slug         string    `json:"slug"`
	Overview     string    `json:"overview"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	TotalModules int       `json:"total_modules"`
	Modules      []Module  `json:"modules,omitempty"`
}

type Module struct {
	ID          int64     `json:"id"`
	CourseID    int64     `json:"course_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Order       *int      `json:"order"`
	Contents    []Content `json:"contents,omitempty"`
}

func (m *Module) OrderEntity() string { return EntityModule }
func (m *Module) OrderValue() *int    { return m.Order }
func (m *Module) SetOrder(order int)  { m.Order = &order }

func (m *Module) ScopeValue(field string) (int64, bool) {
	if field == ModuleScopeField {
		return m.CourseID, m.CourseID != 0
	}
	return 0, false
}

// Content places an Item within a Module.
type Content struct {
	ID       int64    `json:"id"`
	ModuleID int64    `json:"module_id"`
	Kind     ItemKind `json:"content_type"`
	ObjectID int64    `json:"object_id"`
	Order    *int     `json:"order"`
	Item     *Item    `json:"item,omitempty"`
}

func (c *Content) OrderEntity() string { return EntityContent }
func (c *Content) OrderValue() *int    { return c.Order }
func (c *Content) SetOrder(order int)  { c.Order = &order }

func (c *Content) ScopeValue(field string) (int64, bool) {
	if field == ContentScopeField {
		return c.ModuleID, c.ModuleID != 0
	}
	return 0, false
}

// StudentCourse is what an enrolled student sees: the course and its current module.
type StudentCourse struct {
	Course Course `json:"course"`
	Module *Module `json:"module"`
}

// ChatRoom is the chat room of a course.
type ChatRoom struct {
	Course Course `json:"course"`
	URL    string `json:"url"`
}

type NewSubject struct {
	Title string `json:"title" validate:"required,max=200"`
	Slug  string `json:"slug" validate:"omitempty,max=200,slug"`
}

func (ns *NewSubject) Validate(validate *validator.Validate) error {
	ns.Title = core.CleanString(ns.Title)
	ns.Slug = core.CleanString(ns.Slug, true /* lower */)
	if ns.Slug == "" {
		ns.Slug = core.Slugify(ns.Title)
	}
	return validate.Struct(ns)
}

// NewCourse contains information needed to create (or fully update) a Course.
type NewCourse struct {
	SubjectID int64  `json:"subject_id" validate:"required,gt=0"`
	Title     string `json:"title" validate:"required,max=200"`
	Slug      string `json:"slug" validate:"omitempty,max=200,slug"`
	Overview  string `json:"overview" validate:"required"`
}

// Validate cleans nc and checks that its subject exists & its slug is unique (excluding excludedID).
func (nc *NewCourse) Validate(ctx context.Context, validate *validator.Validate, svc Service, excludedID ...int64) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Slug = core.CleanString(nc.Slug, true /* lower */)
	nc.Overview = core.CleanString(nc.Overview)
	if nc.Slug == "" {
		nc.Slug = core.Slugify(nc.Title)
	}
	if err := validate.Struct(nc); err != nil {
		return err
	}
	return svc.CheckCourse(ctx, nc.SubjectID, nc.Slug, excludedID...)
}

type NewModule struct {
	Title       string `json:"title" validate:"required,max=250"`
	Description string `json:"description"`
	Order       *int   `json:"order" validate:"omitempty,gte=0"`
}

func (nm *NewModule) Validate(validate *validator.Validate) error {
	nm.Title = core.CleanString(nm.Title)
	nm.Description = core.CleanString(nm.Description)
	return validate.Struct(nm)
}

// ModuleForm is one row of a ModuleFormset: no ID creates a Module; Delete removes it.
// The order of existing modules is never changed by a formset.
type ModuleForm struct {
	ID          int64  `json:"id" validate:"gte=0"`
	Title       string `json:"title" validate:"required_without=Delete,max=250"`
	Description string `json:"description"`
	Delete      bool   `json:"delete"`
}

type ModuleFormset struct {
	Modules []ModuleForm `json:"modules" validate:"dive"`
}

func (fs *ModuleFormset) Validate(validate *validator.Validate) error {
	for i := range fs.Modules {
		fs.Modules[i].Title = core.CleanString(fs.Modules[i].Title)
		fs.Modules[i].Description = core.CleanString(fs.Modules[i].Description)
	}
	return validate.Struct(fs)
}

type CourseFilter struct {
	OwnerID   string
	SubjectID int64
	StudentID string
}
