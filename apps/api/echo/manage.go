package echoapi

import (
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/educa/core"
	"github.com/trezcool/educa/core/course"
	"github.com/trezcool/educa/core/ordering"
	"github.com/trezcool/educa/core/user"
)

var (
	errCrsNotFoundInCtx = errors.New("course object not found in echo.Context")
	errModNotFoundInCtx = errors.New("module object not found in echo.Context")
)

// reorderResponse is returned by the bulk reorder endpoints whatever the number of rows updated.
var reorderResponse = echo.Map{"saved": "OK"}

type manageApi struct {
	svc      course.Service
	validate *validator.Validate
	logger   core.Logger
}

// registerManageAPI registers the instructor endpoints; every course, module & content is looked up
// among those owned by the authenticated instructor.
func registerManageAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc course.Service,
	validate *validator.Validate,
	logger core.Logger,
) {
	api := manageApi{
		svc:      svc,
		validate: validate,
		logger:   logger,
	}
	courseOwner := courseOwnerMiddleware(svc)
	moduleOwner := moduleOwnerMiddleware(svc)

	mg := g.Group("/manage", jwt, roleMiddleware(user.RoleInstructor))

	mg.GET("/courses", api.queryCourses)
	mg.POST("/courses", api.createCourse)
	mg.PUT("/courses/:id", api.updateCourse, courseOwner)
	mg.DELETE("/courses/:id", api.deleteCourse, courseOwner)

	mg.GET("/courses/:id/modules", api.queryModules, courseOwner)
	mg.POST("/courses/:id/modules", api.createModule, courseOwner)
	mg.PUT("/courses/:id/modules", api.saveModules, courseOwner)
	mg.POST("/modules/order", api.reorderModules)

	mg.GET("/modules/:module_id/contents", api.moduleContents, moduleOwner)
	mg.POST("/modules/:module_id/contents/:model", api.createContent, moduleOwner)
	mg.PUT("/modules/:module_id/contents/:model/:id", api.updateContent, moduleOwner)
	mg.DELETE("/contents/:id", api.deleteContent)
	mg.POST("/contents/order", api.reorderContents)
}

func contextCourse(ctx echo.Context) (course.Course, error) {
	crs, ok := ctx.Get(contextCourseKey).(course.Course)
	if !ok {
		return course.Course{}, errors.Wrap(errCrsNotFoundInCtx, "retrieving object from context")
	}
	return crs, nil
}

func contextModule(ctx echo.Context) (course.Module, error) {
	mod, ok := ctx.Get(contextModuleKey).(course.Module)
	if !ok {
		return course.Module{}, errors.Wrap(errModNotFoundInCtx, "retrieving object from context")
	}
	return mod, nil
}

// Courses

func (api *manageApi) queryCourses(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	ord := new(Ordering)
	ord.Bind(ctx)

	courses, err := api.svc.QueryOwnCourses(ctx.Request().Context(), claims.Subject, ord.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *manageApi) createCourse(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data course.NewCourse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err = data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	crs, err := api.svc.CreateCourse(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "creating course")
	}
	return ctx.JSON(http.StatusCreated, crs)
}

func (api *manageApi) updateCourse(ctx echo.Context) error {
	crs, err := contextCourse(ctx)
	if err != nil {
		return err
	}

	var data course.NewCourse
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err = data.Validate(ctx.Request().Context(), api.validate, api.svc, crs.ID); err != nil {
		return err
	}

	crs, err = api.svc.UpdateCourse(ctx.Request().Context(), crs, data)
	if err != nil {
		return errors.Wrap(err, "updating course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *manageApi) deleteCourse(ctx echo.Context) error {
	crs, err := contextCourse(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteCourse(ctx.Request().Context(), crs); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Modules

func (api *manageApi) queryModules(ctx echo.Context) error {
	crs, err := contextCourse(ctx)
	if err != nil {
		return err
	}
	modules, err := api.svc.QueryModules(ctx.Request().Context(), crs.ID)
	if err != nil {
		return errors.Wrap(err, "querying modules")
	}
	if modules == nil {
		modules = []course.Module{}
	}
	return ctx.JSON(http.StatusOK, modules)
}

func (api *manageApi) createModule(ctx echo.Context) error {
	crs, err := contextCourse(ctx)
	if err != nil {
		return err
	}

	var data course.NewModule
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewModule")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	mod, err := api.svc.CreateModule(ctx.Request().Context(), crs.ID, data)
	if err != nil {
		return errors.Wrap(err, "creating module")
	}
	return ctx.JSON(http.StatusCreated, mod)
}

func (api *manageApi) saveModules(ctx echo.Context) error {
	crs, err := contextCourse(ctx)
	if err != nil {
		return err
	}

	var data course.ModuleFormset
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ModuleFormset")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	modules, err := api.svc.SaveModules(ctx.Request().Context(), crs.ID, data)
	if err != nil {
		return errors.Wrap(err, "saving modules")
	}
	if modules == nil {
		modules = []course.Module{}
	}
	return ctx.JSON(http.StatusOK, modules)
}

// Contents

func (api *manageApi) moduleContents(ctx echo.Context) error {
	mod, err := contextModule(ctx)
	if err != nil {
		return err
	}
	mod, err = api.svc.GetModuleContents(ctx.Request().Context(), mod)
	if err != nil {
		return errors.Wrap(err, "getting module contents")
	}
	return ctx.JSON(http.StatusOK, mod)
}

func paramItemKind(ctx echo.Context) (course.ItemKind, error) {
	kind, ok := course.ParseItemKind(ctx.Param("model"))
	if !ok {
		return "", errHttpNotFound
	}
	return kind, nil
}

// bindItem binds & validates an ItemForm sent as JSON or as a (multipart) form.
// The `file` upload is only read for image & file items; done must be called once it is stored.
func (api *manageApi) bindItem(ctx echo.Context, kind course.ItemKind) (form course.ItemForm, upload *course.Upload, done func(), err error) {
	done = func() {}
	if err = ctx.Bind(&form); err != nil {
		return form, nil, done, errors.Wrap(err, "binding to ItemForm")
	}
	if err = form.Validate(kind, api.validate); err != nil {
		return form, nil, done, err
	}
	if !kind.HasFile() {
		return form, nil, done, nil
	}

	fh, err := ctx.FormFile("file")
	if err != nil {
		if err == http.ErrMissingFile || err == http.ErrNotMultipart {
			return form, nil, done, nil
		}
		return form, nil, done, errors.Wrap(err, "reading upload")
	}
	f, err := fh.Open()
	if err != nil {
		return form, nil, done, errors.Wrap(err, "opening upload")
	}
	return form, &course.Upload{Filename: fh.Filename, Reader: f}, func() { _ = f.Close() }, nil
}

func (api *manageApi) createContent(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	mod, err := contextModule(ctx)
	if err != nil {
		return err
	}
	kind, err := paramItemKind(ctx)
	if err != nil {
		return err
	}

	form, upload, closeUpload, err := api.bindItem(ctx, kind)
	defer closeUpload()
	if err != nil {
		return err
	}

	cnt, err := api.svc.CreateItem(ctx.Request().Context(), claims.Subject, mod, kind, form, upload)
	if err != nil {
		return errors.Wrap(err, "creating item")
	}
	return ctx.JSON(http.StatusCreated, cnt)
}

func (api *manageApi) updateContent(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	kind, err := paramItemKind(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}

	it, err := api.svc.GetItem(ctx.Request().Context(), kind, id)
	if err != nil {
		return errors.Wrap(err, "finding item")
	}
	if it.OwnerID != claims.Subject {
		return errHttpNotFound
	}

	form, upload, closeUpload, err := api.bindItem(ctx, kind)
	defer closeUpload()
	if err != nil {
		return err
	}

	it, err = api.svc.UpdateItem(ctx.Request().Context(), it, form, upload)
	if err != nil {
		return errors.Wrap(err, "updating item")
	}
	return ctx.JSON(http.StatusOK, it)
}

func (api *manageApi) deleteContent(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}

	cnt, err := api.svc.GetContent(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding content")
	}
	if _, err = ownedModule(ctx, api.svc, cnt.ModuleID, claims.Subject); err != nil {
		return err
	}

	if err = api.svc.DeleteContent(ctx.Request().Context(), cnt); err != nil {
		return errors.Wrap(err, "deleting content")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Ordering

type reorderFunc func(ctx echo.Context, ownerID string, assignments []ordering.Assignment) (int, error)

// reorder parses the whole `{"<id>": <order>}` body before anything is written.
func (api *manageApi) reorder(ctx echo.Context, entity string, fn reorderFunc) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	body, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return errors.Wrap(err, "reading request body")
	}
	assignments, err := ordering.ParseReorder(body)
	if err != nil {
		return err
	}

	applied, err := fn(ctx, claims.Subject, assignments)
	if err != nil {
		return errors.Wrapf(err, "reordering %s", entity)
	}
	api.logger.Debug(fmt.Sprintf("reordered %d/%d %s", applied, len(assignments), entity))
	return ctx.JSON(http.StatusOK, reorderResponse)
}

func (api *manageApi) reorderModules(ctx echo.Context) error {
	return api.reorder(ctx, course.EntityModule, func(ctx echo.Context, ownerID string, a []ordering.Assignment) (int, error) {
		return api.svc.ReorderModules(ctx.Request().Context(), ownerID, a)
	})
}

func (api *manageApi) reorderContents(ctx echo.Context) error {
	return api.reorder(ctx, course.EntityContent, func(ctx echo.Context, ownerID string, a []ordering.Assignment) (int, error) {
		return api.svc.ReorderContents(ctx.Request().Context(), ownerID, a)
	})
}
