package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/educa/core/course"
)

type studentApi struct {
	svc course.Service
}

func registerStudentAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc course.Service) {
	api := studentApi{svc: svc}

	sg := g.Group("/students/courses", jwt)
	sg.GET("", api.queryCourses)
	sg.GET("/:id", api.retrieveCourse)
	sg.GET("/:id/modules/:module_id", api.retrieveCourse)
}

func (api *studentApi) queryCourses(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	courses, err := api.svc.QueryEnrolledCourses(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying enrolled courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

// retrieveCourse shows an enrolled course with the module given by `module_id` (its first module by default).
func (api *studentApi) retrieveCourse(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	var moduleID int64
	if ctx.Param("module_id") != "" {
		if moduleID, err = paramID(ctx, "module_id"); err != nil {
			return err
		}
	}

	sc, err := api.svc.GetStudentCourse(ctx.Request().Context(), claims.Subject, id, moduleID)
	if err != nil {
		if errors.Cause(err) == course.ErrNotEnrolled {
			return errHttpNotFound
		}
		return errors.Wrap(err, "getting student course")
	}
	return ctx.JSON(http.StatusOK, sc)
}
