package echoapi

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/educa/core/course"
	"github.com/trezcool/educa/core/user"
)

type courseApi struct {
	svc    course.Service
	usrSvc user.Service
}

func registerCourseAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc course.Service, usrSvc user.Service) {
	api := courseApi{svc: svc, usrSvc: usrSvc}

	g.GET("/subjects", api.querySubjects)
	g.GET("/subjects/:id", api.retrieveSubject)

	cg := g.Group("/courses")
	cg.GET("", api.queryCourses)
	cg.GET("/:id", api.retrieveCourse)
	cg.POST("/:id/enroll", api.enroll, jwt)
}

func (api *courseApi) querySubjects(ctx echo.Context) error {
	subjects, err := api.svc.QuerySubjects(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}
	if subjects == nil {
		subjects = []course.Subject{}
	}
	return ctx.JSON(http.StatusOK, subjects)
}

func (api *courseApi) retrieveSubject(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	subj, err := api.svc.GetSubject(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding subject")
	}
	return ctx.JSON(http.StatusOK, subj)
}

// queryCourses lists all courses, or those of the subject whose slug is given by `?subject=`.
func (api *courseApi) queryCourses(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	var subjectID int64
	if slug := ctx.QueryParam("subject"); slug != "" {
		subj, err := api.svc.GetSubjectBySlug(reqCtx, slug)
		if err != nil {
			return errors.Wrap(err, "finding subject")
		}
		subjectID = subj.ID
	}

	courses, err := api.svc.QueryCourses(reqCtx, subjectID)
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	if courses == nil {
		courses = []course.Course{}
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *courseApi) retrieveCourse(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	crs, err := api.svc.GetCourse(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding course")
	}
	return ctx.JSON(http.StatusOK, crs)
}

func (api *courseApi) enroll(ctx echo.Context) error {
	id, err := paramID(ctx, "id")
	if err != nil {
		return err
	}
	crs, err := api.svc.GetCourse(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding course")
	}
	usr, err := getContextUser(ctx, api.usrSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	if err = api.svc.Enroll(ctx.Request().Context(), crs, usr); err != nil {
		return errors.Wrap(err, "enrolling")
	}
	return ctx.JSON(http.StatusOK, EnrollResponse{
		Success:   "enrolled in " + crs.Title,
		CourseURL: fmt.Sprintf("/v1/students/courses/%d", crs.ID),
	})
}

type EnrollResponse struct {
	Success   string `json:"success"`
	CourseURL string `json:"course_url"`
}
