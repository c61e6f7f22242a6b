package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/educa/core/course"
)

const (
	contextCourseKey = "course"
	contextModuleKey = "module"
)

// roleMiddleware only lets through users having one of roles.
func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if claims.hasAnyRole(roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// courseOwnerMiddleware loads the course identified by the `id` param; courses of other owners are not found.
func courseOwnerMiddleware(svc course.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			id, err := paramID(ctx, "id")
			if err != nil {
				return err
			}
			crs, err := svc.GetCourse(ctx.Request().Context(), id)
			if err != nil {
				return errors.Wrap(err, "finding course")
			}
			if crs.OwnerID != claims.Subject {
				return errHttpNotFound
			}
			ctx.Set(contextCourseKey, crs)
			return next(ctx)
		}
	}
}

// moduleOwnerMiddleware loads the module identified by the `module_id` param if the user owns its course.
func moduleOwnerMiddleware(svc course.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			id, err := paramID(ctx, "module_id")
			if err != nil {
				return err
			}
			mod, err := ownedModule(ctx, svc, id, claims.Subject)
			if err != nil {
				return err
			}
			ctx.Set(contextModuleKey, mod)
			return next(ctx)
		}
	}
}

func ownedModule(ctx echo.Context, svc course.Service, id int64, ownerID string) (course.Module, error) {
	reqCtx := ctx.Request().Context()
	mod, err := svc.GetModule(reqCtx, id)
	if err != nil {
		return course.Module{}, errors.Wrap(err, "finding module")
	}
	crs, err := svc.GetCourse(reqCtx, mod.CourseID)
	if err != nil {
		return course.Module{}, errors.Wrap(err, "finding module course")
	}
	if crs.OwnerID != ownerID {
		return course.Module{}, errHttpNotFound
	}
	return mod, nil
}
