package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/escola/core"
	"github.com/trezcool/escola/core/grade"
)

const objectContextKey = "object"

// requireSession lets the request through when the session satisfies allowed.
func requireSession(allowed func(core.Session) bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			sess, err := getSession(ctx)
			if err != nil {
				return err
			}
			if !allowed(sess) {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}

var (
	staffMiddleware = requireSession(core.Session.IsStaff)
	adminMiddleware = requireSession(core.Session.IsAdmin)
)

// studentSelfOrStaffMiddleware guards /students/:id routes.
// Other students get a 404 so they cannot probe which students exist.
func studentSelfOrStaffMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		sess, err := getSession(ctx)
		if err != nil {
			return err
		}
		if sess.IsStaff() || (sess.IsStudent() && sess.UserID == ctx.Param("id")) {
			return next(ctx)
		}
		return errHttpNotFound
	}
}

// recordMiddleware loads the :id record of the caller's school into the context.
func recordMiddleware(svc grade.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			sess, err := getSession(ctx)
			if err != nil {
				return err
			}

			rec, err := svc.Get(ctx.Request().Context(), sess.SchoolID, ctx.Param("id"))
			if err != nil {
				if errors.Cause(err) == grade.ErrNotFound {
					return errHttpNotFound
				}
				return errors.Wrap(err, "finding grade record by ID")
			}
			if !sess.IsStaff() && rec.StudentID != sess.UserID {
				return errHttpNotFound
			}
			ctx.Set(objectContextKey, rec)
			return next(ctx)
		}
	}
}
