package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/escola/core/grade"
)

var errRecordNotFoundInCtx = errors.New("grade record not found in echo.Context")

type gradeApi struct {
	svc      grade.Service
	validate *validator.Validate
}

func registerGradeAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc grade.Service, validate *validator.Validate) {
	api := gradeApi{
		svc:      svc,
		validate: validate,
	}

	gg := g.Group("/grades", jwt, sessionMiddleware)
	gg.GET("/concepts", api.queryConcepts)
	gg.GET("/concepts/:label", api.retrieveConcept)
	gg.POST("/normalize", api.normalize)
	gg.GET("/settings", api.retrieveSettings, staffMiddleware)
	gg.PUT("/settings", api.updateSettings, adminMiddleware)
	gg.POST("/recompute", api.recompute, adminMiddleware)
	gg.GET("", api.query)
	gg.POST("", api.create, staffMiddleware)
	gg.DELETE("", api.destroyMultiple, adminMiddleware)

	// detail endpoints
	dg := gg.Group("/:id", recordMiddleware(svc))
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, staffMiddleware)
	dg.PATCH("/quarters", api.updateQuarter, staffMiddleware)
	dg.DELETE("", api.destroy, adminMiddleware)

	sg := g.Group("/students/:id", jwt, sessionMiddleware, studentSelfOrStaffMiddleware)
	sg.GET("/report-card", api.reportCard)
	sg.POST("/report-card/send", api.sendReportCard, staffMiddleware)
}

func getContextRecord(ctx echo.Context) (grade.Record, error) {
	rec, ok := ctx.Get(objectContextKey).(grade.Record)
	if !ok {
		return grade.Record{}, errors.Wrap(errRecordNotFoundInCtx, "retrieving object from context")
	}
	return rec, nil
}

// Handlers

func (api *gradeApi) queryConcepts(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, grade.Concepts())
}

func (api *gradeApi) retrieveConcept(ctx echo.Context) error {
	c, err := grade.ParseConcept(ctx.Param("label"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, grade.ConceptScale{Key: c.String(), Label: c.Label(), Grade: c.Grade()})
}

func (api *gradeApi) normalize(ctx echo.Context) error {
	sess, err := getSession(ctx)
	if err != nil {
		return err
	}

	var data NormalizeRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NormalizeRequest")
	}

	v, err := api.svc.Normalize(ctx.Request().Context(), sess.SchoolID, data.Value)
	if err != nil {
		return errors.Wrap(err, "normalizing grade")
	}
	return ctx.JSON(http.StatusOK, NormalizeResponse{Value: v})
}

func (api *gradeApi) retrieveSettings(ctx echo.Context) error {
	sess, err := getSession(ctx)
	if err != nil {
		return err
	}

	cfg, err := api.svc.Config(ctx.Request().Context(), sess.SchoolID)
	if err != nil {
		return errors.Wrap(err, "loading grade config")
	}
	return ctx.JSON(http.StatusOK, cfg)
}

func (api *gradeApi) updateSettings(ctx echo.Context) error {
	sess, err := getSession(ctx)
	if err != nil {
		return err
	}

	var data grade.UpdateSettings
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSettings")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	cfg, err := api.svc.SaveConfig(ctx.Request().Context(), sess.SchoolID, data)
	if err != nil {
		return errors.Wrap(err, "saving grade config")
	}
	return ctx.JSON(http.StatusOK, cfg)
}

func (api *gradeApi) recompute(ctx echo.Context) error {
	sess, err := getSession(ctx)
	if err != nil {
		return err
	}

	n, err := api.svc.Recompute(ctx.Request().Context(), sess.SchoolID)
	if err != nil {
		return errors.Wrap(err, "recomputing grades")
	}
	return ctx.JSON(http.StatusOK, RecomputeResponse{Updated: n})
}

func (api *gradeApi) query(ctx echo.Context) error {
	sess, err := getSession(ctx)
	if err != nil {
		return err
	}

	filter := new(grade.QueryFilter)
	if err = ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	if err = filter.Validate(api.validate); err != nil {
		return err
	}
	// students only ever see their own records
	if !sess.IsStaff() {
		filter.StudentID = sess.UserID
	}
	ordering := new(Ordering)
	if err = ordering.Bind(ctx, grade.OrderableFields); err != nil {
		return err
	}

	recs, err := api.svc.Query(ctx.Request().Context(), sess.SchoolID, filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying grade records")
	}
	if recs == nil {
		recs = []grade.Record{}
	}
	return ctx.JSON(http.StatusOK, recs)
}

func (api *gradeApi) create(ctx echo.Context) error {
	sess, err := getSession(ctx)
	if err != nil {
		return err
	}

	var data grade.NewRecord
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRecord")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	rec, err := api.svc.Create(ctx.Request().Context(), sess.SchoolID, data)
	if err != nil {
		return errors.Wrap(err, "creating grade record")
	}
	return ctx.JSON(http.StatusCreated, rec)
}

func (api *gradeApi) retrieve(ctx echo.Context) error {
	rec, err := getContextRecord(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *gradeApi) update(ctx echo.Context) error {
	rec, err := getContextRecord(ctx)
	if err != nil {
		return err
	}

	var data grade.UpdateQuarters
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateQuarters")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	rec, err = api.svc.SetQuarters(ctx.Request().Context(), rec.SchoolID, rec.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating grade record")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *gradeApi) updateQuarter(ctx echo.Context) error {
	rec, err := getContextRecord(ctx)
	if err != nil {
		return err
	}

	var data grade.UpdateQuarter
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateQuarter")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	rec, err = api.svc.SetQuarter(ctx.Request().Context(), rec.SchoolID, rec.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating grade record quarter")
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *gradeApi) destroy(ctx echo.Context) error {
	rec, err := getContextRecord(ctx)
	if err != nil {
		return err
	}

	if _, err = api.svc.Delete(ctx.Request().Context(), rec.SchoolID, rec.ID); err != nil {
		return errors.Wrap(err, "deleting grade record")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *gradeApi) destroyMultiple(ctx echo.Context) error {
	sess, err := getSession(ctx)
	if err != nil {
		return err
	}

	var query DestroyMultipleRequest
	if err = ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}

	if _, err = api.svc.Delete(ctx.Request().Context(), sess.SchoolID, query.IDs...); err != nil {
		return errors.Wrap(err, "deleting grade records")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *gradeApi) reportCard(ctx echo.Context) error {
	sess, err := getSession(ctx)
	if err != nil {
		return err
	}

	var query ReportCardRequest
	if err = ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to ReportCardRequest")
	}
	if err = api.validate.Struct(query); err != nil {
		return err
	}

	rc, err := api.svc.ReportCard(ctx.Request().Context(), sess.SchoolID, ctx.Param("id"), query.AcademicYear)
	if err != nil {
		return errors.Wrap(err, "building report card")
	}
	rc.SetAttendance(query.ClassesAttended, query.ClassesTotal)
	return ctx.JSON(http.StatusOK, rc)
}

func (api *gradeApi) sendReportCard(ctx echo.Context) error {
	sess, err := getSession(ctx)
	if err != nil {
		return err
	}

	var data grade.SendReportCard
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SendReportCard")
	}
	data.StudentID = ctx.Param("id")
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	if err = api.svc.SendReportCard(ctx.Request().Context(), sess.SchoolID, data); err != nil {
		if errors.Cause(err) == grade.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "sending report card")
	}
	return ctx.JSON(http.StatusAccepted, SuccessResponse{Success: "The report card will be sent shortly."})
}

type (
	NormalizeRequest struct {
		Value grade.Input `json:"value"`
	}

	NormalizeResponse struct {
		Value *float64 `json:"value"`
	}

	RecomputeResponse struct {
		Updated int `json:"updated"`
	}

	ReportCardRequest struct {
		AcademicYear    int `query:"academic_year" validate:"required,academicyear"`
		ClassesAttended int `query:"classes_attended" validate:"min=0,ltefield=ClassesTotal"`
		ClassesTotal    int `query:"classes_total" validate:"min=0"`
	}

	DestroyMultipleRequest struct {
		IDs []string `query:"id"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}
)
