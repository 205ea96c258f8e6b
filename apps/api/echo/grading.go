package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-grading/core/grading"
)

type gradingApi struct {
	svc      *grading.Service
	validate *validator.Validate
}

func registerGradingAPI(g *echo.Group, svc *grading.Service, validate *validator.Validate) {
	api := gradingApi{
		svc:      svc,
		validate: validate,
	}

	qg := g.Group("/quarter-grades")
	qg.GET("", api.retrieveQuarterGrade)
	qg.POST("/refresh", api.refresh)
	qg.GET("/status", api.status)

	g.GET("/students/:id/report-card", api.reportCard)
	g.POST("/grades/void-late-enrollments", api.voidLateEnrollments)
}

// Handlers

func (api *gradingApi) retrieveQuarterGrade(ctx echo.Context) error {
	var q quarterGradeQuery
	if err := bindAndValidate(ctx, api.validate, &q); err != nil {
		return err
	}

	qg, err := api.svc.GetOrRefresh(ctx.Request().Context(), q.QuarterKey, q.Force)
	if err != nil {
		return errors.Wrap(err, "getting quarter grade")
	}
	if qg == nil {
		return errNoQuarterGrade
	}
	return ctx.JSON(http.StatusOK, qg)
}

func (api *gradingApi) refresh(ctx echo.Context) error {
	var opts grading.SweepOptions
	if err := bindAndValidate(ctx, api.validate, &opts); err != nil {
		return err
	}

	stats, err := api.svc.Sweep(ctx.Request().Context(), opts)
	if err != nil {
		return errors.Wrap(err, "refreshing quarter grades")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *gradingApi) status(ctx echo.Context) error {
	var q cacheStatusQuery
	if err := bindAndValidate(ctx, api.validate, &q); err != nil {
		return err
	}

	status, err := api.svc.CacheStatus(ctx.Request().Context(), grading.QuarterGradeFilter{
		StudentID:    q.StudentID,
		SchoolYearID: q.SchoolYearID,
	})
	if err != nil {
		return errors.Wrap(err, "getting cache status")
	}
	return ctx.JSON(http.StatusOK, status)
}

func (api *gradingApi) reportCard(ctx echo.Context) error {
	var q reportCardQuery
	if err := bindAndValidate(ctx, api.validate, &q); err != nil {
		return err
	}

	card, err := api.svc.ReportCard(ctx.Request().Context(), q.StudentID, q.SchoolYearID)
	if err != nil {
		return errors.Wrap(err, "building report card")
	}
	return ctx.JSON(http.StatusOK, card)
}

func (api *gradingApi) voidLateEnrollments(ctx echo.Context) error {
	var opts grading.VoidOptions
	if err := bindAndValidate(ctx, api.validate, &opts); err != nil {
		return err
	}

	stats, err := api.svc.VoidLateEnrollmentGrades(ctx.Request().Context(), opts)
	if err != nil {
		return errors.Wrap(err, "voiding late enrollment grades")
	}
	return ctx.JSON(http.StatusOK, stats)
}
