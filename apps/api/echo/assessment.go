package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tuutta/core"
	"github.com/trezcool/tuutta/core/assessment"
)

type AssessmentService interface {
	Create(ctx context.Context, na assessment.NewAssessment) (assessment.Assessment, error)
	Get(ctx context.Context, id string) (assessment.Assessment, error)
	Update(ctx context.Context, id string, def assessment.Definition) (assessment.Assessment, error)
	SubmitResult(ctx context.Context, sub assessment.Submission) (assessment.Result, error)
	GetResults(ctx context.Context, userID, assessmentID string) ([]assessment.Result, error)
	Attempts(ctx context.Context, userID, assessmentID string) (assessment.Attempts, error)
}

var errUserIDRequired = core.NewValidationError(nil, core.FieldError{Field: "user_id", Error: "this field is required"})

type assessmentApi struct {
	svc AssessmentService
}

func registerAssessmentAPI(g *echo.Group, svc AssessmentService) {
	api := assessmentApi{svc: svc}

	ag := g.Group("/assessments")
	ag.POST("", api.create)
	ag.GET("/:id", api.retrieve)
	ag.PUT("/:id", api.update)
	ag.POST("/:id/results", api.submit)
	ag.GET("/:id/results", api.results)
	ag.GET("/:id/attempts", api.attempts)
}

func (api *assessmentApi) create(ctx echo.Context) error {
	var data assessment.NewAssessment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAssessment")
	}
	a, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating assessment")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *assessmentApi) retrieve(ctx echo.Context) error {
	a, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting assessment")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *assessmentApi) update(ctx echo.Context) error {
	var data assessment.Definition
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Definition")
	}
	a, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating assessment")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *assessmentApi) submit(ctx echo.Context) error {
	var data assessment.Submission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Submission")
	}
	data.AssessmentID = ctx.Param("id")

	res, err := api.svc.SubmitResult(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "submitting result")
	}
	return ctx.JSON(http.StatusCreated, res)
}

func (api *assessmentApi) results(ctx echo.Context) error {
	userID := ctx.QueryParam("user_id")
	if userID == "" {
		return errUserIDRequired
	}
	results, err := api.svc.GetResults(ctx.Request().Context(), userID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting results")
	}
	if results == nil {
		results = []assessment.Result{}
	}
	return ctx.JSON(http.StatusOK, results)
}

func (api *assessmentApi) attempts(ctx echo.Context) error {
	userID := ctx.QueryParam("user_id")
	if userID == "" {
		return errUserIDRequired
	}
	att, err := api.svc.Attempts(ctx.Request().Context(), userID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting attempts")
	}
	return ctx.JSON(http.StatusOK, att)
}
