package echoapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tuutta/core"
	"github.com/trezcool/tuutta/core/enrollment"
)

type EnrollmentService interface {
	Enroll(ctx context.Context, ne enrollment.NewEnrollment) (enrollment.Enrollment, error)
	Get(ctx context.Context, id string) (enrollment.Enrollment, error)
	Query(ctx context.Context, filter *enrollment.QueryFilter, ordering []core.DBOrdering) ([]enrollment.Enrollment, error)
	UpdateStatus(ctx context.Context, id string, status enrollment.Status) (enrollment.Enrollment, error)
	Withdraw(ctx context.Context, id string, reason string) (enrollment.Enrollment, error)
}

type enrollmentApi struct {
	svc      EnrollmentService
	validate *validator.Validate
}

func registerEnrollmentAPI(g *echo.Group, svc EnrollmentService, validate *validator.Validate) {
	api := enrollmentApi{svc: svc, validate: validate}

	eg := g.Group("/enrollments")
	eg.POST("", api.enroll)
	eg.GET("", api.query)
	eg.GET("/:id", api.retrieve)
	eg.PATCH("/:id/status", api.updateStatus)
	eg.POST("/:id/withdraw", api.withdraw)
}

func (api *enrollmentApi) enroll(ctx echo.Context) error {
	var data enrollment.NewEnrollment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEnrollment")
	}

	enr, err := api.svc.Enroll(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "enrolling")
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *enrollmentApi) query(ctx echo.Context) error {
	var (
		filter   enrollment.QueryFilter
		statuses []string
	)
	err := echo.QueryParamsBinder(ctx).
		String("org_id", &filter.OrgID).
		String("user_id", &filter.UserID).
		String("course_id", &filter.CourseID).
		Strings("status", &statuses).
		Time("due_before", &filter.DueBefore, time.RFC3339).
		BindError()
	if err != nil {
		return core.NewValidationError(err)
	}
	for _, st := range statuses {
		status := enrollment.Status(st)
		if !status.IsValid() {
			return enrollment.ErrInvalidStatus
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	var ord Ordering
	ord.Bind(ctx)

	enrs, err := api.svc.Query(ctx.Request().Context(), &filter, ord.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	if enrs == nil {
		enrs = []enrollment.Enrollment{}
	}
	return ctx.JSON(http.StatusOK, enrs)
}

func (api *enrollmentApi) retrieve(ctx echo.Context) error {
	enr, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting enrollment")
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *enrollmentApi) updateStatus(ctx echo.Context) error {
	var data enrollment.StatusUpdate
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to StatusUpdate")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	enr, err := api.svc.UpdateStatus(ctx.Request().Context(), ctx.Param("id"), data.Status)
	if err != nil {
		return errors.Wrap(err, "updating enrollment status")
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *enrollmentApi) withdraw(ctx echo.Context) error {
	var data enrollment.Withdrawal
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Withdrawal")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	enr, err := api.svc.Withdraw(ctx.Request().Context(), ctx.Param("id"), data.Reason)
	if err != nil {
		return errors.Wrap(err, "withdrawing enrollment")
	}
	return ctx.JSON(http.StatusOK, enr)
}
