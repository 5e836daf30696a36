package echoapi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tuutta/core"
	"github.com/trezcool/tuutta/core/certificate"
)

type CertificateService interface {
	Get(ctx context.Context, id string) (certificate.Certificate, error)
}

func registerCertificateAPI(g *echo.Group, svc CertificateService) {
	g.GET("/certificates/:id", func(ctx echo.Context) error {
		cert, err := svc.Get(ctx.Request().Context(), ctx.Param("id"))
		if err != nil {
			return errors.Wrap(err, "getting certificate")
		}
		return ctx.JSON(http.StatusOK, cert)
	})
}

const maxActivities = 200

func registerActivityAPI(g *echo.Group, repo core.ActivityRepository) {
	g.GET("/activities", func(ctx echo.Context) error {
		filter := core.ActivityFilter{
			OrgID:    ctx.QueryParam("org_id"),
			EntityID: ctx.QueryParam("entity_id"),
			Action:   ctx.QueryParam("action"),
			Limit:    50,
		}
		if l := ctx.QueryParam("limit"); l != "" {
			n, err := strconv.Atoi(l)
			if err != nil || n < 1 {
				return core.NewValidationError(nil, core.FieldError{Field: "limit", Error: "must be a positive integer"})
			}
			filter.Limit = n
		}
		if filter.Limit > maxActivities {
			filter.Limit = maxActivities
		}
		if filter.OrgID == "" && filter.EntityID == "" {
			return core.NewValidationError(nil, core.FieldError{Field: "org_id", Error: "org_id or entity_id is required"})
		}

		evs, err := repo.QueryActivities(ctx.Request().Context(), filter)
		if err != nil {
			return errors.Wrap(err, "querying activities")
		}
		if evs == nil {
			evs = []core.ActivityEvent{}
		}
		return ctx.JSON(http.StatusOK, evs)
	})
}
