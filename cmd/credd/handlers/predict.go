package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	apierr "github.com/credfab/credfab/pkg/api/types/errors"
	apipredict "github.com/credfab/credfab/pkg/api/types/predict"
	"github.com/credfab/credfab/pkg/domain"
	"github.com/credfab/credfab/pkg/inference"
)

// PredictHandler scores one applicant record against the currently loaded
// bundle.
func PredictHandler(engine *inference.Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := apipredict.Request{}
		if err := c.Bind(&req); err != nil {
			return apierr.BadRequest(
				"send a flat JSON object of applicant fields", err,
			)
		}

		p, err := engine.Predict(req.Record)
		if err != nil {
			if errors.Is(err, domain.ErrEngineNotLoaded) {
				return apierr.ServiceUnavailable(
					"no model bundle is loaded yet. retry later.", err,
				)
			}
			if errors.Is(err, domain.ErrValidation) {
				return apierr.BadRequest(
					"fix the named field and resend the record", err,
				)
			}
			return apierr.InternalServerError(err)
		}

		return c.JSON(http.StatusOK, apipredict.FromPrediction(p))
	}
}
