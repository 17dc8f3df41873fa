package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/credfab/credfab/pkg/inference"
)

type HealthResponse struct {
	Status       string `json:"status"`
	ModelVersion string `json:"model_version,omitempty"`
}

// HealthHandler reports whether the server holds a loaded bundle.
//
// It answers 200 with status "ok" when a bundle serves, and 503 with status
// "loading" before the first bundle arrives. Probes can rely on the code
// alone.
func HealthHandler(engine *inference.Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		version := engine.Version()
		if version == "" {
			return c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "loading"})
		}
		return c.JSON(http.StatusOK, HealthResponse{
			Status:       "ok",
			ModelVersion: version,
		})
	}
}
