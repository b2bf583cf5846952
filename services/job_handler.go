package services

import (
	"errors"
	"net/http"

	"github.com/docuquery/policy-search/jobs"
	"github.com/labstack/echo/v4"
)

// JobHandler exposes ingestion job status.
type JobHandler struct {
	store jobs.Store
}

func ProvideJobHandler(store jobs.Store) *JobHandler {
	return &JobHandler{store: store}
}

func (h *JobHandler) GetJob(c echo.Context) error {
	id := c.Param("id")
	job, err := h.store.Get(c.Request().Context(), id)
	if errors.Is(err, jobs.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "job not found: "+id)
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, job)
}
