package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/researchly/marketscout/internal/export"
	"github.com/researchly/marketscout/internal/qa"
	"github.com/researchly/marketscout/internal/store"
	"github.com/researchly/marketscout/internal/worker"
	"github.com/researchly/marketscout/models"
)

// JobsHandler exposes the job store, Q&A limiter and export formatter over
// HTTP. Job creation returns immediately; progress is observed by polling.
type JobsHandler struct {
	Store   *store.Store
	Pool    *worker.Pool
	Limiter *qa.Limiter
	Metrics *Metrics

	// baseCtx is the lifetime context handed to dispatched pipelines so
	// they are not cancelled when the create request ends.
	baseCtx context.Context
}

func (h *JobsHandler) Register(g *echo.Group) {
	if h.baseCtx == nil {
		h.baseCtx = context.Background()
	}
	g.POST("/jobs", h.create)
	g.GET("/jobs", h.list)
	g.GET("/jobs/:id", h.get)
	g.DELETE("/jobs/:id", h.delete)
	g.POST("/jobs/:id/ask", h.ask)
	g.GET("/jobs/:id/export", h.export)
}

func (h *JobsHandler) create(c echo.Context) error {
	var req struct {
		Kind  string `json:"job_kind"`
		Query string `json:"query"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	kind := models.JobKind(req.Kind)
	if req.Kind == "" {
		kind = models.KindResearch
	}

	job, err := h.Store.Create(kind, req.Query)
	if err != nil {
		return httpError(err)
	}
	if h.Metrics != nil {
		h.Metrics.JobsCreated.WithLabelValues(string(job.Kind)).Inc()
	}
	h.Pool.Submit(h.baseCtx, job.JobID)
	return c.JSON(http.StatusAccepted, map[string]interface{}{
		"job_id": job.JobID,
		"status": job.Status,
	})
}

func (h *JobsHandler) get(c echo.Context) error {
	job, err := h.Store.Get(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, job)
}

func (h *JobsHandler) list(c echo.Context) error {
	return c.JSON(http.StatusOK, h.Store.List())
}

func (h *JobsHandler) delete(c echo.Context) error {
	if err := h.Store.Delete(c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string]string{"deleted": c.Param("id")})
}

func (h *JobsHandler) ask(c echo.Context) error {
	var req struct {
		Question string `json:"question"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	answer, err := h.Limiter.Ask(c.Request().Context(), c.Param("id"), req.Question)
	if err != nil {
		return httpError(err)
	}
	if h.Metrics != nil {
		h.Metrics.QuestionsAnswered.Inc()
	}
	return c.JSON(http.StatusOK, answer)
}

func (h *JobsHandler) export(c echo.Context) error {
	format, err := export.ParseFormat(c.QueryParam("format"))
	if err != nil {
		return httpError(err)
	}
	job, err := h.Store.Get(c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	artifact, err := export.Render(job, format)
	if err != nil {
		return httpError(err)
	}
	return c.Blob(http.StatusOK, format.ContentType(), artifact)
}

// httpError translates the domain error taxonomy into transport codes.
func httpError(err error) error {
	switch {
	case errors.Is(err, models.ErrJobNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrValidation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrNotReady):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrQuotaExceeded):
		return echo.NewHTTPError(http.StatusTooManyRequests, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
