// Package handler exposes report export and job endpoints over gin.
package handler

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"schoolreport/internal/auth"
	"schoolreport/internal/jobs"
	"schoolreport/internal/report"
)

// Exporter generates a report synchronously.
type Exporter interface {
	Generate(ctx context.Context, id string, params report.Params) (*report.Artifact, error)
}

// JobService submits and reads asynchronous report jobs.
type JobService interface {
	Submit(ctx context.Context, reportID string, params report.Params, requestedBy string) (jobs.Job, error)
	Get(ctx context.Context, id string) (jobs.Job, error)
	List(ctx context.Context, f jobs.ListFilter) ([]jobs.Job, error)
}

// Checker is a dependency checked by /healthz.
type Checker interface {
	Healthy(ctx context.Context) bool
}

type Handler struct {
	exporter Exporter
	jobs     JobService
	checks   map[string]Checker
	log      *zap.Logger
}

func New(exporter Exporter, js JobService, checks map[string]Checker, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{exporter: exporter, jobs: js, checks: checks, log: log.Named("http")}
}

// Register mounts the routes. protect runs before every /v1 route.
func (h *Handler) Register(r gin.IRouter, protect ...gin.HandlerFunc) {
	r.GET("/healthz", h.Healthz)

	v1 := r.Group("/v1", protect...)
	v1.GET("/reports", h.Catalogue)
	v1.POST("/reports/:id/export", h.Export)
	v1.POST("/reports/:id/jobs", h.SubmitJob)
	v1.GET("/jobs", h.ListJobs)
	v1.GET("/jobs/:id", h.GetJob)
}

func (h *Handler) Healthz(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{"status": "ok"}
	for name, chk := range h.checks {
		ok := chk.Healthy(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

func (h *Handler) Catalogue(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"reports": report.Catalogue()})
}

// Export streams the generated file back as an attachment.
func (h *Handler) Export(c *gin.Context) {
	var params report.Params
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	art, err := h.exporter.Generate(c.Request.Context(), c.Param("id"), params)
	if err != nil {
		h.fail(c, err, http.StatusBadGateway)
		return
	}

	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": art.Filename}))
	c.Header("X-Report-Rows", strconv.Itoa(art.Rows))
	c.Header("X-Report-Degraded", strconv.Itoa(art.Degraded))
	c.Header("X-Report-Skipped", strconv.Itoa(art.Skipped))
	c.Header("X-Report-Truncated", strconv.FormatBool(art.Truncated))
	c.Data(http.StatusOK, art.ContentType, art.Data)
}

func (h *Handler) SubmitJob(c *gin.Context) {
	var params report.Params
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	claims, _ := auth.ClaimsFrom(c)
	job, err := h.jobs.Submit(c.Request.Context(), c.Param("id"), params, claims.Subject)
	if err != nil {
		h.fail(c, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID, "status": job.Status})
}

// GetJob returns one job. Teachers only see their own jobs.
func (h *Handler) GetJob(c *gin.Context) {
	job, err := h.jobs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, http.StatusInternalServerError)
		return
	}
	if claims, ok := auth.ClaimsFrom(c); ok && claims.Role != auth.RoleAdmin && job.RequestedBy != claims.Subject {
		h.fail(c, jobs.ErrNotFound, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *Handler) ListJobs(c *gin.Context) {
	f := jobs.ListFilter{Status: jobs.Status(c.Query("status")), Limit: 50}
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			f.Limit = parsed
		}
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			f.Offset = parsed
		}
	}
	if claims, ok := auth.ClaimsFrom(c); ok && claims.Role != auth.RoleAdmin {
		f.RequestedBy = claims.Subject
	}
	list, err := h.jobs.List(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": list})
}

// fail maps known errors to client statuses and everything else to fallback.
func (h *Handler) fail(c *gin.Context, err error, fallback int) {
	status := fallback
	switch {
	case errors.Is(err, report.ErrUnknownReport), errors.Is(err, jobs.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, report.ErrInvalidParams):
		status = http.StatusBadRequest
	case errors.Is(err, context.Canceled):
		// client went away
		c.Abort()
		return
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Int("status", status), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
