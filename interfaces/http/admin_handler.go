package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"content-pipeline/domain/dto"
	"content-pipeline/domain/repository"
	"content-pipeline/infrastructure/logger"
	"content-pipeline/usecase"

	"github.com/gin-gonic/gin"
)

type IAdminHandler interface {
	Health(c *gin.Context)
	HealthDetails(c *gin.Context)
	ListSources(c *gin.Context)
	ListPosts(c *gin.Context)
	ListQueue(c *gin.Context)
	ListLogs(c *gin.Context)
	TriggerIngestion(c *gin.Context)
	TriggerPublish(c *gin.Context)
	Stream(c *gin.Context)
}

// JobTrigger starts a named job and waits for its report.
type JobTrigger interface {
	Trigger(ctx context.Context, name string) (dto.JobReport, error)
}

type FailureCounter interface {
	Failures() int64
}

type Streamer interface {
	Serve(c *gin.Context)
	Subscribers() int
}

type AdminHandler struct {
	store     repository.IRecordStore
	jobs      JobTrigger
	audit     FailureCounter
	stream    Streamer
	storeName string
	startedAt time.Time
}

func NewAdminHandler(store repository.IRecordStore, jobs JobTrigger, audit FailureCounter, stream Streamer, storeName string) IAdminHandler {
	return &AdminHandler{
		store:     store,
		jobs:      jobs,
		audit:     audit,
		stream:    stream,
		storeName: storeName,
		startedAt: time.Now(),
	}
}

func (h *AdminHandler) Health(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

func (h *AdminHandler) HealthDetails(c *gin.Context) {
	details := gin.H{
		"status":         "ok",
		"store":          h.storeName,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	}
	if h.audit != nil {
		details["audit_failures"] = h.audit.Failures()
	}
	if h.stream != nil {
		details["stream_subscribers"] = h.stream.Subscribers()
	}
	c.JSON(http.StatusOK, details)
}

func (h *AdminHandler) ListSources(c *gin.Context) {
	sources, err := h.store.ListSources(c.Request.Context())
	if err != nil {
		logger.GetLogger().WithField("error", err.Error()).Error("/sources failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.ListResponse{OK: true, Data: sources})
}

func (h *AdminHandler) ListPosts(c *gin.Context) {
	posts, err := h.store.ListPosts(c.Request.Context())
	respondList(c, "/posts", posts, err)
}

func (h *AdminHandler) ListQueue(c *gin.Context) {
	queue, err := h.store.ListQueue(c.Request.Context())
	respondList(c, "/queue", queue, err)
}

func (h *AdminHandler) ListLogs(c *gin.Context) {
	logs, err := h.store.ListLogs(c.Request.Context())
	respondList(c, "/logs", logs, err)
}

func (h *AdminHandler) TriggerIngestion(c *gin.Context) {
	h.trigger(c, usecase.JobIngestion)
}

func (h *AdminHandler) TriggerPublish(c *gin.Context) {
	h.trigger(c, usecase.JobPublish)
}

func (h *AdminHandler) Stream(c *gin.Context) {
	if h.stream == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "stream not available"})
		return
	}
	h.stream.Serve(c)
}

func (h *AdminHandler) trigger(c *gin.Context, job string) {
	lg := logger.GetLogger().WithField("job", job)
	if op := c.GetString("operator"); op != "" {
		lg = lg.WithField("operator", op)
	}
	lg.Info("Manual trigger")

	report, err := h.jobs.Trigger(c.Request.Context(), job)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, dto.JobResponse{OK: true, Report: &report})
	case errors.Is(err, usecase.ErrJobRunning):
		c.JSON(http.StatusConflict, dto.JobResponse{OK: false, Error: err.Error()})
	default:
		lg.WithField("error", err.Error()).Error("Manual trigger failed")
		c.JSON(http.StatusInternalServerError, dto.JobResponse{OK: false, Report: &report, Error: err.Error()})
	}
}

func respondList[T any](c *gin.Context, route string, items []T, err error) {
	if err != nil {
		logger.GetLogger().WithField("error", err.Error()).Error(route + " failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if items == nil {
		items = []T{}
	}
	c.JSON(http.StatusOK, items)
}
