package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/reqtag/internal/api/models"
	"github.com/jon4hz/reqtag/internal/cache"
	"github.com/jon4hz/reqtag/internal/database"
	"github.com/jon4hz/reqtag/internal/scheduler"
)

const (
	defaultRunLimit = 20
	maxRunLimit     = 500
)

// Engine is the part of the engine the handlers use.
type Engine interface {
	GetScheduler() *scheduler.Scheduler
	GetEngineCache() *cache.EngineCache
	GetDB() database.DB
	Running() bool
}

type Handler struct {
	engine Engine
}

func New(eng Engine) *Handler {
	return &Handler{engine: eng}
}

// Health reports liveness and whether a run is in progress.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"running": h.engine.Running(),
	})
}

// GetRuns returns the most recent runs, newest first.
func (h *Handler) GetRuns(c *gin.Context) {
	limit := defaultRunLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid limit"})
			return
		}
		limit = min(n, maxRunLimit)
	}

	runs, err := h.engine.GetDB().GetRuns(c.Request.Context(), limit)
	if err != nil {
		log.Error("Failed to get runs", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to get runs"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"runs":    models.ToRuns(runs),
	})
}

// GetRun returns a single run with its sections.
func (h *Handler) GetRun(c *gin.Context) {
	run, err := h.engine.GetDB().GetRun(c.Request.Context(), c.Param("id"))
	if errors.Is(err, database.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "Run not found"})
		return
	}
	if err != nil {
		log.Error("Failed to get run", "id", c.Param("id"), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to get run"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"run":     models.ToRun(*run),
	})
}

// GetStats returns aggregated run statistics.
func (h *Handler) GetStats(c *gin.Context) {
	stats, err := h.engine.GetDB().GetRunStats(c.Request.Context())
	if err != nil {
		log.Error("Failed to get run stats", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to get run stats"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats":   models.ToStats(stats),
	})
}

// GetSchedulerJobs returns all scheduler jobs.
func (h *Handler) GetSchedulerJobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"jobs":    h.engine.GetScheduler().GetJobs(),
	})
}

// RunSchedulerJob manually triggers a scheduler job.
func (h *Handler) RunSchedulerJob(c *gin.Context) {
	if err := h.engine.GetScheduler().RunJobNow(c.Param("id")); err != nil {
		jobError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"message": "Job triggered successfully",
	})
}

// EnableSchedulerJob enables a scheduler job.
func (h *Handler) EnableSchedulerJob(c *gin.Context) {
	h.setJobEnabled(c, true)
}

// DisableSchedulerJob disables a scheduler job.
func (h *Handler) DisableSchedulerJob(c *gin.Context) {
	h.setJobEnabled(c, false)
}

func (h *Handler) setJobEnabled(c *gin.Context, enabled bool) {
	if err := h.engine.GetScheduler().SetEnabled(c.Param("id"), enabled); err != nil {
		jobError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"enabled": enabled,
	})
}

func jobError(c *gin.Context, err error) {
	status := http.StatusBadRequest
	if errors.Is(err, scheduler.ErrJobNotFound) {
		status = http.StatusNotFound
	}
	c.JSON(status, gin.H{
		"success": false,
		"error":   err.Error(),
	})
}

// GetCacheStats returns cache statistics.
func (h *Handler) GetCacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"stats":   h.engine.GetEngineCache().GetStats(),
	})
}

// ClearCache clears the engine cache.
func (h *Handler) ClearCache(c *gin.Context) {
	h.engine.GetEngineCache().ClearAll(c.Request.Context())

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Cache cleared successfully",
	})
}
