package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/raphaelgruber/toolbrief/internal/jobs"
	"github.com/raphaelgruber/toolbrief/internal/metrics"
	"github.com/raphaelgruber/toolbrief/internal/models"
	"github.com/raphaelgruber/toolbrief/internal/sanitize"
	"github.com/raphaelgruber/toolbrief/internal/storage"
)

// maxToolNameLength bounds user-submitted tool names.
const maxToolNameLength = 100

type createJobRequest struct {
	ToolName  string `json:"toolName" binding:"required"`
	SessionID string `json:"sessionId" binding:"required"`
	APIKey    string `json:"apiKey"`

	// Quick requests use the short cache-freshness window.
	Quick bool `json:"quick"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleCreateJob validates the request, short-circuits on a fresh
// cached manual or an in-flight duplicate, and otherwise enqueues a new
// job and wakes the processor.
func (s *Server) handleCreateJob(c *gin.Context) {
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "toolName and sessionId are required"})
		return
	}

	toolName := sanitize.ToolName(req.ToolName, maxToolNameLength)
	if toolName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tool name is empty after sanitization"})
		return
	}
	slug := sanitize.Slug(toolName)
	if !sanitize.ValidSlug(slug) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "tool name does not yield a valid slug"})
		return
	}

	if allowed, retryAfter := s.ipLimiter.Allow(c.ClientIP()); !allowed {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":        "too many requests",
			"retryAfterMs": retryAfter.Milliseconds(),
		})
		return
	}
	if allowed, retryAfter := s.store.CheckJobRateLimit(req.SessionID); !allowed {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":        "session job limit reached",
			"retryAfterMs": retryAfter.Milliseconds(),
		})
		return
	}

	if s.validator != nil {
		start := time.Now()
		check := s.validator.Check(c.Request.Context(), toolName)
		if s.collector != nil {
			s.collector.RecordTiming(metrics.OpNameCheck, time.Since(start))
		}
		if !check.Valid {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":  "unrecognized tool name",
				"reason": check.Reason,
			})
			return
		}
		if check.NormalizedName != "" {
			toolName = sanitize.ToolName(check.NormalizedName, maxToolNameLength)
		}
	}

	window := s.cfg.FreshWindow
	if req.Quick {
		window = s.cfg.QuickFreshWindow
	}
	if cached := s.manuals.GetLatestManual(c.Request.Context(), slug); cached != nil &&
		time.Since(cached.GeneratedAt) < window {
		c.JSON(http.StatusOK, gin.H{
			"cached":      true,
			"slug":        slug,
			"shareUrl":    s.manuals.ShareURL(slug),
			"generatedAt": cached.GeneratedAt,
		})
		return
	}

	if existing := s.store.FindExistingJob(slug); existing != nil {
		c.JSON(http.StatusOK, gin.H{
			"job":          existing,
			"position":     s.store.GetQueuePosition(existing.ID),
			"deduplicated": true,
		})
		return
	}

	job, err := s.store.CreateJob(c.Request.Context(), jobs.CreateParams{
		ToolName:  toolName,
		Slug:      slug,
		SessionID: req.SessionID,
		APIKey:    req.APIKey,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create job"})
		return
	}

	// Best-effort wake-up; the periodic scan is the backstop.
	if s.proc != nil {
		s.proc.Wake()
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job":      job,
		"position": s.store.GetQueuePosition(job.ID),
	})
}

func (s *Server) handleGetJob(c *gin.Context) {
	job, err := s.store.GetJob(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

func (s *Server) handleListJobs(c *gin.Context) {
	sessionID := c.Query("session")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session query parameter is required"})
		return
	}

	var statuses []models.JobStatus
	if status := c.Query("status"); status != "" {
		statuses = append(statuses, models.JobStatus(status))
	}

	c.JSON(http.StatusOK, gin.H{"jobs": s.store.ListJobs(sessionID, statuses...)})
}

func (s *Server) handleQueuePosition(c *gin.Context) {
	if _, err := s.store.GetJob(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"position": s.store.GetQueuePosition(c.Param("id"))})
}

func (s *Server) handleDeleteJob(c *gin.Context) {
	err := s.store.DeleteJob(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, jobs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
	case errors.Is(err, jobs.ErrJobProcessing):
		c.JSON(http.StatusConflict, gin.H{"error": "job is processing and cannot be deleted"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete job"})
	default:
		c.JSON(http.StatusOK, gin.H{"deleted": true})
	}
}

func (s *Server) handleGetManual(c *gin.Context) {
	slug := c.Param("slug")
	if !sanitize.ValidSlug(slug) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid slug"})
		return
	}

	manual := s.manuals.GetLatestManual(c.Request.Context(), slug)
	if manual == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "manual not found"})
		return
	}
	c.JSON(http.StatusOK, manual)
}

func (s *Server) handleManualVersions(c *gin.Context) {
	versions, err := s.manuals.GetManualVersions(c.Request.Context(), c.Param("slug"))
	if err != nil {
		if errors.Is(err, storage.ErrInvalidSlug) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid slug"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list versions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"versions": versions})
}

// handleAdminProcess runs one processing cycle synchronously, for cron
// triggers and operational pokes.
func (s *Server) handleAdminProcess(c *gin.Context) {
	processed, err := s.proc.Process(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"processed": processed})
}

func (s *Server) handleAdminDeleteJob(c *gin.Context) {
	if err := s.store.ForceDeleteJob(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (s *Server) handleAdminDeleteAllJobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"deleted": s.store.DeleteAllJobs(c.Request.Context())})
}

func (s *Server) handleAdminStats(c *gin.Context) {
	if s.collector == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, s.collector.Snapshot())
}
