package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vibejudge/vibejudge/pkg/orchestrator"
)

// AnalyzeRequest is the body of POST /api/v1/hackathons/{id}/analyze.
type AnalyzeRequest struct {
	SubmissionIDs   []string `json:"submission_ids"`
	ForceReanalysis bool     `json:"force_reanalysis"`
}

// TriggerAnalysis handles POST /api/v1/hackathons/{id}/analyze. Accepted
// jobs run asynchronously; the response is the job handle.
func (s *Server) TriggerAnalysis(c *gin.Context) {
	var req AnalyzeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	result, err := s.orch.TriggerAnalysis(c.Request.Context(), orgID(c), c.Param("id"), orchestrator.TriggerRequest{
		SubmissionIDs:   req.SubmissionIDs,
		ForceReanalysis: req.ForceReanalysis,
		IdempotencyKey:  c.GetHeader("Idempotency-Key"),
	})
	if err != nil {
		mapError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, result)
}

// EstimateCost handles POST /api/v1/hackathons/{id}/estimate: the analyze
// math with no state change.
func (s *Server) EstimateCost(c *gin.Context) {
	var req AnalyzeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	estimate, n, err := s.orch.EstimateCost(c.Request.Context(), orgID(c), c.Param("id"), orchestrator.TriggerRequest{
		SubmissionIDs:   req.SubmissionIDs,
		ForceReanalysis: req.ForceReanalysis,
	})
	if err != nil {
		mapError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"total_submissions":          n,
		"estimated_cost_usd":         estimate.ExpectedUSD,
		"estimated_cost_low_usd":     estimate.LowUSD,
		"estimated_cost_high_usd":    estimate.HighUSD,
		"estimated_duration_minutes": estimate.DurationMinutes,
	})
}

// GetJob handles GET /api/v1/hackathons/{id}/jobs/{job_id}.
func (s *Server) GetJob(c *gin.Context) {
	job, err := s.orch.GetJob(c.Request.Context(), orgID(c), c.Param("id"), c.Param("job_id"))
	if err != nil {
		mapError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// ListJobs handles GET /api/v1/hackathons/{id}/jobs.
func (s *Server) ListJobs(c *gin.Context) {
	jobs, err := s.orch.ListJobs(c.Request.Context(), orgID(c), c.Param("id"))
	if err != nil {
		mapError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

// CancelJob handles POST /api/v1/hackathons/{id}/jobs/{job_id}/cancel.
func (s *Server) CancelJob(c *gin.Context) {
	if err := s.orch.Cancel(c.Request.Context(), orgID(c), c.Param("id"), c.Param("job_id")); err != nil {
		mapError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "cancelling"})
}
