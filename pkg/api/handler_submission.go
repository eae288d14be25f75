package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vibejudge/vibejudge/pkg/services"
)

// CreateSubmission handles POST /api/v1/hackathons/{id}/submissions.
func (s *Server) CreateSubmission(c *gin.Context) {
	var in services.SubmissionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sub, err := s.submissions.Create(c.Request.Context(), orgID(c), c.Param("id"), in)
	if err != nil {
		mapError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sub)
}

// ListSubmissions handles GET /api/v1/hackathons/{id}/submissions.
func (s *Server) ListSubmissions(c *gin.Context) {
	subs, err := s.submissions.List(c.Request.Context(), orgID(c), c.Param("id"))
	if err != nil {
		mapError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"submissions": subs})
}

// GetScorecard handles GET /api/v1/submissions/{id}/scorecard.
func (s *Server) GetScorecard(c *gin.Context) {
	card, err := s.submissions.Scorecard(c.Request.Context(), orgID(c), c.Param("id"))
	if err != nil {
		mapError(c, err)
		return
	}
	c.JSON(http.StatusOK, card)
}

// GetLeaderboard handles GET /api/v1/hackathons/{id}/leaderboard.
func (s *Server) GetLeaderboard(c *gin.Context) {
	entries, err := s.submissions.Leaderboard(c.Request.Context(), orgID(c), c.Param("id"))
	if err != nil {
		mapError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"leaderboard": entries})
}
